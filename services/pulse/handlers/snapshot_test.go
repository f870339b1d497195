// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/swiftcart/services/physics/state"
	"github.com/AleutianAI/swiftcart/services/pulse/datatypes"
	"github.com/AleutianAI/swiftcart/services/snapshot"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSnapshotRouter builds a router over an in-memory store.
func newSnapshotRouter(t *testing.T) *gin.Engine {
	t.Helper()

	store, err := state.OpenInMemory(state.DefaultParams())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	snaps := snapshot.New(store.DB())

	router := gin.New()
	router.POST("/api/physics/snapshot/handshake", HandleSnapshotHandshake(snaps))
	router.GET("/api/physics/snapshot/recover", HandleSnapshotRecover(snaps))
	return router
}

// anchorSnapshot POSTs blob under sessionID and returns the recorder.
func anchorSnapshot(router *gin.Engine, sessionID string, blob []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/physics/snapshot/handshake",
		bytes.NewReader(blob))
	req.Header.Set("Content-Type", "application/x-msgpack")
	if sessionID != "" {
		req.Header.Set(SessionIDHeader, sessionID)
	}
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Handshake + Recover Tests
// =============================================================================

func TestSnapshot_HandshakeThenRecover(t *testing.T) {
	router := newSnapshotRouter(t)

	blob := []byte{0x82, 0xa4, 'c', 'a', 'r', 't', 0x01, 0xa1, 'v', 0x02}
	w := anchorSnapshot(router, "obs-7", blob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"anchored"`)
	assert.Contains(t, w.Body.String(), `"obs-7"`)

	w = httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/physics/snapshot/recover", nil)
	req.Header.Set(SessionIDHeader, "obs-7")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-msgpack", w.Header().Get("Content-Type"))
	assert.Equal(t, blob, w.Body.Bytes())
}

func TestSnapshot_HandshakeDefaultsSessionID(t *testing.T) {
	router := newSnapshotRouter(t)

	w := anchorSnapshot(router, "", []byte("opaque"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), DefaultSessionID)

	// Recover via query parameter fallback.
	w = httptest.NewRecorder()
	req, _ := http.NewRequest("GET",
		"/api/physics/snapshot/recover?session_id="+DefaultSessionID, nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("opaque"), w.Body.Bytes())
}

func TestSnapshot_RecoverUnknownSessionIs404(t *testing.T) {
	router := newSnapshotRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/physics/snapshot/recover?session_id=ghost", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "snapshot not found")
}

func TestSnapshot_HandshakeRejectsBadSessionID(t *testing.T) {
	router := newSnapshotRouter(t)

	w := anchorSnapshot(router, "obs:evil", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSnapshot_HandshakeRejectsEmptyBody(t *testing.T) {
	router := newSnapshotRouter(t)

	w := anchorSnapshot(router, "obs-7", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "empty")
}

func TestSnapshot_HandshakeRejectsOversizedBody(t *testing.T) {
	router := newSnapshotRouter(t)

	big := bytes.Repeat([]byte("x"), datatypes.MaxSnapshotBytes+1)
	w := anchorSnapshot(router, "obs-7", big)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "maximum size")
}

func TestSnapshot_RecoverRejectsBadSessionID(t *testing.T) {
	router := newSnapshotRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/physics/snapshot/recover?session_id=..%2Fetc", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSnapshot_HandshakeOverwritesPreviousState(t *testing.T) {
	router := newSnapshotRouter(t)

	require.Equal(t, http.StatusOK, anchorSnapshot(router, "obs-7", []byte("v1")).Code)
	require.Equal(t, http.StatusOK, anchorSnapshot(router, "obs-7", []byte("v2")).Code)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/physics/snapshot/recover?session_id=obs-7", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("v2"), w.Body.Bytes())
}
