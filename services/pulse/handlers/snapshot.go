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
	"log/slog"
	"net/http"

	"github.com/AleutianAI/swiftcart/pkg/validation"
	"github.com/AleutianAI/swiftcart/services/pulse/datatypes"
	"github.com/AleutianAI/swiftcart/services/pulse/observability"
	"github.com/AleutianAI/swiftcart/services/snapshot"
	"github.com/gin-gonic/gin"
)

// SessionIDHeader carries the session id on snapshot handshakes. A missing
// header falls back to DefaultSessionID so single-tab clients never have to
// mint one.
const SessionIDHeader = "X-Session-ID"

// DefaultSessionID is the session key used when a client does not send
// X-Session-ID.
const DefaultSessionID = "default_session"

// HandleSnapshotHandshake anchors a client's opaque session snapshot.
//
// # Description
//
// Reads the request body as an opaque binary blob (the client's serialized
// session state, typically msgpack) and stores it under the X-Session-ID
// header with the default TTL. Observers call this periodically so a
// dropped WebSocket can recover mid-session instead of cold-starting.
// The body is never decoded server-side.
//
// # Inputs
//
//   - store: Session snapshot store. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc responding 200 {"status":"anchored","session_id":...}
//     on save, 400 on an empty/oversized body or bad session id, 500 on a
//     store failure.
func HandleSnapshotHandshake(store *snapshot.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionIDHeader)
		if sessionID == "" {
			sessionID = DefaultSessionID
		}
		sessionID, err := validation.SanitizeSessionID(sessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		blob, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		if len(blob) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "snapshot body cannot be empty"})
			return
		}
		if len(blob) > datatypes.MaxSnapshotBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "snapshot exceeds maximum size"})
			return
		}

		if err := store.Save(sessionID, blob, snapshot.DefaultTTL); err != nil {
			slog.Error("Failed to save session snapshot",
				"session_id", sessionID, "error", err)
			recordSnapshotOp("save", "error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save snapshot"})
			return
		}

		recordSnapshotOp("save", "ok")
		c.JSON(http.StatusOK, gin.H{"status": "anchored", "session_id": sessionID})
	}
}

// HandleSnapshotRecover returns a previously saved session snapshot.
//
// # Description
//
// Looks up the snapshot blob for the session id (X-Session-ID header, or
// the session_id query parameter as a fallback) and returns it verbatim as
// application/x-msgpack. A missing or expired snapshot is a 404; the
// client then cold-starts.
//
// # Inputs
//
//   - store: Session snapshot store. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc responding 200 with the raw saved blob, 400 on a bad
//     session id, 404 when no snapshot exists.
func HandleSnapshotRecover(store *snapshot.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionIDHeader)
		if sessionID == "" {
			sessionID = c.Query("session_id")
		}
		if sessionID == "" {
			sessionID = DefaultSessionID
		}
		sessionID, err := validation.SanitizeSessionID(sessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		blob, ok, err := store.Load(sessionID)
		if err != nil {
			slog.Error("Failed to load session snapshot",
				"session_id", sessionID, "error", err)
			recordSnapshotOp("load", "error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snapshot"})
			return
		}
		if !ok {
			recordSnapshotOp("load", "miss")
			c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
			return
		}

		recordSnapshotOp("load", "ok")
		c.Data(http.StatusOK, "application/x-msgpack", blob)
	}
}

// recordSnapshotOp records a snapshot metric when metrics are initialized.
func recordSnapshotOp(op, status string) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordSnapshotOp(op, status)
	}
}
