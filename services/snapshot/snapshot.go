// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot stores opaque per-session binary snapshots ("anchors")
// with a fixed expiry.
//
// The blob is whatever the client sent, stored raw for speed; the server
// never inspects it. Snapshots share the state store's BadgerDB instance
// under the sc:session:snapshot: prefix and expire via Badger's
// per-entry TTL, matching the original's one-hour Redis expiry.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DefaultTTL matches the original prototype's 3600s snapshot expiry.
const DefaultTTL = time.Hour

func snapshotKey(sessionID string) []byte {
	return []byte("sc:session:snapshot:" + sessionID)
}

// Store persists session snapshots.
type Store struct {
	db *badger.DB
}

// New returns a snapshot store over the given database.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Save writes the blob under the session id with the given TTL.
// ttl <= 0 uses DefaultTTL. An existing snapshot is overwritten.
func (s *Store) Save(sessionID string, blob []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(snapshotKey(sessionID), blob).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", sessionID, err)
	}
	return nil
}

// Load reads the blob for the session id. The second return is false when
// no snapshot exists (never stored, or expired).
func (s *Store) Load(sessionID string) ([]byte, bool, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(sessionID))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s: %w", sessionID, err)
	}
	return blob, true, nil
}
