// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package broadcast implements the observer registry and pulse fan-out.
//
// The Hub tracks group membership; Observers own a bounded frame buffer
// each. Broadcast performs non-blocking sends so one slow or disconnected
// observer can never delay delivery to the others: a full buffer means
// that observer drops the frame, and since every pulse carries absolute
// state, the next frame makes it whole again. No acknowledgment, no
// retry.
//
// Frames reach each observer in production order: Broadcast is called
// from a single producer per product (the decay engine loop) and each
// observer drains a single FIFO channel.
package broadcast

import (
	"sync"

	"github.com/google/uuid"
)

// GlobalPulseGroup is the group every realtime viewer joins on connect.
const GlobalPulseGroup = "global_pulse"

// DefaultObserverBuffer is the per-observer frame buffer size. At a 200ms
// tick interval this is ~13s of backlog before frames are shed.
const DefaultObserverBuffer = 64

// Observer is one connected realtime client as seen by the hub. The
// transport layer (WebSocket handler) drains Frames and writes them to
// the wire; the hub never touches connections directly.
type Observer struct {
	id     string
	frames chan []byte

	mu     sync.Mutex
	closed bool
}

// NewObserver creates an observer with the given buffer capacity.
// capacity <= 0 uses DefaultObserverBuffer.
func NewObserver(capacity int) *Observer {
	if capacity <= 0 {
		capacity = DefaultObserverBuffer
	}
	return &Observer{
		id:     uuid.New().String(),
		frames: make(chan []byte, capacity),
	}
}

// ID returns the observer's unique identifier.
func (o *Observer) ID() string {
	return o.id
}

// Frames returns the channel the transport drains. The channel is closed
// by Close; a transport write loop can range over it.
func (o *Observer) Frames() <-chan []byte {
	return o.frames
}

// offer attempts a non-blocking delivery. Returns false if the buffer is
// full or the observer is closed.
func (o *Observer) offer(frame []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	select {
	case o.frames <- frame:
		return true
	default:
		return false
	}
}

// Close marks the observer dead and closes its frame channel. Safe to
// call more than once.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.frames)
}

// Hub is the observer registry plus fan-out. It holds membership only,
// no business state.
//
// # Thread Safety
//
// Safe for concurrent Join/Leave/Broadcast/Members.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Observer]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[*Observer]struct{})}
}

// Join registers the observer in the named group.
func (h *Hub) Join(group string, o *Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[group]
	if !ok {
		g = make(map[*Observer]struct{})
		h.groups[group] = g
	}
	g[o] = struct{}{}
}

// Leave removes the observer from the named group. The observer itself is
// not closed; the transport owns that.
func (h *Hub) Leave(group string, o *Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[group]
	if !ok {
		return
	}
	delete(g, o)
	if len(g) == 0 {
		delete(h.groups, group)
	}
}

// Members returns a snapshot of the group's observers.
func (h *Hub) Members(group string) []*Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	g := h.groups[group]
	members := make([]*Observer, 0, len(g))
	for o := range g {
		members = append(members, o)
	}
	return members
}

// Size returns the number of observers in the group.
func (h *Hub) Size(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Broadcast delivers the frame to every current member of the group,
// best-effort. Returns how many observers accepted the frame and how many
// dropped it (buffer full or closed).
func (h *Hub) Broadcast(group string, frame []byte) (delivered, dropped int) {
	// Snapshot membership so a join/leave during fan-out cannot block or
	// skip unrelated observers.
	members := h.Members(group)
	for _, o := range members {
		if o.offer(frame) {
			delivered++
		} else {
			dropped++
		}
	}
	return delivered, dropped
}

// CloseAll closes every observer and empties the registry. Used on
// shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for group, g := range h.groups {
		for o := range g {
			o.Close()
		}
		delete(h.groups, group)
	}
}
