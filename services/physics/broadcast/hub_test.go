// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package broadcast

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHub_JoinLeaveMembers(t *testing.T) {
	h := NewHub()
	a := NewObserver(4)
	b := NewObserver(4)

	h.Join(GlobalPulseGroup, a)
	h.Join(GlobalPulseGroup, b)
	require.Equal(t, 2, h.Size(GlobalPulseGroup))

	h.Leave(GlobalPulseGroup, a)
	members := h.Members(GlobalPulseGroup)
	require.Len(t, members, 1)
	require.Equal(t, b.ID(), members[0].ID())

	h.Leave(GlobalPulseGroup, b)
	require.Equal(t, 0, h.Size(GlobalPulseGroup))
}

// TestHub_SlowObserverDoesNotBlockOthers fills one observer's buffer and
// verifies the healthy observer still receives every frame immediately.
func TestHub_SlowObserverDoesNotBlockOthers(t *testing.T) {
	h := NewHub()
	slow := NewObserver(2) // tiny buffer, never drained
	fast := NewObserver(16)
	h.Join(GlobalPulseGroup, slow)
	h.Join(GlobalPulseGroup, fast)

	start := time.Now()
	var lastDelivered, totalDropped int
	for i := 0; i < 10; i++ {
		delivered, dropped := h.Broadcast(GlobalPulseGroup, []byte{byte(i)})
		lastDelivered = delivered
		totalDropped += dropped
	}
	require.Less(t, time.Since(start), time.Second, "broadcast must not block on the slow observer")

	// The fast observer got all 10 frames, in order.
	for i := 0; i < 10; i++ {
		select {
		case frame := <-fast.Frames():
			require.Equal(t, []byte{byte(i)}, frame)
		default:
			t.Fatalf("fast observer missing frame %d", i)
		}
	}

	// The slow observer kept its first 2 frames and shed the rest.
	require.Equal(t, 8, totalDropped)
	require.Equal(t, 1, lastDelivered) // final frame reached only the fast observer
}

// TestHub_ClosedObserverDropsFrames verifies delivery accounting after an
// observer disconnects mid-stream.
func TestHub_ClosedObserverDropsFrames(t *testing.T) {
	h := NewHub()
	a := NewObserver(4)
	b := NewObserver(4)
	h.Join(GlobalPulseGroup, a)
	h.Join(GlobalPulseGroup, b)

	a.Close()
	delivered, dropped := h.Broadcast(GlobalPulseGroup, []byte("pulse"))
	require.Equal(t, 1, delivered)
	require.Equal(t, 1, dropped)
}

// TestHub_ConcurrentJoinLeaveBroadcast runs joins, leaves and broadcasts
// in parallel; the race detector is the real assertion here.
func TestHub_ConcurrentJoinLeaveBroadcast(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			group := fmt.Sprintf("group-%d", n%2)
			for j := 0; j < 100; j++ {
				o := NewObserver(1)
				h.Join(group, o)
				h.Broadcast(group, []byte("x"))
				h.Leave(group, o)
				o.Close()
			}
		}(i)
	}

	wg.Wait()
	require.Equal(t, 0, h.Size("group-0"))
	require.Equal(t, 0, h.Size("group-1"))
}

func TestObserver_CloseIsIdempotent(t *testing.T) {
	o := NewObserver(1)
	o.Close()
	o.Close() // must not panic

	_, ok := <-o.Frames()
	require.False(t, ok, "frames channel should be closed")
}
