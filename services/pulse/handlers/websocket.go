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
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/AleutianAI/swiftcart/pkg/validation"
	"github.com/AleutianAI/swiftcart/services/physics/broadcast"
	"github.com/AleutianAI/swiftcart/services/physics/engine"
	"github.com/AleutianAI/swiftcart/services/physics/pulsewire"
	"github.com/AleutianAI/swiftcart/services/physics/state"
	"github.com/AleutianAI/swiftcart/services/pulse/observability"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// WSControlMessage is an inbound observer control message.
//
// Observers receive binary pulse frames; the only upstream traffic is
// small JSON control messages.
type WSControlMessage struct {
	// Action is "interaction", "ping" or "echo".
	Action string `json:"action"`

	// ProductID names the product for "interaction" messages.
	ProductID string `json:"product_id,omitempty"`

	// Timestamp is the client's send time for "ping" messages, echoed
	// back in the pong so the client can measure round-trip latency.
	Timestamp float64 `json:"timestamp,omitempty"`

	// Data is an arbitrary payload returned verbatim by "echo".
	Data json.RawMessage `json:"data,omitempty"`
}

// writeWait bounds a single WebSocket write.
const writeWait = 5 * time.Second

// Interaction rate limiting per connection. A browser firing on every
// mousemove would otherwise let one observer dominate the hit counters.
const (
	interactionRatePerSecond = 20
	interactionBurst         = 40
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// wsConn wraps a WebSocket connection with a write lock so the frame
// writer goroutine and control replies never interleave writes.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) writeBinary(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandlePulseWebSocket attaches an observer to the global pulse feed.
//
// # Description
//
// Upgrades the connection, joins the observer to the global_pulse group,
// and streams binary pulse frames from the hub until the client
// disconnects. On connect the current state of every product is sent as
// snapshot frames so the observer renders immediately instead of waiting
// for the next tick.
//
// Inbound traffic is JSON control messages:
//
//   - {"action": "interaction", "product_id": "..."}: records one hit,
//     which deepens that product's decay on the next tick. Rate limited
//     per connection.
//   - {"action": "ping", "timestamp": ...}: replies {"action": "pong",
//     "timestamp": <server>, "client_timestamp": <echoed>} for latency
//     measurement.
//   - {"action": "echo", "data": ...}: replies {"action":
//     "echo_response", "data": <verbatim>, "timestamp": <server>}.
//
// Malformed JSON and unknown actions are answered with an
// {"action": "error", ...} frame; the connection stays open. A read
// error of any kind ends the session.
//
// # Inputs
//
//   - hub: Broadcast hub. Must not be nil.
//   - eng: Decay engine, used for connect-time snapshots. Must not be nil.
//   - store: Product state store, used to record hits. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc serving the WebSocket session.
func HandlePulseWebSocket(hub *broadcast.Hub, eng *engine.Engine, store *state.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to upgrade pulse websocket", "error", err)
			return
		}
		defer ws.Close()

		conn := &wsConn{ws: ws}
		obs := broadcast.NewObserver(broadcast.DefaultObserverBuffer)
		hub.Join(broadcast.GlobalPulseGroup, obs)
		if m := observability.DefaultMetrics; m != nil {
			m.ObserverJoined(broadcast.GlobalPulseGroup)
		}
		slog.Info("Pulse observer connected", "observer_id", obs.ID())

		defer func() {
			hub.Leave(broadcast.GlobalPulseGroup, obs)
			obs.Close()
			if m := observability.DefaultMetrics; m != nil {
				m.ObserverLeft(broadcast.GlobalPulseGroup)
			}
			slog.Info("Pulse observer disconnected", "observer_id", obs.ID())
		}()

		// Tell the client who it is before any frames arrive.
		if err := conn.writeJSON(map[string]interface{}{
			"action":      "observer_joined",
			"observer_id": obs.ID(),
		}); err != nil {
			return
		}

		sendInitialSnapshots(conn, eng, obs.ID())

		// Frame writer: drains the observer buffer until Close.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for frame := range obs.Frames() {
				if err := conn.writeBinary(frame); err != nil {
					slog.Info("Pulse frame write failed, dropping observer",
						"observer_id", obs.ID(), "error", err.Error())
					return
				}
			}
		}()

		limiter := rate.NewLimiter(rate.Limit(interactionRatePerSecond), interactionBurst)
		readControlLoop(conn, store, obs.ID(), limiter)

		// Deferred cleanup closes the observer, which ends the writer.
		obs.Close()
		<-writerDone
	}
}

// sendInitialSnapshots pushes the current state of every product so a
// fresh observer has a full view before its first live pulse.
func sendInitialSnapshots(conn *wsConn, eng *engine.Engine, observerID string) {
	for _, id := range eng.Products() {
		ev, err := eng.Snapshot(id)
		if err != nil {
			slog.Warn("Failed to snapshot product for new observer",
				"observer_id", observerID, "product_id", id, "error", err)
			continue
		}
		frame, err := pulsewire.Encode(ev)
		if err != nil {
			slog.Warn("Failed to encode snapshot frame",
				"product_id", id, "error", err)
			continue
		}
		if err := conn.writeBinary(frame); err != nil {
			return
		}
	}
}

// nowUnixSeconds is the timestamp format the pulse wire uses: Unix time
// as a float with sub-second precision.
func nowUnixSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// readControlLoop processes inbound control messages until the client
// disconnects or a read error occurs.
func readControlLoop(conn *wsConn, store *state.Store, observerID string, limiter *rate.Limiter) {
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			slog.Info("Pulse observer read ended",
				"observer_id", observerID, "error", err.Error())
			return
		}

		var msg WSControlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Decode failures get an error frame, not a disconnect.
			slog.Warn("Rejecting malformed control message",
				"observer_id", observerID, "error", err)
			if err := conn.writeJSON(map[string]interface{}{
				"action":    "error",
				"message":   "invalid JSON",
				"timestamp": nowUnixSeconds(),
			}); err != nil {
				return
			}
			continue
		}

		switch msg.Action {
		case "interaction":
			if err := validation.ValidateProductID(msg.ProductID); err != nil {
				slog.Warn("Dropping interaction with invalid product id",
					"observer_id", observerID, "error", err)
				continue
			}
			if !limiter.Allow() {
				slog.Warn("Dropping interaction over rate limit",
					"observer_id", observerID, "product_id", msg.ProductID)
				continue
			}
			if _, err := store.AddHit(msg.ProductID); err != nil {
				slog.Error("Failed to record interaction hit",
					"observer_id", observerID, "product_id", msg.ProductID, "error", err)
				continue
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordInteraction(msg.ProductID)
			}

		case "ping":
			if err := conn.writeJSON(map[string]interface{}{
				"action":           "pong",
				"timestamp":        nowUnixSeconds(),
				"client_timestamp": msg.Timestamp,
			}); err != nil {
				return
			}

		case "echo":
			if err := conn.writeJSON(map[string]interface{}{
				"action":    "echo_response",
				"data":      msg.Data,
				"timestamp": nowUnixSeconds(),
			}); err != nil {
				return
			}

		default:
			// Unknown actions get an error frame, not a disconnect.
			slog.Warn("Rejecting unknown control message",
				"observer_id", observerID, "action", msg.Action)
			if err := conn.writeJSON(map[string]interface{}{
				"action":    "error",
				"message":   "unknown action: " + msg.Action,
				"timestamp": nowUnixSeconds(),
			}); err != nil {
				return
			}
		}
	}
}
