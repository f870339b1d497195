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

	"github.com/AleutianAI/swiftcart/services/physics/broadcast"
	"github.com/AleutianAI/swiftcart/services/physics/celestial"
	"github.com/AleutianAI/swiftcart/services/physics/engine"
	"github.com/AleutianAI/swiftcart/services/physics/pulsewire"
	"github.com/AleutianAI/swiftcart/services/pulse/datatypes"
	"github.com/AleutianAI/swiftcart/services/pulse/observability"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HandleCelestialControl tunes the simulation constants at runtime.
//
// # Description
//
// Applies gravity and base mass updates transactionally, then broadcasts
// a CELESTIAL frame so every connected observer re-tunes its local
// physics immediately instead of waiting for the next tick. When
// force_pulse is set, the current stored state of the named product (or
// of every tracked product when product_id is absent) is additionally
// published as ordinary pulse frames. Routes using this handler must sit
// behind middleware.CelestialAuth.
//
// # Inputs
//
//   - keeper: Celestial constants keeper. Must not be nil.
//   - hub: Broadcast hub for frame fan-out. Must not be nil.
//   - eng: Decay engine, used for force-pulse snapshots. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc responding 200 with the resulting constants,
//     400 on a malformed request, 500 on a store failure.
func HandleCelestialControl(keeper *celestial.Keeper, hub *broadcast.Hub, eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CelestialControlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		consts, err := keeper.Apply(celestial.Update{
			Gravity:  req.Gravity,
			BaseMass: req.BaseMass,
		})
		if err != nil {
			slog.Error("Failed to apply celestial update", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply update"})
			return
		}

		resp := gin.H{
			"status":    "ok",
			"gravity":   consts.Gravity,
			"base_mass": consts.BaseMass,
		}

		pulseID := ""
		if req.ForcePulse {
			pulseID = req.ProductID
			if pulseID == "" {
				pulseID = uuid.New().String()
			}
			resp["pulse_id"] = pulseID
		}

		// Every successful update reaches observers immediately; the
		// Pulse flag tells clients whether a forced re-render follows.
		frame, err := pulsewire.EncodeCelestial(pulsewire.CelestialFrame{
			Gravity:   consts.Gravity,
			BaseMass:  consts.BaseMass,
			Pulse:     req.ForcePulse,
			ProductID: pulseID,
			Timestamp: nowUnixSeconds(),
		})
		if err != nil {
			slog.Error("Failed to encode celestial frame", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode frame"})
			return
		}

		delivered, dropped := hub.Broadcast(broadcast.GlobalPulseGroup, frame)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordBroadcast(broadcast.GlobalPulseGroup, dropped)
		}
		slog.Info("Celestial update broadcast",
			"gravity", consts.Gravity,
			"base_mass", consts.BaseMass,
			"force_pulse", req.ForcePulse,
			"delivered", delivered,
			"dropped", dropped)

		if req.ForcePulse {
			forcePulseProducts(hub, eng, req.ProductID, pulseID)
		}

		c.JSON(http.StatusOK, resp)
	}
}

// forcePulseProducts publishes current-state pulse frames for the named
// product, or for every tracked product when productID is empty. Snapshot
// failures are logged per product; the constants update already committed.
func forcePulseProducts(hub *broadcast.Hub, eng *engine.Engine, productID, pulseID string) {
	ids := []string{productID}
	if productID == "" {
		ids = eng.Products()
	}
	for _, id := range ids {
		ev, err := eng.Snapshot(id)
		if err != nil {
			slog.Warn("Failed to snapshot product for forced pulse",
				"product_id", id, "pulse_id", pulseID, "error", err)
			continue
		}
		frame, err := pulsewire.Encode(ev)
		if err != nil {
			slog.Warn("Failed to encode forced pulse frame",
				"product_id", id, "pulse_id", pulseID, "error", err)
			continue
		}
		_, dropped := hub.Broadcast(broadcast.GlobalPulseGroup, frame)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordBroadcast(broadcast.GlobalPulseGroup, dropped)
		}
	}
}

// HandleCelestialMetrics reports current constants and observer counts.
//
// # Inputs
//
//   - keeper: Celestial constants keeper. Must not be nil.
//   - hub: Broadcast hub, used for the observer count. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc responding 200 with a CelestialMetricsResponse.
func HandleCelestialMetrics(keeper *celestial.Keeper, hub *broadcast.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		consts, err := keeper.Load()
		if err != nil {
			slog.Error("Failed to load celestial constants", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load constants"})
			return
		}

		c.JSON(http.StatusOK, datatypes.CelestialMetricsResponse{
			Gravity:   consts.Gravity,
			BaseMass:  consts.BaseMass,
			Observers: hub.Size(broadcast.GlobalPulseGroup),
		})
	}
}
