// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/swiftcart/services/payments"
	"github.com/AleutianAI/swiftcart/services/physics/broadcast"
	"github.com/AleutianAI/swiftcart/services/physics/celestial"
	"github.com/AleutianAI/swiftcart/services/physics/checkout"
	"github.com/AleutianAI/swiftcart/services/physics/engine"
	"github.com/AleutianAI/swiftcart/services/physics/state"
	"github.com/AleutianAI/swiftcart/services/pulse/handlers"
	"github.com/AleutianAI/swiftcart/services/pulse/middleware"
	"github.com/AleutianAI/swiftcart/services/snapshot"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps carries the initialized components the routes close over.
type Deps struct {
	Store          *state.Store
	Hub            *broadcast.Hub
	Engine         *engine.Engine
	Keeper         *celestial.Keeper
	Checkout       *checkout.Handler
	Snapshots      *snapshot.Store
	Payments       payments.Client
	CelestialToken string
	EnableMetrics  bool
}

func SetupRoutes(router *gin.Engine, deps Deps) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/ws/pulse", handlers.HandlePulseWebSocket(deps.Hub, deps.Engine, deps.Store))

	if deps.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api")
	{
		physics := api.Group("/physics")
		{
			snapshots := physics.Group("/snapshot")
			{
				snapshots.POST("/handshake", handlers.HandleSnapshotHandshake(deps.Snapshots))
				snapshots.GET("/recover", handlers.HandleSnapshotRecover(deps.Snapshots))
			}
			// Operator-only control surface
			control := physics.Group("/celestial")
			control.Use(middleware.CelestialAuth(deps.CelestialToken))
			{
				control.POST("/control", handlers.HandleCelestialControl(deps.Keeper, deps.Hub, deps.Engine))
				control.GET("/metrics", handlers.HandleCelestialMetrics(deps.Keeper, deps.Hub))
			}
		}
		pay := api.Group("/payments")
		{
			pay.POST("/create-payment-intent", handlers.HandleCreatePaymentIntent(deps.Payments))
			pay.POST("/hyperdrive-capture", handlers.HandleHyperdriveCapture(deps.Checkout))
		}
	}
}
