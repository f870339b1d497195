// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the pulse service.
//
// This package contains middleware for authenticating privileged
// operator endpoints. Regular observer and checkout traffic is
// unauthenticated; only the celestial control surface requires a
// shared-secret token.
//
// # Authentication Flow
//
// The celestial middleware reads the X-Celestial-Token header and
// compares it in constant time against the server's configured secret.
//
//	Request
//	   │
//	   ▼
//	CelestialAuth
//	   │
//	   ├─► Read "X-Celestial-Token" header
//	   │
//	   ├─► subtle.ConstantTimeCompare against configured secret
//	   │
//	   └─► 401 {"error": "unauthorized"} on mismatch
//	           │
//	           ▼
//	       Handler
//
// # Unconfigured Behavior
//
// When no secret is configured the control surface is disabled: every
// request is rejected with 401. An empty header can never match.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CelestialTokenHeader is the header carrying the operator shared secret.
const CelestialTokenHeader = "X-Celestial-Token"

// CelestialAuth creates a Gin middleware guarding celestial control routes.
//
// # Description
//
// Compares the X-Celestial-Token request header against the configured
// secret using a constant-time comparison. Requests with a missing or
// mismatched token are aborted with 401.
//
// # Inputs
//
//   - secret: The configured shared secret. Empty disables the surface
//     (all requests are rejected).
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware function ready for use with Gin
//
// # Examples
//
//	control := router.Group("/api/physics/celestial")
//	control.Use(middleware.CelestialAuth(cfg.CelestialToken))
//
// # Limitations
//
//   - Single static secret; no rotation or per-operator identity
//
// # Assumptions
//
//   - The secret was delivered to operators out of band
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func CelestialAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(CelestialTokenHeader)

		// An unconfigured secret rejects everything, including an empty
		// header, so the comparison must also require a non-empty secret.
		if secret == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		c.Next()
	}
}
