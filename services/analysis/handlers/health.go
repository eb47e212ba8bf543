// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports liveness plus the serving corpus version so probes
// can detect a degraded (empty-corpus) instance.
func HealthCheck(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := deps.Store.Current()
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"corpus_version": snap.Version,
			"clauses":        len(snap.Clauses),
		})
	}
}
