// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aiimpact/governor/services/analysis/handlers"
)

func SetupRoutes(router *gin.Engine, deps *handlers.Deps) {
	router.GET("/health", handlers.HealthCheck(deps))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/clauses", handlers.ListClauses(deps))
		v1.POST("/search", handlers.HandleSearch(deps))
		v1.POST("/analyse", handlers.HandleAnalyse(deps))
		v1.POST("/telemetry", handlers.HandleTelemetry())
		// Corpus administration routes
		admin := v1.Group("/admin")
		{
			admin.GET("/reload", handlers.HandleReload(deps))
		}
	}
}
