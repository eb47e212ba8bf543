// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aiimpact/governor/services/analysis/datatypes"
	"github.com/aiimpact/governor/services/analysis/observability"
	"github.com/aiimpact/governor/services/corpus"
)

// ListClauses returns every clause in the current corpus snapshot.
func ListClauses(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := deps.Store.Current()
		c.JSON(http.StatusOK, snap.Clauses)
	}
}

// HandleSearch runs a raw retrieval query against the current snapshot and
// returns the diversified hit list.
func HandleSearch(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q datatypes.SearchQuery
		if err := c.BindJSON(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if q.TopK <= 0 {
			q.TopK = 5
		}

		hits := deps.Store.Current().Retrieve(q.Q, q.TopK, q.Frameworks)
		if hits == nil {
			hits = []corpus.SearchHit{}
		}
		c.JSON(http.StatusOK, hits)
	}
}

// HandleReload rebuilds the corpus snapshot from its source and reports the
// resulting clause count and version.
func HandleReload(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := deps.Store.Reload()
		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.CorpusClauses.Set(float64(len(snap.Clauses)))
		}
		slog.Info("Corpus reloaded via admin endpoint", "clauses", len(snap.Clauses), "version", snap.Version)
		c.JSON(http.StatusOK, datatypes.ReloadResponse{
			OK:      true,
			Count:   len(snap.Clauses),
			Version: snap.Version,
		})
	}
}
