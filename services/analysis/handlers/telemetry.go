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
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
)

// telemetryMetaAllowList is the closed set of meta keys the endpoint will
// record. Everything else in the submitted meta object is discarded, so no
// free-text project content can leak into the telemetry log.
var telemetryMetaAllowList = []string{
	"projectId",
	"modelType",
	"processesPersonalData",
	"hasSpecialCategoryData",
	"format",
	"action",
	"durationMs",
}

// HandleTelemetry accepts opt-in, content-free usage events.
//
// # Description
//
//	The consent gate is a hard stop: without "consented": true nothing is
//	logged at all, not even the refusal. Consented events are reduced to a
//	strict allow-list of sanitized tokens and numbers before being written
//	to the structured log; there is no storage backend.
func HandleTelemetry() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if err := c.BindJSON(&body); err != nil {
			body = map[string]any{}
		}

		consented, _ := body["consented"].(bool)
		if !consented {
			c.JSON(http.StatusOK, gin.H{"ok": false, "reason": "not consented"})
			return
		}

		meta := map[string]any{}
		if rawMeta, ok := body["meta"].(map[string]any); ok {
			for _, k := range telemetryMetaAllowList {
				v, present := rawMeta[k]
				if !present {
					continue
				}
				switch t := v.(type) {
				case nil, bool:
					meta[k] = t
				case float64:
					n := int(t)
					if k == "durationMs" && n < 0 {
						n = 0
					}
					meta[k] = n
				default:
					meta[k] = sanitizeToken(stringOfAny(v), 32)
				}
			}
		}

		event := sanitizeToken(strings.ToLower(stringOfAny(body["event"])), 64)
		if event == "" {
			event = "unknown"
		}

		screen := map[string]int{"w": 0, "h": 0}
		if scr, ok := body["screen"].(map[string]any); ok {
			if w, ok := scr["w"].(float64); ok {
				screen["w"] = int(w)
			}
			if h, ok := scr["h"].(float64); ok {
				screen["h"] = int(h)
			}
		}

		session := alnumOnly(stringOfAny(body["session"]), 24)

		ts, _ := body["ts"].(string)
		if ts == "" || len(ts) > 40 {
			ts = time.Now().UTC().Format("2006-01-02T15:04:05") + "Z"
		}

		slog.Info("Telemetry",
			"event", event,
			"ts", ts,
			"session", session,
			"screen", screen,
			"meta", meta,
		)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// sanitizeToken truncates to maxLen and keeps only alphanumerics plus a few
// structural characters.
func sanitizeToken(s string, maxLen int) string {
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_:.", r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func alnumOnly(s string, maxLen int) string {
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stringOfAny(v any) string {
	s, _ := v.(string)
	return s
}
