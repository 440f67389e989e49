// Package api exposes the sprite pipeline, store, and learning engine over
// HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rcliao/sprite-memory/internal/learn"
	"github.com/rcliao/sprite-memory/internal/metrics"
	"github.com/rcliao/sprite-memory/internal/pipeline"
	"github.com/rcliao/sprite-memory/internal/store"
)

const maxRequestBodySize = 1 << 20   // 1MB
const maxManifestBodySize = 32 << 20 // 32MB

// Deps holds the handler's collaborators. Metrics and Logger are optional.
type Deps struct {
	Service *pipeline.Service
	Store   *store.Store
	Engine  *learn.Engine
	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// NewHandler returns the HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(instrument(deps))

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	r.Get("/stats", handleStats(deps))

	r.Post("/scenes/bind", handleBind(deps))
	r.Post("/scenes/resolve", handleResolve(deps))
	r.Post("/stories/process", handleProcessStory(deps))

	r.Post("/sprites", handlePutSprite(deps))
	r.Get("/sprites", handleQuerySprites(deps))
	r.Get("/sprites/{id}", handleGetSprite(deps))

	r.Route("/characters/{id}", func(r chi.Router) {
		r.Get("/sprites", handleCharacterSprites(deps))
		r.Delete("/sprites", handlePurgeCharacter(deps))
		r.Get("/match", handleMatch(deps))
		r.Get("/manifest", handleExportManifest(deps))
		r.Post("/frames", handlePutFrame(deps))
		r.Get("/frames", handleFrames(deps))
	})
	r.Post("/manifests", handleImportManifest(deps))

	r.Post("/learning/feedback", handleFeedback(deps))
	r.Get("/learning/suggestions", handleSuggestions(deps))
	r.Get("/learning/combinations/{characterID}", handleCombinations(deps))
	r.Post("/learning/engagement/{storyID}", handleEngagement(deps))

	return r
}

// instrument records request counts and latency by route pattern.
func instrument(deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			deps.Metrics.RecordHTTP(route, r.Method, code, time.Since(start))
			deps.Logger.Debug("api: request", "method", r.Method, "route", route, "code", code,
				"duration_ms", time.Since(start).Milliseconds())
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"store":      deps.Store.Stats(),
			"characters": deps.Store.Characters(),
			"learning":   deps.Engine.Stats(),
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
