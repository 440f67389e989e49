package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rcliao/sprite-memory/internal/learn"
	"github.com/rcliao/sprite-memory/internal/pipeline"
	"github.com/rcliao/sprite-memory/internal/store"
)

// SuggestionResponse is returned by GET /learning/suggestions.
type SuggestionResponse struct {
	Context    learn.Context   `json:"context"`
	Suggestion learn.Candidate `json:"suggestion"`
	Score      float64         `json:"score"`
	Candidates int             `json:"candidates"`
}

func handleFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fb pipeline.FeedbackRequest
		if !decodeBody(w, r, maxRequestBodySize, &fb) {
			return
		}

		err := deps.Service.Feedback(r.Context(), fb)
		switch {
		case errors.Is(err, pipeline.ErrInvalidScore):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "record feedback: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
	}
}

// handleSuggestions ranks the stored sprites of character_id for the
// context given in the query string.
func handleSuggestions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		c := learn.Context{
			Scene:       q.Get("scene"),
			Emotion:     q.Get("emotion"),
			Action:      q.Get("action"),
			CharacterID: q.Get("character_id"),
			TimeOfDay:   q.Get("time_of_day"),
		}
		if c.CharacterID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "character_id is required")
			return
		}

		candidates := learn.CandidatesFrom(deps.Store.Query(store.Filter{CharacterID: c.CharacterID}))
		best, ok := deps.Engine.Suggest(c, candidates)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "no sprites for character %q", c.CharacterID)
			return
		}
		writeJSON(w, http.StatusOK, SuggestionResponse{
			Context:    c,
			Suggestion: best,
			Score:      deps.Engine.Score(c, best),
			Candidates: len(candidates),
		})
	}
}

func handleCombinations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topN := learn.DefaultTopN
		if raw := r.URL.Query().Get("top_n"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid top_n %q", raw)
				return
			}
			topN = n
		}

		id := chi.URLParam(r, "characterID")
		writeJSON(w, http.StatusOK, map[string]any{
			"character_id": id,
			"combinations": deps.Engine.BestCombinations(id, topN),
		})
	}
}

func handleEngagement(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m learn.EngagementMetrics
		if !decodeBody(w, r, maxRequestBodySize, &m) {
			return
		}

		storyID := chi.URLParam(r, "storyID")
		n := deps.Service.Engagement(storyID, m)
		writeJSON(w, http.StatusOK, map[string]any{
			"story_id":         storyID,
			"engagement_score": learn.EngagementScore(m),
			"replayed":         n,
		})
	}
}
