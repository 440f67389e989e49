package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rcliao/sprite-memory/internal/binder"
	"github.com/rcliao/sprite-memory/internal/pipeline"
)

// SceneRequest is the body of the scene and story endpoints.
type SceneRequest struct {
	Text       string             `json:"text"`
	Characters []binder.Character `json:"character_mappings"`
	StoryID    string             `json:"story_id,omitempty"`
}

// BindResponse is returned by POST /scenes/bind.
type BindResponse struct {
	Binding     binder.Binding     `json:"binding"`
	Requirement binder.Requirement `json:"requirements"`
}

func decodeScene(w http.ResponseWriter, r *http.Request) (SceneRequest, bool) {
	var req SceneRequest
	if !decodeBody(w, r, maxRequestBodySize, &req) {
		return req, false
	}
	if strings.TrimSpace(req.Text) == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
		return req, false
	}
	return req, true
}

func handleBind(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeScene(w, r)
		if !ok {
			return
		}

		b := binder.New()
		b.SetCharacterMapping(req.Characters)
		bd := b.Bind(req.Text)
		writeJSON(w, http.StatusOK, BindResponse{Binding: bd, Requirement: bd.Requirement()})
	}
}

func handleResolve(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeScene(w, r)
		if !ok {
			return
		}

		res, err := deps.Service.ResolveScene(r.Context(), req.Text, req.Characters, req.StoryID)
		switch {
		case errors.Is(err, pipeline.ErrNoCharacter):
			httpError(w, http.StatusUnprocessableEntity, "no_character", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusBadGateway, "api_error", "resolve scene: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleProcessStory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeScene(w, r)
		if !ok {
			return
		}

		out, err := deps.Service.ProcessStory(r.Context(), req.Text, req.Characters)
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				code = http.StatusServiceUnavailable
			}
			httpError(w, code, "api_error", "process story: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
