package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rcliao/sprite-memory/internal/model"
	"github.com/rcliao/sprite-memory/internal/store"
)

// FrameRequest is the body of POST /characters/{id}/frames.
type FrameRequest struct {
	Timestamp *float64     `json:"timestamp"`
	Sprite    model.Sprite `json:"sprite"`
}

func handlePutSprite(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sp model.Sprite
		if !decodeBody(w, r, maxRequestBodySize, &sp) {
			return
		}
		if sp.CharacterID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "character_id is required")
			return
		}

		id, err := deps.Store.Put(r.Context(), sp)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "store sprite: %v", err)
			return
		}
		deps.Metrics.SetSprites(deps.Store.Stats().TotalSprites)
		writeJSON(w, http.StatusCreated, map[string]string{"sprite_id": id})
	}
}

func handleQuerySprites(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sprites := deps.Store.Query(store.Filter{
			CharacterID: q.Get("character_id"),
			Pose:        q.Get("pose"),
			Emotion:     q.Get("emotion"),
			SpriteType:  q.Get("sprite_type"),
		})
		writeJSON(w, http.StatusOK, map[string]any{"sprites": sprites, "count": len(sprites)})
	}
}

func handleGetSprite(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sp, ok := deps.Store.Get(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "sprite %q not found", id)
			return
		}
		writeJSON(w, http.StatusOK, sp)
	}
}

func handleCharacterSprites(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Store.CharacterSprites(chi.URLParam(r, "id")))
	}
}

func handlePurgeCharacter(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := deps.Store.PurgeCharacter(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "purge character: %v", err)
			return
		}
		deps.Metrics.SetSprites(deps.Store.Stats().TotalSprites)
		writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
	}
}

func handleMatch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		pose, emotion := r.URL.Query().Get("pose"), r.URL.Query().Get("emotion")
		sp, ok := deps.Store.FindBestMatch(id, pose, emotion)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "no sprite for character %q", id)
			return
		}
		writeJSON(w, http.StatusOK, sp)
	}
}

func handleExportManifest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Store.ExportManifest(chi.URLParam(r, "id")))
	}
}

func handleImportManifest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxManifestBodySize)
		defer r.Body.Close()

		m, err := store.DecodeManifest(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		n, err := deps.Store.ImportManifest(r.Context(), m)
		switch {
		case errors.Is(err, store.ErrInvalidManifest):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "import manifest: %v", err)
			return
		}
		deps.Metrics.SetSprites(deps.Store.Stats().TotalSprites)
		writeJSON(w, http.StatusOK, map[string]int{"imported": n})
	}
}

func handlePutFrame(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req FrameRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if req.Timestamp == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "timestamp is required")
			return
		}
		if req.Sprite.CharacterID == "" {
			req.Sprite.CharacterID = id
		}
		if req.Sprite.CharacterID != id {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"sprite character %q does not match %q", req.Sprite.CharacterID, id)
			return
		}

		spriteID, err := deps.Store.PutTemporal(r.Context(), req.Sprite, *req.Timestamp)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "store frame: %v", err)
			return
		}
		deps.Metrics.SetSprites(deps.Store.Stats().TotalSprites)
		writeJSON(w, http.StatusCreated, map[string]any{"sprite_id": spriteID, "timestamp": *req.Timestamp})
	}
}

// handleFrames lists a character's frames, or resolves the nearest frame
// when a "t" query parameter is given.
func handleFrames(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		raw := r.URL.Query().Get("t")
		if raw == "" {
			writeJSON(w, http.StatusOK, map[string]any{"frames": deps.Store.Frames(id)})
			return
		}

		ts, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid timestamp %q", raw)
			return
		}
		sp, ok := deps.Store.FrameSprite(id, ts)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "no frames for character %q", id)
			return
		}
		writeJSON(w, http.StatusOK, sp)
	}
}
