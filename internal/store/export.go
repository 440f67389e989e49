package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/rcliao/sprite-memory/internal/model"
)

// ExportManifest returns a snapshot of a character's sprites with distinct
// poses, emotions, and types in first-seen order. An unknown character
// yields an empty manifest.
func (s *Store) ExportManifest(characterID string) model.Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()

	sprites := s.materialize(s.queryIDs(Filter{CharacterID: characterID}))
	m := model.Manifest{
		CharacterID: characterID,
		SpriteCount: len(sprites),
		CreatedAt:   s.clock.Now().UTC(),
		Sprites:     sprites,
		Dimensions:  slices.Clone(s.dims),
		Index: model.ManifestIndex{
			Poses:    []string{},
			Emotions: []string{},
			Types:    []string{},
		},
	}
	for _, sp := range sprites {
		m.Index.Poses = appendUnique(m.Index.Poses, sp.Pose)
		m.Index.Emotions = appendUnique(m.Index.Emotions, sp.Emotion)
		m.Index.Types = appendUnique(m.Index.Types, sp.Type)
	}
	return m
}

// ImportManifest stores every sprite in a manifest and returns how many were
// stored. The whole manifest is validated before anything is written.
func (s *Store) ImportManifest(ctx context.Context, m model.Manifest) (int, error) {
	for i, sp := range m.Sprites {
		if sp.ID == "" {
			return 0, fmt.Errorf("%w: sprite %d: missing sprite_id", ErrInvalidManifest, i)
		}
		if sp.CharacterID == "" {
			return 0, fmt.Errorf("%w: sprite %s: missing character_id", ErrInvalidManifest, sp.ID)
		}
	}

	ids, err := s.PutBatch(ctx, m.Sprites)
	if err != nil {
		return len(ids), fmt.Errorf("import manifest %s: %w", m.CharacterID, err)
	}
	s.logger.Info("store: imported manifest", "character_id", m.CharacterID, "sprites", len(ids))
	return len(ids), nil
}

// DecodeManifest reads a JSON manifest. A document without a sprites array
// is rejected.
func DecodeManifest(r io.Reader) (model.Manifest, error) {
	var raw struct {
		model.Manifest
		Sprites *[]model.Sprite `json:"sprites"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return model.Manifest{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if raw.Sprites == nil {
		return model.Manifest{}, fmt.Errorf("%w: missing sprites", ErrInvalidManifest)
	}
	m := raw.Manifest
	m.Sprites = *raw.Sprites
	return m, nil
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
