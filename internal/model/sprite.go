// Package model defines the core sprite data types.
package model

import "time"

// Sprite is a single generated character image tagged with a pose and emotion.
type Sprite struct {
	ID           string         `json:"sprite_id"`
	CharacterID  string         `json:"character_id"`
	Type         string         `json:"sprite_type"`
	Pose         string         `json:"pose"`
	Emotion      string         `json:"emotion"`
	URL          string         `json:"url"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Clone returns a copy of s that shares no mutable state with it.
func (s Sprite) Clone() Sprite {
	if s.Metadata != nil {
		s.Metadata = cloneMap(s.Metadata)
	}
	return s
}

// cloneMap deep-copies the map and slice values JSON decoding produces.
func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		if v == nil {
			return v
		}
		return cloneMap(v)
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		if v == nil {
			return v
		}
		return append([]string(nil), v...)
	}
	return v
}

// Manifest is a portable snapshot of one character's sprite set.
type Manifest struct {
	CharacterID string        `json:"character_id"`
	SpriteCount int           `json:"sprite_count"`
	CreatedAt   time.Time     `json:"created_at"`
	Sprites     []Sprite      `json:"sprites"`
	Dimensions  []string      `json:"dimensions,omitempty"`
	Index       ManifestIndex `json:"index"`
}

// ManifestIndex summarises the distinct attribute values in a manifest.
type ManifestIndex struct {
	Poses    []string `json:"poses"`
	Emotions []string `json:"emotions"`
	Types    []string `json:"types"`
}

// Sprite types used by the generation pipeline.
const (
	TypeCharacter = "character"
	TypeFamily    = "family"
	TypePet       = "pet"
	TypeItem      = "item"
	TypeAction    = "action"
)

// Canonical defaults shared by the binder and the store's fallback tiers.
const (
	DefaultPose    = "standing"
	DefaultEmotion = "neutral"
)
