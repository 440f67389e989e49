// Package store provides the indexed sprite store and its SQLite backend.
//
// The Store keeps every sprite in memory with secondary indices over
// character, pose, and emotion, and memoises query results until a write
// touches them. A Backend, when configured, receives every write before the
// in-memory state changes so a failed write leaves the store untouched.
package store

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/rcliao/sprite-memory/internal/model"
)

// ErrInvalidManifest is returned when a manifest is structurally malformed.
var ErrInvalidManifest = errors.New("invalid manifest")

// Indexed dimension names.
const (
	DimCharacter = "character"
	DimPose      = "pose"
	DimEmotion   = "emotion"
	DimType      = "type"
)

// DefaultDimensions are used when no dimensions are configured.
var DefaultDimensions = []string{DimCharacter, DimPose, DimEmotion, DimType}

// Filter selects sprites. Empty fields match everything; set fields are
// combined with AND. Metadata entries are compared for equality.
type Filter struct {
	CharacterID string         `json:"character_id,omitempty"`
	Pose        string         `json:"pose,omitempty"`
	Emotion     string         `json:"emotion,omitempty"`
	SpriteType  string         `json:"sprite_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Record is a persisted sprite with its insertion sequence number.
type Record struct {
	Sprite model.Sprite
	Seq    uint64
}

// Frame maps a video timestamp to a sprite for one character.
type Frame struct {
	CharacterID string  `json:"character_id"`
	Timestamp   float64 `json:"timestamp"`
	SpriteID    string  `json:"sprite_id"`
}

// Backend persists sprites and frames.
type Backend interface {
	// SaveSprite inserts or replaces a sprite.
	SaveSprite(ctx context.Context, r Record) error

	// DeleteCharacter removes all sprites and frames for a character.
	DeleteCharacter(ctx context.Context, characterID string) error

	// LoadSprites returns every persisted sprite in sequence order.
	LoadSprites(ctx context.Context) ([]Record, error)

	// SaveFrame inserts or replaces one timeline entry.
	SaveFrame(ctx context.Context, f Frame) error

	// LoadFrames returns every persisted timeline entry.
	LoadFrames(ctx context.Context) ([]Frame, error)

	// Close closes the backend.
	Close() error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Option configures a Store.
type Option func(*Store)

// WithDimensions sets the indexed dimensions. Character, pose, and emotion
// are always indexed; "type" is indexed only when listed.
func WithDimensions(dims ...string) Option {
	return func(s *Store) {
		s.dims = normalizeDimensions(dims)
	}
}

// WithBackend enables write-through persistence.
func WithBackend(b Backend) Option {
	return func(s *Store) { s.backend = b }
}

// WithClock overrides the clock used for created_at and manifest timestamps.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func normalizeDimensions(dims []string) []string {
	out := []string{DimCharacter, DimPose, DimEmotion}
	for _, d := range dims {
		if d != "" && !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}
