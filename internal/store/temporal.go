package store

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/rcliao/sprite-memory/internal/model"
)

// PutTemporal stores a sprite and records it on its character's timeline at
// the given timestamp. A later call for the same timestamp replaces the
// earlier entry.
func (s *Store) PutTemporal(ctx context.Context, sp model.Sprite, timestamp float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.put(ctx, sp)
	if err != nil {
		return "", err
	}

	f := Frame{CharacterID: sp.CharacterID, Timestamp: timestamp, SpriteID: id}
	if s.backend != nil {
		if err := s.backend.SaveFrame(ctx, f); err != nil {
			return id, fmt.Errorf("save frame %s@%g: %w", f.CharacterID, timestamp, err)
		}
	}
	s.setFrame(f)
	return id, nil
}

// FrameSprite returns the sprite recorded at timestamp for a character, or
// the one at the nearest recorded timestamp. Equidistant timestamps resolve
// to the earlier one.
func (s *Store) FrameSprite(characterID string, timestamp float64) (model.Sprite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timeline := s.frames[characterID]
	if len(timeline) == 0 {
		return model.Sprite{}, false
	}

	id, ok := timeline[timestamp]
	if !ok {
		best, bestDiff := 0.0, math.Inf(1)
		for ts := range timeline {
			d := math.Abs(ts - timestamp)
			if d < bestDiff || (d == bestDiff && ts < best) {
				best, bestDiff = ts, d
			}
		}
		id = timeline[best]
	}

	e, ok := s.sprites[id]
	if !ok {
		return model.Sprite{}, false
	}
	return e.sprite.Clone(), true
}

// Frames returns a character's timeline ordered by timestamp.
func (s *Store) Frames(characterID string) []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Frame, 0, len(s.frames[characterID]))
	for ts, id := range s.frames[characterID] {
		out = append(out, Frame{CharacterID: characterID, Timestamp: ts, SpriteID: id})
	}
	slices.SortFunc(out, func(a, b Frame) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return out
}

func (s *Store) setFrame(f Frame) {
	timeline, ok := s.frames[f.CharacterID]
	if !ok {
		timeline = make(map[float64]string)
		s.frames[f.CharacterID] = timeline
	}
	timeline[f.Timestamp] = f.SpriteID
}
