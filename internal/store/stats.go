package store

import (
	"cmp"
	"os"
	"slices"
)

// Stats holds store statistics.
type Stats struct {
	TotalSprites int      `json:"total_sprites"`
	Characters   int      `json:"characters"`
	Poses        int      `json:"poses"`
	Emotions     int      `json:"emotions"`
	Types        int      `json:"types"`
	CacheSize    int      `json:"cache_size"`
	Frames       int      `json:"frames"`
	Dimensions   []string `json:"dimensions"`
	DBPath       string   `json:"db_path,omitempty"`
	DBSizeBytes  int64    `json:"db_size_bytes,omitempty"`
}

// CharacterCount holds per-character sprite counts.
type CharacterCount struct {
	CharacterID string `json:"character_id"`
	Sprites     int    `json:"sprites"`
	Poses       int    `json:"poses"`
	Emotions    int    `json:"emotions"`
}

// Stats returns store statistics. Types counts distinct sprite types even
// when type is not an indexed dimension.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make(map[string]struct{})
	for _, e := range s.sprites {
		types[e.sprite.Type] = struct{}{}
	}
	frames := 0
	for _, tl := range s.frames {
		frames += len(tl)
	}

	st := Stats{
		TotalSprites: len(s.sprites),
		Characters:   len(s.byCharacter),
		Poses:        len(s.byPose),
		Emotions:     len(s.byEmotion),
		Types:        len(types),
		CacheSize:    len(s.cache),
		Frames:       frames,
		Dimensions:   slices.Clone(s.dims),
	}

	if p, ok := s.backend.(interface{ Path() string }); ok && p.Path() != MemoryDB {
		st.DBPath = p.Path()
		if info, err := os.Stat(st.DBPath); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}
	return st
}

// Characters returns per-character counts, largest first.
func (s *Store) Characters() []CharacterCount {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CharacterCount, 0, len(s.byCharacter))
	for id, ids := range s.byCharacter {
		poses := make(map[string]struct{})
		emotions := make(map[string]struct{})
		for sid := range ids {
			sp := s.sprites[sid].sprite
			poses[sp.Pose] = struct{}{}
			emotions[sp.Emotion] = struct{}{}
		}
		out = append(out, CharacterCount{
			CharacterID: id,
			Sprites:     len(ids),
			Poses:       len(poses),
			Emotions:    len(emotions),
		})
	}
	slices.SortFunc(out, func(a, b CharacterCount) int {
		if c := cmp.Compare(b.Sprites, a.Sprites); c != 0 {
			return c
		}
		return cmp.Compare(a.CharacterID, b.CharacterID)
	})
	return out
}
