package store

import "github.com/rcliao/sprite-memory/internal/model"

// CharacterSprites groups one character's sprites by attribute.
type CharacterSprites struct {
	ByPose    map[string][]model.Sprite `json:"by_pose"`
	ByEmotion map[string][]model.Sprite `json:"by_emotion"`
	ByType    map[string][]model.Sprite `json:"by_type"`
}

// FindBestMatch returns the closest sprite for a character. It tries, in
// order: the exact pose and emotion, the pose with a neutral emotion, a
// standing pose with the emotion, and finally any sprite of the character.
// Within a tier the earliest inserted sprite wins.
func (s *Store) FindBestMatch(characterID, pose, emotion string) (model.Sprite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tiers := []Filter{
		{CharacterID: characterID, Pose: pose, Emotion: emotion},
		{CharacterID: characterID, Pose: pose, Emotion: model.DefaultEmotion},
		{CharacterID: characterID, Pose: model.DefaultPose, Emotion: emotion},
		{CharacterID: characterID},
	}
	for i, f := range tiers {
		ids := s.queryIDs(f)
		if len(ids) == 0 {
			continue
		}
		s.logger.Debug("store: best match", "character_id", characterID, "tier", i+1, "sprite_id", ids[0])
		return s.sprites[ids[0]].sprite.Clone(), true
	}
	return model.Sprite{}, false
}

// CharacterSprites groups a character's sprites by pose, emotion, and type.
// Each group keeps insertion order. The result is rebuilt on every call.
func (s *Store) CharacterSprites(characterID string) CharacterSprites {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := CharacterSprites{
		ByPose:    make(map[string][]model.Sprite),
		ByEmotion: make(map[string][]model.Sprite),
		ByType:    make(map[string][]model.Sprite),
	}
	for _, sp := range s.materialize(s.queryIDs(Filter{CharacterID: characterID})) {
		out.ByPose[sp.Pose] = append(out.ByPose[sp.Pose], sp)
		out.ByEmotion[sp.Emotion] = append(out.ByEmotion[sp.Emotion], sp)
		out.ByType[sp.Type] = append(out.ByType[sp.Type], sp)
	}
	return out
}
