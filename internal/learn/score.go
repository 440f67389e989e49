package learn

import (
	"cmp"
	"slices"

	"github.com/rcliao/sprite-memory/internal/model"
)

// DefaultTopN is the default number of combinations returned.
const DefaultTopN = 5

// Candidate is a sprite offered to Suggest.
type Candidate struct {
	SpriteID string `json:"sprite_id"`
	Pose     string `json:"pose,omitempty"`
	Emotion  string `json:"emotion,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Combination is a character-preference entry.
type Combination struct {
	Key    string  `json:"key"`
	Weight float64 `json:"weight"`
}

// CandidatesFrom converts stored sprites into candidates, keeping order.
func CandidatesFrom(sprites []model.Sprite) []Candidate {
	out := make([]Candidate, len(sprites))
	for i, sp := range sprites {
		out[i] = Candidate{SpriteID: sp.ID, Pose: sp.Pose, Emotion: sp.Emotion, URL: sp.URL}
	}
	return out
}

// Score returns the mean of the learned signals that apply to a candidate.
// An exact emotion match adds a flat 1.0 on top of the learned emotion
// weight. The character preference counts twice. With no applicable signal
// the score is 0.0.
func (e *Engine) Score(c Context, cand Candidate) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score(c, cand)
}

func (e *Engine) score(c Context, cand Candidate) float64 {
	var sum float64
	var n int

	if c.Scene != "" && cand.Pose != "" {
		sum += e.weight(SceneToPose, c.Scene, cand.Pose)
		n++
	}
	if c.Emotion != "" && cand.Emotion != "" {
		if c.Emotion == cand.Emotion {
			sum += 1.0
		}
		sum += e.weight(EmotionToSprite, c.Emotion, cand.Emotion)
		n++
	}
	if c.Action != "" && cand.Pose != "" {
		sum += e.weight(ActionToPose, c.Action, cand.Pose)
		n++
	}
	if c.CharacterID != "" {
		sum += 2 * e.weight(CharacterPreferences, c.CharacterID, ComboKey(cand.Pose, cand.Emotion))
		n += 2
	}

	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Learned reports whether any learned weight applies to cand in context c.
// The flat emotion-match bonus alone does not count.
func (e *Engine) Learned(c Context, cand Candidate) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case c.Scene != "" && cand.Pose != "" && e.weight(SceneToPose, c.Scene, cand.Pose) != 0:
		return true
	case c.Emotion != "" && cand.Emotion != "" && e.weight(EmotionToSprite, c.Emotion, cand.Emotion) != 0:
		return true
	case c.Action != "" && cand.Pose != "" && e.weight(ActionToPose, c.Action, cand.Pose) != 0:
		return true
	case c.CharacterID != "" && e.weight(CharacterPreferences, c.CharacterID, ComboKey(cand.Pose, cand.Emotion)) != 0:
		return true
	}
	return false
}

// Suggest returns the highest scoring candidate. Ties go to the earlier
// candidate. It reports false when there are no candidates.
func (e *Engine) Suggest(c Context, candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	type scored struct {
		cand  Candidate
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, cand := range candidates {
		ranked[i] = scored{cand, e.score(c, cand)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	e.logger.Debug("learn: suggestion", "sprite_id", ranked[0].cand.SpriteID, "score", ranked[0].score, "candidates", len(candidates))
	return ranked[0].cand, true
}

// BestCombinations returns up to topN of a character's preferred
// pose/emotion combinations, strongest first. Equal weights are ordered by
// key.
func (e *Engine) BestCombinations(characterID string, topN int) []Combination {
	e.mu.Lock()
	defer e.mu.Unlock()

	row := e.tables[CharacterPreferences][characterID]
	out := make([]Combination, 0, len(row))
	for k, w := range row {
		out = append(out, Combination{Key: k, Weight: w})
	}
	slices.SortFunc(out, func(a, b Combination) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if topN >= 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
