package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/sprite-memory/internal/binder"
	"github.com/rcliao/sprite-memory/internal/model"
	"github.com/rcliao/sprite-memory/internal/store"
)

// StoryResult is the outcome of processing a whole story.
type StoryResult struct {
	StoryID     string             `json:"story_id"`
	TotalScenes int                `json:"total_scenes"`
	Scenes      []SceneResult      `json:"scenes"`
	Characters  []binder.Character `json:"character_mappings"`
	Generated   int                `json:"generated"`
	CreatedAt   time.Time          `json:"created_at"`
}

type spriteKey struct {
	characterID, pose, emotion string
}

type generation struct {
	req    SpriteRequest
	sprite model.Sprite
	err    error
}

// ProcessStory splits a story into scenes and resolves each one. Sprites
// for characters with nothing stored are generated concurrently, one per
// distinct character, pose, and emotion. Generated sprites are then stored
// and every scene is resolved and reinforced in document order, so later
// scenes rank candidates with what earlier ones reinforced.
//
// A failed generation marks its scenes with an error and does not fail the
// story; only context cancellation does.
func (s *Service) ProcessStory(ctx context.Context, text string, mapping []binder.Character) (StoryResult, error) {
	b := binder.New()
	b.SetCharacterMapping(mapping)
	bindings := b.ParseStory(text)

	out := StoryResult{
		StoryID:    uuid.New().String(),
		Scenes:     make([]SceneResult, len(bindings)),
		Characters: b.CharacterMapping(),
		CreatedAt:  time.Now().UTC(),
	}
	for i, bd := range bindings {
		out.Scenes[i] = newResult(i, bd)
	}

	gens, order := s.plan(out.Scenes)
	if err := s.generateAll(ctx, gens, order); err != nil {
		return out, err
	}

	stored := make(map[spriteKey]model.Sprite)
	for _, k := range order {
		g := gens[k]
		if g.err != nil {
			continue
		}
		sp, err := s.keep(ctx, g.sprite)
		if err != nil {
			g.err = err
			continue
		}
		stored[k] = sp
		out.Generated++
	}

	for i := range out.Scenes {
		res := &out.Scenes[i]
		req := res.Requirement
		if req.CharacterID == "" {
			res.Source = SourceSkipped
			res.Error = ErrNoCharacter.Error()
			s.metrics.RecordScene(string(res.Source))
			continue
		}

		k := spriteKey{req.CharacterID, req.Pose, req.Emotion}
		if sp, ok := stored[k]; ok {
			res.Sprite, res.Source = &sp, SourceGenerated
		} else if g, ok := gens[k]; ok && g.err != nil {
			res.Error = g.err.Error()
		} else {
			s.lookup(res)
		}

		s.reinforce(*res, out.StoryID)
		s.metrics.RecordScene(string(res.Source))
	}

	out.TotalScenes = len(out.Scenes)
	s.logger.Info("pipeline: processed story", "story_id", out.StoryID, "scenes", out.TotalScenes, "generated", out.Generated)
	return out, nil
}

// plan returns one generation per distinct sprite needed by scenes whose
// character has no stored sprites, in first-seen order.
func (s *Service) plan(scenes []SceneResult) (map[spriteKey]*generation, []spriteKey) {
	gens := make(map[spriteKey]*generation)
	var order []spriteKey
	if s.generator == nil {
		return gens, order
	}

	for _, res := range scenes {
		req := res.Requirement
		if req.CharacterID == "" {
			continue
		}
		if len(s.store.Query(store.Filter{CharacterID: req.CharacterID})) > 0 {
			continue
		}
		k := spriteKey{req.CharacterID, req.Pose, req.Emotion}
		if _, ok := gens[k]; ok {
			continue
		}
		gens[k] = &generation{req: requestFor(res)}
		order = append(order, k)
	}
	return gens, order
}

func (s *Service) generateAll(ctx context.Context, gens map[spriteKey]*generation, order []spriteKey) error {
	if len(order) == 0 {
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, k := range order {
		gen := gens[k]
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			gen.sprite, gen.err = s.generate(gCtx, gen.req)
			if gen.err != nil {
				s.logger.Warn("pipeline: generation failed", "character_id", gen.req.CharacterID, "err", gen.err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
