// Package pipeline resolves story scenes to sprites by combining the
// binder, the sprite store, and the learning engine.
//
// For each scene the Service binds the text, asks the engine to rank the
// character's stored sprites, falls back to the store's tiered match, and
// finally asks a Generator for a new sprite. Every resolved scene is
// reinforced with a base score that later feedback can correct.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rcliao/sprite-memory/internal/binder"
	"github.com/rcliao/sprite-memory/internal/learn"
	"github.com/rcliao/sprite-memory/internal/metrics"
	"github.com/rcliao/sprite-memory/internal/model"
	"github.com/rcliao/sprite-memory/internal/store"
)

// Defaults used when Deps leaves a field zero.
const (
	DefaultBaseScore   = 0.8
	DefaultConcurrency = 4
)

var (
	// ErrNoCharacter is returned when a scene names no known character.
	ErrNoCharacter = errors.New("no character found in scene")

	// ErrInvalidScore is returned for feedback scores outside [0,1].
	ErrInvalidScore = errors.New("score must be between 0 and 1")
)

// Source tells where a scene's sprite came from.
type Source string

const (
	SourceLearned   Source = "learned"
	SourceFallback  Source = "fallback"
	SourceGenerated Source = "generated"
	SourceMiss      Source = "miss"
	SourceSkipped   Source = "skipped"
)

// SpriteRequest describes a sprite to generate.
type SpriteRequest struct {
	CharacterID string   `json:"character_id"`
	Pose        string   `json:"pose"`
	Emotion     string   `json:"emotion"`
	Setting     string   `json:"setting"`
	TimeOfDay   string   `json:"time_of_day"`
	Objects     []string `json:"objects,omitempty"`
	SceneText   string   `json:"scene_text"`
}

// Generator produces new sprites. Implementations call out to an image
// provider and return the stored image's URL in the sprite.
type Generator interface {
	GenerateSprite(ctx context.Context, req SpriteRequest) (model.Sprite, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req SpriteRequest) (model.Sprite, error)

// GenerateSprite calls f.
func (f GeneratorFunc) GenerateSprite(ctx context.Context, req SpriteRequest) (model.Sprite, error) {
	return f(ctx, req)
}

// Deps holds the Service's collaborators. Store and Engine are required.
type Deps struct {
	Store       *store.Store
	Engine      *learn.Engine
	Generator   Generator
	Metrics     *metrics.Recorder
	Logger      *slog.Logger
	BaseScore   float64
	Concurrency int
}

// Service resolves scenes and stories.
type Service struct {
	store       *store.Store
	engine      *learn.Engine
	generator   Generator
	metrics     *metrics.Recorder
	logger      *slog.Logger
	baseScore   float64
	concurrency int
}

// New creates a Service.
func New(d Deps) *Service {
	s := &Service{
		store:       d.Store,
		engine:      d.Engine,
		generator:   d.Generator,
		metrics:     d.Metrics,
		logger:      d.Logger,
		baseScore:   d.BaseScore,
		concurrency: d.Concurrency,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.baseScore <= 0 {
		s.baseScore = DefaultBaseScore
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	return s
}

// SceneResult is the outcome of resolving one scene.
type SceneResult struct {
	Index       int                `json:"index"`
	Text        string             `json:"scene_text"`
	Binding     binder.Binding     `json:"binding"`
	Requirement binder.Requirement `json:"requirements"`
	Sprite      *model.Sprite      `json:"sprite,omitempty"`
	Source      Source             `json:"source"`
	Error       string             `json:"error,omitempty"`
}

// ResolveScene binds text against mapping and resolves it to a sprite,
// generating one when the character has none. storyID, when set, tags the
// reinforcement so engagement feedback can replay it.
func (s *Service) ResolveScene(ctx context.Context, text string, mapping []binder.Character, storyID string) (SceneResult, error) {
	b := binder.New()
	b.SetCharacterMapping(mapping)
	res := newResult(0, b.Bind(text))

	if res.Requirement.CharacterID == "" {
		res.Source = SourceSkipped
		s.metrics.RecordScene(string(res.Source))
		return res, ErrNoCharacter
	}

	if !s.lookup(&res) && s.generator != nil {
		sp, err := s.generate(ctx, requestFor(res))
		if err != nil {
			return res, err
		}
		if sp, err = s.keep(ctx, sp); err != nil {
			return res, err
		}
		res.Sprite, res.Source = &sp, SourceGenerated
	}

	s.reinforce(res, storyID)
	s.metrics.RecordScene(string(res.Source))
	return res, nil
}

func newResult(i int, b binder.Binding) SceneResult {
	return SceneResult{
		Index:       i,
		Text:        b.Text,
		Binding:     b,
		Requirement: b.Requirement(),
		Source:      SourceMiss,
	}
}

// lookup fills res with a stored sprite. A suggestion is used only when
// learned weights back it and it scores above zero; otherwise the store's
// tiered match decides.
func (s *Service) lookup(res *SceneResult) bool {
	req := res.Requirement
	ctx := learnContext(*res, "")

	candidates := learn.CandidatesFrom(s.store.Query(store.Filter{CharacterID: req.CharacterID}))
	if best, ok := s.engine.Suggest(ctx, candidates); ok && s.engine.Learned(ctx, best) && s.engine.Score(ctx, best) > 0 {
		if sp, ok := s.store.Get(best.SpriteID); ok {
			res.Sprite, res.Source = &sp, SourceLearned
			return true
		}
	}

	if sp, ok := s.store.FindBestMatch(req.CharacterID, req.Pose, req.Emotion); ok {
		res.Sprite, res.Source = &sp, SourceFallback
		return true
	}
	return false
}

func (s *Service) generate(ctx context.Context, req SpriteRequest) (model.Sprite, error) {
	start := time.Now()
	sp, err := s.generator.GenerateSprite(ctx, req)
	s.metrics.RecordGeneration(time.Since(start), err)
	if err != nil {
		return model.Sprite{}, fmt.Errorf("generate sprite for %s: %w", req.CharacterID, err)
	}

	if sp.CharacterID == "" {
		sp.CharacterID = req.CharacterID
	}
	if sp.Pose == "" {
		sp.Pose = req.Pose
	}
	if sp.Emotion == "" {
		sp.Emotion = req.Emotion
	}
	if sp.Type == "" {
		sp.Type = model.TypeCharacter
	}
	return sp, nil
}

// keep stores a generated sprite and returns it as stored.
func (s *Service) keep(ctx context.Context, sp model.Sprite) (model.Sprite, error) {
	id, err := s.store.Put(ctx, sp)
	if err != nil {
		return model.Sprite{}, fmt.Errorf("store generated sprite: %w", err)
	}
	s.metrics.SetSprites(s.store.Stats().TotalSprites)
	stored, _ := s.store.Get(id)
	s.logger.Info("pipeline: stored generated sprite", "sprite_id", id, "character_id", stored.CharacterID,
		"pose", stored.Pose, "emotion", stored.Emotion)
	return stored, nil
}

// reinforce records the scene's requirement as a successful choice.
func (s *Service) reinforce(res SceneResult, storyID string) {
	if res.Sprite == nil {
		return
	}
	req := res.Requirement
	s.engine.Reinforce(learnContext(res, storyID), learn.Choice{
		Pose:     req.Pose,
		Emotion:  req.Emotion,
		SpriteID: res.Sprite.ID,
	}, s.baseScore)
	s.metrics.RecordReinforcement("pipeline", 1)
}

func learnContext(res SceneResult, storyID string) learn.Context {
	c := learn.Context{
		Scene:       res.Requirement.Background.Setting,
		Emotion:     res.Requirement.Emotion,
		CharacterID: res.Requirement.CharacterID,
		TimeOfDay:   res.Requirement.Background.Time,
		StoryID:     storyID,
	}
	if len(res.Binding.Actions) > 0 {
		c.Action = strings.ToLower(res.Binding.Actions[0])
	}
	return c
}

func requestFor(res SceneResult) SpriteRequest {
	req := res.Requirement
	return SpriteRequest{
		CharacterID: req.CharacterID,
		Pose:        req.Pose,
		Emotion:     req.Emotion,
		Setting:     req.Background.Setting,
		TimeOfDay:   req.Background.Time,
		Objects:     req.Objects,
		SceneText:   res.Text,
	}
}

// FeedbackRequest is an explicit success signal for a past choice.
type FeedbackRequest struct {
	Context learn.Context `json:"context"`
	Choice  learn.Choice  `json:"sprite_choice"`
	Score   float64       `json:"success_score"`
}

// Feedback reinforces a choice with a user-provided score.
func (s *Service) Feedback(_ context.Context, fb FeedbackRequest) error {
	if fb.Score < 0 || fb.Score > 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidScore, fb.Score)
	}
	s.engine.Reinforce(fb.Context, fb.Choice, fb.Score)
	s.metrics.RecordReinforcement("feedback", 1)
	return nil
}

// Engagement replays a story's choices against its engagement metrics and
// returns the number of choices replayed.
func (s *Service) Engagement(storyID string, m learn.EngagementMetrics) int {
	n := s.engine.OptimizeForEngagement(storyID, m)
	s.metrics.RecordReinforcement("engagement", n)
	return n
}
