// Package learn implements associative reinforcement over sprite choices.
//
// An Engine keeps five weight tables mapping a context key to a choice key
// to a scalar. Reinforce moves the touched weights toward a success score
// with an exponential moving average and then decays every weight in every
// table, so associations fade unless they keep being reinforced. Missing
// keys always read as 0.0.
package learn

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Default learning parameters.
const (
	DefaultLearningRate = 0.1
	DefaultDecayRate    = 0.95
)

// ErrInvalidWeights is returned when a weights document is malformed.
var ErrInvalidWeights = errors.New("invalid weights")

// Table names a weight table.
type Table string

// Weight tables.
const (
	SceneToPose          Table = "scene_to_pose"
	EmotionToSprite      Table = "emotion_to_sprite"
	ActionToPose         Table = "action_to_pose"
	TimeToLighting       Table = "time_to_lighting"
	CharacterPreferences Table = "character_preferences"
)

// Tables lists every weight table in a fixed order.
var Tables = []Table{SceneToPose, EmotionToSprite, ActionToPose, TimeToLighting, CharacterPreferences}

// unknownPart stands in for a missing pose or emotion in combination keys.
const unknownPart = "unknown"

// Context describes the narrative situation a sprite was chosen for. Empty
// fields are absent.
type Context struct {
	Scene       string `json:"scene,omitempty"`
	Emotion     string `json:"emotion,omitempty"`
	Action      string `json:"action,omitempty"`
	CharacterID string `json:"character_id,omitempty"`
	TimeOfDay   string `json:"time_of_day,omitempty"`
	StoryID     string `json:"story_id,omitempty"`
}

// Choice is the sprite that was chosen. Empty fields are absent.
type Choice struct {
	Pose     string `json:"pose,omitempty"`
	Emotion  string `json:"emotion,omitempty"`
	SpriteID string `json:"sprite_id,omitempty"`
	Lighting string `json:"lighting,omitempty"`
}

// Event is one reinforcement in the engine's history.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Context   Context   `json:"context"`
	Choice    Choice    `json:"sprite_choice"`
	Score     float64   `json:"success_score"`
	Replay    bool      `json:"replay,omitempty"`
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used to timestamp history events.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

type weights map[string]map[string]float64

// Engine holds the weight tables and reinforcement history. It is safe for
// concurrent use.
type Engine struct {
	mu sync.Mutex

	learningRate float64
	decayRate    float64
	tables       map[Table]weights

	history       []Event
	historyOffset int // events counted before the last Load

	clock  Clock
	logger *slog.Logger
}

// New returns an Engine with empty tables. Non-positive rates fall back to
// the defaults.
func New(learningRate, decayRate float64, opts ...Option) *Engine {
	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}
	if decayRate <= 0 {
		decayRate = DefaultDecayRate
	}
	e := &Engine{
		learningRate: learningRate,
		decayRate:    decayRate,
		tables:       emptyTables(),
		clock:        realClock{},
	}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

func emptyTables() map[Table]weights {
	t := make(map[Table]weights, len(Tables))
	for _, name := range Tables {
		t[name] = make(weights)
	}
	return t
}

// LearningRate returns the current learning rate.
func (e *Engine) LearningRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learningRate
}

// DecayRate returns the current decay rate.
func (e *Engine) DecayRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decayRate
}

// Reinforce nudges every table the context and choice apply to toward
// score, records the event, and then decays all weights.
func (e *Engine) Reinforce(c Context, ch Choice, score float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reinforce(c, ch, score, false)
}

func (e *Engine) reinforce(c Context, ch Choice, score float64, replay bool) {
	if c.Scene != "" && ch.Pose != "" {
		e.update(SceneToPose, c.Scene, ch.Pose, score)
	}
	if c.Emotion != "" && ch.Emotion != "" {
		match := 0.5
		if c.Emotion == ch.Emotion {
			match = 1.0
		}
		e.update(EmotionToSprite, c.Emotion, ch.Emotion, score*match)
	}
	if c.Action != "" && ch.Pose != "" {
		e.update(ActionToPose, c.Action, ch.Pose, score)
	}
	if c.TimeOfDay != "" && ch.Lighting != "" {
		e.update(TimeToLighting, c.TimeOfDay, ch.Lighting, score)
	}
	if c.CharacterID != "" {
		e.update(CharacterPreferences, c.CharacterID, ComboKey(ch.Pose, ch.Emotion), score)
	}

	e.history = append(e.history, Event{
		Timestamp: e.clock.Now().UTC(),
		Context:   c,
		Choice:    ch,
		Score:     score,
		Replay:    replay,
	})

	e.decay()
}

func (e *Engine) update(t Table, ctxKey, choiceKey string, target float64) {
	row, ok := e.tables[t][ctxKey]
	if !ok {
		row = make(map[string]float64)
		e.tables[t][ctxKey] = row
	}
	old := row[choiceKey]
	row[choiceKey] = old + e.learningRate*(target-old)
}

func (e *Engine) decay() {
	for _, tbl := range e.tables {
		for _, row := range tbl {
			for k := range row {
				row[k] *= e.decayRate
			}
		}
	}
}

// Weight returns a single weight, 0.0 when absent.
func (e *Engine) Weight(t Table, ctxKey, choiceKey string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.weight(t, ctxKey, choiceKey)
}

func (e *Engine) weight(t Table, ctxKey, choiceKey string) float64 {
	return e.tables[t][ctxKey][choiceKey]
}

// ComboKey returns the character-preference key for a pose and emotion.
func ComboKey(pose, emotion string) string {
	if pose == "" {
		pose = unknownPart
	}
	if emotion == "" {
		emotion = unknownPart
	}
	return pose + "_" + emotion
}
