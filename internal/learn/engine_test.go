package learn

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rcliao/sprite-memory/internal/model"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(DefaultLearningRate, DefaultDecayRate,
		WithClock(fixedClock{time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}))
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestReinforceSequence(t *testing.T) {
	e := newTestEngine(t)
	c := Context{Scene: "bedroom"}
	ch := Choice{Pose: "sitting"}

	e.Reinforce(c, ch, 0.9)
	first := e.Weight(SceneToPose, "bedroom", "sitting")
	if !approx(first, 0.0855) {
		t.Fatalf("expected 0.0855 after first reinforcement, got %v", first)
	}

	e.Reinforce(c, ch, 0.9)
	second := e.Weight(SceneToPose, "bedroom", "sitting")
	// (0.0855 + 0.1*(0.9-0.0855)) * 0.95
	if !approx(second, 0.1586025) {
		t.Errorf("expected 0.1586025 after second reinforcement, got %v", second)
	}
	if second <= first || second >= 0.9 {
		t.Errorf("expected weight to grow toward 0.9, got %v then %v", first, second)
	}
}

func TestDecayIsGlobal(t *testing.T) {
	e := newTestEngine(t)

	e.Reinforce(Context{Scene: "bedroom"}, Choice{Pose: "sitting"}, 0.9)
	before := e.Weight(SceneToPose, "bedroom", "sitting")

	e.Reinforce(Context{Scene: "park"}, Choice{Pose: "running"}, 0.9)
	after := e.Weight(SceneToPose, "bedroom", "sitting")

	if after >= before {
		t.Errorf("expected untouched weight to decay, got %v then %v", before, after)
	}
	if !approx(after, 0.0855*0.95) {
		t.Errorf("expected %v, got %v", 0.0855*0.95, after)
	}
}

func TestReinforceTables(t *testing.T) {
	e := newTestEngine(t)

	e.Reinforce(
		Context{Scene: "bedroom", Emotion: "worried", Action: "sat", CharacterID: "child_1", TimeOfDay: "night"},
		Choice{Pose: "sitting", Emotion: "sad", Lighting: "dim"},
		0.8,
	)

	tests := []struct {
		table       Table
		ctx, choice string
		want        float64
	}{
		{SceneToPose, "bedroom", "sitting", 0.08 * 0.95},
		{EmotionToSprite, "worried", "sad", 0.04 * 0.95},
		{ActionToPose, "sat", "sitting", 0.08 * 0.95},
		{TimeToLighting, "night", "dim", 0.08 * 0.95},
		{CharacterPreferences, "child_1", "sitting_sad", 0.08 * 0.95},
	}
	for _, tt := range tests {
		if got := e.Weight(tt.table, tt.ctx, tt.choice); !approx(got, tt.want) {
			t.Errorf("%s[%s][%s]: expected %v, got %v", tt.table, tt.ctx, tt.choice, tt.want, got)
		}
	}

	if got := e.Weight(SceneToPose, "kitchen", "sitting"); got != 0 {
		t.Errorf("expected 0 for missing key, got %v", got)
	}
	if got := e.Weight("no_such_table", "a", "b"); got != 0 {
		t.Errorf("expected 0 for missing table, got %v", got)
	}
}

func TestComboKeyUnknownParts(t *testing.T) {
	e := newTestEngine(t)
	e.Reinforce(Context{CharacterID: "c"}, Choice{Emotion: "happy"}, 1.0)

	if got := e.Weight(CharacterPreferences, "c", "unknown_happy"); got == 0 {
		t.Error("expected weight under 'unknown_happy'")
	}
	if got := ComboKey("", ""); got != "unknown_unknown" {
		t.Errorf("expected 'unknown_unknown', got %q", got)
	}
}

func TestSuggestEmotionBonus(t *testing.T) {
	e := newTestEngine(t)
	ctx := Context{Emotion: "happy"}
	candidates := []Candidate{
		{SpriteID: "sad", Pose: "standing", Emotion: "sad"},
		{SpriteID: "happy", Pose: "standing", Emotion: "happy"},
	}

	got, ok := e.Suggest(ctx, candidates)
	if !ok {
		t.Fatal("expected a suggestion")
	}
	if got.SpriteID != "happy" {
		t.Errorf("expected exact emotion match to win, got %q", got.SpriteID)
	}
	if s0, s1 := e.Score(ctx, candidates[0]), e.Score(ctx, candidates[1]); s1 <= s0 {
		t.Errorf("expected exact match to score higher, got %v vs %v", s1, s0)
	}
}

func TestSuggestTiesKeepInputOrder(t *testing.T) {
	e := newTestEngine(t)
	candidates := []Candidate{{SpriteID: "a"}, {SpriteID: "b"}, {SpriteID: "c"}}

	got, ok := e.Suggest(Context{Scene: "bedroom"}, candidates)
	if !ok || got.SpriteID != "a" {
		t.Errorf("expected first candidate on a tie, got %q", got.SpriteID)
	}
	if s := e.Score(Context{}, candidates[0]); s != 0 {
		t.Errorf("expected 0 with no signals, got %v", s)
	}
}

func TestSuggestEmpty(t *testing.T) {
	e := newTestEngine(t)
	if _, ok := e.Suggest(Context{Scene: "bedroom"}, nil); ok {
		t.Error("expected no suggestion for empty candidates")
	}
}

func TestSuggestLearnsPreference(t *testing.T) {
	e := newTestEngine(t)
	ctx := Context{Scene: "bedroom", CharacterID: "child_1"}
	for i := 0; i < 5; i++ {
		e.Reinforce(ctx, Choice{Pose: "sitting", Emotion: "neutral"}, 1.0)
	}

	got, _ := e.Suggest(ctx, []Candidate{
		{SpriteID: "stand", Pose: "standing", Emotion: "neutral"},
		{SpriteID: "sit", Pose: "sitting", Emotion: "neutral"},
	})
	if got.SpriteID != "sit" {
		t.Errorf("expected reinforced pose to win, got %q", got.SpriteID)
	}
}

func TestLearned(t *testing.T) {
	e := newTestEngine(t)
	ctx := Context{Emotion: "worried", CharacterID: "child_1"}
	cand := Candidate{SpriteID: "sit", Pose: "sitting", Emotion: "worried"}

	if e.Learned(ctx, cand) {
		t.Error("expected the emotion bonus alone not to count as learned")
	}
	if e.Score(ctx, cand) <= 0 {
		t.Error("expected the emotion bonus to score above zero")
	}

	e.Reinforce(Context{CharacterID: "child_1"}, Choice{Pose: "sitting", Emotion: "worried"}, 0.8)
	if !e.Learned(ctx, cand) {
		t.Error("expected a character preference to count as learned")
	}
	if e.Learned(ctx, Candidate{Pose: "standing", Emotion: "worried"}) {
		t.Error("expected an unreinforced combination not to count as learned")
	}
}

func TestScoreCharacterPreferenceCountsTwice(t *testing.T) {
	e := newTestEngine(t)
	e.Reinforce(Context{CharacterID: "c"}, Choice{Pose: "sitting", Emotion: "sad"}, 1.0)
	w := e.Weight(CharacterPreferences, "c", "sitting_sad")

	got := e.Score(Context{CharacterID: "c", Scene: "bedroom"}, Candidate{Pose: "sitting", Emotion: "sad"})
	if want := 2 * w / 3; !approx(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCandidatesFrom(t *testing.T) {
	got := CandidatesFrom([]model.Sprite{
		{ID: "a", Pose: "sitting", Emotion: "sad", URL: "u"},
		{ID: "b"},
	})
	if len(got) != 2 || got[0].SpriteID != "a" || got[0].Pose != "sitting" || got[0].URL != "u" || got[1].SpriteID != "b" {
		t.Errorf("unexpected candidates %+v", got)
	}
}

func TestBestCombinations(t *testing.T) {
	e := newTestEngine(t)
	ctx := Context{CharacterID: "c"}
	e.Reinforce(ctx, Choice{Pose: "standing", Emotion: "happy"}, 0.2)
	e.Reinforce(ctx, Choice{Pose: "sitting", Emotion: "sad"}, 1.0)
	e.Reinforce(ctx, Choice{Pose: "jumping", Emotion: "excited"}, 0.6)

	got := e.BestCombinations("c", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 combinations, got %d", len(got))
	}
	if got[0].Key != "sitting_sad" || got[1].Key != "jumping_excited" {
		t.Errorf("expected [sitting_sad jumping_excited], got %v", got)
	}

	if all := e.BestCombinations("c", DefaultTopN); len(all) != 3 {
		t.Errorf("expected 3 combinations, got %d", len(all))
	}
	if none := e.BestCombinations("nobody", DefaultTopN); len(none) != 0 {
		t.Errorf("expected no combinations, got %v", none)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "weights.json")

	e := New(0.2, 0.9)
	e.Reinforce(Context{Scene: "bedroom", Emotion: "worried", CharacterID: "c"}, Choice{Pose: "sitting", Emotion: "worried"}, 0.9)
	e.Reinforce(Context{Action: "ran"}, Choice{Pose: "running"}, 0.7)
	if err := e.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := New(DefaultLearningRate, DefaultDecayRate)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, k := range []struct {
		table       Table
		ctx, choice string
	}{
		{SceneToPose, "bedroom", "sitting"},
		{EmotionToSprite, "worried", "worried"},
		{CharacterPreferences, "c", "sitting_worried"},
		{ActionToPose, "ran", "running"},
	} {
		want := e.Weight(k.table, k.ctx, k.choice)
		if got := loaded.Weight(k.table, k.ctx, k.choice); !approx(got, want) {
			t.Errorf("%s[%s][%s]: expected %v, got %v", k.table, k.ctx, k.choice, want, got)
		}
	}
	if got := loaded.Weight(SceneToPose, "kitchen", "standing"); got != 0 {
		t.Errorf("expected 0 for unseen key after load, got %v", got)
	}

	st := loaded.Stats()
	if st.LearningRate != 0.2 || st.DecayRate != 0.9 {
		t.Errorf("expected rates 0.2/0.9, got %v/%v", st.LearningRate, st.DecayRate)
	}
	if st.HistorySize != 2 {
		t.Errorf("expected history size 2, got %d", st.HistorySize)
	}
	if len(loaded.History()) != 0 {
		t.Errorf("expected history events not to survive a reload")
	}

	loaded.Reinforce(Context{Scene: "park"}, Choice{Pose: "running"}, 0.5)
	if n := loaded.Stats().HistorySize; n != 3 {
		t.Errorf("expected history size 3, got %d", n)
	}
}

func TestLoadDefaultsRates(t *testing.T) {
	e := New(0.5, 0.5)
	if err := e.Decode(strings.NewReader(`{"weights":{"scene_to_pose":{"bedroom":{"sitting":0.25}}}}`)); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.LearningRate() != DefaultLearningRate || e.DecayRate() != DefaultDecayRate {
		t.Errorf("expected default rates, got %v/%v", e.LearningRate(), e.DecayRate())
	}
	if got := e.Weight(SceneToPose, "bedroom", "sitting"); got != 0.25 {
		t.Errorf("expected 0.25, got %v", got)
	}
}

func TestLoadMalformed(t *testing.T) {
	docs := []string{
		`not json`,
		`{"learning_rate": 0.1}`,
		`{"weights": {"mystery_table": {}}}`,
		`{"weights": {"scene_to_pose": {"bedroom": {"sitting": "high"}}}}`,
		`{"weights": {}, "learning_rate": 0}`,
		`{"weights": {}, "learning_rate": -0.1}`,
		`{"weights": {}, "learning_rate": 1.5}`,
		`{"weights": {}, "decay_rate": 0}`,
		`{"weights": {}, "decay_rate": -1}`,
		`{"weights": {}, "decay_rate": 1}`,
	}
	for _, doc := range docs {
		e := New(DefaultLearningRate, DefaultDecayRate)
		if err := e.Decode(strings.NewReader(doc)); !errors.Is(err, ErrInvalidWeights) {
			t.Errorf("%s: expected ErrInvalidWeights, got %v", doc, err)
		}
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := New(0, 0).Load(path); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("expected ErrInvalidWeights from file, got %v", err)
	}
	if err := New(0, 0).Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStatsRecentWindow(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 5; i++ {
		e.Reinforce(Context{}, Choice{}, 0.0)
	}
	for i := 0; i < 100; i++ {
		e.Reinforce(Context{}, Choice{}, 0.5)
	}
	e.Reinforce(Context{Scene: "bedroom"}, Choice{Pose: "sitting"}, 0.5)

	st := e.Stats()
	if st.HistorySize != 106 {
		t.Errorf("expected 106 events, got %d", st.HistorySize)
	}
	if !approx(st.AverageRecentSuccess, 0.5) {
		t.Errorf("expected average 0.5 over the last 100, got %v", st.AverageRecentSuccess)
	}
	if st.TotalWeights != 1 {
		t.Errorf("expected 1 weight entry, got %d", st.TotalWeights)
	}
	if len(st.Tables) != 5 || st.Tables[0] != "scene_to_pose" {
		t.Errorf("unexpected tables %v", st.Tables)
	}

	if avg := newTestEngine(t).Stats().AverageRecentSuccess; avg != 0 {
		t.Errorf("expected 0 average with no history, got %v", avg)
	}
}

func TestEngagementScore(t *testing.T) {
	tests := []struct {
		m    EngagementMetrics
		want float64
	}{
		{EngagementMetrics{CompletionRate: 1, LikeRate: 1, ShareRate: 1, ReplayRate: 1}, 1.0},
		{EngagementMetrics{CompletionRate: 0.5}, 0.2},
		{EngagementMetrics{LikeRate: 1, ShareRate: 0.5}, 0.4},
		{EngagementMetrics{CompletionRate: 3}, 1.0},
		{EngagementMetrics{}, 0},
	}
	for _, tt := range tests {
		if got := EngagementScore(tt.m); !approx(got, tt.want) {
			t.Errorf("%+v: expected %v, got %v", tt.m, tt.want, got)
		}
	}
}

func TestOptimizeForEngagement(t *testing.T) {
	e := newTestEngine(t)
	e.Reinforce(Context{Scene: "bedroom", StoryID: "s1"}, Choice{Pose: "sitting"}, 0.5)
	e.Reinforce(Context{Scene: "park", StoryID: "s2"}, Choice{Pose: "running"}, 0.5)
	e.Reinforce(Context{Scene: "kitchen", StoryID: "s1"}, Choice{Pose: "standing"}, 0.1)

	n := e.OptimizeForEngagement("s1", EngagementMetrics{CompletionRate: 1})
	if n != 2 {
		t.Fatalf("expected 2 replayed events, got %d", n)
	}

	hist := e.History()
	if len(hist) != 5 {
		t.Fatalf("expected 5 events, got %d", len(hist))
	}
	first, second := hist[3], hist[4]
	if !first.Replay || first.Context.Scene != "bedroom" || !approx(first.Score, 0.5*0.3+0.4*0.7) {
		t.Errorf("unexpected first replay %+v", first)
	}
	if !second.Replay || second.Context.Scene != "kitchen" || !approx(second.Score, 0.1*0.3+0.4*0.7) {
		t.Errorf("unexpected second replay %+v", second)
	}

	if n := e.OptimizeForEngagement("s1", EngagementMetrics{CompletionRate: 1}); n != 2 {
		t.Errorf("expected replays not to be replayed again, got %d", n)
	}
	if n := e.OptimizeForEngagement("unknown", EngagementMetrics{CompletionRate: 1}); n != 0 {
		t.Errorf("expected 0 for unknown story, got %d", n)
	}
}
