package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rcliao/sprite-memory/internal/binder"
	"github.com/rcliao/sprite-memory/internal/learn"
	"github.com/rcliao/sprite-memory/internal/model"
	"github.com/rcliao/sprite-memory/internal/store"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls []SpriteRequest
	fail  map[string]bool // character ids that fail
}

func (g *fakeGenerator) GenerateSprite(ctx context.Context, req SpriteRequest) (model.Sprite, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.fail[req.CharacterID] {
		return model.Sprite{}, errors.New("provider unavailable")
	}
	return model.Sprite{URL: fmt.Sprintf("https://cdn/%s_%s_%s.png", req.CharacterID, req.Pose, req.Emotion)}, nil
}

func (g *fakeGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

var family = []binder.Character{
	{ID: "child_1", Name: "Lucy"},
	{ID: "family_1", Name: "Mom"},
}

func newTestService(t *testing.T, gen Generator) (*Service, *store.Store, *learn.Engine) {
	t.Helper()
	st := store.New()
	t.Cleanup(func() { st.Close() })
	eng := learn.New(learn.DefaultLearningRate, learn.DefaultDecayRate)
	return New(Deps{Store: st, Engine: eng, Generator: gen}), st, eng
}

func TestResolveSceneNoCharacter(t *testing.T) {
	svc, _, eng := newTestService(t, nil)

	res, err := svc.ResolveScene(context.Background(), "The rain fell on the roof.", family, "")
	if !errors.Is(err, ErrNoCharacter) {
		t.Fatalf("expected ErrNoCharacter, got %v", err)
	}
	if res.Source != SourceSkipped {
		t.Errorf("expected source skipped, got %q", res.Source)
	}
	if n := eng.Stats().HistorySize; n != 0 {
		t.Errorf("expected no reinforcement, got %d", n)
	}
}

func TestResolveSceneMissWithoutGenerator(t *testing.T) {
	svc, _, eng := newTestService(t, nil)

	res, err := svc.ResolveScene(context.Background(), "Lucy ran to the park.", family, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != SourceMiss || res.Sprite != nil {
		t.Errorf("expected a miss, got %q %v", res.Source, res.Sprite)
	}
	if n := eng.Stats().HistorySize; n != 0 {
		t.Errorf("expected no reinforcement on a miss, got %d", n)
	}
}

func TestResolveSceneGenerates(t *testing.T) {
	gen := &fakeGenerator{}
	svc, st, eng := newTestService(t, gen)

	res, err := svc.ResolveScene(context.Background(),
		"Lucy sat on her bed feeling worried about the dark night outside.", family, "story-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != SourceGenerated {
		t.Fatalf("expected source generated, got %q", res.Source)
	}
	if res.Sprite.CharacterID != "child_1" || res.Sprite.Pose != "sitting" || res.Sprite.Emotion != "worried" {
		t.Errorf("unexpected sprite %+v", res.Sprite)
	}
	if res.Sprite.ID == "" || res.Sprite.Type != model.TypeCharacter {
		t.Errorf("expected stored sprite with id and type, got %+v", res.Sprite)
	}
	if gen.calls[0].Setting != "bedroom" || gen.calls[0].TimeOfDay != "night" {
		t.Errorf("unexpected request %+v", gen.calls[0])
	}

	if _, ok := st.Get(res.Sprite.ID); !ok {
		t.Error("expected generated sprite to be stored")
	}
	if w := eng.Weight(learn.CharacterPreferences, "child_1", "sitting_worried"); w <= 0 {
		t.Errorf("expected character preference to be reinforced, got %v", w)
	}
	if hist := eng.History(); len(hist) != 1 || hist[0].Context.StoryID != "story-1" || hist[0].Score != DefaultBaseScore {
		t.Errorf("unexpected history %+v", hist)
	}

	// The second time the stored sprite is reused.
	res, err = svc.ResolveScene(context.Background(), "Lucy sat quietly, worried.", family, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != SourceLearned {
		t.Errorf("expected source learned, got %q", res.Source)
	}
	if gen.count() != 1 {
		t.Errorf("expected 1 generation, got %d", gen.count())
	}
}

func TestResolveSceneLearned(t *testing.T) {
	svc, st, _ := newTestService(t, nil)
	ctx := context.Background()
	st.Put(ctx, model.Sprite{ID: "stand", CharacterID: "child_1", Pose: "standing", Emotion: "worried"})
	st.Put(ctx, model.Sprite{ID: "sit", CharacterID: "child_1", Pose: "sitting", Emotion: "worried"})

	// Nothing learned yet: the exact match wins over the first emotion match.
	res, err := svc.ResolveScene(ctx, "Lucy sat on her bed feeling worried.", family, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != SourceFallback || res.Sprite.ID != "sit" {
		t.Errorf("expected fallback 'sit', got %q %v", res.Source, res.Sprite)
	}

	// The reinforced choice is now suggested.
	res, err = svc.ResolveScene(ctx, "Lucy sat on her bed feeling worried.", family, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != SourceLearned || res.Sprite.ID != "sit" {
		t.Errorf("expected learned 'sit', got %q %v", res.Source, res.Sprite)
	}
}

func TestResolveSceneFallback(t *testing.T) {
	svc, st, eng := newTestService(t, nil)
	ctx := context.Background()
	st.Put(ctx, model.Sprite{ID: "only", CharacterID: "child_1", Pose: "standing", Emotion: "happy"})

	res, err := svc.ResolveScene(ctx, "Lucy sat on her bed feeling worried.", family, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != SourceFallback || res.Sprite.ID != "only" {
		t.Errorf("expected fallback 'only', got %q %v", res.Source, res.Sprite)
	}
	if n := eng.Stats().HistorySize; n != 1 {
		t.Errorf("expected fallback to be reinforced, got %d", n)
	}
}

const story = "Lucy sat on her bed feeling worried.\n\n" +
	"Mom waved and was happy in the kitchen.\n\n" +
	"The rain fell.\n\n" +
	"Lucy sat on the chair, worried again."

func TestProcessStory(t *testing.T) {
	gen := &fakeGenerator{}
	svc, st, eng := newTestService(t, gen)

	out, err := svc.ProcessStory(context.Background(), story, family)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.StoryID == "" {
		t.Error("expected a story id")
	}
	if out.TotalScenes != 4 {
		t.Fatalf("expected 4 scenes, got %d", out.TotalScenes)
	}
	if gen.count() != 2 || out.Generated != 2 {
		t.Errorf("expected 2 deduplicated generations, got %d calls, %d generated", gen.count(), out.Generated)
	}
	if n := st.Stats().TotalSprites; n != 2 {
		t.Errorf("expected 2 stored sprites, got %d", n)
	}

	wantSources := []Source{SourceGenerated, SourceGenerated, SourceSkipped, SourceGenerated}
	for i, want := range wantSources {
		if got := out.Scenes[i].Source; got != want {
			t.Errorf("scene %d: expected %q, got %q", i, want, got)
		}
		if out.Scenes[i].Index != i {
			t.Errorf("scene %d: expected index %d, got %d", i, i, out.Scenes[i].Index)
		}
	}
	if out.Scenes[0].Sprite.ID != out.Scenes[3].Sprite.ID {
		t.Errorf("expected scenes 0 and 3 to share a sprite, got %q and %q", out.Scenes[0].Sprite.ID, out.Scenes[3].Sprite.ID)
	}
	if out.Scenes[1].Sprite.Pose != "waving" || out.Scenes[1].Sprite.Emotion != "happy" {
		t.Errorf("unexpected sprite for Mom %+v", out.Scenes[1].Sprite)
	}
	if out.Scenes[2].Error == "" {
		t.Error("expected skipped scene to carry an error")
	}

	hist := eng.History()
	if len(hist) != 3 {
		t.Fatalf("expected 3 reinforcements, got %d", len(hist))
	}
	for _, ev := range hist {
		if ev.Context.StoryID != out.StoryID {
			t.Errorf("expected events tagged with %q, got %q", out.StoryID, ev.Context.StoryID)
		}
	}

	if n := svc.Engagement(out.StoryID, learn.EngagementMetrics{CompletionRate: 1, LikeRate: 1}); n != 3 {
		t.Errorf("expected 3 replayed choices, got %d", n)
	}
}

func TestProcessStoryUsesStoredSprites(t *testing.T) {
	gen := &fakeGenerator{}
	svc, st, _ := newTestService(t, gen)
	st.Put(context.Background(), model.Sprite{ID: "lucy", CharacterID: "child_1", Pose: "standing", Emotion: "neutral"})

	out, err := svc.ProcessStory(context.Background(), story, family)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if gen.count() != 1 || gen.calls[0].CharacterID != "family_1" {
		t.Errorf("expected only Mom to be generated, got %+v", gen.calls)
	}
	if out.Scenes[0].Sprite == nil || out.Scenes[0].Sprite.ID != "lucy" {
		t.Errorf("expected stored sprite for Lucy, got %v", out.Scenes[0].Sprite)
	}
}

func TestProcessStoryGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{fail: map[string]bool{"family_1": true}}
	svc, _, _ := newTestService(t, gen)

	out, err := svc.ProcessStory(context.Background(), story, family)
	if err != nil {
		t.Fatalf("expected per-scene failure, got %v", err)
	}
	if out.Scenes[1].Source != SourceMiss || out.Scenes[1].Error == "" {
		t.Errorf("expected failed scene to be a miss with an error, got %+v", out.Scenes[1])
	}
	if out.Scenes[0].Source != SourceGenerated {
		t.Errorf("expected other scenes to succeed, got %q", out.Scenes[0].Source)
	}
	if out.Generated != 1 {
		t.Errorf("expected 1 generated, got %d", out.Generated)
	}
}

func TestProcessStoryCancelled(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeGenerator{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.ProcessStory(ctx, story, family); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFeedback(t *testing.T) {
	svc, _, eng := newTestService(t, nil)
	ctx := context.Background()

	fb := FeedbackRequest{
		Context: learn.Context{Scene: "bedroom", CharacterID: "child_1"},
		Choice:  learn.Choice{Pose: "sitting", Emotion: "worried"},
		Score:   1.0,
	}
	if err := svc.Feedback(ctx, fb); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if w := eng.Weight(learn.SceneToPose, "bedroom", "sitting"); w <= 0 {
		t.Errorf("expected weight to be reinforced, got %v", w)
	}

	fb.Score = 1.5
	if err := svc.Feedback(ctx, fb); !errors.Is(err, ErrInvalidScore) {
		t.Errorf("expected ErrInvalidScore, got %v", err)
	}
}
