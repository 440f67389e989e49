package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rcliao/sprite-memory/internal/model"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), dbPath, WithClock(fixedClock{testTime}))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dbPath
}

func TestSQLiteReload(t *testing.T) {
	ctx := context.Background()
	s, dbPath := newTestStore(t)

	mustPut(t, s, model.Sprite{ID: "a", CharacterID: "c", Type: model.TypeCharacter, Pose: "standing", Emotion: "happy",
		URL: "https://cdn/a.png", ThumbnailURL: "https://cdn/a_t.png", Metadata: map[string]any{"style": "pencil", "size": 2}})
	mustPut(t, s, model.Sprite{ID: "b", CharacterID: "c", Pose: "sitting", Emotion: "sad"})
	mustPut(t, s, model.Sprite{ID: "a", CharacterID: "c", Type: model.TypeCharacter, Pose: "standing", Emotion: "calm",
		URL: "https://cdn/a2.png"})
	if _, err := s.PutTemporal(ctx, model.Sprite{ID: "f", CharacterID: "c", Pose: "running", Emotion: "excited"}, 2.5); err != nil {
		t.Fatalf("put temporal: %v", err)
	}
	s.Close()

	re, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer re.Close()

	got := ids(re.Query(Filter{CharacterID: "c"}))
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "f" {
		t.Fatalf("expected [a b f] in insertion order, got %v", got)
	}

	a, _ := re.Get("a")
	if a.Emotion != "calm" || a.URL != "https://cdn/a2.png" {
		t.Errorf("expected overwritten sprite, got %+v", a)
	}
	if a.ThumbnailURL != "" || a.Metadata != nil {
		t.Errorf("expected overwrite to clear thumbnail and metadata, got %+v", a)
	}
	if !a.CreatedAt.Equal(testTime) {
		t.Errorf("expected created_at %v, got %v", testTime, a.CreatedAt)
	}

	f, ok := re.FrameSprite("c", 3)
	if !ok || f.ID != "f" {
		t.Errorf("expected frame sprite 'f', got %q (ok=%v)", f.ID, ok)
	}

	// New sprites continue after the persisted sequence.
	mustPut(t, re, model.Sprite{ID: "new", CharacterID: "c", Pose: "standing", Emotion: "happy"})
	got = ids(re.Query(Filter{CharacterID: "c"}))
	if got[len(got)-1] != "new" {
		t.Errorf("expected 'new' last, got %v", got)
	}
}

func TestSQLiteMetadata(t *testing.T) {
	ctx := context.Background()
	s, dbPath := newTestStore(t)

	mustPut(t, s, model.Sprite{ID: "a", CharacterID: "c", Pose: "standing", Emotion: "happy",
		Metadata: map[string]any{"style": "pencil", "size": 2}})
	s.Close()

	re, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer re.Close()

	if got := re.Query(Filter{Metadata: map[string]any{"size": 2, "style": "pencil"}}); len(got) != 1 {
		t.Errorf("expected metadata filter to match after reload, got %d", len(got))
	}
}

func TestSQLitePurge(t *testing.T) {
	ctx := context.Background()
	s, dbPath := newTestStore(t)

	mustPut(t, s, model.Sprite{ID: "a", CharacterID: "c", Pose: "standing", Emotion: "happy"})
	mustPut(t, s, model.Sprite{ID: "x", CharacterID: "other", Pose: "standing", Emotion: "happy"})
	if _, err := s.PutTemporal(ctx, model.Sprite{ID: "f", CharacterID: "c"}, 1); err != nil {
		t.Fatalf("put temporal: %v", err)
	}
	if _, err := s.PurgeCharacter(ctx, "c"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	s.Close()

	re, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer re.Close()

	st := re.Stats()
	if st.TotalSprites != 1 || st.Frames != 0 {
		t.Errorf("expected 1 sprite and no frames, got %+v", st)
	}
	if st.DBPath != dbPath || st.DBSizeBytes == 0 {
		t.Errorf("expected db path and size, got %q %d", st.DBPath, st.DBSizeBytes)
	}
}

func TestSQLiteInMemory(t *testing.T) {
	s, err := Open(context.Background(), MemoryDB)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	mustPut(t, s, model.Sprite{ID: "a", CharacterID: "c", Pose: "standing", Emotion: "happy"})
	if _, ok := s.Get("a"); !ok {
		t.Error("expected sprite in memory-backed store")
	}
	if st := s.Stats(); st.DBPath != "" {
		t.Errorf("expected no db path for :memory:, got %q", st.DBPath)
	}
}
