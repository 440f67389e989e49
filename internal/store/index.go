package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/sprite-memory/internal/model"
)

// Store is an in-memory, multi-index sprite store. It is safe for
// concurrent use; each operation is applied atomically under one mutex.
type Store struct {
	mu sync.Mutex

	dims      []string
	indexType bool

	sprites map[string]*entry
	nextSeq uint64

	byCharacter map[string]set
	byPose      map[string]set
	byEmotion   map[string]set
	byType      map[string]set

	frames map[string]map[float64]string
	cache  map[string]cached

	backend Backend
	clock   Clock
	entropy *rand.Rand
	logger  *slog.Logger
}

type entry struct {
	sprite model.Sprite
	seq    uint64
}

type set map[string]struct{}

// cached is a memoised query result. characterID is the filter's character
// constraint and decides which writes invalidate the entry.
type cached struct {
	characterID string
	ids         []string
}

// New returns an empty in-memory Store.
func New(opts ...Option) *Store {
	s := &Store{
		dims:        slices.Clone(DefaultDimensions),
		sprites:     make(map[string]*entry),
		byCharacter: make(map[string]set),
		byPose:      make(map[string]set),
		byEmotion:   make(map[string]set),
		byType:      make(map[string]set),
		frames:      make(map[string]map[float64]string),
		cache:       make(map[string]cached),
		clock:       realClock{},
		entropy:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.indexType = slices.Contains(s.dims, DimType)
	return s
}

// Open opens a SQLite-backed Store at dbPath and loads its contents.
func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	b, err := NewSQLiteBackend(dbPath)
	if err != nil {
		return nil, err
	}
	s := New(append(opts, WithBackend(b))...)
	if err := s.load(ctx); err != nil {
		b.Close()
		return nil, fmt.Errorf("load sprites: %w", err)
	}
	return s, nil
}

// Close closes the backend, if any.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// Dimensions returns the configured dimension names.
func (s *Store) Dimensions() []string {
	return slices.Clone(s.dims)
}

func (s *Store) load(ctx context.Context) error {
	records, err := s.backend.LoadSprites(ctx)
	if err != nil {
		return err
	}
	frames, err := s.backend.LoadFrames(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.sprites[r.Sprite.ID] = &entry{sprite: r.Sprite, seq: r.Seq}
		s.index(r.Sprite)
		if r.Seq >= s.nextSeq {
			s.nextSeq = r.Seq + 1
		}
	}
	for _, f := range frames {
		s.setFrame(f)
	}
	s.logger.Info("store: loaded", "sprites", len(records), "frames", len(frames))
	return nil
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(s.clock.Now()), s.entropy).String()
}

// Put inserts or overwrites a sprite by ID and returns the ID. A sprite
// without an ID gets a new ULID; a zero CreatedAt is set to now. The store
// keeps its own copy of the sprite.
func (s *Store) Put(ctx context.Context, sp model.Sprite) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, sp)
}

// PutBatch stores sprites in order and returns their IDs. It stops at the
// first failed write and returns the IDs stored so far.
func (s *Store) PutBatch(ctx context.Context, sprites []model.Sprite) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(sprites))
	for _, sp := range sprites {
		id, err := s.put(ctx, sp)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) put(ctx context.Context, sp model.Sprite) (string, error) {
	rec := sp.Clone()
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock.Now().UTC()
	}

	prev, exists := s.sprites[rec.ID]
	seq := s.nextSeq
	if exists {
		seq = prev.seq
	}

	if s.backend != nil {
		if err := s.backend.SaveSprite(ctx, Record{Sprite: rec, Seq: seq}); err != nil {
			return "", fmt.Errorf("save sprite %s: %w", rec.ID, err)
		}
	}

	if exists {
		s.unindex(prev.sprite)
		s.invalidate(prev.sprite.CharacterID)
	} else {
		s.nextSeq++
	}
	s.sprites[rec.ID] = &entry{sprite: rec, seq: seq}
	s.index(rec)
	s.invalidate(rec.CharacterID)

	return rec.ID, nil
}

// Get returns a copy of the sprite with the given ID.
func (s *Store) Get(id string) (model.Sprite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sprites[id]
	if !ok {
		return model.Sprite{}, false
	}
	return e.sprite.Clone(), true
}

// Query returns copies of all sprites matching f in insertion order. An
// empty filter returns every sprite. Results are memoised per filter until
// a write for a matching character invalidates them.
func (s *Store) Query(f Filter) []model.Sprite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materialize(s.queryIDs(f))
}

// PurgeCharacter deletes every sprite and frame for a character and returns
// the number of sprites removed.
func (s *Store) PurgeCharacter(ctx context.Context, characterID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		if err := s.backend.DeleteCharacter(ctx, characterID); err != nil {
			return 0, fmt.Errorf("delete character %s: %w", characterID, err)
		}
	}

	ids := s.byCharacter[characterID]
	n := len(ids)
	for id := range ids {
		e := s.sprites[id]
		s.unindex(e.sprite)
		delete(s.sprites, id)
	}
	delete(s.frames, characterID)
	s.invalidate(characterID)

	s.logger.Info("store: purged character", "character_id", characterID, "sprites", n)
	return n, nil
}

func (s *Store) queryIDs(f Filter) []string {
	key, keyErr := cacheKey(f)
	if keyErr == nil {
		if c, ok := s.cache[key]; ok {
			return c.ids
		}
	}

	var ids []string
	for id := range s.candidates(f) {
		if matches(s.sprites[id].sprite, f) {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Compare(s.sprites[a].seq, s.sprites[b].seq)
	})

	if keyErr == nil {
		s.cache[key] = cached{characterID: f.CharacterID, ids: ids}
	} else {
		s.logger.Debug("store: query not cacheable", "err", keyErr)
	}
	return ids
}

// candidates returns the smallest index bucket constrained by f, or every
// sprite when f constrains no indexed dimension.
func (s *Store) candidates(f Filter) set {
	var best set
	consider := func(idx map[string]set, v string) {
		if v == "" {
			return
		}
		b := idx[v]
		if best == nil || len(b) < len(best) {
			if b == nil {
				b = set{}
			}
			best = b
		}
	}
	consider(s.byCharacter, f.CharacterID)
	consider(s.byPose, f.Pose)
	consider(s.byEmotion, f.Emotion)
	if s.indexType {
		consider(s.byType, f.SpriteType)
	}
	if best != nil {
		return best
	}

	all := make(set, len(s.sprites))
	for id := range s.sprites {
		all[id] = struct{}{}
	}
	return all
}

func (s *Store) materialize(ids []string) []model.Sprite {
	out := make([]model.Sprite, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.sprites[id]; ok {
			out = append(out, e.sprite.Clone())
		}
	}
	return out
}

func (s *Store) index(sp model.Sprite) {
	add(s.byCharacter, sp.CharacterID, sp.ID)
	add(s.byPose, sp.Pose, sp.ID)
	add(s.byEmotion, sp.Emotion, sp.ID)
	if s.indexType {
		add(s.byType, sp.Type, sp.ID)
	}
}

func (s *Store) unindex(sp model.Sprite) {
	remove(s.byCharacter, sp.CharacterID, sp.ID)
	remove(s.byPose, sp.Pose, sp.ID)
	remove(s.byEmotion, sp.Emotion, sp.ID)
	if s.indexType {
		remove(s.byType, sp.Type, sp.ID)
	}
}

// invalidate drops memoised results that a write for characterID could
// change: those filtered on that character and those not filtered on any.
func (s *Store) invalidate(characterID string) {
	for k, c := range s.cache {
		if c.characterID == "" || c.characterID == characterID {
			delete(s.cache, k)
		}
	}
}

func add(idx map[string]set, key, id string) {
	b, ok := idx[key]
	if !ok {
		b = set{}
		idx[key] = b
	}
	b[id] = struct{}{}
}

func remove(idx map[string]set, key, id string) {
	b, ok := idx[key]
	if !ok {
		return
	}
	delete(b, id)
	if len(b) == 0 {
		delete(idx, key)
	}
}

func cacheKey(f Filter) (string, error) {
	// encoding/json sorts map keys, so equal filters share a key.
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func matches(sp model.Sprite, f Filter) bool {
	if f.CharacterID != "" && sp.CharacterID != f.CharacterID {
		return false
	}
	if f.Pose != "" && sp.Pose != f.Pose {
		return false
	}
	if f.Emotion != "" && sp.Emotion != f.Emotion {
		return false
	}
	if f.SpriteType != "" && sp.Type != f.SpriteType {
		return false
	}
	for k, want := range f.Metadata {
		got, ok := sp.Metadata[k]
		if !ok || !metaEqual(got, want) {
			return false
		}
	}
	return true
}

// metaEqual compares loosely typed metadata values. Numbers compare by value
// so a float64 decoded from JSON equals the int it was written as.
func metaEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
