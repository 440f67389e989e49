package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryDB is the path that opens a private in-memory SQLite database.
const MemoryDB = ":memory:"

// SQLiteBackend persists sprites and timelines in SQLite.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// NewSQLiteBackend opens or creates a SQLite database at the given path.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	dsn := MemoryDB
	if dbPath != MemoryDB {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == MemoryDB {
		// Each connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}

	b := &SQLiteBackend{db: db, path: dbPath}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

// Path returns the database path the backend was opened with.
func (b *SQLiteBackend) Path() string {
	return b.path
}

func (b *SQLiteBackend) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sprites (
		id            TEXT PRIMARY KEY,
		seq           INTEGER NOT NULL,
		character_id  TEXT NOT NULL,
		sprite_type   TEXT NOT NULL DEFAULT '',
		pose          TEXT NOT NULL DEFAULT '',
		emotion       TEXT NOT NULL DEFAULT '',
		url           TEXT NOT NULL DEFAULT '',
		thumbnail_url TEXT,
		metadata      TEXT,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sprites_character ON sprites(character_id);
	CREATE INDEX IF NOT EXISTS idx_sprites_pose ON sprites(pose);
	CREATE INDEX IF NOT EXISTS idx_sprites_emotion ON sprites(emotion);
	CREATE INDEX IF NOT EXISTS idx_sprites_seq ON sprites(seq);

	CREATE TABLE IF NOT EXISTS sprite_frames (
		character_id TEXT NOT NULL,
		ts           REAL NOT NULL,
		sprite_id    TEXT NOT NULL,
		PRIMARY KEY (character_id, ts)
	);
	`
	_, err := b.db.Exec(schema)
	return err
}

// SaveSprite inserts or replaces a sprite row.
func (b *SQLiteBackend) SaveSprite(ctx context.Context, r Record) error {
	sp := r.Sprite

	var thumb *string
	if sp.ThumbnailURL != "" {
		thumb = &sp.ThumbnailURL
	}

	var meta *string
	if len(sp.Metadata) > 0 {
		raw, err := json.Marshal(sp.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		m := string(raw)
		meta = &m
	}

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO sprites (id, seq, character_id, sprite_type, pose, emotion, url, thumbnail_url, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   character_id = excluded.character_id,
		   sprite_type = excluded.sprite_type,
		   pose = excluded.pose,
		   emotion = excluded.emotion,
		   url = excluded.url,
		   thumbnail_url = excluded.thumbnail_url,
		   metadata = excluded.metadata,
		   created_at = excluded.created_at`,
		sp.ID, int64(r.Seq), sp.CharacterID, sp.Type, sp.Pose, sp.Emotion, sp.URL,
		thumb, meta, sp.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert sprite: %w", err)
	}
	return nil
}

// DeleteCharacter removes a character's sprites and timeline in one
// transaction.
func (b *SQLiteBackend) DeleteCharacter(ctx context.Context, characterID string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sprite_frames WHERE character_id = ?`, characterID); err != nil {
		return fmt.Errorf("delete frames: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sprites WHERE character_id = ?`, characterID); err != nil {
		return fmt.Errorf("delete sprites: %w", err)
	}
	return tx.Commit()
}

// LoadSprites returns every sprite ordered by insertion sequence.
func (b *SQLiteBackend) LoadSprites(ctx context.Context) ([]Record, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, seq, character_id, sprite_type, pose, emotion, url, thumbnail_url, metadata, created_at
		 FROM sprites ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanSprite(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SaveFrame inserts or replaces a timeline entry.
func (b *SQLiteBackend) SaveFrame(ctx context.Context, f Frame) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO sprite_frames (character_id, ts, sprite_id) VALUES (?, ?, ?)
		 ON CONFLICT(character_id, ts) DO UPDATE SET sprite_id = excluded.sprite_id`,
		f.CharacterID, f.Timestamp, f.SpriteID)
	if err != nil {
		return fmt.Errorf("upsert frame: %w", err)
	}
	return nil
}

// LoadFrames returns every timeline entry.
func (b *SQLiteBackend) LoadFrames(ctx context.Context) ([]Frame, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT character_id, ts, sprite_id FROM sprite_frames ORDER BY character_id, ts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		if err := rows.Scan(&f.CharacterID, &f.Timestamp, &f.SpriteID); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSprite(row scanner) (Record, error) {
	var r Record
	var seq int64
	var thumb, meta sql.NullString
	var createdAt string

	sp := &r.Sprite
	err := row.Scan(&sp.ID, &seq, &sp.CharacterID, &sp.Type, &sp.Pose, &sp.Emotion,
		&sp.URL, &thumb, &meta, &createdAt)
	if err != nil {
		return r, err
	}

	r.Seq = uint64(seq)
	if thumb.Valid {
		sp.ThumbnailURL = thumb.String
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &sp.Metadata); err != nil {
			return r, fmt.Errorf("decode metadata for %s: %w", sp.ID, err)
		}
	}
	sp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return r, fmt.Errorf("parse created_at for %s: %w", sp.ID, err)
	}
	return r, nil
}

var _ Backend = (*SQLiteBackend)(nil)
