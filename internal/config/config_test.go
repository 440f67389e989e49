package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/rcliao/sprite-memory/internal/binder"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LearningRate != 0.1 || cfg.DecayRate != 0.95 {
		t.Errorf("expected default rates, got %v/%v", cfg.LearningRate, cfg.DecayRate)
	}
	if cfg.BaseScore != 0.8 || cfg.Concurrency != 4 {
		t.Errorf("expected pipeline defaults, got %v/%d", cfg.BaseScore, cfg.Concurrency)
	}
	if !strings.HasSuffix(cfg.DB, filepath.Join(".sprite-memory", "sprites.db")) {
		t.Errorf("unexpected default db %q", cfg.DB)
	}
	if cfg.Listen != ":8080" {
		t.Errorf("expected :8080, got %q", cfg.Listen)
	}
	if len(cfg.Dimensions) != 4 {
		t.Errorf("expected 4 default dimensions, got %v", cfg.Dimensions)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "db: /tmp/from-file.db\nlearning_rate: 0.2\ndimensions: [character, pose, emotion, style]\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPRITE_MEMORY_DB", "/tmp/from-env.db")

	v := New()
	v.Set(KeyConfig, path)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DB != "/tmp/from-env.db" {
		t.Errorf("expected env to override file, got %q", cfg.DB)
	}
	if cfg.LearningRate != 0.2 {
		t.Errorf("expected learning rate from file, got %v", cfg.LearningRate)
	}
	if !slices.Equal(cfg.Dimensions, []string{"character", "pose", "emotion", "style"}) {
		t.Errorf("unexpected dimensions %v", cfg.Dimensions)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.Level())
	}
}

func TestLoadEnvDimensions(t *testing.T) {
	t.Setenv("SPRITE_MEMORY_DIMENSIONS", "character, pose,emotion")
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !slices.Equal(cfg.Dimensions, []string{"character", "pose", "emotion"}) {
		t.Errorf("unexpected dimensions %v", cfg.Dimensions)
	}
}

func TestLoadValidates(t *testing.T) {
	v := New()
	v.Set(KeyDecayRate, 1.5)
	v.Set(KeyBaseScore, -1)
	_, err := Load(v)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "decay_rate") || !strings.Contains(err.Error(), "base_score") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	v := New()
	v.Set(KeyConfig, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(v); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLevelFallback(t *testing.T) {
	if l := (Config{LogLevel: "loud"}).Level(); l != slog.LevelInfo {
		t.Errorf("expected info for unknown level, got %v", l)
	}
	if l := (Config{LogLevel: "WARN"}).Level(); l != slog.LevelWarn {
		t.Errorf("expected warn, got %v", l)
	}
}

func TestParseCharacters(t *testing.T) {
	want := []binder.Character{
		{ID: "family_1", Name: "Mom"},
		{ID: "child_1", Name: "Lucy"},
		{ID: "pet_1", Name: "Fluffy"},
	}

	docs := map[string]string{
		"mapping": "characters:\n  Mom: family_1\n  Lucy: child_1\n  Fluffy: pet_1\n",
		"sequence": "characters:\n  - {name: Mom, id: family_1}\n  - name: Lucy\n    id: child_1\n  - name: Fluffy\n    id: pet_1\n",
		"root":     "Mom: family_1\nLucy: child_1\nFluffy: pet_1\n",
		"json":     `{"characters": {"Mom": "family_1", "Lucy": "child_1", "Fluffy": "pet_1"}}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			got, err := ParseCharacters(strings.NewReader(doc))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if !slices.Equal(got, want) {
				t.Errorf("expected %v in document order, got %v", want, got)
			}
		})
	}
}

func TestParseCharactersInvalid(t *testing.T) {
	docs := []string{
		"characters: lucy",
		"characters:\n  Lucy: [a, b]\n",
		"characters:\n  - name: Lucy\n",
		"characters: [",
	}
	for _, doc := range docs {
		if _, err := ParseCharacters(strings.NewReader(doc)); err == nil {
			t.Errorf("%q: expected error", doc)
		}
	}

	got, err := ParseCharacters(strings.NewReader(""))
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty mapping for empty input, got %v, %v", got, err)
	}
}

func TestLoadCharacters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "family.yaml")
	if err := os.WriteFile(path, []byte("characters:\n  Lucy: child_1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadCharacters(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "child_1" {
		t.Errorf("unexpected characters %v", got)
	}
}

func TestParseCharacterPairs(t *testing.T) {
	got, err := ParseCharacterPairs([]string{"Lucy=child_1", " Mom = family_1 "})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []binder.Character{{ID: "child_1", Name: "Lucy"}, {ID: "family_1", Name: "Mom"}}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	for _, bad := range []string{"Lucy", "=child_1", "Lucy="} {
		if _, err := ParseCharacterPairs([]string{bad}); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestLoadGenerator(t *testing.T) {
	t.Setenv("SPRITE_MEMORY_GENERATOR", "http")
	t.Setenv("SPRITE_MEMORY_GENERATOR_URL", "http://localhost:9000/sprites")
	t.Setenv("SPRITE_MEMORY_GENERATOR_KEY", "secret")
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Generator != "http" || cfg.GeneratorURL != "http://localhost:9000/sprites" || cfg.GeneratorKey != "secret" {
		t.Errorf("unexpected generator settings %+v", cfg)
	}

	v := New()
	v.Set(KeyGenerator, "template")
	v.Set(KeyGeneratorURL, "")
	if _, err := Load(v); err == nil || !strings.Contains(err.Error(), "generator_url") {
		t.Errorf("expected missing url error, got %v", err)
	}
	v.Set(KeyGenerator, "dalle")
	if _, err := Load(v); err == nil {
		t.Error("expected unknown generator error")
	}
}
