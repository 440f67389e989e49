// Package cli implements the sprite-memory CLI commands.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/sprite-memory/internal/binder"
	"github.com/rcliao/sprite-memory/internal/config"
	"github.com/rcliao/sprite-memory/internal/learn"
	"github.com/rcliao/sprite-memory/internal/store"
)

var (
	v   = config.New()
	cfg config.Config
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "sprite-memory",
	Short: "Sprite memory for illustrated stories",
	Long: "Binds story scenes to characters, keeps an indexed library of character sprites, " +
		"and learns which sprites work best. SQLite-backed, single binary.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(v); err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()})))
		return nil
	},
	SilenceUsage: true,
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringP(config.KeyDB, "d", v.GetString(config.KeyDB), "Database path (env: SPRITE_MEMORY_DB)")
	flags.StringP(config.KeyWeights, "w", v.GetString(config.KeyWeights), "Learned weights file (env: SPRITE_MEMORY_WEIGHTS)")
	flags.String(config.KeyConfig, "", "Config file (YAML)")
	flags.String("log-level", v.GetString(config.KeyLogLevel), "Log level: debug, info, warn, error")
	flags.String(config.KeyCharacters, "", "Character mapping file (YAML)")
	flags.String(config.KeyGenerator, "", "Sprite generator for missing sprites: template or http")
	flags.String("generator-url", "", "URL template ({character}, {pose}, {emotion}) or http endpoint for the generator")

	v.BindPFlag(config.KeyDB, flags.Lookup(config.KeyDB))
	v.BindPFlag(config.KeyWeights, flags.Lookup(config.KeyWeights))
	v.BindPFlag(config.KeyConfig, flags.Lookup(config.KeyConfig))
	v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	v.BindPFlag(config.KeyCharacters, flags.Lookup(config.KeyCharacters))
	v.BindPFlag(config.KeyGenerator, flags.Lookup(config.KeyGenerator))
	v.BindPFlag(config.KeyGeneratorURL, flags.Lookup("generator-url"))
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	return store.Open(cmd.Context(), cfg.DB,
		store.WithDimensions(cfg.Dimensions...),
		store.WithLogger(slog.Default()),
	)
}

// openEngine returns an engine with the saved weights loaded. A missing
// weights file yields an empty engine.
func openEngine() (*learn.Engine, error) {
	e := learn.New(cfg.LearningRate, cfg.DecayRate, learn.WithLogger(slog.Default()))
	if err := e.Load(cfg.Weights); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return e, nil
}

func saveEngine(e *learn.Engine) {
	if err := e.Save(cfg.Weights); err != nil {
		exitErr("save weights", err)
	}
}

// characterMapping resolves the mapping from repeated --char Name=id flags,
// falling back to the configured mapping file.
func characterMapping(cmd *cobra.Command) []binder.Character {
	pairs, _ := cmd.Flags().GetStringArray("char")
	if len(pairs) > 0 {
		chars, err := config.ParseCharacterPairs(pairs)
		if err != nil {
			exitErr("characters", err)
		}
		return chars
	}
	if cfg.Characters == "" {
		exitErr("characters", errors.New("no character mapping (use --char Name=id or --characters file)"))
	}
	chars, err := config.LoadCharacters(cfg.Characters)
	if err != nil {
		exitErr("characters", err)
	}
	return chars
}

func addCharFlag(cmd *cobra.Command) {
	cmd.Flags().StringArray("char", nil, "Character mapping entry Name=id (repeatable, first is the pronoun referent)")
}

// readText returns the positional args joined, or stdin when piped.
func readText(args []string) string {
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	return strings.TrimSpace(content)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
