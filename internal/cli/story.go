package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rcliao/sprite-memory/internal/generator"
	"github.com/rcliao/sprite-memory/internal/learn"
	"github.com/rcliao/sprite-memory/internal/metrics"
	"github.com/rcliao/sprite-memory/internal/pipeline"
	"github.com/rcliao/sprite-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "story [text]",
		Short: "Resolve every scene of a story to a sprite",
		Long: "Split a story into scenes, bind each to the character mapping, and pick a sprite per scene. " +
			"Scenes are separated by blank lines. Text can be a positional arg or piped via stdin. " +
			"Missing sprites are created by the configured generator. " +
			"Chosen sprites are reinforced and the learned weights saved.",
		Run: runStory,
	}

	addCharFlag(cmd)

	RootCmd.AddCommand(cmd)
}

// newService wires the pipeline with the configured generator, if any.
func newService(s *store.Store, e *learn.Engine, rec *metrics.Recorder) *pipeline.Service {
	gen, err := generator.New(cfg.Generator, cfg.GeneratorURL, cfg.GeneratorKey)
	if err != nil {
		exitErr("generator", err)
	}
	return pipeline.New(pipeline.Deps{
		Store:       s,
		Engine:      e,
		Generator:   gen,
		Metrics:     rec,
		Logger:      slog.Default(),
		BaseScore:   cfg.BaseScore,
		Concurrency: cfg.Concurrency,
	})
}

func runStory(cmd *cobra.Command, args []string) {
	text := readText(args)
	if text == "" {
		exitErr("story", fmt.Errorf("text is required (positional arg or stdin)"))
	}
	mapping := characterMapping(cmd)

	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	e, err := openEngine()
	if err != nil {
		exitErr("open weights", err)
	}

	out, err := newService(s, e, nil).ProcessStory(cmd.Context(), text, mapping)
	if err != nil {
		exitErr("process story", err)
	}
	saveEngine(e)

	printJSON(out)
}
