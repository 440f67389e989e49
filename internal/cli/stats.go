package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store and learning statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	e, err := openEngine()
	if err != nil {
		exitErr("open weights", err)
	}

	printJSON(map[string]any{
		"store":        s.Stats(),
		"learning":     e.Stats(),
		"weights_path": cfg.Weights,
	})
}
