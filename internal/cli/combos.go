package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/sprite-memory/internal/learn"
)

func init() {
	cmd := &cobra.Command{
		Use:   "combos <character-id>",
		Short: "Show a character's preferred pose and emotion combinations",
		Args:  cobra.ExactArgs(1),
		Run:   runCombos,
	}

	cmd.Flags().IntP("top", "n", learn.DefaultTopN, "Number of combinations (-1 for all)")

	RootCmd.AddCommand(cmd)
}

func runCombos(cmd *cobra.Command, args []string) {
	top, _ := cmd.Flags().GetInt("top")

	e, err := openEngine()
	if err != nil {
		exitErr("open weights", err)
	}

	printJSON(map[string]any{
		"character_id": args[0],
		"combinations": e.BestCombinations(args[0], top),
	})
}
