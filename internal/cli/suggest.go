package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sprite-memory/internal/learn"
	"github.com/rcliao/sprite-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Rank a character's sprites for a narrative context",
		Run:   runSuggest,
	}

	addContextFlags(cmd)
	cmd.Flags().Bool("all", false, "Output every candidate with its score")

	cmd.MarkFlagRequired("character")

	RootCmd.AddCommand(cmd)
}

type scoredCandidate struct {
	learn.Candidate
	Score float64 `json:"score"`
}

func runSuggest(cmd *cobra.Command, args []string) {
	all, _ := cmd.Flags().GetBool("all")
	c := contextFromFlags(cmd)

	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	e, err := openEngine()
	if err != nil {
		exitErr("open weights", err)
	}

	candidates := learn.CandidatesFrom(s.Query(store.Filter{CharacterID: c.CharacterID}))
	best, ok := e.Suggest(c, candidates)
	if !ok {
		exitErr("suggest", fmt.Errorf("no sprites for character %q", c.CharacterID))
	}

	if all {
		out := make([]scoredCandidate, len(candidates))
		for i, cand := range candidates {
			out[i] = scoredCandidate{cand, e.Score(c, cand)}
		}
		printJSON(out)
		return
	}
	printJSON(scoredCandidate{best, e.Score(c, best)})
}
