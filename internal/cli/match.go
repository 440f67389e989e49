package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find the closest sprite for a pose and emotion",
		Long: "Find the closest sprite for a character. Tries the exact pose and emotion, " +
			"then the pose with a neutral emotion, then standing with the emotion, then any sprite.",
		Run: runMatch,
	}

	cmd.Flags().StringP("character", "c", "", "Character id (required)")
	cmd.Flags().StringP("pose", "p", "", "Pose")
	cmd.Flags().StringP("emotion", "e", "", "Emotion")

	cmd.MarkFlagRequired("character")

	RootCmd.AddCommand(cmd)
}

func runMatch(cmd *cobra.Command, args []string) {
	character, _ := cmd.Flags().GetString("character")
	pose, _ := cmd.Flags().GetString("pose")
	emotion, _ := cmd.Flags().GetString("emotion")

	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	sp, ok := s.FindBestMatch(character, pose, emotion)
	if !ok {
		exitErr("match", fmt.Errorf("no sprites for character %q", character))
	}
	printJSON(sp)
}
