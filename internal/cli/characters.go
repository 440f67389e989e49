package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	charsCmd := &cobra.Command{
		Use:   "characters",
		Short: "Character sprite sets",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List characters with sprite counts",
		Run:   runCharactersList,
	}

	spritesCmd := &cobra.Command{
		Use:   "sprites <character-id>",
		Short: "Show a character's sprites grouped by pose, emotion, and type",
		Args:  cobra.ExactArgs(1),
		Run:   runCharacterSprites,
	}

	framesCmd := &cobra.Command{
		Use:   "frames <character-id>",
		Short: "Show a character's video timeline",
		Args:  cobra.ExactArgs(1),
		Run:   runCharacterFrames,
	}

	charsCmd.AddCommand(listCmd, spritesCmd, framesCmd)
	RootCmd.AddCommand(charsCmd)
}

func runCharactersList(cmd *cobra.Command, args []string) {
	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	printJSON(s.Characters())
}

func runCharacterSprites(cmd *cobra.Command, args []string) {
	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	printJSON(s.CharacterSprites(args[0]))
}

func runCharacterFrames(cmd *cobra.Command, args []string) {
	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	printJSON(s.Frames(args[0]))
}
