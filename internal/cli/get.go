package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [sprite-id]",
		Short: "Retrieve a sprite",
		Long:  "Retrieve a sprite by id, or the sprite nearest a video timestamp with --character and --at.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runGet,
	}

	cmd.Flags().StringP("character", "c", "", "Character id for timeline lookups")
	cmd.Flags().Float64("at", 0, "Video timestamp in seconds")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	character, _ := cmd.Flags().GetString("character")
	at, _ := cmd.Flags().GetFloat64("at")
	timeline := cmd.Flags().Changed("at")

	if len(args) == 0 && !timeline {
		exitErr("get", fmt.Errorf("sprite id or --character with --at is required"))
	}
	if timeline && character == "" {
		exitErr("get", fmt.Errorf("--at requires --character"))
	}

	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if timeline {
		sp, ok := s.FrameSprite(character, at)
		if !ok {
			exitErr("get", fmt.Errorf("no frames for character %q", character))
		}
		printJSON(sp)
		return
	}

	sp, ok := s.Get(args[0])
	if !ok {
		exitErr("get", fmt.Errorf("sprite %q not found", args[0]))
	}
	printJSON(sp)
}
