package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sprite-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List sprites matching a filter",
		Run:   runQuery,
	}

	cmd.Flags().StringP("character", "c", "", "Filter by character id")
	cmd.Flags().StringP("pose", "p", "", "Filter by pose")
	cmd.Flags().StringP("emotion", "e", "", "Filter by emotion")
	cmd.Flags().StringP("type", "t", "", "Filter by sprite type")
	cmd.Flags().String("meta", "", "Filter by JSON metadata entries")
	cmd.Flags().IntP("limit", "l", 0, "Max results (0 for all)")
	cmd.Flags().Bool("ids-only", false, "Only output sprite ids")

	RootCmd.AddCommand(cmd)
}

func runQuery(cmd *cobra.Command, args []string) {
	character, _ := cmd.Flags().GetString("character")
	pose, _ := cmd.Flags().GetString("pose")
	emotion, _ := cmd.Flags().GetString("emotion")
	spriteType, _ := cmd.Flags().GetString("type")
	meta, _ := cmd.Flags().GetString("meta")
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	f := store.Filter{
		CharacterID: character,
		Pose:        pose,
		Emotion:     emotion,
		SpriteType:  spriteType,
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &f.Metadata); err != nil {
			exitErr("parse meta", err)
		}
	}

	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	sprites := s.Query(f)
	if limit > 0 && len(sprites) > limit {
		sprites = sprites[:limit]
	}

	if idsOnly {
		for _, sp := range sprites {
			fmt.Println(sp.ID)
		}
		return
	}
	printJSON(sprites)
}
