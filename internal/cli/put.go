package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sprite-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Store a sprite",
		Long:  "Store a sprite. With --at the sprite is also recorded on the character's video timeline.",
		Run:   runPut,
	}

	cmd.Flags().String("id", "", "Sprite id (default: generated)")
	cmd.Flags().StringP("character", "c", "", "Character id (required)")
	cmd.Flags().StringP("pose", "p", model.DefaultPose, "Pose")
	cmd.Flags().StringP("emotion", "e", model.DefaultEmotion, "Emotion")
	cmd.Flags().StringP("type", "t", model.TypeCharacter, "Sprite type: character, family, pet, item, action")
	cmd.Flags().StringP("url", "u", "", "Image URL (required)")
	cmd.Flags().String("thumbnail", "", "Thumbnail URL")
	cmd.Flags().String("meta", "", "JSON metadata")
	cmd.Flags().Float64("at", 0, "Video timestamp in seconds")

	cmd.MarkFlagRequired("character")
	cmd.MarkFlagRequired("url")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	id, _ := cmd.Flags().GetString("id")
	character, _ := cmd.Flags().GetString("character")
	pose, _ := cmd.Flags().GetString("pose")
	emotion, _ := cmd.Flags().GetString("emotion")
	spriteType, _ := cmd.Flags().GetString("type")
	url, _ := cmd.Flags().GetString("url")
	thumbnail, _ := cmd.Flags().GetString("thumbnail")
	meta, _ := cmd.Flags().GetString("meta")
	at, _ := cmd.Flags().GetFloat64("at")

	sp := model.Sprite{
		ID:           id,
		CharacterID:  character,
		Type:         spriteType,
		Pose:         pose,
		Emotion:      emotion,
		URL:          url,
		ThumbnailURL: thumbnail,
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &sp.Metadata); err != nil {
			exitErr("parse meta", err)
		}
	}

	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if cmd.Flags().Changed("at") {
		id, err = s.PutTemporal(cmd.Context(), sp, at)
	} else {
		id, err = s.Put(cmd.Context(), sp)
	}
	if err != nil {
		exitErr("put", err)
	}

	stored, _ := s.Get(id)
	b, _ := json.Marshal(stored)
	fmt.Println(string(b))
}
