package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/sprite-memory/internal/learn"
	"github.com/rcliao/sprite-memory/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reinforce",
		Short: "Record feedback for a sprite choice",
		Long:  "Reinforce a sprite choice in a narrative context with a success score between 0 and 1.",
		Run:   runReinforce,
	}

	addContextFlags(cmd)
	cmd.Flags().StringP("pose", "p", "", "Chosen pose")
	cmd.Flags().String("choice-emotion", "", "Chosen sprite emotion")
	cmd.Flags().String("sprite", "", "Chosen sprite id")
	cmd.Flags().String("lighting", "", "Chosen lighting")
	cmd.Flags().Float64P("score", "s", 0, "Success score in [0,1] (required)")

	cmd.MarkFlagRequired("score")

	RootCmd.AddCommand(cmd)
}

// addContextFlags registers the narrative context flags shared by
// reinforce and suggest.
func addContextFlags(cmd *cobra.Command) {
	cmd.Flags().String("scene", "", "Scene setting")
	cmd.Flags().StringP("emotion", "e", "", "Scene emotion")
	cmd.Flags().String("action", "", "Scene action")
	cmd.Flags().StringP("character", "c", "", "Character id")
	cmd.Flags().String("time", "", "Time of day")
	cmd.Flags().String("story", "", "Story id")
}

func contextFromFlags(cmd *cobra.Command) learn.Context {
	scene, _ := cmd.Flags().GetString("scene")
	emotion, _ := cmd.Flags().GetString("emotion")
	action, _ := cmd.Flags().GetString("action")
	character, _ := cmd.Flags().GetString("character")
	timeOfDay, _ := cmd.Flags().GetString("time")
	story, _ := cmd.Flags().GetString("story")

	return learn.Context{
		Scene:       scene,
		Emotion:     emotion,
		Action:      action,
		CharacterID: character,
		TimeOfDay:   timeOfDay,
		StoryID:     story,
	}
}

func runReinforce(cmd *cobra.Command, args []string) {
	pose, _ := cmd.Flags().GetString("pose")
	choiceEmotion, _ := cmd.Flags().GetString("choice-emotion")
	sprite, _ := cmd.Flags().GetString("sprite")
	lighting, _ := cmd.Flags().GetString("lighting")
	score, _ := cmd.Flags().GetFloat64("score")

	e, err := openEngine()
	if err != nil {
		exitErr("open weights", err)
	}

	// Feedback never touches the store.
	svc := pipeline.New(pipeline.Deps{Engine: e})
	fb := pipeline.FeedbackRequest{
		Context: contextFromFlags(cmd),
		Choice: learn.Choice{
			Pose:     pose,
			Emotion:  choiceEmotion,
			SpriteID: sprite,
			Lighting: lighting,
		},
		Score: score,
	}
	if err := svc.Feedback(cmd.Context(), fb); err != nil {
		exitErr("reinforce", err)
	}
	saveEngine(e)

	printJSON(e.Stats())
}
