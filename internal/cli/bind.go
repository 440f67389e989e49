package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sprite-memory/internal/binder"
)

func init() {
	cmd := &cobra.Command{
		Use:   "bind [text]",
		Short: "Extract characters, actions, and setting from a scene",
		Long:  "Bind one scene of narrative text to the character mapping. Text can be a positional arg or piped via stdin.",
		Run:   runBind,
	}

	addCharFlag(cmd)

	RootCmd.AddCommand(cmd)
}

func runBind(cmd *cobra.Command, args []string) {
	text := readText(args)
	if text == "" {
		exitErr("bind", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	b := binder.New()
	b.SetCharacterMapping(characterMapping(cmd))
	bd := b.Bind(text)

	printJSON(map[string]any{
		"binding":      bd,
		"requirements": bd.Requirement(),
	})
}
