package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "purge <character-id>",
		Short: "Delete every sprite and frame of a character",
		Args:  cobra.ExactArgs(1),
		Run:   runPurge,
	}

	RootCmd.AddCommand(cmd)
}

func runPurge(cmd *cobra.Command, args []string) {
	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.PurgeCharacter(cmd.Context(), args[0])
	if err != nil {
		exitErr("purge", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"character_id":%q,"deleted":%d}`+"\n", args[0], n)
}
