package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export <character-id>",
		Short: "Export a character's sprites as a JSON manifest",
		Args:  cobra.ExactArgs(1),
		Run:   runExport,
	}

	cmd.Flags().StringP("output", "o", "", "Write the manifest to a file instead of stdout")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	output, _ := cmd.Flags().GetString("output")

	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m := s.ExportManifest(args[0])
	b, _ := json.MarshalIndent(m, "", "  ")
	if output == "" {
		fmt.Println(string(b))
		return
	}
	if err := os.WriteFile(output, append(b, '\n'), 0o644); err != nil {
		exitErr("write manifest", err)
	}
	fmt.Printf(`{"ok":true,"character_id":%q,"sprites":%d,"path":%q}`+"\n", m.CharacterID, m.SpriteCount, output)
}
