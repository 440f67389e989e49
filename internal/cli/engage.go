package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/sprite-memory/internal/learn"
)

func init() {
	cmd := &cobra.Command{
		Use:   "engage <story-id>",
		Short: "Feed story engagement back into a running server",
		Long: "Replay the sprite choices made for a story, scored by how readers engaged with it. " +
			"Reinforcement history lives only in the serving process, so this posts to a running " +
			"`sprite-memory serve`. Rates are in [0,1].",
		Args: cobra.ExactArgs(1),
		Run:  runEngage,
	}

	cmd.Flags().Float64("completion", 0, "Completion rate")
	cmd.Flags().Float64("like", 0, "Like rate")
	cmd.Flags().Float64("share", 0, "Share rate")
	cmd.Flags().Float64("replay", 0, "Replay rate")
	cmd.Flags().String("server", "", "Server base URL (default: derived from the listen address)")

	RootCmd.AddCommand(cmd)
}

func runEngage(cmd *cobra.Command, args []string) {
	completion, _ := cmd.Flags().GetFloat64("completion")
	like, _ := cmd.Flags().GetFloat64("like")
	share, _ := cmd.Flags().GetFloat64("share")
	replay, _ := cmd.Flags().GetFloat64("replay")
	server, _ := cmd.Flags().GetString("server")

	if server == "" {
		server = "http://" + cfg.Listen
		if strings.HasPrefix(cfg.Listen, ":") {
			server = "http://localhost" + cfg.Listen
		}
	}

	body, _ := json.Marshal(learn.EngagementMetrics{
		CompletionRate: completion,
		LikeRate:       like,
		ShareRate:      share,
		ReplayRate:     replay,
	})
	endpoint := strings.TrimRight(server, "/") + "/learning/engagement/" + url.PathEscape(args[0])

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		exitErr("engage", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		exitErr("engage", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		exitErr("read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		exitErr("engage", fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(out))))
	}
	fmt.Println(strings.TrimSpace(string(out)))
}
