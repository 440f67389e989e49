package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/sprite-memory/internal/api"
	"github.com/rcliao/sprite-memory/internal/config"
	"github.com/rcliao/sprite-memory/internal/learn"
	"github.com/rcliao/sprite-memory/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: "Serve the scene, sprite, and learning API with Prometheus metrics on /metrics. " +
			"Learned weights are saved periodically and on shutdown.",
		Run: runServe,
	}

	cmd.Flags().StringP(config.KeyListen, "l", v.GetString(config.KeyListen), "Listen address (env: SPRITE_MEMORY_LISTEN)")
	cmd.Flags().Duration("save-interval", 5*time.Minute, "How often to save learned weights (0 to save only on shutdown)")

	v.BindPFlag(config.KeyListen, cmd.Flags().Lookup(config.KeyListen))

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	interval, _ := cmd.Flags().GetDuration("save-interval")

	s, err := openStore(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	e, err := openEngine()
	if err != nil {
		exitErr("open weights", err)
	}

	rec := metrics.New(metrics.DefaultConfig())
	rec.SetSprites(s.Stats().TotalSprites)

	handler := api.NewHandler(api.Deps{
		Service: newService(s, e, rec),
		Store:   s,
		Engine:  e,
		Metrics: rec,
		Logger:  slog.Default(),
	})
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if interval > 0 {
		go saveEvery(ctx, e, interval)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serve: listening", "addr", cfg.Listen, "db", cfg.DB, "weights", cfg.Weights)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			exitErr("serve", err)
		}
	case <-ctx.Done():
		slog.Info("serve: shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("serve: shutdown", "err", err)
	}
	saveEngine(e)
}

func saveEvery(ctx context.Context, e *learn.Engine, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := e.Save(cfg.Weights); err != nil {
				slog.Warn("serve: save weights", "err", err)
			}
		}
	}
}
