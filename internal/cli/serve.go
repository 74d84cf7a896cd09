package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nidhogg/crew/internal/api"
	"github.com/nidhogg/crew/internal/config"
	"github.com/nidhogg/crew/internal/cron"
	"github.com/nidhogg/crew/internal/gateway"
)

func newServeCmd(o *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, event feed and scheduled rounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), o, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func toSchedules(in []config.ScheduleConfig) []cron.Schedule {
	out := make([]cron.Schedule, len(in))
	for i, s := range in {
		out[i] = cron.Schedule{Name: s.Name, Expr: s.Cron, Prompt: s.Prompt}
	}
	return out
}

func serve(ctx context.Context, o *options, addr string) error {
	cfg, path, logger, err := o.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	if addr == "" {
		addr = cfg.Server.Addr
	}

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	hub := gateway.NewWebSocketHub(logger)
	a.broadcaster.Add(hub)

	scheduler, err := cron.NewService(toSchedules(cfg.Schedules), func(ctx context.Context, prompt string) error {
		_, err := a.steward.Run(ctx, prompt)
		return err
	}, logger)
	if err != nil {
		return err
	}
	scheduler.Start()

	if path != "" {
		w, err := config.Watch(path, func(next *config.Config) {
			reg, err := next.Roster()
			if err != nil {
				logger.Warn("reloaded roster rejected", zap.Error(err))
				return
			}
			a.steward.SetRoster(reg)
		}, logger)
		if err != nil {
			logger.Warn("config hot reload disabled", zap.String("path", path), zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	deps := api.Deps{
		Steward:     a.steward,
		Providers:   a.router,
		Cache:       a.cache,
		Broadcaster: a.broadcaster,
		Events:      hub,
		Metrics:     a.metrics.Handler(),
		Schedules:   scheduler.Entries,
	}
	if a.store != nil {
		deps.History = a.store
	}
	handler := api.NewHandler(deps, logger)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("crew listening", zap.String("addr", addr), zap.Int("agents", a.steward.Roster().Len()))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = scheduler.Stop(context.Background())
			return err
		}
	}

	logger.Info("shutting down crew")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduled rounds did not finish", zap.Error(err))
	}
	return srv.Shutdown(shutdownCtx)
}
