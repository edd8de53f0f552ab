package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/api"
	"github.com/aqlens/airsync/internal/backoff"
	"github.com/aqlens/airsync/internal/bridge"
	"github.com/aqlens/airsync/internal/notify"
	"github.com/aqlens/airsync/internal/push"
	"github.com/aqlens/airsync/internal/store"
	"github.com/aqlens/airsync/internal/sync"
	"github.com/aqlens/airsync/internal/view"
)

// watchedSyncer keeps the outage watcher's location in step with the
// synchronizer when the bridge switches locations.
type watchedSyncer struct {
	*sync.Synchronizer
	watcher *notify.Watcher
}

func (w *watchedSyncer) SetLocation(location string) {
	w.watcher.SetLocation(location)
	w.Synchronizer.SetLocation(location)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync agent and serve the dashboard bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			logger.Info("agent starting",
				zap.String("location", cfg.Location),
				zap.Bool("preferPush", cfg.Push.Preferred),
				zap.String("pushURL", cfg.Push.URL),
				zap.String("pullBaseURL", cfg.Pull.BaseURL),
				zap.Duration("pollInterval", cfg.PollInterval()),
			)

			// Pull path
			client := api.NewClient(
				cfg.Pull.BaseURL,
				cfg.Pull.RatePerSecond,
				time.Duration(cfg.Pull.TimeoutSec)*time.Second,
				cfg.Pull.RetryCount,
				logger,
			)

			// Push path
			channel := push.NewClient(push.Config{
				URL:         cfg.Push.URL,
				MaxAttempts: cfg.Push.MaxAttempts,
				Heartbeat:   cfg.Heartbeat(),
				Backoff: backoff.Policy{
					Base: time.Duration(cfg.Push.BackoffBaseSec) * time.Second,
					Cap:  time.Duration(cfg.Push.BackoffCapSec) * time.Second,
				},
			}, logger)

			// Optional persistence, so restarts start warm
			var st *store.Store
			if cfg.Store.Enabled {
				var err error
				st, err = store.Open(cfg.Store.Path)
				if err != nil {
					return err
				}
				defer st.Close()
			}
			v := view.New(st, logger)

			syncer := sync.New(
				channel,
				client.Current,
				sync.StaticCapabilities(cfg.Push.URL != ""),
				sync.Options{
					Location:     cfg.Location,
					PreferPush:   cfg.Push.Preferred,
					PollInterval: cfg.PollInterval(),
				},
				logger,
			)

			cancelView := syncer.SubscribeUpdates(v.OnUpdate)
			defer cancelView()

			// Dual-unavailability alerting
			notifier := notify.New(cfg.NotifyConfig(), logger)
			watcher := notify.NewWatcher(notifier, cfg.Location, logger)
			cancelWatch := syncer.SubscribeStatus(watcher.Observe)
			defer cancelWatch()

			br := bridge.New(&watchedSyncer{Synchronizer: syncer, watcher: watcher}, v, cfg.Location, logger)

			go v.Run(ctx)
			go syncer.Run(ctx)
			go br.Run(ctx)

			httpServer := &http.Server{
				Addr:         cfg.Bridge.Addr,
				Handler:      br.Router(),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 0, // SSE connections stay open
			}

			go func() {
				logger.Info("bridge listening", zap.String("addr", httpServer.Addr))
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("bridge server error", zap.Error(err))
				}
			}()

			<-ctx.Done()
			logger.Info("agent shutting down")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
}
