package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ToffenYT/varsly/internal/handlers"
	"github.com/ToffenYT/varsly/internal/logger"
	"github.com/ToffenYT/varsly/internal/scheduler"
)

func (c *cli) serveCmd() *cobra.Command {
	var (
		migrate     bool
		noScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the ingest/digest schedule",
		Long: `Start the HTTP API (unsubscribe, alert webhook, internal triggers,
subscriber management, /metrics) and, unless --no-scheduler is given,
the cron schedule for ingest and digest runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.GetLogger("main")
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, c.cfg, appOptions{migrate: migrate})
			if err != nil {
				return err
			}
			defer a.close()

			server := handlers.NewApp(handlers.Deps{
				Store:           a.store,
				Signer:          a.signer,
				Events:          a.events,
				Router:          a.router,
				Pipeline:        a.pipeline,
				APIKey:          c.cfg.Server.InternalAPIKey,
				Telemetry:       a.tel,
				AccessLog:       true,
				TimeZone:        c.cfg.Schedule.Timezone,
				WebhookDelivery: !c.cfg.Dispatch.InlineDelivery(),
			})

			if a.db != nil {
				go a.db.CollectPoolMetrics(ctx, 15*time.Second)
			}

			var sched *scheduler.Scheduler
			if !noScheduler {
				sched = scheduler.New(c.cfg.Schedule.Location(),
					scheduler.Job{
						Name:       "ingest",
						Spec:       c.cfg.Schedule.IngestCron,
						RunAtStart: c.cfg.Schedule.RunAtStart,
						Run: func(ctx context.Context) error {
							_, err := a.pipeline.Run(ctx)
							return err
						},
					},
					scheduler.Job{
						Name: "digest",
						Spec: c.cfg.Schedule.DigestCron,
						Run: func(ctx context.Context) error {
							_, err := a.router.Digest(ctx)
							return err
						},
					},
				)
				if err := sched.Start(ctx); err != nil {
					return err
				}
			}

			errCh := make(chan error, 1)
			go func() {
				log.Infof("server starting on port %s", c.cfg.Server.Port)
				errCh <- server.Listen(":" + c.cfg.Server.Port)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("listen: %w", err)
				}
			case <-ctx.Done():
				log.Info("shutting down...")
			}

			if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
				log.Warnf("server shutdown: %v", err)
			}
			if sched != nil {
				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := sched.Stop(stopCtx); err != nil {
					log.Warnf("scheduler did not stop in time: %v", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "create tables before serving")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve HTTP only; runs are triggered externally")
	return cmd
}
