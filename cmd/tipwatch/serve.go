package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/tipwatch/internal/config"
	"github.com/yourusername/tipwatch/internal/health"
	"github.com/yourusername/tipwatch/internal/metrics"
	"github.com/yourusername/tipwatch/internal/models"
	"github.com/yourusername/tipwatch/internal/reconcile"
	"github.com/yourusername/tipwatch/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Reconcile recent days on a schedule and expose health and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := openRepositories(ctx); err != nil {
				return err
			}
			if err := openFeeds(ctx); err != nil {
				return err
			}
			if cfg.Metrics.Enabled {
				metrics.InitRegistry()
			}

			srvCfg := health.Config{
				ServiceName: cfg.App.Name,
				Version:     Version,
				Port:        cfg.Health.Port,
				Logger:      appLog,
				DB:          db,
				MetricsPath: cfg.Metrics.Path,
			}
			if cfg.Metrics.Enabled {
				srvCfg.MetricsHandler = metrics.Handler()
			}
			srv := health.NewServer(srvCfg)
			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("failed to start health server: %w", err)
			}

			agg := newAggregator()
			sched := scheduler.NewScheduler(newReconciler(), scheduler.Config{
				Location:   cfg.Location(),
				JobTimeout: config.Timeout(cfg.Scheduler.JobTimeoutSeconds, 10*time.Minute),
				OnReconciled: func(date time.Time, report *reconcile.Report) {
					agg.Cache().Invalidate(date)
					rollup, err := agg.DayRollup(ctx, date)
					if err != nil {
						appLog.WithError(err).Warn("Failed to compute day rollup")
						return
					}
					appLog.WithFields(logrus.Fields{
						"date":      models.DateKey(date),
						"tips":      rollup.Stats.Tips,
						"wins":      rollup.Stats.Wins,
						"profit":    rollup.Stats.Profit().String(),
						"quinellas": rollup.Quinellas,
						"trifectas": rollup.Trifectas,
						"pending":   report.Pending,
					}).Info("Day settled")
				},
			}, appLog)

			if cfg.Scheduler.Enabled {
				if err := sched.ScheduleReconcileRecent(cfg.Scheduler.ReconcileCron); err != nil {
					return err
				}
				if err := sched.Start(); err != nil {
					return err
				}
				defer func() {
					if err := sched.Stop(); err != nil {
						appLog.WithError(err).Warn("Scheduler did not stop cleanly")
					}
				}()
			} else {
				appLog.Warn("Scheduler disabled; serving health and metrics only")
			}

			if runNow {
				if err := sched.RunRecent(ctx); err != nil {
					appLog.WithError(err).Error("Initial reconciliation failed")
				}
			}

			srv.SetReady(true)
			appLog.WithFields(logrus.Fields{
				"port":     cfg.Health.Port,
				"next_run": sched.GetNextRun(),
			}).Info("tipwatch serving")

			<-ctx.Done()
			appLog.Info("Shutdown signal received")
			srv.SetReady(false)
			return srv.Shutdown()
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Reconcile yesterday and today once before waiting for the schedule")
	return cmd
}
