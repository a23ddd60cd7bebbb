package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/leadcrm/leadgate/internal/config"
	"github.com/leadcrm/leadgate/internal/db"
	"github.com/leadcrm/leadgate/internal/dispatcher"
	"github.com/leadcrm/leadgate/internal/logger"
	"github.com/leadcrm/leadgate/internal/metrics"
	"github.com/leadcrm/leadgate/internal/repository"
	"github.com/leadcrm/leadgate/internal/worker"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Sweep the delivery log and re-attempt failed deliveries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)
		metrics.MustRegister(prometheus.DefaultRegisterer)

		dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer dbx.Close()

		subsRepo := repository.NewSubscriptionsRepository(dbx)
		deliveriesRepo := repository.NewDeliveriesRepository(dbx)
		disp := dispatcher.New(subsRepo, cfg.Dispatcher.Timeout)

		w := worker.NewRetry(deliveriesRepo, subsRepo, disp)

		// tune knobs
		if cfg.Retry.MaxAttempts > 0 {
			w.MaxAttempts = cfg.Retry.MaxAttempts
		}
		if cfg.Retry.Interval > 0 {
			w.Interval = cfg.Retry.Interval
		}
		if cfg.Retry.BackoffBase > 0 {
			w.BackoffBase = cfg.Retry.BackoffBase
		}
		if cfg.Retry.BatchLimit > 0 {
			w.BatchLimit = cfg.Retry.BatchLimit
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> retry started interval=%s maxAttempts=%d backoffBase=%s batchLimit=%d",
			w.Interval, w.MaxAttempts, w.BackoffBase, w.BatchLimit)

		return w.Run(ctx)
	},
}
