package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/leadcrm/leadgate/internal/config"
	"github.com/leadcrm/leadgate/internal/db"
	"github.com/leadcrm/leadgate/internal/dispatcher"
	"github.com/leadcrm/leadgate/internal/kafka"
	"github.com/leadcrm/leadgate/internal/logger"
	"github.com/leadcrm/leadgate/internal/metrics"
	"github.com/leadcrm/leadgate/internal/repository"
	"github.com/leadcrm/leadgate/internal/worker"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Consume event envelopes from Kafka and deliver webhooks",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)
		metrics.MustRegister(prometheus.DefaultRegisterer)

		// 2) DB connection (MySQL)
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

		// 3) repositories
		subsRepo := repository.NewSubscriptionsRepository(dbx)
		deliveriesRepo := repository.NewDeliveriesRepository(dbx)

		// 4) dispatcher
		disp := dispatcher.New(subsRepo, cfg.Dispatcher.Timeout)

		// 5) kafka consumer
		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "leadgate-dispatch"
		}
		consumer := kafka.NewConsumerFromConfig(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          cfg.Kafka.Topic,
			GroupID:        groupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		defer consumer.Close()

		w := worker.NewDispatch(consumer, disp, deliveriesRepo)

		// tune knobs
		if cfg.Dispatcher.WorkerCount > 0 {
			w.Workers = cfg.Dispatcher.WorkerCount
		}
		if cfg.Dispatcher.BatchSize > 0 {
			w.BatchSize = cfg.Dispatcher.BatchSize
		}
		if cfg.Dispatcher.BatchWait > 0 {
			w.BatchWait = cfg.Dispatcher.BatchWait
		}

		// 6) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> dispatch started topic=%s group=%s workers=%d batchSize=%d batchWait=%s",
			cfg.Kafka.Topic, groupID, w.Workers, w.BatchSize, w.BatchWait)

		return w.Run(ctx)
	},
}
