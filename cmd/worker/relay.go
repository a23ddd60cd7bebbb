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
	"github.com/leadcrm/leadgate/internal/kafka"
	"github.com/leadcrm/leadgate/internal/logger"
	"github.com/leadcrm/leadgate/internal/metrics"
	"github.com/leadcrm/leadgate/internal/repository"
	"github.com/leadcrm/leadgate/internal/worker"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish pending outbox events to Kafka",
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

		outboxRepo := repository.NewOutboxRepository(dbx)
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()

		w := worker.NewRelay(outboxRepo, producer)

		if cfg.Relay.PollInterval > 0 {
			w.PollInterval = cfg.Relay.PollInterval
		}
		if cfg.Relay.BatchLimit > 0 {
			w.BatchLimit = cfg.Relay.BatchLimit
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> relay started topic=%s poll=%s batchLimit=%d",
			cfg.Kafka.Topic, w.PollInterval, w.BatchLimit)

		return w.Run(ctx)
	},
}
