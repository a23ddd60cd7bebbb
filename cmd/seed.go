package cmd

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/leadcrm/leadgate/internal/config"
	"github.com/leadcrm/leadgate/internal/db"
	"github.com/leadcrm/leadgate/internal/model"
	"github.com/leadcrm/leadgate/internal/util"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo organizations and subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo organizations...")
		if err := seedOrganizations(sqlDB); err != nil {
			return err
		}
		log.Println(">> Seeding demo subscriptions...")
		if err := seedSubscriptions(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

// seedOrganizations inserts deterministic demo tenants (idempotent).
func seedOrganizations(dbx *sqlx.DB) error {
	orgs := []model.Organization{
		{
			Name:         "Acme Corp",
			APIKey:       "11111111111111111111111111111111",
			Status:       "active",
			RateLimitRPS: intptr(20),
		},
		{
			Name:         "Foobar LLC",
			APIKey:       "22222222222222222222222222222222",
			Status:       "active",
			RateLimitRPS: intptr(50),
		},
		{
			Name:         "Beta Testers",
			APIKey:       "33333333333333333333333333333333",
			Status:       "active",
			RateLimitRPS: intptr(5),
		},
		{
			Name:         "Suspended Inc",
			APIKey:       "44444444444444444444444444444444",
			Status:       "suspended",
			RateLimitRPS: nil,
		},
	}

	const q = `
		INSERT INTO organizations (name, api_key, status, rate_limit_rps)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), status = VALUES(status)
	`
	for _, o := range orgs {
		if _, err := dbx.Exec(q, o.Name, o.APIKey, o.Status, o.RateLimitRPS); err != nil {
			return fmt.Errorf("seed organization %s: %w", o.Name, err)
		}
	}
	return nil
}

// seedSubscriptions gives the first two demo tenants one webhook each,
// pointed at a local echo receiver for manual testing.
func seedSubscriptions(dbx *sqlx.DB) error {
	type seedSub struct {
		apiKey string
		name   string
		url    string
		events []string
	}
	subs := []seedSub{
		{
			apiKey: "11111111111111111111111111111111",
			name:   "Acme CRM sync",
			url:    "http://127.0.0.1:9100/hooks/leads",
			events: []string{model.EventLeadCreated, model.EventLeadUpdated, model.EventLeadStageChanged},
		},
		{
			apiKey: "22222222222222222222222222222222",
			name:   "Foobar intake",
			url:    "http://127.0.0.1:9101/hooks/intake",
			events: []string{model.EventLeadReceived},
		},
	}

	const q = `
		INSERT INTO webhook_subscriptions (id, organization_id, name, url, secret, events, enabled)
		SELECT ?, o.id, ?, ?, ?, ?, 1
		FROM organizations o
		WHERE o.api_key = ?
		  AND NOT EXISTS (
		      SELECT 1 FROM webhook_subscriptions s
		      WHERE s.organization_id = o.id AND s.name = ?
		  )
	`
	for _, s := range subs {
		events, err := json.Marshal(s.events)
		if err != nil {
			return err
		}
		secret := util.New() // demo secret; real ones come from the settings UI
		if _, err := dbx.Exec(q, util.New(), s.name, s.url, secret, events, s.apiKey, s.name); err != nil {
			return fmt.Errorf("seed subscription %s: %w", s.name, err)
		}
	}
	return nil
}

func intptr(v int) *int { return &v }
