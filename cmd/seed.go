package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hostwell/mailgate/internal/config"
	"github.com/hostwell/mailgate/internal/db"
	"github.com/hostwell/mailgate/internal/model"
	"github.com/hostwell/mailgate/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo agents and templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect MySQL
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

		log.Println(">> Seeding demo agents...")

		if err := seedAgents(sqlDB); err != nil {
			return err
		}
		if err := seedTemplates(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seedAgents inserts deterministic demo agents (idempotent).
func seedAgents(dbx *sqlx.DB) error {
	agents := []model.Agent{
		{
			Name:         "Dana Fields",
			Email:        "dana@hostwell.example",
			APIKey:       "11111111111111111111111111111111",
			Status:       "active",
			RateLimitRPS: intptr(20),
		},
		{
			Name:         "Marcus Reyes",
			Email:        "marcus@hostwell.example",
			APIKey:       "22222222222222222222222222222222",
			Status:       "active",
			RateLimitRPS: intptr(5),
		},
		{
			Name:         "Suspended Agent",
			Email:        "gone@hostwell.example",
			APIKey:       "33333333333333333333333333333333",
			Status:       "suspended",
			RateLimitRPS: nil,
		},
	}

	// idempotent upsert based on api_key (UNIQUE)
	const q = `
INSERT INTO agents
    (name, email, api_key, status, rate_limit_rps, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name        = VALUES(name),
    email       = VALUES(email),
    status      = VALUES(status),
    rate_limit_rps = VALUES(rate_limit_rps),
    updated_at  = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, a := range agents {
		if _, err := tx.Exec(q, a.Name, a.Email, a.APIKey, a.Status, a.RateLimitRPS, now, now); err != nil {
			return fmt.Errorf("insert agent %q: %w", a.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit agents: %w", err)
	}
	return nil
}

// seedTemplates gives the first demo agent a follow-up template with declared
// variables so the render endpoints have something to chew on.
func seedTemplates(dbx *sqlx.DB) error {
	var agentID int64
	if err := dbx.Get(&agentID, `SELECT id FROM agents WHERE api_key = ? LIMIT 1`,
		"11111111111111111111111111111111"); err != nil {
		return fmt.Errorf("lookup demo agent: %w", err)
	}

	templates := repository.NewTemplatesRepository(dbx)
	return templates.Upsert(context.Background(), model.Template{
		AgentID:  agentID,
		Name:     "open-house-followup",
		Subject:  "Great meeting you at {{address}}",
		BodyText: "Hi {{firstname}},\n\nThanks for stopping by {{address}} today. Let me know if you have questions!\n",
		BodyHTML: "<p>Hi {{firstname}},</p><p>Thanks for stopping by <b>{{address}}</b> today. Let me know if you have questions!</p>",
		Variables: []model.VariableDecl{
			{Key: "firstname", Label: "Visitor first name", Example: "there"},
			{Key: "address", Label: "Listing address", Example: "the open house"},
		},
	})
}

func intptr(i int) *int { return &i }
