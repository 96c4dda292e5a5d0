package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"actms/db"
	"actms/db/migrations"
	"actms/internal/config"
	"actms/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "actms",
	Short: "Anti-corruption tender management system",
	Long: `ACTMS runs a public tender portal that scores every submitted bid with an
anomaly model, raises live alerts for suspicious bids and keeps an audit
trail of every action.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default actms.yaml if present)")
	rootCmd.AddCommand(serveCmd, migrateCmd, trainCmd, tokenCmd, checkCmd)
}

// env is what every subcommand starts from.
type env struct {
	cfg *config.Config
	log *zap.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: logging.New(cfg.Environment, cfg.LogLevel)}, nil
}

// openStorage connects to the configured database and brings the schema up
// to date.
func (e *env) openStorage(ctx context.Context) (*sqlx.DB, *db.Storage, error) {
	conn, err := db.Open(ctx, e.cfg.Database.Driver, e.cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Run(ctx, conn.DB, e.cfg.Database.Driver, e.log.Named("migrations")); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return conn, db.NewStorage(conn), nil
}
