package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerline/billrun/internal/config"
	"github.com/ledgerline/billrun/internal/email"
	"github.com/ledgerline/billrun/internal/engine"
	"github.com/ledgerline/billrun/internal/qr"
	"github.com/ledgerline/billrun/internal/service"
	"github.com/ledgerline/billrun/internal/storage"
)

// initStorage opens the configured database and brings its schema up to
// date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/billrun/bills.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initSender builds the SMTP sender from config. Commands that deliver
// email require smtp.host to be configured.
func initSender() (service.Sender, error) {
	host := viper.GetString("smtp.host")
	if host == "" {
		return nil, fmt.Errorf("smtp.host is not configured")
	}
	return email.NewSMTPSender(email.Config{
		Host:     host,
		Port:     viper.GetInt("smtp.port"),
		Username: viper.GetString("smtp.username"),
		Password: viper.GetString("smtp.password"),
	})
}

// initEngine wires a billing engine with the real sender and QR renderer.
func initEngine(store *storage.SQLiteStorage) (*engine.BillingEngine, error) {
	sender, err := initSender()
	if err != nil {
		return nil, err
	}
	return engine.New(store, sender, qr.NewRenderer()), nil
}

// asOfTime parses the --as-of flag, defaulting to the current time.
func asOfTime(cmd *cobra.Command) (time.Time, error) {
	asOf, _ := cmd.Flags().GetString("as-of")
	if asOf == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse("2006-01-02", asOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of date %q: %w", asOf, err)
	}
	return t, nil
}
