package migrate

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/igolaizola/xenotune/pkg/storage"
)

type Config struct {
	DBType string
	DBConn string
}

// Run migrates the database and removes revoked tokens that already expired.
func Run(ctx context.Context, cfg *Config) error {
	store, err := storage.New(cfg.DBType, cfg.DBConn, true)
	if err != nil {
		return fmt.Errorf("migrate: couldn't create: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("migrate: couldn't start: %w", err)
	}
	defer func() { _ = store.Stop() }()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: couldn't migrate: %w", err)
	}
	if err := store.PurgeTokens(ctx, time.Now()); err != nil {
		return fmt.Errorf("migrate: couldn't purge tokens: %w", err)
	}
	version, err := store.Version(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Printf("migrate: database ready (version %d)\n", version)
	return nil
}
