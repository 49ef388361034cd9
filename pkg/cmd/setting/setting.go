package setting

import (
	"context"
	"fmt"

	"github.com/igolaizola/xenotune/pkg/storage"
)

// Keys that can be managed from the command line.
var Keys = []string{"jwt_secret"}

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	Key   string
	Value string
}

// Run stores the value of a setting or prints the current one when the
// value is empty.
func Run(ctx context.Context, cfg *Config) error {
	var known bool
	for _, k := range Keys {
		if k == cfg.Key {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("setting: unknown key: %q", cfg.Key)
	}

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("setting: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("setting: couldn't start orm store: %w", err)
	}
	defer func() { _ = store.Stop() }()

	if cfg.Value == "" {
		s, err := store.GetSetting(ctx, cfg.Key)
		if err != nil {
			return fmt.Errorf("setting: couldn't get %s: %w", cfg.Key, err)
		}
		fmt.Println(s.Value)
		return nil
	}
	if err := store.SetSetting(ctx, &storage.Setting{
		ID:    cfg.Key,
		Value: cfg.Value,
	}); err != nil {
		return fmt.Errorf("setting: couldn't save %s: %w", cfg.Key, err)
	}
	return nil
}
