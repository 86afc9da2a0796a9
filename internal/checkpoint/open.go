package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Config selects and configures a checkpoint driver.
type Config struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"` // memory (default), sqlite, postgres, redis
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`       // sqlite path or postgres DSN

	// redis
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// TTLSeconds expires idle threads; 0 keeps them forever.
	TTLSeconds int `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`

	// EncryptionKey seals state at rest with AES-256-GCM when set.
	EncryptionKey string `json:"encryption_key,omitempty" yaml:"encryption_key,omitempty"`
}

// Open returns the store selected by cfg.Driver, wrapped in an
// EncryptedStore when cfg.EncryptionKey is set.
func Open(ctx context.Context, cfg Config) (Store, error) {
	store, err := openDriver(ctx, cfg)
	if err != nil || cfg.EncryptionKey == "" {
		return store, err
	}
	enc, err := NewEncryptedStore(store, cfg.EncryptionKey)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	return enc, nil
}

func openDriver(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("checkpoint: sqlite driver requires dsn")
		}
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("checkpoint: create %s: %w", dir, err)
			}
		}
		return OpenSQLite(ctx, cfg.DSN)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("checkpoint: postgres driver requires dsn")
		}
		return OpenPostgres(ctx, cfg.DSN)
	case "redis":
		if cfg.Addr == "" {
			return nil, fmt.Errorf("checkpoint: redis driver requires addr")
		}
		return OpenRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("checkpoint: unknown driver %q", cfg.Driver)
	}
}
