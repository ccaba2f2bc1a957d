package main

import (
	"fmt"

	"github.com/pario-ai/sift/pkg/cache"
	cachemem "github.com/pario-ai/sift/pkg/cache/memory"
	cacheredis "github.com/pario-ai/sift/pkg/cache/redis"
	cachesqlite "github.com/pario-ai/sift/pkg/cache/sqlite"
	"github.com/pario-ai/sift/pkg/config"
	"github.com/pario-ai/sift/pkg/history"
	histmem "github.com/pario-ai/sift/pkg/history/memory"
	"github.com/pario-ai/sift/pkg/history/sqldb"
)

// openCache opens the configured cache backend. It returns a nil store when
// caching is disabled.
func openCache(cfg *config.Config) (cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	var (
		store cache.Store
		err   error
	)
	switch cfg.Cache.Backend {
	case "memory":
		store, err = cachemem.New(cfg.Cache.Shards)
	case "sqlite":
		store, err = cachesqlite.New(cfg.Cache.DBPath)
	case "redis":
		store, err = cacheredis.New(cacheredis.Config(cfg.Cache.Redis))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}
	return store, nil
}

// openLedger opens the configured history backend.
func openLedger(cfg *config.Config) (history.Ledger, error) {
	switch cfg.History.Backend {
	case "memory":
		return histmem.New(histmem.WithRetention(cfg.History.RetentionDays)), nil
	case sqldb.DriverSQLite, sqldb.DriverPostgres:
		l, err := sqldb.Open(sqldb.Config{
			Driver:        cfg.History.Backend,
			DSN:           cfg.History.DSN,
			RetentionDays: cfg.History.RetentionDays,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s history: %w", cfg.History.Backend, err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
}

func closeQuietly(c interface{ Close() error }) {
	if c != nil {
		_ = c.Close()
	}
}
