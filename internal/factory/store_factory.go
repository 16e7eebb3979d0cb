package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikey/freight-doc-engine/internal/adapters/store"
	"github.com/mikey/freight-doc-engine/internal/config"
	"github.com/mikey/freight-doc-engine/internal/core"
	"go.uber.org/zap"
)

// Stores bundles the persistence interfaces one backend satisfies
// together
type Stores struct {
	Messages        core.MessageStore
	Classifications core.ClassificationStore
	Shipments       core.ShipmentStore
	Links           core.LinkStore
	ActionRules     core.ActionRuleStore
}

// StoreFactory creates persistence backends based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStores creates the persistence backend based on the configuration
func (f *StoreFactory) CreateStores(ctx context.Context) (*Stores, error) {
	storeCfg := f.cfg.GetStore()

	switch storeCfg.Type {
	case "memory":
		s := store.NewMemoryStore(f.logger)
		return bundle(s, s, s, s, s), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, storeCfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		s, err := store.NewPostgresStore(ctx, pool, f.logger)
		if err != nil {
			return nil, err
		}
		return bundle(s, s, s, s, s), nil
	case "sqlite":
		sqlitePath := storeCfg.SQLitePath
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		s, err := store.NewSQLStore("sqlite3", sqlitePath, f.logger)
		if err != nil {
			return nil, err
		}
		return bundle(s, s, s, s, s), nil
	case "mysql":
		s, err := store.NewSQLStore("mysql", storeCfg.MySQLDSN, f.logger)
		if err != nil {
			return nil, err
		}
		return bundle(s, s, s, s, s), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}

func bundle(
	messages core.MessageStore,
	classifications core.ClassificationStore,
	shipments core.ShipmentStore,
	links core.LinkStore,
	rules core.ActionRuleStore,
) *Stores {
	return &Stores{
		Messages:        messages,
		Classifications: classifications,
		Shipments:       shipments,
		Links:           links,
		ActionRules:     rules,
	}
}
