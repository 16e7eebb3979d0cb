package factory

import (
	"context"

	"github.com/mikey/freight-doc-engine/internal/adapters/dedup"
	"github.com/mikey/freight-doc-engine/internal/adapters/ingest"
	"github.com/mikey/freight-doc-engine/internal/config"
	"github.com/mikey/freight-doc-engine/internal/core"
	"github.com/mikey/freight-doc-engine/internal/ports"
	"go.uber.org/zap"
)

// SourceFactory creates message ingestion sources
type SourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMessageSource creates the SMTP ingestion source, with redis
// deduplication when enabled. Returns nil when ingestion is disabled,
// for deployments that load messages through the store directly.
func (f *SourceFactory) CreateMessageSource(ctx context.Context, messages core.MessageStore) (ports.MessageSource, error) {
	ingestCfg := f.cfg.GetIngest()
	if !ingestCfg.Enabled {
		return nil, nil
	}

	var deduper ingest.Deduper
	dedupCfg := f.cfg.GetDedup()
	if dedupCfg.Enabled {
		d, err := dedup.New(ctx, dedupCfg.RedisAddr, dedupCfg.RedisPassword,
			dedupCfg.RedisDB, dedupCfg.TTL, f.logger)
		if err != nil {
			return nil, err
		}
		deduper = d
	}

	return ingest.NewSMTPSource(messages, deduper, ingestCfg.ListenAddress, f.logger), nil
}
