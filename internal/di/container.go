package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/freight-doc-engine/internal/config"
	"github.com/mikey/freight-doc-engine/internal/core"
	"github.com/mikey/freight-doc-engine/internal/factory"
	"github.com/mikey/freight-doc-engine/internal/logging"
	"github.com/mikey/freight-doc-engine/internal/pipeline"
	"github.com/mikey/freight-doc-engine/internal/ports"
	"github.com/mikey/freight-doc-engine/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSourceFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register fallback classifier
	if err := container.Provide(func(f *factory.LLMFactory) (core.FallbackClassifier, error) {
		return f.CreateFallbackClassifier()
	}); err != nil {
		return nil, err
	}

	// Register stores
	if err := container.Provide(func(f *factory.StoreFactory) (*factory.Stores, error) {
		return f.CreateStores(context.Background())
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *factory.Stores) core.MessageStore { return s.Messages }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *factory.Stores) core.ClassificationStore { return s.Classifications }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *factory.Stores) core.ShipmentStore { return s.Shipments }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *factory.Stores) core.LinkStore { return s.Links }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *factory.Stores) core.ActionRuleStore { return s.ActionRules }); err != nil {
		return nil, err
	}

	// Register direction detector
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *core.DirectionDetector {
		companyCfg := cfg.GetCompany()
		if len(companyCfg.OwnDomains) > 0 {
			logger.Info("Loaded own domains", zap.Strings("domains", companyCfg.OwnDomains))
		}
		return core.NewDirectionDetector(companyCfg.OwnDomains, companyCfg.CarrierDomains, logger)
	}); err != nil {
		return nil, err
	}

	// Register engine components
	if err := container.Provide(core.NewDocumentClassifier); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewEntityExtractor); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewLinkResolver); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewStateMachine); err != nil {
		return nil, err
	}
	if err := container.Provide(func(store core.ActionRuleStore, cfg *config.Config, logger *zap.Logger) *core.ActionEngine {
		return core.NewActionEngine(store, cfg.GetActions().RuleCacheTTL, logger)
	}); err != nil {
		return nil, err
	}

	// Register engine service
	if err := container.Provide(core.NewDocEngineService); err != nil {
		return nil, err
	}

	// Register pipeline processor
	if err := container.Provide(func(
		service *core.DocEngineService,
		messages core.MessageStore,
		cfg *config.Config,
		logger *zap.Logger,
	) *pipeline.Processor {
		pipelineCfg := cfg.GetPipeline()
		return pipeline.NewProcessor(
			service,
			messages,
			pipelineCfg.BatchSize,
			pipelineCfg.PollInterval,
			pipelineCfg.Workers,
			pipelineCfg.OrphanRetryInterval,
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register message source
	if err := container.Provide(func(
		f *factory.SourceFactory,
		messages core.MessageStore,
	) (ports.MessageSource, error) {
		return f.CreateMessageSource(context.Background(), messages)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
