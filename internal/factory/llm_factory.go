package factory

import (
	"fmt"

	"github.com/mikey/freight-doc-engine/internal/adapters/bedrock"
	"github.com/mikey/freight-doc-engine/internal/adapters/gemini"
	"github.com/mikey/freight-doc-engine/internal/adapters/llm"
	"github.com/mikey/freight-doc-engine/internal/adapters/openai"
	"github.com/mikey/freight-doc-engine/internal/config"
	"github.com/mikey/freight-doc-engine/internal/core"
	"github.com/mikey/freight-doc-engine/internal/utils"
	"go.uber.org/zap"
)

// LLMFactory creates fallback classifiers
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateFallbackClassifier creates a classifier for the configured
// provider, wrapped with rate limiting and retries
func (f *LLMFactory) CreateFallbackClassifier() (core.FallbackClassifier, error) {
	llmConfig := f.cfg.GetLLM()

	var inner core.FallbackClassifier
	var err error

	switch llmConfig.Provider {
	case "bedrock":
		bedrockCfg := f.cfg.GetBedrock()
		factory := bedrock.NewFactory(
			bedrockCfg.Region,
			bedrockCfg.ModelID,
			bedrockCfg.MaxTokens,
			bedrockCfg.Temperature,
			bedrockCfg.TopP,
			bedrockCfg.MaxBodySize,
			f.logger,
			f.textProcessor,
		)
		inner, err = factory.CreateClassifier()
	case "gemini":
		geminiCfg := f.cfg.GetGemini()
		if geminiCfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key is required")
		}
		factory := gemini.NewFactory(
			geminiCfg.APIKey,
			geminiCfg.ModelName,
			geminiCfg.MaxTokens,
			geminiCfg.Temperature,
			geminiCfg.TopP,
			geminiCfg.MaxBodySize,
			f.logger,
		)
		inner, err = factory.CreateClassifier()
	case "openai":
		openaiCfg := f.cfg.GetOpenAI()
		if openaiCfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key is required")
		}
		factory := openai.NewFactory(
			openaiCfg.APIKey,
			openaiCfg.ModelName,
			openaiCfg.MaxTokens,
			openaiCfg.Temperature,
			openaiCfg.TopP,
			openaiCfg.MaxBodySize,
			f.logger,
		)
		inner, err = factory.CreateClassifier()
	case "none":
		// Pattern cascade only; unmatched messages classify as unknown.
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
	if err != nil {
		return nil, err
	}

	return llm.NewThrottledClassifier(
		inner,
		llmConfig.RequestsPerSecond,
		llmConfig.Burst,
		llmConfig.MaxRetries,
		llmConfig.RetryBackoff,
		f.logger,
	), nil
}
