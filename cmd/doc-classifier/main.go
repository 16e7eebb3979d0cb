package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/mikey/freight-doc-engine/internal/config"
	"github.com/mikey/freight-doc-engine/internal/core"
	"github.com/mikey/freight-doc-engine/internal/factory"
	"github.com/mikey/freight-doc-engine/internal/logging"
	"github.com/mikey/freight-doc-engine/internal/utils"
	"go.uber.org/zap"
)

var (
	// LLM provider flags
	provider    = flag.String("provider", "none", "Fallback LLM provider (none, bedrock, gemini, openai)")
	maxTokens   = flag.Int("max-tokens", 1000, "Maximum tokens for LLM response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for LLM generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for LLM generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum email body size to send to LLM")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")

	// Company flags
	ownDomains = flag.String("own-domains", "", "Comma-separated list of the forwarder's own email domains")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		// Create config from command line flags
		cfg = createConfigFromFlags()
	}

	// Initialize fallback classifier when a provider is configured
	textProcessor := utils.NewTextProcessor(logger)
	llmFactory := factory.NewLLMFactory(cfg, logger, textProcessor)
	fallback, err := llmFactory.CreateFallbackClassifier()
	if err != nil {
		logger.Fatal("Failed to create fallback classifier", zap.Error(err))
	}

	companyCfg := cfg.GetCompany()
	detector := core.NewDirectionDetector(companyCfg.OwnDomains, companyCfg.CarrierDomains, logger)
	classifier := core.NewDocumentClassifier(detector, fallback, logger)
	extractor := core.NewEntityExtractor(logger)
	actions := core.NewActionEngine(nil, 0, logger)

	// Read email from file or stdin
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	parsed, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	bodyBytes, err := io.ReadAll(parsed.Body)
	if err != nil {
		logger.Fatal("Failed to read email body", zap.Error(err))
	}

	from := parsed.Header.Get("From")
	subject := parsed.Header.Get("Subject")
	lowerSubject := strings.ToLower(subject)

	msg := &core.Message{
		ID:         strings.Trim(parsed.Header.Get("Message-Id"), "<> "),
		Subject:    subject,
		Sender:     from,
		Body:       string(bodyBytes),
		ReceivedAt: time.Now(),
		IsReply: parsed.Header.Get("In-Reply-To") != "" ||
			strings.HasPrefix(lowerSubject, "re:"),
	}
	if date, err := parsed.Header.Date(); err == nil {
		msg.ReceivedAt = date
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", from)
	fmt.Printf("Subject: %s\n", subject)
	fmt.Printf("Body length: %d bytes\n", len(msg.Body))
	fmt.Printf("\n")

	fmt.Printf("=== Analysis ===\n")
	fmt.Printf("Fallback provider: %s\n", cfg.GetString("llm.provider"))

	startTime := time.Now()

	cl, err := classifier.Classify(context.Background(), msg)
	if err != nil {
		logger.Fatal("Failed to classify email", zap.Error(err))
	}
	entities := extractor.ExtractAll(msg)
	duration := time.Since(startTime)

	party := core.PartyCustomer
	if _, ok := detector.IsCarrierDomain(msg.EffectiveSender()); ok {
		party = core.PartyCarrier
	} else if cl.Direction == core.DirectionOutbound {
		party = core.PartyInternal
	}
	rec := actions.Recommend(context.Background(), cl.DocType, party, msg.IsReply, msg.Subject, msg.Body, msg.ReceivedAt)

	// Print results
	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Document type: %s\n", cl.DocType)
	fmt.Printf("Direction: %s\n", cl.Direction)
	fmt.Printf("Confidence: %d\n", cl.Confidence)
	fmt.Printf("Source: %s\n", cl.Source)
	fmt.Printf("Manual review: %t\n", cl.ManualReview)
	if cl.Reasoning != "" {
		fmt.Printf("Reasoning: %s\n", cl.Reasoning)
	}

	if len(entities) > 0 {
		fmt.Printf("\n=== Entities ===\n")
		for _, e := range entities {
			fmt.Printf("%-18s %s (confidence %d, %s)\n", e.Type, e.Value, e.Confidence, e.Source)
		}
	}

	fmt.Printf("\n=== Recommended Action ===\n")
	fmt.Printf("Has action: %t\n", rec.HasAction)
	if rec.HasAction {
		fmt.Printf("Action: %s\n", rec.ActionVerb)
		fmt.Printf("Owner: %s\n", rec.Owner)
		fmt.Printf("Priority: %d (%s)\n", rec.Priority, rec.Bucket)
		if rec.Deadline != nil {
			fmt.Printf("Deadline: %s\n", rec.Deadline.Format(time.RFC3339))
		}
	}
	fmt.Printf("Processing time: %v\n", duration)

	// Close any resources that need closing
	if closer, ok := fallback.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close fallback classifier", zap.Error(err))
		}
	}
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	// Set LLM provider
	v.Set("llm.provider", *provider)

	// Set provider-specific configuration
	switch *provider {
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	}

	// Set own domains
	if *ownDomains != "" {
		domains := strings.Split(*ownDomains, ",")
		for i, domain := range domains {
			domains[i] = strings.TrimSpace(domain)
		}
		v.Set("company.own_domains", domains)
	} else {
		v.Set("company.own_domains", []string{})
	}

	return config.NewFromViper(v)
}
