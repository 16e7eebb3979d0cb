package config

import "time"

// LLMConfig represents the configuration for the fallback LLM provider
type LLMConfig struct {
	Provider          string
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	RetryBackoff      time.Duration
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// CompanyConfig identifies the forwarder's own domains and any carrier
// domain overrides
type CompanyConfig struct {
	OwnDomains     []string
	CarrierDomains map[string]string
}

// StoreConfig represents the persistence configuration
type StoreConfig struct {
	Type        string
	PostgresDSN string
	SQLitePath  string
	MySQLDSN    string
}

// PipelineConfig represents the batch processor configuration
type PipelineConfig struct {
	BatchSize           int
	PollInterval        time.Duration
	Workers             int
	OrphanRetryInterval time.Duration
}

// ActionsConfig represents the action rule engine configuration
type ActionsConfig struct {
	RuleCacheTTL time.Duration
}

// IngestConfig represents the SMTP ingestion configuration
type IngestConfig struct {
	Enabled       bool
	ListenAddress string
}

// DedupConfig represents the redis deduplication configuration
type DedupConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	backoff, err := c.GetDuration("llm.retry_backoff")
	if err != nil {
		backoff = 2 * time.Second
	}
	return LLMConfig{
		Provider:          c.GetString("llm.provider"),
		RequestsPerSecond: c.GetFloat64("llm.requests_per_second"),
		Burst:             c.GetInt("llm.burst"),
		MaxRetries:        c.GetInt("llm.max_retries"),
		RetryBackoff:      backoff,
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetCompany returns the company identity configuration
func (c *Config) GetCompany() CompanyConfig {
	return CompanyConfig{
		OwnDomains:     c.GetStringSlice("company.own_domains"),
		CarrierDomains: c.GetStringMapString("company.carrier_domains"),
	}
}

// GetStore returns the persistence configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:        c.GetString("store.type"),
		PostgresDSN: c.GetString("store.postgres_dsn"),
		SQLitePath:  c.GetString("store.sqlite_path"),
		MySQLDSN:    c.GetString("store.mysql_dsn"),
	}
}

// GetPipeline returns the batch processor configuration
func (c *Config) GetPipeline() PipelineConfig {
	poll, err := c.GetDuration("pipeline.poll_interval")
	if err != nil {
		poll = 15 * time.Second
	}
	orphan, err := c.GetDuration("pipeline.orphan_retry_interval")
	if err != nil {
		orphan = 10 * time.Minute
	}
	return PipelineConfig{
		BatchSize:           c.GetInt("pipeline.batch_size"),
		PollInterval:        poll,
		Workers:             c.GetInt("pipeline.workers"),
		OrphanRetryInterval: orphan,
	}
}

// GetActions returns the action rule engine configuration
func (c *Config) GetActions() ActionsConfig {
	ttl, err := c.GetDuration("actions.rule_cache_ttl")
	if err != nil {
		ttl = 5 * time.Minute
	}
	return ActionsConfig{RuleCacheTTL: ttl}
}

// GetIngest returns the SMTP ingestion configuration
func (c *Config) GetIngest() IngestConfig {
	return IngestConfig{
		Enabled:       c.GetBool("ingest.enabled"),
		ListenAddress: c.GetString("ingest.listen_address"),
	}
}

// GetDedup returns the redis deduplication configuration
func (c *Config) GetDedup() DedupConfig {
	ttl, err := c.GetDuration("dedup.ttl")
	if err != nil {
		ttl = 72 * time.Hour
	}
	return DedupConfig{
		Enabled:       c.GetBool("dedup.enabled"),
		RedisAddr:     c.GetString("dedup.redis_addr"),
		RedisPassword: c.GetString("dedup.redis_password"),
		RedisDB:       c.GetInt("dedup.redis_db"),
		TTL:           ttl,
	}
}
