package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	llm := cfg.GetLLM()
	assert.Equal(t, "bedrock", llm.Provider)
	assert.Equal(t, 2.0, llm.RequestsPerSecond)
	assert.Equal(t, 4, llm.Burst)
	assert.Equal(t, 2, llm.MaxRetries)
	assert.Equal(t, 2*time.Second, llm.RetryBackoff)

	store := cfg.GetStore()
	assert.Equal(t, "memory", store.Type)

	pipeline := cfg.GetPipeline()
	assert.Equal(t, 50, pipeline.BatchSize)
	assert.Equal(t, 15*time.Second, pipeline.PollInterval)
	assert.Equal(t, 4, pipeline.Workers)
	assert.Equal(t, 10*time.Minute, pipeline.OrphanRetryInterval)

	actions := cfg.GetActions()
	assert.Equal(t, 5*time.Minute, actions.RuleCacheTTL)

	dedup := cfg.GetDedup()
	assert.False(t, dedup.Enabled)
	assert.Equal(t, 72*time.Hour, dedup.TTL)

	ingest := cfg.GetIngest()
	assert.True(t, ingest.Enabled)
	assert.NotEmpty(t, ingest.ListenAddress)
}

func TestOverrides(t *testing.T) {
	v := NewEmptyViper()
	v.Set("llm.provider", "gemini")
	v.Set("gemini.api_key", "test-key")
	v.Set("company.own_domains", []string{"forwarder.com"})
	v.Set("pipeline.poll_interval", "30s")
	cfg := NewFromViper(v)

	assert.Equal(t, "gemini", cfg.GetLLM().Provider)
	assert.Equal(t, "test-key", cfg.GetGemini().APIKey)
	assert.Equal(t, []string{"forwarder.com"}, cfg.GetCompany().OwnDomains)
	assert.Equal(t, 30*time.Second, cfg.GetPipeline().PollInterval)
}
