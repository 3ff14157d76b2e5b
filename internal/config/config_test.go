package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "server.http_port"},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "bedrock" }, wantErr: "llm.provider"},
		{name: "temperature out of range", mutate: func(c *Config) { c.LLM.Temperature = 3 }, wantErr: "llm.temperature"},
		{name: "negative retries", mutate: func(c *Config) { c.LLM.MaxRetries = -1 }, wantErr: "llm.max_retries"},
		{name: "redis without addr", mutate: func(c *Config) { c.Storage.Backend = "redis" }, wantErr: "storage.redis_addr"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "sk-live-123", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestSecret_UnmarshalJSON(t *testing.T) {
	var s Secret
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &s))
	assert.Equal(t, "abc", s.Value())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1500ms")))
	assert.Equal(t, "1.5s", d.Duration().String())
	assert.Error(t, d.UnmarshalText([]byte("-1s")))
}

func TestDuration_BareSeconds(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("120")))
	assert.Equal(t, 2*time.Minute, d.Duration())

	require.NoError(t, d.UnmarshalText([]byte("")))
	assert.Zero(t, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestSecret_GoString(t *testing.T) {
	s := Secret("news-key")
	out := fmt.Sprintf("%#v", s)
	assert.NotContains(t, out, "news-key")
	assert.Contains(t, out, "[REDACTED]")
}
