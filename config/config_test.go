package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_wordpress_post_publisher/generator"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"server_addr": ":9090",
		"jwt_secret": "s",
		"llm": {"provider": "openai", "model": "gpt-3.5-turbo-instruct", "api_key": "from-file"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, defaultDBPath, cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	require.NoError(t, cfg.ValidateServer())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server_addr: ":7070"
log_level: debug
llm:
  provider: compatible
  base_url: http://localhost:11434/v1/
wordpress:
  url: https://blog.example.com
  user_name: admin
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "compatible", cfg.LLM.Provider)
	assert.Equal(t, generator.DefaultModel, cfg.LLM.Model)
	assert.Equal(t, "admin", cfg.WordPress.UserName)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(envServerAddr, ":1234")
	t.Setenv(envJWTSecret, "env-secret")
	t.Setenv(envLLMAPIKey, "env-key")
	t.Setenv(envLogLevel, "warn")

	path := writeFile(t, "config.json", `{"server_addr": ":9090", "jwt_secret": "file"}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":1234", cfg.ServerAddr)
	assert.Equal(t, "env-secret", cfg.JWTSecret)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, defaultAddr, cfg.ServerAddr)
	assert.Equal(t, defaultProvider, cfg.LLM.Provider)
	require.Error(t, cfg.ValidateServer(), "serve needs a jwt secret")
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"bad level", "c.json", `{"log_level": "loud"}`},
		{"unknown provider", "c.json", `{"llm": {"provider": "deepseek"}}`},
		{"compatible without base url", "c.yml", "llm:\n  provider: compatible\n"},
		{"wordpress without url", "c.json", `{"wordpress": {"user_name": "x"}}`},
		{"malformed", "c.json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLLMSettingsPrefersUserKey(t *testing.T) {
	cfg := Config{LLM: &LLMConfig{Provider: "openai", Model: "m", APIKey: "server"}}
	assert.Equal(t, "server", cfg.LLMSettings("").APIKey)
	assert.Equal(t, "user", cfg.LLMSettings("user").APIKey)
	assert.Equal(t, "m", cfg.LLMSettings("user").Model)
}
