package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "arya.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"llm":{"timeout":"45s"},"exchange":{"address_book":"tokens.yaml"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.JobStore.Driver)
	assert.Equal(t, "memory", cfg.Queue.Driver)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout.Std())
	assert.Equal(t, 0.05, *cfg.Exchange.Slippage)
	assert.True(t, *cfg.Exchange.AutoApprove)
	assert.Equal(t, filepath.Join(dir, "tokens.yaml"), cfg.Exchange.AddressBook)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Runtime.DataDir)
	assert.Equal(t, 4, cfg.Runtime.Workers)
}

func TestEnvironmentOverridesSecrets(t *testing.T) {
	t.Setenv("ARYA_OPENAI_API_KEY", "sk-env")
	t.Setenv("ARYA_TWITCH_CLIENT_ID", "twitch-id")
	t.Setenv("ARYA_TWITCH_CLIENT_SECRET", "twitch-secret")
	t.Setenv("ARYA_API_KEY", "api-env")
	t.Setenv("ARYA_WORKERS", "9")

	path := writeConfig(t, `{"llm":{"openai":{"api_key":"sk-file","model":"gpt-4o-mini"}},"server":{"api_keys":[{"name":"bot","value":"k1"}]}}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.OpenAI.Model)
	assert.True(t, cfg.Media.Twitch.Enabled())
	assert.Equal(t, 9, cfg.Runtime.Workers)
	assert.Len(t, cfg.Server.Keys(), 2)
}

func TestValidateRejectsUnknownDrivers(t *testing.T) {
	cases := []string{
		`{"storage":{"job_store":{"driver":"sqlite"}}}`,
		`{"storage":{"job_store":{"driver":"mysql"}}}`,
		`{"queue":{"driver":"kafka"}}`,
		`{"queue":{"driver":"redis"}}`,
		`{"llm":{"provider":"magic"}}`,
		`{"exchange":{"slippage":1.5}}`,
	}
	for _, body := range cases {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, body)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{"llm":{"timeout":"soon"}}`))
	assert.Error(t, err)

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Queue.Driver)
}
