package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  mode: test\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Server.Mode)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "tei", cfg.Embedding.Provider)
	assert.Equal(t, "0 * * * *", cfg.Escalation.Schedule)
	assert.Equal(t, 48*time.Hour, cfg.Escalation.Threshold)
	assert.Equal(t, "memory", cfg.Classifier.SeedStore)
	assert.Equal(t, 5*time.Second, cfg.Classifier.SeedRetryInitial)
	assert.Equal(t, 5*time.Minute, cfg.Classifier.SeedRetryMax)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
database:
  driver: postgres
  host: db.internal
  port: 5433
  user: grievo
  password: secret
  dbname: grievances
  sslmode: require
escalation:
  threshold: 72h
classifier:
  seed_store: qdrant
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 72*time.Hour, cfg.Escalation.Threshold)
	assert.Equal(t, "qdrant", cfg.Classifier.SeedStore)
	assert.Equal(t, "host=db.internal port=5433 user=grievo password=secret dbname=grievances sslmode=require", cfg.Database.DSN())
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: mongo\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown driver")
}

func TestEmbeddingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EmbeddingConfig
		wantErr string
	}{
		{
			name: "tei ok",
			cfg:  EmbeddingConfig{Name: "default", Provider: "tei", Model: "m", BaseURL: "http://localhost:8081"},
		},
		{
			name:    "tei without base url",
			cfg:     EmbeddingConfig{Name: "default", Provider: "tei", Model: "m"},
			wantErr: "base_url is required",
		},
		{
			name:    "jina without key",
			cfg:     EmbeddingConfig{Name: "default", Provider: "jina", Model: "m", APIKeyEnv: "JINA_API_KEY"},
			wantErr: "api_key is required",
		},
		{
			name:    "unknown provider",
			cfg:     EmbeddingConfig{Name: "default", Provider: "bert", Model: "m"},
			wantErr: "unknown provider",
		},
		{
			name:    "missing model",
			cfg:     EmbeddingConfig{Name: "default", Provider: "tei"},
			wantErr: "model is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestEmbeddingConfig_ResolveEnvVars(t *testing.T) {
	t.Setenv("GRIEVO_TEST_EMBED_KEY", "from-env")
	cfg := EmbeddingConfig{APIKeyEnv: "GRIEVO_TEST_EMBED_KEY"}
	cfg.ResolveEnvVars()
	assert.Equal(t, "from-env", cfg.APIKey)

	cfg = EmbeddingConfig{APIKey: "direct", APIKeyEnv: "GRIEVO_TEST_EMBED_KEY"}
	cfg.ResolveEnvVars()
	assert.Equal(t, "direct", cfg.APIKey)
}
