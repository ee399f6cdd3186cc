package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/tagger/tagging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	t.Setenv(JudgeTokenEnv, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "badger", cfg.Storage.Driver)
	assert.Equal(t, "gemma3:27b", cfg.Generator.Model)
	assert.Equal(t, 100, cfg.Run.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Run.RetryDelay.Duration)
	assert.Empty(t, cfg.Judge.Token)
}

func TestLoad_FromFile(t *testing.T) {
	t.Setenv(JudgeTokenEnv, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[storage]
driver = "sqlite"
path = "/data/food.db"

[judge]
host = "https://generativelanguage.googleapis.com/v1beta/openai"
model = "gemini-2.0-flash"
token = "from-file"

[run]
mode = "tuning"
batch_size = 20
min_score = 90.0
retry_delay = "250ms"
batch_interval = "2s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/data/food.db", cfg.Storage.Path)
	assert.Equal(t, "gemini-2.0-flash", cfg.Judge.Model)
	assert.Equal(t, "from-file", cfg.Judge.Token)
	assert.Equal(t, "gemma3:27b", cfg.Generator.Model, "unset keys keep defaults")

	run, err := cfg.TaggingConfig()
	require.NoError(t, err)
	assert.Equal(t, tagging.ModeTuning, run.Mode)
	assert.Equal(t, 20, run.BatchSize)
	assert.InDelta(t, 90.0, run.MinScore, 1e-9)
	assert.Equal(t, 250*time.Millisecond, run.RetryDelay)
	assert.Equal(t, 2*time.Second, run.BatchInterval)
	assert.Equal(t, 10, run.MaxEpochs)
}

func TestLoad_EnvTokenOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[judge]\ntoken = \"from-file\"\n"), 0o644))
	t.Setenv(JudgeTokenEnv, "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Judge.Token)
	assert.Equal(t, "from-env", cfg.AIConfig().JudgeToken)
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[run\nbatch_size = "), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[run]\nretry_delay = \"soon\"\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_TaggingConfigValidates(t *testing.T) {
	cfg := Default()
	cfg.Run.Mode = "fast"
	_, err := cfg.TaggingConfig()
	assert.ErrorIs(t, err, tagging.ErrInvalidConfig)

	cfg = Default()
	cfg.Run.BatchSize = 0
	_, err = cfg.TaggingConfig()
	assert.ErrorIs(t, err, tagging.ErrInvalidConfig)
}

func TestConfig_AIConfig(t *testing.T) {
	cfg := Default()
	cfg.Generator.Host = "http://gpu-box:11434"
	cfg.Generator.TopK = 20

	aiCfg := cfg.AIConfig()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, "http://gpu-box:11434/v1", aiCfg.GeneratorHost)
	assert.Equal(t, 20, aiCfg.TopK)
	assert.InDelta(t, 0.7, aiCfg.JudgeTemperature, 1e-9)
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/tagger.db", filepath.Join(home, "tagger.db")},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandPath(tt.input))
	}
}
