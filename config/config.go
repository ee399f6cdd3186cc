// Package config loads tagger settings from an optional TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/tagger/ai"
	"github.com/poiesic/tagger/tagging"
)

// JudgeTokenEnv names the environment variable holding the judge API key.
const JudgeTokenEnv = "TAGGER_JUDGE_TOKEN"

// Config holds all tagger configuration
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Generator GeneratorConfig `toml:"generator"`
	Judge     JudgeConfig     `toml:"judge"`
	Run       RunConfig       `toml:"run"`
}

// StorageConfig selects the stores a run uses
type StorageConfig struct {
	// Driver is "badger" or "sqlite".
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	// TemplateFile stores the template in a file instead of the database.
	TemplateFile    string `toml:"template_file"`
	ProgressLog     string `toml:"progress_log"`
	OptimizationLog string `toml:"optimization_log"`
}

// GeneratorConfig holds label generation model settings
type GeneratorConfig struct {
	Host          string  `toml:"host"`
	Model         string  `toml:"model"`
	Temperature   float64 `toml:"temperature"`
	TopK          int     `toml:"top_k"`
	TopP          float64 `toml:"top_p"`
	MaxTokens     int     `toml:"max_tokens"`
	RepeatPenalty float64 `toml:"repeat_penalty"`
}

// JudgeConfig holds judge model settings
type JudgeConfig struct {
	Host        string  `toml:"host"`
	Model       string  `toml:"model"`
	Token       string  `toml:"token"`
	Temperature float64 `toml:"temperature"`
}

// RunConfig holds batch loop settings
type RunConfig struct {
	Mode                string   `toml:"mode"`
	Skip                int      `toml:"skip"`
	BatchSize           int      `toml:"batch_size"`
	MaxEpochs           int      `toml:"max_epochs"`
	MinScore            float64  `toml:"min_score"`
	MaxRetries          int      `toml:"max_retries"`
	RetryDelay          Duration `toml:"retry_delay"`
	BackoffMultiplier   float64  `toml:"backoff_multiplier"`
	BatchInterval       Duration `toml:"batch_interval"`
	ReportInterval      int      `toml:"report_interval"`
	PersistOnExhaustion bool     `toml:"persist_on_exhaustion"`
	RateLimit           float64  `toml:"rate_limit"`
}

// Duration is a time.Duration written as a string such as "5s"
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with the stock settings
func Default() *Config {
	aiCfg := ai.DefaultConfig()
	run := tagging.DefaultConfig()
	return &Config{
		Storage: StorageConfig{
			Driver:          "badger",
			Path:            "tagger.db",
			ProgressLog:     "tagging_progress.log",
			OptimizationLog: "prompt_optimizer.log",
		},
		Generator: GeneratorConfig{
			Host:          aiCfg.GeneratorHost,
			Model:         aiCfg.GeneratorModel,
			Temperature:   aiCfg.Temperature,
			TopK:          aiCfg.TopK,
			TopP:          aiCfg.TopP,
			MaxTokens:     aiCfg.MaxTokens,
			RepeatPenalty: aiCfg.RepeatPenalty,
		},
		Judge: JudgeConfig{
			Host:        aiCfg.JudgeHost,
			Model:       aiCfg.JudgeModel,
			Temperature: aiCfg.JudgeTemperature,
		},
		Run: RunConfig{
			Mode:                string(run.Mode),
			BatchSize:           run.BatchSize,
			MaxEpochs:           run.MaxEpochs,
			MinScore:            run.MinScore,
			MaxRetries:          run.MaxRetries,
			RetryDelay:          Duration{run.RetryDelay},
			BackoffMultiplier:   run.BackoffMultiplier,
			BatchInterval:       Duration{run.BatchInterval},
			ReportInterval:      run.ReportInterval,
			PersistOnExhaustion: run.PersistOnExhaustion,
			RateLimit:           run.RateLimit,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults.
// The judge token from the environment overrides the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, err
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if token := os.Getenv(JudgeTokenEnv); token != "" {
		cfg.Judge.Token = token
	}

	cfg.Storage.Path = ExpandPath(cfg.Storage.Path)
	cfg.Storage.TemplateFile = ExpandPath(cfg.Storage.TemplateFile)
	cfg.Storage.ProgressLog = ExpandPath(cfg.Storage.ProgressLog)
	cfg.Storage.OptimizationLog = ExpandPath(cfg.Storage.OptimizationLog)

	return cfg, nil
}

// AIConfig builds the model service configuration.
func (c *Config) AIConfig() *ai.Config {
	cfg := ai.NewConfig(
		ai.WithGeneratorHost(c.Generator.Host),
		ai.WithGeneratorModel(c.Generator.Model),
		ai.WithSampling(c.Generator.Temperature, c.Generator.TopK, c.Generator.TopP),
		ai.WithMaxTokens(c.Generator.MaxTokens),
		ai.WithRepeatPenalty(c.Generator.RepeatPenalty),
		ai.WithJudgeHost(c.Judge.Host),
		ai.WithJudgeModel(c.Judge.Model),
		ai.WithJudgeToken(c.Judge.Token),
		ai.WithJudgeTemperature(c.Judge.Temperature),
	)
	cfg.Normalize()
	return cfg
}

// TaggingConfig builds the run configuration.
func (c *Config) TaggingConfig() (*tagging.Config, error) {
	mode, err := tagging.ParseMode(c.Run.Mode)
	if err != nil {
		return nil, err
	}
	cfg := &tagging.Config{
		BatchSize:           c.Run.BatchSize,
		MaxEpochs:           c.Run.MaxEpochs,
		MinScore:            c.Run.MinScore,
		SkipCount:           c.Run.Skip,
		MaxRetries:          c.Run.MaxRetries,
		RetryDelay:          c.Run.RetryDelay.Duration,
		BackoffMultiplier:   c.Run.BackoffMultiplier,
		BatchInterval:       c.Run.BatchInterval.Duration,
		Mode:                mode,
		ReportInterval:      c.Run.ReportInterval,
		PersistOnExhaustion: c.Run.PersistOnExhaustion,
		RateLimit:           c.Run.RateLimit,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tagger", "config.toml")
}
