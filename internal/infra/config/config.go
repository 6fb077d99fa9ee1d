package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http_client"`
	Limiter  LimiterConfig  `yaml:"limiter"`
	Research ResearchConfig `yaml:"research"`
	Content  ContentConfig  `yaml:"content"`
	ImageGen ImageGenConfig `yaml:"image_gen"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Storage  StorageConfig  `yaml:"storage"`
}

type ServerConfig struct {
	Addr                string `yaml:"addr"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	// MaxConcurrentRuns caps how many generation requests run at once;
	// excess requests are rejected instead of queued.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HTTPConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type LimiterConfig struct {
	MaxConcurrent int     `yaml:"max_concurrent"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

type ResearchConfig struct {
	SerperAPIKey  string `yaml:"serper_api_key"`
	YouTubeAPIKey string `yaml:"youtube_api_key"`
	MaxResults    int    `yaml:"max_results"`
}

type ContentConfig struct {
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	MaxBullets    int    `yaml:"max_bullets"`
	MaxBulletLen  int    `yaml:"max_bullet_len"`
	MaxSnippetLen int    `yaml:"max_snippet_len"`
}

type ImageGenConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// Budget caps image generation calls per run. Zero disables imagery.
	Budget int `yaml:"budget"`
}

type PipelineConfig struct {
	TransientRetries   int `yaml:"transient_retries"`
	RateLimitRetries   int `yaml:"rate_limit_retries"`
	BackoffInitialMs   int `yaml:"backoff_initial_ms"`
	RateLimitBackoffMs int `yaml:"rate_limit_backoff_ms"`
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
}

type StorageConfig struct {
	BasePath  string `yaml:"base_path"`
	UploadDir string `yaml:"upload_dir"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnvOverrides(cfg), nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return applyEnvOverrides(cfg), nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                ":9090",
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 600,
			MaxConcurrentRuns:   2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 60,
		},
		Limiter: LimiterConfig{
			MaxConcurrent: 4,
			RatePerSecond: 5,
		},
		Research: ResearchConfig{
			MaxResults: 5,
		},
		Content: ContentConfig{
			Model:         "gemini-2.0-flash",
			MaxBullets:    5,
			MaxBulletLen:  220,
			MaxSnippetLen: 2000,
		},
		ImageGen: ImageGenConfig{
			Model:  "gemini-2.0-flash-exp-image-generation",
			Budget: 4,
		},
		Pipeline: PipelineConfig{
			TransientRetries:   3,
			RateLimitRetries:   2,
			BackoffInitialMs:   500,
			RateLimitBackoffMs: 2000,
			CallTimeoutSeconds: 60,
		},
		Storage: StorageConfig{
			BasePath:  "./output",
			UploadDir: "./uploads",
		},
	}
}

func applyEnvOverrides(cfg *Config) *Config {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SERPER_API_KEY"); v != "" {
		cfg.Research.SerperAPIKey = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.Research.YouTubeAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Content.APIKey = v
		if cfg.ImageGen.APIKey == "" {
			cfg.ImageGen.APIKey = v
		}
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Content.Model = v
	}
	if v := os.Getenv("IMAGEGEN_API_KEY"); v != "" {
		cfg.ImageGen.APIKey = v
	}
	if v := os.Getenv("IMAGEGEN_MODEL"); v != "" {
		cfg.ImageGen.Model = v
	}
	if v := os.Getenv("IMAGE_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ImageGen.Budget = n
		}
	}
	if v := os.Getenv("STORAGE_BASE_PATH"); v != "" {
		cfg.Storage.BasePath = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}
	return cfg
}
