package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedder struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		Dimension int    `yaml:"dimension"`
	} `yaml:"embedder"`

	Database struct {
		Driver      string `yaml:"driver"`
		URL         string `yaml:"url"`
		TablePrefix string `yaml:"table_prefix"`
		VectorDim   int    `yaml:"vector_dim"`
		BatchSize   int    `yaml:"batch_size"`
	} `yaml:"database"`

	Classifier struct {
		C             float64 `yaml:"c"`
		MaxIterations int     `yaml:"max_iterations"`
		Tolerance     float64 `yaml:"tolerance"`
	} `yaml:"classifier"`

	Scraper struct {
		BaseURL   string        `yaml:"base_url"`
		RateLimit float64       `yaml:"rate_limit"`
		MaxPosts  int           `yaml:"max_posts"`
		MaxPages  int           `yaml:"max_pages"`
		Timeout   time.Duration `yaml:"timeout"`
		UserAgent string        `yaml:"user_agent"`
	} `yaml:"scraper"`

	Processor struct {
		MaxContentLength int `yaml:"max_content_length"`
	} `yaml:"processor"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Logging struct {
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Authors []string `yaml:"authors"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/twitoff/config.yaml"),
			"/etc/twitoff/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embedder.Provider == "" {
		config.Embedder.Provider = "ollama"
	}
	switch config.Embedder.Provider {
	case "ollama":
		if config.Embedder.Model == "" {
			config.Embedder.Model = "nomic-embed-text:latest"
		}
		if config.Embedder.BaseURL == "" {
			config.Embedder.BaseURL = "http://localhost:11434"
		}
	case "openai":
		if config.Embedder.Model == "" {
			config.Embedder.Model = "text-embedding-3-small"
		}
	case "hashing":
		if config.Embedder.Dimension == 0 {
			config.Embedder.Dimension = 512
		}
	}

	if config.Database.Driver == "" {
		if config.Database.URL != "" {
			config.Database.Driver = "postgres"
		} else {
			config.Database.Driver = "memory"
		}
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = config.Embedder.Dimension
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Embedder.Dimension == 0 {
		config.Embedder.Dimension = config.Database.VectorDim
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Classifier.C == 0 {
		config.Classifier.C = 1.0
	}
	if config.Classifier.MaxIterations == 0 {
		config.Classifier.MaxIterations = 100
	}
	if config.Classifier.Tolerance == 0 {
		config.Classifier.Tolerance = 1e-4
	}

	if config.Scraper.BaseURL == "" {
		config.Scraper.BaseURL = "https://nitter.net"
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.MaxPosts == 0 {
		config.Scraper.MaxPosts = 200
	}
	if config.Scraper.MaxPages == 0 {
		config.Scraper.MaxPages = 20
	}
	if config.Scraper.Timeout == 0 {
		config.Scraper.Timeout = 30 * time.Second
	}

	if config.Processor.MaxContentLength == 0 {
		config.Processor.MaxContentLength = 300
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}

	if config.Logging.Env == "" {
		config.Logging.Env = "dev"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && config.Embedder.Provider != "openai" {
		config.Embedder.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedder.APIKey = apiKey
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if sourceURL := os.Getenv("TWITOFF_SOURCE_URL"); sourceURL != "" {
		config.Scraper.BaseURL = sourceURL
	}
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		config.Server.Port = port
	}
	if env := os.Getenv("TWITOFF_ENV"); env != "" {
		config.Logging.Env = env
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}
