package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Embedder config
	switch c.Embedder.Provider {
	case "ollama":
		if c.Embedder.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "embedder.base_url",
				Message: "Ollama base URL is required",
			})
		} else if !isAbsoluteURL(c.Embedder.BaseURL) {
			errors = append(errors, ValidationError{
				Field:   "embedder.base_url",
				Message: "invalid Ollama base URL",
			})
		}
	case "openai":
		if c.Embedder.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "embedder.api_key",
				Message: "api_key (or OPENAI_API_KEY) is required for the openai provider",
			})
		}
	case "hashing":
	default:
		errors = append(errors, ValidationError{
			Field:   "embedder.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.Embedder.Provider),
		})
	}

	if c.Embedder.Dimension < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedder.dimension",
			Message: "dimension must not be negative",
		})
	}

	// Validate Database config
	switch c.Database.Driver {
	case "postgres":
		if u, err := url.Parse(c.Database.URL); err != nil || c.Database.URL == "" || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	case "memory":
	default:
		errors = append(errors, ValidationError{
			Field:   "database.driver",
			Message: fmt.Sprintf("unknown driver: %s", c.Database.Driver),
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Embedder.Dimension > 0 && c.Database.VectorDim > 0 && c.Embedder.Dimension != c.Database.VectorDim {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must equal embedder.dimension",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Classifier config
	if c.Classifier.C <= 0 {
		errors = append(errors, ValidationError{
			Field:   "classifier.c",
			Message: "c must be positive",
		})
	}

	if c.Classifier.MaxIterations < 1 {
		errors = append(errors, ValidationError{
			Field:   "classifier.max_iterations",
			Message: "max_iterations must be positive",
		})
	}

	// Validate Scraper config
	if !isAbsoluteURL(c.Scraper.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "scraper.base_url",
			Message: "invalid timeline source URL",
		})
	}

	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Scraper.MaxPosts < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_posts",
			Message: "max_posts must be positive",
		})
	}

	// Validate Processor config
	if c.Processor.MaxContentLength < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.max_content_length",
			Message: "max_content_length must be positive",
		})
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	return errors
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
