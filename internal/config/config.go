package config

import (
	"fmt"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
)

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type LLMConfig struct {
	APIKey string
	Model  string
}

type Config struct {
	Port     int
	Database DatabaseConfig
	LLM      LLMConfig
}

const defaultModel = "gpt-4o-mini"

// Load reads configuration from the environment (.env is loaded by the
// godotenv autoload import). Required variables fail fast with a clear
// message rather than surfacing later as connection errors.
func Load() (*Config, error) {
	port := 8080
	if v := os.Getenv("PORT"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		port = parsed
	}

	cfg := &Config{
		Port: port,
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			User:     os.Getenv("DB_USERNAME"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_DATABASE"),
		},
		LLM: LLMConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  os.Getenv("OPENAI_MODEL"),
		},
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel
	}

	for name, value := range map[string]string{
		"DB_HOST":        cfg.Database.Host,
		"DB_PORT":        cfg.Database.Port,
		"DB_USERNAME":    cfg.Database.User,
		"DB_PASSWORD":    cfg.Database.Password,
		"DB_DATABASE":    cfg.Database.Name,
		"OPENAI_API_KEY": cfg.LLM.APIKey,
	} {
		if value == "" {
			return nil, fmt.Errorf("%s environment variable is required", name)
		}
	}

	return cfg, nil
}
