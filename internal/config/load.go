package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. SCRY_DATABASE_URL.
const EnvPrefix = "SCRY"

// requiredKeys have no default and must be bound explicitly so that
// environment-only configuration reaches Unmarshal.
var requiredKeys = []string{
	"database.url",
	"redis.url",
	"llm.gemini_api_key",
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range requiredKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct-tag validation plus the cross-field checks the tags
// cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if needed := cfg.Reminder.MaxReminders - 1; len(cfg.Reminder.Backoff) < needed {
		return fmt.Errorf("config validation failed: reminder.backoff has %d entries, max_reminders=%d needs %d",
			len(cfg.Reminder.Backoff), cfg.Reminder.MaxReminders, needed)
	}

	// An advance generates up to two questions.
	if needed := 2 * cfg.LLM.WorstCaseGeneration(); cfg.Reminder.AdvanceTimeout < needed {
		return fmt.Errorf("config validation failed: reminder.advance_timeout %s is below %s, the time two question generations can take",
			cfg.Reminder.AdvanceTimeout, needed)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.queue_key", "scry:reminders:delayed")
	v.SetDefault("redis.consume_interval", time.Second)
	v.SetDefault("redis.consume_batch_size", 50)
	v.SetDefault("redis.operation_timeout", 2*time.Second)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_output_tokens", 100)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.request_timeout", 30*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_base_delay", time.Second)
	v.SetDefault("llm.retry_max_delay", 5*time.Second)
	v.SetDefault("llm.max_concurrent", 4)
	v.SetDefault("llm.requests_per_second", 0)

	// Development intervals; production intent is 24h, 72h, 168h.
	v.SetDefault("reminder.poll_interval", 10*time.Second)
	v.SetDefault("reminder.max_reminders", 3)
	v.SetDefault("reminder.backoff", []time.Duration{30 * time.Second, 70 * time.Second})
	v.SetDefault("reminder.batch_size", 100)
	v.SetDefault("reminder.worker_count", 4)
	v.SetDefault("reminder.advance_timeout", 5*time.Minute)
	v.SetDefault("reminder.consumer_workers", 2)
	v.SetDefault("reminder.consumer_queue_size", 100)
}
