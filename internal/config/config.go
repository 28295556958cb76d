package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Reminder ReminderConfig `mapstructure:"reminder" validate:"required"`
}

// ServerConfig contains the operational HTTP server and logging settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	// AutoMigrate applies the embedded reminder migrations at startup
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RedisConfig configures the delayed-delivery queue and the pub/sub channel.
type RedisConfig struct {
	URL              string        `mapstructure:"url" validate:"required,url"`
	QueueKey         string        `mapstructure:"queue_key" validate:"required"`
	ConsumeInterval  time.Duration `mapstructure:"consume_interval" validate:"gt=0"`
	ConsumeBatchSize int           `mapstructure:"consume_batch_size" validate:"gte=1"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" validate:"gt=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey      string        `mapstructure:"gemini_api_key" validate:"required"`
	ModelName         string        `mapstructure:"model_name" validate:"required"`
	MaxOutputTokens   int           `mapstructure:"max_output_tokens" validate:"gte=1"`
	Temperature       float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	MaxRetries        int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay" validate:"gt=0"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay" validate:"gtefield=RetryBaseDelay"`
	MaxConcurrent     int           `mapstructure:"max_concurrent" validate:"gte=1"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
}

// WorstCaseGeneration is the longest one question generation can take:
// every attempt timing out plus the capped backoff between attempts.
func (c LLMConfig) WorstCaseGeneration() time.Duration {
	total := time.Duration(c.MaxRetries+1) * c.RequestTimeout
	delay := c.RetryBaseDelay
	for i := 0; i < c.MaxRetries; i++ {
		total += min(delay, c.RetryMaxDelay)
		delay *= 2
	}
	return total
}

// ReminderConfig controls the poll loop, the broker consumer and the
// reminder state machine.
type ReminderConfig struct {
	PollInterval      time.Duration   `mapstructure:"poll_interval" validate:"gt=0"`
	MaxReminders      int             `mapstructure:"max_reminders" validate:"gte=1"`
	Backoff           []time.Duration `mapstructure:"backoff" validate:"dive,gt=0"`
	BatchSize         int             `mapstructure:"batch_size" validate:"gte=1"`
	WorkerCount       int             `mapstructure:"worker_count" validate:"gte=1,lte=64"`
	AdvanceTimeout    time.Duration   `mapstructure:"advance_timeout" validate:"gt=0"`
	ConsumerWorkers   int             `mapstructure:"consumer_workers" validate:"gte=1"`
	ConsumerQueueSize int             `mapstructure:"consumer_queue_size" validate:"gte=1"`
}
