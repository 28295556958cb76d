package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-notes/internal/config"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/platform/metrics"
	"github.com/phrazzld/scry-notes/internal/redact"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Client is the boundary to an external text-generation service.
// Implementations send a single user prompt and return the first text block
// of the reply. They should wrap ErrContentBlocked or ErrInvalidResponse for
// failures that retrying cannot fix; every other error is treated as transient.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// QuestionGenerator produces a review question for a note.
// GenerateQuestion never fails: on exhaustion it returns a fallback question.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, title, content string) string
}

// Config controls retry, timeout and concurrency behaviour of a Generator.
type Config struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// BaseDelay is the first backoff delay; it doubles per retry
	BaseDelay time.Duration
	// MaxDelay caps a single backoff delay
	MaxDelay time.Duration
	// AttemptTimeout bounds one call to the Client
	AttemptTimeout time.Duration
	// MaxConcurrent bounds in-flight calls across all callers
	MaxConcurrent int
	// RequestsPerSecond rate-limits calls; 0 disables the limiter
	RequestsPerSecond float64
}

// DefaultConfig returns three retries backing off from 1s to 5s with a 30s
// attempt timeout.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		BaseDelay:      time.Second,
		MaxDelay:       5 * time.Second,
		AttemptTimeout: 30 * time.Second,
		MaxConcurrent:  4,
	}
}

// ConfigFromLLM maps the application LLM settings to a generator Config.
func ConfigFromLLM(cfg config.LLMConfig) Config {
	return Config{
		MaxRetries:        cfg.MaxRetries,
		BaseDelay:         cfg.RetryBaseDelay,
		MaxDelay:          cfg.RetryMaxDelay,
		AttemptTimeout:    cfg.RequestTimeout,
		MaxConcurrent:     cfg.MaxConcurrent,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("%w: base delay must be positive", ErrInvalidConfig)
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("%w: max delay %s is below base delay %s", ErrInvalidConfig, c.MaxDelay, c.BaseDelay)
	}
	if c.AttemptTimeout <= 0 {
		return fmt.Errorf("%w: attempt timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("%w: max concurrent must be at least 1", ErrInvalidConfig)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests per second cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Generator implements QuestionGenerator on top of a Client.
type Generator struct {
	client  Client
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// Option customizes a Generator.
type Option func(*Generator)

// WithMetrics records generation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

// NewGenerator creates a Generator around client.
// If logger is nil, a default logger will be used.
func NewGenerator(client Client, cfg Config, logger *slog.Logger, opts ...Option) (*Generator, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client cannot be nil", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Generator{
		client: client,
		config: cfg,
		logger: logger.With(slog.String("component", "question_generator")),
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Ensure Generator implements QuestionGenerator
var _ QuestionGenerator = (*Generator)(nil)

// GenerateQuestion implements QuestionGenerator.
// Transient failures are retried with exponential backoff; permanent failures,
// exhaustion and cancellation yield FallbackQuestion(title).
func (g *Generator) GenerateQuestion(ctx context.Context, title, content string) string {
	log := logger.FromContextOrDefault(ctx, g.logger)
	fallback := FallbackQuestion(title)

	prompt, err := BuildPrompt(title, content)
	if err != nil {
		log.ErrorContext(ctx, "failed to build prompt, using fallback question",
			redact.ErrorAttr(err))
		g.metrics.ObserveGeneration(metrics.OutcomeFallback)
		return fallback
	}

	question, err := g.completeWithRetry(ctx, log, prompt)
	if err != nil {
		log.WarnContext(ctx, "question generation failed, using fallback question",
			redact.ErrorAttr(err))
		g.metrics.ObserveGeneration(metrics.OutcomeFallback)
		return fallback
	}

	log.DebugContext(ctx, "question generated",
		slog.Int("question_length", len(question)))
	g.metrics.ObserveGeneration(metrics.OutcomeSuccess)
	return question
}

func (g *Generator) backoff() retry.Backoff {
	b := retry.NewExponential(g.config.BaseDelay)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(g.config.MaxDelay, b)
	return retry.WithMaxRetries(uint64(g.config.MaxRetries), b)
}

func (g *Generator) completeWithRetry(ctx context.Context, log *slog.Logger, prompt string) (string, error) {
	var question string
	attempt := 0
	maxAttempts := g.config.MaxRetries + 1

	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			g.metrics.IncGenerationRetry()
		}

		text, err := g.completeOnce(ctx, prompt)
		if err == nil {
			question = text
			return nil
		}

		if ctx.Err() != nil {
			log.WarnContext(ctx, "generation context ended, not retrying",
				slog.Int("attempt", attempt),
				slog.String("reason", ctx.Err().Error()),
				redact.ErrorAttr(err))
			return err
		}
		if IsPermanent(err) {
			log.WarnContext(ctx, "permanent generation error, not retrying",
				slog.Int("attempt", attempt),
				redact.ErrorAttr(err))
			return err
		}

		log.WarnContext(ctx, "generation attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			redact.ErrorAttr(err))
		return retry.RetryableError(fmt.Errorf("%w: %v", ErrTransientFailure, err))
	})
	if err != nil {
		return "", err
	}

	log.InfoContext(ctx, "generation succeeded", slog.Int("attempts", attempt))
	return question, nil
}

// completeOnce runs a single bounded call to the client.
func (g *Generator) completeOnce(ctx context.Context, prompt string) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer g.sem.Release(1)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.config.AttemptTimeout)
	defer cancel()

	text, err := g.client.Complete(callCtx, prompt)
	if err != nil {
		return "", err
	}

	question := cleanQuestion(text)
	if question == "" {
		return "", fmt.Errorf("%w: empty question", ErrInvalidResponse)
	}
	return question, nil
}
