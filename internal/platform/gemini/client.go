package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/scry-notes/internal/config"
	"github.com/phrazzld/scry-notes/internal/generation"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"google.golang.org/genai"
)

// ContentGenerator is the subset of *genai.Models used by Client.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Client implements generation.Client using the Gemini API.
type Client struct {
	models    ContentGenerator
	model     string
	genConfig *genai.GenerateContentConfig
	logger    *slog.Logger
}

// Ensure Client implements generation.Client
var _ generation.Client = (*Client)(nil)

// NewClient creates a Gemini API client from the LLM configuration.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return NewClientWithModels(client.Models, cfg, logger)
}

// NewClientWithModels creates a Client around an existing ContentGenerator.
// If logger is nil, a default logger will be used.
func NewClientWithModels(models ContentGenerator, cfg config.LLMConfig, logger *slog.Logger) (*Client, error) {
	if models == nil {
		return nil, fmt.Errorf("%w: models cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.MaxOutputTokens < 1 {
		return nil, fmt.Errorf("%w: max output tokens must be positive", generation.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		models: models,
		model:  cfg.ModelName,
		genConfig: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(cfg.Temperature)),
			MaxOutputTokens: int32(cfg.MaxOutputTokens),
		},
		logger: logger.With(
			slog.String("component", "gemini_client"),
			slog.String("model", cfg.ModelName),
		),
	}, nil
}

// Complete implements generation.Client.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	log := logger.FromContextOrDefault(ctx, c.logger)
	log.DebugContext(ctx, "calling Gemini API", slog.Int("prompt_length", len(prompt)))

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), c.genConfig)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	return extractText(resp)
}

// extractText returns the first non-empty text part of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}

	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if text := strings.TrimSpace(part.Text); text != "" {
			return text, nil
		}
	}

	return "", fmt.Errorf("%w: no text in response", generation.ErrInvalidResponse)
}
