package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

// Client is the structured-output LLM client used by composition and grading.
type Client interface {
	// GenerateJSON returns an object validated against schema.
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
	ModelID() string
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxRetries  int
	Temperature float64
	Timeout     time.Duration
}

// ErrInvalidResponse is returned when output is not JSON or fails its schema.
type ErrInvalidResponse struct {
	Content string
	Err     error
}

func (e *ErrInvalidResponse) Error() string { return "openai invalid response: " + e.Err.Error() }
func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

type client struct {
	log   *logger.Logger
	api   *goopenai.Client
	model string
	cfg   Config
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &client{
		log:   log.With("client", "openai"),
		api:   goopenai.NewClientWithConfig(oc),
		model: cfg.Model,
		cfg:   cfg,
	}, nil
}

func (c *client) ModelID() string { return c.model }

func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
		Temperature: float32(c.cfg.Temperature),
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: json.RawMessage(schemaBytes),
				Strict: true,
			},
		},
	}

	backoff := 1 * time.Second
	invalidRetried := false
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		out, err := c.generateOnce(ctx, req, schemaName, schema)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryable(err, &invalidRetried) || attempt == c.cfg.MaxRetries-1 {
			break
		}
		c.log.Warn("OpenAI request retrying", "schema", schemaName, "attempt", attempt+1, "error", err.Error())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (c *client) generateOnce(ctx context.Context, req goopenai.ChatCompletionRequest, schemaName string, schema map[string]any) (map[string]any, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, &ErrInvalidResponse{Err: errors.New("no choices in response")}
	}
	return decodeAndValidate(schemaName, schema, resp.Choices[0].Message.Content)
}

func retryable(err error, invalidRetried *bool) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var inv *ErrInvalidResponse
	if errors.As(err, &inv) {
		if *invalidRetried {
			return false
		}
		*invalidRetried = true
		return true
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	return true
}
