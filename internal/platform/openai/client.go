package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/bloomquiz-backend/internal/observability"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/httpx"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// JSONGenerator runs a chat completion constrained to a JSON schema and
// returns the raw JSON document the model produced.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) ([]byte, error)
}

type Client interface {
	Embedder
	JSONGenerator
}

// Config targets any OpenAI-compatible endpoint (OpenAI, Ollama, Gemini).
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	EmbedModel  string
	Timeout     time.Duration
	MaxRetries  int
	Temperature *float32
	HTTPClient  *http.Client
}

var ErrEmptyResponse = errors.New("openai: empty response")

type client struct {
	log        *logger.Logger
	api        *goopenai.Client
	model      string
	embedModel string
	maxRetries int
	temp       *float32
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("openai base url required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		// Local servers such as Ollama accept any bearer token.
		apiKey = "unused"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	apiCfg := goopenai.DefaultConfig(apiKey)
	apiCfg.BaseURL = baseURL
	if cfg.HTTPClient != nil {
		apiCfg.HTTPClient = cfg.HTTPClient
	} else {
		apiCfg.HTTPClient = &http.Client{Timeout: timeout}
	}

	return &client{
		log:        log.With("service", "OpenAIClient", "base_url", baseURL),
		api:        goopenai.NewClientWithConfig(apiCfg),
		model:      strings.TrimSpace(cfg.Model),
		embedModel: strings.TrimSpace(cfg.EmbedModel),
		maxRetries: maxRetries,
		temp:       cfg.Temperature,
	}, nil
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	if c.embedModel == "" {
		return nil, fmt.Errorf("openai: embed model not configured")
	}

	var resp goopenai.EmbeddingResponse
	err := c.call(ctx, c.embedModel, "embeddings", func() error {
		var callErr error
		resp, callErr = c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: inputs,
			Model: goopenai.EmbeddingModel(c.embedModel),
		})
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("openai embed: expected %d vectors, got %d", len(inputs), len(resp.Data))
	}

	data := append([]goopenai.Embedding(nil), resp.Data...)
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("openai embed: empty vector at index %d", d.Index)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) ([]byte, error) {
	if c.model == "" {
		return nil, fmt.Errorf("openai: chat model not configured")
	}
	if strings.TrimSpace(schemaName) == "" {
		schemaName = "response"
	}
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: jsonSchema(schema),
				Strict: true,
			},
		},
	}
	if c.temp != nil {
		req.Temperature = *c.temp
	}

	var resp goopenai.ChatCompletionResponse
	err := c.call(ctx, c.model, "chat", func() error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, ErrEmptyResponse
	}
	content = stripCodeFence(content)
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("openai chat: model returned invalid JSON")
	}
	return []byte(content), nil
}

func (c *client) call(ctx context.Context, model, endpoint string, fn func() error) error {
	start := time.Now()
	attempt := 0
	err := httpx.Retry(ctx, c.maxRetries+1, 500*time.Millisecond, isRetryable, func() error {
		attempt++
		callErr := fn()
		if callErr != nil && attempt <= c.maxRetries && isRetryable(callErr) {
			c.log.Warn("openai call failed; retrying", "endpoint", endpoint, "attempt", attempt, "error", callErr)
		}
		return callErr
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.Current().ObserveLLMRequest(model, endpoint, status, time.Since(start))
	return err
}

func isRetryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return httpx.IsRetryableHTTPStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return httpx.IsRetryableHTTPStatus(reqErr.HTTPStatusCode)
	}
	return httpx.IsRetryableError(err)
}

// stripCodeFence unwraps ```json fences some compatible servers add even in
// schema mode.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type jsonSchema map[string]any

func (s jsonSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(s))
}
