package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint
// (OpenAI, Ollama, LocalAI, vLLM, ...).
type OpenAIConfig struct {
	Host    string
	Model   string
	Token   string
	Timeout time.Duration
}

// OpenAIModel embeds text through langchaingo's OpenAI client.
type OpenAIModel struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

// NewOpenAIModel builds the client. Local servers that need no credentials
// get the placeholder token "none".
func NewOpenAIModel(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIModel, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("embedding host is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	token := cfg.Token
	if token == "" {
		token = "none"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client, err := openai.New(
		openai.WithBaseURL(normalizeHost(cfg.Host)),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("langchain embedder: %w", err)
	}

	return &OpenAIModel{
		embedder: embedder,
		model:    cfg.Model,
		logger:   logger.With(slog.String("component", "openai-embedder")),
	}, nil
}

// Embed implements Model.
func (m *OpenAIModel) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := m.embedder.EmbedQuery(ctx, text)
	if err != nil {
		m.logger.Error("embedding request failed", slog.Int("length", len(text)), slog.Any("error", err))
		return nil, err
	}
	return vector, nil
}

// Name implements Model.
func (m *OpenAIModel) Name() string { return "openai/" + m.model }

// normalizeHost appends the /v1 suffix OpenAI-compatible servers expect.
func normalizeHost(host string) string {
	host = strings.TrimSuffix(host, "/")
	if !strings.HasSuffix(host, "/v1") {
		host += "/v1"
	}
	return host
}
