package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "http://localhost:11434/v1", normalizeHost("http://localhost:11434"))
	assert.Equal(t, "http://localhost:11434/v1", normalizeHost("http://localhost:11434/v1/"))
}

func TestNewOpenAIModelValidates(t *testing.T) {
	_, err := NewOpenAIModel(OpenAIConfig{Model: "m"}, nil)
	assert.Error(t, err)
	_, err = NewOpenAIModel(OpenAIConfig{Host: "http://x"}, nil)
	assert.Error(t, err)
}

func TestOpenAIModelEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "all-minilm",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.5, 0.5, 0.5, 0.5}},
			},
			"usage": map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	defer srv.Close()

	model, err := NewOpenAIModel(OpenAIConfig{Host: srv.URL, Model: "all-minilm"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai/all-minilm", model.Name())

	g, err := NewGateway(context.Background(), model)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Dimension())
}
