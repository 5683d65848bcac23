// Package openai provides an embedding backend using the OpenAI API.
package openai

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/engramlabs/engram-go/vector"
)

// Defaults. text-embedding-3-small supports server-side truncation, so
// the vector size is held at 384 to stay interchangeable with the local
// MiniLM backend.
const (
	DefaultModel      = string(openaisdk.EmbeddingModelTextEmbedding3Small)
	DefaultDimensions = 384
)

// Config configures the OpenAI embedder.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// Model is the embedding model (default: text-embedding-3-small).
	Model string

	// Dimensions is the embedding vector size (default: 384).
	Dimensions int

	// RequestOptions are extra SDK options (base URL, organization).
	RequestOptions []option.RequestOption
}

// Embedder generates embeddings via the OpenAI embeddings endpoint.
// It implements both the single-text and the native batch contracts.
type Embedder struct {
	client     openaisdk.Client
	model      openaisdk.EmbeddingModel
	dimensions int
}

// New creates an OpenAI embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}

	opts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, cfg.RequestOptions...)

	return &Embedder{
		client:     openaisdk.NewClient(opts...),
		model:      openaisdk.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts a single text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("openai embedder: no embedding returned")
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, returning vectors aligned by
// input index.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openaisdk.EmbeddingNewParams{
		Model:      e.model,
		Input:      openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions: openaisdk.Int(int64(e.dimensions)),
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embed request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	// The response carries an index per vector; order by it rather
	// than trusting response order.
	out := make([][]float32, len(texts))
	for _, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vec[i] = float32(v)
		}
		out[data.Index] = vector.Normalize(vec)
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
