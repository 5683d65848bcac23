//go:build onnx

// Package onnx provides a local embedding backend running
// all-MiniLM-L6-v2 (or a compatible BERT-family model) through ONNX
// Runtime. No network access is needed once the model files exist.
package onnx

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/engramlabs/engram-go/memory/embedder"
	"github.com/engramlabs/engram-go/vector"
)

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file (required).
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json file (required).
	TokenizerPath string

	// SharedLibraryPath is the onnxruntime shared library. Defaults to
	// the ONNXRUNTIME_LIB environment variable.
	SharedLibraryPath string

	// Dimensions is the embedding vector size (default: 384).
	Dimensions int
}

const (
	defaultDimensions = 384
	maxSequenceLength = 128
)

// Embedder generates embeddings with ONNX Runtime. The model is loaded
// lazily on first use; concurrent first callers share one load.
type Embedder struct {
	cfg        Config
	gate       embedder.Gate
	session    *ort.DynamicAdvancedSession
	tokenizer  *wordPieceTokenizer
	dimensions int
}

// New creates an ONNX embedder. The model is not loaded yet; call Load
// or let the first Embed trigger it.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx embedder: ModelPath is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("onnx embedder: TokenizerPath is required")
	}
	if cfg.SharedLibraryPath == "" {
		cfg.SharedLibraryPath = os.Getenv("ONNXRUNTIME_LIB")
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultDimensions
	}

	return &Embedder{cfg: cfg, dimensions: cfg.Dimensions}, nil
}

// Load performs the one-time model load. Idempotent and safe for
// concurrent use.
func (e *Embedder) Load(ctx context.Context) error {
	return e.gate.Do(ctx, e.load)
}

// Ready reports whether the model finished loading.
func (e *Embedder) Ready() bool {
	return e.gate.Ready()
}

func (e *Embedder) load(ctx context.Context) error {
	if e.cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(e.cfg.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnx runtime: %w", err)
	}

	tokenizer, err := loadTokenizer(e.cfg.TokenizerPath)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(e.cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return fmt.Errorf("create onnx session: %w", err)
	}

	e.tokenizer = tokenizer
	e.session = session
	log.Printf("[ONNX] Model loaded: %s (%d dims)", e.cfg.ModelPath, e.dimensions)
	return nil
}

// Embed converts text to an embedding vector, loading the model first
// if needed.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.Load(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", embedder.ErrModelNotLoaded, err)
	}

	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.encode(text, maxSequenceLength)

	shape := ort.NewShape(1, int64(maxSequenceLength))
	inputTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer inputTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("onnx inference returned no outputs")
	}
	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}

	emb, err := e.pool(tensor, attentionMask)
	if err != nil {
		return nil, err
	}
	return vector.Normalize(emb), nil
}

// pool reduces the model output to one vector per input: pooled models
// ([1, dims]) pass through, token-level outputs ([1, seq, dims]) get
// attention-masked mean pooling.
func (e *Embedder) pool(tensor *ort.Tensor[float32], attentionMask []int64) ([]float32, error) {
	data := tensor.GetData()
	shape := tensor.GetShape()

	switch len(shape) {
	case 2:
		if len(data) < e.dimensions {
			return nil, fmt.Errorf("output dimension mismatch: got %d, expected %d", len(data), e.dimensions)
		}
		out := make([]float32, e.dimensions)
		copy(out, data[:e.dimensions])
		return out, nil

	case 3:
		seqLen, hidden := int(shape[1]), int(shape[2])
		if shape[0] != 1 {
			return nil, fmt.Errorf("expected batch size 1, got %d", shape[0])
		}
		if hidden != e.dimensions {
			return nil, fmt.Errorf("hidden size mismatch: got %d, expected %d", hidden, e.dimensions)
		}

		out := make([]float32, hidden)
		var attended float32
		for i := 0; i < seqLen; i++ {
			if attentionMask[i] == 0 {
				continue
			}
			attended++
			offset := i * hidden
			for j := 0; j < hidden; j++ {
				out[j] += data[offset+j]
			}
		}
		if attended == 0 {
			return out, nil
		}
		for j := range out {
			out[j] /= attended
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unexpected output shape: %v", shape)
	}
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases ONNX resources.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// wordPieceTokenizer is a minimal BERT WordPiece tokenizer driven by a
// tokenizer.json vocabulary.
type wordPieceTokenizer struct {
	vocab    map[string]int
	clsToken int64
	sepToken int64
	unkToken int64
}

func loadTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer vocabulary is empty")
	}

	return &wordPieceTokenizer{
		vocab:    file.Model.Vocab,
		clsToken: 101,
		sepToken: 102,
		unkToken: 100,
	}, nil
}

// encode tokenizes text into fixed-length [CLS] ... [SEP] input arrays.
func (t *wordPieceTokenizer) encode(text string, maxLen int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	tokens := t.tokenize(text)

	inputIDs = make([]int64, maxLen)
	attentionMask = make([]int64, maxLen)
	tokenTypeIDs = make([]int64, maxLen)

	inputIDs[0] = t.clsToken
	attentionMask[0] = 1

	n := len(tokens)
	if n > maxLen-2 {
		n = maxLen - 2
	}
	for i := 0; i < n; i++ {
		inputIDs[i+1] = tokens[i]
		attentionMask[i+1] = 1
	}

	inputIDs[n+1] = t.sepToken
	attentionMask[n+1] = 1
	return
}

func (t *wordPieceTokenizer) tokenize(text string) []int64 {
	var tokens []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}
		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}
		for _, sub := range t.split(word) {
			if id, ok := t.vocab[sub]; ok {
				tokens = append(tokens, int64(id))
			} else {
				tokens = append(tokens, t.unkToken)
			}
		}
	}
	return tokens
}

// split applies greedy longest-prefix WordPiece segmentation.
func (t *wordPieceTokenizer) split(word string) []string {
	var subwords []string
	start := 0

	for start < len(word) {
		end := len(word)
		found := false
		for end > start {
			sub := word[start:end]
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := t.vocab[sub]; ok {
				subwords = append(subwords, sub)
				start = end
				found = true
				break
			}
			end--
		}
		if !found {
			subwords = append(subwords, "[UNK]")
			start++
		}
	}
	return subwords
}
