package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"github.com/timmy/grievo/internal/config"
	"github.com/timmy/grievo/internal/errs"
	"github.com/timmy/grievo/internal/logger"
)

const (
	jinaEndpoint = "https://api.jina.ai/v1/embeddings"

	initProbeText      = "initialization probe"
	defaultInitTimeout = 2 * time.Minute
)

// EmbeddingBackend produces raw (not necessarily normalized) vectors for texts.
type EmbeddingBackend interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// HTTPEmbeddingBackend calls a sentence-embedding inference server.
// Provider "tei" speaks the text-embeddings-inference /embed format;
// "jina" and "openai-compatible" speak the /v1/embeddings format.
type HTTPEmbeddingBackend struct {
	client   *resty.Client
	provider string
	model    string
	endpoint string
}

// NewHTTPEmbeddingBackend creates a backend from configuration.
func NewHTTPEmbeddingBackend(cfg *config.EmbeddingConfig) *HTTPEmbeddingBackend {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	var endpoint string
	switch cfg.Provider {
	case "tei":
		endpoint = base + "/embed"
	case "jina":
		endpoint = jinaEndpoint
		if base != "" {
			endpoint = base + "/v1/embeddings"
		}
	default:
		endpoint = base + "/v1/embeddings"
	}

	return &HTTPEmbeddingBackend{
		client:   client,
		provider: cfg.Provider,
		model:    cfg.Model,
		endpoint: endpoint,
	}
}

type teiRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize"`
	Truncate  bool     `json:"truncate"`
}

type teiError struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// embeddingsRequest is the OpenAI/Jina request body.
type embeddingsRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// EmbedBatch generates embeddings for multiple texts, in input order.
func (b *HTTPEmbeddingBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if b.provider == "tei" {
		return b.embedTEI(ctx, texts)
	}
	return b.embedOpenAI(ctx, texts)
}

func (b *HTTPEmbeddingBackend) embedTEI(ctx context.Context, texts []string) ([][]float32, error) {
	var (
		result  [][]float32
		failure teiError
	)
	httpResp, err := b.client.R().
		SetContext(ctx).
		SetBody(teiRequest{Inputs: texts, Normalize: true, Truncate: true}).
		SetResult(&result).
		SetError(&failure).
		Post(b.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding server: %w", err)
	}
	if httpResp.IsError() {
		if failure.Error != "" {
			return nil, fmt.Errorf("embedding server error: %s", failure.Error)
		}
		return nil, fmt.Errorf("embedding server error: status %d", httpResp.StatusCode())
	}
	if len(result) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(result), len(texts))
	}
	return result, nil
}

func (b *HTTPEmbeddingBackend) embedOpenAI(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embeddingsResponse
	httpResp, err := b.client.R().
		SetContext(ctx).
		SetBody(embeddingsRequest{Model: b.model, Input: texts, EncodingFormat: "float"}).
		SetResult(&resp).
		SetError(&resp).
		Post(b.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding API: %w", err)
	}
	if httpResp.IsError() {
		switch {
		case resp.Detail != "":
			return nil, fmt.Errorf("embedding API error: %s", resp.Detail)
		case resp.Error != nil && resp.Error.Message != "":
			return nil, fmt.Errorf("embedding API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("embedding API error: status %d", httpResp.StatusCode())
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	// Sort by index to ensure correct order
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}
	return embeddings, nil
}

// EmbeddingService turns text into unit-length vectors of a fixed dimension.
// The backend is probed once; concurrent first callers share that attempt and
// a failed attempt is retried by the next caller.
type EmbeddingService struct {
	backend      EmbeddingBackend
	modelVersion string
	dimensions   int
	initTimeout  time.Duration

	group singleflight.Group
	ready atomic.Bool
	dims  atomic.Int64
}

// EmbeddingServiceConfig configures an EmbeddingService.
type EmbeddingServiceConfig struct {
	ModelVersion string
	Dimensions   int // 0 accepts the dimension reported by the first probe
	InitTimeout  time.Duration
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(backend EmbeddingBackend, cfg EmbeddingServiceConfig) *EmbeddingService {
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = defaultInitTimeout
	}
	return &EmbeddingService{
		backend:      backend,
		modelVersion: cfg.ModelVersion,
		dimensions:   cfg.Dimensions,
		initTimeout:  cfg.InitTimeout,
	}
}

// ModelVersion identifies the model producing the vectors.
func (s *EmbeddingService) ModelVersion() string {
	return s.modelVersion
}

// Dimensions returns the vector length, or 0 before initialization.
func (s *EmbeddingService) Dimensions() int {
	return int(s.dims.Load())
}

// Ready reports whether initialization has succeeded.
func (s *EmbeddingService) Ready() bool {
	return s.ready.Load()
}

// Initialize probes the model backend and fixes the vector dimension.
func (s *EmbeddingService) Initialize(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}

	_, err, _ := s.group.Do("init", func() (interface{}, error) {
		if s.ready.Load() {
			return nil, nil
		}

		// Detached so one caller's cancellation does not fail every waiter.
		initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.initTimeout)
		defer cancel()

		start := time.Now()
		vectors, err := s.backend.EmbedBatch(initCtx, []string{initProbeText})
		if err != nil {
			return nil, err
		}
		if len(vectors) != 1 || len(vectors[0]) == 0 {
			return nil, fmt.Errorf("model returned an empty probe vector")
		}
		dim := len(vectors[0])
		if s.dimensions > 0 && dim != s.dimensions {
			return nil, fmt.Errorf("model returned %d dimensions, expected %d", dim, s.dimensions)
		}

		s.dims.Store(int64(dim))
		s.ready.Store(true)

		logger.With(logger.Fields{
			"model":      s.modelVersion,
			"dimensions": dim,
		}).WithDuration(start).Info(ctx, "Embedding model ready")
		return nil, nil
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Embedding model failed to load")
		return errs.Wrap(errs.KindModelLoad, err, "embedding model failed to load")
	}
	return nil
}

// Embed generates a normalized embedding for a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates normalized embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := s.backend.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, err, "failed to generate embedding")
	}
	if len(vectors) != len(texts) {
		return nil, errs.Newf(errs.KindEmbedding, "unexpected number of embeddings: got %d, expected %d", len(vectors), len(texts))
	}

	dim := s.Dimensions()
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, errs.Newf(errs.KindEmbedding, "embedding %d has %d dimensions, expected %d", i, len(v), dim)
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		out[i] = normalize(cp)
	}
	return out, nil
}
