// Package ollama provides an embedding service adapter using Ollama.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Defaults applied by NewEmbeddingService.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768
	DefaultBatchSize  = 32
)

const maxErrorBody = 512

// Config holds configuration for the Ollama embedding service.
// Zero values take the defaults above.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int

	// BatchSize caps the inputs sent in one /api/embed request.
	BatchSize int

	// RequestsPerSecond throttles requests. Zero disables throttling.
	RequestsPerSecond float64
}

// EmbeddingService generates embeddings using Ollama's /api/embed endpoint.
type EmbeddingService struct {
	client    *http.Client
	baseURL   string
	model     string
	dims      int
	batchSize int
	limiter   *rate.Limiter
}

// NewEmbeddingService creates a new Ollama embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	s := &EmbeddingService{
		client:    &http.Client{Timeout: orDefault(cfg.Timeout, DefaultTimeout)},
		baseURL:   orDefault(cfg.BaseURL, DefaultBaseURL),
		model:     orDefault(cfg.Model, DefaultModel),
		dims:      orDefault(cfg.Dimensions, DefaultDimensions),
		batchSize: orDefault(cfg.BatchSize, DefaultBatchSize),
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}
	return s
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in order, splitting them into requests of at
// most BatchSize inputs.
//
// Transport failures wrap domain.ErrEmbeddingUnavailable and non-200
// responses are *domain.HTTPStatusError. A vector of the wrong size means
// the model does not match the configured dimensions and wraps
// domain.ErrConfig.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		batch := texts[start:min(start+s.batchSize, len(texts))]

		var resp struct {
			Embeddings [][]float32 `json:"embeddings"`
		}
		req := struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}{Model: s.model, Input: batch}
		if err := s.call(ctx, http.MethodPost, "/api/embed", req, &resp); err != nil {
			return nil, err
		}

		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(batch))
		}
		for _, v := range resp.Embeddings {
			if len(v) != s.dims {
				return nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
					domain.ErrConfig, s.model, len(v), s.dims)
			}
		}
		vectors = append(vectors, resp.Embeddings...)
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dims
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists local models via /api/tags, which checks connectivity without
// running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.call(ctx, http.MethodGet, "/api/tags", nil, nil)
}

// Close releases idle connections.
func (s *EmbeddingService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// call sends one throttled request. in is JSON encoded when non-nil and the
// response is decoded into out when non-nil.
func (s *EmbeddingService) call(ctx context.Context, method, path string, in, out any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("ollama: rate limit wait: %w", err)
		}
	}

	body := io.Reader(http.NoBody)
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("ollama: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.HTTPStatusError{
			Service:    "ollama",
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(msg)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
