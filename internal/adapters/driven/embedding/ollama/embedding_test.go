package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

type embedBody struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedReply struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// echoServer answers each input with [global index, batch length].
func echoServer(t *testing.T, cfg Config, requests *atomic.Int32) *EmbeddingService {
	t.Helper()
	var seen atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body embedBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)

		var reply embedReply
		for range body.Input {
			idx := seen.Add(1) - 1
			reply.Embeddings = append(reply.Embeddings, []float32{float32(idx), float32(len(body.Input))})
		}
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	cfg.Model = "test-model"
	cfg.Dimensions = 2
	return NewEmbeddingService(cfg)
}

func fixedServer(t *testing.T, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewEmbeddingService(Config{BaseURL: server.URL, Model: "test-model", Dimensions: 2})
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc := NewEmbeddingService(Config{})

	assert.Equal(t, DefaultBaseURL, svc.baseURL)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
	assert.Equal(t, DefaultBatchSize, svc.batchSize)
	assert.Equal(t, DefaultTimeout, svc.client.Timeout)
	assert.Nil(t, svc.limiter)
}

func TestEmbedBatch_SingleRequest(t *testing.T) {
	var requests atomic.Int32
	svc := echoServer(t, Config{}, &requests)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 3}, {1, 3}, {2, 3}}, vectors)
	assert.Equal(t, int32(1), requests.Load())
}

func TestEmbedBatch_SplitsByBatchSize(t *testing.T) {
	var requests atomic.Int32
	svc := echoServer(t, Config{BatchSize: 2}, &requests)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 2}, {1, 2}, {2, 2}, {3, 2}, {4, 1}}, vectors)
	assert.Equal(t, int32(3), requests.Load())
}

func TestEmbed(t *testing.T) {
	svc := echoServer(t, Config{}, nil)

	vector, err := svc.Embed(context.Background(), "single")

	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vector)
}

func TestEmbedBatch_Empty(t *testing.T) {
	var requests atomic.Int32
	svc := echoServer(t, Config{}, &requests)

	vectors, err := svc.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Zero(t, requests.Load())
}

func TestEmbedBatch_StatusError(t *testing.T) {
	svc := fixedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	_, err := svc.EmbedBatch(context.Background(), []string{"a"})

	var statusErr *domain.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "model not loaded", statusErr.Body)
	assert.True(t, statusErr.Temporary())
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	svc := fixedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedReply{Embeddings: [][]float32{{1, 2}}})
	})

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 embeddings for 2 inputs")
}

func TestEmbedBatch_WrongDimensions(t *testing.T) {
	svc := fixedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedReply{Embeddings: [][]float32{{1, 2, 3}}})
	})

	_, err := svc.EmbedBatch(context.Background(), []string{"a"})

	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestEmbedBatch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	svc := NewEmbeddingService(Config{BaseURL: url, Timeout: time.Second})

	_, err := svc.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	assert.ErrorIs(t, svc.Ping(context.Background()), domain.ErrEmbeddingUnavailable)
}

func TestEmbedBatch_CancelledContext(t *testing.T) {
	svc := echoServer(t, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.EmbedBatch(ctx, []string{"a"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbedBatch_RateLimited(t *testing.T) {
	var requests atomic.Int32
	svc := echoServer(t, Config{RequestsPerSecond: 1}, &requests)
	require.NotNil(t, svc.limiter)

	_, err := svc.Embed(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = svc.Embed(ctx, "b")

	assert.Error(t, err, "second request within the same second is throttled")
	assert.Equal(t, int32(1), requests.Load())
}

func TestPing(t *testing.T) {
	svc := fixedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
