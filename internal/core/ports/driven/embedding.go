package driven

import "context"

// EmbeddingService turns chunk text into vectors. It is optional.
//
// Failures surface to the run, which decides whether to retry the job.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector length, which the store's schema must match.
	Dimensions() int

	ModelName() string

	// Ping checks the service answers without generating anything.
	Ping(ctx context.Context) error

	Close() error
}
