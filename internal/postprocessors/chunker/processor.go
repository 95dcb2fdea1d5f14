// Package chunker splits file content into fixed-size windows of runes.
package chunker

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var _ driven.Splitter = (*Processor)(nil)

// Processor cuts content into windows of size runes, each starting
// size-overlap runes after the previous one.
type Processor struct {
	size    int
	overlap int
}

// Option configures a Processor. Out-of-range values are ignored.
type Option func(*Processor)

func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.size = size
		}
	}
}

func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New returns a Processor. An overlap that would stop the window from
// advancing is cut to a quarter of the size.
func New(opts ...Option) *Processor {
	p := &Processor{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(p)
	}
	if p.overlap >= p.size {
		p.overlap = p.size / 4
	}
	return p
}

func (p *Processor) Name() string { return "chunker" }

// Split returns the windows of content in order; empty content has none.
// Metadata carries each window's rune range as "offset" and "end". The
// last window always reaches the end of content and no window lies
// entirely inside the previous one.
func (p *Processor) Split(ctx context.Context, content string) ([]driven.ChunkText, error) {
	runes := []rune(content)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	stride := p.size - p.overlap
	out := make([]driven.ChunkText, 0, (n+stride-1)/stride)
	for lo := 0; ; lo += stride {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := min(lo+p.size, n)
		out = append(out, driven.ChunkText{
			Content:  string(runes[lo:hi]),
			Metadata: map[string]any{"offset": lo, "end": hi},
		})
		if hi == n {
			return out, nil
		}
	}
}
