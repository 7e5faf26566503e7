// Package embedding wraps text-embedding models behind a gateway that fixes
// the vector dimension at startup, unit-normalizes every vector and caches
// results by content.
package embedding

import "context"

// Model is a text-embedding backend. Implementations must be safe for
// concurrent use and deterministic for identical input.
type Model interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, text string) ([]float32, error)

// Embed implements Model.
func (f ModelFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Name implements Model.
func (f ModelFunc) Name() string { return "func" }
