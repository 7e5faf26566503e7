package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/miradorstack/mirador-recall/internal/cache"
	"github.com/miradorstack/mirador-recall/internal/metrics"
	"github.com/miradorstack/mirador-recall/internal/models"
)

const (
	probeText          = "dim"
	defaultLRUSize     = 4096
	sharedCacheKeyRoot = "recall:emb:"
	defaultSharedTTL   = 24 * time.Hour
)

// Gateway is the single entry point for embeddings. The dimension is probed
// once at construction and every returned vector has unit L2 norm.
type Gateway struct {
	model     Model
	dim       int
	local     *lru.Cache[string, []float32]
	shared    cache.Provider
	sharedTTL time.Duration
	logger    *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithLRUSize bounds the in-process cache. Zero or negative disables it.
func WithLRUSize(size int) Option {
	return func(g *Gateway) {
		if size <= 0 {
			g.local = nil
			return
		}
		local, err := lru.New[string, []float32](size)
		if err == nil {
			g.local = local
		}
	}
}

// WithSharedCache adds a cross-process cache consulted after the LRU.
func WithSharedCache(provider cache.Provider, ttl time.Duration) Option {
	return func(g *Gateway) {
		if provider == nil {
			return
		}
		g.shared = provider
		if ttl > 0 {
			g.sharedTTL = ttl
		}
	}
}

// NewGateway wraps model and probes its output dimension. A model that cannot
// answer the probe is reported as unavailable.
func NewGateway(ctx context.Context, model Model, opts ...Option) (*Gateway, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: embedding model not configured", models.ErrUnavailable)
	}
	local, _ := lru.New[string, []float32](defaultLRUSize)
	g := &Gateway{
		model:     model,
		local:     local,
		shared:    cache.NoopProvider{},
		sharedTTL: defaultSharedTTL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	probe, err := model.Embed(ctx, probeText)
	if err != nil {
		return nil, fmt.Errorf("%w: probe embedding model %s: %w", models.ErrUnavailable, model.Name(), err)
	}
	if len(probe) == 0 {
		return nil, fmt.Errorf("%w: embedding model %s returned an empty probe vector", models.ErrUnavailable, model.Name())
	}
	g.dim = len(probe)
	g.logger.Info("embedding model ready", slog.String("model", model.Name()), slog.Int("dim", g.dim))
	return g, nil
}

// Dimension is the fixed vector width for the lifetime of the gateway.
func (g *Gateway) Dimension() int {
	return g.dim
}

// ModelName identifies the wrapped model.
func (g *Gateway) ModelName() string {
	return g.model.Name()
}

// Embed returns the unit-normalized embedding of text. It never substitutes a
// zero vector: model failures, wrong widths and zero-norm outputs are errors.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	key := g.cacheKey(text)

	if g.local != nil {
		if v, ok := g.local.Get(key); ok {
			metrics.ObserveEmbeddingCache(metrics.CacheHitLocal)
			return clone(v), nil
		}
	}
	if data, err := g.shared.Get(ctx, key); err == nil {
		if v, ok := decodeVector(data, g.dim); ok {
			metrics.ObserveEmbeddingCache(metrics.CacheHitShared)
			g.remember(key, v)
			return clone(v), nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		g.logger.Debug("shared embedding cache unavailable", slog.Any("error", err))
	}
	metrics.ObserveEmbeddingCache(metrics.CacheMiss)

	raw, err := g.model.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed with %s: %w", models.ErrUnavailable, g.model.Name(), err)
	}
	if len(raw) != g.dim {
		return nil, fmt.Errorf("%w: embedding width %d, expected %d", models.ErrUnavailable, len(raw), g.dim)
	}
	v, ok := normalize(raw)
	if !ok {
		return nil, fmt.Errorf("%w: embedding model %s returned a zero vector", models.ErrUnavailable, g.model.Name())
	}

	g.remember(key, v)
	if err := g.shared.Set(ctx, key, encodeVector(v), g.sharedTTL); err != nil {
		g.logger.Debug("shared embedding cache write failed", slog.Any("error", err))
	}
	return clone(v), nil
}

func (g *Gateway) remember(key string, v []float32) {
	if g.local != nil {
		g.local.Add(key, v)
	}
}

func (g *Gateway) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(g.model.Name() + "\x00" + text))
	return sharedCacheKeyRoot + hex.EncodeToString(sum[:])
}

// normalize scales v to unit length; ok is false for a zero or non-finite vector.
func normalize(v []float32) ([]float32, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, false
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, true
}

func clone(v []float32) []float32 {
	return append([]float32(nil), v...)
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(data []byte, dim int) ([]float32, bool) {
	if len(data) != 4*dim {
		return nil, false
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, true
}
