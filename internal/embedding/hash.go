package embedding

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"
)

// DefaultHashDimension matches the width of common MiniLM sentence models.
const DefaultHashDimension = 384

// HashModel is a dependency-free lexical embedder using signed feature
// hashing over lowercase tokens. Texts sharing tokens get positive cosine
// similarity, which is enough for local development and tests.
type HashModel struct {
	dim int
}

// NewHashModel returns a HashModel of the given width.
func NewHashModel(dim int) *HashModel {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashModel{dim: dim}
}

// Embed implements Model. The output is not normalized; the Gateway does that.
func (m *HashModel) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, m.dim)
	for _, token := range tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()
		bucket := int(sum % uint64(m.dim))
		if sum&(1<<63) != 0 {
			vector[bucket]--
		} else {
			vector[bucket]++
		}
	}
	return vector, nil
}

// Name implements Model.
func (m *HashModel) Name() string { return "hash/" + strconv.Itoa(m.dim) }

// tokenize keeps dotted and hyphenated identifiers (10.0.0.1, vpn-gw-01) whole.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '.'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, ".-"); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
