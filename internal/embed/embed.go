// Package embed turns text into sentence embeddings. Two models are in play
// during a run: the node model that the similarity index was built with, and
// the context model used to score evidence statements against the question.
package embed

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Model is implemented by embedders that know which model they run. The
// cache uses it to key entries.
type Model interface {
	Model() string
}

// #region codec
// CodecService is the slice of codec.CodecClient used here.
type CodecService interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// CodecEmbedder embeds through the Python sentence-transformers service.
type CodecEmbedder struct {
	svc   CodecService
	model string
}

// NewCodecEmbedder binds a codec client to one model name.
func NewCodecEmbedder(svc CodecService, model string) *CodecEmbedder {
	return &CodecEmbedder{svc: svc, model: model}
}

// Model returns the sentence-transformers model name.
func (e *CodecEmbedder) Model() string { return e.model }

// Embed implements Embedder.
func (e *CodecEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out, err := e.svc.Embed(ctx, e.model, texts)
	if err != nil {
		return nil, fmt.Errorf("codec embed %s: %w", e.model, err)
	}
	return out, nil
}

// #endregion codec

// #region math
// Cosine returns the cosine similarity of a and b. Mismatched lengths or a
// zero vector give 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// #endregion math

// #region encoding
// EncodeVector packs v as little-endian float32s.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// #endregion encoding
