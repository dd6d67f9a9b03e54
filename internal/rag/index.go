package rag

import (
	"context"
	"fmt"
	"sort"
)

// VectorIndex is an exact nearest-neighbour index over chunk embeddings.
// It is immutable once built.
type VectorIndex struct {
	model     string
	dimension int
	chunks    []Chunk
	vectors   [][]float32
}

// IndexSnapshot is the serialisable form of a VectorIndex.
type IndexSnapshot struct {
	Model   string      `json:"model"`
	Chunks  []Chunk     `json:"chunks"`
	Vectors [][]float32 `json:"vectors"`
}

// BuildIndex embeds every chunk and stores the pairs. Any encoder failure
// leaves no index behind.
func BuildIndex(ctx context.Context, enc Encoder, chunks []Chunk) (*VectorIndex, error) {
	if len(chunks) == 0 {
		return &VectorIndex{model: enc.Model()}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := enc.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, embeddingError("embed documents", err)
	}

	index, err := newVectorIndex(enc.Model(), chunks, vectors)
	if err != nil {
		return nil, &EmbeddingServiceError{Op: "embed documents", Err: err}
	}
	return index, nil
}

// RestoreIndex rebuilds an index from a snapshot, validating its shape.
func RestoreIndex(s IndexSnapshot) (*VectorIndex, error) {
	return newVectorIndex(s.Model, s.Chunks, s.Vectors)
}

func newVectorIndex(model string, chunks []Chunk, vectors [][]float32) (*VectorIndex, error) {
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	dim := 0
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty vector for chunk %d", i)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("%w: chunk %d has %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return &VectorIndex{
		model:     model,
		dimension: dim,
		chunks:    append([]Chunk(nil), chunks...),
		vectors:   vectors,
	}, nil
}

// Len returns the number of indexed chunks.
func (ix *VectorIndex) Len() int { return len(ix.chunks) }

// Dimension returns the vector dimensionality, zero for an empty index.
func (ix *VectorIndex) Dimension() int { return ix.dimension }

// Model returns the embedding model the vectors came from.
func (ix *VectorIndex) Model() string { return ix.model }

// Snapshot exports the index contents.
func (ix *VectorIndex) Snapshot() IndexSnapshot {
	return IndexSnapshot{Model: ix.model, Chunks: ix.chunks, Vectors: ix.vectors}
}

// Search returns the k chunks closest to query by squared Euclidean distance,
// nearest first. Fewer than k chunks means all of them are returned.
func (ix *VectorIndex) Search(query []float32, k int) (RetrievalResult, error) {
	if len(ix.chunks) == 0 || k <= 0 {
		return RetrievalResult{}, nil
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), ix.dimension)
	}

	scored := make(RetrievalResult, len(ix.chunks))
	for i, v := range ix.vectors {
		scored[i] = ScoredChunk{Chunk: ix.chunks[i], Distance: squaredL2(query, v)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}
