package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func chunksOf(texts ...string) []Chunk {
	out := make([]Chunk, len(texts))
	for i, t := range texts {
		out[i] = Chunk{ID: fmt.Sprintf("chunk-%d", i), Text: t, Order: i}
	}
	return out
}

func TestSearch_RetrievalBound(t *testing.T) {
	enc := newKeywordEncoder("grace", "sum", "claim")
	ctx := context.Background()

	for _, n := range []int{0, 1, 3, 5, 8} {
		t.Run(fmt.Sprintf("%d chunks", n), func(t *testing.T) {
			texts := make([]string, n)
			for i := range texts {
				texts[i] = fmt.Sprintf("grace %d sum", i)
			}
			ix, err := BuildIndex(ctx, enc, chunksOf(texts...))
			if err != nil {
				t.Fatal(err)
			}
			res, err := ix.Search([]float32{1, 0, 0}, 5)
			if err != nil {
				t.Fatal(err)
			}
			if want := min(5, n); len(res) != want {
				t.Fatalf("got %d results, want %d", len(res), want)
			}
			for i := 1; i < len(res); i++ {
				if res[i-1].Distance > res[i].Distance {
					t.Fatalf("results not sorted by distance at %d", i)
				}
			}
		})
	}
}

func TestSearch_NearestFirst(t *testing.T) {
	enc := newKeywordEncoder("grace", "sum", "claim")
	ix, err := BuildIndex(context.Background(), enc, chunksOf(
		"claim claim procedure",
		"grace period grace days grace",
		"sum insured",
	))
	if err != nil {
		t.Fatal(err)
	}

	res, err := ix.Search([]float32{3, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res[0].Chunk.ID != "chunk-1" {
		t.Fatalf("nearest = %s, want chunk-1", res[0].Chunk.ID)
	}
	if res[0].Distance != 0 {
		t.Fatalf("exact match distance = %v, want 0", res[0].Distance)
	}
}

func TestBuildIndex_FailureLeavesNoIndex(t *testing.T) {
	enc := newKeywordEncoder("grace")
	enc.docErr = errors.New("quota exceeded")

	ix, err := BuildIndex(context.Background(), enc, chunksOf("grace"))
	if ix != nil {
		t.Fatal("expected no index on failure")
	}
	var svcErr *EmbeddingServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected EmbeddingServiceError, got %v", err)
	}
}

type raggedEncoder struct{ keywordEncoder }

func (e *raggedEncoder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, i+1)
	}
	return out, nil
}

func TestBuildIndex_DimensionMismatch(t *testing.T) {
	_, err := BuildIndex(context.Background(), &raggedEncoder{}, chunksOf("a", "b"))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	ix, _ := BuildIndex(context.Background(), newKeywordEncoder("a", "b"), chunksOf("a"))
	if _, err := ix.Search([]float32{1}, 5); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestRestoreIndex_RoundTrip(t *testing.T) {
	enc := newKeywordEncoder("grace", "sum")
	ix, _ := BuildIndex(context.Background(), enc, chunksOf("grace", "sum"))

	restored, err := RestoreIndex(ix.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if restored.Len() != 2 || restored.Dimension() != 2 || restored.Model() != enc.Model() {
		t.Fatalf("restored index differs: len=%d dim=%d model=%s", restored.Len(), restored.Dimension(), restored.Model())
	}

	if _, err := RestoreIndex(IndexSnapshot{Chunks: chunksOf("x"), Vectors: nil}); err == nil {
		t.Fatal("expected error for snapshot without vectors")
	}
}

func TestRetriever_DefaultsAndErrors(t *testing.T) {
	enc := newKeywordEncoder("grace")
	texts := make([]string, 7)
	for i := range texts {
		texts[i] = "grace"
	}
	ix, _ := BuildIndex(context.Background(), enc, chunksOf(texts...))

	res, err := NewRetriever(enc, ix, 0).Retrieve(context.Background(), "grace?")
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != DefaultTopK {
		t.Fatalf("got %d results, want %d", len(res), DefaultTopK)
	}
	// stable order for ties
	for i, sc := range res {
		if sc.Chunk.Order != i {
			t.Fatalf("tie order broken at %d: %d", i, sc.Chunk.Order)
		}
	}

	enc.queryErr = errors.New("unauthorized")
	_, err = NewRetriever(enc, ix, 5).Retrieve(context.Background(), "grace?")
	var svcErr *EmbeddingServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected EmbeddingServiceError, got %v", err)
	}
}
