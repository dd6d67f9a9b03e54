// Package rag implements retrieval-augmented answering over a single policy
// document: load, chunk, embed, index, retrieve, prompt and generate.
package rag

import "context"

// Document is the raw byte source of one request.
type Document struct {
	Source string
	Data   []byte
}

// Segment is the extracted text of one page, Index is zero-based.
type Segment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Chunk is a window over the concatenated segment text. Start and End are
// rune offsets; Segments lists the pages the window touches.
type Chunk struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Order    int    `json:"order"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Segments []int  `json:"segments"`
}

// ScoredChunk is a retrieved chunk with its distance to the query vector.
type ScoredChunk struct {
	Chunk    Chunk
	Distance float32
}

// RetrievalResult is ordered by ascending distance.
type RetrievalResult []ScoredChunk

// Texts returns the chunk texts in rank order.
func (r RetrievalResult) Texts() []string {
	out := make([]string, len(r))
	for i, sc := range r {
		out[i] = sc.Chunk.Text
	}
	return out
}

// Encoder maps text to embedding vectors using a remote model.
type Encoder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Generator produces an answer for a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Loader turns a document into page segments.
type Loader interface {
	Load(doc Document) ([]Segment, error)
}
