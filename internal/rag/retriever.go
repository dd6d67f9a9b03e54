package rag

import "context"

// DefaultTopK is the retrieval depth per question.
const DefaultTopK = 5

// Retriever embeds a question and returns its nearest chunks. There is no
// threshold or re-ranking: the top k are returned however distant.
type Retriever struct {
	encoder Encoder
	index   *VectorIndex
	k       int
}

// NewRetriever binds an encoder to an index. k <= 0 selects DefaultTopK.
func NewRetriever(enc Encoder, index *VectorIndex, k int) *Retriever {
	if k <= 0 {
		k = DefaultTopK
	}
	return &Retriever{encoder: enc, index: index, k: k}
}

// Retrieve returns up to k chunks ordered by ascending distance.
func (r *Retriever) Retrieve(ctx context.Context, question string) (RetrievalResult, error) {
	if r.index.Len() == 0 {
		return RetrievalResult{}, nil
	}
	vec, err := r.encoder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, embeddingError("embed query", err)
	}
	result, err := r.index.Search(vec, r.k)
	if err != nil {
		return nil, &EmbeddingServiceError{Op: "search", Err: err}
	}
	return result, nil
}
