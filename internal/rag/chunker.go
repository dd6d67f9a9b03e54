package rag

import "strconv"

const (
	DefaultMaxChunkLength = 500
	DefaultOverlapLength  = 100
)

// Chunker splits page segments into fixed-size overlapping windows.
type Chunker struct {
	maxLength int
	overlap   int
}

// NewChunker validates the window parameters.
func NewChunker(maxLength, overlap int) (*Chunker, error) {
	if maxLength <= 0 || overlap < 0 || overlap >= maxLength {
		return nil, ErrInvalidChunkParams
	}
	return &Chunker{maxLength: maxLength, overlap: overlap}, nil
}

// MaxLength returns the window size in characters.
func (c *Chunker) MaxLength() int { return c.maxLength }

// Overlap returns the number of characters shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

type segmentSpan struct {
	index      int
	start, end int
}

// Split concatenates the segments and slides a window of MaxLength runes
// over the result, advancing by MaxLength-Overlap until the window start
// passes the end of the text.
func (c *Chunker) Split(segments []Segment) []Chunk {
	var text []rune
	spans := make([]segmentSpan, 0, len(segments))
	for _, s := range segments {
		start := len(text)
		text = append(text, []rune(s.Text)...)
		spans = append(spans, segmentSpan{index: s.Index, start: start, end: len(text)})
	}

	n := len(text)
	if n == 0 {
		return nil
	}

	step := c.maxLength - c.overlap
	chunks := make([]Chunk, 0, (n+step-1)/step)
	for start := 0; start < n; start += step {
		end := min(start+c.maxLength, n)
		chunks = append(chunks, Chunk{
			ID:       "chunk-" + strconv.Itoa(len(chunks)),
			Text:     string(text[start:end]),
			Order:    len(chunks),
			Start:    start,
			End:      end,
			Segments: pagesIn(spans, start, end),
		})
	}
	return chunks
}

// pagesIn returns the indices of non-empty segments intersecting [start, end).
func pagesIn(spans []segmentSpan, start, end int) []int {
	var pages []int
	for _, sp := range spans {
		if sp.start == sp.end {
			continue
		}
		if sp.end > start && sp.start < end {
			pages = append(pages, sp.index)
		}
	}
	return pages
}
