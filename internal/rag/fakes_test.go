package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// keywordEncoder embeds text as keyword counts, so related text lands close together.
type keywordEncoder struct {
	mu         sync.Mutex
	keywords   []string
	docCalls   int
	queryCalls int
	docErr     error
	queryErr   error
}

func newKeywordEncoder(keywords ...string) *keywordEncoder {
	return &keywordEncoder{keywords: keywords}
}

func (e *keywordEncoder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(e.keywords))
	for i, k := range e.keywords {
		v[i] = float32(strings.Count(lower, k))
	}
	return v
}

func (e *keywordEncoder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.docCalls++
	e.mu.Unlock()
	if e.docErr != nil {
		return nil, e.docErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEncoder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queryCalls++
	e.mu.Unlock()
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	return e.vector(text), nil
}

func (e *keywordEncoder) Model() string { return "keyword-test" }

// echoGenerator answers with the question line of the prompt.
type echoGenerator struct {
	calls   int
	failOn  int
	prompts []string
}

var errGeneratorDown = errors.New("generator down")

func (g *echoGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.failOn > 0 && g.calls == g.failOn {
		return "", errGeneratorDown
	}
	idx := strings.LastIndex(prompt, "Question: ")
	if idx < 0 {
		return "", errors.New("no question in prompt")
	}
	return "answer to " + strings.TrimSpace(prompt[idx+len("Question: "):]), nil
}

func (g *echoGenerator) Model() string { return "echo-test" }

type staticLoader struct {
	mu       sync.Mutex
	segments []Segment
	err      error
	calls    int
}

func (l *staticLoader) Load(Document) ([]Segment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.segments, l.err
}
