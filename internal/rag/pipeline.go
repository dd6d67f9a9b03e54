package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "policy-qa-service/rag"

// Stage names reported to the observer and used as span names.
const (
	StageLoad     = "load"
	StageChunk    = "chunk"
	StageIndex    = "index"
	StageRetrieve = "retrieve"
	StagePrompt   = "prompt"
	StageGenerate = "generate"
)

// Observer receives per-stage timings and cache outcomes.
type Observer interface {
	ObserveStage(ctx context.Context, stage string, elapsed time.Duration, err error)
	ObserveCache(ctx context.Context, hit bool)
}

// Options configures a Pipeline. Zero values select the defaults.
type Options struct {
	// MaxChunkLength and OverlapLength default together: when MaxChunkLength
	// is set, a zero OverlapLength means windows that do not overlap.
	MaxChunkLength int
	OverlapLength  int
	TopK           int
	PromptTemplate string
	// Cache is optional; nil rebuilds the index on every run.
	Cache    IndexCache
	Logger   *slog.Logger
	Observer Observer
}

// Pipeline answers questions about one document per run. It holds no
// request state, so one Pipeline serves concurrent requests.
type Pipeline struct {
	loader    Loader
	chunker   *Chunker
	encoder   Encoder
	generator Generator
	prompts   *PromptAssembler
	cache     IndexCache
	topK      int
	logger    *slog.Logger
	observer  Observer
}

// NewPipeline wires the stages together.
func NewPipeline(loader Loader, enc Encoder, gen Generator, opts Options) (*Pipeline, error) {
	if opts.MaxChunkLength == 0 {
		opts.MaxChunkLength = DefaultMaxChunkLength
		if opts.OverlapLength == 0 {
			opts.OverlapLength = DefaultOverlapLength
		}
	}
	chunker, err := NewChunker(opts.MaxChunkLength, opts.OverlapLength)
	if err != nil {
		return nil, err
	}
	prompts, err := NewPromptAssembler(opts.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("prompt template: %w", err)
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		loader:    loader,
		chunker:   chunker,
		encoder:   enc,
		generator: gen,
		prompts:   prompts,
		cache:     opts.Cache,
		topK:      opts.TopK,
		logger:    opts.Logger,
		observer:  opts.Observer,
	}, nil
}

// Run indexes doc and answers every question in order. A failure at any
// stage aborts the run and no answers are returned.
func (p *Pipeline) Run(ctx context.Context, doc Document, questions []string) (answers []string, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "rag.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("rag.document", doc.Source),
		attribute.Int("rag.questions", len(questions)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	index, err := p.Index(ctx, doc)
	if err != nil {
		return nil, err
	}

	retriever := NewRetriever(p.encoder, index, p.topK)
	answers = make([]string, 0, len(questions))
	for i, q := range questions {
		answer, err := p.answer(ctx, retriever, q)
		if err != nil {
			p.logger.Error("question failed", "document", doc.Source, "question_index", i, "error", err)
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		answers = append(answers, answer)
	}

	p.logger.Info("questions answered", "document", doc.Source, "questions", len(questions), "chunks", index.Len())
	return answers, nil
}

// Index returns the vector index for doc, building it unless the cache has it.
func (p *Pipeline) Index(ctx context.Context, doc Document) (*VectorIndex, error) {
	var key CacheKey
	if p.cache != nil {
		key = NewCacheKey(doc.Data, p.encoder.Model(), p.chunker.MaxLength(), p.chunker.Overlap())
		index, hit := p.cache.Get(ctx, key)
		p.observeCache(ctx, hit)
		if hit {
			p.logger.Debug("index cache hit", "document", doc.Source, "key", key.ContentHash)
			return index, nil
		}
	}

	segments, err := runStage(ctx, p, StageLoad, func(context.Context) ([]Segment, error) {
		return p.loader.Load(doc)
	})
	if err != nil {
		return nil, err
	}

	chunks, err := runStage(ctx, p, StageChunk, func(context.Context) ([]Chunk, error) {
		return p.chunker.Split(segments), nil
	})
	if err != nil {
		return nil, err
	}

	index, err := runStage(ctx, p, StageIndex, func(ctx context.Context) (*VectorIndex, error) {
		return BuildIndex(ctx, p.encoder, chunks)
	})
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Put(ctx, key, index); err != nil {
			p.logger.Warn("index cache store failed", "document", doc.Source, "error", err)
		}
	}
	return index, nil
}

func (p *Pipeline) answer(ctx context.Context, retriever *Retriever, question string) (string, error) {
	result, err := runStage(ctx, p, StageRetrieve, func(ctx context.Context) (RetrievalResult, error) {
		return retriever.Retrieve(ctx, question)
	})
	if err != nil {
		return "", err
	}

	prompt, err := runStage(ctx, p, StagePrompt, func(context.Context) (string, error) {
		return p.prompts.Assemble(result, question)
	})
	if err != nil {
		return "", err
	}

	return runStage(ctx, p, StageGenerate, func(ctx context.Context) (string, error) {
		answer, err := p.generator.Generate(ctx, prompt)
		if err != nil {
			return "", generationError("generate", err)
		}
		return answer, nil
	})
}

// runStage wraps fn in a span and reports its duration.
func runStage[T any](ctx context.Context, p *Pipeline, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "rag."+name)
	defer span.End()

	start := time.Now()
	out, err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if p.observer != nil {
		p.observer.ObserveStage(ctx, name, elapsed, err)
	}
	p.logger.Debug("stage finished", "stage", name, "elapsed_ms", elapsed.Milliseconds(), "ok", err == nil)
	return out, err
}

func (p *Pipeline) observeCache(ctx context.Context, hit bool) {
	if p.observer != nil {
		p.observer.ObserveCache(ctx, hit)
	}
}
