package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"policy-qa-service/internal/rag"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

const tracerName = "policy-qa-service/ai"

// maxEmbedBatch is the most texts BatchEmbedContents accepts per request.
const maxEmbedBatch = 100

// GeminiClient shares one Google Generative AI connection between the
// encoder and the generator.
type GeminiClient struct {
	client *genai.Client
	guard  *guard
	usage  UsageRecorder
	logger *slog.Logger
}

func NewGeminiClient(ctx context.Context, apiKey string, policy CallPolicy, logger *slog.Logger, usage UsageRecorder) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GOOGLE_API_KEY for gemini")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiClient{
		client: client,
		guard:  newGuard("GeminiAPI", policy, logger, usage),
		usage:  usage,
		logger: logger,
	}, nil
}

// Encoder returns an embedding encoder for model, e.g. "embedding-001".
func (gc *GeminiClient) Encoder(model string) *GeminiEncoder {
	docs := gc.client.EmbeddingModel(model)
	docs.TaskType = genai.TaskTypeRetrievalDocument
	query := gc.client.EmbeddingModel(model)
	query.TaskType = genai.TaskTypeRetrievalQuery
	return &GeminiEncoder{gc: gc, model: model, docs: docs, query: query}
}

// Generator returns a text generator for model at the given temperature.
func (gc *GeminiClient) Generator(model string, temperature float32) *GeminiGenerator {
	return &GeminiGenerator{gc: gc, model: model, temperature: temperature}
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}

// GeminiEncoder embeds chunks and questions with a Gemini embedding model.
type GeminiEncoder struct {
	gc    *GeminiClient
	model string
	docs  *genai.EmbeddingModel
	query *genai.EmbeddingModel
}

var _ rag.Encoder = (*GeminiEncoder)(nil)

func (e *GeminiEncoder) Model() string { return e.model }

func (e *GeminiEncoder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gemini.embed_documents")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", e.model),
		attribute.Int("gemini.texts", len(texts)),
	)

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))
		batch, err := guarded(ctx, e.gc.guard, "embed documents", func(ctx context.Context) ([][]float32, error) {
			return e.embedBatch(ctx, texts[start:end])
		})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *GeminiEncoder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b := e.docs.NewBatch()
	for _, t := range texts {
		b.AddContent(genai.Text(t))
	}
	resp, err := e.docs.BatchEmbedContents(ctx, b)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("text %d: %w", i, rag.ErrEmptyResponse)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (e *GeminiEncoder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gemini.embed_query")
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", e.model))

	vec, err := guarded(ctx, e.gc.guard, "embed query", func(ctx context.Context) ([]float32, error) {
		resp, err := e.query.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, rag.ErrEmptyResponse
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return vec, err
}

// GeminiGenerator answers prompts with a Gemini chat model.
type GeminiGenerator struct {
	gc          *GeminiClient
	model       string
	temperature float32
}

var _ rag.Generator = (*GeminiGenerator)(nil)

func (g *GeminiGenerator) Model() string { return g.model }

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gemini.generate_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", g.model),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	answer, err := guarded(ctx, g.gc.guard, "generate", func(ctx context.Context) (string, error) {
		model := g.gc.client.GenerativeModel(g.model)
		model.SetTemperature(g.temperature)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", err
		}

		tokens := extractTokenUsage(resp)
		span.SetAttributes(attribute.Int("gemini.actual_tokens", tokens))
		if g.gc.usage != nil {
			g.gc.usage.RecordTokensUsed(int64(tokens), g.model)
		}
		return responseText(resp)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		span.RecordError(err)
		return "", err
	}
	return answer, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", permanent(fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", rag.ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", rag.ErrEmptyResponse
	}
	return b.String(), nil
}

// Extract token usage from Gemini response
func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}

	// ~4 characters per token
	chars := 0
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				chars += len(text)
			}
		}
	}
	return max(1, chars/4)
}
