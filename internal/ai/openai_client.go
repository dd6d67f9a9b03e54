package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"

	"policy-qa-service/internal/rag"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// OpenAIClient talks to the OpenAI API or any compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	guard  *guard
	usage  UsageRecorder
}

// NewOpenAIClient builds a client. An empty baseURL selects api.openai.com.
func NewOpenAIClient(apiKey, baseURL string, policy CallPolicy, logger *slog.Logger, usage UsageRecorder) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("missing OPENAI_API_KEY for openai")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		guard:  newGuard("OpenAIAPI", policy, logger, usage),
		usage:  usage,
	}, nil
}

func (oc *OpenAIClient) Encoder(model string) *OpenAIEncoder {
	return &OpenAIEncoder{oc: oc, model: model}
}

func (oc *OpenAIClient) Generator(model string, temperature float32) *OpenAIGenerator {
	return &OpenAIGenerator{oc: oc, model: model, temperature: temperature}
}

// OpenAIEncoder embeds texts with an OpenAI embedding model.
type OpenAIEncoder struct {
	oc    *OpenAIClient
	model string
}

var _ rag.Encoder = (*OpenAIEncoder)(nil)

func (e *OpenAIEncoder) Model() string { return e.model }

func (e *OpenAIEncoder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "openai.embed_documents")
	defer span.End()
	span.SetAttributes(
		attribute.String("openai.model", e.model),
		attribute.Int("openai.texts", len(texts)),
	)

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))
		batch, err := guarded(ctx, e.oc.guard, "embed documents", func(ctx context.Context) ([][]float32, error) {
			return e.embed(ctx, texts[start:end])
		})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *OpenAIEncoder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "openai.embed_query")
	defer span.End()
	span.SetAttributes(attribute.String("openai.model", e.model))

	vecs, err := guarded(ctx, e.oc.guard, "embed query", func(ctx context.Context) ([][]float32, error) {
		return e.embed(ctx, []string{text})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEncoder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.oc.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts))
	}
	if e.oc.usage != nil && resp.Usage.TotalTokens > 0 {
		e.oc.usage.RecordTokensUsed(int64(resp.Usage.TotalTokens), e.model)
	}

	// the API does not promise response order
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("text %d: %w", i, rag.ErrEmptyResponse)
		}
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		out[i] = v
	}
	return out, nil
}

// OpenAIGenerator answers prompts with a chat completion model.
type OpenAIGenerator struct {
	oc          *OpenAIClient
	model       string
	temperature float32
}

var _ rag.Generator = (*OpenAIGenerator)(nil)

func (g *OpenAIGenerator) Model() string { return g.model }

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "openai.chat_completion")
	defer span.End()
	span.SetAttributes(attribute.String("openai.model", g.model))

	temperature := g.temperature
	if temperature == 0 {
		// zero is dropped from the request body and the server default applies
		temperature = math.SmallestNonzeroFloat32
	}

	answer, err := guarded(ctx, g.oc.guard, "generate", func(ctx context.Context) (string, error) {
		resp, err := g.oc.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Temperature: temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return "", classifyOpenAIError(err)
		}
		if g.oc.usage != nil && resp.Usage.TotalTokens > 0 {
			g.oc.usage.RecordTokensUsed(int64(resp.Usage.TotalTokens), g.model)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return "", rag.ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return answer, nil
}

// classifyOpenAIError marks client errors other than throttling as permanent.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != http.StatusTooManyRequests {
			return permanent(err)
		}
	}
	return err
}
