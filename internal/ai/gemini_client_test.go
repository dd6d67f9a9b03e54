package ai

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"policy-qa-service/internal/rag"

	genai "github.com/google/generative-ai-go/genai"
)

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("A grace period of "),
				genai.Text("thirty days applies."),
			}},
		}},
	}
	got, err := responseText(resp)
	if err != nil {
		t.Fatal(err)
	}
	if got != "A grace period of thirty days applies." {
		t.Fatalf("got %q", got)
	}
}

func TestResponseText_EmptyAndBlocked(t *testing.T) {
	if _, err := responseText(&genai.GenerateContentResponse{}); !errors.Is(err, rag.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}

	noText := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}}},
	}
	if _, err := responseText(noText); !errors.Is(err, rag.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}

	blocked := &genai.GenerateContentResponse{
		PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
	}
	_, err := responseText(blocked)
	var p *permanentError
	if !errors.As(err, &p) {
		t.Fatalf("blocked prompt must not be retried, got %v", err)
	}
}

func TestExtractTokenUsage(t *testing.T) {
	withUsage := &genai.GenerateContentResponse{
		UsageMetadata: &genai.UsageMetadata{TotalTokenCount: 321},
	}
	if got := extractTokenUsage(withUsage); got != 321 {
		t.Fatalf("got %d", got)
	}

	estimated := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text(strings.Repeat("x", 40))}}}},
	}
	if got := extractTokenUsage(estimated); got != 10 {
		t.Fatalf("got %d", got)
	}
	if got := extractTokenUsage(&genai.GenerateContentResponse{}); got != 1 {
		t.Fatalf("minimum is one token, got %d", got)
	}
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	if _, err := NewGeminiClient(context.Background(), "", DefaultCallPolicy(), nil, nil); err == nil {
		t.Fatal("expected error without key")
	}
}

func TestGeminiLive(t *testing.T) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		t.Skip("GOOGLE_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gc, err := NewGeminiClient(ctx, apiKey, DefaultCallPolicy(), quietLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer gc.Close()

	enc := gc.Encoder("embedding-001")
	docs, err := enc.EmbedDocuments(ctx, []string{"Grace period is thirty days.", "Sum insured is five lakh."})
	if err != nil {
		t.Fatal(err)
	}
	query, err := enc.EmbedQuery(ctx, "What is the grace period?")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || len(docs[0]) == 0 || len(query) != len(docs[0]) {
		t.Fatalf("unexpected shapes: %d docs, dim %d, query dim %d", len(docs), len(docs[0]), len(query))
	}

	answer, err := gc.Generator("gemini-2.5-pro", 0).Generate(ctx, "Reply with the single word: yes")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(answer) == "" {
		t.Fatal("empty answer")
	}
}
