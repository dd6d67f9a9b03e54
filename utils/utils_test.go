package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc123":      "abc123",
		"bearer abc123":      "abc123",
		"  Bearer  abc123  ": " abc123",
		"Bearer abc123 ":     "abc123 ",
		"Basic abc123":       "",
		"Bearer":             "",
		"abc123":             "",
		"":                   "",
	}
	for header, want := range cases {
		if got := ExtractBearerToken(header); got != want {
			t.Errorf("ExtractBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestContentHash(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := ContentHash([]byte("abc")); got != want {
		t.Fatalf("got %s", got)
	}
}

func TestRespondWithDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithNotFound(c, "Document not found.")

	if w.Code != http.StatusNotFound || !c.IsAborted() {
		t.Fatalf("status = %d aborted = %v", w.Code, c.IsAborted())
	}
	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["detail"] != "Document not found." {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestWithCustomTimeout(t *testing.T) {
	ctx, cancel := WithCustomTimeout(context.Background(), 0)
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatal("zero duration must not set a deadline")
	}

	ctx2, cancel2 := WithCustomTimeout(context.Background(), time.Minute)
	defer cancel2()
	if _, ok := ctx2.Deadline(); !ok {
		t.Fatal("expected a deadline")
	}
}
