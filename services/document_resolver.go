package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"policy-qa-service/internal/rag"
	"policy-qa-service/middleware"

	"github.com/andybalholm/brotli"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrDocumentNotFound means a local document reference names no file.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDownloadFailed means a URL reference could not be fetched.
	ErrDownloadFailed = errors.New("failed to download document")
)

// DocumentResolver turns a request's document reference into bytes: http(s)
// URLs are downloaded, anything else is read from the documents directory.
type DocumentResolver struct {
	documentsDir string
	maxSize      int64
	httpClient   *http.Client
	logger       *slog.Logger
}

func NewDocumentResolver(documentsDir string, maxSize int64, timeout time.Duration, logger *slog.Logger) *DocumentResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentResolver{
		documentsDir: documentsDir,
		maxSize:      maxSize,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Resolve fetches the document named by ref.
func (r *DocumentResolver) Resolve(ctx context.Context, ref string) (rag.Document, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return r.download(ctx, ref)
	}
	return r.readLocal(ref)
}

func (r *DocumentResolver) download(ctx context.Context, url string) (rag.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return rag.Document{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Warn("document download failed", "url", url, "error", err)
		return rag.Document{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("document download failed", "url", url, "status", resp.StatusCode)
		return rag.Document{}, fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	// gzip is undone by the transport, brotli is not
	var body io.Reader = resp.Body
	if strings.Contains(resp.Header.Get("Content-Encoding"), "br") {
		body = brotli.NewReader(resp.Body)
	}

	data, err := r.readBounded(body)
	if err != nil {
		return rag.Document{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	r.logger.Debug("document downloaded", "url", url, "bytes", len(data))
	return rag.Document{Source: url, Data: data}, nil
}

func (r *DocumentResolver) readLocal(ref string) (rag.Document, error) {
	if !filepath.IsLocal(ref) {
		return rag.Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, ref)
	}
	path := filepath.Join(r.documentsDir, ref)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return rag.Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, ref)
	}
	if err != nil {
		return rag.Document{}, &rag.DocumentReadError{Source: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return rag.Document{}, &rag.DocumentReadError{Source: path, Err: err}
	}
	defer f.Close()

	data, err := r.readBounded(f)
	if err != nil {
		return rag.Document{}, &rag.DocumentReadError{Source: path, Err: err}
	}
	return rag.Document{Source: path, Data: data}, nil
}

// readBounded reads at most maxSize bytes; a larger body is an error.
func (r *DocumentResolver) readBounded(src io.Reader) ([]byte, error) {
	if r.maxSize <= 0 {
		return io.ReadAll(src)
	}
	data, err := io.ReadAll(io.LimitReader(src, r.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.maxSize {
		return nil, fmt.Errorf("document exceeds %d bytes", r.maxSize)
	}
	return data, nil
}
