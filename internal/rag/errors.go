package rag

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline misuse.
var (
	ErrInvalidChunkParams  = errors.New("overlap length must be non-negative and smaller than max chunk length")
	ErrUnsupportedFormat   = errors.New("unsupported document format")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
	ErrEmptyResponse       = errors.New("empty response from model")
	ErrInvalidPromptFormat = errors.New("prompt template must reference .Context and .Question")
)

// DocumentReadError reports a document that is missing, unreadable or not a PDF.
type DocumentReadError struct {
	Source string
	Err    error
}

func (e *DocumentReadError) Error() string {
	return fmt.Sprintf("read document %q: %v", e.Source, e.Err)
}

func (e *DocumentReadError) Unwrap() error { return e.Err }

// EmbeddingServiceError wraps a failed call to the remote embedding model.
type EmbeddingServiceError struct {
	Op  string
	Err error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service: %s: %v", e.Op, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// GenerationServiceError wraps a failed call to the remote language model.
type GenerationServiceError struct {
	Op  string
	Err error
}

func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("generation service: %s: %v", e.Op, e.Err)
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

// embeddingError keeps an existing EmbeddingServiceError intact and wraps anything else.
func embeddingError(op string, err error) error {
	var svcErr *EmbeddingServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	return &EmbeddingServiceError{Op: op, Err: err}
}

func generationError(op string, err error) error {
	var svcErr *GenerationServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	return &GenerationServiceError{Op: op, Err: err}
}
