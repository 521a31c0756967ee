package domain

import "errors"

var (
	// ErrValidation indicates missing or malformed caller input.
	ErrValidation = errors.New("validation error")
	// ErrExtraction indicates the upload is not a parseable PDF or has no text layer.
	ErrExtraction = errors.New("extraction error")
	// ErrEmbedding indicates the external embedding model failed.
	ErrEmbedding = errors.New("embedding error")
	// ErrGeneration indicates the answer or summary model failed.
	ErrGeneration = errors.New("generation error")
	// ErrStorage indicates the database or object store is unavailable.
	ErrStorage  = errors.New("storage error")
	ErrNotFound = errors.New("not found")
)
