package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidBatchSize is returned when a batch size is negative.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrDimensionMismatch is returned when the backend returns vectors of a
	// different size than the model declares.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrRepositoryRequired is returned when a job is built without a repository.
	ErrRepositoryRequired = errors.New("repository required")

	// ErrProviderRequired is returned when a job is built without an AI provider.
	ErrProviderRequired = errors.New("AI provider required")
)

// ErrNoModels is returned when an every-model job finds an empty catalog.
var ErrNoModels = errors.New("no embedding models configured")
