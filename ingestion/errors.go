package ingestion

import "errors"

var (
	// ErrSourceRepositoryRequired is returned when a source text repository is not provided.
	ErrSourceRepositoryRequired = errors.New("source text repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrInvalidChunkConfig is returned for a chunk size, overlap or strategy that cannot be used.
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")
)
