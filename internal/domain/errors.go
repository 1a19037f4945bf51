package domain

import "errors"

// Sentinel errors for the retrieval engine.
var (
	// ErrInvalidK signals a non-positive result count.
	ErrInvalidK = errors.New("k must be positive")
	// ErrInvalidRadius signals a negative geo radius.
	ErrInvalidRadius = errors.New("radius must be non-negative")
	// ErrInvalidCoordinates signals latitude/longitude out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrInvalidDocument signals a document that cannot be stored.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrIndexInProgress signals that a background index task is already running.
	ErrIndexInProgress = errors.New("index task already in progress")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrInvalidStrategy signals an unknown rerank strategy name.
	ErrInvalidStrategy = errors.New("invalid rerank strategy")
	// ErrInvalidSortField signals an unsupported sort field.
	ErrInvalidSortField = errors.New("invalid sort field")
	// ErrInvalidLambda signals an MMR lambda outside [0,1].
	ErrInvalidLambda = errors.New("lambda must be between 0 and 1")
)
