package service

import "errors"

// Failure taxonomy for the answering pipeline. Provider errors are
// wrapped into these sentinels so callers can branch with errors.Is
// without ever seeing provider internals.
var (
	// ErrInvalidInput means the request was malformed; no audit row
	// is created for it.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingUnavailable means the embedding provider failed
	// after retries.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrGenerationUnavailable means the generation provider failed
	// after retries.
	ErrGenerationUnavailable = errors.New("generation provider unavailable")

	// ErrIndexUnavailable means the vector index could not be
	// queried, so grounding cannot be assessed.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrTenantNotFound means the tenant does not exist or is
	// inactive.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrRequestNotFound means the request does not exist for the
	// calling tenant.
	ErrRequestNotFound = errors.New("request not found")

	// ErrDocumentNotFound means the document does not exist for the
	// calling tenant.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDimensionMismatch means a produced vector does not match the
	// configured dimension. Fatal for the ingestion, never truncated.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
