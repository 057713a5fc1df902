package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbedding indicates the embedding capability failed or returned
	// a vector of the wrong dimension
	ErrEmbedding = errors.New("embedding failed")

	// ErrRetrieval indicates the knowledge store query failed
	ErrRetrieval = errors.New("retrieval failed")

	// ErrExternalData indicates the weather capability failed or is not configured
	ErrExternalData = errors.New("external data unavailable")

	// ErrGeneration indicates the generation capability failed or timed out
	ErrGeneration = errors.New("generation failed")

	// ErrIngestion indicates document processing (chunking/embedding) failed
	ErrIngestion = errors.New("ingestion failed")

	// ErrIngestInProgress indicates an embedding job for the document is already running
	ErrIngestInProgress = errors.New("ingest already in progress")
)
