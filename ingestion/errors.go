package ingestion

import "errors"

var (
	// ErrChatRepositoryRequired is returned when a chat repository is not provided.
	ErrChatRepositoryRequired = errors.New("chat repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmbedderRequired is returned when the provider has no embedder.
	ErrEmbedderRequired = errors.New("embedder required")
)
