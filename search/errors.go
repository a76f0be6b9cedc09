package search

import "errors"

var (
	// ErrChatRepositoryRequired is returned when a chat repository is not provided.
	ErrChatRepositoryRequired = errors.New("chat repository required")

	// ErrBinderRepositoryRequired is returned when a binder repository is not provided.
	ErrBinderRepositoryRequired = errors.New("binder repository required")
)
