package storage

import (
	"context"

	"github.com/poiesic/chatbinder/core"
)

// Repository provides operations shared by all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// ChatRepository manages chats and the chunks and embeddings that hang off them.
type ChatRepository interface {
	Repository

	// CreateChat persists a new chat.
	// Assigns ID and CreatedAt. Returns the stored chat.
	CreateChat(ctx context.Context, chat *core.Chat) (*core.Chat, error)

	// GetChat retrieves a chat owned by owner.
	// Returns ErrNotFound if the chat doesn't exist or belongs to someone else.
	GetChat(ctx context.Context, owner, id string) (*core.Chat, error)

	// ListChats returns the owner's chats, newest first.
	ListChats(ctx context.Context, owner string) ([]*core.Chat, error)

	// HasChats reports whether the owner has at least one chat.
	HasChats(ctx context.Context, owner string) (bool, error)

	// DeleteChat removes a chat owned by owner together with its chunks,
	// embeddings and binder associations.
	// Returns ErrNotFound if the chat doesn't exist or belongs to someone else.
	DeleteChat(ctx context.Context, owner, id string) error

	// AddChunk persists a chunk for an existing chat.
	// Assigns ID and CreatedAt.
	// Returns ErrNotFound if the chat doesn't exist and ErrDuplicateKey if the
	// chat already has a chunk at that index.
	AddChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error)

	// GetChunks returns a chat's chunks in index order.
	GetChunks(ctx context.Context, chatID string) ([]*core.Chunk, error)

	// AddEmbedding persists the embedding for an existing chunk.
	// Returns ErrNotFound if the chunk doesn't exist and ErrDuplicateKey if the
	// chunk already has an embedding. Embeddings are never overwritten.
	AddEmbedding(ctx context.Context, embedding *core.Embedding) error

	// GetEmbedding retrieves the embedding for a chunk.
	// Returns ErrNotFound if none exists.
	GetEmbedding(ctx context.Context, chunkID string) (*core.Embedding, error)

	// CountEmbeddings returns how many of a chat's chunks have an embedding.
	CountEmbeddings(ctx context.Context, chatID string) (int, error)

	// SearchChunks returns up to limit chunks of the owner's chats whose content
	// contains query, ignoring case. Results follow storage order: chats in
	// creation order, chunks in index order.
	SearchChunks(ctx context.Context, owner, query string, limit int) ([]*core.ChunkWithChatSummary, error)

	// ChunksMissingEmbeddings returns up to limit chunks without an embedding,
	// starting after cursor. It returns the cursor to resume from, which is
	// empty once every chunk has been visited.
	ChunksMissingEmbeddings(ctx context.Context, cursor string, limit int) ([]*core.Chunk, string, error)
}

// BinderRepository manages binders, their chat associations and merge history.
type BinderRepository interface {
	Repository

	// CreateBinder persists a new binder.
	// Assigns ID, CreatedAt and UpdatedAt. Returns the stored binder.
	CreateBinder(ctx context.Context, binder *core.Binder) (*core.Binder, error)

	// GetBinder retrieves a binder owned by owner.
	// Returns ErrNotFound if the binder doesn't exist or belongs to someone else.
	GetBinder(ctx context.Context, owner, id string) (*core.Binder, error)

	// UpdateBinder replaces the name and description of an owned binder.
	// Updates UpdatedAt automatically.
	UpdateBinder(ctx context.Context, binder *core.Binder) (*core.Binder, error)

	// ListBinders returns the owner's binders with chat counts, newest first.
	ListBinders(ctx context.Context, owner string) ([]*core.BinderSummary, error)

	// DeleteBinder removes an owned binder with its associations and merge history.
	DeleteBinder(ctx context.Context, owner, id string) error

	// AddChat associates a chat with a binder, both owned by owner.
	// Adding an existing pair returns the existing association and false.
	AddChat(ctx context.Context, owner, binderID, chatID string) (*core.BinderChat, bool, error)

	// RemoveChat removes an association.
	// Returns ErrNotFound if the pair isn't associated.
	RemoveChat(ctx context.Context, owner, binderID, chatID string) error

	// GetBinderChats returns a binder's associations in the order they were added.
	GetBinderChats(ctx context.Context, binderID string) ([]*core.BinderChat, error)

	// FindBinderForChat returns the binder a chat was first added to.
	// Returns nil, nil if the chat isn't in any binder.
	FindBinderForChat(ctx context.Context, chatID string) (*core.Binder, error)

	// SearchBinders returns up to limit of the owner's binders whose name or
	// description contains query, ignoring case, in creation order.
	SearchBinders(ctx context.Context, owner, query string, limit int) ([]*core.Binder, error)

	// AddMergedDocument appends to a binder's merge history.
	// Assigns ID and GeneratedAt if unset.
	AddMergedDocument(ctx context.Context, doc *core.MergedDocument) (*core.MergedDocument, error)

	// ListMergedDocuments returns a binder's merge history, oldest first.
	ListMergedDocuments(ctx context.Context, binderID string) ([]*core.MergedDocument, error)
}

// CheckpointRepository stores progress markers for resumable jobs.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint, replacing any previous one with the same name.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves a checkpoint by name.
	// Returns nil, nil if none exists.
	LoadCheckpoint(ctx context.Context, name string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes a checkpoint. Missing checkpoints are ignored.
	DeleteCheckpoint(ctx context.Context, name string) error
}
