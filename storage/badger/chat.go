package badger

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
)

// ChatRepository implements storage.ChatRepository for BadgerDB.
type ChatRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.ChatRepository = (*ChatRepository)(nil)

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(backend *Backend) (*ChatRepository, error) {
	seq, err := backend.GetSequence(chatSeqName)
	if err != nil {
		return nil, err
	}

	return &ChatRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the ordering sequence.
func (r *ChatRepository) Close() error {
	return r.seq.Release()
}

// CreateChat persists a new chat and indexes it under its owner.
func (r *ChatRepository) CreateChat(ctx context.Context, chat *core.Chat) (*core.Chat, error) {
	if chat == nil {
		return nil, storage.ErrInvalidQuery
	}
	seq, err := nextSeq(r.seq)
	if err != nil {
		return nil, err
	}

	stored := *chat
	stored.ID = core.NewID()
	stored.CreatedAt = time.Now().UTC()

	err = r.backend.update(ctx, func(tx *badger.Txn) error {
		if err := setValue(tx, makeChatKey(stored.ID), chatRowMUS, &chatRow{Chat: &stored, Seq: seq}); err != nil {
			return err
		}
		return tx.Set(makeChatOwnerKey(stored.Owner, seq), []byte(stored.ID))
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetChat retrieves a chat owned by owner.
func (r *ChatRepository) GetChat(ctx context.Context, owner, id string) (*core.Chat, error) {
	var result *core.Chat
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		row, err := readOwnedChat(tx, owner, id)
		if err != nil {
			return err
		}
		result = row.Chat
		return nil
	})
	return result, err
}

// ListChats returns the owner's chats, newest first.
func (r *ChatRepository) ListChats(ctx context.Context, owner string) ([]*core.Chat, error) {
	var results []*core.Chat
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, makeChatOwnerPartialKey(owner), true, func(_, val []byte) error {
			row, err := getValue(tx, makeChatKey(string(val)), chatRowMUS)
			if err != nil {
				return err
			}
			if row != nil {
				results = append(results, row.Chat)
			}
			return nil
		})
	})
	return results, err
}

// HasChats reports whether the owner has at least one chat.
func (r *ChatRepository) HasChats(ctx context.Context, owner string) (bool, error) {
	found := false
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, makeChatOwnerPartialKey(owner), false, func(_, _ []byte) error {
			found = true
			return errStopScan
		})
	})
	return found, err
}

// DeleteChat removes an owned chat and everything hanging off it in one transaction.
func (r *ChatRepository) DeleteChat(ctx context.Context, owner, id string) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		row, err := readOwnedChat(tx, owner, id)
		if err != nil {
			return err
		}

		// Chunks, their id index and embeddings
		var doomed [][]byte
		err = scanPrefix(tx, makeChunkPartialKey(id), false, func(key, val []byte) error {
			chunk, err := storage.Unmarshal(storage.ChunkMUS, val)
			if err != nil {
				return err
			}
			doomed = append(doomed, key, makeChunkIDKey(chunk.ID), makeEmbeddingKey(chunk.ID))
			return nil
		})
		if err != nil {
			return err
		}

		// Binder associations, from both sides
		err = scanPrefix(tx, makeChatBinderPartialKey(id), false, func(key, val []byte) error {
			seq := key[len(key)-8:]
			binderID := string(val)
			doomed = append(doomed,
				key,
				join(makeBinderOrderPartialKey(binderID), seq),
				makeBinderChatKey(binderID, id),
			)
			return nil
		})
		if err != nil {
			return err
		}

		doomed = append(doomed, makeChatOwnerKey(row.Chat.Owner, row.Seq), makeChatKey(id))
		return deleteKeys(tx, doomed)
	})
}

// AddChunk persists a chunk at its index within an existing chat.
func (r *ChatRepository) AddChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error) {
	if chunk == nil || chunk.Index < 0 || chunk.Content == "" {
		return nil, storage.ErrInvalidQuery
	}

	stored := *chunk
	stored.ID = core.NewID()
	stored.CreatedAt = time.Now().UTC()

	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		chatExists, err := exists(tx, makeChatKey(stored.ChatID))
		if err != nil {
			return err
		}
		if !chatExists {
			return storage.ErrNotFound
		}

		key := makeChunkKey(stored.ChatID, stored.Index)
		taken, err := exists(tx, key)
		if err != nil {
			return err
		}
		if taken {
			return storage.ErrDuplicateKey
		}

		if err := setValue(tx, key, storage.ChunkMUS, &stored); err != nil {
			return err
		}
		return tx.Set(makeChunkIDKey(stored.ID), key)
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetChunks returns a chat's chunks in index order.
func (r *ChatRepository) GetChunks(ctx context.Context, chatID string) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		results, err = readChunks(tx, chatID)
		return err
	})
	return results, err
}

// AddEmbedding persists the embedding of an existing chunk. Existing embeddings are never replaced.
func (r *ChatRepository) AddEmbedding(ctx context.Context, embedding *core.Embedding) error {
	if embedding == nil || len(embedding.Vector) == 0 {
		return storage.ErrInvalidQuery
	}

	stored := *embedding
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	return r.backend.update(ctx, func(tx *badger.Txn) error {
		chunkExists, err := exists(tx, makeChunkIDKey(stored.ChunkID))
		if err != nil {
			return err
		}
		if !chunkExists {
			return storage.ErrNotFound
		}

		key := makeEmbeddingKey(stored.ChunkID)
		taken, err := exists(tx, key)
		if err != nil {
			return err
		}
		if taken {
			return storage.ErrDuplicateKey
		}
		return setValue(tx, key, storage.EmbeddingMUS, &stored)
	})
}

// GetEmbedding retrieves the embedding of a chunk.
func (r *ChatRepository) GetEmbedding(ctx context.Context, chunkID string) (*core.Embedding, error) {
	var result *core.Embedding
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = getValue(tx, makeEmbeddingKey(chunkID), storage.EmbeddingMUS)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// CountEmbeddings returns how many of a chat's chunks carry an embedding.
func (r *ChatRepository) CountEmbeddings(ctx context.Context, chatID string) (int, error) {
	count := 0
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		chunks, err := readChunks(tx, chatID)
		if err != nil {
			return err
		}
		for _, chunk := range chunks {
			ok, err := exists(tx, makeEmbeddingKey(chunk.ID))
			if err != nil {
				return err
			}
			if ok {
				count++
			}
		}
		return nil
	})
	return count, err
}

// SearchChunks scans the owner's chats in creation order and returns chunks
// whose content contains query, ignoring case. A limit of zero or less means no limit.
func (r *ChatRepository) SearchChunks(ctx context.Context, owner, query string, limit int) ([]*core.ChunkWithChatSummary, error) {
	var results []*core.ChunkWithChatSummary
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, makeChatOwnerPartialKey(owner), false, func(_, val []byte) error {
			row, err := getValue(tx, makeChatKey(string(val)), chatRowMUS)
			if err != nil {
				return err
			}
			if row == nil || row.Chat.Owner != owner {
				return nil
			}
			summary := row.Chat.Summary()

			err = scanPrefix(tx, makeChunkPartialKey(row.Chat.ID), false, func(_, chunkVal []byte) error {
				chunk, err := storage.Unmarshal(storage.ChunkMUS, chunkVal)
				if err != nil {
					return err
				}
				if !storage.ContainsFold(chunk.Content, query) {
					return nil
				}
				results = append(results, &core.ChunkWithChatSummary{Chunk: chunk, Chat: summary})
				if limit > 0 && len(results) >= limit {
					return errStopScan
				}
				return nil
			})
			if err != nil {
				return err
			}
			if limit > 0 && len(results) >= limit {
				return errStopScan
			}
			return nil
		})
	})
	return results, err
}

// ChunksMissingEmbeddings walks every chunk in key order, returning those without
// an embedding. The returned cursor is the key of the last chunk visited.
func (r *ChatRepository) ChunksMissingEmbeddings(ctx context.Context, cursor string, limit int) ([]*core.Chunk, string, error) {
	if limit <= 0 {
		return nil, "", storage.ErrInvalidQuery
	}

	var results []*core.Chunk
	next := ""
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		start := []byte(chunkPrefix)
		if cursor != "" {
			start = []byte(cursor)
		}

		for iter.Seek(start); iter.ValidForPrefix(opts.Prefix); iter.Next() {
			item := iter.Item()
			key := item.KeyCopy(nil)
			if cursor != "" && bytes.Equal(key, []byte(cursor)) {
				continue
			}

			var chunk *core.Chunk
			if err := item.Value(func(val []byte) error {
				var err error
				chunk, err = storage.Unmarshal(storage.ChunkMUS, val)
				return err
			}); err != nil {
				return err
			}

			embedded, err := exists(tx, makeEmbeddingKey(chunk.ID))
			if err != nil {
				return err
			}
			if !embedded {
				results = append(results, chunk)
			}
			next = string(key)
			if len(results) >= limit {
				// Report a cursor only if something may follow.
				return nil
			}
		}
		next = ""
		return nil
	})
	return results, next, err
}

// readOwnedChat loads a chat row, treating foreign chats as missing.
func readOwnedChat(tx *badger.Txn, owner, id string) (*chatRow, error) {
	row, err := getValue(tx, makeChatKey(id), chatRowMUS)
	if err != nil {
		return nil, err
	}
	if row == nil || row.Chat.Owner != owner {
		return nil, storage.ErrNotFound
	}
	return row, nil
}

// readChunks loads a chat's chunks in index order.
func readChunks(tx *badger.Txn, chatID string) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	err := scanPrefix(tx, makeChunkPartialKey(chatID), false, func(_, val []byte) error {
		chunk, err := storage.Unmarshal(storage.ChunkMUS, val)
		if err != nil {
			return err
		}
		chunks = append(chunks, chunk)
		return nil
	})
	return chunks, err
}
