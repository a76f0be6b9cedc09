package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
)

// BinderRepository implements storage.BinderRepository for BadgerDB.
type BinderRepository struct {
	backend           *Backend
	binderSeq         *badger.Sequence
	associationSeq    *badger.Sequence
	mergedDocumentSeq *badger.Sequence
}

var _ storage.BinderRepository = (*BinderRepository)(nil)

// NewBinderRepository creates a new BinderRepository.
func NewBinderRepository(backend *Backend) (*BinderRepository, error) {
	binderSeq, err := backend.GetSequence(binderSeqName)
	if err != nil {
		return nil, err
	}
	associationSeq, err := backend.GetSequence(associationSeqName)
	if err != nil {
		binderSeq.Release()
		return nil, err
	}
	mergedSeq, err := backend.GetSequence(mergedSeqName)
	if err != nil {
		associationSeq.Release()
		binderSeq.Release()
		return nil, err
	}

	return &BinderRepository{
		backend:           backend,
		binderSeq:         binderSeq,
		associationSeq:    associationSeq,
		mergedDocumentSeq: mergedSeq,
	}, nil
}

// Close releases the ordering sequences.
func (r *BinderRepository) Close() error {
	return errors.Join(
		r.mergedDocumentSeq.Release(),
		r.associationSeq.Release(),
		r.binderSeq.Release(),
	)
}

// CreateBinder persists a new binder and indexes it under its owner.
func (r *BinderRepository) CreateBinder(ctx context.Context, binder *core.Binder) (*core.Binder, error) {
	if binder == nil {
		return nil, storage.ErrInvalidQuery
	}
	seq, err := nextSeq(r.binderSeq)
	if err != nil {
		return nil, err
	}

	stored := *binder
	stored.ID = core.NewID()
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt

	err = r.backend.update(ctx, func(tx *badger.Txn) error {
		if err := setValue(tx, makeBinderKey(stored.ID), binderRowMUS, &binderRow{Binder: &stored, Seq: seq}); err != nil {
			return err
		}
		return tx.Set(makeBinderOwnerKey(stored.Owner, seq), []byte(stored.ID))
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetBinder retrieves a binder owned by owner.
func (r *BinderRepository) GetBinder(ctx context.Context, owner, id string) (*core.Binder, error) {
	var result *core.Binder
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		row, err := readOwnedBinder(tx, owner, id)
		if err != nil {
			return err
		}
		result = row.Binder
		return nil
	})
	return result, err
}

// UpdateBinder replaces the name and description of an owned binder.
func (r *BinderRepository) UpdateBinder(ctx context.Context, binder *core.Binder) (*core.Binder, error) {
	if binder == nil {
		return nil, storage.ErrInvalidQuery
	}

	var result *core.Binder
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		row, err := readOwnedBinder(tx, binder.Owner, binder.ID)
		if err != nil {
			return err
		}
		row.Binder.Name = binder.Name
		row.Binder.Description = binder.Description
		row.Binder.UpdatedAt = time.Now().UTC()
		result = row.Binder
		return setValue(tx, makeBinderKey(binder.ID), binderRowMUS, row)
	})
	return result, err
}

// ListBinders returns the owner's binders, newest first, with their chat counts.
func (r *BinderRepository) ListBinders(ctx context.Context, owner string) ([]*core.BinderSummary, error) {
	var results []*core.BinderSummary
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, makeBinderOwnerPartialKey(owner), true, func(_, val []byte) error {
			row, err := getValue(tx, makeBinderKey(string(val)), binderRowMUS)
			if err != nil || row == nil {
				return err
			}
			keys, err := collectKeys(tx, makeBinderOrderPartialKey(row.Binder.ID))
			if err != nil {
				return err
			}
			results = append(results, &core.BinderSummary{Binder: row.Binder, ChatCount: len(keys)})
			return nil
		})
	})
	return results, err
}

// DeleteBinder removes an owned binder, its associations and its merge history.
// The associated chats are left untouched.
func (r *BinderRepository) DeleteBinder(ctx context.Context, owner, id string) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		row, err := readOwnedBinder(tx, owner, id)
		if err != nil {
			return err
		}

		var doomed [][]byte
		err = scanPrefix(tx, makeBinderOrderPartialKey(id), false, func(key, val []byte) error {
			seq := key[len(key)-8:]
			chatID := string(val)
			doomed = append(doomed,
				key,
				makeBinderChatKey(id, chatID),
				join(makeChatBinderPartialKey(chatID), seq),
			)
			return nil
		})
		if err != nil {
			return err
		}

		history, err := collectKeys(tx, makeMergedPartialKey(id))
		if err != nil {
			return err
		}
		doomed = append(doomed, history...)
		doomed = append(doomed, makeBinderOwnerKey(row.Binder.Owner, row.Seq), makeBinderKey(id))
		return deleteKeys(tx, doomed)
	})
}

// AddChat associates a chat with a binder when both belong to owner.
// An existing association is returned unchanged with created set to false.
func (r *BinderRepository) AddChat(ctx context.Context, owner, binderID, chatID string) (*core.BinderChat, bool, error) {
	seq, err := nextSeq(r.associationSeq)
	if err != nil {
		return nil, false, err
	}

	var result *core.BinderChat
	created := false
	err = r.backend.update(ctx, func(tx *badger.Txn) error {
		if _, err := readOwnedBinder(tx, owner, binderID); err != nil {
			return err
		}
		if _, err := readOwnedChat(tx, owner, chatID); err != nil {
			return err
		}

		existing, err := getValue(tx, makeBinderChatKey(binderID, chatID), binderChatRowMUS)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing.Association
			return nil
		}

		association := &core.BinderChat{
			BinderID: binderID,
			ChatID:   chatID,
			AddedAt:  time.Now().UTC(),
		}
		if err := setValue(tx, makeBinderChatKey(binderID, chatID), binderChatRowMUS, &binderChatRow{Association: association, Seq: seq}); err != nil {
			return err
		}
		if err := tx.Set(makeBinderOrderKey(binderID, seq), []byte(chatID)); err != nil {
			return err
		}
		if err := tx.Set(makeChatBinderKey(chatID, seq), []byte(binderID)); err != nil {
			return err
		}
		result = association
		created = true
		return nil
	})

	if errors.Is(err, storage.ErrConflict) {
		// A concurrent writer touched the pair. If it created the association, it wins.
		existing, readErr := r.readAssociation(ctx, binderID, chatID)
		if readErr == nil && existing != nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// RemoveChat removes a chat from an owned binder.
func (r *BinderRepository) RemoveChat(ctx context.Context, owner, binderID, chatID string) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		if _, err := readOwnedBinder(tx, owner, binderID); err != nil {
			return err
		}
		existing, err := getValue(tx, makeBinderChatKey(binderID, chatID), binderChatRowMUS)
		if err != nil {
			return err
		}
		if existing == nil {
			return storage.ErrNotFound
		}
		return deleteKeys(tx, [][]byte{
			makeBinderChatKey(binderID, chatID),
			makeBinderOrderKey(binderID, existing.Seq),
			makeChatBinderKey(chatID, existing.Seq),
		})
	})
}

// GetBinderChats returns a binder's associations in the order they were added.
func (r *BinderRepository) GetBinderChats(ctx context.Context, binderID string) ([]*core.BinderChat, error) {
	var results []*core.BinderChat
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, makeBinderOrderPartialKey(binderID), false, func(_, val []byte) error {
			row, err := getValue(tx, makeBinderChatKey(binderID, string(val)), binderChatRowMUS)
			if err != nil || row == nil {
				return err
			}
			results = append(results, row.Association)
			return nil
		})
	})
	return results, err
}

// FindBinderForChat returns the binder the chat was first added to, or nil.
func (r *BinderRepository) FindBinderForChat(ctx context.Context, chatID string) (*core.Binder, error) {
	var result *core.Binder
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, makeChatBinderPartialKey(chatID), false, func(_, val []byte) error {
			row, err := getValue(tx, makeBinderKey(string(val)), binderRowMUS)
			if err != nil || row == nil {
				return err
			}
			result = row.Binder
			return errStopScan
		})
	})
	return result, err
}

// SearchBinders returns the owner's binders whose name or description contains
// query, ignoring case, in creation order. A limit of zero or less means no limit.
func (r *BinderRepository) SearchBinders(ctx context.Context, owner, query string, limit int) ([]*core.Binder, error) {
	var results []*core.Binder
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, makeBinderOwnerPartialKey(owner), false, func(_, val []byte) error {
			row, err := getValue(tx, makeBinderKey(string(val)), binderRowMUS)
			if err != nil || row == nil {
				return err
			}
			if row.Binder.Owner != owner {
				return nil
			}
			if !storage.ContainsFold(row.Binder.Name, query) && !storage.ContainsFold(row.Binder.Description, query) {
				return nil
			}
			results = append(results, row.Binder)
			if limit > 0 && len(results) >= limit {
				return errStopScan
			}
			return nil
		})
	})
	return results, err
}

// AddMergedDocument appends an entry to a binder's merge history.
func (r *BinderRepository) AddMergedDocument(ctx context.Context, doc *core.MergedDocument) (*core.MergedDocument, error) {
	if doc == nil {
		return nil, storage.ErrInvalidQuery
	}
	seq, err := nextSeq(r.mergedDocumentSeq)
	if err != nil {
		return nil, err
	}

	stored := *doc
	if stored.ID == "" {
		stored.ID = core.NewID()
	}
	if stored.GeneratedAt.IsZero() {
		stored.GeneratedAt = time.Now().UTC()
	}

	err = r.backend.update(ctx, func(tx *badger.Txn) error {
		found, err := exists(tx, makeBinderKey(stored.BinderID))
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		return setValue(tx, makeMergedKey(stored.BinderID, seq), storage.MergedDocumentMUS, &stored)
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListMergedDocuments returns a binder's merge history, oldest first.
func (r *BinderRepository) ListMergedDocuments(ctx context.Context, binderID string) ([]*core.MergedDocument, error) {
	var results []*core.MergedDocument
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, makeMergedPartialKey(binderID), false, func(_, val []byte) error {
			doc, err := storage.Unmarshal(storage.MergedDocumentMUS, val)
			if err != nil {
				return err
			}
			results = append(results, doc)
			return nil
		})
	})
	return results, err
}

func (r *BinderRepository) readAssociation(ctx context.Context, binderID, chatID string) (*core.BinderChat, error) {
	var result *core.BinderChat
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		row, err := getValue(tx, makeBinderChatKey(binderID, chatID), binderChatRowMUS)
		if err != nil || row == nil {
			return err
		}
		result = row.Association
		return nil
	})
	return result, err
}

// readOwnedBinder loads a binder row, treating foreign binders as missing.
func readOwnedBinder(tx *badger.Txn, owner, id string) (*binderRow, error) {
	row, err := getValue(tx, makeBinderKey(id), binderRowMUS)
	if err != nil {
		return nil, err
	}
	if row == nil || row.Binder.Owner != owner {
		return nil, storage.ErrNotFound
	}
	return row, nil
}
