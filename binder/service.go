// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/merge"
	"github.com/poiesic/chatbinder/storage"
)

var (
	// ErrBinderRepositoryRequired is returned when no binder repository is provided.
	ErrBinderRepositoryRequired = errors.New("binder repository required")

	// ErrChatRepositoryRequired is returned when no chat repository is provided.
	ErrChatRepositoryRequired = errors.New("chat repository required")

	// ErrMergerRequired is returned when no merger is provided.
	ErrMergerRequired = errors.New("merger required")
)

// Service manages owner-scoped binders and their chats.
// Every operation verifies that the binder belongs to owner before touching it.
type Service struct {
	binders storage.BinderRepository
	chats   storage.ChatRepository
	merger  *merge.Merger
	logger  *slog.Logger
}

// Option is a functional option for configuring a Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// NewService creates a binder service.
func NewService(binders storage.BinderRepository, chats storage.ChatRepository, merger *merge.Merger, opts ...Option) (*Service, error) {
	if binders == nil {
		return nil, ErrBinderRepositoryRequired
	}
	if chats == nil {
		return nil, ErrChatRepositoryRequired
	}
	if merger == nil {
		return nil, ErrMergerRequired
	}

	s := &Service{
		binders: binders,
		chats:   chats,
		merger:  merger,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "binders")
	return s, nil
}

// Create makes a new binder. The name is trimmed.
func (s *Service) Create(ctx context.Context, owner, name, description string) (*core.Binder, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return nil, err
	}
	if err := core.ValidateBinderFields(name, description); err != nil {
		return nil, err
	}

	binder, err := s.binders.CreateBinder(ctx, &core.Binder{
		Owner:       owner,
		Name:        strings.TrimSpace(name),
		Description: description,
	})
	if err != nil {
		s.logger.Error("failed to create binder", "owner", owner, "err", err)
		return nil, storage.DomainError(err)
	}
	s.logger.Debug("binder created", "binder_id", binder.ID)
	return binder, nil
}

// List returns the owner's binders, newest first, with chat counts.
func (s *Service) List(ctx context.Context, owner string) ([]*core.BinderSummary, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return nil, err
	}
	summaries, err := s.binders.ListBinders(ctx, owner)
	if err != nil {
		return nil, storage.DomainError(err)
	}
	return summaries, nil
}

// Get returns a binder with its chats in association order, each with its
// chunks in index order.
func (s *Service) Get(ctx context.Context, owner, binderID string) (*core.BinderContents, error) {
	binder, err := s.owned(ctx, owner, binderID)
	if err != nil {
		return nil, err
	}

	associations, err := s.binders.GetBinderChats(ctx, binder.ID)
	if err != nil {
		return nil, storage.DomainError(err)
	}

	contents := &core.BinderContents{Binder: binder, Chats: make([]*core.ChatContents, 0, len(associations))}
	for _, assoc := range associations {
		chat, err := s.chats.GetChat(ctx, owner, assoc.ChatID)
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("binder references missing chat", "binder_id", binder.ID, "chat_id", assoc.ChatID)
			continue
		}
		if err != nil {
			return nil, storage.DomainError(err)
		}
		chunks, err := s.chats.GetChunks(ctx, chat.ID)
		if err != nil {
			return nil, storage.DomainError(err)
		}
		contents.Chats = append(contents.Chats, &core.ChatContents{Chat: chat, Chunks: chunks})
	}
	return contents, nil
}

// Rename replaces a binder's name and description.
func (s *Service) Rename(ctx context.Context, owner, binderID, name, description string) (*core.Binder, error) {
	if err := core.ValidateBinderFields(name, description); err != nil {
		return nil, err
	}
	binder, err := s.owned(ctx, owner, binderID)
	if err != nil {
		return nil, err
	}

	binder.Name = strings.TrimSpace(name)
	binder.Description = description
	updated, err := s.binders.UpdateBinder(ctx, binder)
	if err != nil {
		return nil, storage.DomainError(err)
	}
	return updated, nil
}

// AddChat puts one of the owner's chats into one of the owner's binders.
// Adding a chat twice returns the original association.
func (s *Service) AddChat(ctx context.Context, owner, binderID, chatID string) (*core.BinderChat, error) {
	if err := s.validateRefs(owner, binderID, chatID); err != nil {
		return nil, err
	}
	assoc, created, err := s.binders.AddChat(ctx, owner, binderID, chatID)
	if err != nil {
		return nil, storage.DomainError(err)
	}
	s.logger.Debug("chat added to binder", "binder_id", binderID, "chat_id", chatID, "created", created)
	return assoc, nil
}

// RemoveChat takes a chat out of a binder. The chat itself is kept.
func (s *Service) RemoveChat(ctx context.Context, owner, binderID, chatID string) error {
	if err := s.validateRefs(owner, binderID, chatID); err != nil {
		return err
	}
	if err := s.binders.RemoveChat(ctx, owner, binderID, chatID); err != nil {
		return storage.DomainError(err)
	}
	return nil
}

// Delete removes a binder and its merge history. Its chats are kept.
func (s *Service) Delete(ctx context.Context, owner, binderID string) error {
	if err := core.ValidateOwner(owner); err != nil {
		return err
	}
	if err := core.ValidateID("binder id", binderID); err != nil {
		return err
	}
	if err := s.binders.DeleteBinder(ctx, owner, binderID); err != nil {
		return storage.DomainError(err)
	}
	s.logger.Info("binder deleted", "binder_id", binderID)
	return nil
}

// Merge synthesizes the binder's chats into one document.
// Synthesis failures fall back to the raw content and are not reported as errors.
func (s *Service) Merge(ctx context.Context, owner, binderID string) (*merge.Result, error) {
	contents, err := s.Get(ctx, owner, binderID)
	if err != nil {
		return nil, err
	}
	return s.merger.Merge(ctx, contents)
}

// History returns the binder's merged documents, oldest first.
func (s *Service) History(ctx context.Context, owner, binderID string) ([]*core.MergedDocument, error) {
	binder, err := s.owned(ctx, owner, binderID)
	if err != nil {
		return nil, err
	}
	docs, err := s.binders.ListMergedDocuments(ctx, binder.ID)
	if err != nil {
		return nil, storage.DomainError(err)
	}
	return docs, nil
}

func (s *Service) owned(ctx context.Context, owner, binderID string) (*core.Binder, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return nil, err
	}
	if err := core.ValidateID("binder id", binderID); err != nil {
		return nil, err
	}
	binder, err := s.binders.GetBinder(ctx, owner, binderID)
	if err != nil {
		return nil, fmt.Errorf("binder %s: %w", binderID, storage.DomainError(err))
	}
	return binder, nil
}

func (s *Service) validateRefs(owner, binderID, chatID string) error {
	if err := core.ValidateOwner(owner); err != nil {
		return err
	}
	if err := core.ValidateID("binder id", binderID); err != nil {
		return err
	}
	return core.ValidateID("chat id", chatID)
}
