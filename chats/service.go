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

package chats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/ingestion"
	"github.com/poiesic/chatbinder/storage"
)

var (
	// ErrChatRepositoryRequired is returned when no chat repository is provided.
	ErrChatRepositoryRequired = errors.New("chat repository required")

	// ErrBinderRepositoryRequired is returned when no binder repository is provided.
	ErrBinderRepositoryRequired = errors.New("binder repository required")

	// ErrPipelineRequired is returned when no ingestion pipeline is provided.
	ErrPipelineRequired = errors.New("ingestion pipeline required")
)

// Service is an owner's chat library.
type Service struct {
	chats    storage.ChatRepository
	binders  storage.BinderRepository
	pipeline *ingestion.Pipeline
	logger   *slog.Logger
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

// NewService creates a chat service.
func NewService(chats storage.ChatRepository, binders storage.BinderRepository, pipeline *ingestion.Pipeline, opts ...Option) (*Service, error) {
	if chats == nil {
		return nil, ErrChatRepositoryRequired
	}
	if binders == nil {
		return nil, ErrBinderRepositoryRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}

	s := &Service{
		chats:    chats,
		binders:  binders,
		pipeline: pipeline,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chats")
	return s, nil
}

// Ingest stores a conversation. When binderID is set the new chat is also
// added to that binder; if that fails the chat is returned together with the error.
func (s *Service) Ingest(ctx context.Context, owner string, req ingestion.IngestRequest, binderID string) (*core.Chat, error) {
	chat, err := s.pipeline.Ingest(ctx, owner, req)
	if err != nil {
		return nil, err
	}
	if binderID == "" {
		return chat, nil
	}

	if _, _, err := s.binders.AddChat(ctx, owner, binderID, chat.ID); err != nil {
		s.logger.Error("failed to file chat", "chat_id", chat.ID, "binder_id", binderID, "err", err)
		return chat, fmt.Errorf("adding chat to binder %s: %w", binderID, storage.DomainError(err))
	}
	return chat, nil
}

// Get returns one of the owner's chats with its chunks in index order.
func (s *Service) Get(ctx context.Context, owner, chatID string) (*core.ChatContents, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return nil, err
	}
	if err := core.ValidateID("chat id", chatID); err != nil {
		return nil, err
	}

	chat, err := s.chats.GetChat(ctx, owner, chatID)
	if err != nil {
		return nil, fmt.Errorf("chat %s: %w", chatID, storage.DomainError(err))
	}
	chunks, err := s.chats.GetChunks(ctx, chat.ID)
	if err != nil {
		return nil, storage.DomainError(err)
	}
	return &core.ChatContents{Chat: chat, Chunks: chunks}, nil
}

// List returns the owner's chats, newest first.
func (s *Service) List(ctx context.Context, owner string) ([]*core.Chat, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return nil, err
	}
	chats, err := s.chats.ListChats(ctx, owner)
	if err != nil {
		return nil, storage.DomainError(err)
	}
	return chats, nil
}

// Delete removes one of the owner's chats with its chunks, embeddings and
// binder memberships.
func (s *Service) Delete(ctx context.Context, owner, chatID string) error {
	if err := core.ValidateOwner(owner); err != nil {
		return err
	}
	if err := core.ValidateID("chat id", chatID); err != nil {
		return err
	}
	if err := s.chats.DeleteChat(ctx, owner, chatID); err != nil {
		return fmt.Errorf("chat %s: %w", chatID, storage.DomainError(err))
	}
	s.logger.Info("chat deleted", "chat_id", chatID)
	return nil
}
