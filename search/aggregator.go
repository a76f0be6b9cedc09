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

package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
)

// DefaultLimit caps each result group.
const DefaultLimit = 10

// ResultType tags a search result.
type ResultType string

const (
	ResultTypeBinder  ResultType = "binder"
	ResultTypeContent ResultType = "content"
)

// Result is one search hit. Binder hits carry only Binder. Content hits carry
// the chunk, its chat's display fields, and the chat's binder when it has one.
type Result struct {
	Type   ResultType        `json:"type"`
	Binder *core.Binder      `json:"binder,omitempty"`
	Chunk  *core.Chunk       `json:"chunk,omitempty"`
	Chat   *core.ChatSummary `json:"chat,omitempty"`
}

// Aggregator runs plain text search over an owner's binders and chunks.
type Aggregator struct {
	chatRepository   storage.ChatRepository
	binderRepository storage.BinderRepository
	limit            int
	logger           *slog.Logger
}

// Option is a functional option for configuring an Aggregator.
type Option func(*Aggregator) error

// WithLogger sets the logger for the aggregator.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// WithLimit caps the number of binder hits and of content hits.
func WithLimit(n int) Option {
	return func(a *Aggregator) error {
		if n < 1 {
			return fmt.Errorf("%w: limit must be positive", core.ErrValidation)
		}
		a.limit = n
		return nil
	}
}

// NewAggregator creates a new search aggregator.
func NewAggregator(
	chatRepository storage.ChatRepository,
	binderRepository storage.BinderRepository,
	opts ...Option,
) (*Aggregator, error) {
	if chatRepository == nil {
		return nil, ErrChatRepositoryRequired
	}
	if binderRepository == nil {
		return nil, ErrBinderRepositoryRequired
	}

	a := &Aggregator{
		chatRepository:   chatRepository,
		binderRepository: binderRepository,
		limit:            DefaultLimit,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "search")

	return a, nil
}

// Search matches query, ignoring case, against the owner's binder names and
// descriptions and against the content of the owner's chunks. Binder hits
// come first, then content hits, each in storage order and each capped.
func (a *Aggregator) Search(ctx context.Context, owner, query string) ([]*Result, error) {
	return a.SearchWithMonitor(ctx, owner, query, nil)
}

// SearchWithMonitor is Search reporting each stage to monitor.
func (a *Aggregator) SearchWithMonitor(ctx context.Context, owner, query string, monitor SearchMonitor) ([]*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := core.ValidateOwner(owner); err != nil {
		return nil, err
	}
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}

	monitor.Start(owner, query)

	binders, err := a.binderRepository.SearchBinders(ctx, owner, query, a.limit)
	if err != nil {
		a.logger.Error("binder search failed", "err", err)
		return nil, storage.DomainError(err)
	}
	monitor.AfterBinderSearch(binders)

	results := make([]*Result, 0, len(binders))
	for _, b := range binders {
		results = append(results, &Result{Type: ResultTypeBinder, Binder: b})
	}

	hasChats, err := a.chatRepository.HasChats(ctx, owner)
	if err != nil {
		a.logger.Error("chat lookup failed", "err", err)
		return nil, storage.DomainError(err)
	}
	if !hasChats {
		monitor.ContentSearchSkipped()
		monitor.Finish(results)
		return results, nil
	}

	hits, err := a.chatRepository.SearchChunks(ctx, owner, query, a.limit)
	if err != nil {
		a.logger.Error("content search failed", "err", err)
		return nil, storage.DomainError(err)
	}
	monitor.AfterContentSearch(hits)

	binderOf := make(map[string]*core.Binder)
	for _, hit := range hits {
		chatID := hit.Chunk.ChatID
		b, seen := binderOf[chatID]
		if !seen {
			b, err = a.binderRepository.FindBinderForChat(ctx, chatID)
			if err != nil {
				// enrichment only; the hit is still returned
				a.logger.Warn("binder lookup failed", "chat_id", chatID, "err", err)
				b = nil
			}
			binderOf[chatID] = b
		}
		chat := hit.Chat
		results = append(results, &Result{
			Type:   ResultTypeContent,
			Binder: b,
			Chunk:  hit.Chunk,
			Chat:   &chat,
		})
	}

	a.logger.Debug("search complete", "binders", len(binders), "content", len(hits))
	monitor.Finish(results)
	return results, nil
}
