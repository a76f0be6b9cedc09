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

package chatbinder

import (
	"io"
	"log/slog"

	"github.com/poiesic/chatbinder/ai"
	"github.com/poiesic/chatbinder/ai/openai"
	"github.com/poiesic/chatbinder/backfill"
	"github.com/poiesic/chatbinder/binder"
	"github.com/poiesic/chatbinder/chats"
	"github.com/poiesic/chatbinder/ingestion"
	"github.com/poiesic/chatbinder/merge"
	"github.com/poiesic/chatbinder/search"
	"github.com/poiesic/chatbinder/storage"
	"github.com/poiesic/chatbinder/storage/badger"
)

// Database wires the store, the AI provider and the services built on them.
type Database struct {
	repos    *badger.Repositories
	provider ai.AIProvider
	aiConfig *ai.Config
	pipeline *ingestion.Pipeline
	chats    *chats.Service
	binders  *binder.Service
	search   *search.Aggregator
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	inMemory bool
	logger   *slog.Logger
	poolSize int
}

// WithAIConfig sets the embedding and synthesis service configuration.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithAIProvider uses provider instead of connecting to the configured services.
// The Database takes ownership and closes it.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps all data in memory. The path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger handed to every service.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// WithEmbeddingPoolSize sets how many embedding attempts run at once during ingestion.
func WithEmbeddingPoolSize(size int) DatabaseOption {
	return func(o *databaseOptions) {
		o.poolSize = size
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
		poolSize: ingestion.DefaultPoolSize,
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	repos, err := badger.OpenRepositories(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repos.Close()
			return nil, err
		}
	}

	db := &Database{
		repos:    repos,
		provider: provider,
		aiConfig: options.aiConfig,
		logger:   logger,
	}
	if err := db.wire(options); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (db *Database) wire(options *databaseOptions) error {
	var err error
	db.pipeline, err = ingestion.NewPipeline(db.repos.Chats, db.provider,
		ingestion.WithAIConfig(options.aiConfig),
		ingestion.WithPoolSize(options.poolSize),
		ingestion.WithLogger(db.logger),
	)
	if err != nil {
		return err
	}

	merger, err := merge.NewMerger(db.repos.Binders, db.provider.Synthesizer(),
		merge.WithSynthesisTimeout(options.aiConfig.SynthesisTimeout),
		merge.WithLogger(db.logger),
	)
	if err != nil {
		return err
	}

	db.binders, err = binder.NewService(db.repos.Binders, db.repos.Chats, merger, binder.WithLogger(db.logger))
	if err != nil {
		return err
	}

	db.chats, err = chats.NewService(db.repos.Chats, db.repos.Binders, db.pipeline, chats.WithLogger(db.logger))
	if err != nil {
		return err
	}

	db.search, err = search.NewAggregator(db.repos.Chats, db.repos.Binders, search.WithLogger(db.logger))
	return err
}

// Close waits for pending embedding work, then closes the provider and the store.
func (db *Database) Close() error {
	if db.pipeline != nil {
		db.pipeline.Release()
	}

	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.repos.Close(); err != nil {
		db.logger.Error("error closing storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) Chats() *chats.Service {
	return db.chats
}

func (db *Database) Binders() *binder.Service {
	return db.binders
}

func (db *Database) Search() *search.Aggregator {
	return db.search
}

func (db *Database) Pipeline() *ingestion.Pipeline {
	return db.pipeline
}

func (db *Database) ChatRepository() storage.ChatRepository {
	return db.repos.Chats
}

func (db *Database) BinderRepository() storage.BinderRepository {
	return db.repos.Binders
}

func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.repos.Checkpoints
}

// NewBackfiller creates a backfiller using the configured embedding model.
// A nil config derives one from the AI configuration.
func (db *Database) NewBackfiller(config *backfill.Config, progress io.Writer) (*backfill.Backfiller, error) {
	if config == nil {
		config = backfill.ConfigFromAI(db.aiConfig)
	}
	return backfill.NewBackfiller(db.repos.Chats, db.repos.Checkpoints, db.provider.Embedder(), config, progress)
}
