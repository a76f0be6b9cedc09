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

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/chatbinder/ai"
	"github.com/poiesic/chatbinder/chunker"
	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
)

const (
	// DefaultPoolSize keeps one embedding call in flight per pipeline.
	DefaultPoolSize = 1

	// DefaultEmbeddingTimeout bounds a single embedding call.
	DefaultEmbeddingTimeout = 20 * time.Second
)

// Pipeline turns an exported conversation into a stored chat, its chunks,
// and (best effort) one embedding per chunk.
type Pipeline struct {
	chatRepository storage.ChatRepository
	embeddingPool  *ants.Pool
	embeddingProc  *embeddingProcessor
	maxChunkSize   int
	chunkOverlap   int
	logger         *slog.Logger

	// applied to embeddingProc once options are processed
	embeddingTimeout    time.Duration
	embeddingModel      string
	embeddingDimensions int
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets how many embedding calls may run concurrently.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		embeddingPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = embeddingPool
		return nil
	}
}

// WithLogger sets the logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithMaxChunkSize sets the soft chunk size limit in characters.
func WithMaxChunkSize(n int) Option {
	return func(p *Pipeline) error {
		p.maxChunkSize = n
		return nil
	}
}

// WithChunkOverlap enables overlapping chunks. Zero disables overlap.
func WithChunkOverlap(n int) Option {
	return func(p *Pipeline) error {
		p.chunkOverlap = n
		return nil
	}
}

// WithEmbeddingTimeout bounds each embedding call.
func WithEmbeddingTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d > 0 {
			p.embeddingTimeout = d
		}
		return nil
	}
}

// WithEmbeddingModel records the model name on stored embeddings.
func WithEmbeddingModel(model string) Option {
	return func(p *Pipeline) error {
		p.embeddingModel = model
		return nil
	}
}

// WithEmbeddingDimensions sets the required vector width. Zero accepts any width.
func WithEmbeddingDimensions(dims int) Option {
	return func(p *Pipeline) error {
		p.embeddingDimensions = dims
		return nil
	}
}

// WithAIConfig applies the embedding settings of an AI configuration.
func WithAIConfig(cfg *ai.Config) Option {
	return func(p *Pipeline) error {
		if cfg == nil {
			return nil
		}
		p.embeddingModel = cfg.EmbeddingModel
		p.embeddingDimensions = cfg.EmbeddingDimensions
		if cfg.EmbeddingTimeout > 0 {
			p.embeddingTimeout = cfg.EmbeddingTimeout
		}
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
// Call Release when done to free the worker pool.
func NewPipeline(
	chatRepository storage.ChatRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if chatRepository == nil {
		return nil, ErrChatRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	embeddingPool, err := ants.NewPool(DefaultPoolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		chatRepository:   chatRepository,
		embeddingPool:    embeddingPool,
		maxChunkSize:     chunker.DefaultMaxSize,
		logger:           slog.Default(),
		embeddingTimeout: DefaultEmbeddingTimeout,
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	embeddingProc, err := newEmbeddingProcessor(chatRepository, provider.Embedder(), p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	embeddingProc.timeout = p.embeddingTimeout
	embeddingProc.model = p.embeddingModel
	embeddingProc.dimensions = p.embeddingDimensions
	p.embeddingProc = embeddingProc

	return p, nil
}

// IngestRequest is one exported conversation.
type IngestRequest struct {
	Title    string         `json:"title"`
	URL      string         `json:"url"`
	Source   string         `json:"source"`
	Messages []core.Message `json:"messages"`
}

// Ingest stores a conversation and returns the created chat.
// Only validation and chat creation can fail the call; chunk and embedding
// failures are logged and leave the chat partially indexed.
func (p *Pipeline) Ingest(ctx context.Context, owner string, req IngestRequest) (*core.Chat, error) {
	report, err := p.IngestWithReport(ctx, owner, req)
	if err != nil {
		return nil, err
	}
	return report.Chat, nil
}

// IngestWithReport is Ingest returning the per-chunk outcomes as well.
func (p *Pipeline) IngestWithReport(ctx context.Context, owner string, req IngestRequest) (*Report, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return nil, err
	}
	if err := core.ValidateMessages(req.Messages); err != nil {
		return nil, err
	}
	source, err := core.ParseSource(req.Source)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = core.DefaultChatTitle
	}

	chat, err := p.chatRepository.CreateChat(ctx, &core.Chat{
		Owner:        owner,
		Title:        title,
		URL:          req.URL,
		Source:       source,
		MessageCount: len(req.Messages),
	})
	if err != nil {
		p.logger.Error("failed to create chat", "owner", owner, "err", err)
		return nil, fmt.Errorf("%w: creating chat: %w", core.ErrStorage, err)
	}

	texts := chunker.Chunk(req.Messages,
		chunker.WithMaxSize(p.maxChunkSize),
		chunker.WithOverlap(p.chunkOverlap))

	report := &Report{Chat: chat, Outcomes: make([]ChunkOutcome, len(texts))}
	var wg sync.WaitGroup

	// Chunks are stored strictly in order so indexes stay contiguous even when
	// a write fails. Embedding attempts run on the pool as each chunk lands.
	next := 0
	for pos, text := range texts {
		chunk, err := p.chatRepository.AddChunk(ctx, &core.Chunk{
			ChatID:  chat.ID,
			Content: text,
			Index:   next,
		})
		if err != nil {
			p.logger.Error("failed to store chunk, skipping", "chat_id", chat.ID, "position", pos, "err", err)
			report.Outcomes[pos] = ChunkOutcome{Position: pos, Kind: OutcomeChunkNotStored, Err: err}
			continue
		}
		next++

		wg.Add(1)
		submitErr := p.embeddingPool.Submit(func() {
			defer wg.Done()
			report.Outcomes[pos] = p.embeddingProc.process(ctx, pos, chunk)
		})
		if submitErr != nil {
			wg.Done()
			p.logger.Error("failed to schedule embedding", "chat_id", chat.ID, "chunk_index", chunk.Index, "err", submitErr)
			report.Outcomes[pos] = ChunkOutcome{Position: pos, Chunk: chunk, Kind: OutcomeEmbeddingUnavailable, Err: submitErr}
		}
	}
	wg.Wait()

	p.logger.Info("ingested chat",
		"chat_id", chat.ID,
		"messages", chat.MessageCount,
		"chunks", report.ChunksPersisted(),
		"embeddings", report.EmbeddingsPersisted())

	return report, nil
}

// Release frees the pipeline's worker pool.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
