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

package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/chatbinder/ai"
	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
)

const (
	// DefaultContextLimit is how many characters of assembled content are sent for synthesis.
	DefaultContextLimit = 8000

	// DefaultSynthesisTimeout bounds the synthesis call.
	DefaultSynthesisTimeout = 30 * time.Second

	// dateLayout renders chat creation dates in assembled content.
	dateLayout = "2006-01-02"
)

var (
	// ErrBinderRepositoryRequired is returned when no binder repository is provided.
	ErrBinderRepositoryRequired = errors.New("binder repository required")

	// ErrSynthesizerRequired is returned when no synthesizer is provided.
	ErrSynthesizerRequired = errors.New("synthesizer required")
)

// Result is a merged binder document.
type Result struct {
	Document string `json:"document"`
	// Synthesized is false when the document is the raw assembled content.
	Synthesized bool `json:"synthesized"`
	// Audit is the stored history entry, nil for empty binders or when the write failed.
	Audit *core.MergedDocument `json:"audit,omitempty"`
}

// Merger produces one document from a binder's conversations.
type Merger struct {
	binderRepository storage.BinderRepository
	synthesizer      ai.Synthesizer
	contextLimit     int
	timeout          time.Duration
	logger           *slog.Logger
}

// Option is a functional option for configuring a Merger.
type Option func(*Merger)

// WithLogger sets the logger for the merger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Merger) {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
	}
}

// WithContextLimit sets how many characters are sent to the synthesizer.
func WithContextLimit(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.contextLimit = n
		}
	}
}

// WithSynthesisTimeout bounds the synthesis call.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(m *Merger) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewMerger creates a merger that records every merge in binderRepository.
func NewMerger(binderRepository storage.BinderRepository, synthesizer ai.Synthesizer, opts ...Option) (*Merger, error) {
	if binderRepository == nil {
		return nil, ErrBinderRepositoryRequired
	}
	if synthesizer == nil {
		return nil, ErrSynthesizerRequired
	}

	m := &Merger{
		binderRepository: binderRepository,
		synthesizer:      synthesizer,
		contextLimit:     DefaultContextLimit,
		timeout:          DefaultSynthesisTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "merger")
	return m, nil
}

// Merge builds the binder's document. A binder without chats yields a
// placeholder and no synthesis call. Otherwise the assembled content is
// sent for synthesis; if that fails the raw content is returned instead.
// Either way the result is appended to the binder's merge history.
//
// The only error is a nil binder.
func (m *Merger) Merge(ctx context.Context, contents *core.BinderContents) (*Result, error) {
	if contents == nil || contents.Binder == nil {
		return nil, fmt.Errorf("%w: binder is required", core.ErrValidation)
	}
	binder := contents.Binder
	log := m.logger.With("binder_id", binder.ID)

	if !hasChats(contents) {
		log.Warn("no chats in binder")
		return &Result{Document: Placeholder(binder.Name)}, nil
	}

	raw := Assemble(contents)
	log.Info("merging binder", "chats", len(contents.Chats), "length", len(raw))

	result := &Result{Document: raw}
	document, err := m.synthesize(ctx, raw)
	if err != nil {
		log.Warn("synthesis failed, using raw content", "err", err)
	} else {
		result.Document = document
		result.Synthesized = true
	}

	audit, err := m.binderRepository.AddMergedDocument(ctx, &core.MergedDocument{
		BinderID:     binder.ID,
		Document:     result.Document,
		Synthesized:  result.Synthesized,
		SourceDigest: core.DigestFromContent(raw),
	})
	if err != nil {
		log.Error("failed to store merged document", "err", err)
	} else {
		result.Audit = audit
	}

	log.Info("binder merged", "synthesized", result.Synthesized)
	return result, nil
}

func (m *Merger) synthesize(ctx context.Context, raw string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	document, err := m.synthesizer.Synthesize(callCtx, systemPrompt, buildUserPrompt(Truncate(raw, m.contextLimit)))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(document) == "" {
		return "", fmt.Errorf("%w: empty document", core.ErrSynthesisUnavailable)
	}
	return document, nil
}

func hasChats(contents *core.BinderContents) bool {
	for _, c := range contents.Chats {
		if c != nil && c.Chat != nil {
			return true
		}
	}
	return false
}

// Placeholder is the document for a binder with no chats.
func Placeholder(name string) string {
	return "# " + name + "\n\nNo chats in this binder."
}

// Assemble concatenates a binder's chats in association order, each under a
// heading with its title, source and date, followed by its chunks in index order.
func Assemble(contents *core.BinderContents) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(contents.Binder.Name)
	b.WriteString("\n\n")

	for _, c := range contents.Chats {
		if c == nil || c.Chat == nil {
			continue
		}
		fmt.Fprintf(&b, "\n## Chat: %s\n", c.Chat.Title)
		fmt.Fprintf(&b, "**Source:** %s | **Date:** %s\n\n", c.Chat.Source, c.Chat.CreatedAt.UTC().Format(dateLayout))
		for _, chunk := range c.Chunks {
			b.WriteString(chunk.Content)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// Truncate returns at most limit characters of s, cut on a character boundary.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
