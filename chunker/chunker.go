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

package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/chatbinder/core"
)

// DefaultMaxSize is the default soft chunk size in characters.
const DefaultMaxSize = 3000

type config struct {
	maxSize int
	overlap int
}

// Option configures chunking.
type Option func(*config)

// WithMaxSize sets the soft maximum chunk size in characters.
// Values below 1 fall back to DefaultMaxSize.
func WithMaxSize(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = DefaultMaxSize
		}
		c.maxSize = n
	}
}

// WithOverlap starts every chunk after the first with the trailing n characters
// of the previous chunk. Zero disables overlap, which is the default.
func WithOverlap(n int) Option {
	return func(c *config) {
		if n < 0 {
			n = 0
		}
		c.overlap = n
	}
}

// FormatMessage renders a message the way it appears inside a chunk.
func FormatMessage(m core.Message) string {
	return string(m.Role) + ": " + m.Content + "\n\n"
}

// Chunk splits messages into ordered chunk texts.
//
// Boundaries fall only between messages. Formatted messages accumulate greedily;
// when appending the next one would push a non-empty chunk past the maximum size,
// the chunk is closed first. A single message longer than the maximum gets a chunk
// of its own. An empty input yields exactly one empty chunk.
func Chunk(messages []core.Message, opts ...Option) []string {
	cfg := config{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0
	holdsMessage := false

	for _, m := range messages {
		formatted := FormatMessage(m)
		formattedLen := utf8.RuneCountInString(formatted)

		if holdsMessage && currentLen+formattedLen > cfg.maxSize {
			closed := current.String()
			chunks = append(chunks, closed)
			current.Reset()
			currentLen = 0
			holdsMessage = false

			if cfg.overlap > 0 {
				tail := lastRunes(closed, cfg.overlap)
				current.WriteString(tail)
				currentLen = utf8.RuneCountInString(tail)
			}
		}

		current.WriteString(formatted)
		currentLen += formattedLen
		holdsMessage = true
	}

	if holdsMessage || len(chunks) == 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// lastRunes returns the trailing n characters of s.
func lastRunes(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	skip := count - n
	for i := range s {
		if skip == 0 {
			return s[i:]
		}
		skip--
	}
	return ""
}
