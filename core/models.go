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

package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for a persisted entity.
func NewID() string {
	return uuid.NewString()
}

// DigestFromContent returns a short deterministic hex digest of text using BLAKE2b.
// Identical content always yields the same digest.
func DigestFromContent(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source identifies the assistant product a conversation was exported from.
type Source string

const (
	SourceChatGPT Source = "chatgpt"
	SourceClaude  Source = "claude"
	SourceGemini  Source = "gemini"
)

// DefaultSource is applied when an ingestion request does not name a source.
const DefaultSource = SourceChatGPT

// DefaultChatTitle is applied when an ingestion request does not carry a title.
const DefaultChatTitle = "Untitled Chat"

// Message is a single turn of an exported conversation.
// Messages are input only and are never stored directly.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Chat is one ingested conversation. It is never mutated after creation.
type Chat struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Source       Source    `json:"source"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Chunk is a message-aligned slice of a chat's text.
// Index is zero-based and contiguous within a chat.
type Chunk struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Content   string    `json:"content"`
	Index     int       `json:"chunk_index"`
	CreatedAt time.Time `json:"created_at"`
}

// Embedding is the vector generated for a single chunk. At most one exists per chunk.
type Embedding struct {
	ChunkID       string    `json:"chunk_id"`
	Vector        []float32 `json:"vector"`
	Model         string    `json:"model,omitempty"`
	ContentDigest string    `json:"content_digest,omitempty"` // digest of the embedded chunk text
	CreatedAt     time.Time `json:"created_at"`
}

// Binder is a named, owner-scoped collection of chats.
type Binder struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BinderChat associates a chat with a binder. The (BinderID, ChatID) pair is unique.
type BinderChat struct {
	BinderID string    `json:"binder_id"`
	ChatID   string    `json:"chat_id"`
	AddedAt  time.Time `json:"added_at"`
}

// MergedDocument is one entry in a binder's append-only merge history.
type MergedDocument struct {
	ID           string    `json:"id"`
	BinderID     string    `json:"binder_id"`
	Document     string    `json:"document"`
	Synthesized  bool      `json:"synthesized"`
	SourceDigest string    `json:"source_digest"` // digest of the assembled raw content
	GeneratedAt  time.Time `json:"generated_at"`
}

// ChatSummary is the display projection of a chat attached to search hits.
type ChatSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary projects a chat into its display fields.
func (c *Chat) Summary() ChatSummary {
	return ChatSummary{
		ID:        c.ID,
		Title:     c.Title,
		Source:    c.Source,
		CreatedAt: c.CreatedAt,
	}
}

// ChunkWithChatSummary is a chunk joined with the display fields of its chat.
type ChunkWithChatSummary struct {
	Chunk *Chunk      `json:"chunk"`
	Chat  ChatSummary `json:"chat"`
}

// ChatContents is a chat together with its chunks in chunk index order.
type ChatContents struct {
	Chat   *Chat    `json:"chat"`
	Chunks []*Chunk `json:"chunks"`
}

// BinderSummary is a binder with the number of chats it holds.
type BinderSummary struct {
	Binder    *Binder `json:"binder"`
	ChatCount int     `json:"chat_count"`
}

// BinderContents is a binder with its chats in association order.
type BinderContents struct {
	Binder *Binder         `json:"binder"`
	Chats  []*ChatContents `json:"chats"`
}

// Checkpoint records how far a resumable background job has progressed.
type Checkpoint struct {
	Name      string    `json:"name"`
	Cursor    string    `json:"cursor"`
	UpdatedAt time.Time `json:"updated_at"`
}
