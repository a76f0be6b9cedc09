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

import "github.com/poiesic/chatbinder/core"

// OutcomeKind classifies what happened to one chunk during ingestion.
type OutcomeKind int

const (
	// OutcomeEmbedded means the chunk and its embedding were both stored.
	OutcomeEmbedded OutcomeKind = iota
	// OutcomeChunkNotStored means the chunk row could not be persisted. The chunk was skipped.
	OutcomeChunkNotStored
	// OutcomeEmbeddingUnavailable means the embedding service failed or timed out.
	OutcomeEmbeddingUnavailable
	// OutcomeEmbeddingRejected means the service returned an unusable vector.
	OutcomeEmbeddingRejected
	// OutcomeEmbeddingNotStored means the embedding could not be persisted.
	OutcomeEmbeddingNotStored
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeEmbedded:
		return "embedded"
	case OutcomeChunkNotStored:
		return "chunk_not_stored"
	case OutcomeEmbeddingUnavailable:
		return "embedding_unavailable"
	case OutcomeEmbeddingRejected:
		return "embedding_rejected"
	case OutcomeEmbeddingNotStored:
		return "embedding_not_stored"
	default:
		return "unknown"
	}
}

// ChunkOutcome is the result of processing one chunk produced by the chunker.
type ChunkOutcome struct {
	// Position is the chunk's position in the chunker output.
	Position int
	// Chunk is the persisted chunk, nil when Kind is OutcomeChunkNotStored.
	Chunk *core.Chunk
	Kind  OutcomeKind
	Err   error
}

// Report describes a completed ingestion.
type Report struct {
	Chat     *core.Chat
	Outcomes []ChunkOutcome
}

// ChunksPersisted returns how many chunks were stored.
func (r *Report) ChunksPersisted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind != OutcomeChunkNotStored {
			n++
		}
	}
	return n
}

// EmbeddingsPersisted returns how many chunks received a stored embedding.
func (r *Report) EmbeddingsPersisted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == OutcomeEmbedded {
			n++
		}
	}
	return n
}
