package storage

import (
	"testing"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/poiesic/chatbinder/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalChunk(t *testing.T) {
	chunk := &core.Chunk{
		ID:        "k1",
		ChatID:    "c1",
		Content:   "user: hello\n\n",
		Index:     3,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	data := Marshal(ChunkMUS, chunk)

	decoded, err := Unmarshal(ChunkMUS, data)
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestMarshalUnmarshalChat(t *testing.T) {
	chat := &core.Chat{
		ID:           "c1",
		Owner:        "alice",
		Title:        "Trip Plans",
		URL:          "https://example.com/c/1",
		Source:       core.SourceChatGPT,
		MessageCount: 12,
		CreatedAt:    time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	}

	decoded, err := Unmarshal(ChatMUS, Marshal(ChatMUS, chat))
	require.NoError(t, err)
	assert.Equal(t, chat, decoded)
}

func TestMarshalUnmarshalEmbedding(t *testing.T) {
	emb := &core.Embedding{
		ChunkID:       "k1",
		Vector:        []float32{0.25, -1.5, 3.125, 0},
		Model:         "text-embedding-3-small",
		ContentDigest: "abc123",
		CreatedAt:     time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	}

	decoded, err := Unmarshal(EmbeddingMUS, Marshal(EmbeddingMUS, emb))
	require.NoError(t, err)
	assert.Equal(t, emb, decoded)
}

func TestMarshalUnmarshalMergedDocument(t *testing.T) {
	doc := &core.MergedDocument{
		ID:           "m1",
		BinderID:     "b1",
		Document:     "# Trip\n\n## Chat: Rome\n",
		Synthesized:  true,
		SourceDigest: "digest",
		GeneratedAt:  time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
	}

	decoded, err := Unmarshal(MergedDocumentMUS, Marshal(MergedDocumentMUS, doc))
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestMarshalUnmarshal_ZeroTime(t *testing.T) {
	cp := &core.Checkpoint{Name: "embedding-backfill", Cursor: "k9"}

	decoded, err := Unmarshal(CheckpointMUS, Marshal(CheckpointMUS, cp))
	require.NoError(t, err)
	assert.True(t, decoded.UpdatedAt.IsZero())
	assert.Equal(t, "k9", decoded.Cursor)
}

func TestUnmarshal_Invalid(t *testing.T) {
	valid := Marshal(ChatMUS, &core.Chat{ID: "c1", Owner: "alice", Title: "Trip Plans"})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated", valid[:len(valid)/2]},
		{"trailing bytes", append(append([]byte{}, valid...), 0x01, 0x02)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(ChatMUS, tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestUnmarshal_VectorLengthOutOfRange(t *testing.T) {
	data := Marshal(EmbeddingMUS, &core.Embedding{ChunkID: "k1", Vector: []float32{1, 2}})
	// Drop the vector payload so the declared length exceeds the remaining bytes.
	idLen := ord.String.Size("k1")
	_, err := Unmarshal(EmbeddingMUS, data[:idLen+1])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Book flights to Rome", "FLIGHTS"))
	assert.True(t, ContainsFold("Trip Plans", "trip"))
	assert.True(t, ContainsFold("ÉCOLE", "école"))
	assert.False(t, ContainsFold("Work Notes", "flights"))
}
