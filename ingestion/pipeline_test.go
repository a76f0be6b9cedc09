package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/chatbinder/ai"
	"github.com/poiesic/chatbinder/ai/mock"
	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
	"github.com/poiesic/chatbinder/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyChatRepository injects failures into selected repository calls.
type faultyChatRepository struct {
	storage.ChatRepository
	failCreate     bool
	failChunkAt    map[int]bool // by call number, zero-based
	failEmbeddings bool
	chunkCalls     atomic.Int32
}

func (r *faultyChatRepository) CreateChat(ctx context.Context, chat *core.Chat) (*core.Chat, error) {
	if r.failCreate {
		return nil, errors.New("disk full")
	}
	return r.ChatRepository.CreateChat(ctx, chat)
}

func (r *faultyChatRepository) AddChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error) {
	call := int(r.chunkCalls.Add(1)) - 1
	if r.failChunkAt[call] {
		return nil, errors.New("write failed")
	}
	return r.ChatRepository.AddChunk(ctx, chunk)
}

func (r *faultyChatRepository) AddEmbedding(ctx context.Context, embedding *core.Embedding) error {
	if r.failEmbeddings {
		return errors.New("write failed")
	}
	return r.ChatRepository.AddEmbedding(ctx, embedding)
}

func setupTestRepository(t *testing.T) storage.ChatRepository {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos.Chats
}

func newTestPipeline(t *testing.T, repo storage.ChatRepository, embedder *mock.MockEmbedder, opts ...Option) *Pipeline {
	provider := mock.NewMockProviderWithServices(embedder, nil)
	opts = append([]Option{WithEmbeddingDimensions(embedder.Dimensions())}, opts...)
	p, err := NewPipeline(repo, provider, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

// messages returns n messages whose formatted size is about size characters each.
func messages(n, size int) []core.Message {
	out := make([]core.Message, n)
	for i := range out {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		prefix := fmt.Sprintf("m%d ", i)
		out[i] = core.Message{Role: role, Content: prefix + strings.Repeat("x", size-len(prefix))}
	}
	return out
}

func TestNewPipeline_Validation(t *testing.T) {
	repo := setupTestRepository(t)

	_, err := NewPipeline(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrChatRepositoryRequired)

	_, err = NewPipeline(repo, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}

func TestPipeline_Ingest(t *testing.T) {
	repo := setupTestRepository(t)
	embedder := mock.NewMockEmbedder()
	p := newTestPipeline(t, repo, embedder, WithMaxChunkSize(100))
	ctx := context.Background()

	msgs := messages(6, 30)
	report, err := p.IngestWithReport(ctx, "alice", IngestRequest{
		Title:    "Rome trip",
		URL:      "https://chat.example/1",
		Source:   "claude",
		Messages: msgs,
	})
	require.NoError(t, err)

	chat := report.Chat
	assert.NotEmpty(t, chat.ID)
	assert.Equal(t, "alice", chat.Owner)
	assert.Equal(t, "Rome trip", chat.Title)
	assert.Equal(t, core.SourceClaude, chat.Source)
	assert.Equal(t, 6, chat.MessageCount)

	chunks, err := repo.GetChunks(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.NotEmpty(t, c.Content)

		emb, err := repo.GetEmbedding(ctx, c.ID)
		require.NoError(t, err)
		assert.Len(t, emb.Vector, mock.DefaultDimensions)
		assert.Equal(t, core.DigestFromContent(c.Content), emb.ContentDigest)
	}

	assert.Equal(t, 3, report.ChunksPersisted())
	assert.Equal(t, 3, report.EmbeddingsPersisted())
	assert.Equal(t, 3, embedder.CallCount())
}

func TestPipeline_IngestDefaults(t *testing.T) {
	repo := setupTestRepository(t)
	p := newTestPipeline(t, repo, mock.NewMockEmbedder())

	chat, err := p.Ingest(context.Background(), "alice", IngestRequest{
		Title:    "   ",
		Messages: messages(1, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultChatTitle, chat.Title)
	assert.Equal(t, core.SourceChatGPT, chat.Source)
	assert.Empty(t, chat.URL)
}

func TestPipeline_IngestValidation(t *testing.T) {
	repo := setupTestRepository(t)
	embedder := mock.NewMockEmbedder()
	p := newTestPipeline(t, repo, embedder)
	ctx := context.Background()

	tests := []struct {
		name  string
		owner string
		req   IngestRequest
	}{
		{"no messages", "alice", IngestRequest{}},
		{"blank owner", " ", IngestRequest{Messages: messages(1, 10)}},
		{"bad role", "alice", IngestRequest{Messages: []core.Message{{Role: "system", Content: "x"}}}},
		{"empty content", "alice", IngestRequest{Messages: []core.Message{{Role: core.RoleUser}}}},
		{"bad source", "alice", IngestRequest{Source: "bard", Messages: messages(1, 10)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Ingest(ctx, tt.owner, tt.req)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}

	chats, err := repo.ListChats(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, chats)
	assert.Zero(t, embedder.CallCount())
}

func TestPipeline_EmbeddingAlwaysFails(t *testing.T) {
	repo := setupTestRepository(t)
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(context.Context, string) ([]float32, error) {
		return nil, fmt.Errorf("%w: quota exceeded", core.ErrEmbeddingUnavailable)
	})
	p := newTestPipeline(t, repo, embedder, WithMaxChunkSize(100))
	ctx := context.Background()

	report, err := p.IngestWithReport(ctx, "alice", IngestRequest{Messages: messages(6, 30)})
	require.NoError(t, err)
	require.NotNil(t, report.Chat)

	chunks, err := repo.GetChunks(ctx, report.Chat.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 3)

	count, err := repo.CountEmbeddings(ctx, report.Chat.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	for _, o := range report.Outcomes {
		assert.Equal(t, OutcomeEmbeddingUnavailable, o.Kind)
		assert.ErrorIs(t, o.Err, core.ErrExternalService)
	}
}

func TestPipeline_EmbeddingTimeout(t *testing.T) {
	repo := setupTestRepository(t)
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, _ string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	p := newTestPipeline(t, repo, embedder, WithEmbeddingTimeout(20*time.Millisecond))

	report, err := p.IngestWithReport(context.Background(), "alice", IngestRequest{Messages: messages(1, 10)})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, OutcomeEmbeddingUnavailable, report.Outcomes[0].Kind)
	assert.ErrorIs(t, report.Outcomes[0].Err, context.DeadlineExceeded)
	assert.Equal(t, 1, report.ChunksPersisted())
}

func TestPipeline_RejectsBadVectors(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{"zero vector", make([]float32, mock.DefaultDimensions)},
		{"wrong width", []float32{0.5, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupTestRepository(t)
			embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(context.Context, string) ([]float32, error) {
				return tt.vector, nil
			})
			p := newTestPipeline(t, repo, embedder)

			report, err := p.IngestWithReport(context.Background(), "alice", IngestRequest{Messages: messages(1, 10)})
			require.NoError(t, err)
			assert.Equal(t, OutcomeEmbeddingRejected, report.Outcomes[0].Kind)
			assert.ErrorIs(t, report.Outcomes[0].Err, ai.ErrInvalidVector)
			assert.Zero(t, report.EmbeddingsPersisted())
		})
	}
}

func TestPipeline_ChunkWriteFailureSkipsChunk(t *testing.T) {
	repo := &faultyChatRepository{
		ChatRepository: setupTestRepository(t),
		failChunkAt:    map[int]bool{1: true},
	}
	p := newTestPipeline(t, repo, mock.NewMockEmbedder(), WithMaxChunkSize(100))
	ctx := context.Background()

	msgs := messages(6, 30)
	report, err := p.IngestWithReport(ctx, "alice", IngestRequest{Messages: msgs})
	require.NoError(t, err)

	assert.Equal(t, OutcomeChunkNotStored, report.Outcomes[1].Kind)
	assert.Nil(t, report.Outcomes[1].Chunk)
	assert.Equal(t, 2, report.ChunksPersisted())
	assert.Equal(t, 2, report.EmbeddingsPersisted())

	// indexes stay contiguous across the skipped chunk
	chunks, err := repo.GetChunks(ctx, report.Chat.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Contains(t, chunks[0].Content, "m0 ")
	assert.Contains(t, chunks[1].Content, "m4 ")
}

func TestPipeline_EmbeddingWriteFailureIsSwallowed(t *testing.T) {
	repo := &faultyChatRepository{
		ChatRepository: setupTestRepository(t),
		failEmbeddings: true,
	}
	p := newTestPipeline(t, repo, mock.NewMockEmbedder())

	report, err := p.IngestWithReport(context.Background(), "alice", IngestRequest{Messages: messages(2, 10)})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, OutcomeEmbeddingNotStored, report.Outcomes[0].Kind)
	assert.Equal(t, 1, report.ChunksPersisted())
}

func TestPipeline_ChatCreateFailureAborts(t *testing.T) {
	repo := &faultyChatRepository{
		ChatRepository: setupTestRepository(t),
		failCreate:     true,
	}
	embedder := mock.NewMockEmbedder()
	p := newTestPipeline(t, repo, embedder)

	_, err := p.Ingest(context.Background(), "alice", IngestRequest{Messages: messages(2, 10)})
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.Zero(t, repo.chunkCalls.Load())
	assert.Zero(t, embedder.CallCount())
}

func TestPipeline_OversizedMessageKeptIntact(t *testing.T) {
	repo := setupTestRepository(t)
	p := newTestPipeline(t, repo, mock.NewMockEmbedder(), WithMaxChunkSize(50))
	ctx := context.Background()

	big := core.Message{Role: core.RoleUser, Content: strings.Repeat("y", 200)}
	chat, err := p.Ingest(ctx, "alice", IngestRequest{Messages: []core.Message{
		{Role: core.RoleUser, Content: "hi"},
		big,
		{Role: core.RoleAssistant, Content: "ok"},
	}})
	require.NoError(t, err)

	chunks, err := repo.GetChunks(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "user: "+big.Content+"\n\n", chunks[1].Content)
}

func TestPipeline_ConcurrentEmbedding(t *testing.T) {
	repo := setupTestRepository(t)
	p := newTestPipeline(t, repo, mock.NewMockEmbedder(), WithMaxChunkSize(60), WithPoolSize(4))
	ctx := context.Background()

	report, err := p.IngestWithReport(ctx, "alice", IngestRequest{Messages: messages(20, 50)})
	require.NoError(t, err)
	assert.Equal(t, 20, report.ChunksPersisted())
	assert.Equal(t, 20, report.EmbeddingsPersisted())

	chunks, err := repo.GetChunks(ctx, report.Chat.ID)
	require.NoError(t, err)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Contains(t, c.Content, fmt.Sprintf("m%d ", i))
	}
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "embedded", OutcomeEmbedded.String())
	assert.Equal(t, "chunk_not_stored", OutcomeChunkNotStored.String())
	assert.Equal(t, "unknown", OutcomeKind(99).String())
}
