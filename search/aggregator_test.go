package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
	"github.com/poiesic/chatbinder/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMonitor struct {
	noopMonitor
	skipped bool
	binders int
	hits    int
}

func (m *recordingMonitor) ContentSearchSkipped()                             { m.skipped = true }
func (m *recordingMonitor) AfterBinderSearch(b []*core.Binder)                { m.binders = len(b) }
func (m *recordingMonitor) AfterContentSearch(h []*core.ChunkWithChatSummary) { m.hits = len(h) }

type countingChatRepository struct {
	storage.ChatRepository
	searches int
}

func (r *countingChatRepository) SearchChunks(ctx context.Context, owner, query string, limit int) ([]*core.ChunkWithChatSummary, error) {
	r.searches++
	return r.ChatRepository.SearchChunks(ctx, owner, query, limit)
}

type failingLookupRepository struct {
	storage.BinderRepository
}

func (failingLookupRepository) FindBinderForChat(context.Context, string) (*core.Binder, error) {
	return nil, errors.New("lookup failed")
}

func setupRepositories(t *testing.T) *badger.Repositories {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func createChat(t *testing.T, repos *badger.Repositories, owner, title string, chunks ...string) *core.Chat {
	ctx := context.Background()
	chat, err := repos.Chats.CreateChat(ctx, &core.Chat{Owner: owner, Title: title, Source: core.SourceClaude})
	require.NoError(t, err)
	for i, text := range chunks {
		_, err := repos.Chats.AddChunk(ctx, &core.Chunk{ChatID: chat.ID, Index: i, Content: text})
		require.NoError(t, err)
	}
	return chat
}

func createBinder(t *testing.T, repos *badger.Repositories, owner, name, description string, chats ...*core.Chat) *core.Binder {
	ctx := context.Background()
	b, err := repos.Binders.CreateBinder(ctx, &core.Binder{Owner: owner, Name: name, Description: description})
	require.NoError(t, err)
	for _, c := range chats {
		_, _, err := repos.Binders.AddChat(ctx, owner, b.ID, c.ID)
		require.NoError(t, err)
	}
	return b
}

func TestNewAggregator(t *testing.T) {
	repos := setupRepositories(t)

	t.Run("valid configuration", func(t *testing.T) {
		a, err := NewAggregator(repos.Chats, repos.Binders)
		require.NoError(t, err)
		assert.Equal(t, DefaultLimit, a.limit)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		a, err := NewAggregator(repos.Chats, repos.Binders, WithLogger(nil), WithLimit(3))
		require.NoError(t, err)
		assert.Equal(t, 3, a.limit)
	})

	t.Run("with custom logger", func(t *testing.T) {
		_, err := NewAggregator(repos.Chats, repos.Binders, WithLogger(slog.Default()))
		require.NoError(t, err)
	})

	t.Run("invalid limit", func(t *testing.T) {
		_, err := NewAggregator(repos.Chats, repos.Binders, WithLimit(0))
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("nil chat repository", func(t *testing.T) {
		_, err := NewAggregator(nil, repos.Binders)
		assert.Equal(t, ErrChatRepositoryRequired, err)
	})

	t.Run("nil binder repository", func(t *testing.T) {
		_, err := NewAggregator(repos.Chats, nil)
		assert.Equal(t, ErrBinderRepositoryRequired, err)
	})
}

func TestSearch_OwnerIsolation(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	aliceChat := createChat(t, repos, "alice", "Rome", "user: book flights to Rome\n\n")
	trip := createBinder(t, repos, "alice", "Trip Plans", "", aliceChat)
	bobChat := createChat(t, repos, "bob", "Rome too", "user: book flights to Rome\n\n")
	createBinder(t, repos, "bob", "Work Notes", "flights budget", bobChat)

	a, err := NewAggregator(repos.Chats, repos.Binders)
	require.NoError(t, err)

	results, err := a.Search(ctx, "alice", "flights")
	require.NoError(t, err)
	require.Len(t, results, 1)

	hit := results[0]
	assert.Equal(t, ResultTypeContent, hit.Type)
	assert.Equal(t, aliceChat.ID, hit.Chunk.ChatID)
	require.NotNil(t, hit.Binder)
	assert.Equal(t, trip.ID, hit.Binder.ID)
	require.NotNil(t, hit.Chat)
	assert.Equal(t, "Rome", hit.Chat.Title)
	assert.Equal(t, core.SourceClaude, hit.Chat.Source)
	assert.False(t, hit.Chat.CreatedAt.IsZero())

	for _, r := range results {
		if r.Binder != nil {
			assert.Equal(t, "alice", r.Binder.Owner)
		}
	}
}

func TestSearch_BindersBeforeContent(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	chat := createChat(t, repos, "alice", "Notes", "user: the rome itinerary\n\n")
	createBinder(t, repos, "alice", "ROME 2024", "")
	createBinder(t, repos, "alice", "Other", "ideas for rome")
	createBinder(t, repos, "alice", "Unrelated", "")

	a, err := NewAggregator(repos.Chats, repos.Binders)
	require.NoError(t, err)

	results, err := a.Search(ctx, "alice", "Rome")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, ResultTypeBinder, results[0].Type)
	assert.Equal(t, "ROME 2024", results[0].Binder.Name)
	assert.Equal(t, ResultTypeBinder, results[1].Type)
	assert.Equal(t, "Other", results[1].Binder.Name)
	assert.Equal(t, ResultTypeContent, results[2].Type)
	assert.Equal(t, chat.ID, results[2].Chunk.ChatID)
	assert.Nil(t, results[2].Binder)
}

func TestSearch_QueryMatchedVerbatim(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	createChat(t, repos, "alice", "Notes", "user: the rome itinerary\n\n")
	createBinder(t, repos, "alice", "Rome", "")
	createBinder(t, repos, "alice", "Other", "ideas for rome")

	a, err := NewAggregator(repos.Chats, repos.Binders)
	require.NoError(t, err)

	// surrounding whitespace is part of the pattern
	results, err := a.Search(ctx, "alice", " rome")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, ResultTypeBinder, results[0].Type)
	assert.Equal(t, "Other", results[0].Binder.Name)
	assert.Equal(t, ResultTypeContent, results[1].Type)
}

func TestSearch_LimitsEachGroup(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		createBinder(t, repos, "alice", fmt.Sprintf("match %d", i), "")
	}
	chunks := make([]string, 15)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("user: match %d\n\n", i)
	}
	createChat(t, repos, "alice", "Many", chunks...)

	a, err := NewAggregator(repos.Chats, repos.Binders)
	require.NoError(t, err)

	results, err := a.Search(ctx, "alice", "MATCH")
	require.NoError(t, err)
	require.Len(t, results, 20)
	for i := 0; i < 10; i++ {
		assert.Equal(t, ResultTypeBinder, results[i].Type)
		assert.Equal(t, fmt.Sprintf("match %d", i), results[i].Binder.Name)
	}
	for i := 10; i < 20; i++ {
		assert.Equal(t, ResultTypeContent, results[i].Type)
		assert.Equal(t, i-10, results[i].Chunk.Index)
	}
}

func TestSearch_SkipsContentWithoutChats(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	createBinder(t, repos, "alice", "Rome", "")
	createChat(t, repos, "bob", "Bob", "user: rome\n\n")

	chats := &countingChatRepository{ChatRepository: repos.Chats}
	a, err := NewAggregator(chats, repos.Binders)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := a.SearchWithMonitor(ctx, "alice", "rome", monitor)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ResultTypeBinder, results[0].Type)
	assert.Zero(t, chats.searches)
	assert.True(t, monitor.skipped)
	assert.Equal(t, 1, monitor.binders)
}

func TestSearch_EnrichmentFailureKeepsHit(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	chat := createChat(t, repos, "alice", "Rome", "user: rome\n\n")
	createBinder(t, repos, "alice", "Trip", "", chat)

	a, err := NewAggregator(repos.Chats, failingLookupRepository{repos.Binders})
	require.NoError(t, err)

	results, err := a.Search(ctx, "alice", "rome")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Binder)
	assert.Equal(t, "Rome", results[0].Chat.Title)
}

func TestSearch_Validation(t *testing.T) {
	repos := setupRepositories(t)
	a, err := NewAggregator(repos.Chats, repos.Binders)
	require.NoError(t, err)

	_, err = a.Search(context.Background(), "alice", "   ")
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, core.ErrEmptyQuery)

	_, err = a.Search(context.Background(), "", "rome")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSearch_NoMatches(t *testing.T) {
	repos := setupRepositories(t)
	createChat(t, repos, "alice", "Chat", "user: hello\n\n")

	a, err := NewAggregator(repos.Chats, repos.Binders)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := a.SearchWithMonitor(context.Background(), "alice", "absent", monitor)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, monitor.skipped)
	assert.Zero(t, monitor.hits)
}
