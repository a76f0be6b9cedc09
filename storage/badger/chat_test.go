package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepositories(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func createChat(t *testing.T, repo *ChatRepository, owner, title string, chunks ...string) *core.Chat {
	t.Helper()
	ctx := context.Background()
	chat, err := repo.CreateChat(ctx, &core.Chat{
		Owner:        owner,
		Title:        title,
		Source:       core.SourceChatGPT,
		MessageCount: len(chunks),
	})
	require.NoError(t, err)
	for i, content := range chunks {
		_, err := repo.AddChunk(ctx, &core.Chunk{ChatID: chat.ID, Index: i, Content: content})
		require.NoError(t, err)
	}
	return chat
}

func TestChatBasics(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	chat, err := repos.Chats.CreateChat(ctx, &core.Chat{
		Owner:        "alice",
		Title:        "Trip",
		URL:          "https://chat.example/1",
		Source:       core.SourceClaude,
		MessageCount: 2,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, chat.ID)
	assert.False(t, chat.CreatedAt.IsZero())

	got, err := repos.Chats.GetChat(ctx, "alice", chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip", got.Title)
	assert.Equal(t, core.SourceClaude, got.Source)
	assert.Equal(t, 2, got.MessageCount)
}

func TestGetChat_ForeignOwnerIsNotFound(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	chat := createChat(t, repos.Chats, "alice", "Private")

	_, err := repos.Chats.GetChat(ctx, "bob", chat.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repos.Chats.GetChat(ctx, "alice", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListChats_NewestFirstAndScoped(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	first := createChat(t, repos.Chats, "alice", "first")
	second := createChat(t, repos.Chats, "alice", "second")
	createChat(t, repos.Chats, "bob", "other")
	// an owner whose name is a prefix of another's must not see their chats
	createChat(t, repos.Chats, "alice2", "prefix")

	chats, err := repos.Chats.ListChats(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, second.ID, chats[0].ID)
	assert.Equal(t, first.ID, chats[1].ID)

	has, err := repos.Chats.HasChats(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = repos.Chats.HasChats(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestAddChunk_Uniqueness(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	chat := createChat(t, repos.Chats, "alice", "t", "zero")

	_, err := repos.Chats.AddChunk(ctx, &core.Chunk{ChatID: chat.ID, Index: 0, Content: "again"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = repos.Chats.AddChunk(ctx, &core.Chunk{ChatID: "missing", Index: 0, Content: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repos.Chats.AddChunk(ctx, &core.Chunk{ChatID: chat.ID, Index: 1, Content: ""})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestGetChunks_IndexOrder(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	chat := createChat(t, repos.Chats, "alice", "t")
	// insert out of order, including indexes that compare differently as strings
	for _, i := range []int{10, 2, 0, 1, 256} {
		_, err := repos.Chats.AddChunk(ctx, &core.Chunk{ChatID: chat.ID, Index: i, Content: fmt.Sprintf("chunk %d", i)})
		require.NoError(t, err)
	}

	chunks, err := repos.Chats.GetChunks(ctx, chat.ID)
	require.NoError(t, err)
	var indexes []int
	for _, c := range chunks {
		indexes = append(indexes, c.Index)
	}
	assert.Equal(t, []int{0, 1, 2, 10, 256}, indexes)
}

func TestAddChunk_ConcurrentSameIndex(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()
	chat := createChat(t, repos.Chats, "alice", "t")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repos.Chats.AddChunk(ctx, &core.Chunk{ChatID: chat.ID, Index: 0, Content: "x"}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	chunks, err := repos.Chats.GetChunks(ctx, chat.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestEmbeddings_InsertOnce(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	chat := createChat(t, repos.Chats, "alice", "t", "a", "b")
	chunks, err := repos.Chats.GetChunks(ctx, chat.ID)
	require.NoError(t, err)

	emb := &core.Embedding{ChunkID: chunks[0].ID, Vector: []float32{0.1, 0.2}, Model: "m"}
	require.NoError(t, repos.Chats.AddEmbedding(ctx, emb))
	assert.ErrorIs(t, repos.Chats.AddEmbedding(ctx, emb), storage.ErrDuplicateKey)
	assert.ErrorIs(t, repos.Chats.AddEmbedding(ctx, &core.Embedding{ChunkID: "nope", Vector: []float32{1}}), storage.ErrNotFound)

	got, err := repos.Chats.GetEmbedding(ctx, chunks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, got.Vector)

	_, err = repos.Chats.GetEmbedding(ctx, chunks[1].ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	count, err := repos.Chats.CountEmbeddings(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSearchChunks(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	a := createChat(t, repos.Chats, "alice", "Rome", "user: book FLIGHTS to Rome\n\n", "assistant: done\n\n")
	createChat(t, repos.Chats, "bob", "Rome too", "user: book flights to Rome\n\n")
	b := createChat(t, repos.Chats, "alice", "Paris", "user: flights to Paris\n\n")

	results, err := repos.Chats.SearchChunks(ctx, "alice", "flights", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, a.ID, results[0].Chat.ID)
	assert.Equal(t, "Rome", results[0].Chat.Title)
	assert.Equal(t, b.ID, results[1].Chat.ID)

	limited, err := repos.Chats.SearchChunks(ctx, "alice", "flights", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := repos.Chats.SearchChunks(ctx, "carol", "flights", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteChat_Cascades(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	chat := createChat(t, repos.Chats, "alice", "t", "a", "b")
	chunks, err := repos.Chats.GetChunks(ctx, chat.ID)
	require.NoError(t, err)
	require.NoError(t, repos.Chats.AddEmbedding(ctx, &core.Embedding{ChunkID: chunks[0].ID, Vector: []float32{1}}))

	binder, err := repos.Binders.CreateBinder(ctx, &core.Binder{Owner: "alice", Name: "b"})
	require.NoError(t, err)
	_, _, err = repos.Binders.AddChat(ctx, "alice", binder.ID, chat.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, repos.Chats.DeleteChat(ctx, "bob", chat.ID), storage.ErrNotFound)
	require.NoError(t, repos.Chats.DeleteChat(ctx, "alice", chat.ID))

	_, err = repos.Chats.GetChat(ctx, "alice", chat.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	remaining, err := repos.Chats.GetChunks(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	_, err = repos.Chats.GetEmbedding(ctx, chunks[0].ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	associations, err := repos.Binders.GetBinderChats(ctx, binder.ID)
	require.NoError(t, err)
	assert.Empty(t, associations)

	owner, err := repos.Binders.FindBinderForChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, owner)

	has, err := repos.Chats.HasChats(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestChunksMissingEmbeddings_Paging(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	chat := createChat(t, repos.Chats, "alice", "t", "a", "b", "c", "d", "e")
	chunks, err := repos.Chats.GetChunks(ctx, chat.ID)
	require.NoError(t, err)
	require.NoError(t, repos.Chats.AddEmbedding(ctx, &core.Embedding{ChunkID: chunks[1].ID, Vector: []float32{1}}))

	var seen []string
	cursor := ""
	for {
		batch, next, err := repos.Chats.ChunksMissingEmbeddings(ctx, cursor, 2)
		require.NoError(t, err)
		for _, c := range batch {
			seen = append(seen, c.Content)
		}
		if next == "" {
			break
		}
		cursor = next
	}

	assert.Equal(t, []string{"a", "c", "d", "e"}, seen)

	_, _, err = repos.Chats.ChunksMissingEmbeddings(ctx, "", 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}
