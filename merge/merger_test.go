package merge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/chatbinder/ai/mock"
	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/storage"
	"github.com/poiesic/chatbinder/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingAuditRepository struct {
	storage.BinderRepository
}

func (failingAuditRepository) AddMergedDocument(context.Context, *core.MergedDocument) (*core.MergedDocument, error) {
	return nil, errors.New("write failed")
}

func setupBinder(t *testing.T) (*badger.Repositories, *core.Binder) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	binder, err := repos.Binders.CreateBinder(context.Background(), &core.Binder{Owner: "alice", Name: "Trip Plans"})
	require.NoError(t, err)
	return repos, binder
}

func chatContents(title string, source core.Source, date time.Time, chunks ...string) *core.ChatContents {
	cc := &core.ChatContents{
		Chat: &core.Chat{ID: core.NewID(), Owner: "alice", Title: title, Source: source, CreatedAt: date},
	}
	for i, text := range chunks {
		cc.Chunks = append(cc.Chunks, &core.Chunk{ID: core.NewID(), ChatID: cc.Chat.ID, Index: i, Content: text})
	}
	return cc
}

func sampleContents(binder *core.Binder) *core.BinderContents {
	day := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	return &core.BinderContents{
		Binder: binder,
		Chats: []*core.ChatContents{
			chatContents("Flights", core.SourceChatGPT, day, "user: book flights to Rome\n\n", "assistant: done\n\n"),
			chatContents("Hotels", core.SourceClaude, day.AddDate(0, 0, 1), "user: find a hotel\n\n"),
		},
	}
}

func TestNewMerger_Validation(t *testing.T) {
	repos, _ := setupBinder(t)

	_, err := NewMerger(nil, mock.NewMockSynthesizer())
	assert.ErrorIs(t, err, ErrBinderRepositoryRequired)

	_, err = NewMerger(repos.Binders, nil)
	assert.ErrorIs(t, err, ErrSynthesizerRequired)
}

func TestMerge_EmptyBinder(t *testing.T) {
	repos, binder := setupBinder(t)
	synth := mock.NewMockSynthesizer()
	m, err := NewMerger(repos.Binders, synth)
	require.NoError(t, err)

	result, err := m.Merge(context.Background(), &core.BinderContents{Binder: binder})
	require.NoError(t, err)
	assert.Equal(t, "# Trip Plans\n\nNo chats in this binder.", result.Document)
	assert.False(t, result.Synthesized)
	assert.Zero(t, synth.CallCount())

	history, err := repos.Binders.ListMergedDocuments(context.Background(), binder.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMerge_Synthesized(t *testing.T) {
	repos, binder := setupBinder(t)
	synth := mock.NewMockSynthesizer().WithSynthesizeFunc(func(context.Context, string, string) (string, error) {
		return "## Context & Background\n\nA trip.", nil
	})
	m, err := NewMerger(repos.Binders, synth)
	require.NoError(t, err)
	ctx := context.Background()

	contents := sampleContents(binder)
	result, err := m.Merge(ctx, contents)
	require.NoError(t, err)
	assert.True(t, result.Synthesized)
	assert.Equal(t, "## Context & Background\n\nA trip.", result.Document)

	calls := synth.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, systemPrompt, calls[0].SystemPrompt)
	assert.Equal(t, buildUserPrompt(Assemble(contents)), calls[0].UserPrompt)

	history, err := repos.Binders.ListMergedDocuments(ctx, binder.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, result.Document, history[0].Document)
	assert.True(t, history[0].Synthesized)
	assert.Equal(t, core.DigestFromContent(Assemble(contents)), history[0].SourceDigest)
	require.NotNil(t, result.Audit)
	assert.Equal(t, history[0].ID, result.Audit.ID)
}

func TestMerge_FallbackOnSynthesisFailure(t *testing.T) {
	repos, binder := setupBinder(t)
	synth := mock.NewMockSynthesizer().WithSynthesizeFunc(func(context.Context, string, string) (string, error) {
		return "", core.ErrSynthesisUnavailable
	})
	m, err := NewMerger(repos.Binders, synth, WithContextLimit(20))
	require.NoError(t, err)
	ctx := context.Background()

	contents := sampleContents(binder)
	result, err := m.Merge(ctx, contents)
	require.NoError(t, err)
	assert.False(t, result.Synthesized)

	// raw content is returned untruncated, chats in binder order
	assert.Equal(t, Assemble(contents), result.Document)
	flights := strings.Index(result.Document, "## Chat: Flights")
	hotels := strings.Index(result.Document, "## Chat: Hotels")
	assert.True(t, flights >= 0 && hotels > flights)
	assert.Contains(t, result.Document, "book flights to Rome")
	assert.Contains(t, result.Document, "find a hotel")

	history, err := repos.Binders.ListMergedDocuments(ctx, binder.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Synthesized)
}

func TestMerge_FallbackOnBlankDocument(t *testing.T) {
	repos, binder := setupBinder(t)
	synth := mock.NewMockSynthesizer().WithSynthesizeFunc(func(context.Context, string, string) (string, error) {
		return "  ", nil
	})
	m, err := NewMerger(repos.Binders, synth)
	require.NoError(t, err)

	result, err := m.Merge(context.Background(), sampleContents(binder))
	require.NoError(t, err)
	assert.False(t, result.Synthesized)
}

func TestMerge_SynthesisTimeout(t *testing.T) {
	repos, binder := setupBinder(t)
	synth := mock.NewMockSynthesizer().WithSynthesizeFunc(func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	m, err := NewMerger(repos.Binders, synth, WithSynthesisTimeout(20*time.Millisecond))
	require.NoError(t, err)

	contents := sampleContents(binder)
	result, err := m.Merge(context.Background(), contents)
	require.NoError(t, err)
	assert.False(t, result.Synthesized)
	assert.Equal(t, Assemble(contents), result.Document)
}

func TestMerge_TruncatesPrompt(t *testing.T) {
	repos, binder := setupBinder(t)
	synth := mock.NewMockSynthesizer()
	m, err := NewMerger(repos.Binders, synth, WithContextLimit(30))
	require.NoError(t, err)

	contents := sampleContents(binder)
	_, err = m.Merge(context.Background(), contents)
	require.NoError(t, err)

	calls := synth.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, userPromptPrefix+Assemble(contents)[:30], calls[0].UserPrompt)
}

func TestMerge_AuditFailureDoesNotFail(t *testing.T) {
	repos, binder := setupBinder(t)
	m, err := NewMerger(failingAuditRepository{repos.Binders}, mock.NewMockSynthesizer())
	require.NoError(t, err)

	result, err := m.Merge(context.Background(), sampleContents(binder))
	require.NoError(t, err)
	assert.True(t, result.Synthesized)
	assert.Nil(t, result.Audit)
}

func TestMerge_HistoryIsAppendOnly(t *testing.T) {
	repos, binder := setupBinder(t)
	m, err := NewMerger(repos.Binders, mock.NewMockSynthesizer())
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.Merge(ctx, sampleContents(binder))
		require.NoError(t, err)
	}

	history, err := repos.Binders.ListMergedDocuments(ctx, binder.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestMerge_NilBinder(t *testing.T) {
	repos, _ := setupBinder(t)
	m, err := NewMerger(repos.Binders, mock.NewMockSynthesizer())
	require.NoError(t, err)

	_, err = m.Merge(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestAssemble(t *testing.T) {
	binder := &core.Binder{Name: "Trip Plans"}
	expected := "# Trip Plans\n\n" +
		"\n## Chat: Flights\n**Source:** chatgpt | **Date:** 2024-03-09\n\n" +
		"user: book flights to Rome\n\n\n\nassistant: done\n\n\n\n" +
		"\n## Chat: Hotels\n**Source:** claude | **Date:** 2024-03-10\n\n" +
		"user: find a hotel\n\n\n\n"
	assert.Equal(t, expected, Assemble(sampleContents(binder)))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{"shorter than limit", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"cut", "abcdef", 3, "abc"},
		{"multibyte", "héllo wörld", 7, "héllo w"},
		{"no limit", "abc", 0, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.limit))
		})
	}
}
