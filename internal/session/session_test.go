package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(&MemStore{})
	require.NoError(t, err)
	return m
}

func TestNewSessionBecomesActive(t *testing.T) {
	m := newTestManager(t)

	s, err := m.New("Debugging notes")
	require.NoError(t, err)
	assert.Equal(t, "Debugging notes", s.Title)
	assert.Equal(t, s.ID, m.ActiveID())
	assert.NotEmpty(t, s.ID)
}

func TestFirstUserMessageTitlesSession(t *testing.T) {
	m := newTestManager(t)
	s, err := m.New("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.Title, "Chat "))

	require.NoError(t, m.AppendUser(s.ID, "Why does sum.c segfault on empty input?\nMore detail below."))
	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Why does sum.c segfault on empty input?", got.Title)

	// A later user message must not retitle.
	require.NoError(t, m.AppendUser(s.ID, "Another question entirely"))
	got, err = m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Why does sum.c segfault on empty input?", got.Title)
}

func TestTitleFrom(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"short question", "short question"},
		{"  padded  \nsecond line", "padded"},
		{strings.Repeat("x", 100), strings.Repeat("x", 48) + "..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TitleFrom(tt.in))
	}
}

func TestSwitchRenameDelete(t *testing.T) {
	m := newTestManager(t)
	a, err := m.New("first")
	require.NoError(t, err)
	b, err := m.New("second")
	require.NoError(t, err)
	assert.Equal(t, b.ID, m.ActiveID())

	_, err = m.Switch(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, m.ActiveID())

	require.NoError(t, m.Rename(a.ID, "renamed"))
	got, err := m.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	assert.ErrorIs(t, m.Rename(a.ID, "   "), ErrEmptyTitle)

	require.NoError(t, m.Delete(a.ID))
	assert.Empty(t, m.ActiveID(), "deleting the active session clears selection")
	_, err = m.Get(a.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, m.Delete(b.ID))
	assert.ErrorIs(t, m.Delete(b.ID), ErrSessionNotFound)
}

func TestHistoryFoldKeepsOldContent(t *testing.T) {
	m := newTestManager(t)
	s, err := m.New("long chat")
	require.NoError(t, err)

	for i := 0; i < historyCap+1; i++ {
		require.NoError(t, m.AppendUser(s.ID, fmt.Sprintf("question %d", i)))
	}

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	require.LessOrEqual(t, len(got.Messages), historyKeep+1)

	assert.Equal(t, "summary", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "question 0",
		"folded messages must remain discoverable in the summary")
	last := got.Messages[len(got.Messages)-1]
	assert.Equal(t, fmt.Sprintf("question %d", historyCap), last.Content)
}

func TestHistoryFoldChains(t *testing.T) {
	m := newTestManager(t)
	s, err := m.New("very long chat")
	require.NoError(t, err)

	for i := 0; i < historyCap*3; i++ {
		require.NoError(t, m.AppendUser(s.ID, fmt.Sprintf("question %d", i)))
	}

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "summary", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "question 0",
		"a re-fold must carry the earlier summary forward")
}

func TestWorkspaceContextRing(t *testing.T) {
	m := newTestManager(t)
	s, err := m.New("ctx")
	require.NoError(t, err)

	for i := 0; i < contextRingSize+4; i++ {
		path := fmt.Sprintf("pkg/file%d.go", i)
		require.NoError(t, m.RememberContext(s.ID, path, "summary of "+path))
	}

	frags, err := m.ContextFragments(s.ID)
	require.NoError(t, err)
	assert.Len(t, frags, contextRingSize, "ring must stay bounded")
	assert.Equal(t, "pkg/file4.go", frags[0].Path, "oldest entries evicted first")

	// Re-capturing a path replaces, not duplicates.
	require.NoError(t, m.RememberContext(s.ID, "pkg/file10.go", "fresher"))
	frags, err = m.ContextFragments(s.ID)
	require.NoError(t, err)
	assert.Len(t, frags, contextRingSize)
	assert.Equal(t, "fresher", frags[len(frags)-1].Summary)
}

func TestSearch(t *testing.T) {
	m := newTestManager(t)
	a, err := m.New("Physics homework")
	require.NoError(t, err)
	b, err := m.New("Go questions")
	require.NoError(t, err)
	require.NoError(t, m.AppendAssistant(b.ID, "Goroutines are multiplexed onto OS threads by the runtime scheduler."))

	all := m.Search("")
	assert.Len(t, all, 2)

	byTitle := m.Search("physics")
	require.Len(t, byTitle, 1)
	assert.Equal(t, a.ID, byTitle[0].ID)
	assert.Equal(t, "title", byTitle[0].MatchType)

	byContent := m.Search("scheduler")
	require.Len(t, byContent, 1)
	assert.Equal(t, b.ID, byContent[0].ID)
	assert.Equal(t, "content", byContent[0].MatchType)
	assert.Contains(t, byContent[0].Excerpt, "scheduler")

	assert.Empty(t, m.Search("nothing matches this"))
}

func TestGetReturnsDetachedCopy(t *testing.T) {
	m := newTestManager(t)
	s, err := m.New("copy semantics")
	require.NoError(t, err)
	require.NoError(t, m.AppendUser(s.ID, "hello"))

	got, err := m.Get(s.ID)
	require.NoError(t, err)

	// Appends after the read must not show up in the earlier snapshot.
	require.NoError(t, m.AppendUser(s.ID, "world"))
	assert.Len(t, got.Messages, 1)

	// Mutating the copy must not leak back into the manager.
	got.Messages[0].Content = "tampered"
	fresh, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", fresh.Messages[0].Content)
}

func TestConcurrentAppendAndRead(t *testing.T) {
	m := newTestManager(t)
	s, err := m.New("busy chat")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.NoError(t, m.AppendUser(s.ID, "ping"))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				got, err := m.Get(s.ID)
				if !assert.NoError(t, err) {
					return
				}
				for _, msg := range got.Messages {
					assert.NotEmpty(t, msg.Role)
				}
			}
		}()
	}
	wg.Wait()
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)

	m, err := NewManager(store)
	require.NoError(t, err)
	s, err := m.New("persisted")
	require.NoError(t, err)
	require.NoError(t, m.AppendUser(s.ID, "hello"))
	require.NoError(t, m.RememberContext(s.ID, "main.go", "entry point"))

	// Fresh manager over the same store sees everything.
	m2, err := NewManager(store)
	require.NoError(t, err)
	assert.Equal(t, s.ID, m2.ActiveID())

	got, err := m2.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Messages[0].Content)

	frags, err := m2.ContextFragments(s.ID)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "main.go", frags[0].Path)
}
