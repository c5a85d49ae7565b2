// Package session manages named conversation histories and their
// accumulated workspace context.
package session

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/logging"
)

var log = logging.Get()

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyTitle      = errors.New("session title is empty")
)

const (
	// historyCap bounds the message window; older entries are folded into a
	// summary message rather than dropped.
	historyCap = 40
	// historyKeep is how many recent messages survive a fold.
	historyKeep = 24
	// contextRingSize bounds remembered workspace fragments per session.
	contextRingSize = 16

	maxTitleLen = 48
)

// Message is one conversation entry.
type Message struct {
	Role      string    `json:"role"` // user | assistant | summary
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Fragment is a remembered piece of workspace context, keyed by path so a
// fresher capture of the same file replaces the old one.
type Fragment struct {
	Path     string    `json:"path"`
	Summary  string    `json:"summary"`
	Captured time.Time `json:"captured"`
}

// Session is one named conversation.
type Session struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	Messages         []Message  `json:"messages"`
	WorkspaceContext []Fragment `json:"workspaceContext,omitempty"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  int       `json:"messages"`
}

// SearchResult is one hit from Search.
type SearchResult struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	MatchType string    `json:"matchType"` // title | content
	Excerpt   string    `json:"excerpt,omitempty"`
}

// Manager owns the session set and the active session pointer. All methods
// are safe for concurrent use; history appends are serialized per manager,
// and accessors hand out detached copies so callers can read history while
// other turns append to it.
type Manager struct {
	mu       sync.Mutex
	store    Store
	sessions map[string]*Session
	rings    map[string]*lru.Cache[string, Fragment]
	activeID string
}

// NewManager loads persisted sessions from store.
func NewManager(store Store) (*Manager, error) {
	m := &Manager{
		store:    store,
		sessions: make(map[string]*Session),
		rings:    make(map[string]*lru.Cache[string, Fragment]),
	}

	snap, err := store.Load()
	if err != nil {
		return nil, err
	}
	for _, s := range snap.Sessions {
		m.sessions[s.ID] = s
		m.rings[s.ID] = ringFrom(s.WorkspaceContext)
	}
	m.activeID = snap.ActiveSessionID
	if _, ok := m.sessions[m.activeID]; !ok {
		m.activeID = ""
	}
	return m, nil
}

// clone returns a detached copy of s. All mutation goes through Manager
// methods, so a copy taken under m.mu is a consistent snapshot.
func clone(s *Session) *Session {
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	cp.WorkspaceContext = append([]Fragment(nil), s.WorkspaceContext...)
	return &cp
}

func ringFrom(frags []Fragment) *lru.Cache[string, Fragment] {
	ring, _ := lru.New[string, Fragment](contextRingSize)
	for _, f := range frags {
		ring.Add(f.Path, f)
	}
	return ring
}

// New creates a session and makes it active. An empty title gets a
// timestamp placeholder until the first user message names it.
func (m *Manager) New(title string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if strings.TrimSpace(title) == "" {
		title = "Chat " + now.Format("2006-01-02 15:04")
	}

	s := &Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}
	m.sessions[s.ID] = s
	m.rings[s.ID] = ringFrom(nil)
	m.activeID = s.ID

	if err := m.persist(); err != nil {
		delete(m.sessions, s.ID)
		delete(m.rings, s.ID)
		return nil, err
	}
	log.Info("session created: %s (%s)", s.ID, s.Title)
	return clone(s), nil
}

// Active returns a copy of the active session, or nil when none is selected.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[m.activeID]
	if !ok {
		return nil
	}
	return clone(s)
}

// ActiveID returns the active session id, empty when none.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Get returns a copy of a session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return clone(s), nil
}

// Switch makes the given session active and returns a copy of it.
func (m *Manager) Switch(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	m.activeID = id
	return clone(s), m.persist()
}

// Rename sets a session's title.
func (m *Manager) Rename(id, title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Title = title
	s.UpdatedAt = time.Now().UTC()
	return m.persist()
}

// Delete removes a session. Deleting the active one clears the selection.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	delete(m.rings, id)
	if m.activeID == id {
		m.activeID = ""
	}
	return m.persist()
}

// List returns summaries sorted newest-created first.
func (m *Manager) List() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Summary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Summary{
			ID:        s.ID,
			Title:     s.Title,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
			Messages:  len(s.Messages),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// AppendUser records a user message. The first user message titles an
// unnamed session.
func (m *Manager) AppendUser(id, content string) error {
	return m.append(id, Message{Role: "user", Content: content, Timestamp: time.Now().UTC()})
}

// AppendAssistant records an assistant reply.
func (m *Manager) AppendAssistant(id, content string) error {
	return m.append(id, Message{Role: "assistant", Content: content, Timestamp: time.Now().UTC()})
}

func (m *Manager) append(id string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}

	if msg.Role == "user" && strings.HasPrefix(s.Title, "Chat ") && !hasUserMessage(s) {
		s.Title = TitleFrom(msg.Content)
	}

	s.Messages = append(s.Messages, msg)
	if len(s.Messages) > historyCap {
		s.Messages = foldHistory(s.Messages)
	}
	s.UpdatedAt = msg.Timestamp
	return m.persist()
}

func hasUserMessage(s *Session) bool {
	for _, msg := range s.Messages {
		if msg.Role == "user" {
			return true
		}
	}
	return false
}

// TitleFrom derives a session title from the first user message: first
// line, trimmed to a display width.
func TitleFrom(content string) string {
	title := strings.TrimSpace(content)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if len(title) > maxTitleLen {
		cut := maxTitleLen
		for cut > 0 && !utf8.RuneStart(title[cut]) {
			cut--
		}
		title = strings.TrimSpace(title[:cut]) + "..."
	}
	if title == "" {
		title = "Chat " + time.Now().UTC().Format("2006-01-02 15:04")
	}
	return title
}

// foldHistory compresses everything but the newest historyKeep messages
// into a single summary entry so old turns stay discoverable.
func foldHistory(msgs []Message) []Message {
	cut := len(msgs) - historyKeep
	folded := msgs[:cut]

	var sb strings.Builder
	sb.WriteString("Earlier conversation, condensed:\n")
	for _, msg := range folded {
		if msg.Role == "summary" {
			// A previous fold; keep its text so nothing is lost.
			sb.WriteString(msg.Content)
			sb.WriteByte('\n')
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(headline(msg.Content))
		sb.WriteByte('\n')
	}

	out := make([]Message, 0, historyKeep+1)
	out = append(out, Message{
		Role:      "summary",
		Content:   strings.TrimRight(sb.String(), "\n"),
		Timestamp: folded[len(folded)-1].Timestamp,
	})
	return append(out, msgs[cut:]...)
}

// headline returns the first line of content, capped.
func headline(content string) string {
	line := strings.TrimSpace(content)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	const max = 120
	if len(line) > max {
		line = line[:max] + "..."
	}
	return line
}

// RememberContext stores a workspace fragment in the session's bounded
// ring; a fragment for the same path replaces the older capture.
func (m *Manager) RememberContext(id, path, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}

	ring := m.rings[id]
	ring.Add(path, Fragment{Path: path, Summary: summary, Captured: time.Now().UTC()})

	s.WorkspaceContext = s.WorkspaceContext[:0]
	for _, key := range ring.Keys() {
		if f, ok := ring.Peek(key); ok {
			s.WorkspaceContext = append(s.WorkspaceContext, f)
		}
	}
	return m.persist()
}

// ContextFragments returns the remembered fragments, oldest first.
func (m *Manager) ContextFragments(id string) ([]Fragment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := make([]Fragment, len(s.WorkspaceContext))
	copy(out, s.WorkspaceContext)
	return out, nil
}

// Search matches sessions by title, then message content. An empty query
// returns every session as a title match. Results are newest first.
func (m *Manager) Search(query string) []SearchResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	queryLower := strings.ToLower(query)
	var results []SearchResult

	for _, s := range m.sessions {
		if query == "" || strings.Contains(strings.ToLower(s.Title), queryLower) {
			results = append(results, SearchResult{
				ID:        s.ID,
				Title:     s.Title,
				CreatedAt: s.CreatedAt,
				MatchType: "title",
			})
			continue
		}
		if excerpt := searchContent(s, queryLower); excerpt != "" {
			results = append(results, SearchResult{
				ID:        s.ID,
				Title:     s.Title,
				CreatedAt: s.CreatedAt,
				MatchType: "content",
				Excerpt:   excerpt,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results
}

// searchContent returns an excerpt around the first content match.
func searchContent(s *Session, queryLower string) string {
	for _, msg := range s.Messages {
		textLower := strings.ToLower(msg.Content)
		idx := strings.Index(textLower, queryLower)
		if idx == -1 {
			continue
		}

		start := idx - 30
		if start < 0 {
			start = 0
		}
		end := idx + len(queryLower) + 50
		if end > len(msg.Content) {
			end = len(msg.Content)
		}

		excerpt := strings.TrimSpace(strings.ReplaceAll(msg.Content[start:end], "\n", " "))
		if start > 0 {
			excerpt = "..." + excerpt
		}
		if end < len(msg.Content) {
			excerpt = excerpt + "..."
		}
		return excerpt
	}
	return ""
}

// persist writes the full snapshot. Caller holds m.mu.
func (m *Manager) persist() error {
	snap := &Snapshot{ActiveSessionID: m.activeID}
	for _, s := range m.sessions {
		snap.Sessions = append(snap.Sessions, s)
	}
	sort.Slice(snap.Sessions, func(i, j int) bool {
		return snap.Sessions[i].CreatedAt.Before(snap.Sessions[j].CreatedAt)
	})
	return m.store.Save(snap)
}
