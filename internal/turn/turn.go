// Package turn orchestrates one conversational turn: resolve references,
// assemble context, detect revision drift, gate on diagnostics, stream the
// reply, and commit it to session history.
package turn

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/config"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/contextbundle"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/faults"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/llm"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/logging"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/mention"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/session"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/stream"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/workspace"
)

var log = logging.Get()

// State is a phase of the turn lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateResolving  State = "resolving"
	StateComposing  State = "composing"
	StateStreaming  State = "streaming"
	StateValidating State = "validating"
	StateCommitted  State = "committed"
	StateStale      State = "stale"
	StateFailed     State = "failed"
)

// maxStaleRetries bounds Composing->Stale->Resolving loops before the turn
// gives up and asks the user to let edits settle.
const maxStaleRetries = 3

// Callbacks are the lifecycle events exposed to the UI layer. Exactly one
// of OnCompleted or OnError fires per Run.
type Callbacks struct {
	OnStarted   func(turnID string)
	OnChunk     func(delta string)
	OnCompleted func(reply string)
	OnError     func(err error)
}

// Preview describes what context the most recent turn actually used.
type Preview struct {
	Included []string       `json:"included"`          // paths sent to the model, priority order
	Ignored  []string       `json:"ignored,omitempty"` // resolved but dropped by the budget
	Missing  []string       `json:"missing,omitempty"` // referenced but unreadable
	Tokens   map[string]int `json:"tokens,omitempty"`  // estimated tokens per included file
}

// Outcome is the terminal result of one Run.
type Outcome struct {
	TurnID   string
	State    State
	Reply    string
	Attempts int
	Preview  Preview
}

// Controller drives the turn lifecycle. One Controller serves the whole
// workspace; per-session stream serialization lives in stream.Session.
type Controller struct {
	cfg       *config.Config
	backend   llm.Backend
	tracker   *workspace.Tracker
	assembler *contextbundle.Assembler
	sessions  *session.Manager
	strategy  mention.Strategy
	rootDir   string

	mu          sync.Mutex
	streams     map[string]*stream.Session
	lastPreview Preview
}

// NewController wires the turn lifecycle together.
func NewController(cfg *config.Config, backend llm.Backend, tracker *workspace.Tracker, assembler *contextbundle.Assembler, sessions *session.Manager, strategy mention.Strategy, rootDir string) *Controller {
	if strategy == nil {
		strategy = mention.RegexStrategy{}
	}
	return &Controller{
		cfg:       cfg,
		backend:   backend,
		tracker:   tracker,
		assembler: assembler,
		sessions:  sessions,
		strategy:  strategy,
		rootDir:   rootDir,
		streams:   make(map[string]*stream.Session),
	}
}

func (c *Controller) streamFor(sessionID string) *stream.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[sessionID]
	if !ok {
		s = stream.NewSession()
		c.streams[sessionID] = s
	}
	return s
}

// Cancel aborts the in-flight stream for a session, if any.
func (c *Controller) Cancel(sessionID string) bool {
	c.mu.Lock()
	s, ok := c.streams[sessionID]
	c.mu.Unlock()
	return ok && s.Cancel()
}

// LastPreview returns the context preview of the most recent turn.
func (c *Controller) LastPreview() Preview {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPreview
}

func (c *Controller) setPreview(p Preview) {
	c.mu.Lock()
	c.lastPreview = p
	c.mu.Unlock()
}

// Run executes one turn for the given session and user text. The returned
// Outcome mirrors the terminal callback.
func (c *Controller) Run(ctx context.Context, sessionID, userText string, cb Callbacks) (*Outcome, error) {
	turnID := uuid.NewString()
	if cb.OnStarted != nil {
		cb.OnStarted(turnID)
	}

	out, err := c.run(ctx, turnID, sessionID, userText, cb)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return out, err
	}
	if cb.OnCompleted != nil {
		cb.OnCompleted(out.Reply)
	}
	return out, nil
}

func (c *Controller) run(ctx context.Context, turnID, sessionID, userText string, cb Callbacks) (*Outcome, error) {
	out := &Outcome{TurnID: turnID, State: StateIdle}
	state := StateIdle
	advance := func(next State) {
		log.Turn(sessionID, string(state), string(next))
		state = next
		out.State = next
	}

	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		advance(StateFailed)
		return out, err
	}

	var bundle *contextbundle.Bundle
	var captured uint64
	var prompt string

	for attempt := 1; ; attempt++ {
		out.Attempts = attempt

		advance(StateResolving)
		snap := c.tracker.Snapshot()
		captured = snap.Revision

		activeFile, requested, missingMentions := c.resolveReferences(userText, &snap)

		// Diagnostic gate: never invoke generation while known-broken code
		// is in scope.
		scope := make(map[string]bool)
		if activeFile != "" {
			scope[contextbundle.Normalize(activeFile)] = true
		}
		for _, p := range requested {
			scope[contextbundle.Normalize(p)] = true
		}
		if blocking := snap.BlockingDiagnostics(scope); len(blocking) > 0 {
			advance(StateFailed)
			return out, faults.NewDiagnosticBlock(formatDiagnostics(blocking), len(blocking))
		}

		bundle, err = c.assembler.Assemble(contextbundle.Request{
			RootDir:        c.rootDir,
			ActiveFile:     activeFile,
			RequestedFiles: requested,
			Overrides:      c.tracker.Overrides(),
			ProtectedPaths: c.tracker.ProtectedPaths(),
			MaxChars:       c.cfg.MaxContextChars,
		})
		if err != nil {
			advance(StateFailed)
			return out, err
		}
		bundle.Revision = captured
		bundle.Missing = append(bundle.Missing, missingMentions...)

		advance(StateComposing)
		tokens := make(map[string]int, len(bundle.Files))
		for _, f := range bundle.Files {
			tokens[f.Path] = llm.EstimateTokensSimple(f.Text)
		}
		out.Preview = Preview{
			Included: bundle.Paths(),
			Ignored:  bundle.Omitted,
			Missing:  bundle.Missing,
			Tokens:   tokens,
		}
		c.setPreview(out.Preview)

		prompt = composePrompt(bundle, sess.Messages, userText)

		// The world may have moved while we were composing; a prompt over a
		// stale bundle is discarded and rebuilt.
		if current := c.tracker.CurrentRevision(); current != captured {
			advance(StateStale)
			if attempt >= maxStaleRetries {
				advance(StateFailed)
				return out, faults.NewRevisionDrift(captured, current)
			}
			continue
		}
		break
	}

	if err := c.sessions.AppendUser(sessionID, userText); err != nil {
		advance(StateFailed)
		return out, err
	}

	advance(StateStreaming)
	reply, err := c.generate(ctx, sessionID, prompt, cb.OnChunk)
	if err != nil {
		advance(StateFailed)
		return out, err
	}

	advance(StateValidating)
	if directive := validateReply(userText, reply); directive != "" {
		log.Debug("turn %s: validation re-prompt (%s)", turnID, directive)
		// The retry streams quietly: its deltas are not forwarded, so the
		// visible stream stays a single attempt and the completed event
		// carries the corrected text.
		retryPrompt := prompt + "\n\n" + directive
		retried, err := c.generate(ctx, sessionID, retryPrompt, nil)
		if err == nil && validateReply(userText, retried) == "" {
			reply = retried
		}
		// A second mismatch ships as-is; one corrective retry is the cap.
	}

	// An answer about code that changed mid-generation must not be
	// persisted as if it were still true.
	if current := c.tracker.CurrentRevision(); current != captured {
		advance(StateFailed)
		return out, faults.NewRevisionDrift(captured, current)
	}

	if err := c.sessions.AppendAssistant(sessionID, reply); err != nil {
		advance(StateFailed)
		return out, err
	}
	for _, f := range bundle.Files {
		c.sessions.RememberContext(sessionID, f.Path, headline(f.Text))
	}

	advance(StateCommitted)
	out.Reply = reply
	return out, nil
}

// resolveReferences turns free text into an active file and explicit
// requests, against the tracked workspace.
func (c *Controller) resolveReferences(userText string, snap *workspace.Snapshot) (activeFile string, requested, missing []string) {
	mentions := c.strategy.ExtractMentions(userText)

	known := snap.Files
	// Open buffers count as known even before they hit the file index.
	seen := make(map[string]bool, len(known))
	for _, p := range known {
		seen[p] = true
	}
	for _, doc := range snap.OpenDocuments {
		if !seen[doc.Path] {
			known = append(known, doc.Path)
		}
	}
	sort.Strings(known)

	res := mention.Resolve(mentions, known)

	if snap.ActiveEditor != "" {
		if c.strategy.ImpliesActiveEditor(userText, mentions) || len(res.Resolved) == 0 {
			activeFile = snap.ActiveEditor
		}
	}

	return activeFile, res.Resolved, res.Unresolved
}

func (c *Controller) generate(ctx context.Context, sessionID, prompt string, onChunk func(delta string)) (string, error) {
	req := llm.GenerateRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Options: c.cfg.Options,
	}
	res, err := c.streamFor(sessionID).Run(ctx, c.backend, req, c.cfg.RequestTimeout(), onChunk)
	if err != nil {
		return "", err
	}
	return res.Sanitized, nil
}

// AutoTitle asks the backend for a short session title based on the first
// exchange. Best effort: failures leave the derived title in place.
func (c *Controller) AutoTitle(ctx context.Context, sessionID string) {
	sess, err := c.sessions.Get(sessionID)
	if err != nil || len(sess.Messages) == 0 {
		return
	}
	first := ""
	for _, m := range sess.Messages {
		if m.Role == "user" {
			first = m.Content
			break
		}
	}
	if first == "" {
		return
	}

	model := c.cfg.TitleModel
	if model == "" {
		model = c.cfg.Model
	}
	title, err := c.backend.Generate(ctx, llm.GenerateRequest{
		Model:  model,
		Prompt: "Write a title of at most five words for a conversation that starts with:\n\n" + headline(first) + "\n\nReply with the title only.",
	})
	if err != nil {
		log.Debug("auto title failed: %v", err)
		return
	}
	title = strings.Trim(strings.TrimSpace(title), `"`)
	if title == "" {
		return
	}
	if err := c.sessions.Rename(sessionID, session.TitleFrom(title)); err != nil {
		log.Debug("auto title rename failed: %v", err)
	}
}

func formatDiagnostics(diags []workspace.Diagnostic) string {
	var sb strings.Builder
	for i, d := range diags {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s:%d:%d: %s", d.Path, d.Range.StartLine, d.Range.StartChar, d.Message)
	}
	return sb.String()
}

func headline(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	const max = 160
	if len(line) > max {
		line = line[:max] + "..."
	}
	return line
}
