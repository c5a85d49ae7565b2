// Package stream owns the single in-flight generation per chat session.
package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/faults"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/llm"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/logging"
	"github.com/google/uuid"
)

var log = logging.Get()

// Result is the collected output of one completed stream.
type Result struct {
	Raw       string // everything the model produced
	Sanitized string // raw with instruction blocks removed
}

// DeltaFunc receives each sanitized text delta as it becomes visible.
type DeltaFunc func(delta string)

type active struct {
	id        string
	cancel    context.CancelFunc
	cancelled bool
	finished  bool
}

// Session serializes generation for one chat session: at most one stream is
// in flight, and starting a new one supersedes (cancels) the previous.
type Session struct {
	mu  sync.Mutex
	cur *active
}

func NewSession() *Session {
	return &Session{}
}

// reserve cancels any in-flight stream and installs a new slot.
func (s *Session) reserve(cancel context.CancelFunc) *active {
	s.mu.Lock()
	prev := s.cur
	slot := &active{id: uuid.NewString(), cancel: cancel}
	s.cur = slot
	s.mu.Unlock()

	if prev != nil && prev.cancel != nil {
		log.Stream("supersede", prev.id+" -> "+slot.id)
		s.markCancelled(prev)
		prev.cancel()
	}
	return slot
}

func (s *Session) markCancelled(a *active) {
	s.mu.Lock()
	a.cancelled = true
	s.mu.Unlock()
}

func (s *Session) clear(a *active) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == a {
		s.cur = nil
	}
}

// finish flips the terminal latch; once set, isLive gates out any chunk
// that arrives after the stream ended.
func (s *Session) finish(a *active) {
	s.mu.Lock()
	a.finished = true
	s.mu.Unlock()
}

func (s *Session) isLive(a *active) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !a.cancelled && !a.finished
}

// Cancel aborts the in-flight stream, if any. Returns false when nothing
// was active.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	a := s.cur
	s.mu.Unlock()
	if a == nil {
		return false
	}
	s.markCancelled(a)
	if a.cancel != nil {
		a.cancel()
	}
	log.Stream("cancel", a.id)
	return true
}

// Active reports whether a stream is currently in flight.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// Run sends req to the backend and streams the response. Sanitized deltas
// go to onDelta; the full text comes back in Result. Exactly one terminal
// outcome per call: a Result or an error, never both, never twice. timeout
// bounds the whole stream independently of external cancellation.
func (s *Session) Run(ctx context.Context, backend llm.Backend, req llm.GenerateRequest, timeout time.Duration, onDelta DeltaFunc) (*Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	slot := s.reserve(cancel)
	defer s.clear(slot)

	san := &sanitizer{}
	err := backend.StreamGenerate(runCtx, req, func(chunk string) {
		if !s.isLive(slot) {
			return
		}
		if delta := san.feed(chunk); delta != "" && onDelta != nil {
			onDelta(delta)
		}
	})

	// Latch before classifying the outcome: a chunk a misbehaving backend
	// delivers after returning must not slip into the result.
	s.finish(slot)

	s.mu.Lock()
	cancelled := slot.cancelled
	s.mu.Unlock()

	switch {
	case cancelled:
		return nil, faults.NewStreamFailure(faults.StreamCancelled, "stream cancelled")
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, faults.NewStreamFailure(faults.StreamTimeout, "stream exceeded time limit")
	case errors.Is(err, context.Canceled):
		return nil, faults.NewStreamFailure(faults.StreamCancelled, "stream cancelled")
	case err != nil:
		return nil, err
	}

	if delta := san.flush(); delta != "" && onDelta != nil {
		onDelta(delta)
	}
	return &Result{Raw: san.rawText(), Sanitized: san.sanitizedText()}, nil
}

const (
	openMarker  = "[SYSTEM]"
	closeMarker = "[/SYSTEM]"
)

// sanitizer strips openMarker..closeMarker blocks from an incrementally
// arriving stream. A partial marker straddling two chunks is held back
// until it resolves as either content or markup.
type sanitizer struct {
	raw     strings.Builder
	out     strings.Builder
	pending string
	inBlock bool
}

// feed appends chunk and returns the newly visible sanitized text.
func (z *sanitizer) feed(chunk string) string {
	z.raw.WriteString(chunk)
	z.pending += chunk

	var delta strings.Builder
	for {
		if z.inBlock {
			i := strings.Index(z.pending, closeMarker)
			if i < 0 {
				keep := partialSuffix(z.pending, closeMarker)
				z.pending = z.pending[len(z.pending)-keep:]
				break
			}
			z.pending = z.pending[i+len(closeMarker):]
			z.inBlock = false
			continue
		}

		i := strings.Index(z.pending, openMarker)
		if i < 0 {
			keep := partialSuffix(z.pending, openMarker)
			delta.WriteString(z.pending[:len(z.pending)-keep])
			z.pending = z.pending[len(z.pending)-keep:]
			break
		}
		delta.WriteString(z.pending[:i])
		z.pending = z.pending[i+len(openMarker):]
		z.inBlock = true
	}

	z.out.WriteString(delta.String())
	return delta.String()
}

// flush resolves held-back text at end of stream: outside a block it was
// content after all; an unterminated block is dropped.
func (z *sanitizer) flush() string {
	if z.inBlock {
		z.pending = ""
		return ""
	}
	delta := z.pending
	z.pending = ""
	z.out.WriteString(delta)
	return delta
}

func (z *sanitizer) rawText() string       { return z.raw.String() }
func (z *sanitizer) sanitizedText() string { return z.out.String() }

// partialSuffix returns the length of the longest proper prefix of marker
// that is a suffix of s.
func partialSuffix(s, marker string) int {
	max := len(marker) - 1
	if len(s) < max {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if strings.HasSuffix(s, marker[:k]) {
			return k
		}
	}
	return 0
}
