package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/config"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/llm"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/session"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/workspace"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name string
		req  map[string]any
		want string
	}{
		{name: "string", req: map[string]any{"request_id": "abc"}, want: "abc"},
		{name: "float", req: map[string]any{"request_id": 42.0}, want: "42"},
		{name: "fractional", req: map[string]any{"request_id": 1.5}, want: "1.5"},
		{name: "none", req: map[string]any{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := requestID(tt.req); got != tt.want {
				t.Fatalf("requestID(%v) = %q, want %q", tt.req, got, tt.want)
			}
		})
	}
}

func TestAddResponseID(t *testing.T) {
	data := map[string]any{"type": "ok"}
	out := addResponseID("req-1", data)
	if got := out["request_id"]; got != "req-1" {
		t.Fatalf("request_id = %v, want %q", got, "req-1")
	}

	orig := map[string]any{"type": "ok"}
	out2 := addResponseID("", orig)
	if !reflect.DeepEqual(out2, orig) {
		t.Fatalf("expected map unchanged when id is empty")
	}
}

// lineSink collects protocol responses for inspection.
type lineSink struct {
	mu    sync.Mutex
	lines []map[string]any
}

func (s *lineSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		if line == "" {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(line), &msg); err == nil {
			s.lines = append(s.lines, msg)
		}
	}
	return len(p), nil
}

func (s *lineSink) snapshot() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.lines))
	copy(out, s.lines)
	return out
}

// waitFor polls until a response of the given type arrives.
func (s *lineSink) waitFor(t *testing.T, msgType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, msg := range s.snapshot() {
			if msg["type"] == msgType {
				return msg
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %q response; got %v", msgType, s.snapshot())
	return nil
}

func newTestServer(t *testing.T, backend llm.Backend) (*server, *lineSink, string) {
	t.Helper()

	rootDir := t.TempDir()
	err := os.WriteFile(filepath.Join(rootDir, "sum.c"),
		[]byte("#include <stdio.h>\nint main(void){printf(\"3\\n\");}\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}

	sessions, err := session.NewManager(&session.MemStore{})
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Model:           "codellama:7b",
		MaxContextChars: 24000,
		DocumentCap:     50 * 1024,
		RequestSeconds:  5,
		ExcludeGlobs:    []string{".git"},
	}

	sink := &lineSink{}
	srv := &server{
		cfg:      cfg,
		backend:  backend,
		tracker:  workspace.NewTrackerWithDebounce(0),
		sessions: sessions,
		out:      sink,
	}
	t.Cleanup(srv.close)
	return srv, sink, rootDir
}

func TestServerProtocolRoundTrip(t *testing.T) {
	backend := &llm.FakeBackend{Chunks: []string{"It prints ", "3."}}
	srv, sink, rootDir := newTestServer(t, backend)

	srv.handleRequest(`{"action":"ping","request_id":"1"}`)
	if msg := sink.waitFor(t, "ok"); msg["request_id"] != "1" {
		t.Fatalf("ping response not correlated: %v", msg)
	}

	init, _ := json.Marshal(map[string]any{"action": "init", "request_id": "2", "root_dir": rootDir})
	srv.handleRequest(string(init))
	sink.waitFor(t, "ok")

	srv.handleRequest(`{"action":"session_new","request_id":"3","title":"test"}`)
	sessionID := ""
	for _, msg := range sink.snapshot() {
		if msg["request_id"] == "3" {
			sessionID, _ = msg["id"].(string)
		}
	}
	if sessionID == "" {
		t.Fatal("session_new returned no id")
	}

	send, _ := json.Marshal(map[string]any{
		"action": "send", "request_id": "4",
		"session_id": sessionID, "text": "explain sum.c",
	})
	srv.handleRequest(string(send))

	sink.waitFor(t, "started")
	done := sink.waitFor(t, "completed")
	if done["content"] != "It prints 3." {
		t.Fatalf("completed content = %v", done["content"])
	}

	var chunks strings.Builder
	for _, msg := range sink.snapshot() {
		if msg["type"] == "chunk" {
			chunks.WriteString(msg["content"].(string))
		}
	}
	if chunks.String() != "It prints 3." {
		t.Fatalf("chunks = %q", chunks.String())
	}

	srv.handleRequest(`{"action":"context_preview","request_id":"5"}`)
	preview := sink.waitFor(t, "preview")
	if preview["preview"] == nil {
		t.Fatal("missing preview payload")
	}
}

func TestServerSendBeforeInit(t *testing.T) {
	srv, sink, _ := newTestServer(t, &llm.FakeBackend{})

	srv.handleRequest(`{"action":"send","request_id":"1","text":"hello"}`)
	msg := sink.waitFor(t, "error")
	if !strings.Contains(msg["message"].(string), "init") {
		t.Fatalf("unexpected error: %v", msg["message"])
	}
}

func TestServerDiagnosticsGateSend(t *testing.T) {
	backend := &llm.FakeBackend{Chunks: []string{"never"}}
	srv, sink, rootDir := newTestServer(t, backend)

	init, _ := json.Marshal(map[string]any{"action": "init", "request_id": "1", "root_dir": rootDir})
	srv.handleRequest(string(init))
	sink.waitFor(t, "ok")

	srv.handleRequest(`{"action":"session_new","request_id":"2"}`)
	srv.handleRequest(`{"action":"diagnostics","request_id":"3","items":[{"path":"sum.c","message":"expected ';'","severity":"error","range":{"start_line":1,"start_char":0,"end_line":1,"end_char":1}}]}`)

	srv.handleRequest(`{"action":"send","request_id":"4","text":"fix sum.c"}`)
	msg := sink.waitFor(t, "error")
	if msg["code"] != "DIAGNOSTIC_BLOCK" {
		t.Fatalf("want DIAGNOSTIC_BLOCK, got %v", msg)
	}
	if backend.Streamed() != 0 {
		t.Fatal("generation ran despite blocking diagnostics")
	}
}

func TestServerUnknownAction(t *testing.T) {
	srv, sink, _ := newTestServer(t, &llm.FakeBackend{})
	srv.handleRequest(`{"action":"bogus","request_id":"1"}`)
	msg := sink.waitFor(t, "error")
	if !strings.Contains(msg["message"].(string), "bogus") {
		t.Fatalf("unexpected error: %v", msg["message"])
	}
}
