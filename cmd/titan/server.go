package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/config"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/contextbundle"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/document"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/faults"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/llm"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/mention"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/session"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/turn"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/workspace"
)

// server wires the pipeline together and speaks the JSON-line protocol:
// one request object per stdin line, one or more response objects per
// stdout line, correlated by request_id.
type server struct {
	cfg      *config.Config
	backend  llm.Backend
	tracker  *workspace.Tracker
	sessions *session.Manager
	ctrl     *turn.Controller

	out       io.Writer
	respondMu sync.Mutex

	watchCancel context.CancelFunc
	shutdown    bool
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	sessions, err := openSessions()
	if err != nil {
		return err
	}

	if os.Getenv("TITAN_DEBUG") == "1" {
		fmt.Fprintf(os.Stderr, "titan: process started with TITAN_DEBUG=1\n")
	}

	srv := &server{
		cfg:      cfg,
		backend:  llm.NewClient(cfg.BackendURL, cfg.RequestTimeout()),
		tracker:  workspace.NewTracker(),
		sessions: sessions,
		out:      os.Stdout,
	}
	defer srv.close()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		srv.handleRequest(scanner.Text())
		if srv.shutdown {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			srv.respond("", map[string]any{
				"type":    "error",
				"message": "Request too large (max 1MB). Reduce context size or split the request.",
			})
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "stdin error: %v\n", err)
		os.Exit(1)
	}
	return nil
}

func (s *server) close() {
	if s.watchCancel != nil {
		s.watchCancel()
	}
	s.tracker.Close()
	log.Close()
}

func (s *server) handleRequest(line string) {
	var req map[string]any
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		log.Error("invalid JSON request: %s", line)
		s.respond("", map[string]any{"type": "error", "message": "Invalid JSON"})
		return
	}

	action, _ := req["action"].(string)
	log.Request(action, line)
	reqID := requestID(req)

	switch action {
	case "ping":
		s.respond(reqID, map[string]any{"type": "ok"})

	case "version":
		s.respond(reqID, map[string]any{"type": "version", "version": Version})

	case "init":
		s.handleInit(reqID, req)

	case "doc_opened":
		s.tracker.DocumentOpened(workspace.OpenDocument{
			Path:       str(req, "path"),
			Text:       str(req, "text"),
			Version:    num(req, "version"),
			LanguageID: str(req, "language_id"),
		})
		s.respond(reqID, map[string]any{"type": "ok"})

	case "doc_changed":
		s.tracker.DocumentChanged(str(req, "path"), str(req, "text"), num(req, "version"))
		s.respond(reqID, map[string]any{"type": "ok"})

	case "doc_saved":
		s.tracker.DocumentSaved(str(req, "path"))
		s.respond(reqID, map[string]any{"type": "ok"})

	case "doc_closed":
		s.tracker.DocumentClosed(str(req, "path"))
		s.respond(reqID, map[string]any{"type": "ok"})

	case "active_editor":
		s.tracker.ActiveEditorChanged(str(req, "path"))
		s.respond(reqID, map[string]any{"type": "ok"})

	case "file_created":
		s.tracker.FileCreated(str(req, "path"))
		s.respond(reqID, map[string]any{"type": "ok"})

	case "file_deleted":
		s.tracker.FileDeleted(str(req, "path"))
		s.respond(reqID, map[string]any{"type": "ok"})

	case "file_renamed":
		s.tracker.FileRenamed(str(req, "old_path"), str(req, "new_path"))
		s.respond(reqID, map[string]any{"type": "ok"})

	case "diagnostics":
		s.handleDiagnostics(reqID, req)

	case "send":
		s.handleSend(reqID, req)

	case "cancel":
		sessionID := str(req, "session_id")
		if s.ctrl == nil || !s.ctrl.Cancel(sessionID) {
			s.respond(reqID, map[string]any{"type": "error", "message": "No active request to cancel"})
			return
		}
		s.respond(reqID, map[string]any{"type": "ok"})

	case "session_new":
		sess, err := s.sessions.New(str(req, "title"))
		if err != nil {
			s.respond(reqID, errorResponse(err))
			return
		}
		s.respond(reqID, map[string]any{"type": "ok", "id": sess.ID, "title": sess.Title})

	case "session_list":
		s.respond(reqID, map[string]any{"type": "sessions", "sessions": s.sessions.List(), "active_id": s.sessions.ActiveID()})

	case "session_switch":
		sess, err := s.sessions.Switch(str(req, "session_id"))
		if err != nil {
			s.respond(reqID, errorResponse(err))
			return
		}
		s.respond(reqID, map[string]any{"type": "ok", "id": sess.ID, "messages": sess.Messages})

	case "session_rename":
		if err := s.sessions.Rename(str(req, "session_id"), str(req, "title")); err != nil {
			s.respond(reqID, errorResponse(err))
			return
		}
		s.respond(reqID, map[string]any{"type": "ok"})

	case "session_delete":
		if err := s.sessions.Delete(str(req, "session_id")); err != nil {
			s.respond(reqID, errorResponse(err))
			return
		}
		s.respond(reqID, map[string]any{"type": "ok"})

	case "session_search":
		s.respond(reqID, map[string]any{"type": "results", "results": s.sessions.Search(str(req, "query"))})

	case "context_preview":
		if s.ctrl == nil {
			s.respond(reqID, map[string]any{"type": "preview", "preview": turn.Preview{}})
			return
		}
		s.respond(reqID, map[string]any{"type": "preview", "preview": s.ctrl.LastPreview()})

	case "estimate_tokens":
		text := str(req, "text")
		s.respond(reqID, map[string]any{"type": "estimate", "tokens": llm.EstimateTokensSimple(text), "chars": len(text)})

	case "health":
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultHealthTimeout)
		defer cancel()
		if err := s.backend.CheckHealth(ctx); err != nil {
			s.respond(reqID, errorResponse(err))
			return
		}
		s.respond(reqID, map[string]any{"type": "ok"})

	case "shutdown":
		s.respond(reqID, map[string]any{"type": "ok"})
		s.shutdown = true

	default:
		s.respond(reqID, map[string]any{"type": "error", "message": "Unknown action: " + action})
	}
}

func (s *server) handleInit(reqID string, req map[string]any) {
	rootDir := str(req, "root_dir")
	if rootDir == "" {
		s.respond(reqID, map[string]any{"type": "error", "message": "Missing required field: root_dir"})
		return
	}

	files, err := workspace.ListFiles(rootDir, s.cfg.ExcludeGlobs)
	if err != nil {
		s.respond(reqID, errorResponse(err))
		return
	}
	s.tracker.SetFileIndex(files)

	if s.watchCancel != nil {
		s.watchCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel
	go func() {
		if err := workspace.Watch(ctx, rootDir, s.tracker, s.cfg.ExcludeGlobs); err != nil && ctx.Err() == nil {
			log.Error("workspace watcher stopped: %v", err)
		}
	}()

	s.ctrl = turn.NewController(s.cfg, s.backend, s.tracker,
		contextbundle.NewAssembler(document.NewReader(s.cfg.DocumentCap)),
		s.sessions, mention.RegexStrategy{}, rootDir)

	s.respond(reqID, map[string]any{"type": "ok", "files": len(files)})
}

func (s *server) handleDiagnostics(reqID string, req map[string]any) {
	raw, err := json.Marshal(req["items"])
	if err != nil {
		s.respond(reqID, map[string]any{"type": "error", "message": "Invalid diagnostics payload"})
		return
	}
	var diags []workspace.Diagnostic
	if err := json.Unmarshal(raw, &diags); err != nil {
		s.respond(reqID, map[string]any{"type": "error", "message": "Invalid diagnostics payload"})
		return
	}
	s.tracker.SetDiagnostics(diags)
	s.respond(reqID, map[string]any{"type": "ok"})
}

func (s *server) handleSend(reqID string, req map[string]any) {
	if s.ctrl == nil {
		s.respond(reqID, map[string]any{"type": "error", "message": "Not initialized; send init first"})
		return
	}
	text := str(req, "text")
	if text == "" {
		s.respond(reqID, map[string]any{"type": "error", "message": "Missing required field: text"})
		return
	}

	sessionID := str(req, "session_id")
	if sessionID == "" {
		sessionID = s.sessions.ActiveID()
	}
	if sessionID == "" {
		sess, err := s.sessions.New("")
		if err != nil {
			s.respond(reqID, errorResponse(err))
			return
		}
		sessionID = sess.ID
	}

	// Streaming happens off the request loop so editor events keep flowing;
	// turn serialization per session lives in the controller.
	go func() {
		firstExchange := false
		if sess, err := s.sessions.Get(sessionID); err == nil {
			firstExchange = len(sess.Messages) == 0
		}

		out, err := s.ctrl.Run(context.Background(), sessionID, text, turn.Callbacks{
			OnStarted: func(turnID string) {
				s.respond(reqID, map[string]any{"type": "started", "turn_id": turnID, "session_id": sessionID})
			},
			OnChunk: func(delta string) {
				log.Stream("chunk", delta)
				s.respond(reqID, map[string]any{"type": "chunk", "content": delta})
			},
			OnCompleted: func(reply string) {
				s.respond(reqID, map[string]any{"type": "completed", "content": reply})
			},
			OnError: func(err error) {
				if faults.IsCancelled(err) {
					s.respond(reqID, map[string]any{"type": "cancelled"})
					return
				}
				s.respond(reqID, errorResponse(err))
			},
		})
		if err == nil && out.State == turn.StateCommitted && firstExchange {
			s.ctrl.AutoTitle(context.Background(), sessionID)
		}
	}()
}

func errorResponse(err error) map[string]any {
	resp := map[string]any{"type": "error", "message": err.Error()}
	if f, ok := err.(*faults.Fault); ok {
		resp["message"] = f.Message
		resp["code"] = string(f.Code)
		if f.Reason != "" {
			resp["reason"] = string(f.Reason)
		}
	}
	return resp
}

func (s *server) respond(reqID string, data map[string]any) {
	out, _ := json.Marshal(addResponseID(reqID, data))
	msgType, _ := data["type"].(string)
	s.respondMu.Lock()
	defer s.respondMu.Unlock()
	log.Response(msgType, string(out))
	fmt.Fprintln(s.out, string(out))
}

func addResponseID(reqID string, data map[string]any) map[string]any {
	if reqID == "" {
		return data
	}
	data["request_id"] = reqID
	return data
}

func requestID(req map[string]any) string {
	switch v := req["request_id"].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

func str(req map[string]any, key string) string {
	v, _ := req[key].(string)
	return v
}

func num(req map[string]any, key string) int {
	v, _ := req[key].(float64)
	return int(v)
}
