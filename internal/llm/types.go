package llm

import (
	"context"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/config"
)

// GenerateRequest is the body for POST /api/generate.
type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options *config.Options `json:"options,omitempty"`
}

// GenerateChunk is one NDJSON line of a streaming response. Non-streaming
// responses use the same shape with Done set and the full text in Response.
type GenerateChunk struct {
	Model     string `json:"model,omitempty"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	Error     string `json:"error,omitempty"`
	EvalCount int    `json:"eval_count,omitempty"`
}

// ChunkCallback receives each piece of streamed model output.
type ChunkCallback func(text string)

// Backend is the model-serving surface the turn lifecycle depends on.
type Backend interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	StreamGenerate(ctx context.Context, req GenerateRequest, onChunk ChunkCallback) error
	CheckHealth(ctx context.Context) error
}
