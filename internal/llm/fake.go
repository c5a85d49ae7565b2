package llm

import (
	"context"
	"sync"
)

// FakeBackend is an in-memory Backend for tests. Chunks are replayed in
// order on StreamGenerate; Reply answers Generate. Err, when set, is
// returned before any output.
type FakeBackend struct {
	mu     sync.Mutex
	Chunks []string
	Reply  string
	Err    error

	// ChunkDelay, when set, is called between chunks so tests can inject
	// cancellation or edits mid-stream.
	ChunkDelay func(i int)

	GenerateCalls []GenerateRequest
	StreamCalls   []GenerateRequest
}

func (f *FakeBackend) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	f.mu.Lock()
	f.GenerateCalls = append(f.GenerateCalls, req)
	f.mu.Unlock()

	if f.Err != nil {
		return "", f.Err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.Reply, nil
}

func (f *FakeBackend) StreamGenerate(ctx context.Context, req GenerateRequest, onChunk ChunkCallback) error {
	f.mu.Lock()
	f.StreamCalls = append(f.StreamCalls, req)
	f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	for i, c := range f.Chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		onChunk(c)
		if f.ChunkDelay != nil {
			f.ChunkDelay(i)
		}
	}
	return ctx.Err()
}

func (f *FakeBackend) CheckHealth(ctx context.Context) error {
	return f.Err
}

// Streamed reports how many streaming requests the fake has served.
func (f *FakeBackend) Streamed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.StreamCalls)
}
