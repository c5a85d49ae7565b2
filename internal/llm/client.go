// Package llm talks to an Ollama-compatible model server.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/faults"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/logging"
)

var log = logging.Get()

const defaultRequestTimeout = 120 * time.Second

// Client is the HTTP implementation of Backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL. timeout bounds each
// request end to end; zero means the default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate sends a non-streaming request and returns the full response text.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	req.Stream = false

	resp, err := c.post(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chunk GenerateChunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return "", faults.NewStreamFailure(faults.StreamMalformed, err.Error())
	}
	if chunk.Error != "" {
		return "", faults.NewStreamFailure(faults.StreamStatus, chunk.Error)
	}
	return chunk.Response, nil
}

// StreamGenerate sends a streaming request and calls onChunk per NDJSON line
// of model output. Returns after the done line, an error line, or a transport
// failure. Cancellation via ctx surfaces as ctx.Err().
func (c *Client) StreamGenerate(ctx context.Context, req GenerateRequest, onChunk ChunkCallback) error {
	req.Stream = true

	resp, err := c.post(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.processStream(ctx, resp.Body, onChunk)
}

// CheckHealth verifies the server is reachable.
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("health check failed: %v", err)
		return faults.NewBackendUnavailable(c.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return faults.NewBackendUnavailable(c.baseURL)
	}
	return nil
}

func (c *Client) post(ctx context.Context, body GenerateRequest) (*http.Response, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug("HTTP POST %s/api/generate (model: %s, stream: %v, prompt: %d chars)",
		c.baseURL, body.Model, body.Stream, len(body.Prompt))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("HTTP request failed: %v", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, faults.NewStreamFailure(faults.StreamTimeout, err.Error())
		}
		return nil, faults.NewBackendUnavailable(c.baseURL)
	}

	log.Debug("HTTP response status: %d", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		log.Error("backend error %d: %s", resp.StatusCode, string(respBody))
		return nil, faults.NewStreamFailure(faults.StreamStatus,
			fmt.Sprintf("%d - %s", resp.StatusCode, string(respBody)))
	}
	return resp, nil
}

// processStream reads NDJSON lines and forwards model output to onChunk.
func (c *Client) processStream(ctx context.Context, reader io.Reader, onChunk ChunkCallback) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	log.Debug("starting NDJSON stream processing")

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk GenerateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Skip malformed lines rather than aborting mid-stream.
			log.Debug("skipping malformed stream line: %v", err)
			continue
		}

		if chunk.Error != "" {
			return faults.NewStreamFailure(faults.StreamStatus, chunk.Error)
		}
		if chunk.Response != "" {
			onChunk(chunk.Response)
		}
		if chunk.Done {
			log.Debug("stream done (eval_count: %d)", chunk.EvalCount)
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		// A canceled context closes the HTTP body and the scanner sees an IO
		// error. Return the context error so callers can detect the abort and
		// keep the partial response.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("stream scanner error: %v", err)
		return faults.NewStreamFailure(faults.StreamMalformed, err.Error())
	}

	// Stream closed without a done line.
	return faults.NewStreamFailure(faults.StreamMalformed, "stream ended without done marker")
}
