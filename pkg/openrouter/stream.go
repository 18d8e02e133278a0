package openrouter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// maxErrorBody bounds how much of a failed stream response is read.
	maxErrorBody = 1 << 20
	// maxEventSize bounds a single SSE line.
	maxEventSize = 4 << 20

	ssePrefix = "data: "
)

// StreamEvent is one item of a streaming completion. Exactly one of Chunk and
// Err is set; an event with Err is always the last one.
type StreamEvent struct {
	Chunk *ChatCompletionChunk
	Err   error
}

// StreamChatCompletion starts a streaming completion and returns its events.
// The request runs on a copy with stream set to true.
//
// Any stream already running on c is cancelled first and its channel closes
// without an error. The returned channel is closed when the server ends the
// stream, when ctx is done, or when the stream is superseded or stopped.
// Failures, including non-2xx responses, arrive as a final event with Err.
//
// Callers must drain the channel or call StopStreaming. A failure that nobody
// receives holds the goroutine and the response body until the stream is
// stopped or superseded.
func (c *Client) StreamChatCompletion(ctx context.Context, req ChatCompletionRequest) (<-chan StreamEvent, error) {
	streaming := req.clone()
	streaming.Stream = Bool(true)

	streamCtx, session := c.beginStream(ctx)
	httpReq, err := c.newRequest(streamCtx, http.MethodPost, endpointChatCompletions, streaming)
	if err != nil {
		c.endStream(session)
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	events := make(chan StreamEvent)
	go c.runStream(streamCtx, session, httpReq, events)
	return events, nil
}

// StopStreaming cancels the running stream, if any. Its channel closes without
// an error. Calling it while idle does nothing.
func (c *Client) StopStreaming() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		c.stream.stop()
		c.stream = nil
	}
}

// streamSession is the cancellation handle of the running stream.
type streamSession struct {
	id      uint64
	cancel  context.CancelFunc
	stopped chan struct{}
}

func (s *streamSession) stop() {
	s.cancel()
	close(s.stopped)
}

// beginStream stops the current stream and registers a new one.
func (c *Client) beginStream(parent context.Context) (context.Context, *streamSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		c.stream.stop()
	}
	ctx, cancel := context.WithCancel(parent)
	c.streamSeq++
	c.stream = &streamSession{id: c.streamSeq, cancel: cancel, stopped: make(chan struct{})}
	return ctx, c.stream
}

// endStream releases s unless it has already been stopped or replaced.
func (c *Client) endStream(s *streamSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == s {
		s.stop()
		c.stream = nil
	}
}

func (c *Client) runStream(ctx context.Context, session *streamSession, httpReq *http.Request, events chan<- StreamEvent) {
	defer close(events)
	defer c.endStream(session)

	emit := func(ev StreamEvent) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case events <- ev:
			return true
		}
	}
	// A cancelled stream ends quietly. Any other failure, including an
	// expired deadline on ctx, is delivered unless the session is stopped.
	fail := func(err error) {
		if errors.Is(ctx.Err(), context.Canceled) {
			c.logger.Debug("stream cancelled", "stream", session.id)
			return
		}
		select {
		case <-session.stopped:
		case events <- StreamEvent{Err: err}:
		}
	}

	httpResp, err := c.doer.Do(httpReq)
	if err != nil {
		fail(fmt.Errorf("openrouter: open stream: %w", err))
		return
	}
	if httpResp == nil {
		fail(ErrInvalidResponse)
		return
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		if err != nil {
			fail(fmt.Errorf("openrouter: read stream error body: %w", err))
			return
		}
		fail(checkStatus(httpResp.StatusCode, body))
		return
	}

	err = readEvents(httpResp.Body, c.logger, func(chunk ChatCompletionChunk) bool {
		return emit(StreamEvent{Chunk: &chunk})
	})
	if err != nil && !errors.Is(err, io.EOF) {
		fail(fmt.Errorf("openrouter: read stream: %w", err))
		return
	}
	if err := ctx.Err(); err != nil {
		fail(fmt.Errorf("openrouter: read stream: %w", err))
		return
	}
	c.logger.Debug("stream finished", "stream", session.id)
}

// readEvents scans r line by line and calls fn for every "data: " line that
// decodes as a chunk. Other lines, including the "[DONE]" sentinel and
// undecodable frames, are skipped. It stops early when fn returns false.
func readEvents(r io.Reader, logger *slog.Logger, fn func(ChatCompletionChunk) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	for scanner.Scan() {
		payload, ok := strings.CutPrefix(strings.TrimSuffix(scanner.Text(), "\r"), ssePrefix)
		if !ok {
			continue
		}
		chunk, err := decodeChunk([]byte(payload))
		if err != nil {
			logger.Debug("dropping stream frame", "error", err)
			continue
		}
		if !fn(chunk) {
			return nil
		}
	}
	return scanner.Err()
}

// decodeChunk requires the id and choices members so that comment-like frames
// and the [DONE] sentinel are not mistaken for empty chunks.
func decodeChunk(data []byte) (ChatCompletionChunk, error) {
	var chunk ChatCompletionChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return chunk, err
	}
	if chunk.ID == "" || chunk.Choices == nil {
		return chunk, errors.New("openrouter: stream frame is not a completion chunk")
	}
	return chunk, nil
}

// CollectStream drains events and returns the concatenated delta content and
// the last usage report seen.
func CollectStream(events <-chan StreamEvent) (string, *Usage, error) {
	var sb strings.Builder
	var usage *Usage
	for ev := range events {
		if ev.Err != nil {
			return sb.String(), usage, ev.Err
		}
		sb.WriteString(ev.Chunk.Content())
		if ev.Chunk.Usage != nil {
			usage = ev.Chunk.Usage
		}
	}
	return sb.String(), usage, nil
}
