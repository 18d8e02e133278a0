package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkLine(id, content string) string {
	return `data: {"id":"` + id + `","provider":"p","model":"m","object":"chat.completion.chunk","created":1735689600,` +
		`"choices":[{"index":0,"delta":{"role":"assistant","content":"` + content + `"},"finish_reason":null}]}`
}

// sseHandler writes lines as an event stream, flushing after each.
func sseHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range lines {
			io.WriteString(w, l+"\n")
			w.(http.Flusher).Flush()
		}
	}
}

func drain(t *testing.T, events <-chan StreamEvent) ([]*ChatCompletionChunk, error) {
	t.Helper()
	var chunks []*ChatCompletionChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return chunks, nil
			}
			if ev.Err != nil {
				_, open := <-events
				assert.False(t, open, "error must be the last event")
				return chunks, ev.Err
			}
			chunks = append(chunks, ev.Chunk)
		case <-timeout:
			t.Fatal("stream did not finish")
			return nil, nil
		}
	}
}

func TestReadEvents_SkipsNonDataAndBadFrames(t *testing.T) {
	input := strings.Join([]string{
		": OPENROUTER PROCESSING",
		"",
		chunkLine("c1", "Hel"),
		"event: ping",
		"data: {malformed",
		chunkLine("c2", "lo") + "\r",
		`data: {"unrelated":true}`,
		"data: [DONE]",
	}, "\n")

	var got []string
	err := readEvents(strings.NewReader(input), slog.New(slog.NewTextHandler(io.Discard, nil)), func(c ChatCompletionChunk) bool {
		got = append(got, c.ID+":"+c.Content())
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1:Hel", "c2:lo"}, got)
}

func TestReadEvents_StopsWhenConsumerDeclines(t *testing.T) {
	input := chunkLine("c1", "a") + "\n" + chunkLine("c2", "b") + "\n"
	calls := 0
	err := readEvents(strings.NewReader(input), slog.New(slog.NewTextHandler(io.Discard, nil)), func(ChatCompletionChunk) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestStreamChatCompletion_DeliversChunks(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))
		sseHandler(
			": OPENROUTER PROCESSING",
			chunkLine("c1", "Hello"),
			"data: {malformed}",
			chunkLine("c2", " world"),
			"data: [DONE]",
		)(w, r)
	})

	req := ChatCompletionRequest{Model: "m", Messages: []Message{UserMessage("hi")}}
	events, err := c.StreamChatCompletion(t.Context(), req)
	require.NoError(t, err)

	chunks, err := drain(t, events)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Hello", chunks[0].Content())
	assert.Equal(t, RoleAssistant, chunks[0].Choices[0].Delta.Role)
	assert.Equal(t, int64(1735689600), chunks[1].Created.Unix())

	assert.Equal(t, true, body["stream"])
	assert.Nil(t, req.Stream)
}

func TestStreamChatCompletion_NonSuccessStatus(t *testing.T) {
	t.Run("error envelope", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":{"code":400,"message":"bad model"}}`)
		})
		events, err := c.StreamChatCompletion(t.Context(), ChatCompletionRequest{Model: "m"})
		require.NoError(t, err)

		chunks, err := drain(t, events)
		assert.Empty(t, chunks)
		apiErr, ok := AsAPIError(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, 400, apiErr.StatusCode)
		assert.Equal(t, "bad model", apiErr.Message)
	})

	t.Run("plain status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		events, err := c.StreamChatCompletion(t.Context(), ChatCompletionRequest{Model: "m"})
		require.NoError(t, err)

		_, err = drain(t, events)
		statusErr, ok := AsStatusError(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	})
}

func TestStreamChatCompletion_ErrorBodyIsBounded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		// A complete envelope, but its closing braces sit past the read limit.
		io.WriteString(w, `{"error":{"code":400,"message":"`+strings.Repeat("x", maxErrorBody)+`"}}`)
	})
	events, err := c.StreamChatCompletion(t.Context(), ChatCompletionRequest{Model: "m"})
	require.NoError(t, err)

	chunks, err := drain(t, events)
	assert.Empty(t, chunks)
	_, isAPI := AsAPIError(err)
	assert.False(t, isAPI, "truncated envelope must not decode")
	statusErr, ok := AsStatusError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}

func TestStopStreaming_ReleasesUndeliveredFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	events, err := c.StreamChatCompletion(ctx, ChatCompletionRequest{Model: "m"})
	require.NoError(t, err)

	// Nobody reads while the deadline passes.
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	c.StopStreaming()

	chunks, err := drain(t, events)
	assert.Empty(t, chunks)
	if err != nil {
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
}

func TestStreamChatCompletion_NewStreamSupersedesOld(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if strings.Contains(string(data), "first") {
			w.Header().Set("Content-Type", "text/event-stream")
			w.(http.Flusher).Flush()
			<-r.Context().Done()
			return
		}
		sseHandler(chunkLine("s1", "second"), chunkLine("s2", " stream"))(w, r)
	})

	first, err := c.StreamChatCompletion(t.Context(), ChatCompletionRequest{Model: "m", Messages: []Message{UserMessage("first")}})
	require.NoError(t, err)
	second, err := c.StreamChatCompletion(t.Context(), ChatCompletionRequest{Model: "m", Messages: []Message{UserMessage("second")}})
	require.NoError(t, err)

	chunks, err := drain(t, first)
	require.NoError(t, err, "a superseded stream ends without error")
	assert.Empty(t, chunks)

	text, _, err := CollectStream(second)
	require.NoError(t, err)
	assert.Equal(t, "second stream", text)
}

func TestStopStreaming(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		c := New("k")
		c.StopStreaming()
		c.StopStreaming()
	})

	t.Run("active", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			sseHandler(chunkLine("c1", "partial"))(w, r)
			<-r.Context().Done()
		})
		events, err := c.StreamChatCompletion(t.Context(), ChatCompletionRequest{Model: "m"})
		require.NoError(t, err)

		ev := <-events
		require.NoError(t, ev.Err)
		assert.Equal(t, "partial", ev.Chunk.Content())

		c.StopStreaming()
		chunks, err := drain(t, events)
		assert.NoError(t, err)
		assert.Empty(t, chunks)

		c.StopStreaming()
	})
}

func TestCollectStream_UsageAndError(t *testing.T) {
	events := make(chan StreamEvent, 3)
	events <- StreamEvent{Chunk: &ChatCompletionChunk{Choices: []ChunkChoice{{Delta: Delta{Content: "a"}}}}}
	events <- StreamEvent{Chunk: &ChatCompletionChunk{Choices: []ChunkChoice{}, Usage: &Usage{TotalTokens: 9}}}
	close(events)

	text, usage, err := CollectStream(events)
	require.NoError(t, err)
	assert.Equal(t, "a", text)
	assert.Equal(t, 9, usage.TotalTokens)

	failing := make(chan StreamEvent, 2)
	failing <- StreamEvent{Chunk: &ChatCompletionChunk{Choices: []ChunkChoice{{Delta: Delta{Content: "b"}}}}}
	failing <- StreamEvent{Err: &StatusError{StatusCode: 500}}
	close(failing)

	text, _, err = CollectStream(failing)
	assert.Equal(t, "b", text)
	assert.Error(t, err)
}

func TestUnixTime(t *testing.T) {
	var ts UnixTime
	require.NoError(t, json.Unmarshal([]byte("1735689600.5"), &ts))
	assert.Equal(t, int64(1735689600), ts.Unix())
	assert.Equal(t, 500*time.Millisecond, time.Duration(ts.Nanosecond()))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, "1735689600.5", string(data))

	require.NoError(t, json.Unmarshal([]byte("null"), &ts))
	assert.True(t, ts.IsZero())
}
