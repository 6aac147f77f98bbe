package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
		}
	}))
}

func readAllChunks(t *testing.T, p ChatProvider, reader io.ReadCloser) (content, thoughts string, meta types.ResponseMetadata) {
	t.Helper()
	defer reader.Close()
	var st DecoderState
	buf := make([]byte, 16) // small reads force line splits across chunks
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			chunk := p.ParseStreamChunk(buf[:n], &st)
			content += chunk.Token
			thoughts += chunk.Thoughts
			if chunk.Metadata.UsageMetadata != nil {
				meta.UsageMetadata = chunk.Metadata.UsageMetadata
			}
			if chunk.Metadata.ModelVersion != "" {
				meta.ModelVersion = chunk.Metadata.ModelVersion
			}
			if chunk.Metadata.Images != nil {
				meta.Images = chunk.Metadata.Images
			}
		}
		if err == io.EOF {
			return
		}
		require.NoError(t, err)
	}
}

func TestOpenRouterTokenAccumulation(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo, "}}]}`,
		`data: {"choices":[{"delta":{"content":"world"}}]}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	p := NewOpenRouterProvider()
	p.baseURL = srv.URL

	reader, err := p.StreamResponse(context.Background(), StreamRequest{ModelID: "test/model", APIKey: "k"})
	require.NoError(t, err)

	content, _, _ := readAllChunks(t, p, reader)
	assert.Equal(t, "Hello, world", content)
}

func TestOpenRouterReasoningAndUsage(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"id":"gen-1","model":"test/model-v1","choices":[{"delta":{"reasoning_details":[{"type":"reasoning.text","text":"thinking "},{"type":"reasoning.summary","text":"skipped"}]}}]}`,
		`data: {"choices":[{"delta":{"content":"answer"}}]}`,
		`data: {"choices":[{"delta":{}}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	p := NewOpenRouterProvider()
	p.baseURL = srv.URL

	reader, err := p.StreamResponse(context.Background(), StreamRequest{ModelID: "test/model", APIKey: "k"})
	require.NoError(t, err)

	content, thoughts, meta := readAllChunks(t, p, reader)
	assert.Equal(t, "answer", content)
	assert.Equal(t, "thinking ", thoughts)
	require.NotNil(t, meta.UsageMetadata)
	assert.Equal(t, 15, meta.UsageMetadata.TotalTokenCount)
	assert.Equal(t, 10, meta.UsageMetadata.PromptTokenCount)
	assert.Equal(t, "test/model-v1", meta.ModelVersion)
}

func TestOpenRouterImageDelta(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"images":[{"type":"image_url","image_url":{"url":"data:image/png;base64,aGVsbG8="}}]}}]}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	p := NewOpenRouterProvider()
	p.baseURL = srv.URL

	reader, err := p.StreamResponse(context.Background(), StreamRequest{ModelID: "test/model", APIKey: "k"})
	require.NoError(t, err)

	content, _, meta := readAllChunks(t, p, reader)
	assert.Empty(t, content)
	require.Len(t, meta.Images, 1)
	assert.Equal(t, "image/png", meta.Images[0].MimeType)
	assert.Equal(t, "aGVsbG8=", meta.Images[0].Data)
}

func TestOpenRouterStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		check  func(t *testing.T, err error)
	}{
		{http.StatusUnauthorized, func(t *testing.T, err error) {
			var e *APIKeyError
			assert.ErrorAs(t, err, &e)
		}},
		{http.StatusTooManyRequests, func(t *testing.T, err error) {
			var e *RateLimitError
			assert.ErrorAs(t, err, &e)
			assert.True(t, IsRateLimit(err))
		}},
		{http.StatusPaymentRequired, func(t *testing.T, err error) {
			var e *PaymentRequiredError
			assert.ErrorAs(t, err, &e)
			assert.Equal(t, "insufficient credits", e.Message)
		}},
		{http.StatusInternalServerError, func(t *testing.T, err error) {
			var e *ProviderResponseError
			assert.ErrorAs(t, err, &e)
			assert.Equal(t, http.StatusInternalServerError, e.Status)
		}},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, `{"error":{"message":"insufficient credits"}}`)
			}))
			defer srv.Close()

			p := NewOpenRouterProvider()
			p.baseURL = srv.URL

			_, err := p.StreamResponse(context.Background(), StreamRequest{ModelID: "m", APIKey: "k"})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestOpenRouterCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p := NewOpenRouterProvider()
	p.baseURL = srv.URL

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.StreamResponse(ctx, StreamRequest{ModelID: "m", APIKey: "k"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenRouterFormatMessagesWithImages(t *testing.T) {
	p := NewOpenRouterProvider()
	history := []types.Message{
		{Role: types.RoleUser, Content: "look at these", Files: []types.MessageFile{
			{FileName: "a.png", MimeType: "image/png", Base64: "aaa"},
			{FileName: "b.png", MimeType: "image/png", Base64: "bbb"},
			{FileName: "c.png", MimeType: "image/png", Base64: "ccc"},
		}},
		{Role: types.RoleAssistant, Content: "ok"},
	}

	formatted := p.FormatMessages(history, types.ModelCapabilities{ImageInput: true})
	require.Len(t, formatted, 2)

	parts, ok := formatted[0].Content.([]OpenRouterContentPart)
	require.True(t, ok)
	// one text part plus at most two image parts
	require.Len(t, parts, 3)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "image_url", parts[1].Type)
	assert.Equal(t, "data:image/png;base64,aaa", parts[1].ImageURL.URL)
	assert.Equal(t, "data:image/png;base64,bbb", parts[2].ImageURL.URL)

	// Without image input the attachments are dropped and only the text
	// part remains, still as a content-parts array.
	formatted = p.FormatMessages(history, types.ModelCapabilities{})
	parts, ok = formatted[0].Content.([]OpenRouterContentPart)
	require.True(t, ok)
	require.Len(t, parts, 1)
	assert.Equal(t, "text", parts[0].Type)
}

func TestDecoderStateSplitLines(t *testing.T) {
	var st DecoderState

	lines := st.Lines([]byte("data: {\"a\":"))
	assert.Empty(t, lines)

	lines = st.Lines([]byte("1}\ndata: par"))
	require.Len(t, lines, 1)
	assert.Equal(t, `data: {"a":1}`, string(lines[0]))

	lines = st.Lines([]byte("tial\r\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, "data: partial", string(lines[0]))

	assert.Empty(t, st.Flush())
}
