package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aaleccoder/taulechat-sub000/internal/logging"
	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

// GeminiImageProvider implements ChatProvider for Gemini image generation.
// The :predict endpoint is not streaming; the single response is wrapped
// into a one-shot synthetic stream yielding one chunk with the full image
// list, then closing.
type GeminiImageProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewGeminiImageProvider creates the image-generation variant with defaults.
func NewGeminiImageProvider() *GeminiImageProvider {
	return &GeminiImageProvider{
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// FormatMessages keeps only the latest user message; image generation takes
// a single prompt, not a conversation.
func (p *GeminiImageProvider) FormatMessages(history []types.Message, _ types.ModelCapabilities) []FormattedMessage {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == types.RoleUser {
			return []FormattedMessage{{Role: "user", Content: history[i].Content}}
		}
	}
	return nil
}

// StreamResponse issues the :predict call and wraps the parsed image list
// into a synthetic one-chunk stream.
func (p *GeminiImageProvider) StreamResponse(ctx context.Context, req StreamRequest) (io.ReadCloser, error) {
	prompt := ""
	if len(req.Messages) > 0 {
		prompt, _ = req.Messages[0].Content.(string)
	}
	sampleCount := 1
	if req.Parameters != nil && req.Parameters.SampleCount > 0 {
		sampleCount = req.Parameters.SampleCount
	}
	reqBody := GeminiPredictRequest{
		Instances:  []GeminiPredictInstance{{Prompt: prompt}},
		Parameters: GeminiPredictParameters{SampleCount: sampleCount},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:predict", p.baseURL, geminiModelName(req.ModelID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.APIKey != "" {
		httpReq.Header.Set("x-goog-api-key", req.APIKey)
	}

	logging.ProviderDebug("[GeminiImage] StreamResponse: model=%s sample_count=%d", req.ModelID, sampleCount)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Provider: "Gemini", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024*1024))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Provider: "Gemini", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus("Gemini", resp.StatusCode, body)
	}

	var predictResp GeminiPredictResponse
	if err := json.Unmarshal(body, &predictResp); err != nil {
		return nil, &ProviderResponseError{Provider: "Gemini", Status: resp.StatusCode, Message: "unparseable predict response"}
	}

	chunk := syntheticImageChunk{}
	for _, pred := range predictResp.Predictions {
		mime := pred.MimeType
		if mime == "" {
			mime = "image/png"
		}
		chunk.Images = append(chunk.Images, types.GeneratedImage{
			MimeType: mime,
			Data:     pred.BytesBase64Encoded,
		})
	}
	synthetic, err := json.Marshal(chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthetic chunk: %w", err)
	}

	// Frame the chunk as a single SSE data line. Readers consume the stream
	// in fixed-size pieces, so the payload must survive being split; the
	// decoder's line carry reassembles it no matter the read size.
	framed := make([]byte, 0, len(synthetic)+8)
	framed = append(framed, "data: "...)
	framed = append(framed, synthetic...)
	framed = append(framed, '\n')
	return io.NopCloser(bytes.NewReader(framed)), nil
}

// ParseStreamChunk decodes the synthetic data line into an image-list
// metadata update. The image payload is far larger than a typical read, so
// decoding goes through the same line-carry state as the chat variants; a
// partial read contributes nothing until the line completes. Unparseable
// complete lines fall through as token text.
func (p *GeminiImageProvider) ParseStreamChunk(data []byte, st *DecoderState) StreamChunk {
	var out StreamChunk
	for _, line := range st.Lines(data) {
		text := string(line)
		if !strings.HasPrefix(text, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(text, "data:"))
		if payload == "" {
			continue
		}
		var parsed syntheticImageChunk
		if err := json.Unmarshal([]byte(payload), &parsed); err == nil && len(parsed.Images) > 0 {
			out.Metadata.Images = append(out.Metadata.Images, parsed.Images...)
			continue
		}
		out.Token += payload
	}
	return out
}
