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

// GeminiProvider implements ChatProvider for the Gemini generateContent API
// with Google Search grounding enabled.
type GeminiProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewGeminiProvider creates a Gemini chat variant with defaults.
func NewGeminiProvider() *GeminiProvider {
	return &GeminiProvider{
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// FormatMessages is pass-through role/content. Attachments are injected
// separately as inline binary parts at call time, not here.
func (p *GeminiProvider) FormatMessages(history []types.Message, _ types.ModelCapabilities) []FormattedMessage {
	formatted := make([]FormattedMessage, 0, len(history))
	for _, m := range history {
		formatted = append(formatted, FormattedMessage{Role: string(m.Role), Content: m.Content})
	}
	return formatted
}

// geminiModelName strips a "provider/" prefix from a registry model id, so
// "google/gemini-2.5-flash" resolves to the bare API model name.
func geminiModelName(modelID string) string {
	if idx := strings.Index(modelID, "/"); idx >= 0 {
		return modelID[idx+1:]
	}
	return modelID
}

// buildContents maps formatted messages into Gemini contents. The assistant
// role becomes "model"; inline attachment parts are appended to the last
// user entry.
func buildContents(messages []FormattedMessage, inlineParts []GeminiPart) []GeminiContent {
	contents := make([]GeminiContent, 0, len(messages))
	lastUser := -1
	for _, m := range messages {
		text, _ := m.Content.(string)
		role := "user"
		if m.Role == string(types.RoleAssistant) {
			role = "model"
		}
		contents = append(contents, GeminiContent{
			Role:  role,
			Parts: []GeminiPart{{Text: text}},
		})
		if role == "user" {
			lastUser = len(contents) - 1
		}
	}
	if lastUser >= 0 && len(inlineParts) > 0 {
		contents[lastUser].Parts = append(contents[lastUser].Parts, inlineParts...)
	}
	return contents
}

// StreamResponse opens the streamGenerateContent SSE stream.
func (p *GeminiProvider) StreamResponse(ctx context.Context, req StreamRequest) (io.ReadCloser, error) {
	reqBody := GeminiRequest{
		Contents: buildContents(req.Messages, req.InlineParts),
		Tools:    []GeminiTool{{GoogleSearch: &GeminiGoogleSearch{}}},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", p.baseURL, geminiModelName(req.ModelID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if req.APIKey != "" {
		httpReq.Header.Set("x-goog-api-key", req.APIKey)
	}

	logging.ProviderDebug("[Gemini] StreamResponse: model=%s messages=%d inline_parts=%d",
		req.ModelID, len(req.Messages), len(req.InlineParts))

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Provider: "Gemini", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
		resp.Body.Close()
		logging.ProviderWarn("[Gemini] StreamResponse: status=%d body_len=%d", resp.StatusCode, len(body))
		return nil, classifyStatus("Gemini", resp.StatusCode, body)
	}
	if resp.Body == nil {
		return nil, &ProviderResponseError{Provider: "Gemini", Status: resp.StatusCode, Message: "missing response body"}
	}
	return resp.Body, nil
}

// ParseStreamChunk decodes SSE `data:` lines. Text parts accumulate into the
// token; inlineData parts become generated images. Metadata is replaced each
// chunk with whatever subset of grounding/usage/version fields the chunk
// carries; the orchestrator merges chunks additively.
func (p *GeminiProvider) ParseStreamChunk(data []byte, st *DecoderState) StreamChunk {
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
		if payload == "[DONE]" {
			break
		}

		var chunk GeminiStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}

		meta := types.ResponseMetadata{
			UsageMetadata: chunk.UsageMetadata,
			ModelVersion:  chunk.ModelVersion,
			ResponseID:    chunk.ResponseID,
		}
		if len(chunk.Candidates) > 0 {
			candidate := chunk.Candidates[0]
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					out.Token += part.Text
					continue
				}
				if part.InlineData != nil {
					mime := part.InlineData.MimeType
					if mime == "" {
						mime = "image/png"
					}
					meta.Images = append(meta.Images, types.GeneratedImage{
						MimeType: mime,
						Data:     part.InlineData.Data,
					})
				}
			}
			if gm := candidate.GroundingMetadata; gm != nil {
				meta.GroundingChunks = gm.GroundingChunks
				meta.GroundingSupports = gm.GroundingSupports
				meta.WebSearchQueries = gm.WebSearchQueries
			}
		}
		// Full replacement per chunk: later lines in the same network chunk
		// win, matching the last-write semantics of the wire format.
		if meta.Images != nil && out.Metadata.Images != nil {
			meta.Images = append(out.Metadata.Images, meta.Images...)
		}
		out.Metadata = meta
	}
	return out
}
