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

const openRouterMaxImageParts = 2

// OpenRouterProvider implements ChatProvider for the OpenRouter API.
// OpenRouter exposes many upstream models behind a single OpenAI-style
// chat completions endpoint.
type OpenRouterProvider struct {
	baseURL    string
	siteURL    string
	siteName   string
	httpClient *http.Client
}

// NewOpenRouterProvider creates an OpenRouter variant with defaults.
func NewOpenRouterProvider() *OpenRouterProvider {
	return &OpenRouterProvider{
		baseURL:  "https://openrouter.ai/api/v1",
		siteName: "taulechat",
		httpClient: &http.Client{
			Timeout: 10 * time.Minute, // streaming responses can run long
		},
	}
}

// FormatMessages maps history into OpenAI-style messages. User messages with
// attachments become a content-parts array of one text part and up to two
// image_url parts (base64 data URLs) when the model accepts image input.
func (p *OpenRouterProvider) FormatMessages(history []types.Message, caps types.ModelCapabilities) []FormattedMessage {
	formatted := make([]FormattedMessage, 0, len(history))
	for _, m := range history {
		if m.Role == types.RoleUser && len(m.Files) > 0 {
			var parts []OpenRouterContentPart
			if strings.TrimSpace(m.Content) != "" {
				parts = append(parts, OpenRouterContentPart{Type: "text", Text: m.Content})
			}
			if caps.ImageInput {
				count := 0
				for _, f := range m.Files {
					if count >= openRouterMaxImageParts {
						break
					}
					if !strings.HasPrefix(f.MimeType, "image/") {
						continue
					}
					parts = append(parts, OpenRouterContentPart{
						Type: "image_url",
						ImageURL: &OpenRouterImageURL{
							URL: fmt.Sprintf("data:%s;base64,%s", f.MimeType, f.Base64),
						},
					})
					count++
				}
			}
			if len(parts) > 0 {
				formatted = append(formatted, FormattedMessage{Role: string(m.Role), Content: parts})
				continue
			}
		}
		formatted = append(formatted, FormattedMessage{Role: string(m.Role), Content: m.Content})
	}
	return formatted
}

// StreamResponse opens the chat completions stream and returns the raw body.
func (p *OpenRouterProvider) StreamResponse(ctx context.Context, req StreamRequest) (io.ReadCloser, error) {
	reqBody := OpenRouterRequest{
		Model:    req.ModelID,
		Messages: req.Messages,
		Stream:   true,
		Usage:    &OpenRouterUsageOptions{Include: true},
	}
	if params := req.Parameters; params != nil {
		reqBody.Temperature = params.Temperature
		reqBody.TopP = params.TopP
		reqBody.MaxTokens = params.MaxTokens
		reqBody.FrequencyPenalty = params.FrequencyPenalty
		reqBody.PresencePenalty = params.PresencePenalty
		if params.ReasoningEnabled {
			reqBody.Reasoning = &OpenRouterReasoning{Enabled: true, Effort: params.ReasoningEffort}
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("HTTP-Referer", p.siteURL)
	httpReq.Header.Set("X-Title", p.siteName)

	logging.ProviderDebug("[OpenRouter] StreamResponse: model=%s messages=%d", req.ModelID, len(req.Messages))

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Provider: "OpenRouter", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
		resp.Body.Close()
		logging.ProviderWarn("[OpenRouter] StreamResponse: status=%d body_len=%d", resp.StatusCode, len(body))
		return nil, classifyStatus("OpenRouter", resp.StatusCode, body)
	}
	if resp.Body == nil {
		return nil, &ProviderResponseError{Provider: "OpenRouter", Status: resp.StatusCode, Message: "missing response body"}
	}
	return resp.Body, nil
}

// ParseStreamChunk decodes SSE `data:` lines. Token text accumulates from
// choices[0].delta.content, thoughts from reasoning_details entries of type
// "reasoning.text". Usage is replaced wholesale when present since it only
// appears in the terminal chunk. Image deltas are mutually exclusive with
// token chunks.
func (p *OpenRouterProvider) ParseStreamChunk(data []byte, st *DecoderState) StreamChunk {
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

		var chunk OpenRouterStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if chunk.ID != "" {
			out.Metadata.ResponseID = chunk.ID
		}
		if chunk.Model != "" {
			out.Metadata.ModelVersion = chunk.Model
		}
		if chunk.Usage != nil {
			out.Metadata.UsageMetadata = &types.UsageMetadata{
				PromptTokenCount:     chunk.Usage.PromptTokens,
				CandidatesTokenCount: chunk.Usage.CompletionTokens,
				TotalTokenCount:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		out.Token += delta.Content
		for _, rd := range delta.ReasoningDetails {
			if rd.Type == "reasoning.text" {
				out.Thoughts += rd.Text
			}
		}
		for _, img := range delta.Images {
			if img.ImageURL == nil {
				continue
			}
			mime, b64, ok := parseDataURL(img.ImageURL.URL)
			if !ok {
				continue
			}
			out.Metadata.Images = append(out.Metadata.Images, types.GeneratedImage{
				MimeType: mime,
				Data:     b64,
			})
		}
	}
	return out
}

// parseDataURL splits "data:<mime>;base64,<data>" into its components.
func parseDataURL(url string) (mime, data string, ok bool) {
	if !strings.HasPrefix(url, "data:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(url, "data:")
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", "", false
	}
	mime = rest[:sep]
	data = rest[sep+len(";base64,"):]
	if mime == "" {
		mime = "image/png"
	}
	return mime, data, true
}
