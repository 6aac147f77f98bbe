package provider

import "github.com/aaleccoder/taulechat-sub000/internal/types"

// Wire structures for the OpenRouter chat completions API.

// OpenRouterReasoning controls the reasoning block of a request.
type OpenRouterReasoning struct {
	Enabled bool   `json:"enabled"`
	Effort  string `json:"effort,omitempty"`
}

// OpenRouterUsageOptions asks the backend to include usage in the terminal chunk.
type OpenRouterUsageOptions struct {
	Include bool `json:"include"`
}

// OpenRouterRequest is the streaming chat completions request body.
type OpenRouterRequest struct {
	Model            string                  `json:"model"`
	Messages         []FormattedMessage      `json:"messages"`
	Stream           bool                    `json:"stream"`
	Reasoning        *OpenRouterReasoning    `json:"reasoning,omitempty"`
	Usage            *OpenRouterUsageOptions `json:"usage,omitempty"`
	Temperature      *float64                `json:"temperature,omitempty"`
	TopP             *float64                `json:"top_p,omitempty"`
	MaxTokens        *int                    `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64                `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64                `json:"presence_penalty,omitempty"`
}

// OpenRouterContentPart is one entry of a content-parts array message.
type OpenRouterContentPart struct {
	Type     string              `json:"type"` // "text" or "image_url"
	Text     string              `json:"text,omitempty"`
	ImageURL *OpenRouterImageURL `json:"image_url,omitempty"`
}

// OpenRouterImageURL carries a base64 data URL.
type OpenRouterImageURL struct {
	URL string `json:"url"`
}

// OpenRouterImageDelta is one generated image inside a streaming delta.
type OpenRouterImageDelta struct {
	Type     string              `json:"type"`
	ImageURL *OpenRouterImageURL `json:"image_url,omitempty"`
}

// OpenRouterReasoningDetail is one entry of delta.reasoning_details.
type OpenRouterReasoningDetail struct {
	Type string `json:"type"` // only "reasoning.text" carries text
	Text string `json:"text,omitempty"`
}

// OpenRouterStreamChunk is one decoded `data:` line of the SSE response.
type OpenRouterStreamChunk struct {
	ID      string `json:"id,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Delta struct {
			Content          string                      `json:"content,omitempty"`
			ReasoningDetails []OpenRouterReasoningDetail `json:"reasoning_details,omitempty"`
			Images           []OpenRouterImageDelta      `json:"images,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Wire structures for the Gemini generateContent API.

// GeminiInlineData is base64-encoded binary content inside a part.
type GeminiInlineData struct {
	MimeType string `json:"mime_type,omitempty"`
	Data     string `json:"data,omitempty"`
}

// GeminiPart is one part of a content entry: text or inline binary.
type GeminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inline_data,omitempty"`
}

// GeminiContent is one role-tagged content entry.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiGoogleSearch enables search grounding. Always sent empty.
type GeminiGoogleSearch struct{}

// GeminiTool is one tools[] entry.
type GeminiTool struct {
	GoogleSearch *GeminiGoogleSearch `json:"google_search,omitempty"`
}

// GeminiRequest is the streamGenerateContent request body.
type GeminiRequest struct {
	Contents []GeminiContent `json:"contents"`
	Tools    []GeminiTool    `json:"tools,omitempty"`
}

// GeminiGroundingMetadata carries citation data for a grounded candidate.
type GeminiGroundingMetadata struct {
	GroundingChunks   []types.GroundingChunk   `json:"groundingChunks,omitempty"`
	GroundingSupports []types.GroundingSupport `json:"groundingSupports,omitempty"`
	WebSearchQueries  []string                 `json:"webSearchQueries,omitempty"`
}

// GeminiResponseInlineData is inline binary in a response part. The response
// side uses camelCase keys, unlike the snake_case request side.
type GeminiResponseInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// GeminiResponsePart is one part of a response candidate.
type GeminiResponsePart struct {
	Text       string                    `json:"text,omitempty"`
	InlineData *GeminiResponseInlineData `json:"inlineData,omitempty"`
}

// GeminiStreamChunk is one decoded `data:` line of the SSE response.
type GeminiStreamChunk struct {
	Candidates []struct {
		Content struct {
			Parts []GeminiResponsePart `json:"parts"`
		} `json:"content"`
		GroundingMetadata *GeminiGroundingMetadata `json:"groundingMetadata,omitempty"`
		FinishReason      string                   `json:"finishReason,omitempty"`
	} `json:"candidates"`
	UsageMetadata *types.UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string               `json:"modelVersion,omitempty"`
	ResponseID    string               `json:"responseId,omitempty"`
}

// GeminiPredictRequest is the non-streaming image generation request body.
type GeminiPredictRequest struct {
	Instances  []GeminiPredictInstance `json:"instances"`
	Parameters GeminiPredictParameters `json:"parameters"`
}

// GeminiPredictInstance carries the image prompt.
type GeminiPredictInstance struct {
	Prompt string `json:"prompt"`
}

// GeminiPredictParameters controls image generation.
type GeminiPredictParameters struct {
	SampleCount int `json:"sampleCount"`
}

// GeminiPredictPrediction is one generated sample in a :predict response.
type GeminiPredictPrediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType,omitempty"`
}

// GeminiPredictResponse is the :predict response body.
type GeminiPredictResponse struct {
	Predictions []GeminiPredictPrediction `json:"predictions"`
}

// syntheticImageChunk is the one-shot chunk the image variant emits after
// wrapping a :predict response into a stream.
type syntheticImageChunk struct {
	Images []types.GeneratedImage `json:"images"`
}
