// Package types holds the shared data model for conversations, messages,
// attachments, and model descriptors. It has no dependencies on the provider
// or orchestration layers so every package can import it freely.
package types

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Conversation is the authoritative, append-only message list for one chat.
// Messages are never reordered; mutation happens only through the
// conversation store's append/replace/remove API.
type Conversation struct {
	ID       string
	ModelID  string
	Title    string
	Messages []Message
}

// Message is a single conversation entry. Content is mutable only while
// Streaming is true; the finalize step flips Streaming to false exactly once.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string

	// Thoughts carries the model's reasoning trace, separate from Content.
	Thoughts string

	Files []MessageFile

	// Provider metadata, populated incrementally during streaming.
	Metadata ResponseMetadata

	Streaming bool
	CreatedAt time.Time
}

// MessageFile is an attachment on a message. MessageID is assigned when the
// file is persisted, not when it is encoded.
type MessageFile struct {
	ID        string
	MessageID string
	FileName  string
	MimeType  string
	Data      []byte
	Base64    string
	Size      int64

	// PreviewURL is a renderable handle for image previews (file:// or
	// data: URL depending on the host shell). Empty for non-images.
	PreviewURL string

	// IsLoading marks a placeholder inserted before encoding completes.
	IsLoading bool

	CreatedAt time.Time
}

// UsageMetadata reports token accounting for one response.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount int `json:"candidatesTokenCount,omitempty"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount,omitempty"`
}

// GroundingChunk is one web citation source attached to a grounded response.
type GroundingChunk struct {
	Web *GroundingWeb `json:"web,omitempty"`
}

// GroundingWeb holds the resolved source of a grounding chunk.
type GroundingWeb struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

// GroundingSupport links a span of the response text to grounding chunks.
type GroundingSupport struct {
	Segment               *GroundingSegment `json:"segment,omitempty"`
	GroundingChunkIndices []int             `json:"groundingChunkIndices,omitempty"`
}

// GroundingSegment is a byte range within the response content.
type GroundingSegment struct {
	StartIndex int    `json:"startIndex,omitempty"`
	EndIndex   int    `json:"endIndex,omitempty"`
	Text       string `json:"text,omitempty"`
}

// GeneratedImage is one model-produced image delivered inside a stream chunk.
type GeneratedImage struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

// ResponseMetadata is the accumulated provider metadata for one response.
// Merge semantics live in the orchestrator: present fields overwrite, absent
// fields are preserved, except UsageMetadata, Images, ModelVersion and
// ResponseID which are last-write-wins per chunk.
type ResponseMetadata struct {
	UsageMetadata     *UsageMetadata     `json:"usageMetadata,omitempty"`
	GroundingChunks   []GroundingChunk   `json:"groundingChunks,omitempty"`
	GroundingSupports []GroundingSupport `json:"groundingSupports,omitempty"`
	WebSearchQueries  []string           `json:"webSearchQueries,omitempty"`
	ModelVersion      string             `json:"modelVersion,omitempty"`
	ResponseID        string             `json:"responseId,omitempty"`
	Images            []GeneratedImage   `json:"images,omitempty"`
}

// IsZero reports whether no metadata field is set.
func (m ResponseMetadata) IsZero() bool {
	return m.UsageMetadata == nil &&
		m.GroundingChunks == nil &&
		m.GroundingSupports == nil &&
		m.WebSearchQueries == nil &&
		m.ModelVersion == "" &&
		m.ResponseID == "" &&
		m.Images == nil
}

// ProviderName tags which backend a model belongs to.
type ProviderName string

const (
	ProviderOpenRouter ProviderName = "OpenRouter"
	ProviderGemini     ProviderName = "Gemini"
)

// ModelCapabilities are the capability flags the registry knows about a model.
type ModelCapabilities struct {
	ImageInput  bool
	ImageOutput bool
	Thinking    bool
}

// ModelDescriptor describes one model from the external registry. Read-only
// to this core.
type ModelDescriptor struct {
	ID           string
	Name         string
	Provider     ProviderName
	Capabilities ModelCapabilities

	// SupportedGenerationMethods selects the image-generation variant when
	// it contains "predict" (Gemini Imagen-style models).
	SupportedGenerationMethods []string

	ContextTokens   int
	MaxOutputTokens int
}

// SupportsPredict reports whether the model uses the non-streaming
// :predict image-generation endpoint.
func (m ModelDescriptor) SupportsPredict() bool {
	for _, method := range m.SupportedGenerationMethods {
		if method == "predict" {
			return true
		}
	}
	return false
}

// ModelParameters are optional sampling and reasoning knobs forwarded to the
// provider request body where the backend supports them.
type ModelParameters struct {
	Temperature      *float64
	TopP             *float64
	MaxTokens        *int
	FrequencyPenalty *float64
	PresencePenalty  *float64

	// Reasoning controls the OpenRouter reasoning block.
	ReasoningEnabled bool
	ReasoningEffort  string // low/medium/high

	// SampleCount is the image-generation sample count (:predict only).
	SampleCount int
}
