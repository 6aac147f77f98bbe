// Package provider translates between the uniform conversation model and each
// backend's wire protocol. There are exactly three variants: OpenRouter chat,
// Gemini chat, and Gemini image generation. Adding a backend means adding one
// variant and one registry entry in the factory, nothing else.
package provider

import (
	"bytes"
	"context"
	"io"

	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

// FormattedMessage is one wire-shaped message. Content is either a plain
// string or a slice of content parts, depending on the variant.
type FormattedMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// StreamRequest carries everything a variant needs to open a response stream.
// Cancellation is threaded through the context passed to StreamResponse.
type StreamRequest struct {
	ModelID  string
	Messages []FormattedMessage
	APIKey   string

	// InlineParts are Gemini inline_data attachment parts, injected at call
	// time rather than during message formatting.
	InlineParts []GeminiPart

	Parameters *types.ModelParameters
	Model      types.ModelDescriptor
}

// StreamChunk is the normalized increment decoded from one network chunk.
// It is chunk-local: accumulation and metadata merging happen in the
// orchestrator, never here.
type StreamChunk struct {
	Token    string
	Thoughts string
	Metadata types.ResponseMetadata
}

// DecoderState carries partial-line state across ParseStreamChunk calls.
// SSE lines may be split across network chunks; the trailing incomplete line
// of each chunk is buffered and prepended to the next.
type DecoderState struct {
	carry []byte
}

// Lines splits data into complete newline-terminated lines, buffering any
// trailing partial line for the next call.
func (d *DecoderState) Lines(data []byte) [][]byte {
	buf := append(d.carry, data...)
	var lines [][]byte
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(buf[:idx], []byte("\r"))
		lines = append(lines, line)
		buf = buf[idx+1:]
	}
	d.carry = append([]byte(nil), buf...)
	return lines
}

// Flush returns any buffered partial line and clears the state. Called once
// at end of stream so a final unterminated line is not lost.
func (d *DecoderState) Flush() []byte {
	carry := d.carry
	d.carry = nil
	return carry
}

// ChatProvider is the capability interface implemented by each backend variant.
type ChatProvider interface {
	// FormatMessages maps conversation history into the wire message shape.
	FormatMessages(history []types.Message, caps types.ModelCapabilities) []FormattedMessage

	// StreamResponse issues the outbound call and returns a reader of raw
	// response bytes. Non-success HTTP statuses are mapped to the typed
	// errors in errors.go after extracting the provider message from the
	// body. The reader honors ctx cancellation.
	StreamResponse(ctx context.Context, req StreamRequest) (io.ReadCloser, error)

	// ParseStreamChunk decodes one network chunk into a normalized increment.
	// Malformed lines are skipped, matching the tolerant framing of SSE.
	ParseStreamChunk(data []byte, st *DecoderState) StreamChunk
}
