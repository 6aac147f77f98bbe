// Package orchestrator owns the lifecycle of every in-flight response stream.
// Each stream walks INIT, conversation creation when needed, user message
// persistence, the streaming read loop, and a guaranteed finalize step that
// runs exactly once whether the stream completed, failed, or was cancelled.
package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aaleccoder/taulechat-sub000/internal/attachment"
	"github.com/aaleccoder/taulechat-sub000/internal/conversation"
	"github.com/aaleccoder/taulechat-sub000/internal/credentials"
	"github.com/aaleccoder/taulechat-sub000/internal/logging"
	"github.com/aaleccoder/taulechat-sub000/internal/provider"
	"github.com/aaleccoder/taulechat-sub000/internal/registry"
	"github.com/aaleccoder/taulechat-sub000/internal/store"
	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

// Outcome is the terminal state of one stream. The three outcomes are
// mutually exclusive and reached exactly once.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeAborted Outcome = "aborted"
	OutcomeFailed  Outcome = "failed"
)

// Notifier receives the single user-facing notification for a failed stream.
type Notifier interface {
	Warn(msg string)
	Error(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Warn(string)  {}
func (nopNotifier) Error(string) {}

// Request is one prompt submission.
type Request struct {
	// ConversationID targets an existing conversation; empty means a new
	// conversation is created for this prompt.
	ConversationID string

	Prompt  string
	ModelID string

	// AttachmentPaths are file references to validate and encode.
	AttachmentPaths []string

	Parameters *types.ModelParameters
}

// Handle is the ephemeral record of one in-flight stream. Its id doubles as
// the eventual assistant message id.
type Handle struct {
	StreamID       string
	ConversationID string

	cancel context.CancelFunc
	done   chan struct{}

	finalizeOnce sync.Once

	mu      sync.Mutex
	outcome Outcome
	err     error
}

// Cancel fires the stream's cancellation token. All cleanup is driven by the
// finalize step reacting to the read loop's termination, not by the caller.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the stream reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the stream terminates and returns its outcome. The error
// is non-nil only for OutcomeFailed.
func (h *Handle) Wait() (Outcome, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome, h.err
}

func (h *Handle) complete(outcome Outcome, err error) {
	h.mu.Lock()
	h.outcome = outcome
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

// Orchestrator coordinates the provider adapters, the attachment encoder, the
// conversation store, and the persistence gateway for concurrent streams.
type Orchestrator struct {
	registry *registry.Registry
	convs    *conversation.Store
	sidebar  *conversation.Sidebar
	gateway  store.Gateway
	creds    credentials.Store
	encoder  *attachment.Encoder
	notifier Notifier

	// providerFor is swappable so tests can inject a fake adapter.
	providerFor func(types.ModelDescriptor) (provider.ChatProvider, error)

	// OnChunk, when set, receives every updated snapshot so a frontend can
	// render incremental progress. Called from the stream's goroutine.
	OnChunk func(streamID string, snapshot types.Message)

	mu     sync.Mutex
	active map[string]*Handle
}

// New wires an orchestrator. notifier may be nil.
func New(reg *registry.Registry, convs *conversation.Store, sidebar *conversation.Sidebar,
	gateway store.Gateway, creds credentials.Store, encoder *attachment.Encoder, notifier Notifier) *Orchestrator {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Orchestrator{
		registry:    reg,
		convs:       convs,
		sidebar:     sidebar,
		gateway:     gateway,
		creds:       creds,
		encoder:     encoder,
		notifier:    notifier,
		providerFor: provider.ForModel,
		active:      make(map[string]*Handle),
	}
}

// ActiveStreams reports how many streams are currently in flight.
func (o *Orchestrator) ActiveStreams() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// CancelStream fires the cancellation token of the stream with the given id.
// Unknown ids are ignored.
func (o *Orchestrator) CancelStream(streamID string) {
	o.mu.Lock()
	h := o.active[streamID]
	o.mu.Unlock()
	if h != nil {
		logging.Stream("[%s] cancel requested", streamID)
		h.cancel()
	}
}

// deriveTitle truncates a prompt into a conversation title.
func deriveTitle(prompt string) string {
	title := strings.TrimSpace(prompt)
	if runes := []rune(title); len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return title
}

// StartStream begins a stream for the given request. The handle is registered
// and returned immediately; the state machine runs on its own goroutine and
// terminates through Handle.Wait. The only synchronous failure is an unknown
// model id.
func (o *Orchestrator) StartStream(ctx context.Context, req Request) (*Handle, error) {
	model, err := o.registry.Get(req.ModelID)
	if err != nil {
		return nil, err
	}

	streamID := uuid.NewString()
	streamCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		StreamID: streamID,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	o.mu.Lock()
	o.active[streamID] = h
	o.mu.Unlock()

	logging.Stream("[%s] start: model=%s attachments=%d prompt_len=%d",
		streamID, req.ModelID, len(req.AttachmentPaths), len(req.Prompt))

	go o.run(streamCtx, h, req, model)
	return h, nil
}

// run walks the state machine to a terminal outcome.
func (o *Orchestrator) run(ctx context.Context, h *Handle, req Request, model types.ModelDescriptor) {
	assistant := types.Message{
		ID:        h.StreamID,
		Role:      types.RoleAssistant,
		Streaming: true,
		CreatedAt: time.Now(),
	}
	assistantAppended := false
	isNew := false
	convID := req.ConversationID

	runErr := func() error {
		// Conversation setup is conditional: only when the request does not
		// target the currently open conversation. A requested id the gateway
		// already knows is loaded, never recreated; isNew stays false so a
		// later failure cannot roll back a conversation this stream did not
		// create.
		if convID == "" || o.convs.OpenID() != convID {
			if convID == "" {
				convID = uuid.NewString()
			}
			record, err := o.findConversation(ctx, convID)
			if err != nil {
				return fmt.Errorf("failed to look up conversation: %w", err)
			}
			if record != nil {
				if _, err := o.OpenConversation(ctx, convID); err != nil {
					return fmt.Errorf("failed to open conversation: %w", err)
				}
				logging.Stream("[%s] opened existing conversation %s", h.StreamID, convID)
			} else {
				isNew = true
				title := deriveTitle(req.Prompt)
				if err := o.gateway.CreateConversation(ctx, convID, title, req.ModelID); err != nil {
					return fmt.Errorf("failed to create conversation: %w", err)
				}
				o.convs.Create(convID, req.ModelID, title)
				o.sidebar.Add(conversation.SidebarEntry{ID: convID, ModelID: req.ModelID, Title: title})
				o.sidebar.SetActive(convID)
				logging.Stream("[%s] created conversation %s", h.StreamID, convID)
			}
		}
		h.ConversationID = convID
		assistant.ConversationID = convID

		// Attachment validation and encoding; failures are file-local and
		// never abort the stream.
		var files []types.MessageFile
		if len(req.AttachmentPaths) > 0 && o.encoder != nil {
			result := o.encoder.Process(ctx, req.AttachmentPaths, model)
			for _, attErr := range result.Errors {
				logging.StreamWarn("[%s] attachment rejected: %v", h.StreamID, attErr)
			}
			files = result.Files
		}

		userMsg := types.Message{
			ID:             uuid.NewString(),
			ConversationID: convID,
			Role:           types.RoleUser,
			Content:        req.Prompt,
			Files:          files,
			CreatedAt:      time.Now(),
		}
		o.convs.AppendMessage(userMsg)
		if err := o.gateway.CreateMessage(ctx, userMsg); err != nil {
			return fmt.Errorf("failed to persist user message: %w", err)
		}
		for _, f := range files {
			f.MessageID = userMsg.ID
			if err := o.gateway.CreateMessageFile(ctx, f); err != nil {
				// Per-attachment persistence failures are logged and skipped.
				logging.StreamWarn("[%s] failed to persist attachment %s: %v", h.StreamID, f.FileName, err)
			}
		}

		history := o.history(convID)
		if len(history) == 0 {
			// The open conversation changed under us; the provider still
			// needs at least the prompt it is answering.
			history = []types.Message{userMsg}
		}
		o.convs.AppendMessage(assistant)
		o.convs.PutOverlay(h.StreamID, assistant)
		assistantAppended = true

		return o.stream(ctx, h, &assistant, model, history, files, req.Parameters)
	}()

	o.finalize(h, &assistant, assistantAppended)

	switch {
	case runErr == nil:
		logging.Stream("[%s] done: content_len=%d", h.StreamID, len(assistant.Content))
		h.complete(OutcomeDone, nil)
	case errors.Is(runErr, context.Canceled) || ctx.Err() == context.Canceled:
		// Cancellation is not an error: partial content was finalized above.
		logging.Stream("[%s] aborted: content_len=%d", h.StreamID, len(assistant.Content))
		h.complete(OutcomeAborted, nil)
	default:
		logging.StreamError("[%s] failed: %v", h.StreamID, runErr)
		o.notifier.Error(runErr.Error())
		if isNew && !provider.IsRateLimit(runErr) {
			o.rollback(convID, h.StreamID)
		}
		h.complete(OutcomeFailed, runErr)
	}
}

// history returns the conversation messages to send, excluding the assistant
// placeholder which has not been appended yet at call time.
func (o *Orchestrator) history(conversationID string) []types.Message {
	conv := o.convs.Open()
	if conv == nil || conv.ID != conversationID {
		return nil
	}
	return conv.Messages
}

// stream opens the provider byte stream and runs the read loop, accumulating
// content, thoughts, and merged metadata onto the assistant message.
func (o *Orchestrator) stream(ctx context.Context, h *Handle, assistant *types.Message,
	model types.ModelDescriptor, history []types.Message, files []types.MessageFile,
	params *types.ModelParameters) error {

	prov, err := o.providerFor(model)
	if err != nil {
		return err
	}
	apiKey, err := credentials.Require(o.creds, model.Provider)
	if err != nil {
		return err
	}

	streamReq := provider.StreamRequest{
		ModelID:    model.ID,
		Messages:   prov.FormatMessages(history, model.Capabilities),
		APIKey:     apiKey,
		Parameters: params,
		Model:      model,
	}
	if model.Provider == types.ProviderGemini {
		streamReq.InlineParts = inlineParts(files)
	}

	reader, err := prov.StreamResponse(ctx, streamReq)
	if err != nil {
		return err
	}
	defer reader.Close()

	var st provider.DecoderState
	buf := make([]byte, 4096)
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			o.applyChunk(h, assistant, prov.ParseStreamChunk(buf[:n], &st))
		}
		if readErr != nil {
			if readErr == io.EOF {
				if carry := st.Flush(); len(carry) > 0 {
					o.applyChunk(h, assistant, prov.ParseStreamChunk(append(carry, '\n'), &st))
				}
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &provider.NetworkError{Provider: string(model.Provider), Err: readErr}
		}
	}
}

// applyChunk accumulates one normalized increment and pushes the updated
// snapshot into the overlay and the conversation store.
func (o *Orchestrator) applyChunk(h *Handle, assistant *types.Message, chunk provider.StreamChunk) {
	if chunk.Token == "" && chunk.Thoughts == "" && chunk.Metadata.IsZero() {
		return
	}
	assistant.Content += chunk.Token
	assistant.Thoughts += chunk.Thoughts
	mergeMetadata(&assistant.Metadata, chunk.Metadata)

	snapshot := *assistant
	o.convs.PutOverlay(h.StreamID, snapshot)
	o.convs.ReplaceMessage(h.StreamID, snapshot)
	if o.OnChunk != nil {
		o.OnChunk(h.StreamID, snapshot)
	}
}

// mergeMetadata applies one chunk's metadata onto the accumulated metadata:
// present fields overwrite, absent fields are preserved. Usage, images, and
// the provider ids carry whole values per chunk, so overwriting is already
// last-write-wins for them.
func mergeMetadata(dst *types.ResponseMetadata, src types.ResponseMetadata) {
	if src.UsageMetadata != nil {
		dst.UsageMetadata = src.UsageMetadata
	}
	if src.GroundingChunks != nil {
		dst.GroundingChunks = src.GroundingChunks
	}
	if src.GroundingSupports != nil {
		dst.GroundingSupports = src.GroundingSupports
	}
	if src.WebSearchQueries != nil {
		dst.WebSearchQueries = src.WebSearchQueries
	}
	if src.ModelVersion != "" {
		dst.ModelVersion = src.ModelVersion
	}
	if src.ResponseID != "" {
		dst.ResponseID = src.ResponseID
	}
	if src.Images != nil {
		dst.Images = src.Images
	}
}

// inlineParts maps encoded attachments into Gemini inline binary parts.
func inlineParts(files []types.MessageFile) []provider.GeminiPart {
	parts := make([]provider.GeminiPart, 0, len(files))
	for _, f := range files {
		if f.Base64 == "" {
			continue
		}
		parts = append(parts, provider.GeminiPart{
			InlineData: &provider.GeminiInlineData{
				MimeType: f.MimeType,
				Data:     f.Base64,
			},
		})
	}
	return parts
}

// finalize persists the stream's final state and clears it from the active
// set. Runs exactly once per stream id regardless of outcome, on a background
// context so a cancelled stream still gets its partial content persisted.
func (o *Orchestrator) finalize(h *Handle, assistant *types.Message, assistantAppended bool) {
	h.finalizeOnce.Do(func() {
		ctx := context.Background()
		assistant.Streaming = false

		if assistantAppended {
			if err := o.gateway.CreateMessage(ctx, *assistant); err != nil {
				logging.StreamError("[%s] failed to persist assistant message: %v", h.StreamID, err)
			}
			o.persistGeneratedImages(ctx, h.StreamID, assistant.Metadata.Images)
			o.convs.ReplaceMessage(h.StreamID, *assistant)
		}

		o.convs.DropOverlay(h.StreamID)
		o.mu.Lock()
		delete(o.active, h.StreamID)
		o.mu.Unlock()

		if assistantAppended && o.convs.OpenID() == h.ConversationID {
			o.reloadOpen(ctx, h.ConversationID)
		}
		logging.StreamDebug("[%s] finalized", h.StreamID)
	})
}

// persistGeneratedImages decodes model-produced images and stores them as
// files of the assistant message.
func (o *Orchestrator) persistGeneratedImages(ctx context.Context, messageID string, images []types.GeneratedImage) {
	for i, img := range images {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			logging.StreamWarn("[%s] generated image %d is not valid base64: %v", messageID, i+1, err)
			continue
		}
		file := types.MessageFile{
			ID:        uuid.NewString(),
			MessageID: messageID,
			FileName:  fmt.Sprintf("generated-image-%d.%s", i+1, extensionFor(img.MimeType)),
			MimeType:  img.MimeType,
			Data:      data,
			Base64:    img.Data,
			Size:      int64(len(data)),
			CreatedAt: time.Now(),
		}
		if err := o.gateway.CreateMessageFile(ctx, file); err != nil {
			logging.StreamWarn("[%s] failed to persist generated image %d: %v", messageID, i+1, err)
		}
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

// reloadOpen re-reads the open conversation's persisted messages so the store
// reflects what the gateway now holds.
func (o *Orchestrator) reloadOpen(ctx context.Context, conversationID string) {
	conv := o.convs.Open()
	if conv == nil || conv.ID != conversationID {
		return
	}
	messages, err := o.gateway.GetMessagesForConversation(ctx, conversationID)
	if err != nil {
		logging.StreamWarn("reload of conversation %s failed: %v", conversationID, err)
		return
	}
	conv.Messages = messages
	o.convs.SetOpen(conv)
}

// rollback removes a conversation speculatively created for a stream that
// failed non-transiently. The just-sent user message disappears with it.
func (o *Orchestrator) rollback(conversationID, streamID string) {
	logging.Stream("[%s] rolling back conversation %s", streamID, conversationID)
	o.sidebar.Remove(conversationID)
	if o.convs.OpenID() == conversationID {
		o.convs.RemoveOpen()
	}
	if err := o.gateway.DeleteConversation(context.Background(), conversationID); err != nil {
		logging.StreamError("[%s] rollback delete failed: %v", streamID, err)
	}
}

// findConversation looks up a conversation record in the gateway, returning
// nil without error when the id is unknown.
func (o *Orchestrator) findConversation(ctx context.Context, conversationID string) (*store.ConversationRecord, error) {
	records, err := o.gateway.GetConversations(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == conversationID {
			return &records[i], nil
		}
	}
	return nil, nil
}

// OpenConversation loads a persisted conversation into the store and marks it
// active in the sidebar.
func (o *Orchestrator) OpenConversation(ctx context.Context, conversationID string) (*types.Conversation, error) {
	record, err := o.findConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("unknown conversation: %s", conversationID)
	}

	messages, err := o.gateway.GetMessagesForConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	conv := &types.Conversation{
		ID:       record.ID,
		ModelID:  record.ModelID,
		Title:    record.Title,
		Messages: messages,
	}
	o.convs.SetOpen(conv)
	if !o.sidebar.Contains(conversationID) {
		o.sidebar.Add(conversation.SidebarEntry{ID: record.ID, ModelID: record.ModelID, Title: record.Title})
	}
	o.sidebar.SetActive(conversationID)
	return conv, nil
}
