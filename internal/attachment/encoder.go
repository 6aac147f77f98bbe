// Package attachment validates user-selected files against per-provider
// constraints and encodes accepted files to base64 payloads. Validation and
// encoding failures are always local to one file; a batch never fails as a
// whole and sibling encode tasks are never cancelled.
package attachment

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aaleccoder/taulechat-sub000/internal/logging"
	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

// Per-provider attachment limits.
const (
	openRouterMaxPDFs  = 1
	openRouterMaxTotal = 2
	geminiMaxPDFs      = 10
	geminiMaxTotal     = 12

	// Above this size Gemini gets an advisory (never blocking) warning.
	geminiSizeWarnBytes = 50 * 1024 * 1024
)

// AttachmentError reports a validation or encode failure for one file.
type AttachmentError struct {
	FileName string
	Reason   string // "unsupported-type", "limit-exceeded", "encode-failure"
	Err      error
}

func (e *AttachmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("attachment %s: %s: %v", e.FileName, e.Reason, e.Err)
	}
	return fmt.Sprintf("attachment %s: %s", e.FileName, e.Reason)
}

func (e *AttachmentError) Unwrap() error { return e.Err }

// MimeTypeFor derives a MIME type from the file extension.
func MimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".apng":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Result is the outcome of one batch: the final attachment list plus the
// per-file errors for everything that was rejected or failed to encode.
type Result struct {
	Files  []types.MessageFile
	Errors []*AttachmentError
}

// Encoder validates and encodes attachment batches for a target model.
type Encoder struct {
	reader   ByteReader
	notifier Notifier

	// OnUpdate, when set, receives a snapshot of the attachment list every
	// time a placeholder is inserted, replaced, or removed, so a caller can
	// render progress before encoding completes.
	OnUpdate func([]types.MessageFile)
}

// NewEncoder creates an encoder using the given byte reader and notifier.
func NewEncoder(reader ByteReader, notifier Notifier) *Encoder {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Encoder{reader: reader, notifier: notifier}
}

func limitsFor(model types.ModelDescriptor) (maxPDFs, maxTotal int) {
	if model.Provider == types.ProviderGemini {
		return geminiMaxPDFs, geminiMaxTotal
	}
	return openRouterMaxPDFs, openRouterMaxTotal
}

// Process validates each file independently, inserts loading placeholders
// for accepted files, then encodes them concurrently. One file's failure
// never cancels its siblings.
func (e *Encoder) Process(ctx context.Context, paths []string, model types.ModelDescriptor) Result {
	maxPDFs, maxTotal := limitsFor(model)
	isGemini := model.Provider == types.ProviderGemini

	var result Result
	var accepted []string
	pdfCount := 0

	for _, path := range paths {
		fileName := filepath.Base(path)
		mimeType := MimeTypeFor(path)
		isImage := strings.HasPrefix(mimeType, "image/")
		isPDF := mimeType == "application/pdf"

		if len(accepted) >= maxTotal {
			result.Errors = append(result.Errors, &AttachmentError{
				FileName: fileName,
				Reason:   "limit-exceeded",
				Err:      fmt.Errorf("at most %d attachments for %s models", maxTotal, model.Provider),
			})
			e.notifier.Error(fmt.Sprintf("%s: attachment limit reached (%d)", fileName, maxTotal))
			continue
		}

		if isImage && !model.Capabilities.ImageInput && !isGemini {
			result.Errors = append(result.Errors, &AttachmentError{
				FileName: fileName,
				Reason:   "unsupported-type",
				Err:      fmt.Errorf("model does not support image input"),
			})
			e.notifier.Error(fmt.Sprintf("%s: this model doesn't support image input", fileName))
			continue
		}

		if isPDF {
			if model.Provider != types.ProviderGemini && model.Provider != types.ProviderOpenRouter {
				result.Errors = append(result.Errors, &AttachmentError{
					FileName: fileName,
					Reason:   "unsupported-type",
					Err:      fmt.Errorf("provider %s does not accept PDF input", model.Provider),
				})
				continue
			}
			if pdfCount >= maxPDFs {
				result.Errors = append(result.Errors, &AttachmentError{
					FileName: fileName,
					Reason:   "limit-exceeded",
					Err:      fmt.Errorf("at most %d PDFs for %s models", maxPDFs, model.Provider),
				})
				e.notifier.Error(fmt.Sprintf("%s: PDF limit reached (%d)", fileName, maxPDFs))
				continue
			}
			pdfCount++
			if isGemini && pdfCount == 1 {
				// Advisory only; the platform ceiling is not enforced here.
				e.notifier.Warn("Gemini models support up to 1000 document pages total. Additional pages will be ignored.")
			}
		}

		// Placeholder inserted synchronously so the caller can render
		// progress before the encode task finishes.
		result.Files = append(result.Files, types.MessageFile{
			ID:        uuid.NewString(),
			FileName:  fileName,
			MimeType:  mimeType,
			IsLoading: true,
			CreatedAt: time.Now(),
		})
		accepted = append(accepted, path)
	}

	if len(accepted) == 0 {
		return result
	}
	e.pushUpdate(result.Files)

	placeholderIDs := make([]string, len(accepted))
	for i := range accepted {
		placeholderIDs[i] = result.Files[i].ID
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxTotal)

	for i, path := range accepted {
		placeholderID := placeholderIDs[i]
		path := path
		g.Go(func() error {
			encoded, encErr := e.encodeOne(gctx, path, placeholderID)
			mu.Lock()
			defer mu.Unlock()
			if encErr != nil {
				result.Errors = append(result.Errors, encErr)
				result.Files = removeByID(result.Files, placeholderID)
				e.notifier.Error(fmt.Sprintf("Failed to load %s", filepath.Base(path)))
				e.pushUpdate(result.Files)
				// Sibling tasks keep running: encode failures are file-local.
				return nil
			}
			if encoded.Size > geminiSizeWarnBytes && isGemini {
				e.notifier.Warn(fmt.Sprintf("%s is larger than 50MB; the provider may truncate it", encoded.FileName))
			}
			result.Files = replaceByID(result.Files, placeholderID, *encoded)
			e.pushUpdate(result.Files)
			return nil
		})
	}
	g.Wait()

	// Keep only fully encoded files in the final list.
	final := result.Files[:0]
	for _, f := range result.Files {
		if !f.IsLoading {
			final = append(final, f)
		}
	}
	result.Files = final

	logging.Attachment("batch complete: accepted=%d rejected=%d", len(result.Files), len(result.Errors))
	return result
}

// encodeOne reads one file through the byte-reader collaborator and encodes
// it to base64.
func (e *Encoder) encodeOne(ctx context.Context, path, id string) (*types.MessageFile, *AttachmentError) {
	fileName := filepath.Base(path)
	mimeType := MimeTypeFor(path)

	var data []byte
	var err error
	if strings.HasPrefix(mimeType, "image/") {
		var readMime string
		data, readMime, err = e.reader.ReadImage(ctx, path)
		if err == nil && readMime != "" && readMime != mimeType {
			// The reader transcoded; keep its type and rename to match.
			mimeType = readMime
			if mimeType == "image/jpeg" {
				fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".jpg"
			}
		}
	} else {
		data, err = e.reader.ReadFile(ctx, path)
	}
	if err != nil {
		logging.AttachmentWarn("encode failed for %s: %v", fileName, err)
		return nil, &AttachmentError{FileName: fileName, Reason: "encode-failure", Err: err}
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	file := &types.MessageFile{
		ID:        id,
		FileName:  fileName,
		MimeType:  mimeType,
		Data:      data,
		Base64:    encoded,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
	}
	if strings.HasPrefix(mimeType, "image/") {
		file.PreviewURL = fmt.Sprintf("data:%s;base64,%s", mimeType, encoded)
	}
	logging.AttachmentDebug("encoded %s (%d bytes, %s)", fileName, file.Size, mimeType)
	return file, nil
}

func (e *Encoder) pushUpdate(files []types.MessageFile) {
	if e.OnUpdate == nil {
		return
	}
	snapshot := make([]types.MessageFile, len(files))
	copy(snapshot, files)
	e.OnUpdate(snapshot)
}

func removeByID(files []types.MessageFile, id string) []types.MessageFile {
	out := files[:0]
	for _, f := range files {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return out
}

func replaceByID(files []types.MessageFile, id string, replacement types.MessageFile) []types.MessageFile {
	for i, f := range files {
		if f.ID == id {
			files[i] = replacement
		}
	}
	return files
}
