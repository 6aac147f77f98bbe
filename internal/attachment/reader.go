package attachment

import (
	"context"
	"os"
)

// ByteReader is the external collaborator that reads raw file bytes. The host
// shell may substitute an implementation that downscales and re-encodes
// images before they reach the encoder.
type ByteReader interface {
	// ReadFile returns the raw bytes of a non-image file.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// ReadImage returns image bytes plus the MIME type they were delivered
	// as, which may differ from the on-disk type when the reader transcodes.
	ReadImage(ctx context.Context, path string) (data []byte, mimeType string, err error)
}

// OSReader reads files directly from the local filesystem without any image
// processing.
type OSReader struct{}

func (OSReader) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSReader) ReadImage(ctx context.Context, path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, MimeTypeFor(path), nil
}

// Notifier receives advisory warnings and per-file failures. Implementations
// surface these as UI toasts; the encoder never fails a batch through it.
type Notifier interface {
	Warn(message string)
	Error(message string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Warn(string)  {}
func (NopNotifier) Error(string) {}
