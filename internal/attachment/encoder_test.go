package attachment

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

// fakeReader serves canned bytes per path and can fail selected paths.
type fakeReader struct {
	mu    sync.Mutex
	data  map[string][]byte
	fail  map[string]bool
	reads []string
}

func (f *fakeReader) record(path string) {
	f.mu.Lock()
	f.reads = append(f.reads, path)
	f.mu.Unlock()
}

func (f *fakeReader) ReadFile(_ context.Context, path string) ([]byte, error) {
	f.record(path)
	if f.fail[path] {
		return nil, errors.New("read failed")
	}
	return f.data[path], nil
}

func (f *fakeReader) ReadImage(_ context.Context, path string) ([]byte, string, error) {
	f.record(path)
	if f.fail[path] {
		return nil, "", errors.New("read failed")
	}
	return f.data[path], MimeTypeFor(path), nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (n *recordingNotifier) Warn(msg string) {
	n.mu.Lock()
	n.warnings = append(n.warnings, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	n.errors = append(n.errors, msg)
	n.mu.Unlock()
}

func openRouterModel() types.ModelDescriptor {
	return types.ModelDescriptor{
		ID:           "openai/gpt-4o-mini",
		Provider:     types.ProviderOpenRouter,
		Capabilities: types.ModelCapabilities{ImageInput: true},
	}
}

func geminiModel() types.ModelDescriptor {
	return types.ModelDescriptor{
		ID:           "google/gemini-2.5-flash",
		Provider:     types.ProviderGemini,
		Capabilities: types.ModelCapabilities{ImageInput: true},
	}
}

func TestMimeTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", MimeTypeFor("shot.PNG"))
	assert.Equal(t, "image/jpeg", MimeTypeFor("photo.jpeg"))
	assert.Equal(t, "application/pdf", MimeTypeFor("doc.pdf"))
	assert.Equal(t, "text/markdown", MimeTypeFor("notes.md"))
	assert.Equal(t, "application/octet-stream", MimeTypeFor("blob.bin"))
}

func TestOpenRouterPDFCap(t *testing.T) {
	reader := &fakeReader{data: map[string][]byte{
		"a.pdf": []byte("pdf-a"),
		"b.pdf": []byte("pdf-b"),
	}}
	enc := NewEncoder(reader, nil)

	result := enc.Process(context.Background(), []string{"a.pdf", "b.pdf"}, openRouterModel())

	require.Len(t, result.Files, 1)
	assert.Equal(t, "a.pdf", result.Files[0].FileName)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "b.pdf", result.Errors[0].FileName)
	assert.Equal(t, "limit-exceeded", result.Errors[0].Reason)
}

func TestGeminiPDFCap(t *testing.T) {
	data := map[string][]byte{}
	var paths []string
	for i := 0; i < 11; i++ {
		p := string(rune('a'+i)) + ".pdf"
		data[p] = []byte("pdf")
		paths = append(paths, p)
	}
	enc := NewEncoder(&fakeReader{data: data}, nil)

	result := enc.Process(context.Background(), paths, geminiModel())

	assert.Len(t, result.Files, 10)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "k.pdf", result.Errors[0].FileName)
	assert.Equal(t, "limit-exceeded", result.Errors[0].Reason)
}

func TestImageRequiresCapabilityOrGemini(t *testing.T) {
	reader := &fakeReader{data: map[string][]byte{"pic.png": []byte("img")}}
	enc := NewEncoder(reader, nil)

	noImages := types.ModelDescriptor{ID: "m", Provider: types.ProviderOpenRouter}
	result := enc.Process(context.Background(), []string{"pic.png"}, noImages)
	assert.Empty(t, result.Files)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "unsupported-type", result.Errors[0].Reason)

	// Gemini accepts images even without the capability flag.
	gemini := types.ModelDescriptor{ID: "g", Provider: types.ProviderGemini}
	result = enc.Process(context.Background(), []string{"pic.png"}, gemini)
	assert.Len(t, result.Files, 1)
	assert.Empty(t, result.Errors)
}

func TestEncodeRoundTrip(t *testing.T) {
	raw := []byte{0x00, 0x01, 0xFF, 0xFE, 0x7F, 0x80}
	reader := &fakeReader{data: map[string][]byte{"blob.bin": raw}}
	enc := NewEncoder(reader, nil)

	result := enc.Process(context.Background(), []string{"blob.bin"}, openRouterModel())
	require.Len(t, result.Files, 1)

	decoded, err := base64.StdEncoding.DecodeString(result.Files[0].Base64)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
	assert.Equal(t, int64(len(raw)), result.Files[0].Size)
}

func TestOneFailureNeverCancelsSiblings(t *testing.T) {
	reader := &fakeReader{
		data: map[string][]byte{"good.txt": []byte("fine")},
		fail: map[string]bool{"bad.txt": true},
	}
	notifier := &recordingNotifier{}
	enc := NewEncoder(reader, notifier)

	result := enc.Process(context.Background(), []string{"bad.txt", "good.txt"}, geminiModel())

	require.Len(t, result.Files, 1)
	assert.Equal(t, "good.txt", result.Files[0].FileName)
	assert.False(t, result.Files[0].IsLoading)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "encode-failure", result.Errors[0].Reason)
	assert.Len(t, reader.reads, 2) // both tasks ran
	assert.NotEmpty(t, notifier.errors)
}

func TestPlaceholdersVisibleBeforeEncodingCompletes(t *testing.T) {
	reader := &fakeReader{data: map[string][]byte{"doc.txt": []byte("text")}}
	enc := NewEncoder(reader, nil)

	var sawLoading bool
	enc.OnUpdate = func(files []types.MessageFile) {
		for _, f := range files {
			if f.IsLoading {
				sawLoading = true
			}
		}
	}

	result := enc.Process(context.Background(), []string{"doc.txt"}, geminiModel())
	require.Len(t, result.Files, 1)
	assert.True(t, sawLoading)
	assert.False(t, result.Files[0].IsLoading)
}

func TestGeminiPDFAdvisoryWarning(t *testing.T) {
	reader := &fakeReader{data: map[string][]byte{"big.pdf": []byte("pdf")}}
	notifier := &recordingNotifier{}
	enc := NewEncoder(reader, notifier)

	result := enc.Process(context.Background(), []string{"big.pdf"}, geminiModel())

	// Advisory only: the file is still accepted.
	assert.Len(t, result.Files, 1)
	assert.Empty(t, result.Errors)
	require.Len(t, notifier.warnings, 1)
	assert.Contains(t, notifier.warnings[0], "1000")
}
