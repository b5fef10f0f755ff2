package media

import (
	"context"
	"fmt"
	"sync"
)

// Relay moves an attachment from the messaging platform's transient URL to
// durable blob storage and reads it back for processing. Failures surface
// as transient errors; the caller decides what to tell the merchant.
type Relay interface {
	Upload(ctx context.Context, sourceURL, contentType, phone string) (string, error)
	Fetch(ctx context.Context, storageRef string) ([]byte, error)
}

// MemoryRelay is the fallback relay used when no bucket is configured and
// in tests. Upload does not dereference the source URL; it records a
// synthetic object with placeholder bytes so the pipeline stays exercisable
// offline.
type MemoryRelay struct {
	mu      sync.Mutex
	nextRef int
	objects map[string][]byte
}

func NewMemoryRelay() *MemoryRelay {
	return &MemoryRelay{objects: make(map[string][]byte)}
}

func (r *MemoryRelay) Upload(_ context.Context, sourceURL, contentType, phone string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextRef++
	ref := fmt.Sprintf("voice-notes/%s/local-%d%s", phone, r.nextRef, extensionFor(contentType))
	r.objects[ref] = []byte("transient-media:" + sourceURL)
	return ref, nil
}

func (r *MemoryRelay) Fetch(_ context.Context, storageRef string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.objects[storageRef]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", storageRef)
	}
	return append([]byte(nil), data...), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/amr":
		return ".amr"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/aac", "audio/mp4":
		return ".m4a"
	default:
		return ".bin"
	}
}
