package pose

import (
	"context"
	"image"
)

// ResultFunc receives the outcome of one asynchronous detection. Exactly one
// of raw and err is set.
type ResultFunc func(raw *RawResult, err error)

// InferenceAdapter wraps an opaque pose detector.
//
// DetectAsync invokes onResult exactly once per accepted frame, on a
// goroutine the session does not control. Close is idempotent.
type InferenceAdapter interface {
	DetectSync(ctx context.Context, img image.Image) (*RawResult, error)
	DetectAsync(img image.Image, timestampMs int64, onResult ResultFunc) error
	Close() error
}

// AdapterFactory builds adapters for Session.Initialize. Errors should wrap
// ErrModelNotFound or ErrBackendUnavailable so the session can classify them.
type AdapterFactory interface {
	Create(ctx context.Context, cfg SessionConfig) (InferenceAdapter, error)
}

type AdapterFactoryFunc func(ctx context.Context, cfg SessionConfig) (InferenceAdapter, error)

func (f AdapterFactoryFunc) Create(ctx context.Context, cfg SessionConfig) (InferenceAdapter, error) {
	return f(ctx, cfg)
}
