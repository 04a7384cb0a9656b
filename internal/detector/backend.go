package detector

import (
	"context"
	"errors"
	"image"

	"github.com/eleven-am/pose-bridge/internal/pose"
)

var ErrAdapterClosed = errors.New("adapter closed")

// Model is a loaded pose landmarker. Detect may be called from several
// goroutines; Close is called once, after the last Detect returns.
type Model interface {
	Detect(ctx context.Context, img image.Image) (*pose.RawResult, error)
	Close() error
}

// Backend loads models. Load errors should wrap pose.ErrModelNotFound or
// pose.ErrBackendUnavailable.
type Backend interface {
	Load(ctx context.Context, cfg pose.SessionConfig) (Model, error)
}
