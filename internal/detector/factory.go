package detector

import (
	"context"
	"log/slog"

	"github.com/eleven-am/pose-bridge/internal/pose"
)

type Factory struct {
	backend Backend
	log     *slog.Logger
}

func NewFactory(backend Backend, log *slog.Logger) *Factory {
	if log == nil {
		log = slog.Default()
	}
	return &Factory{
		backend: backend,
		log:     log,
	}
}

func (f *Factory) Create(ctx context.Context, cfg pose.SessionConfig) (pose.InferenceAdapter, error) {
	model, err := f.backend.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewAdapter(model, f.log), nil
}
