package detector

import (
	"context"
	"image"
	"io"
	"log/slog"
	"sync"

	"github.com/eleven-am/pose-bridge/internal/pose"
)

type fakeModel struct {
	mu      sync.Mutex
	gate    chan struct{}
	started chan struct{}
	result  *pose.RawResult
	err     error
	calls   int
	closed  int
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		result: &pose.RawResult{},
	}
}

// blocking makes every Detect wait for a value on the returned gate.
func (m *fakeModel) blocking() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	m.started = make(chan struct{}, 16)
	return m.gate
}

func (m *fakeModel) Detect(ctx context.Context, img image.Image) (*pose.RawResult, error) {
	m.mu.Lock()
	m.calls++
	gate, started := m.gate, m.started
	result, err := m.result, m.err
	m.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		<-gate
	}
	return result, err
}

func (m *fakeModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *fakeModel) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type fakeBackend struct {
	model *fakeModel
	err   error
	cfgs  []pose.SessionConfig
}

func (b *fakeBackend) Load(ctx context.Context, cfg pose.SessionConfig) (Model, error) {
	b.cfgs = append(b.cfgs, cfg)
	if b.err != nil {
		return nil, b.err
	}
	return b.model, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}
