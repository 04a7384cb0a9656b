package pose

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
)

var errFakeClosed = errors.New("fake adapter closed")

type pendingJob struct {
	timestampMs int64
	onResult    ResultFunc
}

type fakeAdapter struct {
	mu      sync.Mutex
	result  *RawResult
	err     error
	closed  int
	pending []pendingJob
	syncN   int
}

func (f *fakeAdapter) DetectSync(ctx context.Context, img image.Image) (*RawResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed > 0 {
		return nil, errFakeClosed
	}
	f.syncN++
	return f.result, f.err
}

func (f *fakeAdapter) DetectAsync(img image.Image, timestampMs int64, onResult ResultFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed > 0 {
		return errFakeClosed
	}
	f.pending = append(f.pending, pendingJob{timestampMs: timestampMs, onResult: onResult})
	return nil
}

func (f *fakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// complete runs the oldest pending async job, the way a detector worker
// would.
func (f *fakeAdapter) complete(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		t.Fatal("no pending async job")
	}
	job := f.pending[0]
	f.pending = f.pending[1:]
	result, err := f.result, f.err
	f.mu.Unlock()

	if err != nil {
		job.onResult(nil, err)
		return
	}
	job.onResult(result, nil)
}

func (f *fakeAdapter) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeFactory struct {
	mu       sync.Mutex
	err      error
	created  []*fakeAdapter
	template RawResult
}

func (f *fakeFactory) Create(ctx context.Context, cfg SessionConfig) (InferenceAdapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := f.template
	a := &fakeAdapter{result: &result}
	f.created = append(f.created, a)
	return a, nil
}

func (f *fakeFactory) last() *fakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

type recordingListener struct {
	mu     sync.Mutex
	frames []LandmarkFrame
	errs   []string
}

func (r *recordingListener) OnFrame(frame LandmarkFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *recordingListener) OnError(code, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, code+": "+message)
}

func (r *recordingListener) snapshot() ([]LandmarkFrame, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LandmarkFrame(nil), r.frames...), append([]string(nil), r.errs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngFrame(t *testing.T) RawImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		img.Set(x, 3, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return RawImage{Data: buf.Bytes(), Width: 8, Height: 6}
}

func floatPtr(v float64) *float64 {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

func samplePose(n int) RawPose {
	p := RawPose{
		Landmarks:      make([]NormalizedLandmark, n),
		WorldLandmarks: make([]WorldLandmark, n),
	}
	for i := 0; i < n; i++ {
		p.Landmarks[i] = NormalizedLandmark{
			X:          float64(i) / 100,
			Y:          float64(i) / 200,
			Z:          -1,
			Visibility: floatPtr(0.9),
		}
		p.WorldLandmarks[i] = WorldLandmark{X: 5, Y: 5, Z: float64(i) * 0.01}
	}
	return p
}
