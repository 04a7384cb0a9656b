package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/eleven-am/pose-bridge/internal/detector"
	"github.com/eleven-am/pose-bridge/internal/history"
	"github.com/eleven-am/pose-bridge/internal/pose"
)

const landmarkCount = 33

type stubModel struct {
	mu     sync.Mutex
	result *pose.RawResult
	err    error
}

func (m *stubModel) Detect(ctx context.Context, img image.Image) (*pose.RawResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	result := *m.result
	return &result, nil
}

func (m *stubModel) Close() error {
	return nil
}

func (m *stubModel) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type stubBackend struct {
	model *stubModel
	err   error
}

func (b *stubBackend) Load(ctx context.Context, cfg pose.SessionConfig) (detector.Model, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.model, nil
}

func newStubBackend() *stubBackend {
	return &stubBackend{model: &stubModel{result: detectedPose(landmarkCount)}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { redisClient.Close() })

	return history.NewStore(redisClient, time.Minute, 100)
}

func newTestManager(t *testing.T, backend detector.Backend) (*Manager, *history.Store) {
	t.Helper()
	store := newTestStore(t)
	factory := detector.NewFactory(backend, discardLogger())
	m := NewManager(factory, store, discardLogger())
	t.Cleanup(m.Close)
	return m, store
}

func detectedPose(n int) *pose.RawResult {
	score := 0.95
	visibility := 0.8
	p := pose.RawPose{
		Landmarks:      make([]pose.NormalizedLandmark, n),
		WorldLandmarks: make([]pose.WorldLandmark, n),
		Score:          &score,
	}
	for i := 0; i < n; i++ {
		p.Landmarks[i] = pose.NormalizedLandmark{X: 0.5, Y: float64(i) / float64(n), Z: 0.1, Visibility: &visibility}
		p.WorldLandmarks[i] = pose.WorldLandmark{X: -0.2, Y: 0.4, Z: float64(i) * 0.01}
	}
	return &pose.RawResult{Poses: []pose.RawPose{p}}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for x := 0; x < 16; x++ {
		img.Set(x, 6, color.RGBA{G: 180, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func callRequest(t *testing.T, method string, args any) Request {
	t.Helper()
	req := Request{Method: method}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			t.Fatalf("marshal args: %v", err)
		}
		req.Arguments = data
	}
	return req
}

func frameArgs(t *testing.T, timestamp *int64) ProcessFrameArgs {
	return ProcessFrameArgs{
		ImageData: pngBytes(t),
		Width:     16,
		Height:    12,
		Timestamp: timestamp,
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

type recordingListener struct {
	mu     sync.Mutex
	frames []pose.LandmarkFrame
	errs   []string
	notify chan struct{}
}

func newRecordingListener() *recordingListener {
	return &recordingListener{notify: make(chan struct{}, 16)}
}

func (r *recordingListener) OnFrame(frame pose.LandmarkFrame) {
	r.mu.Lock()
	r.frames = append(r.frames, frame)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recordingListener) OnError(code, message string) {
	r.mu.Lock()
	r.errs = append(r.errs, code+": "+message)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recordingListener) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func (r *recordingListener) snapshot() ([]pose.LandmarkFrame, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pose.LandmarkFrame(nil), r.frames...), append([]string(nil), r.errs...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
