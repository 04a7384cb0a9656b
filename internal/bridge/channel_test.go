package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/eleven-am/pose-bridge/internal/pose"
)

func newTestChannel(t *testing.T, backend *stubBackend) *Channel {
	t.Helper()
	m, _ := newTestManager(t, backend)
	return m.CreateChannel()
}

func expectError(t *testing.T, resp Response, code string) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("expected %s error, got ok=%v", code, resp.OK)
	}
	if resp.Error.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, resp.Error.Code, resp.Error.Message)
	}
	if resp.OK != nil {
		t.Error("error responses must not carry ok")
	}
}

func expectOK(t *testing.T, resp Response) any {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error %s: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.OK
}

func TestChannel_UnknownMethod(t *testing.T) {
	ch := newTestChannel(t, newStubBackend())

	resp := ch.Call(context.Background(), Request{Method: "detectHands"})
	expectError(t, resp, CodeNotImplemented)
}

func TestChannel_ReservedMethods(t *testing.T) {
	ch := newTestChannel(t, newStubBackend())

	for _, method := range []string{MethodStartLiveStream, MethodStopLiveStream, MethodDispose} {
		if ok := expectOK(t, ch.Call(context.Background(), Request{Method: method})); ok != true {
			t.Errorf("%s: expected ok=true, got %v", method, ok)
		}
	}
}

func TestChannel_ProcessBeforeInitialize(t *testing.T) {
	ch := newTestChannel(t, newStubBackend())

	resp := ch.Call(context.Background(), callRequest(t, MethodProcessFrame, frameArgs(t, nil)))
	expectError(t, resp, CodeProcessError)
	if !strings.Contains(resp.Error.Message, "not ready") {
		t.Errorf("expected not ready message, got %q", resp.Error.Message)
	}
}

func TestChannel_SingleShot(t *testing.T) {
	m, store := newTestManager(t, newStubBackend())
	ch := m.CreateChannel()
	ctx := context.Background()

	if ok := expectOK(t, ch.Call(ctx, Request{Method: MethodInitialize})); ok != true {
		t.Fatalf("expected ok=true, got %v", ok)
	}
	if ch.State() != pose.StateReady {
		t.Fatalf("expected ready, got %s", ch.State())
	}

	resp := ch.Call(ctx, callRequest(t, MethodProcessFrame, frameArgs(t, int64Ptr(1234))))
	frame, ok := expectOK(t, resp).(*pose.LandmarkFrame)
	if !ok {
		t.Fatalf("expected a landmark frame, got %T", resp.OK)
	}
	if frame.TimestampMs != 1234 {
		t.Errorf("expected timestamp 1234, got %d", frame.TimestampMs)
	}
	if len(frame.Landmarks) != landmarkCount {
		t.Fatalf("expected %d landmarks, got %d", landmarkCount, len(frame.Landmarks))
	}
	if lm := frame.Landmarks[2]; lm.X != 0.5 || lm.Z != 0.02 || lm.Visibility != 0.8 {
		t.Errorf("expected image x/y, world z and visibility, got %+v", lm)
	}

	latest, err := store.GetLatestFrame(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetLatestFrame failed: %v", err)
	}
	if latest == nil || latest.TimestampMs != 1234 {
		t.Errorf("single shot frame should be recorded, got %+v", latest)
	}
}

func TestChannel_InitializeErrors(t *testing.T) {
	tests := []struct {
		name    string
		backend *stubBackend
		args    any
		want    string
	}{
		{
			name:    "unknown delegate",
			backend: newStubBackend(),
			args:    map[string]any{"delegate": "TPU"},
			want:    "invalid config",
		},
		{
			name:    "confidence out of range",
			backend: newStubBackend(),
			args:    map[string]any{"minDetectionConfidence": 1.5},
			want:    "invalid config",
		},
		{
			name:    "malformed arguments",
			backend: newStubBackend(),
			args:    map[string]any{"numPoses": "two"},
			want:    "malformed arguments",
		},
		{
			name:    "model not found",
			backend: &stubBackend{err: pose.NewInitError(pose.ErrModelNotFound, errors.New("ghost.task"))},
			args:    map[string]any{"modelPath": "ghost.task"},
			want:    "model not found",
		},
		{
			name:    "backend unavailable",
			backend: &stubBackend{err: errors.New("no gpu")},
			args:    map[string]any{"delegate": "GPU"},
			want:    "backend unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := newTestChannel(t, tt.backend)

			resp := ch.Call(context.Background(), callRequest(t, MethodInitialize, tt.args))
			expectError(t, resp, CodeInitError)
			if !strings.Contains(resp.Error.Message, tt.want) {
				t.Errorf("expected message containing %q, got %q", tt.want, resp.Error.Message)
			}
			if ch.State() != pose.StateUninitialized {
				t.Errorf("expected uninitialized after failure, got %s", ch.State())
			}
		})
	}
}

func TestChannel_ProcessFrameBadArguments(t *testing.T) {
	ch := newTestChannel(t, newStubBackend())
	ctx := context.Background()
	expectOK(t, ch.Call(ctx, Request{Method: MethodInitialize}))

	resp := ch.Call(ctx, Request{Method: MethodProcessFrame, Arguments: json.RawMessage(`{"width":4}`)})
	expectError(t, resp, CodeProcessError)
	if !strings.Contains(resp.Error.Message, "imageData is required") {
		t.Errorf("expected missing imageData message, got %q", resp.Error.Message)
	}

	resp = ch.Call(ctx, Request{Method: MethodProcessFrame, Arguments: json.RawMessage(`{"imageData":"bm90IGFuIGltYWdl"}`)})
	expectError(t, resp, CodeProcessError)
	if !strings.Contains(resp.Error.Message, "decode") {
		t.Errorf("expected decode failure, got %q", resp.Error.Message)
	}

	resp = ch.Call(ctx, Request{Method: MethodProcessFrame, Arguments: json.RawMessage(`{"imageData":"AQIDBA==","width":4611686018427387905,"height":1}`)})
	expectError(t, resp, CodeProcessError)
	if !strings.Contains(resp.Error.Message, "width must be at most 16384") {
		t.Errorf("expected width bound message, got %q", resp.Error.Message)
	}
}

func TestChannel_LiveStream(t *testing.T) {
	ch := newTestChannel(t, newStubBackend())
	ctx := context.Background()
	listener := newRecordingListener()
	ch.Subscribe(listener)

	expectOK(t, ch.Call(ctx, callRequest(t, MethodInitialize, map[string]any{"runningMode": "LIVE_STREAM"})))

	resp := ch.Call(ctx, callRequest(t, MethodProcessFrame, frameArgs(t, int64Ptr(500))))
	if accepted, ok := expectOK(t, resp).(acceptedResult); !ok || !accepted.Accepted {
		t.Fatalf("expected accepted result, got %#v", resp.OK)
	}

	listener.wait(t)
	frames, errs := listener.snapshot()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(frames) != 1 || frames[0].TimestampMs != 500 {
		t.Fatalf("expected frame at 500, got %+v", frames)
	}
	if len(frames[0].Landmarks) != landmarkCount {
		t.Errorf("expected %d landmarks, got %d", landmarkCount, len(frames[0].Landmarks))
	}
}

func TestChannel_LiveStreamErrorEvent(t *testing.T) {
	backend := newStubBackend()
	backend.model.fail(errors.New("graph crashed"))
	ch := newTestChannel(t, backend)
	ctx := context.Background()
	listener := newRecordingListener()
	ch.Subscribe(listener)

	expectOK(t, ch.Call(ctx, callRequest(t, MethodInitialize, map[string]any{"runningMode": "LIVE_STREAM"})))
	expectOK(t, ch.Call(ctx, callRequest(t, MethodProcessFrame, frameArgs(t, nil))))

	listener.wait(t)
	_, errs := listener.snapshot()
	if len(errs) != 1 || errs[0] != "MEDIAPIPE_ERROR: graph crashed" {
		t.Errorf("expected pipeline error event, got %v", errs)
	}
}

func TestChannel_DisposeAndReinitialize(t *testing.T) {
	ch := newTestChannel(t, newStubBackend())
	ctx := context.Background()
	listener := newRecordingListener()
	ch.Subscribe(listener)

	live := map[string]any{"runningMode": "LIVE_STREAM"}
	expectOK(t, ch.Call(ctx, callRequest(t, MethodInitialize, live)))
	expectOK(t, ch.Call(ctx, Request{Method: MethodDispose}))
	expectOK(t, ch.Call(ctx, Request{Method: MethodDispose}))

	resp := ch.Call(ctx, callRequest(t, MethodProcessFrame, frameArgs(t, nil)))
	expectError(t, resp, CodeProcessError)

	expectOK(t, ch.Call(ctx, callRequest(t, MethodInitialize, live)))
	expectOK(t, ch.Call(ctx, callRequest(t, MethodProcessFrame, frameArgs(t, int64Ptr(900)))))

	listener.wait(t)
	frames, _ := listener.snapshot()
	if len(frames) != 1 || frames[0].TimestampMs != 900 {
		t.Errorf("re-initialized session should stream again, got %+v", frames)
	}
}

func TestChannel_UnsubscribedEventsAreDropped(t *testing.T) {
	ch := newTestChannel(t, newStubBackend())
	ctx := context.Background()
	listener := newRecordingListener()
	ch.Subscribe(listener)
	ch.Unsubscribe(listener)

	expectOK(t, ch.Call(ctx, callRequest(t, MethodInitialize, map[string]any{"runningMode": "LIVE_STREAM"})))
	expectOK(t, ch.Call(ctx, callRequest(t, MethodProcessFrame, frameArgs(t, nil))))

	waitFor(t, func() bool { return ch.Stats().Dropped == 1 })
	if frames, _ := listener.snapshot(); len(frames) != 0 {
		t.Errorf("detached listener received %d frames", len(frames))
	}
}
