package pose

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Session owns one inference adapter and converts its output into
// LandmarkFrames.
//
// Calling Initialize on a Ready session disposes the current adapter before
// building the new one. Results still in flight from the old adapter are
// discarded.
type Session struct {
	factory   AdapterFactory
	now       func() time.Time
	log       *slog.Logger
	maxPixels int

	// lifecycle serialises Initialize and Dispose; mu guards the fields below
	// and is never held while calling into the adapter or the sink.
	lifecycle sync.Mutex

	// publishing is held for reading while a result is handed to the sink
	// and for writing while the generation moves on, so no result from a
	// released adapter is published once Dispose or Initialize has begun.
	publishing sync.RWMutex

	mu            sync.Mutex
	state         State
	cfg           SessionConfig
	adapter       InferenceAdapter
	sink          Sink
	generation    uint64
	lastTimestamp int64
}

type SessionOption func(*Session)

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

func WithLogger(log *slog.Logger) SessionOption {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMaxPixels caps the size of frames SubmitFrame will decode.
func WithMaxPixels(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.maxPixels = n
		}
	}
}

func NewSession(factory AdapterFactory, opts ...SessionOption) *Session {
	s := &Session{
		factory:   factory,
		now:       time.Now,
		log:       slog.Default(),
		maxPixels: DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "pose-session")
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Config() SessionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// AttachSink sets the sink streamed results go to. The session does not own
// it and never closes it. The sink must not call Dispose or Initialize from
// Publish.
func (s *Session) AttachSink(sink Sink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *Session) DetachSink() {
	s.mu.Lock()
	s.sink = nil
	s.mu.Unlock()
}

func (s *Session) Initialize(ctx context.Context, cfg SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.publishing.Lock()
	s.mu.Lock()
	old := s.adapter
	s.adapter = nil
	s.state = StateUninitialized
	s.generation++
	s.mu.Unlock()
	s.publishing.Unlock()

	if old != nil {
		s.closeAdapter(old)
		s.log.Info("previous adapter released before re-initialize")
	}

	adapter, err := s.factory.Create(ctx, cfg)
	if err != nil {
		return classifyInitError(err)
	}

	s.mu.Lock()
	s.adapter = adapter
	s.cfg = cfg
	s.state = StateReady
	s.lastTimestamp = 0
	s.generation++
	s.mu.Unlock()

	s.log.Info("session initialized",
		"model", cfg.ModelPath,
		"delegate", cfg.Delegate,
		"mode", cfg.Mode,
		"max_poses", cfg.MaxPoses)
	return nil
}

// SubmitFrame runs detection on img.
//
// In SingleShot mode it blocks and returns the converted frame. In LiveStream
// mode it returns (nil, nil) once the frame is accepted; the result or error
// arrives later on the attached sink, tagged with the timestamp resolved
// here.
func (s *Session) SubmitFrame(ctx context.Context, img RawImage, explicitTimestampMs *int64) (*LandmarkFrame, error) {
	s.mu.Lock()
	if s.state != StateReady || s.adapter == nil {
		s.mu.Unlock()
		return nil, NewProcessError(ErrNotReady, nil)
	}
	cfg := s.cfg
	adapter := s.adapter
	gen := s.generation
	s.mu.Unlock()

	decoded, err := img.DecodeLimit(s.maxPixels)
	if err != nil {
		return nil, NewProcessError(ErrDecodeFailure, err)
	}

	if cfg.Mode == ModeLiveStream {
		ts, ok := s.reserveTimestamp(gen, explicitTimestampMs)
		if !ok {
			return nil, NewProcessError(ErrNotReady, nil)
		}
		err := adapter.DetectAsync(decoded, ts, func(raw *RawResult, err error) {
			s.deliver(gen, cfg, ts, raw, err)
		})
		if err != nil {
			if s.stale(gen) {
				return nil, NewProcessError(ErrNotReady, err)
			}
			return nil, NewProcessError(ErrInferenceFailure, err)
		}
		return nil, nil
	}

	ts := s.now().UnixMilli()
	if explicitTimestampMs != nil {
		ts = *explicitTimestampMs
	}

	raw, err := adapter.DetectSync(ctx, decoded)
	if err != nil {
		if s.stale(gen) {
			return nil, NewProcessError(ErrNotReady, err)
		}
		return nil, NewProcessError(ErrInferenceFailure, err)
	}

	frame, err := ToFrame(raw, ts, cfg)
	if err != nil {
		s.log.Error("detector broke landmark parity", "error", err)
		return nil, err
	}
	return &frame, nil
}

// Dispose releases the adapter. It is safe from any state and idempotent.
// A result being published when Dispose is called finishes first; nothing
// reaches the sink after Dispose returns.
func (s *Session) Dispose() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.publishing.Lock()
	s.mu.Lock()
	adapter := s.adapter
	wasReady := s.state == StateReady
	s.adapter = nil
	s.sink = nil
	s.state = StateDisposed
	s.generation++
	s.mu.Unlock()
	s.publishing.Unlock()

	if adapter != nil {
		s.closeAdapter(adapter)
	}
	if wasReady {
		s.log.Info("session disposed")
	}
}

// reserveTimestamp resolves the frame timestamp and keeps the per-session
// sequence non-decreasing.
func (s *Session) reserveTimestamp(gen uint64, explicit *int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.state != StateReady {
		return 0, false
	}

	ts := s.now().UnixMilli()
	if explicit != nil {
		ts = *explicit
	}
	if ts < s.lastTimestamp {
		s.log.Debug("timestamp moved backwards, clamping",
			"submitted", ts,
			"previous", s.lastTimestamp)
		ts = s.lastTimestamp
	}
	s.lastTimestamp = ts
	return ts, true
}

func (s *Session) deliver(gen uint64, cfg SessionConfig, ts int64, raw *RawResult, err error) {
	s.publishing.RLock()
	defer s.publishing.RUnlock()

	s.mu.Lock()
	if s.generation != gen || s.state != StateReady {
		s.mu.Unlock()
		s.log.Debug("discarding result from released adapter", "timestamp", ts)
		return
	}
	sink := s.sink
	s.mu.Unlock()

	if sink == nil {
		return
	}

	if err != nil {
		sink.PublishError(CodePipelineError, err.Error())
		return
	}

	frame, err := ToFrame(raw, ts, cfg)
	if err != nil {
		s.log.Error("detector broke landmark parity", "error", err)
		sink.PublishError(CodePipelineError, err.Error())
		return
	}
	sink.Publish(frame)
}

func (s *Session) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation != gen
}

func (s *Session) closeAdapter(a InferenceAdapter) {
	if err := a.Close(); err != nil {
		s.log.Warn("adapter close failed", "error", err)
	}
}

func classifyInitError(err error) error {
	var initErr *InitError
	if errors.As(err, &initErr) {
		return initErr
	}
	switch {
	case errors.Is(err, ErrModelNotFound):
		return NewInitError(ErrModelNotFound, err)
	case errors.Is(err, ErrInvalidConfig):
		return NewInitError(ErrInvalidConfig, err)
	default:
		return NewInitError(ErrBackendUnavailable, err)
	}
}
