package pose

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

const CodePipelineError = "MEDIAPIPE_ERROR"

// Sink is what a Session publishes streamed results to.
type Sink interface {
	Publish(frame LandmarkFrame)
	PublishError(code, message string)
}

// Listener observes a ResultSink. Implementations must be comparable, since
// Detach matches by identity.
type Listener interface {
	OnFrame(frame LandmarkFrame)
	OnError(code, message string)
}

type SinkStats struct {
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

// ResultSink delivers to at most one listener. Nothing is buffered: a result
// published while no listener is attached is dropped.
type ResultSink struct {
	mu       sync.RWMutex
	listener Listener
	log      *slog.Logger

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func NewResultSink(log *slog.Logger) *ResultSink {
	if log == nil {
		log = slog.Default()
	}
	return &ResultSink{
		log: log.With("component", "result-sink"),
	}
}

// Attach makes l the active listener and returns the one it replaced, if any.
func (s *ResultSink) Attach(l Listener) Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.listener
	s.listener = l
	if prev != nil {
		s.log.Debug("listener replaced")
	}
	return prev
}

// Detach clears the active listener only if it is still l.
func (s *ResultSink) Detach(l Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.listener != l {
		return false
	}
	s.listener = nil
	return true
}

func (s *ResultSink) HasListener() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener != nil
}

func (s *ResultSink) Publish(frame LandmarkFrame) {
	l := s.Current()
	if l == nil {
		s.dropped.Add(1)
		return
	}
	s.delivered.Add(1)
	l.OnFrame(frame)
}

func (s *ResultSink) PublishError(code, message string) {
	l := s.Current()
	if l == nil {
		s.dropped.Add(1)
		s.log.Debug("error dropped, no listener", "code", code, "message", message)
		return
	}
	s.delivered.Add(1)
	l.OnError(code, message)
}

func (s *ResultSink) Stats() SinkStats {
	return SinkStats{
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
	}
}

func (s *ResultSink) Current() Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener
}
