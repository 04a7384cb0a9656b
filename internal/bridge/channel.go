package bridge

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/eleven-am/pose-bridge/internal/history"
	"github.com/eleven-am/pose-bridge/internal/pose"
)

// Channel pairs one pose session with its event sink. Calls are dispatched
// by method name and always produce a Response, never a Go error.
type Channel struct {
	ID        string
	CreatedAt time.Time

	session  *pose.Session
	sink     *pose.ResultSink
	recorder *history.Recorder
	log      *slog.Logger

	now        func() time.Time
	lastActive atomic.Int64
}

func NewChannel(id string, factory pose.AdapterFactory, store *history.Store, log *slog.Logger, opts ...pose.SessionOption) *Channel {
	if log == nil {
		log = slog.Default()
	}
	scoped := log.With("channel_id", id)

	sink := pose.NewResultSink(scoped)
	ch := &Channel{
		ID:        id,
		CreatedAt: time.Now(),
		session:   pose.NewSession(factory, append(opts, pose.WithLogger(scoped))...),
		sink:      sink,
		recorder:  history.NewRecorder(store, id, sink, log),
		log:       scoped.With("component", "channel"),
		now:       time.Now,
	}
	ch.touch()
	return ch
}

func (c *Channel) State() pose.State {
	return c.session.State()
}

func (c *Channel) Stats() pose.SinkStats {
	return c.sink.Stats()
}

// Subscribe makes l the channel's only event listener and returns the one
// it replaced, if any.
func (c *Channel) Subscribe(l pose.Listener) pose.Listener {
	c.touch()
	return c.sink.Attach(l)
}

func (c *Channel) Unsubscribe(l pose.Listener) {
	c.touch()
	c.sink.Detach(l)
}

func (c *Channel) touch() {
	c.lastActive.Store(c.now().UnixNano())
}

func (c *Channel) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastActive.Load()))
}

func (c *Channel) Call(ctx context.Context, req Request) Response {
	c.touch()
	switch req.Method {
	case MethodInitialize:
		return c.initialize(ctx, req)
	case MethodProcessFrame:
		return c.processFrame(ctx, req)
	case MethodStartLiveStream, MethodStopLiveStream:
		return okResponse(true)
	case MethodDispose:
		c.session.Dispose()
		return okResponse(true)
	default:
		return errorResponse(CodeNotImplemented, "method not implemented: "+req.Method)
	}
}

func (c *Channel) initialize(ctx context.Context, req Request) Response {
	var args InitializeArgs
	if err := decodeArgs(req.Arguments, &args); err != nil {
		return errorResponse(CodeInitError, err.Error())
	}

	if err := c.session.Initialize(ctx, args.Config()); err != nil {
		c.log.Warn("initialize failed", "error", err)
		return errorResponse(CodeInitError, err.Error())
	}
	c.session.AttachSink(c.recorder)

	return okResponse(true)
}

func (c *Channel) processFrame(ctx context.Context, req Request) Response {
	var args ProcessFrameArgs
	if err := decodeArgs(req.Arguments, &args); err != nil {
		return errorResponse(CodeProcessError, err.Error())
	}

	frame, err := c.session.SubmitFrame(ctx, args.Image(), args.Timestamp)
	if err != nil {
		return errorResponse(CodeProcessError, err.Error())
	}
	if frame == nil {
		return okResponse(acceptedResult{Accepted: true})
	}

	c.recorder.Record(*frame)
	return okResponse(frame)
}

// Close disposes the session. The channel cannot be used afterwards.
func (c *Channel) Close() {
	c.session.Dispose()
}
