package detector

import (
	"context"
	"image"
	"log/slog"
	"sync"

	"github.com/eleven-am/pose-bridge/internal/pose"
)

type job struct {
	img         image.Image
	timestampMs int64
	onResult    pose.ResultFunc
}

// Adapter runs a Model synchronously or through a single FIFO worker.
// Async frames are detected one at a time in submission order; the queue is
// unbounded.
type Adapter struct {
	model Model
	log   *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []job
	closed bool

	inflight  sync.WaitGroup
	closeOnce sync.Once
	released  chan struct{}
}

func NewAdapter(model Model, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}

	a := &Adapter{
		model:    model,
		log:      log.With("component", "inference-adapter"),
		released: make(chan struct{}),
	}
	a.cond = sync.NewCond(&a.mu)

	go a.run()

	return a
}

func (a *Adapter) DetectSync(ctx context.Context, img image.Image) (*pose.RawResult, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrAdapterClosed
	}
	a.inflight.Add(1)
	a.mu.Unlock()
	defer a.inflight.Done()

	return a.model.Detect(ctx, img)
}

func (a *Adapter) DetectAsync(img image.Image, timestampMs int64, onResult pose.ResultFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrAdapterClosed
	}

	a.queue = append(a.queue, job{img: img, timestampMs: timestampMs, onResult: onResult})
	a.cond.Signal()
	return nil
}

// Close stops accepting frames and returns immediately. Queued frames that
// never started are failed with ErrAdapterClosed; the model itself is closed
// once the running detection finishes.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.cond.Broadcast()
		a.mu.Unlock()
	})
	return nil
}

// Released is closed after the model has been closed.
func (a *Adapter) Released() <-chan struct{} {
	return a.released
}

func (a *Adapter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

func (a *Adapter) run() {
	for {
		a.mu.Lock()
		for len(a.queue) == 0 && !a.closed {
			a.cond.Wait()
		}

		if a.closed {
			abandoned := a.queue
			a.queue = nil
			a.mu.Unlock()
			a.shutdown(abandoned)
			return
		}

		j := a.queue[0]
		a.queue[0] = job{}
		a.queue = a.queue[1:]
		a.mu.Unlock()

		raw, err := a.model.Detect(context.Background(), j.img)
		if err != nil {
			a.log.Debug("async detection failed", "timestamp", j.timestampMs, "error", err)
			j.onResult(nil, err)
			continue
		}
		j.onResult(raw, nil)
	}
}

func (a *Adapter) shutdown(abandoned []job) {
	for _, j := range abandoned {
		j.onResult(nil, ErrAdapterClosed)
	}
	if len(abandoned) > 0 {
		a.log.Debug("abandoned queued frames on close", "count", len(abandoned))
	}

	a.inflight.Wait()

	if err := a.model.Close(); err != nil {
		a.log.Warn("model close failed", "error", err)
	}
	close(a.released)
}
