package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/eleven-am/pose-bridge/internal/pose"
)

const recordTimeout = 500 * time.Millisecond

// Recorder is a pose.Sink that stores every frame before forwarding it.
// Storage failures are logged and never block delivery.
type Recorder struct {
	store     *Store
	channelID string
	next      pose.Sink
	log       *slog.Logger
}

func NewRecorder(store *Store, channelID string, next pose.Sink, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		store:     store,
		channelID: channelID,
		next:      next,
		log:       log.With("component", "frame-recorder", "channel_id", channelID),
	}
}

func (r *Recorder) Publish(frame pose.LandmarkFrame) {
	r.Record(frame)
	r.next.Publish(frame)
}

func (r *Recorder) PublishError(code, message string) {
	r.next.PublishError(code, message)
}

func (r *Recorder) Record(frame pose.LandmarkFrame) {
	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.store.StoreFrame(ctx, r.channelID, frame); err != nil {
		r.log.Warn("failed to record frame", "timestamp", frame.TimestampMs, "error", err)
	}
}
