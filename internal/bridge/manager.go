package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/pose-bridge/internal/history"
	"github.com/eleven-am/pose-bridge/internal/pose"
)

// DefaultIdleTTL is how long a channel with no calls and no event
// subscriber is kept before it is evicted.
const DefaultIdleTTL = 10 * time.Minute

type Manager struct {
	factory   pose.AdapterFactory
	store     *history.Store
	base      *slog.Logger
	log       *slog.Logger
	idleTTL   time.Duration
	maxPixels int
	now       func() time.Time

	mu       sync.RWMutex
	channels map[string]*Channel
}

type ManagerOption func(*Manager)

func WithIdleTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

// WithMaxImagePixels caps the frame size every channel's session decodes.
func WithMaxImagePixels(n int) ManagerOption {
	return func(m *Manager) {
		m.maxPixels = n
	}
}

func NewManager(factory pose.AdapterFactory, store *history.Store, log *slog.Logger, opts ...ManagerOption) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		factory:  factory,
		store:    store,
		base:     log,
		log:      log.With("component", "channel-manager"),
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
		channels: make(map[string]*Channel),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateChannel registers a new channel. Idle channels are evicted first,
// so the registry only grows with channels that are in use.
func (m *Manager) CreateChannel() *Channel {
	m.EvictIdle(context.Background())

	ch := NewChannel(uuid.NewString(), m.factory, m.store, m.base, pose.WithMaxPixels(m.maxPixels))
	ch.now = m.now
	ch.touch()

	m.mu.Lock()
	m.channels[ch.ID] = ch
	m.mu.Unlock()

	m.log.Debug("channel created", "channel_id", ch.ID)
	return ch
}

// EvictIdle disposes and removes every channel that has had no call for
// longer than the idle TTL and has no event subscriber.
func (m *Manager) EvictIdle(ctx context.Context) int {
	now := m.now()

	m.mu.Lock()
	var idle []*Channel
	for id, ch := range m.channels {
		if ch.idleFor(now) > m.idleTTL && !ch.sink.HasListener() {
			idle = append(idle, ch)
			delete(m.channels, id)
		}
	}
	m.mu.Unlock()

	for _, ch := range idle {
		m.release(ctx, ch)
		m.log.Info("evicted idle channel", "channel_id", ch.ID)
	}
	return len(idle)
}

func (m *Manager) GetChannel(id string) (*Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	return ch, ok
}

// RemoveChannel disposes the channel and drops its recorded frames.
func (m *Manager) RemoveChannel(ctx context.Context, id string) error {
	m.mu.Lock()
	ch, ok := m.channels[id]
	delete(m.channels, id)
	m.mu.Unlock()

	if !ok {
		return ErrChannelNotFound
	}

	m.release(ctx, ch)
	m.log.Debug("channel removed", "channel_id", id)
	return nil
}

func (m *Manager) release(ctx context.Context, ch *Channel) {
	ch.Close()
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.store.DeleteFrames(ctx, ch.ID); err != nil {
		m.log.Warn("failed to delete channel frames", "channel_id", ch.ID, "error", err)
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}

// Close disposes every channel. Recorded frames are left to expire.
func (m *Manager) Close() {
	m.mu.Lock()
	channels := m.channels
	m.channels = make(map[string]*Channel)
	m.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}
	if len(channels) > 0 {
		m.log.Info("closed channels", "count", len(channels))
	}
}
