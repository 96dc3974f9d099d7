// Package stream fans analysis progress events out to subscribers and keeps
// a bounded replay buffer per request.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
)

// ErrStreamClosed is returned when publishing after the terminal event.
var ErrStreamClosed = errors.New("stream closed")

// Config contains stream settings.
type Config struct {
	ReplayBuffer     int           `env:"STREAM_REPLAY_BUFFER"     envDefault:"64"  validate:"gte=1"`
	ReplayWindow     time.Duration `env:"STREAM_REPLAY_WINDOW"     envDefault:"10m" validate:"gt=0"`
	SubscriberBuffer int           `env:"STREAM_SUBSCRIBER_BUFFER" envDefault:"16"  validate:"gte=1"`
	MaxAge           time.Duration `env:"STREAM_MAX_AGE"           envDefault:"30m" validate:"gtefield=ReplayWindow"`
	SweepInterval    time.Duration `env:"STREAM_SWEEP_INTERVAL"    envDefault:"1m"  validate:"gt=0"`
}

// DefaultConfig returns the stock stream settings.
func DefaultConfig() Config {
	return Config{
		ReplayBuffer:     64,
		ReplayWindow:     10 * time.Minute,
		SubscriberBuffer: 16,
		MaxAge:           30 * time.Minute,
		SweepInterval:    time.Minute,
	}
}

// Option customizes a Hub.
type Option func(*Hub)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}

// Hub owns the event streams of all requests.
type Hub struct {
	cfg     Config
	metrics *observability.Metrics
	now     func() time.Time

	mu      sync.Mutex
	streams map[string]*stream
}

type stream struct {
	mu        sync.Mutex
	requestID string
	seq       uint64
	ring      []domain.Event
	head      int
	size      int
	subs      map[*Subscription]struct{}
	createdAt time.Time
	closedAt  time.Time
	closed    bool
}

// Subscription receives the events of one request. C is closed after the
// terminal event, or early when the subscriber fell behind.
type Subscription struct {
	C <-chan domain.Event

	ch        chan domain.Event
	requestID string
	hub       *Hub
	once      sync.Once
	mu        sync.Mutex
	dropped   bool
	truncated bool
}

// NewHub creates a hub.
func NewHub(cfg Config, metrics *observability.Metrics, opts ...Option) *Hub {
	defaults := DefaultConfig()
	if cfg.ReplayBuffer <= 0 {
		cfg.ReplayBuffer = defaults.ReplayBuffer
	}
	if cfg.ReplayWindow <= 0 {
		cfg.ReplayWindow = defaults.ReplayWindow
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaults.SubscriberBuffer
	}
	if cfg.MaxAge < cfg.ReplayWindow {
		cfg.MaxAge = max(defaults.MaxAge, cfg.ReplayWindow)
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}

	h := &Hub{
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
		streams: make(map[string]*stream),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Open creates the stream of a request so subscribers can attach before the
// first event. Opening an existing stream is an error.
func (h *Hub) Open(requestID string) error {
	if requestID == "" {
		return errors.New("request id cannot be empty")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.streams[requestID]; exists {
		return fmt.Errorf("stream %s already open", requestID)
	}
	h.streams[requestID] = h.newStream(requestID)
	return nil
}

// Publish assigns the next sequence number to event, buffers it and
// delivers it to every subscriber without blocking. Subscribers whose
// buffer is full are disconnected and must resubscribe to replay.
func (h *Hub) Publish(requestID string, event domain.Event) (domain.Event, error) {
	s := h.stream(requestID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return event, fmt.Errorf("%s: %w", requestID, ErrStreamClosed)
	}

	s.seq++
	event.Seq = s.seq
	event.RequestID = requestID
	if event.Time.IsZero() {
		event.Time = h.now().UTC()
	}
	s.push(event)

	for sub := range s.subs {
		select {
		case sub.ch <- event:
		default:
			sub.mu.Lock()
			sub.dropped = true
			sub.mu.Unlock()
			h.detachLocked(s, sub)
			observability.FromContext(observability.WithRequestID(context.Background(), requestID)).
				Warn("dropped slow stream subscriber", zap.Uint64("seq", event.Seq))
		}
	}

	if event.Terminal() {
		s.closed = true
		s.closedAt = h.now()
		for sub := range s.subs {
			h.detachLocked(s, sub)
		}
	}

	return event, nil
}

// Subscribe attaches to a request stream. Buffered events with a sequence
// number above afterSeq are replayed first, then live events follow.
func (h *Hub) Subscribe(requestID string, afterSeq uint64) (*Subscription, error) {
	h.mu.Lock()
	s, ok := h.streams[requestID]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRequest, requestID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replay := s.since(afterSeq)
	ch := make(chan domain.Event, h.cfg.ReplayBuffer+h.cfg.SubscriberBuffer)
	sub := &Subscription{
		C:         ch,
		ch:        ch,
		requestID: requestID,
		hub:       h,
	}

	// Events between afterSeq and the oldest buffered one were evicted.
	if len(replay) > 0 && replay[0].Seq > afterSeq+1 {
		sub.truncated = true
	}
	for _, event := range replay {
		ch <- event
	}

	if s.closed {
		close(ch)
		return sub, nil
	}

	s.subs[sub] = struct{}{}
	h.metrics.AddSubscribers(1)
	return sub, nil
}

// Last returns the sequence number of the latest event of a request.
func (h *Hub) Last(requestID string) (uint64, bool) {
	h.mu.Lock()
	s, ok := h.streams[requestID]
	h.mu.Unlock()
	if !ok {
		return 0, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq, true
}

// Sweep drops streams whose replay window elapsed, and abandoned streams
// older than MaxAge. It returns the number of streams removed.
func (h *Hub) Sweep(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id, s := range h.streams {
		s.mu.Lock()
		expired := (s.closed && now.Sub(s.closedAt) >= h.cfg.ReplayWindow) ||
			now.Sub(s.createdAt) >= h.cfg.MaxAge
		if expired {
			for sub := range s.subs {
				h.detachLocked(s, sub)
			}
		}
		s.mu.Unlock()

		if expired {
			delete(h.streams, id)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.Sweep(h.now()); n > 0 {
				observability.FromContext(ctx).Debug("swept expired streams", zap.Int("count", n))
			}
		}
	}
}

func (h *Hub) stream(requestID string) *stream {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.streams[requestID]
	if !ok {
		s = h.newStream(requestID)
		h.streams[requestID] = s
	}
	return s
}

func (h *Hub) newStream(requestID string) *stream {
	return &stream{
		requestID: requestID,
		ring:      make([]domain.Event, h.cfg.ReplayBuffer),
		subs:      make(map[*Subscription]struct{}),
		createdAt: h.now(),
	}
}

// detachLocked must be called with s.mu held.
func (h *Hub) detachLocked(s *stream, sub *Subscription) {
	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	sub.once.Do(func() { close(sub.ch) })
	h.metrics.AddSubscribers(-1)
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	st, ok := h.streams[s.requestID]
	h.mu.Unlock()
	if !ok {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	h.detachLocked(st, s)
}

// Dropped reports whether the hub disconnected the subscriber for falling behind.
func (s *Subscription) Dropped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Truncated reports whether events older than the replay buffer were requested.
func (s *Subscription) Truncated() bool {
	return s.truncated
}

func (s *stream) push(event domain.Event) {
	capacity := len(s.ring)
	idx := (s.head + s.size) % capacity
	s.ring[idx] = event
	if s.size < capacity {
		s.size++
		return
	}
	s.head = (s.head + 1) % capacity
}

func (s *stream) since(afterSeq uint64) []domain.Event {
	out := make([]domain.Event, 0, s.size)
	for i := 0; i < s.size; i++ {
		event := s.ring[(s.head+i)%len(s.ring)]
		if event.Seq > afterSeq {
			out = append(out, event)
		}
	}
	return out
}
