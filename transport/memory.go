package transport

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MemoryBus is an in-process fabric shared by any number of sessions. It is
// used for tests and for single-process graphs.
type MemoryBus struct {
	mu          sync.RWMutex
	nextID      uint64
	publishers  map[uint64]*memPublisher
	subscribers map[uint64]*memSubscriber
	queryables  map[uint64]*memQueryable
	tokens      map[uint64]string
	watchers    map[uint64]*memSubscriber
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		publishers:  make(map[uint64]*memPublisher),
		subscribers: make(map[uint64]*memSubscriber),
		queryables:  make(map[uint64]*memQueryable),
		tokens:      make(map[uint64]string),
		watchers:    make(map[uint64]*memSubscriber),
	}
}

var defaultBus = NewMemoryBus()

// DefaultBus returns the process-wide bus.
func DefaultBus() *MemoryBus { return defaultBus }

// Session opens a new session on the bus.
func (b *MemoryBus) Session() Session {
	return &memorySession{
		bus:      b,
		id:       strings.ReplaceAll(uuid.NewString(), "-", ""),
		entities: make(map[uint64]io.Closer),
	}
}

func (b *MemoryBus) allocID() uint64 {
	b.nextID++
	return b.nextID
}

type memPublisher struct {
	bus     *MemoryBus
	session *memorySession
	id      uint64
	key     string
	depth   int

	mu      sync.Mutex
	history []Sample
	closed  bool
}

type memSubscriber struct {
	key     string
	handler func(Sample)

	// Live samples arriving while history is replayed wait in backlog.
	mu        sync.Mutex
	replaying bool
	backlog   []Sample
}

func (sub *memSubscriber) deliver(sample Sample) {
	sub.mu.Lock()
	if sub.replaying {
		sub.backlog = append(sub.backlog, sample)
		sub.mu.Unlock()
		return
	}
	sub.mu.Unlock()
	sub.handler(sample)
}

// replay hands history to the handler, then the live samples queued
// meanwhile, and switches the subscriber to direct delivery.
func (sub *memSubscriber) replay(history []Sample) {
	for _, sample := range history {
		sub.handler(sample)
	}
	for {
		sub.mu.Lock()
		batch := sub.backlog
		sub.backlog = nil
		if len(batch) == 0 {
			sub.replaying = false
			sub.mu.Unlock()
			return
		}
		sub.mu.Unlock()
		for _, sample := range batch {
			sub.handler(sample)
		}
	}
}

type memQueryable struct {
	key     string
	handler func(*Query)
}

type memorySession struct {
	bus *MemoryBus
	id  string

	mu       sync.Mutex
	entities map[uint64]io.Closer
	closed   atomic.Bool
}

func (s *memorySession) ID() string { return s.id }

func (s *memorySession) track(id uint64, c io.Closer) {
	s.mu.Lock()
	s.entities[id] = c
	s.mu.Unlock()
}

func (s *memorySession) untrack(id uint64) {
	s.mu.Lock()
	delete(s.entities, id)
	s.mu.Unlock()
}

func (s *memorySession) check(key string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return ValidateKey(key)
}

func (s *memorySession) DeclarePublisher(key string, opts PublisherOptions) (Publisher, error) {
	if err := s.check(key); err != nil {
		return nil, err
	}
	if IsWild(key) {
		return nil, fmt.Errorf("%w: publisher key %q is not concrete", ErrInvalidKey, key)
	}
	b := s.bus
	b.mu.Lock()
	p := &memPublisher{bus: b, session: s, id: b.allocID(), key: key, depth: opts.History}
	b.publishers[p.id] = p
	b.mu.Unlock()
	s.track(p.id, p)
	return p, nil
}

func (p *memPublisher) Key() string { return p.key }

func (p *memPublisher) Put(ctx context.Context, payload, attachment []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sample := Sample{
		Key:        p.key,
		Payload:    payload,
		Attachment: attachment,
		Kind:       SampleKindPut,
		Timestamp:  time.Now(),
	}

	// Subscribers are looked up under p.mu so a subscriber declared
	// concurrently sees the sample either in history or live, never both.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrSessionClosed
	}
	if p.depth > 0 {
		p.history = append(p.history, sample)
		if len(p.history) > p.depth {
			p.history = p.history[len(p.history)-p.depth:]
		}
	}
	subs := p.bus.matchingSubscribers(p.key)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(sample)
	}
	return nil
}

func (p *memPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.history = nil
	p.mu.Unlock()

	p.bus.mu.Lock()
	delete(p.bus.publishers, p.id)
	p.bus.mu.Unlock()
	p.session.untrack(p.id)
	return nil
}

// lastSamples returns up to n retained samples. The caller holds p.mu.
func (p *memPublisher) lastSamples(n int) []Sample {
	h := p.history
	if n < len(h) {
		h = h[len(h)-n:]
	}
	return append([]Sample(nil), h...)
}

func (b *MemoryBus) matchingSubscribers(key string) []*memSubscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*memSubscriber
	for _, sub := range b.subscribers {
		if Intersects(sub.key, key) {
			out = append(out, sub)
		}
	}
	return out
}

func (s *memorySession) DeclareSubscriber(key string, opts SubscriberOptions, handler func(Sample)) (io.Closer, error) {
	if err := s.check(key); err != nil {
		return nil, err
	}
	b := s.bus
	sub := &memSubscriber{key: key, handler: handler}
	if opts.History <= 0 {
		b.mu.Lock()
		id := b.allocID()
		b.subscribers[id] = sub
		b.mu.Unlock()
		return s.subscriberCloser(id), nil
	}

	b.mu.RLock()
	var cached []*memPublisher
	for _, p := range b.publishers {
		if p.depth > 0 && Intersects(key, p.key) {
			cached = append(cached, p)
		}
	}
	b.mu.RUnlock()

	// Holding every cached publisher's lock while registering splits their
	// samples cleanly into history and live. Locks are taken in id order.
	slices.SortFunc(cached, func(a, c *memPublisher) int { return cmp.Compare(a.id, c.id) })
	for _, p := range cached {
		p.mu.Lock()
	}
	sub.replaying = true
	b.mu.Lock()
	id := b.allocID()
	b.subscribers[id] = sub
	b.mu.Unlock()
	var history []Sample
	for _, p := range cached {
		history = append(history, p.lastSamples(opts.History)...)
		p.mu.Unlock()
	}

	sub.replay(history)
	return s.subscriberCloser(id), nil
}

func (s *memorySession) subscriberCloser(id uint64) io.Closer {
	b := s.bus
	return s.remover(id, func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	})
}

// remover returns an idempotent closer that runs fn and forgets the entity.
func (s *memorySession) remover(id uint64, fn func()) io.Closer {
	var once sync.Once
	c := closerFunc(func() error {
		once.Do(func() {
			fn()
			s.untrack(id)
		})
		return nil
	})
	s.track(id, c)
	return c
}

func (s *memorySession) DeclareQueryable(key string, handler func(*Query)) (io.Closer, error) {
	if err := s.check(key); err != nil {
		return nil, err
	}
	b := s.bus
	b.mu.Lock()
	id := b.allocID()
	b.queryables[id] = &memQueryable{key: key, handler: handler}
	b.mu.Unlock()
	return s.remover(id, func() {
		b.mu.Lock()
		delete(b.queryables, id)
		b.mu.Unlock()
	}), nil
}

// pendingGet collects the answers to one Get.
type pendingGet struct {
	mu      sync.Mutex
	ch      chan Reply
	doneCh  chan struct{}
	pending int
	done    bool
}

func newPendingGet(n int) *pendingGet {
	return &pendingGet{ch: make(chan Reply, n), doneCh: make(chan struct{}), pending: n}
}

func (g *pendingGet) respond(r *Reply) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	if r != nil {
		g.ch <- *r
	}
	g.pending--
	if g.pending == 0 {
		g.finish()
	}
}

func (g *pendingGet) cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.done {
		g.finish()
	}
}

func (g *pendingGet) finish() {
	g.done = true
	close(g.ch)
	close(g.doneCh)
}

func (s *memorySession) Get(ctx context.Context, key string, payload, attachment []byte) (<-chan Reply, error) {
	if err := s.check(key); err != nil {
		return nil, err
	}
	b := s.bus
	b.mu.RLock()
	var targets []*memQueryable
	for _, q := range b.queryables {
		if Intersects(q.key, key) {
			targets = append(targets, q)
		}
	}
	b.mu.RUnlock()

	// Each target answers at most once, so the buffer never fills.
	g := newPendingGet(len(targets))
	if len(targets) == 0 {
		g.finish()
		return g.ch, nil
	}
	go func() {
		select {
		case <-ctx.Done():
			g.cancel()
		case <-g.doneCh:
		}
	}()
	for _, t := range targets {
		t.handler(NewQuery(key, payload, attachment, g.respond))
	}
	return g.ch, nil
}

func (s *memorySession) DeclareToken(key string) (io.Closer, error) {
	if err := s.check(key); err != nil {
		return nil, err
	}
	if IsWild(key) {
		return nil, fmt.Errorf("%w: token key %q is not concrete", ErrInvalidKey, key)
	}
	b := s.bus
	b.mu.Lock()
	id := b.allocID()
	b.tokens[id] = key
	b.mu.Unlock()
	b.notifyToken(key, SampleKindPut)

	return s.remover(id, func() {
		b.mu.Lock()
		delete(b.tokens, id)
		b.mu.Unlock()
		b.notifyToken(key, SampleKindDelete)
	}), nil
}

func (b *MemoryBus) notifyToken(key string, kind SampleKind) {
	b.mu.RLock()
	var out []*memSubscriber
	for _, w := range b.watchers {
		if Intersects(w.key, key) {
			out = append(out, w)
		}
	}
	b.mu.RUnlock()
	sample := Sample{Key: key, Kind: kind, Timestamp: time.Now()}
	for _, w := range out {
		w.handler(sample)
	}
}

func (s *memorySession) SubscribeLiveliness(key string, handler func(Sample)) (io.Closer, error) {
	if err := s.check(key); err != nil {
		return nil, err
	}
	b := s.bus
	b.mu.Lock()
	id := b.allocID()
	b.watchers[id] = &memSubscriber{key: key, handler: handler}
	b.mu.Unlock()
	return s.remover(id, func() {
		b.mu.Lock()
		delete(b.watchers, id)
		b.mu.Unlock()
	}), nil
}

func (s *memorySession) GetLiveliness(ctx context.Context, key string) ([]string, error) {
	if err := s.check(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := s.bus
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for _, k := range b.tokens {
		if Intersects(key, k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Close undeclares every entity of the session. Tokens emit delete events.
func (s *memorySession) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	entities := make([]io.Closer, 0, len(s.entities))
	for _, c := range s.entities {
		entities = append(entities, c)
	}
	s.mu.Unlock()
	for _, c := range entities {
		c.Close()
	}
	return nil
}
