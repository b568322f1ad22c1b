package rosz

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultPollInterval is the longest a Selector sleeps between polls.
const DefaultPollInterval = 10 * time.Millisecond

// SelectorHandle identifies a subscriber or server registered on a Selector
type SelectorHandle uint64

// TimerID identifies a timer registered on a Selector
type TimerID uint64

// SelectorOption configures a Selector
type SelectorOption func(*Selector)

// WithClock sets the time source of timers and poll sleeps
func WithClock(c clock.Clock) SelectorOption {
	return func(s *Selector) { s.clock = c }
}

// WithPollInterval sets the longest sleep between polls
func WithPollInterval(d time.Duration) SelectorOption {
	return func(s *Selector) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithSelectorLogger sets the logger used for dropped samples and requests
func WithSelectorLogger(l *slog.Logger) SelectorOption {
	return func(s *Selector) { s.logger = l }
}

type selectorEntry struct {
	handle SelectorHandle
	poll   func() int
}

type selectorTimer struct {
	id      TimerID
	period  time.Duration
	next    time.Time
	oneShot bool
	fn      func()
}

// Selector runs subscriber, server and timer callbacks on the goroutine that
// calls SpinOnce or Wait.
//
// Example:
//
//	sel := rosz.NewSelector()
//	rosz.AddSubscriber(sel, sub, func(msg *std_msgs.String) { ... })
//	sel.AddTimer(time.Second, func() { ... })
//	err := sel.Wait(ctx)
type Selector struct {
	clock        clock.Clock
	pollInterval time.Duration
	logger       *slog.Logger

	mu          sync.Mutex
	entries     []selectorEntry
	timers      map[TimerID]*selectorTimer
	paramHandle SelectorHandle

	nextHandle atomic.Uint64
	nextTimer  atomic.Uint64
}

// NewSelector creates an empty selector
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{
		clock:        clock.New(),
		pollInterval: DefaultPollInterval,
		logger:       logger,
		timers:       make(map[TimerID]*selectorTimer),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Selector) add(poll func() int) SelectorHandle {
	h := SelectorHandle(s.nextHandle.Add(1))
	s.mu.Lock()
	s.entries = append(s.entries, selectorEntry{handle: h, poll: poll})
	s.mu.Unlock()
	return h
}

// Remove deregisters a subscriber or server. It reports whether h was
// registered.
func (s *Selector) Remove(h SelectorHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.entries, func(e selectorEntry) bool { return e.handle == h })
	if i < 0 {
		return false
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	if s.paramHandle == h {
		s.paramHandle = 0
	}
	return true
}

// run calls fn and reports whether it returned without panicking.
func (s *Selector) run(fn func()) bool {
	return safeCall(s.logger, func() error {
		fn()
		return nil
	}) == nil
}

// AddSubscriber runs cb for every message sub receives. The subscriber must
// be a queueing subscriber.
func AddSubscriber[T Message](s *Selector, sub *TypedSubscriber[T], cb func(T)) SelectorHandle {
	return s.addQueued(sub.Subscriber, func(rs rawSample) {
		msg, err := decode[T](sub.Subscriber, rs.data)
		if err != nil {
			sub.logger.Warn("dropping malformed message", "error", err)
			return
		}
		cb(msg)
	})
}

// AddRawSubscriber runs cb with the payload of every sample sub receives
func (s *Selector) AddRawSubscriber(sub *Subscriber, cb func([]byte, MessageInfo)) SelectorHandle {
	return s.addQueued(sub, func(rs rawSample) { cb(rs.data, rs.info) })
}

func (s *Selector) addQueued(sub *Subscriber, deliver func(rawSample)) SelectorHandle {
	if sub.queue == nil {
		s.logger.Warn("subscriber delivers to a callback, selector will never poll a sample", "topic", sub.topic)
	}
	return s.add(func() int {
		if sub.queue == nil {
			return 0
		}
		// Samples arriving while draining wait for the next spin.
		n := 0
		for range sub.queue.len() {
			rs, ok := sub.tryRecvSample()
			if !ok {
				break
			}
			s.run(func() { deliver(rs) })
			n++
		}
		return n
	})
}

// AddServer answers every request srv receives with fn
func AddServer[Req, Resp Message](s *Selector, srv *Server[Req, Resp], fn func(Req) Resp) SelectorHandle {
	return s.add(func() int { return srv.answerPending(fn) })
}

// AddParameterServer answers the parameter services of ps and runs cb with
// the names changed since the previous spin. A selector holds one parameter
// server; adding another replaces it.
func (s *Selector) AddParameterServer(ps *ParameterServer, cb func(ps *ParameterServer, updated []string)) SelectorHandle {
	s.mu.Lock()
	prev := s.paramHandle
	s.mu.Unlock()
	if prev != 0 {
		s.Remove(prev)
	}

	h := s.add(func() int {
		n := ps.answerPending()
		if updated := ps.TakeUpdated(); len(updated) > 0 && cb != nil {
			s.run(func() { cb(ps, updated) })
			n++
		}
		return n
	})
	s.mu.Lock()
	s.paramHandle = h
	s.mu.Unlock()
	return h
}

func (s *Selector) addTimer(d time.Duration, oneShot bool, fn func()) TimerID {
	id := TimerID(s.nextTimer.Add(1))
	t := &selectorTimer{id: id, period: d, next: s.clock.Now().Add(d), oneShot: oneShot, fn: fn}
	s.mu.Lock()
	s.timers[id] = t
	s.mu.Unlock()
	return id
}

// AddTimer runs fn every period. A late timer is rescheduled from the time it
// fired, missed periods are skipped.
func (s *Selector) AddTimer(period time.Duration, fn func()) TimerID {
	return s.addTimer(period, false, fn)
}

// AddOneShotTimer runs fn once after d
func (s *Selector) AddOneShotTimer(d time.Duration, fn func()) TimerID {
	return s.addTimer(d, true, fn)
}

// RemoveTimer cancels a timer. It reports whether id was pending.
func (s *Selector) RemoveTimer(id TimerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	delete(s.timers, id)
	return ok
}

// dueTimers returns the timers due at now in firing order and reschedules
// them.
func (s *Selector) dueTimers(now time.Time) []*selectorTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*selectorTimer
	for id, t := range s.timers {
		if now.Before(t.next) {
			continue
		}
		due = append(due, t)
		if t.oneShot {
			delete(s.timers, id)
		} else {
			t.next = now.Add(t.period)
		}
	}
	slices.SortFunc(due, func(a, b *selectorTimer) int { return cmp.Compare(a.id, b.id) })
	return due
}

// SpinOnce polls every registered entity once, then fires due timers. It
// returns the number of callbacks run.
func (s *Selector) SpinOnce() int {
	s.mu.Lock()
	entries := slices.Clone(s.entries)
	s.mu.Unlock()

	n := 0
	for _, e := range entries {
		n += e.poll()
	}
	for _, t := range s.dueTimers(s.clock.Now()) {
		s.run(t.fn)
		n++
	}
	return n
}

// nextSleep is the time until the next timer, capped at the poll interval.
func (s *Selector) nextSleep() time.Duration {
	d := s.pollInterval
	now := s.clock.Now()
	s.mu.Lock()
	for _, t := range s.timers {
		d = min(d, t.next.Sub(now))
	}
	s.mu.Unlock()
	return max(d, 0)
}

// Wait spins until ctx is done and returns its error.
func (s *Selector) Wait(ctx context.Context) error {
	for {
		if s.SpinOnce() > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		timer := s.clock.Timer(s.nextSleep())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// WaitTimeout spins for d. It returns nil once d has elapsed.
func (s *Selector) WaitTimeout(d time.Duration) error {
	ctx, cancel := s.clock.WithTimeout(context.Background(), d)
	defer cancel()
	if err := s.Wait(ctx); err != context.DeadlineExceeded {
		return err
	}
	return nil
}

// Len returns the number of registered subscribers and servers
func (s *Selector) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Timers returns the number of pending timers
func (s *Selector) Timers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
