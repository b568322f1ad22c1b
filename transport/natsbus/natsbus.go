// Package natsbus implements transport.Session on a NATS server.
//
// # Key Mapping
//
// Key expressions map onto NATS subjects chunk by chunk:
//   - "/" separates chunks, "." separates subject tokens
//   - "*" stays "*" (one token)
//   - a trailing "**" becomes ">" (one or more tokens)
//
// Keys are prefixed per plane: data under "rosz.d.", queries under
// "rosz.q.". Chunks containing "." or whitespace cannot be mapped.
//
// Liveliness has no native NATS equivalent. Tokens are announced on a single
// event subject and every session answers discovery requests for the tokens
// it holds. A session that dies without closing leaves no delete event.
package natsbus

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/multierr"

	"github.com/jazi007/oxidros-sub001/transport"
)

const (
	dataPrefix      = "rosz.d."
	queryPrefix     = "rosz.q."
	historySubject  = "rosz.h"
	tokenSubject    = "rosz.lv"
	discoverSubject = "rosz.lvq"

	hdrKey        = "Rosz-Key"
	hdrAttachment = "Rosz-Attachment"
	hdrKind       = "Rosz-Kind"
	hdrHistory    = "Rosz-History"
	hdrFinal      = "Rosz-Final"

	kindDelete = "delete"
)

// Config configures the NATS session.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// ConnectTimeout is the timeout for initial connection.
	// Default is 5 seconds.
	ConnectTimeout time.Duration

	// QueryLinger is how long a Get keeps collecting after the last reply.
	// Default is 50 milliseconds.
	QueryLinger time.Duration

	// DiscoveryWait bounds liveliness discovery and history retrieval.
	// Default is 200 milliseconds.
	DiscoveryWait time.Duration

	// Logger for operational logging. If nil, uses slog.Default().
	Logger *slog.Logger

	// Options are appended to the connection options.
	Options []nats.Option
}

func (c Config) applyDefaults() Config {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.QueryLinger <= 0 {
		c.QueryLinger = 50 * time.Millisecond
	}
	if c.DiscoveryWait <= 0 {
		c.DiscoveryWait = 200 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Subject maps a key expression to a NATS subject.
func Subject(key string) (string, error) {
	if err := transport.ValidateKey(key); err != nil {
		return "", err
	}
	chunks := strings.Split(key, "/")
	for i, c := range chunks {
		switch {
		case c == "**":
			if i != len(chunks)-1 {
				return "", fmt.Errorf("%w: %q: \"**\" is only supported as the last chunk", transport.ErrInvalidKey, key)
			}
			chunks[i] = ">"
		case c == "*":
		case strings.ContainsAny(c, ". \t\r\n>"):
			return "", fmt.Errorf("%w: %q: chunk %q cannot be a subject token", transport.ErrInvalidKey, key, c)
		}
	}
	return strings.Join(chunks, "."), nil
}

// Key maps a concrete NATS subject back to a key expression.
func Key(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}

type session struct {
	config Config
	conn   *nats.Conn
	id     string
	log    *slog.Logger

	mu       sync.Mutex
	subs     map[*nats.Subscription]struct{}
	tokens   map[uint64]string
	nextTok  uint64
	closed   atomic.Bool
	closeErr error
	once     sync.Once
}

// Connect dials the NATS server and opens a session.
func Connect(config Config) (transport.Session, error) {
	config = config.applyDefaults()
	opts := append([]nats.Option{
		nats.Timeout(config.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				config.Logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			config.Logger.Info("NATS reconnected")
		}),
	}, config.Options...)

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", config.URL, err)
	}

	s := &session{
		config: config,
		conn:   conn,
		id:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		log:    config.Logger,
		subs:   make(map[*nats.Subscription]struct{}),
		tokens: make(map[uint64]string),
	}
	if _, err := s.subscribe(discoverSubject, s.answerDiscovery); err != nil {
		conn.Close()
		return nil, err
	}
	s.log.Debug("NATS session opened", "url", config.URL, "session", s.id)
	return s, nil
}

func (s *session) ID() string { return s.id }

func (s *session) subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	sub, err := s.conn.Subscribe(subject, handler)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub, nil
}

func (s *session) unsubscriber(subs ...*nats.Subscription) io.Closer {
	var once sync.Once
	return closer(func() error {
		var err error
		once.Do(func() {
			s.mu.Lock()
			for _, sub := range subs {
				delete(s.subs, sub)
			}
			s.mu.Unlock()
			for _, sub := range subs {
				err = multierr.Append(err, sub.Unsubscribe())
			}
		})
		return err
	})
}

type closer func() error

func (f closer) Close() error { return f() }

func (s *session) checkOpen() error {
	if s.closed.Load() {
		return transport.ErrSessionClosed
	}
	return nil
}

func newMsg(subject, key string, payload, attachment []byte) *nats.Msg {
	m := nats.NewMsg(subject)
	m.Data = payload
	m.Header.Set(hdrKey, key)
	if len(attachment) > 0 {
		m.Header.Set(hdrAttachment, base64.StdEncoding.EncodeToString(attachment))
	}
	return m
}

func attachmentOf(m *nats.Msg) []byte {
	if m.Header == nil {
		return nil
	}
	v := m.Header.Get(hdrAttachment)
	if v == "" {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil
	}
	return b
}

func sampleOf(m *nats.Msg, prefix string) transport.Sample {
	key := Key(strings.TrimPrefix(m.Subject, prefix))
	if m.Header != nil {
		if k := m.Header.Get(hdrKey); k != "" {
			key = k
		}
	}
	return transport.Sample{
		Key:        key,
		Payload:    m.Data,
		Attachment: attachmentOf(m),
		Kind:       transport.SampleKindPut,
		Timestamp:  time.Now(),
	}
}

type publisher struct {
	s       *session
	key     string
	subject string
	block   bool
	depth   int

	mu      sync.Mutex
	history []*nats.Msg
	closed  bool
	cache   io.Closer
}

func (s *session) DeclarePublisher(key string, opts transport.PublisherOptions) (transport.Publisher, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if transport.IsWild(key) {
		return nil, fmt.Errorf("%w: publisher key %q is not concrete", transport.ErrInvalidKey, key)
	}
	subject, err := Subject(key)
	if err != nil {
		return nil, err
	}
	p := &publisher{s: s, key: key, subject: dataPrefix + subject, block: opts.Block, depth: opts.History}
	if p.depth > 0 {
		sub, err := s.subscribe(historySubject, p.answerHistory)
		if err != nil {
			return nil, err
		}
		p.cache = s.unsubscriber(sub)
	}
	return p, nil
}

func (p *publisher) Key() string { return p.key }

func (p *publisher) Put(ctx context.Context, payload, attachment []byte) error {
	m := newMsg(p.subject, p.key, payload, attachment)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return transport.ErrSessionClosed
	}
	if p.depth > 0 {
		p.history = append(p.history, m)
		if len(p.history) > p.depth {
			p.history = p.history[len(p.history)-p.depth:]
		}
	}
	p.mu.Unlock()

	if err := p.s.conn.PublishMsg(m); err != nil {
		return fmt.Errorf("publish %s: %w", p.key, err)
	}
	if p.block {
		if err := p.s.flush(ctx); err != nil {
			return fmt.Errorf("flush %s: %w", p.key, err)
		}
	}
	return nil
}

// flush waits for the server to process pending messages. FlushWithContext
// needs a deadline, so ctx without one is bounded by ConnectTimeout.
func (s *session) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return s.conn.FlushTimeout(s.config.ConnectTimeout)
	}
	return s.conn.FlushWithContext(ctx)
}

func (p *publisher) answerHistory(m *nats.Msg) {
	if m.Reply == "" {
		return
	}
	pattern := m.Header.Get(hdrKey)
	if !transport.Intersects(pattern, p.key) {
		return
	}
	n, err := strconv.Atoi(m.Header.Get(hdrHistory))
	if err != nil || n <= 0 {
		return
	}
	p.mu.Lock()
	h := p.history
	if n < len(h) {
		h = h[len(h)-n:]
	}
	h = append([]*nats.Msg(nil), h...)
	p.mu.Unlock()

	for _, cached := range h {
		r := newMsg(m.Reply, p.key, cached.Data, attachmentOf(cached))
		if err := p.s.conn.PublishMsg(r); err != nil {
			p.s.log.Warn("Failed to replay history", "key", p.key, "error", err)
			return
		}
	}
}

func (p *publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.history = nil
	p.mu.Unlock()
	if p.cache != nil {
		return p.cache.Close()
	}
	return nil
}

func (s *session) DeclareSubscriber(key string, opts transport.SubscriberOptions, handler func(transport.Sample)) (io.Closer, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	subject, err := Subject(key)
	if err != nil {
		return nil, err
	}
	sub, err := s.subscribe(dataPrefix+subject, func(m *nats.Msg) {
		handler(sampleOf(m, dataPrefix))
	})
	if err != nil {
		return nil, err
	}
	if opts.History > 0 {
		for _, sample := range s.fetchHistory(key, opts.History) {
			handler(sample)
		}
	}
	return s.unsubscriber(sub), nil
}

// fetchHistory asks every caching publisher matching key for its last n
// samples and collects answers for DiscoveryWait.
func (s *session) fetchHistory(key string, n int) []transport.Sample {
	inbox := s.conn.NewRespInbox()
	msgs := make(chan *nats.Msg, 256)
	sub, err := s.conn.ChanSubscribe(inbox, msgs)
	if err != nil {
		s.log.Warn("Failed to request history", "key", key, "error", err)
		return nil
	}
	defer sub.Unsubscribe()

	req := nats.NewMsg(historySubject)
	req.Reply = inbox
	req.Header.Set(hdrKey, key)
	req.Header.Set(hdrHistory, strconv.Itoa(n))
	if err := s.conn.PublishMsg(req); err != nil {
		s.log.Warn("Failed to request history", "key", key, "error", err)
		return nil
	}

	var out []transport.Sample
	deadline := time.After(s.config.DiscoveryWait)
	for {
		select {
		case m := <-msgs:
			if isNoResponders(m) {
				return out
			}
			out = append(out, sampleOf(m, ""))
		case <-deadline:
			return out
		}
	}
}

func isNoResponders(m *nats.Msg) bool {
	return len(m.Data) == 0 && m.Header != nil && m.Header.Get("Status") == "503"
}

func (s *session) DeclareQueryable(key string, handler func(*transport.Query)) (io.Closer, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	subject, err := Subject(key)
	if err != nil {
		return nil, err
	}
	sub, err := s.subscribe(queryPrefix+subject, func(m *nats.Msg) {
		if m.Reply == "" {
			return
		}
		qkey := sampleOf(m, queryPrefix).Key
		reply := m.Reply
		handler(transport.NewQuery(qkey, m.Data, attachmentOf(m), func(r *transport.Reply) {
			var out *nats.Msg
			if r == nil {
				out = nats.NewMsg(reply)
				out.Header.Set(hdrFinal, "drop")
			} else {
				out = newMsg(reply, r.Key, r.Payload, r.Attachment)
			}
			if err := s.conn.PublishMsg(out); err != nil {
				s.log.Warn("Failed to answer query", "key", qkey, "error", err)
			}
		}))
	})
	if err != nil {
		return nil, err
	}
	return s.unsubscriber(sub), nil
}

// Get publishes the query and streams replies until ctx is done, the server
// reports no responders, or no answer arrived for QueryLinger after the last
// one.
func (s *session) Get(ctx context.Context, key string, payload, attachment []byte) (<-chan transport.Reply, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if transport.IsWild(key) {
		return nil, fmt.Errorf("%w: query key %q is not concrete", transport.ErrInvalidKey, key)
	}
	subject, err := Subject(key)
	if err != nil {
		return nil, err
	}

	inbox := s.conn.NewRespInbox()
	msgs := make(chan *nats.Msg, 64)
	sub, err := s.conn.ChanSubscribe(inbox, msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe reply inbox: %w", err)
	}
	req := newMsg(queryPrefix+subject, key, payload, attachment)
	req.Reply = inbox
	if err := s.conn.PublishMsg(req); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("query %s: %w", key, err)
	}

	out := make(chan transport.Reply, 16)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		var linger <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case <-linger:
				return
			case m := <-msgs:
				if isNoResponders(m) {
					return
				}
				linger = time.After(s.config.QueryLinger)
				if m.Header.Get(hdrFinal) != "" {
					continue
				}
				sample := sampleOf(m, "")
				select {
				case out <- transport.Reply{Key: sample.Key, Payload: sample.Payload, Attachment: sample.Attachment}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *session) DeclareToken(key string) (io.Closer, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := transport.ValidateKey(key); err != nil {
		return nil, err
	}
	if transport.IsWild(key) {
		return nil, fmt.Errorf("%w: token key %q is not concrete", transport.ErrInvalidKey, key)
	}
	s.mu.Lock()
	s.nextTok++
	id := s.nextTok
	s.tokens[id] = key
	s.mu.Unlock()

	if err := s.announce(key, ""); err != nil {
		return nil, err
	}
	var once sync.Once
	return closer(func() error {
		var err error
		once.Do(func() {
			s.mu.Lock()
			delete(s.tokens, id)
			s.mu.Unlock()
			err = s.announce(key, kindDelete)
		})
		return err
	}), nil
}

func (s *session) announce(key, kind string) error {
	m := nats.NewMsg(tokenSubject)
	m.Header.Set(hdrKey, key)
	if kind != "" {
		m.Header.Set(hdrKind, kind)
	}
	if err := s.conn.PublishMsg(m); err != nil {
		return fmt.Errorf("announce token %s: %w", key, err)
	}
	return nil
}

func (s *session) answerDiscovery(m *nats.Msg) {
	if m.Reply == "" {
		return
	}
	pattern := m.Header.Get(hdrKey)
	s.mu.Lock()
	var keys []string
	for _, k := range s.tokens {
		if transport.Intersects(pattern, k) {
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()
	if len(keys) == 0 {
		return
	}
	if err := s.conn.Publish(m.Reply, []byte(strings.Join(keys, "\n"))); err != nil {
		s.log.Warn("Failed to answer liveliness discovery", "error", err)
	}
}

func (s *session) SubscribeLiveliness(key string, handler func(transport.Sample)) (io.Closer, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := transport.ValidateKey(key); err != nil {
		return nil, err
	}
	sub, err := s.subscribe(tokenSubject, func(m *nats.Msg) {
		tok := m.Header.Get(hdrKey)
		if tok == "" || !transport.Intersects(key, tok) {
			return
		}
		kind := transport.SampleKindPut
		if m.Header.Get(hdrKind) == kindDelete {
			kind = transport.SampleKindDelete
		}
		handler(transport.Sample{Key: tok, Kind: kind, Timestamp: time.Now()})
	})
	if err != nil {
		return nil, err
	}
	return s.unsubscriber(sub), nil
}

func (s *session) GetLiveliness(ctx context.Context, key string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := transport.ValidateKey(key); err != nil {
		return nil, err
	}
	inbox := s.conn.NewRespInbox()
	msgs := make(chan *nats.Msg, 64)
	sub, err := s.conn.ChanSubscribe(inbox, msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe discovery inbox: %w", err)
	}
	defer sub.Unsubscribe()

	req := nats.NewMsg(discoverSubject)
	req.Reply = inbox
	req.Header.Set(hdrKey, key)
	if err := s.conn.PublishMsg(req); err != nil {
		return nil, fmt.Errorf("liveliness discovery: %w", err)
	}

	seen := make(map[string]struct{})
	var keys []string
	deadline := time.NewTimer(s.config.DiscoveryWait)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return keys, ctx.Err()
		case <-deadline.C:
			return keys, nil
		case m := <-msgs:
			if isNoResponders(m) {
				return keys, nil
			}
			for _, k := range strings.Split(string(m.Data), "\n") {
				if _, dup := seen[k]; k == "" || dup {
					continue
				}
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
}

// Close withdraws every token, drops every subscription and closes the
// connection.
func (s *session) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.mu.Lock()
		tokens := make([]string, 0, len(s.tokens))
		for _, k := range s.tokens {
			tokens = append(tokens, k)
		}
		s.tokens = make(map[uint64]string)
		subs := make([]*nats.Subscription, 0, len(s.subs))
		for sub := range s.subs {
			subs = append(subs, sub)
		}
		s.subs = make(map[*nats.Subscription]struct{})
		s.mu.Unlock()

		var err error
		for _, k := range tokens {
			err = multierr.Append(err, s.announce(k, kindDelete))
		}
		for _, sub := range subs {
			err = multierr.Append(err, sub.Unsubscribe())
		}
		err = multierr.Append(err, s.conn.Flush())
		s.conn.Close()
		s.closeErr = err
		s.log.Debug("NATS session closed", "session", s.id)
	})
	return s.closeErr
}
