package rosz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"

	"github.com/jazi007/oxidros-sub001/keyexpr"
	"github.com/jazi007/oxidros-sub001/qos"
	"github.com/jazi007/oxidros-sub001/transport"
)

// ServerInboxSize is the number of pending requests a server holds. The
// oldest pending request is dropped, unanswered, when a new one arrives.
const ServerInboxSize = 32

// Server answers requests for a service
type Server[Req, Resp Message] struct {
	node      *Node
	service   string
	srv       ServiceType
	key       string
	queryable io.Closer
	token     io.Closer
	inbox     *queue[*transport.Query]
	logger    *slog.Logger
	handle    uint64

	closeOnce sync.Once
	closeErr  error
}

// ServerBuilder builds a Server
type ServerBuilder struct {
	node    *Node
	service string
	qos     QosProfile
}

// WithQoS sets the QoS profile advertised by the server
func (b *ServerBuilder) WithQoS(qos QosProfile) *ServerBuilder {
	b.qos = qos
	return b
}

// Responder answers exactly one request.
type Responder[Resp Message] struct {
	service   string
	query     *transport.Query
	seq       int64
	clientGID GID
	tel       *telemetry
	used      atomic.Bool
}

// BuildServer creates a server for service type srv.
func BuildServer[Req, Resp Message](b *ServerBuilder, srv ServiceType) (*Server[Req, Resp], error) {
	n := b.node
	fq, err := n.resolveServiceName(b.service)
	if err != nil {
		return nil, err
	}
	log := n.logger.With("service", fq)
	qos.Validate(b.qos, log)

	c := n.ctx
	typeName := keyexpr.DDSTypeName(srv.Name)
	s := &Server[Req, Resp]{
		node:    n,
		service: fq,
		srv:     srv,
		key:     keyexpr.Topic(c.domainID, fq, typeName, srv.Hash),
		logger:  log,
	}
	s.inbox = newQueue(ServerInboxSize, func(q *transport.Query) {
		c.tel.dropped.Add(context.Background(), 1, topicAttr(fq))
		q.Drop()
	})

	s.queryable, err = c.session.DeclareQueryable(s.key, func(q *transport.Query) {
		if s.inbox.push(q) {
			log.Warn("server inbox full, dropped oldest request")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: server for %s: %w", ErrBuildFailed, fq, err)
	}
	s.token, err = c.session.DeclareToken(keyexpr.LivelinessEntity(
		n.entity(keyexpr.ServiceServer, fq, typeName, srv.Hash, b.qos)))
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("%w: server token for %s: %w", ErrBuildFailed, fq, err), s.queryable.Close())
	}
	if s.handle, err = n.track(s); err != nil {
		return nil, multierr.Combine(err, s.token.Close(), s.queryable.Close())
	}

	log.Debug("server created", "key", s.key)
	runtime.SetFinalizer(s, (*Server[Req, Resp]).Close)
	return s, nil
}

// Service returns the fully qualified service name
func (s *Server[Req, Resp]) Service() string { return s.service }

// Recv blocks until a request arrives, ctx is done or the server is closed.
// A request that fails to deserialize is dropped and reported as an error.
func (s *Server[Req, Resp]) Recv(ctx context.Context) (Req, *Responder[Resp], error) {
	q, err := s.inbox.pop(ctx)
	if err != nil {
		var zero Req
		return zero, nil, err
	}
	return s.accept(q)
}

// TryRecv returns a pending request without blocking. ok is false when
// none is pending.
func (s *Server[Req, Resp]) TryRecv() (req Req, resp *Responder[Resp], ok bool, err error) {
	q, ok := s.inbox.tryPop()
	if !ok {
		return req, nil, false, nil
	}
	req, resp, err = s.accept(q)
	return req, resp, true, err
}

func (s *Server[Req, Resp]) accept(q *transport.Query) (Req, *Responder[Resp], error) {
	var zero Req
	r := &Responder[Resp]{service: s.service, query: q, tel: s.node.ctx.tel}
	if len(q.Attachment) > 0 {
		att, err := DecodeAttachment(q.Attachment)
		if err != nil {
			s.logger.Warn("malformed request attachment", "error", err)
		} else {
			r.seq, r.clientGID = att.SequenceNumber, att.GID
		}
	}

	req := newMessage[Req]()
	if err := req.DeserializeCDR(q.Payload); err != nil {
		q.Drop()
		return zero, nil, wrapError(ErrorCodeDeserializationFailed, err,
			"server[%s] request %d deserialization failed", s.service, r.seq)
	}
	s.logger.Debug("request received", "seq", r.seq, "client", r.clientGID.String())
	return req, r, nil
}

// Pending returns the number of queued requests
func (s *Server[Req, Resp]) Pending() int { return s.inbox.len() }

// Waiters returns the number of receivers blocked in Recv
func (s *Server[Req, Resp]) Waiters() int { return s.inbox.waiters() }

// ServiceHandler computes the response to one request.
type ServiceHandler[Req, Resp Message] func(ctx context.Context, req Req) (Resp, error)

// Serve receives requests until ctx is done or the server is closed and runs
// handler for each, at most concurrency at a time. A handler error drops the
// request unanswered. Serve waits for running handlers before returning.
func (s *Server[Req, Resp]) Serve(ctx context.Context, handler ServiceHandler[Req, Resp], concurrency int) error {
	sem := semaphore.NewWeighted(int64(max(concurrency, 1)))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		req, responder, err := s.Recv(ctx)
		switch {
		case errors.Is(err, ErrChannelClosed):
			return nil
		case errors.Is(err, ErrDeserialization):
			s.logger.Warn("dropping request", "error", err)
			continue
		case err != nil:
			return err
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			responder.Drop()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			var resp Resp
			err := safeCall(s.logger, func() error {
				var err error
				resp, err = handler(ctx, req)
				return err
			})
			if err != nil {
				s.logger.Warn("handler failed", "seq", responder.seq, "error", err)
				responder.Drop()
				return
			}
			if err := responder.Send(resp); err != nil {
				s.logger.Warn("reply failed", "seq", responder.seq, "error", err)
			}
		}()
	}
}

// answerPending answers every queued request with fn on the calling goroutine
// and returns how many were answered.
func (s *Server[Req, Resp]) answerPending(fn func(Req) Resp) int {
	n := 0
	for {
		req, responder, ok, err := s.TryRecv()
		if !ok {
			return n
		}
		if err != nil {
			s.logger.Warn("dropping request", "error", err)
			continue
		}
		var resp Resp
		err = safeCall(s.logger, func() error {
			resp = fn(req)
			return nil
		})
		if err != nil {
			responder.Drop()
			continue
		}
		if err := responder.Send(resp); err != nil {
			s.logger.Warn("reply failed", "seq", responder.seq, "error", err)
		}
		n++
	}
}

// Close destroys the server. Pending requests are dropped unanswered.
func (s *Server[Req, Resp]) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = multierr.Combine(s.token.Close(), s.queryable.Close())
		s.inbox.close()
		s.node.untrack(s.handle)
		runtime.SetFinalizer(s, nil)
	})
	return s.closeErr
}

// SequenceNumber returns the client's sequence number of the request
func (r *Responder[Resp]) SequenceNumber() int64 { return r.seq }

// ClientGID returns the GID of the calling client
func (r *Responder[Resp]) ClientGID() GID { return r.clientGID }

// Send replies to the request. A responder can be used once.
func (r *Responder[Resp]) Send(resp Resp) error {
	if r.used.Swap(true) {
		return ErrResponderUsed
	}
	_, span := r.tel.startReply(context.Background(), r.service, r.seq)
	err := r.send(resp)
	endSpan(span, err)
	return err
}

func (r *Responder[Resp]) send(resp Resp) error {
	data, err := resp.SerializeCDR()
	if err != nil {
		r.query.Drop()
		return wrapError(ErrorCodeSerializationFailed, err, "server[%s] response serialization failed", r.service)
	}
	att := Attachment{SequenceNumber: r.seq, TimestampNs: time.Now().UnixNano(), GID: r.clientGID}
	if err := r.query.Reply(data, att.Bytes()); err != nil {
		if errors.Is(err, transport.ErrQueryFinalized) {
			return ErrResponderUsed
		}
		return wrapError(ErrorCodeTransport, err, "server[%s] reply failed", r.service)
	}
	return nil
}

// Drop finalizes the request without a response. The client sees the server
// as not answering.
func (r *Responder[Resp]) Drop() {
	if !r.used.Swap(true) {
		r.query.Drop()
	}
}
