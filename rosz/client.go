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

	"github.com/jazi007/oxidros-sub001/keyexpr"
	"github.com/jazi007/oxidros-sub001/qos"
)

// serviceAvailablePoll is the graph polling interval of WaitForService.
const serviceAvailablePoll = 20 * time.Millisecond

// Client calls a service
type Client[Req, Resp Message] struct {
	node    *Node
	service string
	srv     ServiceType
	key     string
	gid     GID
	token   io.Closer
	logger  *slog.Logger
	handle  uint64
	seq     atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// ClientBuilder builds a Client
type ClientBuilder struct {
	node    *Node
	service string
	qos     QosProfile
}

// WithQoS sets the QoS profile advertised by the client
func (b *ClientBuilder) WithQoS(qos QosProfile) *ClientBuilder {
	b.qos = qos
	return b
}

// BuildClient creates a client for service type srv.
//
// Example:
//
//	client, err := rosz.BuildClient[*example.AddTwoIntsRequest, *example.AddTwoIntsResponse](
//	    node.CreateClient("add_two_ints"), example.AddTwoIntsService)
func BuildClient[Req, Resp Message](b *ClientBuilder, srv ServiceType) (*Client[Req, Resp], error) {
	n := b.node
	fq, err := n.ResolveName(b.service)
	if err != nil {
		return nil, err
	}
	log := n.logger.With("service", fq)
	qos.Validate(b.qos, log)

	c := n.ctx
	typeName := keyexpr.DDSTypeName(srv.Name)
	cl := &Client[Req, Resp]{
		node:    n,
		service: fq,
		srv:     srv,
		key:     keyexpr.Topic(c.domainID, fq, typeName, srv.Hash),
		gid:     NewGID(),
		logger:  log,
	}
	cl.token, err = c.session.DeclareToken(keyexpr.LivelinessEntity(
		n.entity(keyexpr.ServiceClient, fq, typeName, srv.Hash, b.qos)))
	if err != nil {
		return nil, fmt.Errorf("%w: client token for %s: %w", ErrBuildFailed, fq, err)
	}
	if cl.handle, err = n.track(cl); err != nil {
		_ = cl.token.Close()
		return nil, err
	}

	log.Debug("client created", "key", cl.key)
	runtime.SetFinalizer(cl, (*Client[Req, Resp]).Close)
	return cl, nil
}

// Service returns the fully qualified service name
func (c *Client[Req, Resp]) Service() string { return c.service }

// GID returns the client GID echoed back by servers
func (c *Client[Req, Resp]) GID() GID { return c.gid }

// Call sends req to every matching server and returns the first response
// that carries this call's sequence number.
func (c *Client[Req, Resp]) Call(ctx context.Context, req Req) (Resp, error) {
	var zero Resp
	data, err := req.SerializeCDR()
	if err != nil {
		return zero, wrapError(ErrorCodeSerializationFailed, err, "client[%s] request serialization failed", c.service)
	}

	seq := c.seq.Add(1) - 1
	ctx, span := c.node.ctx.tel.startCall(ctx, c.service, seq)
	resp, err := c.call(ctx, data, seq)
	endSpan(span, err)
	return resp, err
}

// CallWithTimeout is Call bounded by d. Expiry is reported as ErrTimeout.
func (c *Client[Req, Resp]) CallWithTimeout(ctx context.Context, req Req, d time.Duration) (Resp, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return c.Call(ctx, req)
}

func (c *Client[Req, Resp]) call(ctx context.Context, data []byte, seq int64) (Resp, error) {
	var zero Resp
	session := c.node.ctx.session
	replies, err := session.Get(ctx, c.key, data, NewAttachment(seq, c.gid).Bytes())
	if err != nil {
		return zero, wrapError(ErrorCodeTransport, err, "client[%s] request failed", c.service)
	}
	c.logger.Debug("request sent", "seq", seq, "len", len(data))

	// The transport closes replies once every server finalized the query or
	// ctx is done.
	for {
		r, ok := <-replies
		if !ok {
			if err := ctx.Err(); err != nil {
				return zero, c.contextError(err)
			}
			return zero, fmt.Errorf("%w: %s", ErrServiceNotAvailable, c.service)
		}
		if r.Err != nil {
			c.logger.Warn("reply error", "seq", seq, "error", r.Err)
			continue
		}
		if len(r.Attachment) == 0 {
			return zero, fmt.Errorf("%w: reply to %s", ErrMissingAttachment, c.service)
		}
		att, err := DecodeAttachment(r.Attachment)
		if err != nil {
			return zero, err
		}
		if att.SequenceNumber != seq || att.GID != c.gid {
			c.logger.Warn("ignoring stale reply", "seq", seq, "reply_seq", att.SequenceNumber)
			continue
		}

		resp := newMessage[Resp]()
		if err := resp.DeserializeCDR(r.Payload); err != nil {
			return zero, wrapError(ErrorCodeDeserializationFailed, err, "client[%s] response deserialization failed", c.service)
		}
		c.logger.Debug("response received", "seq", seq)
		return resp, nil
	}
}

func (c *Client[Req, Resp]) contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(ErrorCodeTimeout, err, "client[%s] call timed out", c.service)
	}
	return err
}

// IsServiceAvailable reports whether a server for this service is in the graph
func (c *Client[Req, Resp]) IsServiceAvailable() bool {
	ok, err := c.node.ctx.IsServiceAvailable(c.service, c.srv.Name)
	return err == nil && ok
}

// WaitForService blocks until a server appears in the graph or ctx is done
func (c *Client[Req, Resp]) WaitForService(ctx context.Context) error {
	ticker := time.NewTicker(serviceAvailablePoll)
	defer ticker.Stop()
	for {
		if c.IsServiceAvailable() {
			return nil
		}
		select {
		case <-ctx.Done():
			return c.contextError(ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close destroys the client
func (c *Client[Req, Resp]) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.token.Close()
		c.node.untrack(c.handle)
		runtime.SetFinalizer(c, nil)
	})
	return c.closeErr
}
