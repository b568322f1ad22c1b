package rosz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/jazi007/oxidros-sub001/keyexpr"
	"github.com/jazi007/oxidros-sub001/qos"
	"github.com/jazi007/oxidros-sub001/transport"
)

// Publisher publishes messages to a topic
type Publisher struct {
	node     *Node
	topic    string
	typeName string
	key      string
	gid      GID
	pub      transport.Publisher
	token    io.Closer
	limiter  *rate.Limiter
	logger   *slog.Logger
	handle   uint64
	seq      atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// PublisherBuilder builds a Publisher
type PublisherBuilder struct {
	node    *Node
	topic   string
	qos     QosProfile
	limiter *rate.Limiter
}

// WithQoS sets the QoS profile for the publisher
func (b *PublisherBuilder) WithQoS(qos QosProfile) *PublisherBuilder {
	b.qos = qos
	return b
}

// WithRateLimit throttles Publish. Callers wait for a token before each
// message is sent.
func (b *PublisherBuilder) WithRateLimit(limiter *rate.Limiter) *PublisherBuilder {
	b.limiter = limiter
	return b
}

// Build creates the publisher for the given message type
func (b *PublisherBuilder) Build(msg Message) (*Publisher, error) {
	n := b.node
	fq, err := n.ResolveName(b.topic)
	if err != nil {
		return nil, err
	}
	log := n.logger.With("topic", fq)
	qos.Validate(b.qos, log)

	c := n.ctx
	typeName := keyexpr.DDSTypeName(msg.TypeName())
	key := keyexpr.Topic(c.domainID, fq, typeName, msg.TypeHash())
	tp, err := c.session.DeclarePublisher(key, transport.PublisherOptions{
		History: qos.HistoryDepth(b.qos),
		Block:   qos.Congestion(b.qos) == qos.CongestionBlock,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: publisher for %s: %w", ErrBuildFailed, fq, err)
	}

	token, err := c.session.DeclareToken(keyexpr.LivelinessEntity(
		n.entity(keyexpr.Publisher, fq, typeName, msg.TypeHash(), b.qos)))
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("%w: publisher token for %s: %w", ErrBuildFailed, fq, err), tp.Close())
	}

	pub := &Publisher{
		node:     n,
		topic:    fq,
		typeName: msg.TypeName(),
		key:      key,
		gid:      NewGID(),
		pub:      tp,
		token:    token,
		limiter:  b.limiter,
		logger:   log,
	}
	if pub.handle, err = n.track(pub); err != nil {
		return nil, multierr.Combine(err, token.Close(), tp.Close())
	}
	log.Debug("publisher created", "key", key, "qos", b.qos.String())
	runtime.SetFinalizer(pub, (*Publisher).Close)

	return pub, nil
}

// Topic returns the fully qualified topic name
func (p *Publisher) Topic() string { return p.topic }

// TypeName returns the ROS type name of published messages
func (p *Publisher) TypeName() string { return p.typeName }

// GID returns the publisher GID carried in every attachment
func (p *Publisher) GID() GID { return p.gid }

// Publish serializes and publishes a message
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	data, err := msg.SerializeCDR()
	if err != nil {
		return wrapError(ErrorCodeSerializationFailed, err, "publisher[%s] serialization failed", p.topic)
	}
	return p.PublishRaw(ctx, data)
}

// PublishRaw publishes an already encoded CDR payload
func (p *Publisher) PublishRaw(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return NewRoszError(ErrorCodePublishFailed, fmt.Sprintf("publisher[%s] empty message", p.topic))
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return wrapError(ErrorCodePublishFailed, err, "publisher[%s] rate limit", p.topic)
		}
	}

	seq := p.seq.Add(1) - 1
	att := NewAttachment(seq, p.gid)
	if err := p.pub.Put(ctx, data, att.Bytes()); err != nil {
		return wrapError(ErrorCodePublishFailed, err, "publisher[%s] publish failed", p.topic)
	}
	p.node.ctx.tel.published.Add(ctx, 1, topicAttr(p.topic))
	p.logger.Debug("published", "seq", seq, "len", len(data))
	return nil
}

// Close destroys the publisher
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = multierr.Combine(p.token.Close(), p.pub.Close())
		p.node.untrack(p.handle)
		runtime.SetFinalizer(p, nil)
	})
	return p.closeErr
}
