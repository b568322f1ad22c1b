package rosz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"go.uber.org/multierr"

	"github.com/jazi007/oxidros-sub001/keyexpr"
	"github.com/jazi007/oxidros-sub001/qos"
	"github.com/jazi007/oxidros-sub001/transport"
)

// MessageHandler is a callback function for received messages
type MessageHandler func(data []byte)

// rawSample is a received payload with its delivery metadata.
type rawSample struct {
	data []byte
	info MessageInfo
}

// Subscriber subscribes to messages on a topic. It either queues samples for
// Recv or hands them to a callback, depending on how it was built.
type Subscriber struct {
	node     *Node
	topic    string
	typeName string
	key      string
	sub      io.Closer
	token    io.Closer
	queue    *queue[rawSample]
	logger   *slog.Logger
	handle   uint64

	closeOnce sync.Once
	closeErr  error
}

// SubscriberBuilder builds a Subscriber
type SubscriberBuilder struct {
	node  *Node
	topic string
	qos   QosProfile
}

// WithQoS sets the QoS profile for the subscriber
func (b *SubscriberBuilder) WithQoS(qos QosProfile) *SubscriberBuilder {
	b.qos = qos
	return b
}

// Build creates a queueing subscriber. The queue holds the QoS depth and
// drops the oldest sample when full.
func (b *SubscriberBuilder) Build(msg Message) (*Subscriber, error) {
	return b.build(msg, nil)
}

// BuildWithCallback creates the subscriber with a custom callback handler.
// The handler runs on the transport's delivery goroutine; avoid long
// blocking operations.
func (b *SubscriberBuilder) BuildWithCallback(msg Message, handler MessageHandler) (*Subscriber, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: callback handler cannot be nil", ErrBuildFailed)
	}
	return b.build(msg, func(_ *Subscriber, rs rawSample) { handler(rs.data) })
}

// build declares the subscriber. A nil callback selects queue mode. The
// callback may run before build returns, when history is replayed.
func (b *SubscriberBuilder) build(msg Message, callback func(*Subscriber, rawSample)) (*Subscriber, error) {
	n := b.node
	fq, err := n.ResolveName(b.topic)
	if err != nil {
		return nil, err
	}
	log := n.logger.With("topic", fq)
	qos.Validate(b.qos, log)

	c := n.ctx
	typeName := keyexpr.DDSTypeName(msg.TypeName())
	s := &Subscriber{
		node:     n,
		topic:    fq,
		typeName: msg.TypeName(),
		key:      keyexpr.TopicWildcard(c.domainID, fq, typeName),
		logger:   log,
	}

	deliver := s.enqueue
	if callback == nil {
		s.queue = newQueue[rawSample](qos.EffectiveDepth(b.qos), nil)
	} else {
		deliver = func(rs rawSample) {
			_ = safeCall(log, func() error {
				callback(s, rs)
				return nil
			})
		}
	}

	handler := func(sample transport.Sample) {
		c.tel.received.Add(context.Background(), 1, topicAttr(fq))
		deliver(rawSample{data: sample.Payload, info: s.infoOf(sample)})
	}
	s.sub, err = c.session.DeclareSubscriber(s.key, transport.SubscriberOptions{
		History: qos.HistoryDepth(b.qos),
	}, handler)
	if err != nil {
		return nil, fmt.Errorf("%w: subscriber for %s: %w", ErrBuildFailed, fq, err)
	}

	s.token, err = c.session.DeclareToken(keyexpr.LivelinessEntity(
		n.entity(keyexpr.Subscriber, fq, typeName, msg.TypeHash(), b.qos)))
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("%w: subscriber token for %s: %w", ErrBuildFailed, fq, err), s.sub.Close())
	}
	if s.handle, err = n.track(s); err != nil {
		return nil, multierr.Combine(err, s.token.Close(), s.sub.Close())
	}

	log.Debug("subscriber created", "key", s.key, "qos", b.qos.String(), "callback", callback != nil)
	runtime.SetFinalizer(s, (*Subscriber).Close)
	return s, nil
}

func (s *Subscriber) infoOf(sample transport.Sample) MessageInfo {
	if len(sample.Attachment) == 0 {
		return MessageInfo{SourceTimestamp: sample.Timestamp}
	}
	att, err := DecodeAttachment(sample.Attachment)
	if err != nil {
		s.logger.Warn("malformed attachment", "error", err)
		return MessageInfo{SourceTimestamp: sample.Timestamp}
	}
	return att.info()
}

func (s *Subscriber) enqueue(rs rawSample) {
	if s.queue.push(rs) {
		s.node.ctx.tel.dropped.Add(context.Background(), 1, topicAttr(s.topic))
		s.logger.Debug("queue full, dropped oldest sample")
	}
}

func (s *Subscriber) queued() (*queue[rawSample], error) {
	if s.queue == nil {
		return nil, NewRoszError(ErrorCodeSubscribeFailed,
			fmt.Sprintf("subscriber[%s] delivers to a callback", s.topic))
	}
	return s.queue, nil
}

// Topic returns the fully qualified topic name
func (s *Subscriber) Topic() string { return s.topic }

// TypeName returns the ROS type name of received messages
func (s *Subscriber) TypeName() string { return s.typeName }

// RecvRaw blocks until a payload arrives, ctx is done or the subscriber is
// closed.
func (s *Subscriber) RecvRaw(ctx context.Context) ([]byte, error) {
	data, _, err := s.RecvRawWithInfo(ctx)
	return data, err
}

// RecvRawWithInfo is RecvRaw that also returns the delivery metadata.
func (s *Subscriber) RecvRawWithInfo(ctx context.Context) ([]byte, MessageInfo, error) {
	q, err := s.queued()
	if err != nil {
		return nil, MessageInfo{}, err
	}
	rs, err := q.pop(ctx)
	if err != nil {
		return nil, MessageInfo{}, err
	}
	return rs.data, rs.info, nil
}

// TryRecvRaw returns a queued payload without blocking.
func (s *Subscriber) TryRecvRaw() ([]byte, bool) {
	if s.queue == nil {
		return nil, false
	}
	rs, ok := s.queue.tryPop()
	return rs.data, ok
}

func (s *Subscriber) tryRecvSample() (rawSample, bool) {
	if s.queue == nil {
		return rawSample{}, false
	}
	return s.queue.tryPop()
}

// Dropped returns how many samples the queue evicted
func (s *Subscriber) Dropped() uint64 {
	if s.queue == nil {
		return 0
	}
	return s.queue.droppedCount()
}

// Waiters returns the number of receivers blocked in Recv
func (s *Subscriber) Waiters() int {
	if s.queue == nil {
		return 0
	}
	return s.queue.waiters()
}

// Close destroys the subscriber
func (s *Subscriber) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = multierr.Combine(s.token.Close(), s.sub.Close())
		if s.queue != nil {
			s.queue.close()
		}
		s.node.untrack(s.handle)
		runtime.SetFinalizer(s, nil)
	})
	return s.closeErr
}
