package rosz

import (
	"context"
	"fmt"
	"sync"
)

// TypedMessageHandler is a callback for strongly-typed messages
type TypedMessageHandler[T Message] func(msg T)

// TypedSubscriber receives deserialized messages of type T from a queue.
type TypedSubscriber[T Message] struct {
	*Subscriber
}

// BuildSubscriber creates a queueing subscriber for T.
//
// Example:
//
//	sub, err := rosz.BuildSubscriber[*std_msgs.String](node.CreateSubscriber("chatter"))
//	msg, err := sub.Recv(ctx)
func BuildSubscriber[T Message](builder *SubscriberBuilder) (*TypedSubscriber[T], error) {
	sub, err := builder.Build(newMessage[T]())
	if err != nil {
		return nil, err
	}
	return &TypedSubscriber[T]{Subscriber: sub}, nil
}

// decode deserializes one payload. Failures are counted as dropped.
func decode[T Message](s *Subscriber, data []byte) (T, error) {
	msg := newMessage[T]()
	if err := msg.DeserializeCDR(data); err != nil {
		s.node.ctx.tel.dropped.Add(context.Background(), 1, topicAttr(s.topic))
		var zero T
		return zero, wrapError(ErrorCodeDeserializationFailed, err, "subscriber[%s] deserialization failed", s.topic)
	}
	return msg, nil
}

// Recv blocks until a message arrives, ctx is done or the subscriber is
// closed. A payload that fails to deserialize is reported as an error and
// consumed.
func (s *TypedSubscriber[T]) Recv(ctx context.Context) (T, error) {
	msg, _, err := s.RecvWithInfo(ctx)
	return msg, err
}

// RecvWithInfo is Recv that also returns the delivery metadata.
func (s *TypedSubscriber[T]) RecvWithInfo(ctx context.Context) (T, MessageInfo, error) {
	data, info, err := s.RecvRawWithInfo(ctx)
	if err != nil {
		var zero T
		return zero, MessageInfo{}, err
	}
	msg, err := decode[T](s.Subscriber, data)
	return msg, info, err
}

// TryRecv returns a queued message without blocking. ok is false when the
// queue is empty.
func (s *TypedSubscriber[T]) TryRecv() (msg T, ok bool, err error) {
	data, ok := s.TryRecvRaw()
	if !ok {
		return msg, false, nil
	}
	msg, err = decode[T](s.Subscriber, data)
	return msg, true, err
}

// BuildWithTypedCallback creates a subscriber with automatic deserialization.
// The callback receives the already-deserialized message.
//
// Example:
//
//	sub, err := BuildWithTypedCallback(node.CreateSubscriber("chatter"),
//	    func(msg *std_msgs.String) {
//	        log.Printf("Received: %s", msg.Data)
//	    })
func BuildWithTypedCallback[T Message](builder *SubscriberBuilder, handler TypedMessageHandler[T]) (*Subscriber, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: callback handler cannot be nil", ErrBuildFailed)
	}
	return builder.build(newMessage[T](), func(sub *Subscriber, rs rawSample) {
		msg, err := decode[T](sub, rs.data)
		if err != nil {
			sub.logger.Warn("dropping malformed message", "error", err)
			return
		}
		handler(msg)
	})
}

// SubscriberWithChannel creates a subscriber that delivers to a channel with automatic deserialization.
// Returns the subscriber, a receive channel, and a cleanup function.
// Call the cleanup function to close the channel when done.
//
// Example:
//
//	sub, ch, cleanup, err := SubscriberWithChannel[*std_msgs.String](
//	    node.CreateSubscriber("chatter"), 10)
//	defer cleanup()
//	defer sub.Close()
//
//	for msg := range ch {
//	    log.Printf("Received: %s", msg.Data)
//	}
func SubscriberWithChannel[T Message](builder *SubscriberBuilder, bufferSize int) (*Subscriber, <-chan T, func(), error) {
	outCh := make(chan T, bufferSize)
	done := make(chan struct{})

	// Senders hold the read lock so cleanup never closes outCh mid-send.
	var (
		mu     sync.RWMutex
		closed bool
	)

	sub, err := builder.build(newMessage[T](), func(sub *Subscriber, rs rawSample) {
		msg, err := decode[T](sub, rs.data)
		if err != nil {
			return // Drop malformed messages
		}
		mu.RLock()
		defer mu.RUnlock()
		if closed {
			return
		}
		select {
		case outCh <- msg:
		case <-done:
		}
	})
	if err != nil {
		close(outCh)
		return nil, nil, nil, err
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			close(done)
			mu.Lock()
			closed = true
			close(outCh)
			mu.Unlock()
		})
	}

	return sub, outCh, cleanup, nil
}

// SubscriberWithHandler integrates the Handler interface directly with the Subscriber.
// Returns the subscriber, receive channel, and a cleanup function.
// Call cleanup when done to close the handler.
//
// Example:
//
//	handler := rosz.NewFifoChannel[*std_msgs.String](10)
//	sub, ch, cleanup, err := SubscriberWithHandler(
//	    node.CreateSubscriber("chatter"), handler)
//	defer cleanup()
//	defer sub.Close()
//
//	for msg := range ch {
//	    log.Printf("Received: %s", msg.Data)
//	}
func SubscriberWithHandler[T Message](builder *SubscriberBuilder, handler Handler[T]) (*Subscriber, <-chan T, func(), error) {
	callback, drop, ch := handler.ToCbDropHandler()
	if drop == nil {
		drop = func() {}
	}

	sub, err := builder.build(newMessage[T](), func(sub *Subscriber, rs rawSample) {
		msg, err := decode[T](sub, rs.data)
		if err != nil {
			return
		}
		callback(msg)
	})
	if err != nil {
		drop()
		return nil, nil, nil, err
	}

	return sub, ch, drop, nil
}
