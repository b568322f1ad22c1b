// Package transport defines the pub/sub session the ROS 2 layer runs on: put
// and subscribe on key expressions, request/reply queries and liveliness
// tokens. Keys are "/"-separated chunks; "*" matches one chunk and "**"
// matches any number of chunks.
package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

var (
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("transport: session closed")
	// ErrInvalidKey is returned for malformed key expressions.
	ErrInvalidKey = errors.New("transport: invalid key expression")
	// ErrQueryFinalized is returned when replying to a query twice.
	ErrQueryFinalized = errors.New("transport: query already finalized")
)

// SampleKind distinguishes puts from deletes, which only liveliness tokens emit.
type SampleKind uint8

const (
	SampleKindPut SampleKind = iota
	SampleKindDelete
)

func (k SampleKind) String() string {
	if k == SampleKindDelete {
		return "delete"
	}
	return "put"
}

// Sample is one delivered message or liveliness event.
type Sample struct {
	Key        string
	Payload    []byte
	Attachment []byte
	Kind       SampleKind
	Timestamp  time.Time
}

// PublisherOptions configure a declared publisher.
type PublisherOptions struct {
	// History is the number of most recent samples retained for late-joining
	// subscribers that request history. Zero disables the cache.
	History int
	// Block makes Put wait for the transport to accept the sample instead of
	// dropping under congestion.
	Block bool
}

// SubscriberOptions configure a declared subscriber.
type SubscriberOptions struct {
	// History is the number of past samples per matching publisher requested
	// on declaration. Zero requests none.
	History int
}

// Publisher puts samples on a fixed key.
type Publisher interface {
	Key() string
	Put(ctx context.Context, payload, attachment []byte) error
	io.Closer
}

// Reply is one answer to a Get. Err is set for transport-level failures.
type Reply struct {
	Key        string
	Payload    []byte
	Attachment []byte
	Err        error
}

// Query is a request delivered to a queryable. Each query is answered at most
// once, with Reply, or finalized without an answer with Drop.
type Query struct {
	Key        string
	Payload    []byte
	Attachment []byte

	once    sync.Once
	respond func(*Reply)
}

// NewQuery builds a query whose answer is handed to respond. respond receives
// nil when the query is dropped. Transport implementations use it.
func NewQuery(key string, payload, attachment []byte, respond func(*Reply)) *Query {
	return &Query{Key: key, Payload: payload, Attachment: attachment, respond: respond}
}

// Reply answers the query.
func (q *Query) Reply(payload, attachment []byte) error {
	err := ErrQueryFinalized
	q.once.Do(func() {
		q.respond(&Reply{Key: q.Key, Payload: payload, Attachment: attachment})
		err = nil
	})
	return err
}

// Drop finalizes the query without answering it. Dropping an answered query
// is a no-op.
func (q *Query) Drop() {
	q.once.Do(func() { q.respond(nil) })
}

// Session is a connection to the pub/sub fabric.
type Session interface {
	// ID returns the session identifier as 32 lowercase hex characters.
	ID() string

	DeclarePublisher(key string, opts PublisherOptions) (Publisher, error)
	DeclareSubscriber(key string, opts SubscriberOptions, handler func(Sample)) (io.Closer, error)

	// DeclareQueryable registers handler for queries whose key intersects key.
	// The handler may keep the query and answer it later.
	DeclareQueryable(key string, handler func(*Query)) (io.Closer, error)
	// Get sends a query to every matching queryable. The returned channel is
	// closed once every reached queryable has answered or dropped the query,
	// or when ctx is done.
	Get(ctx context.Context, key string, payload, attachment []byte) (<-chan Reply, error)

	// DeclareToken announces key until the returned closer is closed.
	DeclareToken(key string) (io.Closer, error)
	// SubscribeLiveliness reports tokens matching key as they appear (put) and
	// disappear (delete).
	SubscribeLiveliness(key string, handler func(Sample)) (io.Closer, error)
	// GetLiveliness lists the currently declared tokens matching key.
	GetLiveliness(ctx context.Context, key string) ([]string, error)

	io.Closer
}

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }
