package rosz

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/jazi007/oxidros-sub001/keyexpr"
	"github.com/jazi007/oxidros-sub001/names"
	"github.com/jazi007/oxidros-sub001/qos"
)

// firstEntityID is the id of the first endpoint a node creates.
const firstEntityID = 10

// Node represents a ROS 2 node
type Node struct {
	ctx          *Context
	id           uint32
	name         string
	namespace    string
	originalName string
	fqn          string
	token        io.Closer
	logger       *slog.Logger
	ctxHandle    uint64

	entityCounter atomic.Uint32

	mu        sync.Mutex
	children  map[uint64]io.Closer
	nextChild uint64
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NodeBuilder builds a Node
type NodeBuilder struct {
	ctx       *Context
	name      string
	namespace string
}

// WithNamespace sets the node namespace
func (b *NodeBuilder) WithNamespace(ns string) *NodeBuilder {
	b.namespace = ns
	return b
}

// Build creates the node. Remap rules for __node and __ns that apply to the
// requested name are honoured.
func (b *NodeBuilder) Build() (*Node, error) {
	c := b.ctx
	if c.closed.Load() {
		return nil, ErrContextClosed
	}
	name, ns, err := c.resolver.ResolveNode(b.name, b.namespace)
	if err != nil {
		return nil, wrapError(ErrorCodeInvalidName, err, "invalid node %s", b.name)
	}

	id := c.nodeCounter.Add(1) - 1
	n := &Node{
		ctx:          c,
		id:           id,
		name:         name,
		namespace:    ns,
		originalName: b.name,
		fqn:          names.FQN(ns, name),
		children:     make(map[uint64]io.Closer),
	}
	n.entityCounter.Store(firstEntityID)
	n.logger = c.logger.With("node", n.fqn)

	key := keyexpr.LivelinessNode(c.domainID, c.session.ID(), id, c.enclave, ns, name)
	n.token, err = c.session.DeclareToken(key)
	if err != nil {
		return nil, wrapError(ErrorCodeNodeCreationFailed, err, "failed to announce node %s", n.fqn)
	}
	if n.ctxHandle, err = c.track(n); err != nil {
		_ = n.token.Close()
		return nil, err
	}

	n.logger.Debug("node created", "id", id, "original_name", b.name)
	runtime.SetFinalizer(n, (*Node).Close)
	return n, nil
}

// Name returns the effective node name
func (n *Node) Name() string { return n.name }

// Namespace returns the effective namespace, "/" for the root
func (n *Node) Namespace() string { return n.namespace }

// FullyQualifiedName returns namespace and name joined
func (n *Node) FullyQualifiedName() string { return n.fqn }

// ID returns the node id within its context
func (n *Node) ID() uint32 { return n.id }

// Logger returns the node logger
func (n *Node) Logger() *slog.Logger { return n.logger }

// Context returns the context the node belongs to
func (n *Node) Context() *Context { return n.ctx }

// ResolveName expands and remaps a topic or service name for this node.
func (n *Node) ResolveName(name string) (string, error) {
	fq, err := n.ctx.resolver.Resolve(name, n.originalName, n.namespace, n.name)
	if err != nil {
		return "", wrapError(ErrorCodeInvalidName, err, "invalid name %q", name)
	}
	return fq, nil
}

// resolveServiceName applies the server naming rule: a relative name is placed
// under the node namespace before remapping.
func (n *Node) resolveServiceName(name string) (string, error) {
	if name == "" || name[0] == '/' || name[0] == '~' {
		return n.ResolveName(name)
	}
	if n.namespace == "/" || n.namespace == "" {
		return n.ResolveName("/" + name)
	}
	return n.ResolveName(n.namespace + "/" + name)
}

func (n *Node) nextEntityID() uint32 {
	return n.entityCounter.Add(1) - 1
}

// entity describes an endpoint of this node for its liveliness token.
func (n *Node) entity(kind keyexpr.EntityKind, fq, typeName, typeHash string, q qos.Profile) keyexpr.Entity {
	c := n.ctx
	return keyexpr.Entity{
		DomainID:  c.domainID,
		SessionID: c.session.ID(),
		NodeID:    n.id,
		EntityID:  n.nextEntityID(),
		Kind:      kind,
		Enclave:   c.enclave,
		Namespace: n.namespace,
		NodeName:  n.name,
		FQName:    fq,
		TypeName:  typeName,
		TypeHash:  typeHash,
		QoS:       q,
	}
}

func (n *Node) track(cl io.Closer) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed.Load() {
		return 0, NewRoszError(ErrorCodeSessionClosed, "node closed")
	}
	n.nextChild++
	n.children[n.nextChild] = cl
	return n.nextChild, nil
}

func (n *Node) untrack(id uint64) {
	n.mu.Lock()
	delete(n.children, id)
	n.mu.Unlock()
}

// CreatePublisher creates a new publisher builder
func (n *Node) CreatePublisher(topic string) *PublisherBuilder {
	return &PublisherBuilder{
		node:  n,
		topic: topic,
		qos:   QosDefault(),
	}
}

// CreateSubscriber creates a new subscriber builder
func (n *Node) CreateSubscriber(topic string) *SubscriberBuilder {
	return &SubscriberBuilder{
		node:  n,
		topic: topic,
		qos:   QosDefault(),
	}
}

// CreateClient creates a new service client builder
func (n *Node) CreateClient(service string) *ClientBuilder {
	return &ClientBuilder{
		node:    n,
		service: service,
		qos:     QosServicesDefault(),
	}
}

// CreateServer creates a new service server builder
func (n *Node) CreateServer(service string) *ServerBuilder {
	return &ServerBuilder{
		node:    n,
		service: service,
		qos:     QosServicesDefault(),
	}
}

// Close destroys the node and every endpoint it created
func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed.Store(true)
		children := make([]io.Closer, 0, len(n.children))
		for _, c := range n.children {
			children = append(children, c)
		}
		n.children = nil
		n.mu.Unlock()

		var err error
		for _, c := range children {
			err = multierr.Append(err, c.Close())
		}
		err = multierr.Append(err, n.token.Close())
		n.ctx.untrack(n.ctxHandle)
		if err != nil {
			n.closeErr = fmt.Errorf("node %s close failed: %w", n.fqn, err)
		}
		runtime.SetFinalizer(n, nil)
	})
	return n.closeErr
}
