package rosz

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jazi007/oxidros-sub001/keyexpr"
	"github.com/jazi007/oxidros-sub001/qos"
	"github.com/jazi007/oxidros-sub001/transport"
)

// graphQueryTimeout bounds the startup query of existing tokens.
const graphQueryTimeout = 5 * time.Second

// TopicInfo describes a discovered topic
type TopicInfo struct {
	Name     string
	TypeName string
}

// NodeInfo describes a discovered node
type NodeInfo struct {
	Name      string
	Namespace string
}

// EndpointInfo describes a discovered publisher, subscriber, server or client
type EndpointInfo struct {
	NodeName      string
	NodeNamespace string
	TopicName     string
	TypeName      string
	TypeHash      string
	QoS           qos.Profile
	Kind          keyexpr.EntityKind
}

// graphCache mirrors the liveliness tokens of one domain.
type graphCache struct {
	mu       sync.RWMutex
	entities map[string]keyexpr.EntityInfo
	sub      io.Closer
	logger   *slog.Logger
}

func newGraphCache(s transport.Session, domainID uint32, log *slog.Logger) (*graphCache, error) {
	g := &graphCache{
		entities: make(map[string]keyexpr.EntityInfo),
		logger:   log,
	}
	pattern := keyexpr.LivelinessDomain(domainID)
	sub, err := s.SubscribeLiveliness(pattern, g.handle)
	if err != nil {
		return nil, err
	}
	g.sub = sub

	ctx, cancel := context.WithTimeout(context.Background(), graphQueryTimeout)
	defer cancel()
	keys, err := s.GetLiveliness(ctx, pattern)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}
	for _, k := range keys {
		g.insert(k)
	}
	return g, nil
}

func (g *graphCache) handle(s transport.Sample) {
	if s.Kind == transport.SampleKindDelete {
		g.mu.Lock()
		delete(g.entities, s.Key)
		g.mu.Unlock()
		return
	}
	g.insert(s.Key)
}

func (g *graphCache) insert(key string) {
	info, err := keyexpr.ParseLiveliness(key)
	if err != nil {
		g.logger.Debug("ignoring liveliness token", "key", key, "error", err)
		return
	}
	g.mu.Lock()
	g.entities[key] = info
	g.mu.Unlock()
}

func (g *graphCache) close() error {
	return g.sub.Close()
}

// namespaceOf reports the root namespace as "/".
func namespaceOf(e keyexpr.EntityInfo) string {
	if e.Namespace == "" {
		return "/"
	}
	return e.Namespace
}

// each calls fn for every cached entity under the read lock.
func (g *graphCache) each(fn func(keyexpr.EntityInfo)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.entities {
		fn(e)
	}
}

func (g *graphCache) endpoints(topic string, kind keyexpr.EntityKind) []EndpointInfo {
	var out []EndpointInfo
	g.each(func(e keyexpr.EntityInfo) {
		if e.Kind != kind || e.TopicName != topic {
			return
		}
		out = append(out, EndpointInfo{
			NodeName:      e.NodeName,
			NodeNamespace: namespaceOf(e),
			TopicName:     e.TopicName,
			TypeName:      keyexpr.ROSTypeName(e.TypeName),
			TypeHash:      e.TypeHash,
			QoS:           e.QoS,
			Kind:          e.Kind,
		})
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeNamespace != out[j].NodeNamespace {
			return out[i].NodeNamespace < out[j].NodeNamespace
		}
		return out[i].NodeName < out[j].NodeName
	})
	return out
}

func (g *graphCache) namesAndTypes(kinds ...keyexpr.EntityKind) []TopicInfo {
	seen := make(map[TopicInfo]bool)
	g.each(func(e keyexpr.EntityInfo) {
		for _, k := range kinds {
			if e.Kind == k {
				seen[TopicInfo{Name: e.TopicName, TypeName: keyexpr.ROSTypeName(e.TypeName)}] = true
			}
		}
	})
	out := make([]TopicInfo, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].TypeName < out[j].TypeName
	})
	return out
}

// GetTopicNamesAndTypes returns all topics visible in the ROS graph
func (c *Context) GetTopicNamesAndTypes() ([]TopicInfo, error) {
	if c.closed.Load() {
		return nil, ErrContextClosed
	}
	return c.graph.namesAndTypes(keyexpr.Publisher, keyexpr.Subscriber), nil
}

// GetServiceNamesAndTypes returns all services with a server in the ROS graph
func (c *Context) GetServiceNamesAndTypes() ([]TopicInfo, error) {
	if c.closed.Load() {
		return nil, ErrContextClosed
	}
	return c.graph.namesAndTypes(keyexpr.ServiceServer), nil
}

// GetNodeNames returns all nodes visible in the ROS graph
func (c *Context) GetNodeNames() ([]NodeInfo, error) {
	if c.closed.Load() {
		return nil, ErrContextClosed
	}
	seen := make(map[NodeInfo]bool)
	c.graph.each(func(e keyexpr.EntityInfo) {
		if e.Kind == keyexpr.Node {
			seen[NodeInfo{Name: e.NodeName, Namespace: namespaceOf(e)}] = true
		}
	})
	nodes := make([]NodeInfo, 0, len(seen))
	for n := range seen {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Namespace != nodes[j].Namespace {
			return nodes[i].Namespace < nodes[j].Namespace
		}
		return nodes[i].Name < nodes[j].Name
	})
	return nodes, nil
}

// NodeExists checks if a node with the given name and namespace exists in the graph
func (c *Context) NodeExists(name, namespace string) (bool, error) {
	if c.closed.Load() {
		return false, ErrContextClosed
	}
	if namespace == "" {
		namespace = "/"
	}
	found := false
	c.graph.each(func(e keyexpr.EntityInfo) {
		if e.Kind == keyexpr.Node && e.NodeName == name && namespaceOf(e) == namespace {
			found = true
		}
	})
	return found, nil
}

// CountPublishers returns the number of publishers on a fully qualified topic
func (c *Context) CountPublishers(topic string) (int, error) {
	infos, err := c.GetPublishersInfo(topic)
	return len(infos), err
}

// CountSubscribers returns the number of subscribers on a fully qualified topic
func (c *Context) CountSubscribers(topic string) (int, error) {
	infos, err := c.GetSubscribersInfo(topic)
	return len(infos), err
}

// GetPublishersInfo describes every publisher on a fully qualified topic
func (c *Context) GetPublishersInfo(topic string) ([]EndpointInfo, error) {
	if c.closed.Load() {
		return nil, ErrContextClosed
	}
	return c.graph.endpoints(topic, keyexpr.Publisher), nil
}

// GetSubscribersInfo describes every subscriber on a fully qualified topic
func (c *Context) GetSubscribersInfo(topic string) ([]EndpointInfo, error) {
	if c.closed.Load() {
		return nil, ErrContextClosed
	}
	return c.graph.endpoints(topic, keyexpr.Subscriber), nil
}

// IsServiceAvailable reports whether a server for service is known. An empty
// typeName matches any type.
func (c *Context) IsServiceAvailable(service, typeName string) (bool, error) {
	if c.closed.Load() {
		return false, ErrContextClosed
	}
	for _, e := range c.graph.endpoints(service, keyexpr.ServiceServer) {
		if typeName == "" || e.TypeName == typeName {
			return true, nil
		}
	}
	return false, nil
}
