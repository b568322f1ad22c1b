package keyexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jazi007/oxidros-sub001/qos"
)

// ErrInvalidKey is returned for liveliness keys that cannot be parsed.
var ErrInvalidKey = errors.New("keyexpr: invalid liveliness key")

// EntityInfo is a liveliness token decoded back into its parts. Topic, type
// and QoS fields are empty for nodes.
type EntityInfo struct {
	DomainID  uint32
	SessionID string
	NodeID    uint32
	EntityID  uint32
	Kind      EntityKind
	Enclave   string
	Namespace string
	NodeName  string
	TopicName string
	TypeName  string
	TypeHash  string
	QoSString string
	QoS       qos.Profile
}

// NodeFQN returns the fully qualified name of the entity's node.
func (e EntityInfo) NodeFQN() string {
	if e.Namespace == "" || e.Namespace == "/" {
		return "/" + e.NodeName
	}
	return e.Namespace + "/" + e.NodeName
}

// ParseLiveliness decodes a token built by LivelinessNode or LivelinessEntity.
func ParseLiveliness(key string) (EntityInfo, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 9 {
		return EntityInfo{}, fmt.Errorf("%w: %d segments in %q", ErrInvalidKey, len(parts), key)
	}
	if parts[0] != LivelinessPrefix {
		return EntityInfo{}, fmt.Errorf("%w: prefix %q", ErrInvalidKey, parts[0])
	}

	domain, err := parseID(parts[1], "domain")
	if err != nil {
		return EntityInfo{}, err
	}
	nodeID, err := parseID(parts[3], "node id")
	if err != nil {
		return EntityInfo{}, err
	}
	entityID, err := parseID(parts[4], "entity id")
	if err != nil {
		return EntityInfo{}, err
	}
	kind, err := ParseEntityKind(parts[5])
	if err != nil {
		return EntityInfo{}, err
	}

	info := EntityInfo{
		DomainID:  domain,
		SessionID: parts[2],
		NodeID:    nodeID,
		EntityID:  entityID,
		Kind:      kind,
		Enclave:   Unmangle(parts[6]),
		Namespace: Unmangle(parts[7]),
		NodeName:  parts[8],
	}
	if kind == Node || len(parts) < 12 {
		return info, nil
	}

	info.TopicName = Unmangle(parts[9])
	info.TypeName = parts[10]
	info.TypeHash = parts[11]
	if len(parts) > 12 {
		info.QoSString = parts[12]
		if p, err := qos.ParseKeyExpr(parts[12]); err == nil {
			info.QoS = p
		}
	}
	return info, nil
}

func parseID(s, what string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidKey, what, s)
	}
	return uint32(v), nil
}
