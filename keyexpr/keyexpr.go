// Package keyexpr builds the routing keys and liveliness tokens that make
// endpoints discoverable by rmw_zenoh based ROS 2 nodes.
//
// Two escaping rules apply and must not be mixed up: topic keys keep the
// slashes of the fully qualified name as path separators, while every name
// embedded in a liveliness key is mangled so that it occupies exactly one
// path segment.
package keyexpr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jazi007/oxidros-sub001/qos"
)

// LivelinessPrefix is the hermetic namespace of all liveliness tokens.
const LivelinessPrefix = "@ros2_lv"

// LivelinessAll matches every liveliness token in every domain.
const LivelinessAll = LivelinessPrefix + "/**"

// LivelinessDomain returns the key expression matching all tokens of a domain.
func LivelinessDomain(domainID uint32) string {
	return LivelinessPrefix + "/" + strconv.FormatUint(uint64(domainID), 10) + "/**"
}

// EntityKind is the kind segment of a liveliness token.
type EntityKind uint8

const (
	Node EntityKind = iota
	Publisher
	Subscriber
	ServiceServer
	ServiceClient
)

var kindCodes = [...]string{
	Node:          "NN",
	Publisher:     "MP",
	Subscriber:    "MS",
	ServiceServer: "SS",
	ServiceClient: "SC",
}

// String returns the two-letter code of k.
func (k EntityKind) String() string {
	if int(k) < len(kindCodes) {
		return kindCodes[k]
	}
	return fmt.Sprintf("EntityKind(%d)", uint8(k))
}

// ParseEntityKind maps a two-letter code back to its kind.
func ParseEntityKind(code string) (EntityKind, error) {
	for k, c := range kindCodes {
		if c == code {
			return EntityKind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown entity kind %q", ErrInvalidKey, code)
}

// Mangle escapes name for use as a single liveliness key segment.
func Mangle(name string) string {
	if name == "" {
		return "%"
	}
	return strings.ReplaceAll(name, "/", "%")
}

// Unmangle reverses Mangle. A lone "%" is the empty name.
func Unmangle(mangled string) string {
	if mangled == "%" {
		return ""
	}
	return strings.ReplaceAll(mangled, "%", "/")
}

// StripSlash removes the single leading slash of a fully qualified name.
func StripSlash(fqName string) string {
	return strings.TrimPrefix(fqName, "/")
}

// Topic returns the data key of a topic or service:
// "<domain>/<fq name without leading slash>/<dds type>/<type hash>".
func Topic(domainID uint32, fqName, typeName, typeHash string) string {
	return fmt.Sprintf("%d/%s/%s/%s", domainID, StripSlash(fqName), typeName, typeHash)
}

// TopicWildcard is Topic with the hash segment matching any hash.
func TopicWildcard(domainID uint32, fqName, typeName string) string {
	return Topic(domainID, fqName, typeName, "*")
}

// LivelinessNode returns the token announcing a node.
func LivelinessNode(domainID uint32, sessionID string, nodeID uint32, enclave, namespace, nodeName string) string {
	return fmt.Sprintf("%s/%d/%s/%d/%d/%s/%s/%s/%s",
		LivelinessPrefix, domainID, sessionID, nodeID, nodeID, Node,
		Mangle(enclave), Mangle(namespace), nodeName)
}

// Entity describes an endpoint for LivelinessEntity.
type Entity struct {
	DomainID  uint32
	SessionID string
	NodeID    uint32
	EntityID  uint32
	Kind      EntityKind
	Enclave   string
	Namespace string
	NodeName  string
	FQName    string
	TypeName  string
	TypeHash  string
	QoS       qos.Profile
}

// LivelinessEntity returns the token announcing a publisher, subscriber,
// service server or service client.
func LivelinessEntity(e Entity) string {
	return fmt.Sprintf("%s/%d/%s/%d/%d/%s/%s/%s/%s/%s/%s/%s/%s",
		LivelinessPrefix, e.DomainID, e.SessionID, e.NodeID, e.EntityID, e.Kind,
		Mangle(e.Enclave), Mangle(e.Namespace), e.NodeName,
		Mangle(e.FQName), e.TypeName, e.TypeHash, e.QoS.KeyExpr())
}

// DDSTypeName converts "pkg/msg/Type" to "pkg::msg::dds_::Type_". Names that
// do not have three segments are returned unchanged.
func DDSTypeName(rosType string) string {
	parts := strings.Split(rosType, "/")
	if len(parts) != 3 {
		return rosType
	}
	return parts[0] + "::" + parts[1] + "::dds_::" + parts[2] + "_"
}

// ROSTypeName converts "pkg::msg::dds_::Type_" back to "pkg/msg/Type".
func ROSTypeName(ddsType string) string {
	parts := strings.Split(ddsType, "::")
	if len(parts) != 4 || parts[2] != "dds_" {
		return ddsType
	}
	return parts[0] + "/" + parts[1] + "/" + strings.TrimSuffix(parts[3], "_")
}
