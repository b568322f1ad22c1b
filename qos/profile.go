// Package qos holds ROS 2 quality-of-service profiles and their mapping onto
// the pub/sub transport: queue depths, historical sample counts, congestion
// behaviour and the compact string advertised in liveliness keys.
package qos

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// History controls how many messages are kept.
type History uint8

const (
	HistorySystemDefault History = iota
	// HistoryKeepLast keeps only the last Depth messages.
	HistoryKeepLast
	// HistoryKeepAll keeps every message, bounded by KeepAllDepth.
	HistoryKeepAll
	HistoryUnknown
)

// Reliability controls message delivery guarantees.
type Reliability uint8

const (
	ReliabilitySystemDefault Reliability = iota
	// ReliabilityReliable retransmits lost messages.
	ReliabilityReliable
	// ReliabilityBestEffort delivers messages without retransmission.
	ReliabilityBestEffort
	ReliabilityUnknown
	ReliabilityBestAvailable
)

// Durability controls whether late-joining subscribers see past messages.
type Durability uint8

const (
	DurabilitySystemDefault Durability = iota
	// DurabilityTransientLocal delivers cached messages to late joiners.
	DurabilityTransientLocal
	// DurabilityVolatile only delivers messages published after subscription.
	DurabilityVolatile
	DurabilityUnknown
	DurabilityBestAvailable
)

// Liveliness controls how liveliness is asserted.
type Liveliness uint8

const (
	LivelinessSystemDefault Liveliness = iota
	LivelinessAutomatic
	LivelinessManualByTopic
	LivelinessUnknown
	LivelinessBestAvailable
)

func (h History) String() string {
	switch h {
	case HistorySystemDefault:
		return "system_default"
	case HistoryKeepLast:
		return "keep_last"
	case HistoryKeepAll:
		return "keep_all"
	}
	return "unknown"
}

func (r Reliability) String() string {
	switch r {
	case ReliabilitySystemDefault:
		return "system_default"
	case ReliabilityReliable:
		return "reliable"
	case ReliabilityBestEffort:
		return "best_effort"
	case ReliabilityBestAvailable:
		return "best_available"
	}
	return "unknown"
}

func (d Durability) String() string {
	switch d {
	case DurabilitySystemDefault:
		return "system_default"
	case DurabilityTransientLocal:
		return "transient_local"
	case DurabilityVolatile:
		return "volatile"
	case DurabilityBestAvailable:
		return "best_available"
	}
	return "unknown"
}

func (l Liveliness) String() string {
	switch l {
	case LivelinessSystemDefault:
		return "system_default"
	case LivelinessAutomatic:
		return "automatic"
	case LivelinessManualByTopic:
		return "manual_by_topic"
	case LivelinessBestAvailable:
		return "best_available"
	}
	return "unknown"
}

// Duration is a QoS time constraint in seconds and nanoseconds. The zero
// value means "not set", which rmw treats as infinite.
type Duration struct {
	Sec  uint64
	Nsec uint64
}

// Infinite returns the explicit infinite duration used by rmw.
func Infinite() Duration {
	return Duration{Sec: 9223372036, Nsec: 854775807}
}

// FromStd converts a time.Duration. Negative durations become zero.
func FromStd(d time.Duration) Duration {
	if d <= 0 {
		return Duration{}
	}
	return Duration{Sec: uint64(d / time.Second), Nsec: uint64(d % time.Second)}
}

// IsZero reports whether d is unset.
func (d Duration) IsZero() bool {
	return d.Sec == 0 && d.Nsec == 0
}

// IsInfinite reports whether d equals Infinite().
func (d Duration) IsInfinite() bool {
	return d == Infinite()
}

// Std converts d to a time.Duration, saturating at the maximum.
func (d Duration) Std() time.Duration {
	if d.Sec >= uint64(math.MaxInt64/int64(time.Second)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d.Sec)*time.Second + time.Duration(d.Nsec)
}

// Profile contains all QoS settings for an endpoint.
type Profile struct {
	History                      History
	Depth                        int
	Reliability                  Reliability
	Durability                   Durability
	Deadline                     Duration
	Lifespan                     Duration
	Liveliness                   Liveliness
	LivelinessLeaseDuration      Duration
	AvoidROSNamespaceConventions bool
}

// Default returns KeepLast(10), Reliable, Volatile.
func Default() Profile {
	return Profile{
		History:     HistoryKeepLast,
		Depth:       10,
		Reliability: ReliabilityReliable,
		Durability:  DurabilityVolatile,
		Liveliness:  LivelinessSystemDefault,
	}
}

// ServicesDefault returns the profile used for service clients and servers.
func ServicesDefault() Profile {
	return Default()
}

// SensorData returns BestEffort, Volatile, KeepLast(5).
func SensorData() Profile {
	p := Default()
	p.Reliability = ReliabilityBestEffort
	p.Depth = 5
	return p
}

// Parameters returns the profile of the parameter services, KeepLast(1000).
func Parameters() Profile {
	p := Default()
	p.Depth = 1000
	return p
}

// ParameterEvents returns the profile of /parameter_events, KeepLast(1000).
func ParameterEvents() Profile {
	return Parameters()
}

// KeepAll returns Reliable, Volatile, KeepAll.
func KeepAll() Profile {
	p := Default()
	p.History = HistoryKeepAll
	return p
}

// TransientLocal returns Reliable, TransientLocal, KeepLast(1), as used for
// /robot_description and /tf_static.
func TransientLocal() Profile {
	p := Default()
	p.Durability = DurabilityTransientLocal
	p.Depth = 1
	return p
}

// rmwDefault is the profile rmw_zenoh treats as default when encoding keys.
func rmwDefault() Profile {
	return Profile{
		History:     HistoryKeepLast,
		Depth:       DefaultDepth,
		Reliability: ReliabilityReliable,
		Durability:  DurabilityVolatile,
		Liveliness:  LivelinessAutomatic,
	}
}

const (
	// DefaultDepth replaces a depth of 0.
	DefaultDepth = 42
	// KeepAllDepth bounds KeepAll queues. Queues grow on demand up to it.
	KeepAllDepth = math.MaxInt32
)

// EffectiveDepth returns the queue and cache depth for p.
func EffectiveDepth(p Profile) int {
	if p.History == HistoryKeepAll {
		return KeepAllDepth
	}
	if p.Depth == 0 {
		return DefaultDepth
	}
	return max(p.Depth, 1)
}

// HistoryDepth returns how many past samples a late-joining subscriber asks
// for, and how many a publisher retains for them.
func HistoryDepth(p Profile) int {
	if IsTransientLocal(p) {
		return EffectiveDepth(p)
	}
	return 0
}

// IsTransientLocal reports whether p requests transient local durability.
func IsTransientLocal(p Profile) bool {
	return p.Durability == DurabilityTransientLocal
}

// IsReliable reports whether p requests reliable delivery. SystemDefault
// maps to reliable.
func IsReliable(p Profile) bool {
	return p.Reliability == ReliabilityReliable || p.Reliability == ReliabilitySystemDefault
}

// CongestionControl selects what a publisher does when the transport is congested.
type CongestionControl uint8

const (
	CongestionDrop CongestionControl = iota
	CongestionBlock
)

func (c CongestionControl) String() string {
	if c == CongestionBlock {
		return "block"
	}
	return "drop"
}

// Congestion returns Block for KeepAll with reliable delivery, else Drop.
func Congestion(p Profile) CongestionControl {
	if p.History == HistoryKeepAll && IsReliable(p) {
		return CongestionBlock
	}
	return CongestionDrop
}

// Validate logs warnings for policies that are accepted but not enforced.
func Validate(p Profile, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if p.Liveliness == LivelinessManualByTopic {
		logger.Warn("qos liveliness manual_by_topic is not supported, using automatic")
	}
	if !p.Deadline.IsZero() {
		logger.Warn("qos deadline is not enforced, ignoring", "deadline", p.Deadline.Std())
	}
	if !p.Lifespan.IsZero() {
		logger.Warn("qos lifespan is not enforced, ignoring", "lifespan", p.Lifespan.Std())
	}
}

func (p Profile) String() string {
	return fmt.Sprintf("%s(%d)/%s/%s", p.History, p.Depth, p.Reliability, p.Durability)
}
