package rosz

import "github.com/jazi007/oxidros-sub001/qos"

// QosProfile contains all QoS settings for a publisher, subscriber, client
// or server
type QosProfile = qos.Profile

// QosDuration represents a duration in seconds and nanoseconds for QoS settings
type QosDuration = qos.Duration

type (
	QosReliability = qos.Reliability
	QosDurability  = qos.Durability
	QosHistory     = qos.History
	QosLiveliness  = qos.Liveliness
)

const (
	// ReliabilityReliable retransmits lost messages (default)
	ReliabilityReliable = qos.ReliabilityReliable
	// ReliabilityBestEffort delivers messages without retransmission
	ReliabilityBestEffort = qos.ReliabilityBestEffort

	// DurabilityVolatile only delivers messages published after subscription (default)
	DurabilityVolatile = qos.DurabilityVolatile
	// DurabilityTransientLocal delivers cached messages to late-joining subscribers
	DurabilityTransientLocal = qos.DurabilityTransientLocal

	// HistoryKeepLast keeps only the last N messages (default)
	HistoryKeepLast = qos.HistoryKeepLast
	// HistoryKeepAll keeps all messages (limited by system resources)
	HistoryKeepAll = qos.HistoryKeepAll

	LivelinessSystemDefault = qos.LivelinessSystemDefault
	LivelinessAutomatic     = qos.LivelinessAutomatic
	// LivelinessManualByTopic is accepted but treated as automatic
	LivelinessManualByTopic = qos.LivelinessManualByTopic
)

// QosDurationInfinite returns an infinite duration
func QosDurationInfinite() QosDuration {
	return qos.Infinite()
}

// QosDefault returns the default QoS profile (Reliable, Volatile, KeepLast(10))
func QosDefault() QosProfile { return qos.Default() }

// QosServicesDefault returns the profile used for services
func QosServicesDefault() QosProfile { return qos.ServicesDefault() }

// QosSensorData returns QoS suitable for sensor data (BestEffort, Volatile, KeepLast(5))
func QosSensorData() QosProfile { return qos.SensorData() }

// QosParameters returns the profile of the parameter services
func QosParameters() QosProfile { return qos.Parameters() }

// QosParameterEvents returns QoS for parameter events (Reliable, Volatile, KeepLast(1000))
func QosParameterEvents() QosProfile { return qos.ParameterEvents() }

// QosKeepAll returns QoS that keeps all messages (Reliable, Volatile, KeepAll)
func QosKeepAll() QosProfile { return qos.KeepAll() }

// QosTransientLocal returns QoS with transient local durability (Reliable, TransientLocal, KeepLast(1))
// Suitable for /robot_description, /tf_static
func QosTransientLocal() QosProfile { return qos.TransientLocal() }
