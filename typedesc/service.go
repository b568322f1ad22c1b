package typedesc

// Type names of the descriptions every service event references.
const (
	ServiceEventInfoTypeName = "service_msgs/msg/ServiceEventInfo"
	TimeTypeName             = "builtin_interfaces/msg/Time"
)

// TimeDescription describes builtin_interfaces/msg/Time.
func TimeDescription() Individual {
	return NewIndividual(TimeTypeName,
		NewField("sec", Primitive(FieldTypeInt32)),
		NewField("nanosec", Primitive(FieldTypeUint32)),
	)
}

// ServiceEventInfoDescription describes service_msgs/msg/ServiceEventInfo.
func ServiceEventInfoDescription() Individual {
	return NewIndividual(ServiceEventInfoTypeName,
		NewField("event_type", Primitive(FieldTypeUint8)),
		NewField("stamp", Nested(TimeTypeName)),
		NewField("client_gid", Array(FieldTypeUint8, 16)),
		NewField("sequence_number", Primitive(FieldTypeInt64)),
	)
}

// NewService builds the description of service name ("pkg/srv/Name") from
// the descriptions of its request and response messages. The result has the
// request_message, response_message and event_message members that rosidl
// generates, so its hash matches the one native nodes advertise.
func NewService(name string, request, response Message) Message {
	reqName := request.TypeDescription.TypeName
	respName := response.TypeDescription.TypeName
	eventName := name + "_Event"

	event := NewIndividual(eventName,
		NewField("info", Nested(ServiceEventInfoTypeName)),
		NewField("request", NestedBoundedSequence(reqName, 1)),
		NewField("response", NestedBoundedSequence(respName, 1)),
	)
	primary := NewIndividual(name,
		NewField("request_message", Nested(reqName)),
		NewField("response_message", Nested(respName)),
		NewField("event_message", Nested(eventName)),
	)

	refs := []Individual{
		request.TypeDescription,
		response.TypeDescription,
		event,
		ServiceEventInfoDescription(),
		TimeDescription(),
	}
	refs = append(refs, request.ReferencedTypeDescriptions...)
	refs = append(refs, response.ReferencedTypeDescriptions...)
	return NewMessage(primary, refs...)
}
