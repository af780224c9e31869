package model

// ListDevicesFilter carries the optional list_devices predicate across
// the wire (used by the gateway's external API; a DevEP only ever sees
// Kind == ReqEmpty / ReqSendActuatorCommand in practice, but the same
// Request envelope is shared with the gateway protocol).
type ListDevicesFilter struct {
	HasKind bool
	Kind    ServiceKind
	Name    string
}

// LightLampAction is the actuator action arm a LightLamp DevEP handles.
type LightLampAction struct {
	HasTurnOn bool
	TurnOn    bool

	HasBrightness bool
	Brightness    int

	HasColor bool
	Color    string
}

// SinkAction is the actuator action arm a Sink DevEP handles.
type SinkAction struct {
	HasTurnOn bool
	TurnOn    bool
}

// ActuatorAction is a tagged union over the category-specific action
// arms. Exactly one of LightLamp/Sink is populated, matching Category.
type ActuatorAction struct {
	Category  ServiceCategory
	LightLamp *LightLampAction
	Sink      *SinkAction
}

// Request is the tagged variant read from a length-prefixed connection.
// Arms: Empty, ListDevices(filter), SendActuatorCommand(device_id, action).
type Request struct {
	Kind RequestKind

	ListFilter *ListDevicesFilter

	DeviceID string
	Action   *ActuatorAction
}

// Response is the tagged variant written back on a length-prefixed
// connection. Arms: Empty, Error(code,message,metadata),
// SendActuatorCommandResponse(message); ListDevicesResult is an
// extension used only by the gateway's external API (SPEC_FULL §4.3).
type Response struct {
	Kind ResponseKind

	Err *Error

	Message string

	Devices []DeviceEntry
}
