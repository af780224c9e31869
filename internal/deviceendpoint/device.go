package deviceendpoint

import (
	"context"
	"maps"
	"sync"

	"iotfabric/internal/model"
)

// actuatorState is the per-category action handler an actuator Device
// delegates to. Implementations mutate in-memory state atomically and
// derive the properties that get re-advertised.
type actuatorState interface {
	properties() map[string]string
	apply(action *model.ActuatorAction) (message string, errResult *model.Error)
}

// sensorState is the per-category randomizer a sensor Device delegates
// to on its update timer.
type sensorState interface {
	properties() map[string]string
	randomize()
}

// Device couples one actuator or sensor's state machine to the
// ServiceInfo template advertised for it, and the callback used to push
// property changes back into the Discovery Engine.
type Device struct {
	mu   sync.Mutex
	info model.ServiceInfo

	actuator actuatorState
	sensor   sensorState

	onUpdate func(model.ServiceInfo) error
}

// NewActuatorDevice builds a Device for an actuator category.
func NewActuatorDevice(info model.ServiceInfo, state actuatorState, onUpdate func(model.ServiceInfo) error) *Device {
	d := &Device{info: info, actuator: state, onUpdate: onUpdate}
	d.syncProperties(state.properties())
	return d
}

// NewSensorDevice builds a Device for a sensor category.
func NewSensorDevice(info model.ServiceInfo, state sensorState, onUpdate func(model.ServiceInfo) error) *Device {
	d := &Device{info: info, sensor: state, onUpdate: onUpdate}
	d.syncProperties(state.properties())
	return d
}

func (d *Device) syncProperties(props map[string]string) {
	d.info.Properties = maps.Clone(props)
}

// Handle applies req to the device and returns the Response to write
// back, per the per-connection protocol in SPEC §4.2.
func (d *Device) Handle(ctx context.Context, req model.Request) model.Response {
	switch req.Kind {
	case model.ReqEmpty:
		return model.Response{Kind: model.RespEmpty}

	case model.ReqSendActuatorCommand:
		return d.handleCommand(req)

	default:
		return errorResponse(model.ErrInvalidCommand, "device endpoint does not support this request")
	}
}

func (d *Device) handleCommand(req model.Request) model.Response {
	if d.actuator == nil {
		return errorResponse(model.ErrInvalidCommand, "device is not an actuator")
	}
	if req.Action == nil {
		return errorResponse(model.ErrInvalidCommand, "missing action")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	message, actionErr := d.actuator.apply(req.Action)
	if actionErr != nil {
		return model.Response{Kind: model.RespError, Err: actionErr}
	}
	d.syncProperties(d.actuator.properties())

	// Re-broadcast under the lock and before replying, so concurrent
	// commands are advertised in the order they were applied and observers
	// see the change promptly (SPEC §4.2, testable property 8).
	if d.onUpdate != nil {
		_ = d.onUpdate(d.info)
	}

	return model.Response{Kind: model.RespSendActuatorCommandResponse, Message: message}
}

// Randomize mutates a sensor's properties and re-broadcasts them. Called
// by the per-device sensor update timer (SPEC §4.2 step 5).
func (d *Device) Randomize() {
	if d.sensor == nil {
		return
	}

	d.mu.Lock()
	d.sensor.randomize()
	d.syncProperties(d.sensor.properties())
	info := d.info
	d.mu.Unlock()

	if d.onUpdate != nil {
		_ = d.onUpdate(info)
	}
}

func errorResponse(code model.ErrorCode, message string) model.Response {
	return model.Response{Kind: model.RespError, Err: model.NewError(code, message)}
}
