package deviceendpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"iotfabric/internal/model"
)

func testServiceInfo() model.ServiceInfo {
	return model.ServiceInfo{
		InstanceName: "lamp1",
		ServiceType:  model.CategoryLightLamp.ServiceType(),
		Port:         9000,
		Kind:         model.KindActuator,
		Category:     model.CategoryLightLamp,
		Transport:    model.TransportTCP,
		TTLSeconds:   120,
	}
}

func TestHandleCommandUpdatesStateBeforeResponding(t *testing.T) {
	var updates []model.ServiceInfo
	onUpdate := func(info model.ServiceInfo) error {
		updates = append(updates, info)
		return nil
	}

	d := NewActuatorDevice(testServiceInfo(), NewLightLampState(), onUpdate)

	action := &model.ActuatorAction{
		Category:  model.CategoryLightLamp,
		LightLamp: &model.LightLampAction{HasTurnOn: true, TurnOn: true},
	}
	resp := d.Handle(context.Background(), model.Request{Kind: model.ReqSendActuatorCommand, Action: action})

	require.Equal(t, model.RespSendActuatorCommandResponse, resp.Kind)
	require.Len(t, updates, 1, "onUpdate must fire exactly once, before the response is returned")
	require.Equal(t, "true", updates[0].Properties["is_on"])
}

func TestHandleCommandValidationErrorSkipsUpdate(t *testing.T) {
	called := false
	onUpdate := func(info model.ServiceInfo) error {
		called = true
		return nil
	}

	d := NewActuatorDevice(testServiceInfo(), NewLightLampState(), onUpdate)

	action := &model.ActuatorAction{
		Category:  model.CategoryLightLamp,
		LightLamp: &model.LightLampAction{HasBrightness: true, Brightness: 101},
	}
	resp := d.Handle(context.Background(), model.Request{Kind: model.ReqSendActuatorCommand, Action: action})

	require.Equal(t, model.RespError, resp.Kind)
	require.Equal(t, model.ErrValidation, resp.Err.Code)
	require.False(t, called, "a rejected command must not re-broadcast or mutate state")
}

func TestHandleCommandRejectsWrongCategoryAction(t *testing.T) {
	d := NewActuatorDevice(testServiceInfo(), NewLightLampState(), func(model.ServiceInfo) error { return nil })

	action := &model.ActuatorAction{Category: model.CategorySink, Sink: &model.SinkAction{HasTurnOn: true, TurnOn: true}}
	resp := d.Handle(context.Background(), model.Request{Kind: model.ReqSendActuatorCommand, Action: action})

	require.Equal(t, model.RespError, resp.Kind)
	require.Equal(t, model.ErrInvalidCommand, resp.Err.Code)
}

func TestHandleCommandOnSensorDeviceIsInvalid(t *testing.T) {
	d := NewSensorDevice(model.ServiceInfo{Category: model.CategoryToilet}, NewToiletState(), nil)

	resp := d.Handle(context.Background(), model.Request{Kind: model.ReqSendActuatorCommand, Action: &model.ActuatorAction{}})

	require.Equal(t, model.RespError, resp.Kind)
	require.Equal(t, model.ErrInvalidCommand, resp.Err.Code)
}

func TestRandomizeUpdatesSensorPropertiesAndBroadcasts(t *testing.T) {
	var lastInfo model.ServiceInfo
	calls := 0
	onUpdate := func(info model.ServiceInfo) error {
		calls++
		lastInfo = info
		return nil
	}

	d := NewSensorDevice(model.ServiceInfo{Category: model.CategoryWaterLeak}, NewWaterLeakState(), onUpdate)
	d.Randomize()

	require.Equal(t, 1, calls)
	_, ok := lastInfo.Properties["moisture"]
	require.True(t, ok)
}

func TestEmptyRequestReturnsEmptyResponse(t *testing.T) {
	d := NewActuatorDevice(testServiceInfo(), NewSinkState(), func(model.ServiceInfo) error { return nil })
	resp := d.Handle(context.Background(), model.Request{Kind: model.ReqEmpty})
	require.Equal(t, model.RespEmpty, resp.Kind)
}
