package gateway

import (
	"context"
	"net"
	"strconv"

	"github.com/google/uuid"

	"iotfabric/internal/model"
)

// commandDialTimeout bounds the whole dial+round-trip for a forwarded
// actuator command (SPEC §4.3 step 5, §6).
const commandDialTimeout = 2 * probeDialTimeout

// SendActuatorCommand looks up deviceID, validates it is a known,
// non-offline actuator, and forwards action to its TCP endpoint,
// returning the device's own response verbatim.
func (r *Registry) SendActuatorCommand(ctx context.Context, deviceID string, action model.ActuatorAction) (string, *model.Error) {
	correlationID := uuid.New().String()

	entry, ok := r.lookup(deviceID)
	if !ok {
		return "", model.NewError(model.ErrDeviceNotFound, "no such device", "device_id", deviceID)
	}
	if entry.Kind != model.KindActuator {
		return "", model.NewError(model.ErrInvalidCommand, "device is not an actuator", "device_id", deviceID)
	}
	if entry.Status == model.StatusOffline {
		return "", model.NewError(model.ErrDeviceOffline, "device is offline", "device_id", deviceID)
	}
	if len(entry.Addresses) == 0 || entry.Port == 0 {
		return "", model.NewError(model.ErrDeviceOffline, "device has no reachable address", "device_id", deviceID)
	}

	addr := net.JoinHostPort(entry.Addresses[0], strconv.Itoa(int(entry.Port)))

	dialCtx, cancel := context.WithTimeout(ctx, commandDialTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		r.log.Warn("gateway: command dial failed", "device_id", deviceID, "addr", addr, "correlation_id", correlationID, "error", err)
		r.setStatus(deviceID, model.StatusOffline, nil)
		return "", model.NewError(model.ErrDeviceOffline, "could not reach device", "device_id", deviceID, "address", addr)
	}
	defer conn.Close()

	if deadline, hasDeadline := dialCtx.Deadline(); hasDeadline {
		conn.SetDeadline(deadline)
	}

	req := model.Request{
		Kind:     model.ReqSendActuatorCommand,
		DeviceID: deviceID,
		Action:   &action,
	}
	if err := model.WriteFrame(conn, model.EncodeRequest(req)); err != nil {
		return "", model.NewError(model.ErrDeviceOffline, "failed writing command to device", "device_id", deviceID, "error", err.Error())
	}

	body, err := model.ReadFrame(conn)
	if err != nil {
		return "", model.NewError(model.ErrDeviceOffline, "failed reading response from device", "device_id", deviceID, "error", err.Error())
	}
	resp, err := model.DecodeResponse(body)
	if err != nil {
		return "", model.NewError(model.ErrUnknown, "malformed response from device", "device_id", deviceID, "error", err.Error())
	}

	switch resp.Kind {
	case model.RespError:
		return "", resp.Err
	case model.RespSendActuatorCommandResponse:
		return resp.Message, nil
	default:
		return "", model.NewError(model.ErrUnknown, "unexpected response kind from device", "device_id", deviceID)
	}
}
