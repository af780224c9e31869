package model

import (
	"fmt"
	"time"
)

// EncodeRequest serializes a Request to its wire bytes (device protocol
// and gateway external API share this envelope).
func EncodeRequest(req Request) []byte {
	w := &writer{}
	w.u8(uint8(req.Kind))
	switch req.Kind {
	case ReqListDevices:
		f := req.ListFilter
		if f == nil {
			f = &ListDevicesFilter{}
		}
		w.boolean(f.HasKind)
		w.u8(uint8(f.Kind))
		w.str(f.Name)
	case ReqSendActuatorCommand:
		w.str(req.DeviceID)
		encodeAction(w, req.Action)
	}
	return w.bytesOut()
}

// DecodeRequest is the inverse of EncodeRequest.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	r := newReader(data)
	kind, err := r.u8()
	if err != nil {
		return req, err
	}
	req.Kind = RequestKind(kind)
	switch req.Kind {
	case ReqEmpty:
	case ReqListDevices:
		hasKind, err := r.boolean()
		if err != nil {
			return req, err
		}
		k, err := r.u8()
		if err != nil {
			return req, err
		}
		name, err := r.str()
		if err != nil {
			return req, err
		}
		req.ListFilter = &ListDevicesFilter{HasKind: hasKind, Kind: ServiceKind(k), Name: name}
	case ReqSendActuatorCommand:
		if req.DeviceID, err = r.str(); err != nil {
			return req, err
		}
		action, err := decodeAction(r)
		if err != nil {
			return req, err
		}
		req.Action = action
	default:
		return req, fmt.Errorf("model: unknown request kind %d", kind)
	}
	return req, nil
}

func encodeAction(w *writer, a *ActuatorAction) {
	if a == nil {
		a = &ActuatorAction{}
	}
	w.u8(uint8(a.Category))
	switch a.Category {
	case CategoryLightLamp:
		l := a.LightLamp
		if l == nil {
			l = &LightLampAction{}
		}
		w.boolean(l.HasTurnOn)
		w.boolean(l.TurnOn)
		w.boolean(l.HasBrightness)
		w.u32(uint32(int32(l.Brightness)))
		w.boolean(l.HasColor)
		w.str(l.Color)
	case CategorySink:
		s := a.Sink
		if s == nil {
			s = &SinkAction{}
		}
		w.boolean(s.HasTurnOn)
		w.boolean(s.TurnOn)
	}
}

func decodeAction(r *reader) (*ActuatorAction, error) {
	cat, err := r.u8()
	if err != nil {
		return nil, err
	}
	a := &ActuatorAction{Category: ServiceCategory(cat)}
	switch a.Category {
	case CategoryLightLamp:
		l := &LightLampAction{}
		if l.HasTurnOn, err = r.boolean(); err != nil {
			return nil, err
		}
		if l.TurnOn, err = r.boolean(); err != nil {
			return nil, err
		}
		if l.HasBrightness, err = r.boolean(); err != nil {
			return nil, err
		}
		raw, err := r.u32()
		if err != nil {
			return nil, err
		}
		l.Brightness = int(int32(raw))
		if l.HasColor, err = r.boolean(); err != nil {
			return nil, err
		}
		if l.Color, err = r.str(); err != nil {
			return nil, err
		}
		a.LightLamp = l
	case CategorySink:
		s := &SinkAction{}
		if s.HasTurnOn, err = r.boolean(); err != nil {
			return nil, err
		}
		if s.TurnOn, err = r.boolean(); err != nil {
			return nil, err
		}
		a.Sink = s
	}
	return a, nil
}

// EncodeResponse serializes a Response to its wire bytes.
func EncodeResponse(resp Response) []byte {
	w := &writer{}
	w.u8(uint8(resp.Kind))
	switch resp.Kind {
	case RespEmpty:
	case RespError:
		e := resp.Err
		if e == nil {
			e = &Error{}
		}
		w.u8(uint8(e.Code))
		w.str(e.Message)
		w.strMap(e.Metadata)
	case RespSendActuatorCommandResponse:
		w.str(resp.Message)
	case RespListDevicesResult:
		w.u16(uint16(len(resp.Devices)))
		for _, d := range resp.Devices {
			encodeDeviceEntry(w, d)
		}
	}
	return w.bytesOut()
}

// DecodeResponse is the inverse of EncodeResponse.
func DecodeResponse(data []byte) (Response, error) {
	var resp Response
	r := newReader(data)
	kind, err := r.u8()
	if err != nil {
		return resp, err
	}
	resp.Kind = ResponseKind(kind)
	switch resp.Kind {
	case RespEmpty:
	case RespError:
		code, err := r.u8()
		if err != nil {
			return resp, err
		}
		msg, err := r.str()
		if err != nil {
			return resp, err
		}
		meta, err := r.strMap()
		if err != nil {
			return resp, err
		}
		resp.Err = &Error{Code: ErrorCode(code), Message: msg, Metadata: meta}
	case RespSendActuatorCommandResponse:
		if resp.Message, err = r.str(); err != nil {
			return resp, err
		}
	case RespListDevicesResult:
		n, err := r.u16()
		if err != nil {
			return resp, err
		}
		resp.Devices = make([]DeviceEntry, 0, n)
		for i := 0; i < int(n); i++ {
			d, err := decodeDeviceEntry(r)
			if err != nil {
				return resp, err
			}
			resp.Devices = append(resp.Devices, d)
		}
	default:
		return resp, fmt.Errorf("model: unknown response kind %d", kind)
	}
	return resp, nil
}

// EncodeDeviceEntry serializes a single DeviceEntry, for callers (such as
// the gateway's event stream) that need one outside a Response envelope.
func EncodeDeviceEntry(d DeviceEntry) []byte {
	w := &writer{}
	encodeDeviceEntry(w, d)
	return w.bytesOut()
}

// DecodeDeviceEntry is the inverse of EncodeDeviceEntry.
func DecodeDeviceEntry(data []byte) (DeviceEntry, error) {
	return decodeDeviceEntry(newReader(data))
}

func encodeDeviceEntry(w *writer, d DeviceEntry) {
	w.str(d.ID)
	w.str(d.DeviceName)
	w.u8(uint8(d.Kind))
	w.u8(uint8(d.Category))
	w.u8(uint8(d.Transport))
	w.strSlice(d.Addresses)
	w.u16(d.Port)
	w.strMap(d.Properties)
	w.u8(uint8(d.Status))
	w.u64(uint64(d.ExpiresAt.UnixNano()))
	w.u64(uint64(d.LastHealthOKAt.UnixNano()))
}

func decodeDeviceEntry(r *reader) (DeviceEntry, error) {
	var d DeviceEntry
	var err error
	if d.ID, err = r.str(); err != nil {
		return d, err
	}
	if d.DeviceName, err = r.str(); err != nil {
		return d, err
	}
	k, err := r.u8()
	if err != nil {
		return d, err
	}
	d.Kind = ServiceKind(k)
	c, err := r.u8()
	if err != nil {
		return d, err
	}
	d.Category = ServiceCategory(c)
	t, err := r.u8()
	if err != nil {
		return d, err
	}
	d.Transport = Transport(t)
	if d.Addresses, err = r.strSlice(); err != nil {
		return d, err
	}
	if d.Port, err = r.u16(); err != nil {
		return d, err
	}
	if d.Properties, err = r.strMap(); err != nil {
		return d, err
	}
	st, err := r.u8()
	if err != nil {
		return d, err
	}
	d.Status = DeviceStatus(st)
	expNanos, err := r.u64()
	if err != nil {
		return d, err
	}
	d.ExpiresAt = time.Unix(0, int64(expNanos)).UTC()
	healthNanos, err := r.u64()
	if err != nil {
		return d, err
	}
	d.LastHealthOKAt = time.Unix(0, int64(healthNanos)).UTC()
	return d, nil
}
