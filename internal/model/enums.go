// Package model holds the wire-level data types shared by the discovery
// engine, the device endpoint, and the gateway registry: ServiceInfo, the
// MDNSRecord tagged union, MDNSPacket, DeviceEntry, and the length-prefixed
// binary request/response protocol.
package model

import "fmt"

// ServiceKind distinguishes sensors (report-only) from actuators
// (accept commands).
type ServiceKind uint8

const (
	KindUnknown ServiceKind = iota
	KindSensor
	KindActuator
)

func (k ServiceKind) String() string {
	switch k {
	case KindSensor:
		return "sensor"
	case KindActuator:
		return "actuator"
	default:
		return "unknown"
	}
}

func ParseServiceKind(s string) (ServiceKind, error) {
	switch s {
	case "sensor":
		return KindSensor, nil
	case "actuator":
		return KindActuator, nil
	default:
		return KindUnknown, fmt.Errorf("model: unknown service kind %q", s)
	}
}

// ServiceCategory is the closed set of device categories this fabric knows
// how to advertise and, for actuators, command.
type ServiceCategory uint8

const (
	CategoryUnknown ServiceCategory = iota
	CategoryLightLamp
	CategoryFartDetector
	CategoryToilet
	CategorySink
	CategoryWaterLeak
)

func (c ServiceCategory) String() string {
	switch c {
	case CategoryLightLamp:
		return "LightLamp"
	case CategoryFartDetector:
		return "FartDetector"
	case CategoryToilet:
		return "Toilet"
	case CategorySink:
		return "Sink"
	case CategoryWaterLeak:
		return "WaterLeak"
	default:
		return "Unknown"
	}
}

// ServiceType returns the hierarchical DNS-SD-style label this category
// advertises under, e.g. "_lightlamp._tcp.local.".
func (c ServiceCategory) ServiceType() string {
	switch c {
	case CategoryLightLamp:
		return "_lightlamp._tcp.local."
	case CategoryFartDetector:
		return "_fartdetector._tcp.local."
	case CategoryToilet:
		return "_toilet._tcp.local."
	case CategorySink:
		return "_sink._tcp.local."
	case CategoryWaterLeak:
		return "_waterleak._tcp.local."
	default:
		return ""
	}
}

func ParseServiceCategory(s string) (ServiceCategory, error) {
	switch s {
	case "LightLamp":
		return CategoryLightLamp, nil
	case "FartDetector":
		return CategoryFartDetector, nil
	case "Toilet":
		return CategoryToilet, nil
	case "Sink":
		return CategorySink, nil
	case "WaterLeak":
		return CategoryWaterLeak, nil
	default:
		return CategoryUnknown, fmt.Errorf("model: unknown service category %q", s)
	}
}

// CategoryByServiceType is the inverse of ServiceCategory.ServiceType, used
// when the gateway has only the wire-level service_type label (from a PTR
// question) and needs to find the category it maps to.
func CategoryByServiceType(serviceType string) (ServiceCategory, bool) {
	for _, c := range []ServiceCategory{CategoryLightLamp, CategoryFartDetector, CategoryToilet, CategorySink, CategoryWaterLeak} {
		if c.ServiceType() == serviceType {
			return c, true
		}
	}
	return CategoryUnknown, false
}

// Transport is the per-record transport protocol (TCP or UDP).
type Transport uint8

const (
	TransportUnknown Transport = iota
	TransportTCP
	TransportUDP
)

func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	case TransportUDP:
		return "udp"
	default:
		return "unknown"
	}
}

// RecordKind tags the four MDNSRecord arms. New record types extend this
// set in one place; consumers switch on Kind rather than type-asserting a
// class hierarchy.
type RecordKind uint8

const (
	RecordPTR RecordKind = iota
	RecordSRV
	RecordTXT
	RecordA
)

func (k RecordKind) String() string {
	switch k {
	case RecordPTR:
		return "PTR"
	case RecordSRV:
		return "SRV"
	case RecordTXT:
		return "TXT"
	case RecordA:
		return "A"
	default:
		return "?"
	}
}

// PacketType tags the two MDNSPacket body arms.
type PacketType uint8

const (
	PacketQueryRequest PacketType = iota
	PacketQueryResponse
)

// DeviceStatus is the GR-owned liveness state machine for a DeviceEntry.
type DeviceStatus uint8

const (
	StatusUnknown DeviceStatus = iota
	StatusOffline
	StatusOnline
	StatusError
)

func (s DeviceStatus) String() string {
	switch s {
	case StatusOffline:
		return "offline"
	case StatusOnline:
		return "online"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// RequestKind tags the Request arms understood by a DevEP connection
// handler and, for ListDevices, by the gateway's own external API.
type RequestKind uint8

const (
	ReqEmpty RequestKind = iota
	ReqListDevices
	ReqSendActuatorCommand
)

// ResponseKind tags the Response arms a DevEP or the gateway writes back.
type ResponseKind uint8

const (
	RespEmpty ResponseKind = iota
	RespError
	RespSendActuatorCommandResponse
	RespListDevicesResult
)
