package model

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMDNSPacketRoundTrip(t *testing.T) {
	info := ServiceInfo{
		InstanceName: "Light Lamp",
		ServiceType:  CategoryLightLamp.ServiceType(),
		Port:         8080,
		Addresses:    []string{"192.168.1.50"},
		Kind:         KindActuator,
		Category:     CategoryLightLamp,
		Transport:    TransportTCP,
		Properties:   map[string]string{"is_on": "true"},
		TTLSeconds:   4500,
	}
	answers, additional := BuildAnnouncementRecords(info, true)

	p := MDNSPacket{
		TransactionID: 42,
		Timestamp:     time.Now().UTC().Round(time.Microsecond),
		Type:          PacketQueryResponse,
		Answers:       answers,
		Additional:    additional,
	}

	encoded := EncodeMDNSPacket(p)
	decoded, err := DecodeMDNSPacket(encoded)
	require.NoError(t, err)
	require.Equal(t, p.TransactionID, decoded.TransactionID)
	require.True(t, p.Timestamp.Equal(decoded.Timestamp))
	require.Equal(t, p.Answers, decoded.Answers)
	require.Equal(t, p.Additional, decoded.Additional)
}

func TestMDNSPacketQueryRequestRoundTrip(t *testing.T) {
	p := MDNSPacket{
		TransactionID: 7,
		Timestamp:     time.Now().UTC().Round(time.Microsecond),
		Type:          PacketQueryRequest,
		Questions: []Question{
			{Name: "_services._dns-sd._udp.local", Type: RecordPTR},
		},
	}
	decoded, err := DecodeMDNSPacket(EncodeMDNSPacket(p))
	require.NoError(t, err)
	require.Equal(t, p.Questions, decoded.Questions)
}

func TestDecodeMDNSPacketTruncated(t *testing.T) {
	_, err := DecodeMDNSPacket([]byte{0, 0})
	require.Error(t, err)
}

func TestDecodeDatagramFrameMismatch(t *testing.T) {
	datagram := EncodeDatagramFrame([]byte("hello"))
	datagram[3] = 99 // corrupt the length prefix
	_, err := DecodeDatagramFrame(datagram)
	require.Error(t, err)
}

func TestRequestResponseRoundTrip(t *testing.T) {
	req := Request{
		Kind:     ReqSendActuatorCommand,
		DeviceID: "Light Lamp._lightlamp._tcp.local.",
		Action: &ActuatorAction{
			Category: CategoryLightLamp,
			LightLamp: &LightLampAction{
				HasTurnOn:     true,
				TurnOn:        true,
				HasBrightness: true,
				Brightness:    75,
			},
		},
	}
	decodedReq, err := DecodeRequest(EncodeRequest(req))
	require.NoError(t, err)
	require.Equal(t, req, decodedReq)

	resp := Response{Kind: RespSendActuatorCommandResponse, Message: "ok"}
	decodedResp, err := DecodeResponse(EncodeResponse(resp))
	require.NoError(t, err)
	require.Equal(t, resp, decodedResp)

	errResp := Response{Kind: RespError, Err: NewError(ErrDeviceOffline, "no route", "address", "10.0.0.5:9")}
	decodedErrResp, err := DecodeResponse(EncodeResponse(errResp))
	require.NoError(t, err)
	require.Equal(t, errResp.Err, decodedErrResp.Err)
}

func TestReadWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("payload")))
	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
}

func TestReadFrameRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	// A misbehaving peer advertises a length over MaxMessageSize; ReadFrame
	// must refuse before reading the (enormous) body.
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], MaxMessageSize+1)
	buf.Write(lenBuf[:])
	_, err := ReadFrame(&buf)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameRejectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 0)
	buf.Write(lenBuf[:])
	_, err := ReadFrame(&buf)
	require.ErrorIs(t, err, ErrEmptyFrame)
}
