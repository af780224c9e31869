package gateway

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"iotfabric/internal/discovery"
	"iotfabric/internal/logging"
	"iotfabric/internal/model"
)

// fakeSubscriber lets tests drive ingest() directly without a real
// Discovery Engine or network socket.
type fakeSubscriber struct {
	handler discovery.InboundHandler
}

func (f *fakeSubscriber) SubscribeInbound(h discovery.InboundHandler) { f.handler = h }

func testLightLampInfo(instanceName string) model.ServiceInfo {
	return model.ServiceInfo{
		InstanceName: instanceName,
		ServiceType:  model.CategoryLightLamp.ServiceType(),
		Port:         9100,
		Addresses:    []string{"10.0.0.5"},
		Kind:         model.KindActuator,
		Category:     model.CategoryLightLamp,
		Transport:    model.TransportTCP,
		TTLSeconds:   120,
	}
}

func announcementPacket(info model.ServiceInfo) model.MDNSPacket {
	answers, additional := model.BuildAnnouncementRecords(info, true)
	return model.MDNSPacket{Type: model.PacketQueryResponse, Timestamp: time.Unix(0, 0), Answers: answers, Additional: additional}
}

func newTestRegistry(clock clockwork.Clock) (*Registry, *fakeSubscriber) {
	sub := &fakeSubscriber{}
	reg := New(logging.New(io.Discard, false), clock, sub)
	return reg, sub
}

func TestIngestAddsNewDevice(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, sub := newTestRegistry(clock)

	info := testLightLampInfo("lamp1")
	sub.handler(announcementPacket(info), &net.UDPAddr{})

	devices := reg.ListDevices(model.ListDevicesFilter{})
	require.Len(t, devices, 1)
	require.Equal(t, info.FQDN(), devices[0].ID)
	require.Equal(t, model.CategoryLightLamp, devices[0].Category)
	require.Equal(t, []string{"10.0.0.5"}, devices[0].Addresses)
	require.Equal(t, model.StatusUnknown, devices[0].Status)
}

func TestIngestGoodbyeRemovesDevice(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, sub := newTestRegistry(clock)

	info := testLightLampInfo("lamp1")
	sub.handler(announcementPacket(info), &net.UDPAddr{})
	require.Len(t, reg.ListDevices(model.ListDevicesFilter{}), 1)

	goodbye := info
	goodbye.TTLSeconds = 0
	sub.handler(announcementPacket(goodbye), &net.UDPAddr{})

	require.Empty(t, reg.ListDevices(model.ListDevicesFilter{}))
}

func TestIngestIdempotentRenewalOnlyTouchesExpiresAt(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, sub := newTestRegistry(clock)

	info := testLightLampInfo("lamp1")
	sub.handler(announcementPacket(info), &net.UDPAddr{})
	first, _ := reg.lookup(info.FQDN())

	clock.Advance(10 * time.Second)
	sub.handler(announcementPacket(info), &net.UDPAddr{})
	second, _ := reg.lookup(info.FQDN())

	require.True(t, second.ExpiresAt.After(first.ExpiresAt))
	require.Equal(t, first.DeviceName, second.DeviceName)
	require.Equal(t, first.Properties, second.Properties)
}

func TestIngestObservablePropertyChangeFiresDeviceChanged(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, sub := newTestRegistry(clock)

	info := testLightLampInfo("lamp1")
	sub.handler(announcementPacket(info), &net.UDPAddr{})

	s := reg.Events().Subscribe()
	defer s.Close()

	renamed := info
	renamed.Properties = map[string]string{"extra": "1"}
	sub.handler(announcementPacket(renamed), &net.UDPAddr{})

	entry, ok := reg.lookup(info.FQDN())
	require.True(t, ok)
	require.Equal(t, "1", entry.Properties["extra"])

	<-s.C()
	events := s.Next()
	require.Len(t, events, 1)
	require.Equal(t, DeviceChanged, events[0].Type)
}

func TestListDevicesFiltersByKindAndName(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, sub := newTestRegistry(clock)

	lamp := testLightLampInfo("kitchen-lamp")
	sub.handler(announcementPacket(lamp), &net.UDPAddr{})

	sensor := model.ServiceInfo{
		InstanceName: "bathroom-leak",
		ServiceType:  model.CategoryWaterLeak.ServiceType(),
		Port:         9200,
		Addresses:    []string{"10.0.0.6"},
		Kind:         model.KindSensor,
		Category:     model.CategoryWaterLeak,
		Transport:    model.TransportTCP,
		TTLSeconds:   120,
	}
	sub.handler(announcementPacket(sensor), &net.UDPAddr{})

	actuatorKind := model.KindActuator
	onlyActuators := reg.ListDevices(model.ListDevicesFilter{HasKind: true, Kind: actuatorKind})
	require.Len(t, onlyActuators, 1)
	require.Equal(t, lamp.FQDN(), onlyActuators[0].ID)

	byName := reg.ListDevices(model.ListDevicesFilter{Name: "kitchen"})
	require.Len(t, byName, 1)
	require.Equal(t, lamp.FQDN(), byName[0].ID)

	require.Empty(t, reg.ListDevices(model.ListDevicesFilter{Name: "nonexistent"}))
}

func TestSetStatusFiresDeviceChangedOnlyOnTransition(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, sub := newTestRegistry(clock)

	info := testLightLampInfo("lamp1")
	sub.handler(announcementPacket(info), &net.UDPAddr{})

	s := reg.Events().Subscribe()
	defer s.Close()

	reg.setStatus(info.FQDN(), model.StatusOnline, nil)
	<-s.C()
	events := s.Next()
	require.Len(t, events, 1)
	require.Equal(t, DeviceChanged, events[0].Type)

	reg.setStatus(info.FQDN(), model.StatusOnline, nil)
	select {
	case <-s.C():
		t.Fatal("setting the same status again must not fire a second event")
	case <-time.After(10 * time.Millisecond):
	}
}
