package gateway

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"iotfabric/internal/model"
)

func mustListen(t *testing.T) (net.Listener, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return ln, uint16(ln.Addr().(*net.TCPAddr).Port)
}

func insertDevice(reg *Registry, id string, addr string, port uint16, kind model.ServiceKind) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.devices[id] = &model.DeviceEntry{
		ID:        id,
		Kind:      kind,
		Addresses: []string{addr},
		Port:      port,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestProbeOneReportsOnlineForReachableDevice(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, _ := newTestRegistry(clock)

	ln, port := mustListen(t)
	defer ln.Close()

	d := model.DeviceEntry{ID: "lamp1", Addresses: []string{"127.0.0.1"}, Port: port}
	status := reg.probeOne(context.Background(), d)
	require.Equal(t, model.StatusOnline, status)
}

func TestProbeOneReportsOfflineForUnreachableDevice(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, _ := newTestRegistry(clock)

	ln, port := mustListen(t)
	ln.Close() // closed immediately: nothing listens on this port anymore

	d := model.DeviceEntry{ID: "lamp1", Addresses: []string{"127.0.0.1"}, Port: port}
	status := reg.probeOne(context.Background(), d)
	require.Equal(t, model.StatusOffline, status)
}

func TestProbeOneReportsOfflineWithNoAddress(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, _ := newTestRegistry(clock)

	d := model.DeviceEntry{ID: "lamp1"}
	status := reg.probeOne(context.Background(), d)
	require.Equal(t, model.StatusOffline, status)
}

func TestSweepLivenessUpdatesStatus(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, _ := newTestRegistry(clock)

	ln, port := mustListen(t)
	defer ln.Close()
	insertDevice(reg, "lamp1", "127.0.0.1", port, model.KindActuator)

	reg.sweepLiveness(context.Background())

	entry, ok := reg.lookup("lamp1")
	require.True(t, ok)
	require.Equal(t, model.StatusOnline, entry.Status)
	require.False(t, entry.LastHealthOKAt.IsZero())
}

func TestSweepExpiredRemovesStaleEntriesAndFiresEvent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, _ := newTestRegistry(clock)

	reg.mu.Lock()
	reg.devices["stale"] = &model.DeviceEntry{ID: "stale", ExpiresAt: clock.Now().Add(-time.Second)}
	reg.mu.Unlock()

	sub := reg.Events().Subscribe()
	defer sub.Close()

	reg.sweepExpired()

	_, ok := reg.lookup("stale")
	require.False(t, ok)

	<-sub.C()
	events := sub.Next()
	require.Len(t, events, 1)
	require.Equal(t, DeviceRemoved, events[0].Type)
	require.Equal(t, "stale", events[0].Device.ID)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, _ := newTestRegistry(clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
