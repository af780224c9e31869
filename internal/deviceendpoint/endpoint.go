package deviceendpoint

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"

	"iotfabric/internal/model"
)

// sensorUpdateInterval is the cadence sensors mutate and re-broadcast
// their randomized properties (SPEC §4.2 step 5).
const sensorUpdateInterval = 10 * time.Second

// Registrar is the subset of the Discovery Engine a DevEP needs: the
// ability to register its service and push property updates.
type Registrar interface {
	Register(ctx context.Context, info model.ServiceInfo) (model.ServiceInfo, error)
	Update(info model.ServiceInfo) error
	Unregister(fqdn string) error
}

// Endpoint is one device process: a registered ServiceInfo, a TCP
// listener serving the per-connection protocol, and (for sensors) a
// property-randomizing timer.
type Endpoint struct {
	log   *slog.Logger
	clock clockwork.Clock
	de    Registrar

	device   *Device
	listener *Listener
	fqdn     string

	cancel context.CancelFunc
}

// Start builds the initial ServiceInfo for category, registers it with
// the Discovery Engine, opens the TCP listener, and (for sensors) starts
// the randomization timer.
func Start(ctx context.Context, log *slog.Logger, clock clockwork.Clock, de Registrar, category model.ServiceCategory, instanceName string, addresses []string, port uint16) (*Endpoint, error) {
	kind := actuatorOrSensorKind(category)

	ln, err := Bind(port)
	if err != nil {
		return nil, fmt.Errorf("deviceendpoint: bind: %w", err)
	}
	boundPort := uint16(ln.Addr().(*net.TCPAddr).Port)

	template := model.ServiceInfo{
		InstanceName: instanceName,
		ServiceType:  category.ServiceType(),
		Port:         boundPort,
		Addresses:    addresses,
		Kind:         kind,
		Category:     category,
		Transport:    model.TransportTCP,
		TTLSeconds:   model.DefaultDeviceTTLSeconds,
	}

	epCtx, cancel := context.WithCancel(ctx)
	ep := &Endpoint{log: log, clock: clock, de: de, cancel: cancel}

	committed, err := de.Register(epCtx, template)
	if err != nil {
		cancel()
		ln.Close()
		return nil, fmt.Errorf("deviceendpoint: register: %w", err)
	}
	ep.fqdn = committed.FQDN()

	onUpdate := func(info model.ServiceInfo) error { return de.Update(info) }
	ep.device = newDeviceForCategory(category, committed, onUpdate)
	ep.listener = Serve(epCtx, log, ep.device, ln)

	if kind == model.KindSensor {
		go ep.sensorUpdateLoop(epCtx)
	}

	return ep, nil
}

func (ep *Endpoint) sensorUpdateLoop(ctx context.Context) {
	ticker := ep.clock.NewTicker(sensorUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			ep.device.Randomize()
		}
	}
}

// Close unregisters the device (emitting a goodbye) and drains the TCP
// listener.
func (ep *Endpoint) Close() error {
	ep.cancel()
	err := ep.listener.Close()
	if uerr := ep.de.Unregister(ep.fqdn); uerr != nil {
		ep.log.Warn("deviceendpoint: unregister on close failed", "fqdn", ep.fqdn, "error", uerr)
	}
	return err
}

func actuatorOrSensorKind(category model.ServiceCategory) model.ServiceKind {
	switch category {
	case model.CategoryLightLamp, model.CategorySink:
		return model.KindActuator
	default:
		return model.KindSensor
	}
}

func newDeviceForCategory(category model.ServiceCategory, info model.ServiceInfo, onUpdate func(model.ServiceInfo) error) *Device {
	switch category {
	case model.CategoryLightLamp:
		return NewActuatorDevice(info, NewLightLampState(), onUpdate)
	case model.CategorySink:
		return NewActuatorDevice(info, NewSinkState(), onUpdate)
	case model.CategoryFartDetector:
		return NewSensorDevice(info, NewFartDetectorState(), onUpdate)
	case model.CategoryToilet:
		return NewSensorDevice(info, NewToiletState(), onUpdate)
	case model.CategoryWaterLeak:
		return NewSensorDevice(info, NewWaterLeakState(), onUpdate)
	default:
		return NewSensorDevice(info, newSensorReading("value", 0, 100), onUpdate)
	}
}
