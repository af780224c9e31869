package gateway

import (
	"context"
	"net"
	"strconv"
	"time"

	"iotfabric/internal/model"
)

// probeInterval is the liveness sweep cadence (SPEC §4.3 step 4).
const probeInterval = 60 * time.Second

// probeDialTimeout bounds a single liveness TCP connect attempt.
const probeDialTimeout = 1 * time.Second

// expirySweepInterval is how often stale entries (ExpiresAt < now) are
// reaped, co-scheduled with the liveness sweep (SPEC §4.3 step 4, I3).
const expirySweepInterval = probeInterval

// Run starts the registry's background liveness and expiry sweeps. It
// blocks until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.sweepExpired()
			r.sweepLiveness(ctx)
		}
	}
}

func (r *Registry) sweepExpired() {
	now := r.clock.Now()

	r.mu.Lock()
	var expired []model.DeviceEntry
	for _, d := range r.devices {
		if now.After(d.ExpiresAt) {
			expired = append(expired, d.Clone())
		}
	}
	for _, d := range expired {
		delete(r.devices, d.ID)
	}
	r.mu.Unlock()

	for _, d := range expired {
		r.events.Publish(Event{Type: DeviceRemoved, Device: d})
	}
}

func (r *Registry) sweepLiveness(ctx context.Context) {
	r.mu.RLock()
	targets := make([]model.DeviceEntry, 0, len(r.devices))
	for _, d := range r.devices {
		targets = append(targets, d.Clone())
	}
	r.mu.RUnlock()

	for _, d := range targets {
		status := r.probeOne(ctx, d)
		if status == model.StatusOnline {
			now := r.clock.Now()
			r.setStatus(d.ID, status, &now)
		} else {
			r.setStatus(d.ID, status, nil)
		}
	}
}

// probeOne attempts a TCP connect to the device's first address:port,
// per SPEC §4.3's liveness procedure. A device with no addresses or port
// is reported offline without dialing.
func (r *Registry) probeOne(ctx context.Context, d model.DeviceEntry) model.DeviceStatus {
	if len(d.Addresses) == 0 || d.Port == 0 {
		return model.StatusOffline
	}

	dialCtx, cancel := context.WithTimeout(ctx, probeDialTimeout)
	defer cancel()

	var dialer net.Dialer
	addr := net.JoinHostPort(d.Addresses[0], strconv.Itoa(int(d.Port)))
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return model.StatusOffline
	}
	conn.Close()
	return model.StatusOnline
}
