package discovery

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"sync"
	"time"

	"iotfabric/internal/model"
)

const (
	tiebreakJitterMin = 150 * time.Millisecond
	tiebreakJitterMax = 250 * time.Millisecond
	probeInterval     = 100 * time.Millisecond
	probeCount        = 3
)

// tiebreak runs the probe-and-rename procedure (SPEC §4.1) and returns the
// ServiceInfo actually safe to commit, renamed if a collision was
// observed. It never sends the final announcement itself.
func (e *Engine) tiebreak(ctx context.Context, info model.ServiceInfo) (model.ServiceInfo, error) {
	candidate := info

	for attempt := 0; ; attempt++ {
		if err := e.sleepJitter(ctx); err != nil {
			return candidate, err
		}

		collided, err := e.probeRounds(ctx, candidate)
		if err != nil {
			return candidate, err
		}
		if !collided {
			return candidate, nil
		}

		suffix, err := randomSuffix()
		if err != nil {
			return candidate, err
		}
		candidate.InstanceName = fmt.Sprintf("%s-%s", info.InstanceName, suffix)

		if attempt >= 16 {
			return candidate, fmt.Errorf("discovery: tiebreak: could not find a unique name for %q within budget", info.InstanceName)
		}
	}
}

func (e *Engine) sleepJitter(ctx context.Context) error {
	span := tiebreakJitterMax - tiebreakJitterMin
	n, err := randUint32(uint32(span))
	if err != nil {
		return err
	}
	jitter := tiebreakJitterMin + time.Duration(n)

	timer := e.clock.NewTimer(jitter)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// probeRounds emits up to probeCount PTR probes on the meta service name,
// spaced probeInterval apart, and reports whether any response during the
// window claims the candidate FQDN. Only other participants' responses
// can match (on this host or another): this engine's own sends are
// dropped as self-echo before reaching subscribers.
func (e *Engine) probeRounds(ctx context.Context, candidate model.ServiceInfo) (collided bool, err error) {
	fqdn := candidate.FQDN()

	var mu sync.Mutex
	var sawCollision bool

	unsubscribe := e.watchForCollision(fqdn, &mu, &sawCollision)
	defer unsubscribe()

	for i := 0; i < probeCount; i++ {
		probe := model.MDNSPacket{
			TransactionID: newTransactionID(),
			Timestamp:     e.clock.Now().UTC(),
			Type:          model.PacketQueryRequest,
			Questions:     []model.Question{{Name: metaServiceName, Type: model.RecordPTR}},
		}
		if err := e.send(probe); err != nil {
			return false, fmt.Errorf("discovery: tiebreak probe send: %w", err)
		}

		timer := e.clock.NewTimer(probeInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.Chan():
		}

		mu.Lock()
		collided = sawCollision
		mu.Unlock()
		if collided {
			return true, nil
		}
	}

	return false, nil
}

// watchForCollision subscribes a temporary inbound handler that flags a
// collision when any inbound response claims fqdn as its PTR domain
// name; the source address is not checked. Returns an unsubscribe func.
func (e *Engine) watchForCollision(fqdn string, mu *sync.Mutex, flag *bool) func() {
	handler := func(p model.MDNSPacket, src net.Addr) {
		if p.Type != model.PacketQueryResponse {
			return
		}
		for _, rec := range p.Answers {
			if rec.Kind == model.RecordPTR && rec.PTRDomainName == fqdn {
				mu.Lock()
				*flag = true
				mu.Unlock()
				return
			}
		}
	}

	e.subMu.Lock()
	e.subscribers = append(e.subscribers, handler)
	idx := len(e.subscribers) - 1
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if idx < len(e.subscribers) {
			e.subscribers = append(e.subscribers[:idx], e.subscribers[idx+1:]...)
		}
	}
}

func randomSuffix() (string, error) {
	n, err := randUint32(0xFFFF)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04x", n), nil
}

func randUint32(max uint32) (uint32, error) {
	if max == 0 {
		return 0, nil
	}
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return v % max, nil
}
