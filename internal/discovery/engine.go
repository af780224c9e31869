// Package discovery implements the Discovery Engine: the component that
// sends and receives framed binary packets over UDP multicast, maintains
// locally-registered services, tiebreaks names, renews TTLs, and emits
// goodbyes.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"iotfabric/internal/model"
)

// InboundHandler receives every parsed, non-self inbound packet. The
// Gateway Registry is the only consumer in this fabric, but the
// subscription interface is generic (SPEC §4.1, §9: no process-wide
// singleton, communication is explicit).
type InboundHandler func(p model.MDNSPacket, src net.Addr)

type registeredService struct {
	info   model.ServiceInfo
	cancel context.CancelFunc
}

// Engine is one participant's view of the discovery fabric: the set of
// services it has registered, plus the transport and self-echo ring it
// shares across all of them.
type Engine struct {
	log   *slog.Logger
	clock clockwork.Clock

	transport *transport
	sent      *sentRing

	mu       sync.RWMutex
	services map[string]*registeredService // key: FQDN

	subMu       sync.RWMutex
	subscribers []InboundHandler

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New joins the multicast group and starts the receive loop. The
// returned Engine must be closed with Close to release the socket and
// emit goodbyes for any still-registered service.
func New(ctx context.Context, log *slog.Logger, clock clockwork.Clock) (*Engine, error) {
	engCtx, cancel := context.WithCancel(ctx)

	t, err := newTransport(engCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	e := &Engine{
		log:       log,
		clock:     clock,
		transport: t,
		sent:      newSentRing(50),
		services:  make(map[string]*registeredService),
		cancel:    cancel,
	}

	e.wg.Add(1)
	go e.receiveLoop(engCtx)

	return e, nil
}

// SubscribeInbound delivers every parsed, non-self inbound packet to
// handler for the lifetime of the engine.
func (e *Engine) SubscribeInbound(handler InboundHandler) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subscribers = append(e.subscribers, handler)
}

func (e *Engine) notifySubscribers(p model.MDNSPacket, src net.Addr) {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for _, h := range e.subscribers {
		h(p, src)
	}
}

// Register tiebreaks info's instance_name against the network, then
// broadcasts the first announcement and starts its renovation loop.
// Returns the (possibly renamed) ServiceInfo actually committed.
func (e *Engine) Register(ctx context.Context, info model.ServiceInfo) (model.ServiceInfo, error) {
	if info.Port == 0 {
		return info, fmt.Errorf("discovery: register: invalid tcp port 0")
	}

	committed, err := e.tiebreak(ctx, info)
	if err != nil {
		return info, err
	}

	svcCtx, cancel := context.WithCancel(ctx)
	rs := &registeredService{info: committed, cancel: cancel}

	e.mu.Lock()
	e.services[committed.FQDN()] = rs
	e.mu.Unlock()

	if err := e.announce(committed, true); err != nil {
		e.log.Warn("discovery: initial announcement failed", "fqdn", committed.FQDN(), "error", err)
	}

	e.wg.Add(1)
	go e.renovationLoop(svcCtx, committed.FQDN())

	return committed, nil
}

// Update re-broadcasts info with cache_flush=true on SRV/TXT/A, replacing
// the previously registered ServiceInfo for the same FQDN.
func (e *Engine) Update(info model.ServiceInfo) error {
	fqdn := info.FQDN()

	e.mu.Lock()
	rs, ok := e.services[fqdn]
	if ok {
		rs.info = info
	}
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("discovery: update: %q is not registered", fqdn)
	}
	return e.announce(info, true)
}

// Unregister broadcasts a goodbye (TTL=0) for fqdn and stops renewing it.
func (e *Engine) Unregister(fqdn string) error {
	e.mu.Lock()
	rs, ok := e.services[fqdn]
	if ok {
		delete(e.services, fqdn)
	}
	e.mu.Unlock()

	if !ok {
		return nil
	}
	rs.cancel()

	goodbye := rs.info
	goodbye.TTLSeconds = 0
	return e.announce(goodbye, true)
}

// Close sends a goodbye for every still-registered service, stops all
// loops, and releases the multicast socket.
func (e *Engine) Close() error {
	e.mu.RLock()
	fqdns := make([]string, 0, len(e.services))
	for fqdn := range e.services {
		fqdns = append(fqdns, fqdn)
	}
	e.mu.RUnlock()

	for _, fqdn := range fqdns {
		if err := e.Unregister(fqdn); err != nil {
			e.log.Warn("discovery: goodbye failed on shutdown", "fqdn", fqdn, "error", err)
		}
	}

	e.cancel()
	err := e.transport.close()
	e.wg.Wait()
	return err
}

// announce builds and sends one QueryResponse packet for info.
func (e *Engine) announce(info model.ServiceInfo, cacheFlush bool) error {
	answers, additional := model.BuildAnnouncementRecords(info, cacheFlush)
	p := model.MDNSPacket{
		TransactionID: newTransactionID(),
		Timestamp:     e.clock.Now().UTC(),
		Type:          model.PacketQueryResponse,
		Answers:       answers,
		Additional:    additional,
	}
	return e.send(p)
}

func (e *Engine) send(p model.MDNSPacket) error {
	datagram := model.EncodeDatagramFrame(model.EncodeMDNSPacket(p))
	e.sent.record(datagram)
	if err := e.transport.send(datagram); err != nil {
		return fmt.Errorf("discovery: send: %w", err)
	}
	return nil
}

// newTransactionID derives a 32-bit transaction id from a fresh uuid,
// cheap and unique enough that tiebreak probes and commands never
// collide within the probe window.
func newTransactionID() uint32 {
	id := uuid.New()
	b := id[:]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (e *Engine) renovationLoop(ctx context.Context, fqdn string) {
	defer e.wg.Done()

	for {
		e.mu.RLock()
		rs, ok := e.services[fqdn]
		e.mu.RUnlock()
		if !ok {
			return
		}

		ttl := time.Duration(rs.info.TTLSeconds) * time.Second
		renewAfter := time.Duration(float64(ttl) * 0.75)
		if renewAfter <= 0 {
			renewAfter = time.Second
		}

		timer := e.clock.NewTimer(renewAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}

		e.mu.RLock()
		rs, ok = e.services[fqdn]
		current := model.ServiceInfo{}
		if ok {
			current = rs.info
		}
		e.mu.RUnlock()
		if !ok {
			return
		}

		if err := e.announce(current, false); err != nil {
			e.log.Warn("discovery: renovation announce failed", "fqdn", fqdn, "error", err)
		}
	}
}
