// Package gateway implements the Gateway Registry: it listens to a
// Discovery Engine's inbound feed, builds the authoritative view of
// known devices, probes liveness, expires stale entries, and answers
// queries and commands.
package gateway

import (
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"iotfabric/internal/discovery"
	"iotfabric/internal/model"
)

// Subscriber is the interface a Registry's embedded Discovery Engine
// satisfies; the Registry never registers a service of its own (SPEC
// §4.3).
type Subscriber interface {
	SubscribeInbound(handler discovery.InboundHandler)
}

// Registry is the gateway's authoritative device map, guarded by a
// single read/write lock (SPEC §5): reads take the read lock, ingest and
// sweep mutations take the write lock.
type Registry struct {
	log   *slog.Logger
	clock clockwork.Clock

	mu      sync.RWMutex
	devices map[string]*model.DeviceEntry

	events *EventBus
}

// New builds a Registry and subscribes it to de's inbound feed.
func New(log *slog.Logger, clock clockwork.Clock, de Subscriber) *Registry {
	r := &Registry{
		log:     log,
		clock:   clock,
		devices: make(map[string]*model.DeviceEntry),
		events:  NewEventBus(),
	}
	de.SubscribeInbound(r.ingest)
	return r
}

// Events exposes the registry's event bus for subscribers.
func (r *Registry) Events() *EventBus { return r.events }

// ingest groups an inbound QueryResponse's records by domain name and
// merges each group into the device map (SPEC §4.3).
func (r *Registry) ingest(p model.MDNSPacket, _ net.Addr) {
	if p.Type != model.PacketQueryResponse {
		return
	}

	groups := groupRecordsByDomain(p.Answers, p.Additional)
	for domain, g := range groups {
		r.mergeGroup(domain, g)
	}
}

type recordGroup struct {
	ptr  *model.MDNSRecord
	srv  *model.MDNSRecord
	txt  *model.MDNSRecord
	a    []model.MDNSRecord
}

func groupRecordsByDomain(answers, additional []model.MDNSRecord) map[string]*recordGroup {
	groups := make(map[string]*recordGroup)

	getGroup := func(domain string) *recordGroup {
		g, ok := groups[domain]
		if !ok {
			g = &recordGroup{}
			groups[domain] = g
		}
		return g
	}

	for i := range answers {
		rec := answers[i]
		if rec.Kind == model.RecordPTR {
			g := getGroup(rec.PTRDomainName)
			g.ptr = &rec
		}
	}
	for i := range additional {
		rec := additional[i]
		switch rec.Kind {
		case model.RecordSRV:
			getGroup(rec.Name).srv = &rec
		case model.RecordTXT:
			getGroup(rec.Name).txt = &rec
		case model.RecordA:
			g := getGroup(rec.Name)
			g.a = append(g.a, rec)
		}
	}
	return groups
}

func (r *Registry) mergeGroup(domain string, g *recordGroup) {
	if domain == "" {
		return
	}

	isGoodbye := (g.ptr != nil && g.ptr.TTL == 0) ||
		(g.srv != nil && g.srv.TTL == 0) ||
		(g.txt != nil && g.txt.TTL == 0)

	r.mu.Lock()
	if isGoodbye {
		removed, existed := r.devices[domain]
		delete(r.devices, domain)
		r.mu.Unlock()
		if existed {
			r.events.Publish(Event{Type: DeviceRemoved, Device: removed.Clone()})
		}
		return
	}

	entry, existed := r.devices[domain]
	if !existed {
		entry = &model.DeviceEntry{ID: domain, Status: model.StatusUnknown}
	}
	before := entry.Clone()

	applyGroup(entry, g, r.clock.Now())
	r.devices[domain] = entry
	after := entry.Clone()
	r.mu.Unlock()

	if !existed {
		r.events.Publish(Event{Type: DeviceAdded, Device: after})
		return
	}
	if !sameObservableFields(before, after) {
		r.events.Publish(Event{Type: DeviceChanged, Device: after})
	}
}

func applyGroup(entry *model.DeviceEntry, g *recordGroup, now time.Time) {
	minTTL := uint32(0)
	haveTTL := false
	noteTTL := func(ttl uint32) {
		if !haveTTL || ttl < minTTL {
			minTTL = ttl
			haveTTL = true
		}
	}

	if g.srv != nil {
		entry.DeviceName = g.srv.SRVInstanceLabel
		entry.Port = g.srv.SRVPort
		entry.Transport = g.srv.SRVProtocol
		noteTTL(g.srv.TTL)
	}
	if g.txt != nil {
		props := make(map[string]string, len(g.txt.TXTEntries))
		for k, v := range g.txt.TXTEntries {
			switch k {
			case "kind":
				kind, err := model.ParseServiceKind(v)
				if err == nil {
					entry.Kind = kind
				}
			case "category":
				cat, err := model.ParseServiceCategory(v)
				if err == nil {
					entry.Category = cat
				}
			default:
				props[k] = v
			}
		}
		entry.Properties = props
		noteTTL(g.txt.TTL)
	}
	if len(g.a) > 0 {
		addrs := make([]string, 0, len(g.a))
		for _, rec := range g.a {
			addrs = append(addrs, rec.AAddress)
			noteTTL(rec.TTL)
		}
		entry.Addresses = addrs
	}

	ttl := minTTL
	if !haveTTL || ttl < 1 {
		ttl = 1
	}
	if expiresAt := now.Add(time.Duration(ttl) * time.Second); expiresAt.After(entry.ExpiresAt) {
		entry.ExpiresAt = expiresAt
	}
}

func sameObservableFields(before, after model.DeviceEntry) bool {
	if before.DeviceName != after.DeviceName || before.Port != after.Port ||
		before.Transport != after.Transport || before.Kind != after.Kind ||
		before.Category != after.Category || before.Status != after.Status {
		return false
	}
	if len(before.Addresses) != len(after.Addresses) {
		return false
	}
	for i := range before.Addresses {
		if before.Addresses[i] != after.Addresses[i] {
			return false
		}
	}
	if len(before.Properties) != len(after.Properties) {
		return false
	}
	for k, v := range before.Properties {
		if after.Properties[k] != v {
			return false
		}
	}
	return true
}

// ListDevices returns entries matching filter, ordered by id (SPEC
// §4.3).
func (r *Registry) ListDevices(filter model.ListDevicesFilter) []model.DeviceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filterKind *model.ServiceKind
	if filter.HasKind {
		k := filter.Kind
		filterKind = &k
	}
	filterNameLower := strings.ToLower(filter.Name)

	out := make([]model.DeviceEntry, 0, len(r.devices))
	for _, d := range r.devices {
		if d.MatchesFilter(filterKind, filterNameLower) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// lookup returns a copy of the entry for id, if present.
func (r *Registry) lookup(id string) (model.DeviceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return model.DeviceEntry{}, false
	}
	return d.Clone(), true
}

func (r *Registry) setStatus(id string, status model.DeviceStatus, healthOKAt *time.Time) {
	r.mu.Lock()
	d, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	changed := d.Status != status
	d.Status = status
	if healthOKAt != nil {
		d.LastHealthOKAt = *healthOKAt
	}
	after := d.Clone()
	r.mu.Unlock()

	if changed {
		r.events.Publish(Event{Type: DeviceChanged, Device: after})
	}
}
