package model

import "maps"

// DefaultDeviceTTLSeconds is the advertised TTL every DevEP registers
// with; spec mixes 60s and 4500s between components, so
// any value carried on the wire is honored on ingest (see SPEC_FULL.md §9).
const DefaultDeviceTTLSeconds = 4500

// ServiceInfo is owned by whichever participant registered it: a DevEP
// registering itself, or (denormalized) the GR's view of one after ingest.
type ServiceInfo struct {
	InstanceName string
	ServiceType  string
	Port         uint16
	Addresses    []string
	Kind         ServiceKind
	Category     ServiceCategory
	Transport    Transport
	Properties   map[string]string
	TTLSeconds   uint32
}

// FQDN is the stable identity of a service after tiebreaking converges.
func (s ServiceInfo) FQDN() string {
	return s.InstanceName + "." + s.ServiceType
}

// IsGoodbye reports whether this ServiceInfo represents a goodbye
// (TTL == 0 signals immediate removal, per SPEC §3).
func (s ServiceInfo) IsGoodbye() bool {
	return s.TTLSeconds == 0
}

// TXTEntries builds the merged TXT map: built-in kind/category keys always
// win over user-supplied properties of the same name (invariant I6).
func (s ServiceInfo) TXTEntries() map[string]string {
	out := make(map[string]string, len(s.Properties)+2)
	maps.Copy(out, s.Properties)
	out["kind"] = s.Kind.String()
	out["category"] = s.Category.String()
	return out
}
