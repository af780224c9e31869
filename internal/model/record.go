package model

import "time"

// MDNSRecord is a tagged union over the four record arms this protocol
// carries. Only the fields relevant to Kind are meaningful; consumers
// switch on Kind rather than type-asserting a class hierarchy (SPEC §9).
type MDNSRecord struct {
	Kind       RecordKind
	Name       string
	TTL        uint32
	CacheFlush bool

	// PTR: Name (service type) -> PTRDomainName (instance FQDN).
	PTRDomainName string

	// SRV.
	SRVPort          uint16
	SRVTarget        string
	SRVProtocol      Transport
	SRVServiceLabel  string
	SRVInstanceLabel string

	// TXT: always includes "kind" and "category" (invariant I6).
	TXTEntries map[string]string

	// A: Name -> AAddress (IPv4 string).
	AAddress string
}

// Question is one entry of a QueryRequest packet body.
type Question struct {
	Name string
	Type RecordKind
}

// MDNSPacket is the framed protocol message: a transaction id, a
// wall-clock timestamp, and a variant body of either a query or a
// response.
type MDNSPacket struct {
	TransactionID uint32
	Timestamp     time.Time
	Type          PacketType

	// QueryRequest body.
	Questions []Question

	// QueryResponse body.
	Answers    []MDNSRecord
	Additional []MDNSRecord
}

// BuildAnnouncementRecords constructs the records for a single
// ServiceInfo announcement: one PTR answer, then one A record per
// address, one SRV, and one TXT as additional records (SPEC §4.1).
func BuildAnnouncementRecords(info ServiceInfo, cacheFlush bool) (answers, additional []MDNSRecord) {
	fqdn := info.FQDN()

	answers = []MDNSRecord{{
		Kind:          RecordPTR,
		Name:          info.ServiceType,
		TTL:           info.TTLSeconds,
		CacheFlush:    false,
		PTRDomainName: fqdn,
	}}

	for _, addr := range info.Addresses {
		additional = append(additional, MDNSRecord{
			Kind:       RecordA,
			Name:       fqdn,
			TTL:        info.TTLSeconds,
			CacheFlush: cacheFlush,
			AAddress:   addr,
		})
	}

	additional = append(additional, MDNSRecord{
		Kind:             RecordSRV,
		Name:             fqdn,
		TTL:              info.TTLSeconds,
		CacheFlush:       cacheFlush,
		SRVPort:          info.Port,
		SRVTarget:        fqdn,
		SRVProtocol:      info.Transport,
		SRVServiceLabel:  info.ServiceType,
		SRVInstanceLabel: info.InstanceName,
	})

	additional = append(additional, MDNSRecord{
		Kind:       RecordTXT,
		Name:       fqdn,
		TTL:        info.TTLSeconds,
		CacheFlush: cacheFlush,
		TXTEntries: info.TXTEntries(),
	})

	return answers, additional
}
