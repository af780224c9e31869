package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// This file hand-rolls the binary encoding of MDNSPacket and the device
// Request/Response envelopes. A bespoke framed binary payload is exactly
// what SPEC.md §1 calls for ("not standard DNS wire format"); reaching for
// a generic serializer here would contradict that requirement, so the
// codec below is plain encoding/binary plus manual length-prefixed
// strings/maps (see DESIGN.md for the corpus-grounding note on this
// choice).

type writer struct {
	buf bytes.Buffer
}

func (w *writer) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *writer) u16(v uint16) { var b [2]byte; binary.BigEndian.PutUint16(b[:], v); w.buf.Write(b[:]) }
func (w *writer) u32(v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *writer) u64(v uint64) { var b [8]byte; binary.BigEndian.PutUint64(b[:], v); w.buf.Write(b[:]) }
func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) str(s string) {
	w.u16(uint16(len(s)))
	w.buf.WriteString(s)
}

func (w *writer) strSlice(ss []string) {
	w.u16(uint16(len(ss)))
	for _, s := range ss {
		w.str(s)
	}
}

func (w *writer) strMap(m map[string]string) {
	w.u16(uint16(len(m)))
	for k, v := range m {
		w.str(k)
		w.str(v)
	}
}

func (w *writer) bytesOut() []byte { return w.buf.Bytes() }

type reader struct {
	b   []byte
	off int
}

func newReader(b []byte) *reader { return &reader{b: b} }

func (r *reader) need(n int) error {
	if r.off+n > len(r.b) {
		return fmt.Errorf("model: wire decode: unexpected end of buffer (need %d, have %d)", n, len(r.b)-r.off)
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.b[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.b[r.off:])
	r.off += 8
	return v, nil
}

func (r *reader) boolean() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *reader) str() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.b[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

func (r *reader) strSlice() ([]string, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		s, err := r.str()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *reader) strMap() (map[string]string, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := 0; i < int(n); i++ {
		k, err := r.str()
		if err != nil {
			return nil, err
		}
		v, err := r.str()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (r *reader) done() bool { return r.off == len(r.b) }

// ---- MDNSRecord / MDNSPacket ----

func encodeRecord(w *writer, rec MDNSRecord) {
	w.u8(uint8(rec.Kind))
	w.str(rec.Name)
	w.u32(rec.TTL)
	w.boolean(rec.CacheFlush)
	switch rec.Kind {
	case RecordPTR:
		w.str(rec.PTRDomainName)
	case RecordSRV:
		w.u16(rec.SRVPort)
		w.str(rec.SRVTarget)
		w.u8(uint8(rec.SRVProtocol))
		w.str(rec.SRVServiceLabel)
		w.str(rec.SRVInstanceLabel)
	case RecordTXT:
		w.strMap(rec.TXTEntries)
	case RecordA:
		w.str(rec.AAddress)
	}
}

func decodeRecord(r *reader) (MDNSRecord, error) {
	var rec MDNSRecord
	kind, err := r.u8()
	if err != nil {
		return rec, err
	}
	rec.Kind = RecordKind(kind)
	if rec.Name, err = r.str(); err != nil {
		return rec, err
	}
	if rec.TTL, err = r.u32(); err != nil {
		return rec, err
	}
	if rec.CacheFlush, err = r.boolean(); err != nil {
		return rec, err
	}
	switch rec.Kind {
	case RecordPTR:
		if rec.PTRDomainName, err = r.str(); err != nil {
			return rec, err
		}
	case RecordSRV:
		if rec.SRVPort, err = r.u16(); err != nil {
			return rec, err
		}
		if rec.SRVTarget, err = r.str(); err != nil {
			return rec, err
		}
		proto, err2 := r.u8()
		if err2 != nil {
			return rec, err2
		}
		rec.SRVProtocol = Transport(proto)
		if rec.SRVServiceLabel, err = r.str(); err != nil {
			return rec, err
		}
		if rec.SRVInstanceLabel, err = r.str(); err != nil {
			return rec, err
		}
	case RecordTXT:
		if rec.TXTEntries, err = r.strMap(); err != nil {
			return rec, err
		}
	case RecordA:
		if rec.AAddress, err = r.str(); err != nil {
			return rec, err
		}
	default:
		return rec, fmt.Errorf("model: unknown record kind %d", kind)
	}
	return rec, nil
}

func encodeRecordSlice(w *writer, recs []MDNSRecord) {
	w.u16(uint16(len(recs)))
	for _, rec := range recs {
		encodeRecord(w, rec)
	}
}

func decodeRecordSlice(r *reader) ([]MDNSRecord, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([]MDNSRecord, 0, n)
	for i := 0; i < int(n); i++ {
		rec, err := decodeRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// EncodeMDNSPacket serializes an MDNSPacket to its wire bytes (the part
// that follows the 4-byte length prefix).
func EncodeMDNSPacket(p MDNSPacket) []byte {
	w := &writer{}
	w.u32(p.TransactionID)
	w.u64(uint64(p.Timestamp.UnixNano()))
	w.u8(uint8(p.Type))
	switch p.Type {
	case PacketQueryRequest:
		w.u16(uint16(len(p.Questions)))
		for _, q := range p.Questions {
			w.str(q.Name)
			w.u8(uint8(q.Type))
		}
	case PacketQueryResponse:
		encodeRecordSlice(w, p.Answers)
		encodeRecordSlice(w, p.Additional)
	}
	return w.bytesOut()
}

// DecodeMDNSPacket is the inverse of EncodeMDNSPacket. Returns an error
// (never panics) on truncated or malformed input, per the framing
// round-trip property (SPEC §8 property 1).
func DecodeMDNSPacket(data []byte) (MDNSPacket, error) {
	var p MDNSPacket
	r := newReader(data)
	var err error
	if p.TransactionID, err = r.u32(); err != nil {
		return p, err
	}
	nanos, err := r.u64()
	if err != nil {
		return p, err
	}
	p.Timestamp = time.Unix(0, int64(nanos)).UTC()
	typ, err := r.u8()
	if err != nil {
		return p, err
	}
	p.Type = PacketType(typ)
	switch p.Type {
	case PacketQueryRequest:
		n, err := r.u16()
		if err != nil {
			return p, err
		}
		p.Questions = make([]Question, 0, n)
		for i := 0; i < int(n); i++ {
			name, err := r.str()
			if err != nil {
				return p, err
			}
			qt, err := r.u8()
			if err != nil {
				return p, err
			}
			p.Questions = append(p.Questions, Question{Name: name, Type: RecordKind(qt)})
		}
	case PacketQueryResponse:
		if p.Answers, err = decodeRecordSlice(r); err != nil {
			return p, err
		}
		if p.Additional, err = decodeRecordSlice(r); err != nil {
			return p, err
		}
	default:
		return p, fmt.Errorf("model: unknown packet type %d", typ)
	}
	return p, nil
}
