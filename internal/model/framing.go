package model

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxMessageSize bounds every length-prefixed message this fabric sends,
// on both the device TCP protocol and the gateway's HTTP bodies (SPEC §6).
const MaxMessageSize = 65536

// ErrFrameTooLarge is returned by ReadFrame when the advertised length
// exceeds MaxMessageSize.
var ErrFrameTooLarge = fmt.Errorf("model: frame exceeds max message size of %d bytes", MaxMessageSize)

// ErrEmptyFrame is returned by ReadFrame when the advertised length is 0.
var ErrEmptyFrame = fmt.Errorf("model: frame length is zero")

// ReadFrame reads one big_endian_u32(len) || bytes frame from r, per the
// device TCP protocol (SPEC §4.2, §6). Rejects len == 0 and len >
// MaxMessageSize without reading the body.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, ErrEmptyFrame
	}
	if n > MaxMessageSize {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteFrame writes one big_endian_u32(len) || bytes frame to w.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > MaxMessageSize {
		return ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// DecodeDatagramFrame strips and validates the length prefix of a
// received UDP datagram (the whole packet arrives in one read, unlike a
// TCP stream). Discards with an error if the prefix disagrees with the
// datagram size, per SPEC §4.1's framing rule.
func DecodeDatagramFrame(datagram []byte) ([]byte, error) {
	if len(datagram) < 4 {
		return nil, fmt.Errorf("model: datagram shorter than length prefix (%d bytes)", len(datagram))
	}
	n := binary.BigEndian.Uint32(datagram[:4])
	body := datagram[4:]
	if uint32(len(body)) != n {
		return nil, fmt.Errorf("model: length prefix %d disagrees with datagram body size %d", n, len(body))
	}
	return body, nil
}

// EncodeDatagramFrame prepends the length prefix for sending as one UDP
// datagram.
func EncodeDatagramFrame(body []byte) []byte {
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}
