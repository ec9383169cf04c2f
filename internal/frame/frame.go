// Package frame implements the clipbridge wire protocol: length-prefixed
// binary frames carrying UTF-8 text.
//
// Wire format:
//
//	byte 0      message type, currently only 0x01 (TEXT)
//	bytes 1-4   payload length, uint32 big-endian
//	bytes 5..   UTF-8 payload
//
// Frames may arrive split across reads or coalesced into one read, so the
// decoder works against an accumulating buffer: DecodeNext either consumes
// one complete frame from the front or reports that more bytes are needed.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	// TypeText is the only message type currently defined.
	TypeText byte = 0x01

	// HeaderSize is type byte + uint32 length.
	HeaderSize = 5

	// MaxPayload is the largest payload accepted on encode and decode (1 MiB).
	MaxPayload = 1 << 20
)

var (
	// ErrPayloadTooLarge is returned by Encode when the UTF-8 encoding of
	// the text exceeds MaxPayload.
	ErrPayloadTooLarge = errors.New("frame: payload too large")

	// ErrBadType is returned by DecodeNext when the type byte is not TypeText.
	// Fatal to the connection.
	ErrBadType = errors.New("frame: bad frame type")

	// ErrBadLength is returned by DecodeNext when the declared length exceeds
	// MaxPayload. Fatal to the connection.
	ErrBadLength = errors.New("frame: bad frame length")

	// ErrInvalidUTF8 is returned by DecodeNext for a well-formed frame whose
	// payload is not valid UTF-8. The frame has been consumed from the
	// buffer; the connection may continue.
	ErrInvalidUTF8 = errors.New("frame: payload is not valid UTF-8")
)

// Encode returns the wire encoding of text.
func Encode(text string) ([]byte, error) {
	if len(text) > MaxPayload {
		return nil, fmt.Errorf("%w (%d bytes)", ErrPayloadTooLarge, len(text))
	}
	buf := make([]byte, HeaderSize+len(text))
	buf[0] = TypeText
	binary.BigEndian.PutUint32(buf[1:HeaderSize], uint32(len(text)))
	copy(buf[HeaderSize:], text)
	return buf, nil
}

// DecodeNext attempts to decode one frame from the front of buf.
//
// When buf does not yet hold a complete frame it returns ("", 0, nil) — not
// an error, just "need more bytes". On success it returns the payload text
// and the number of bytes to remove from the front of buf. ErrInvalidUTF8
// also reports consumed bytes: the frame was well-formed and must be
// discarded, but the connection stays usable. ErrBadType and ErrBadLength
// report a corrupt stream and the connection should be dropped.
//
// Call repeatedly to drain coalesced frames.
func DecodeNext(buf []byte) (text string, consumed int, err error) {
	if len(buf) < HeaderSize {
		return "", 0, nil
	}
	if buf[0] != TypeText {
		return "", 0, fmt.Errorf("%w 0x%02x", ErrBadType, buf[0])
	}
	length := binary.BigEndian.Uint32(buf[1:HeaderSize])
	if length > MaxPayload {
		return "", 0, fmt.Errorf("%w %d", ErrBadLength, length)
	}
	total := HeaderSize + int(length)
	if len(buf) < total {
		return "", 0, nil
	}
	payload := buf[HeaderSize:total]
	if !utf8.Valid(payload) {
		return "", total, ErrInvalidUTF8
	}
	return string(payload), total, nil
}

// Read reads exactly one frame from r, blocking until it is complete.
// Used by clients on a dedicated connection; the server side uses DecodeNext
// against per-connection buffers instead.
func Read(r io.Reader) (string, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return "", err
	}
	if hdr[0] != TypeText {
		return "", fmt.Errorf("%w 0x%02x", ErrBadType, hdr[0])
	}
	length := binary.BigEndian.Uint32(hdr[1:])
	if length > MaxPayload {
		return "", fmt.Errorf("%w %d", ErrBadLength, length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", err
	}
	if !utf8.Valid(payload) {
		return "", ErrInvalidUTF8
	}
	return string(payload), nil
}
