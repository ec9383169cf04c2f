package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, text := range []string{
		"hello",
		"",
		"héllo wörld ✂",
		strings.Repeat("x", MaxPayload),
	} {
		buf, err := Encode(text)
		if err != nil {
			t.Fatalf("Encode(%d bytes): %v", len(text), err)
		}
		got, n, err := DecodeNext(buf)
		if err != nil {
			t.Fatalf("DecodeNext: %v", err)
		}
		if n != len(buf) {
			t.Errorf("consumed %d bytes, want %d", n, len(buf))
		}
		if got != text {
			t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(text))
		}
	}
}

func TestEncodeHeader(t *testing.T) {
	buf, err := Encode("hello")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x00, 0x00, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}
	if !bytes.Equal(buf, want) {
		t.Errorf("Encode(%q) = % x, want % x", "hello", buf, want)
	}
}

func TestEncodePayloadTooLarge(t *testing.T) {
	_, err := Encode(strings.Repeat("x", MaxPayload+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestDecodeNextIncomplete(t *testing.T) {
	buf, _ := Encode("hello world")
	// Every strict prefix must decode to "need more bytes".
	for i := 0; i < len(buf); i++ {
		text, n, err := DecodeNext(buf[:i])
		if err != nil {
			t.Fatalf("prefix %d: unexpected error %v", i, err)
		}
		if n != 0 || text != "" {
			t.Fatalf("prefix %d: got (%q, %d), want (\"\", 0)", i, text, n)
		}
	}
}

func TestDecodeNextByteByByte(t *testing.T) {
	// Feeding the buffer one byte at a time must yield the same frame
	// sequence as feeding it all at once.
	var wire []byte
	want := []string{"one", "two", "three"}
	for _, s := range want {
		b, _ := Encode(s)
		wire = append(wire, b...)
	}

	var buf []byte
	var got []string
	for _, b := range wire {
		buf = append(buf, b)
		for {
			text, n, err := DecodeNext(buf)
			if err != nil {
				t.Fatal(err)
			}
			if n == 0 {
				break
			}
			buf = buf[n:]
			got = append(got, text)
		}
	}
	if len(buf) != 0 {
		t.Errorf("%d bytes left undecoded", len(buf))
	}
	if len(got) != len(want) {
		t.Fatalf("decoded %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDecodeNextCoalesced(t *testing.T) {
	var wire []byte
	for _, s := range []string{"a", "bb", "ccc"} {
		b, _ := Encode(s)
		wire = append(wire, b...)
	}
	var got []string
	for len(wire) > 0 {
		text, n, err := DecodeNext(wire)
		if err != nil {
			t.Fatal(err)
		}
		if n == 0 {
			t.Fatalf("decoder stalled with %d bytes pending", len(wire))
		}
		wire = wire[n:]
		got = append(got, text)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "bb" || got[2] != "ccc" {
		t.Errorf("got %q", got)
	}
}

func TestDecodeNextBadType(t *testing.T) {
	buf, _ := Encode("hello")
	buf[0] = 0x7f
	_, _, err := DecodeNext(buf)
	if !errors.Is(err, ErrBadType) {
		t.Errorf("err = %v, want ErrBadType", err)
	}
}

func TestDecodeNextBadLength(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[0] = TypeText
	binary.BigEndian.PutUint32(buf[1:], MaxPayload+1)
	_, _, err := DecodeNext(buf)
	if !errors.Is(err, ErrBadLength) {
		t.Errorf("err = %v, want ErrBadLength", err)
	}
}

func TestDecodeNextInvalidUTF8(t *testing.T) {
	buf := make([]byte, HeaderSize+2)
	buf[0] = TypeText
	binary.BigEndian.PutUint32(buf[1:HeaderSize], 2)
	buf[HeaderSize] = 0xff
	buf[HeaderSize+1] = 0xfe
	_, n, err := DecodeNext(buf)
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("err = %v, want ErrInvalidUTF8", err)
	}
	// The bad frame must still be consumed so the stream can continue.
	if n != len(buf) {
		t.Errorf("consumed %d, want %d", n, len(buf))
	}
}

func TestRead(t *testing.T) {
	b1, _ := Encode("first")
	b2, _ := Encode("second")
	r := bytes.NewReader(append(b1, b2...))

	for _, want := range []string{"first", "second"} {
		got, err := Read(r)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Read = %q, want %q", got, want)
		}
	}
	if _, err := Read(r); err == nil {
		t.Error("expected error at EOF")
	}
}
