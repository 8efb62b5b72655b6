package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeVLQInt(t *testing.T) {
	testCases := []struct {
		value int32
		wire  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{95, []byte{0x5F}},
		{96, []byte{0x80, 0x60}},
		{-1, []byte{0x7F}},
		{-32, []byte{0x60}},
		{-33, []byte{0xFF, 0x5F}},
		{300, []byte{0x82, 0x2C}},
		{1999, []byte{0x8F, 0x4F}},
		{19999, []byte{0x81, 0x9C, 0x1F}},
		{-294967296, []byte{0xFE, 0xF3, 0xAC, 0xD0, 0x00}},
	}

	for _, tc := range testCases {
		out := NewScratchOutput()
		EncodeVLQInt(out, tc.value)
		if !bytes.Equal(out.Result(), tc.wire) {
			t.Errorf("EncodeVLQInt(%d) = % X, want % X", tc.value, out.Result(), tc.wire)
			continue
		}

		data := append([]byte(nil), tc.wire...)
		got, err := DecodeVLQInt(&data)
		if err != nil || got != tc.value {
			t.Errorf("DecodeVLQInt(% X) = %d, %v; want %d", tc.wire, got, err, tc.value)
		}
		if len(data) != 0 {
			t.Errorf("DecodeVLQInt(% X) left %d bytes", tc.wire, len(data))
		}
	}
}

func TestVLQUintFullRange(t *testing.T) {
	for _, v := range []uint32{0, 127, 128, 65535, 1 << 31, 4000000000, 0xFFFFFFFF} {
		out := NewScratchOutput()
		EncodeVLQUint(out, v)
		data := out.Result()
		got, err := DecodeVLQUint(&data)
		if err != nil || got != v {
			t.Errorf("uint %d decoded as %d, %v", v, got, err)
		}
	}
}

func TestDecodeVLQErrors(t *testing.T) {
	data := []byte{0x80}
	if _, err := DecodeVLQInt(&data); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("truncated: expected ErrBufferTooSmall, got %v", err)
	}
	if len(data) != 1 {
		t.Error("failed decode consumed input")
	}

	data = []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); !errors.Is(err, ErrInvalidVLQ) {
		t.Errorf("six bytes: expected ErrInvalidVLQ, got %v", err)
	}

	var empty []byte
	if _, err := DecodeVLQUint(&empty); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("empty: expected ErrBufferTooSmall, got %v", err)
	}
}

func TestDecodeArgs(t *testing.T) {
	out := NewScratchOutput()
	for _, v := range []uint32{1, 1, 10, 1, 8, 1} {
		EncodeVLQUint(out, v)
	}
	data := out.Result()

	var unit, wave, period, compare, prescaler, irq uint32
	if err := DecodeArgs(&data, &unit, &wave, &period, &compare, &prescaler, &irq); err != nil {
		t.Fatalf("DecodeArgs failed: %v", err)
	}
	if period != 10 || prescaler != 8 || irq != 1 {
		t.Errorf("decoded %d %d %d %d %d %d", unit, wave, period, compare, prescaler, irq)
	}

	var extra uint32
	if err := DecodeArgs(&data, &extra); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("expected ErrBufferTooSmall past the end, got %v", err)
	}
}

func TestVLQStrings(t *testing.T) {
	out := NewScratchOutput()
	EncodeVLQString(out, "timer1")
	EncodeVLQBytes(out, []byte{0xFF, 0x00})
	data := out.Result()

	s, err := DecodeVLQString(&data)
	if err != nil || s != "timer1" {
		t.Errorf("DecodeVLQString = %q, %v", s, err)
	}
	b, err := DecodeVLQBytes(&data)
	if err != nil || !bytes.Equal(b, []byte{0xFF, 0x00}) {
		t.Errorf("DecodeVLQBytes = % X, %v", b, err)
	}

	short := []byte{0x05, 'a'}
	if _, err := DecodeVLQBytes(&short); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("expected ErrBufferTooSmall, got %v", err)
	}
}
