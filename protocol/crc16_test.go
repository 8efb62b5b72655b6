package protocol

import "testing"

func TestCRC16(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected uint16
	}{
		{[]byte{}, 0xFFFF},
		{[]byte{0x00}, 0x0F87},
		{[]byte{0xFF}, 0x00FF},
		{[]byte{5, MessageDest}, 0x9E81},
		{[]byte{5, MessageDest | 1}, 0x8F08},
		{[]byte{1, 2, 3, 4, 5}, 0xDD13},
	}

	for _, tc := range testCases {
		if got := CRC16(tc.data); got != tc.expected {
			t.Errorf("CRC16(%v) = 0x%04X, want 0x%04X", tc.data, got, tc.expected)
		}
	}
}

func TestCRC16DetectsSingleBitFlip(t *testing.T) {
	data := []byte{0x0A, 0x10, 0x05, 0x8F, 0x4F, 0x01, 0x00}
	base := CRC16(data)
	for i := range data {
		for bit := 0; bit < 8; bit++ {
			data[i] ^= 1 << bit
			if CRC16(data) == base {
				t.Errorf("flip of byte %d bit %d not detected", i, bit)
			}
			data[i] ^= 1 << bit
		}
	}
}
