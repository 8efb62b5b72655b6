package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("protocol: invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("protocol: buffer too small for VLQ")
)

// EncodeVLQInt writes v as a Klipper VLQ: 7-bit groups, most significant
// first, with the top bit set on all but the last. Leading groups are
// dropped while the rest still decodes to v after sign extension from bit
// 6 of the first group, so small negatives cost one byte.
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [5]byte
	n := 0
	for shift := 28; shift > 0; shift -= 7 {
		lim := int32(1) << (shift - 2)
		if v < -lim || v >= 3*lim {
			buf[n] = byte(v>>shift)&0x7F | 0x80
			n++
		}
	}
	buf[n] = byte(v) & 0x7F
	output.Output(buf[:n+1])
}

// EncodeVLQUint writes v; unsigned values share the signed encoding.
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt reads one VLQ from the front of *data and advances it.
func DecodeVLQInt(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrBufferTooSmall
	}
	c := buf[0]
	v := uint32(c & 0x7F)
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	i := 1
	for ; c&0x80 != 0; i++ {
		if i == len(buf) {
			return 0, ErrBufferTooSmall
		}
		if i == 5 {
			return 0, ErrInvalidVLQ
		}
		c = buf[i]
		v = v<<7 | uint32(c&0x7F)
	}
	*data = buf[i:]
	return int32(v), nil
}

// DecodeVLQUint reads one VLQ as unsigned.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// DecodeArgs reads len(dst) unsigned VLQs in order. It stops at the first
// error; *data is left after the last argument read.
func DecodeArgs(data *[]byte, dst ...*uint32) error {
	for _, p := range dst {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

// EncodeVLQBytes writes a length-prefixed byte string.
func EncodeVLQBytes(output OutputBuffer, data []byte) {
	EncodeVLQUint(output, uint32(len(data)))
	output.Output(data)
}

// DecodeVLQBytes reads a length-prefixed byte string. The result aliases
// *data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	n, err := DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < n {
		return nil, ErrBufferTooSmall
	}
	b := (*data)[:n]
	*data = (*data)[n:]
	return b, nil
}

// EncodeVLQString writes a length-prefixed string.
func EncodeVLQString(output OutputBuffer, s string) {
	EncodeVLQBytes(output, []byte(s))
}

// DecodeVLQString reads a length-prefixed string.
func DecodeVLQString(data *[]byte) (string, error) {
	b, err := DecodeVLQBytes(data)
	return string(b), err
}
