// Package protocol frames commands between the host and the avrperiph
// firmware. The wire format is the Klipper serial protocol: every block is
//
//	len seq payload... crc_hi crc_lo 0x7E
//
// where len counts the whole block, seq carries 0x10 in the high nibble and
// a 4-bit sequence number in the low one, and the payload is a run of
// VLQ-encoded command IDs and arguments. A block with an empty payload is
// an ACK (or a NAK when its sequence is not the one the sender expects).
package protocol

import "errors"

// Version is reported in the firmware dictionary.
const Version = "avrperiph-0.1.0"

const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F
)

// MessageMax is the size of a scratch output: room for an ACK and a full
// response block.
const MessageMax = 2 * MessageLengthMax

var (
	// ErrMessageTooLong reports a payload that does not fit one block.
	ErrMessageTooLong = errors.New("protocol: message too long")
)

// Message is one received block.
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // without header and trailer
	CRC      uint16
}

// IsAck reports whether m carries no payload.
func (m *Message) IsAck() bool {
	return len(m.Payload) == 0
}

// NextSequence returns the sequence byte following seq.
func NextSequence(seq uint8) uint8 {
	return (seq+1)&MessageSeqMask | MessageDest
}

type frameStatus uint8

const (
	frameOK frameStatus = iota
	frameShort
	frameBad
)

// scanFrame checks the block at the start of data. On frameOK it returns
// the block length; frameShort means more bytes are needed; frameBad means
// the stream has lost sync.
func scanFrame(data []byte) (int, frameStatus) {
	if len(data) < MessageLengthMin {
		return 0, frameShort
	}
	n := int(data[MessagePositionLen])
	if n < MessageLengthMin || n > MessageLengthMax {
		return 0, frameBad
	}
	if data[MessagePositionSeq]&^MessageSeqMask != MessageDest {
		return 0, frameBad
	}
	if len(data) < n {
		return 0, frameShort
	}
	if data[n-MessageTrailerSync] != MessageValueSync {
		return 0, frameBad
	}
	crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
	if crc != CRC16(data[:n-MessageTrailerSize]) {
		return 0, frameBad
	}
	return n, frameOK
}

// skipToSync drops everything up to and including the next sync byte.
// ok is false when there is none.
func skipToSync(data []byte) (rest []byte, ok bool) {
	for i, b := range data {
		if b == MessageValueSync {
			return data[i+1:], true
		}
	}
	return nil, false
}

// appendTrailer appends the CRC of block and the sync byte.
func appendTrailer(out OutputBuffer, block []byte) {
	crc := CRC16(block)
	out.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// EncodeBlock writes one block with sequence seq around the payload that
// body writes, patching the length byte once the payload is known. An
// oversized block is removed again when out supports Truncate.
func EncodeBlock(out OutputBuffer, seq uint8, body func(OutputBuffer)) error {
	start := out.CurPosition()
	out.Output([]byte{0, seq})
	if body != nil {
		body(out)
	}
	n := len(out.DataSince(start)) + MessageTrailerSize
	if n > MessageLengthMax {
		if tr, ok := out.(interface{ Truncate(pos int) }); ok {
			tr.Truncate(start)
		}
		return ErrMessageTooLong
	}
	out.Update(start, uint8(n))
	appendTrailer(out, out.DataSince(start))
	return nil
}

var errHandlerPanic = errors.New("protocol: command handler panicked")
