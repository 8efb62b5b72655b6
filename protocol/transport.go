package protocol

// CommandHandler runs one decoded command. It consumes its arguments from
// the front of *data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link. It parses blocks from the
// host, dispatches their commands in order, acknowledges every block and
// frames responses. It is driven from the main loop only.
type Transport struct {
	output  OutputBuffer
	handler CommandHandler

	synced  bool
	nextSeq uint8 // sequence expected from the host

	onReset func()
	onError func(cmdID uint16, err error)
	onFlush func()
}

// NewTransport returns a synchronized transport expecting sequence 0.
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		output:  output,
		handler: handler,
		synced:  true,
		nextSeq: MessageDest,
	}
}

// Receive consumes every complete block in input and leaves a trailing
// partial block in place.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	for len(data) > 0 {
		if !t.synced {
			var ok bool
			if data, ok = skipToSync(data); ok {
				t.synced = true
				t.ack()
			}
			continue
		}
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		n, status := scanFrame(data)
		if status == frameShort {
			break
		}
		if status == frameBad {
			t.synced = false
			continue
		}

		seq := data[MessagePositionSeq]
		payload := data[MessageHeaderSize : n-MessageTrailerSize]
		data = data[n:]

		// Sequence zero from a host we were already talking to is a
		// host restart.
		if seq == MessageDest && t.nextSeq != MessageDest {
			t.nextSeq = MessageDest
			if t.onReset != nil {
				t.onReset()
			}
		}
		if seq == t.nextSeq {
			t.nextSeq = NextSequence(seq)
			t.dispatch(payload)
		}
		// A mismatched sequence gets the same block back as a NAK.
		t.ack()
	}
	input.Pop(input.Available() - len(data))
}

func (t *Transport) dispatch(payload []byte) {
	var cmdID uint32
	defer func() {
		if r := recover(); r != nil {
			t.synced = false
			t.report(uint16(cmdID), errHandlerPanic)
		}
	}()

	for len(payload) > 0 {
		id, err := DecodeVLQUint(&payload)
		if err != nil {
			t.synced = false
			t.report(0, err)
			return
		}
		cmdID = id
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(id), &payload); err != nil {
			// The rest of the block cannot be parsed without the
			// failed command's arguments.
			t.report(uint16(id), err)
			return
		}
	}
}

func (t *Transport) report(cmdID uint16, err error) {
	if t.onError != nil {
		t.onError(cmdID, err)
	}
}

func (t *Transport) ack() {
	block := []byte{MessageLengthMin, t.nextSeq}
	t.output.Output(block)
	appendTrailer(t.output, block)
	if t.onFlush != nil {
		t.onFlush()
	}
}

// SendCommand frames cmdID and the arguments args writes as one response
// block. Responses carry the sequence the host will use next.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return EncodeBlock(t.output, t.nextSeq, func(out OutputBuffer) {
		EncodeVLQUint(out, uint32(cmdID))
		if args != nil {
			args(out)
		}
	})
}

// Reset returns to the power-on state.
func (t *Transport) Reset() {
	t.synced = true
	t.nextSeq = MessageDest
	if t.onReset != nil {
		t.onReset()
	}
}

// Synchronized reports whether the receiver is aligned on block
// boundaries.
func (t *Transport) Synchronized() bool { return t.synced }

// SetResetCallback is called when the host restarts its sequence.
func (t *Transport) SetResetCallback(fn func()) { t.onReset = fn }

// SetErrorCallback is called when a command fails or a block is
// malformed.
func (t *Transport) SetErrorCallback(fn func(cmdID uint16, err error)) { t.onError = fn }

// SetFlushCallback is called after every ACK so it can go out before any
// response to the same block.
func (t *Transport) SetFlushCallback(fn func()) { t.onFlush = fn }
