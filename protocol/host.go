package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrAckTimeout      = errors.New("protocol: timed out waiting for ack")
	ErrResponseTimeout = errors.New("protocol: timed out waiting for response")
	ErrClosed          = errors.New("protocol: transport closed")
)

// DefaultTimeout bounds an ACK or response wait when no deadline is given.
const DefaultTimeout = 2 * time.Second

// maxRetransmit is how often a NAKed block is sent again with the sequence
// the firmware asked for.
const maxRetransmit = 2

// ResponseHandler sees every response block, decoded to its first command
// ID, before it is queued.
type ResponseHandler func(cmdID uint16, data *[]byte) error

// HostTransport is the host end of the link: it sends command blocks one at
// a time and waits for each ACK, and a reader goroutine queues responses.
type HostTransport struct {
	port io.ReadWriteCloser

	sendMu sync.Mutex
	seq    uint8 // next sequence to send, guarded by sendMu

	acks      chan uint8
	responses chan *Message

	handlerMu sync.RWMutex
	handler   ResponseHandler

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewHostTransport starts reading from port.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:      port,
		seq:       MessageDest,
		acks:      make(chan uint8, 4),
		responses: make(chan *Message, 32),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends one command and waits DefaultTimeout for its ACK.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	return t.Send(ctx, cmdID, args)
}

// Send sends one command and waits for its ACK until ctx is done. A NAK
// (an ACK for a different sequence) is answered by resending the block with
// the sequence the firmware expects.
func (t *HostTransport) Send(ctx context.Context, cmdID uint16, args func(output OutputBuffer)) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	for attempt := 0; ; attempt++ {
		block, err := t.buildBlock(cmdID, args)
		if err != nil {
			return err
		}
		if err := t.write(block); err != nil {
			return err
		}

		want := NextSequence(t.seq)
		got, err := t.waitAck(ctx)
		if err != nil {
			return fmt.Errorf("command %d seq 0x%02x: %w", cmdID, t.seq, err)
		}
		if got == want {
			t.seq = want
			return nil
		}
		if attempt == maxRetransmit {
			return fmt.Errorf("command %d: firmware expects seq 0x%02x, sent 0x%02x", cmdID, got, t.seq)
		}
		t.seq = got
	}
}

func (t *HostTransport) buildBlock(cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	out := NewScratchOutput()
	err := EncodeBlock(out, t.seq, func(o OutputBuffer) {
		EncodeVLQUint(o, uint32(cmdID))
		if args != nil {
			args(o)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("command %d: %w", cmdID, err)
	}
	return append([]byte(nil), out.Result()...), nil
}

func (t *HostTransport) write(block []byte) error {
	n, err := t.port.Write(block)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if n != len(block) {
		return fmt.Errorf("write: short write %d/%d", n, len(block))
	}
	return nil
}

func (t *HostTransport) waitAck(ctx context.Context) (uint8, error) {
	select {
	case seq := <-t.acks:
		return seq, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, ErrAckTimeout
		}
		return 0, ctx.Err()
	case <-t.stop:
		return 0, ErrClosed
	}
}

// ReceiveResponse waits up to timeout for the next response block.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return t.Receive(ctx)
}

// Receive waits for the next response block until ctx is done.
func (t *HostTransport) Receive(ctx context.Context) (*Message, error) {
	select {
	case m := <-t.responses:
		return m, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrResponseTimeout
		}
		return nil, ctx.Err()
	case <-t.stop:
		return nil, ErrClosed
	}
}

// SetResponseHandler installs h for responses received from now on.
func (t *HostTransport) SetResponseHandler(h ResponseHandler) {
	t.handlerMu.Lock()
	t.handler = h
	t.handlerMu.Unlock()
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	in := NewFifoBuffer(4 * MessageLengthMax)
	buf := make([]byte, MessageLengthMax)
	synced := true
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		room := in.Free()
		if room > len(buf) {
			room = len(buf)
		}
		n, err := t.port.Read(buf[:room])
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}
		in.Write(buf[:n])
		synced = t.parse(in, synced)
		if in.Free() == 0 {
			// A full buffer with no complete block in it is noise.
			in.Reset()
			synced = false
		}
	}
}

// parse consumes complete blocks from in and returns the new sync state.
func (t *HostTransport) parse(in *FifoBuffer, synced bool) bool {
	data := in.Data()
	for len(data) > 0 {
		if !synced {
			data, synced = skipToSync(data)
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
			synced = false
			continue
		}
		m := &Message{
			Length:   data[MessagePositionLen],
			Sequence: data[MessagePositionSeq],
			Payload:  append([]byte(nil), data[MessageHeaderSize:n-MessageTrailerSize]...),
			CRC:      uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1]),
		}
		data = data[n:]
		t.deliver(m)
	}
	in.Pop(in.Available() - len(data))
	return synced
}

func (t *HostTransport) deliver(m *Message) {
	if m.IsAck() {
		select {
		case t.acks <- m.Sequence:
		default:
		}
		return
	}

	t.handlerMu.RLock()
	h := t.handler
	t.handlerMu.RUnlock()
	if h != nil {
		payload := m.Payload
		if id, err := DecodeVLQUint(&payload); err == nil {
			h(uint16(id), &payload)
		}
	}

	select {
	case t.responses <- m:
	default:
		// Full: drop the oldest so the newest state is kept.
		select {
		case <-t.responses:
		default:
		}
		t.responses <- m
	}
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.done
	})
	return err
}

// Reset drops queued ACKs and responses and restarts the sequence, for use
// after the firmware was reset.
func (t *HostTransport) Reset() {
	t.sendMu.Lock()
	t.seq = MessageDest
	t.sendMu.Unlock()
	for {
		select {
		case <-t.acks:
		case <-t.responses:
		default:
			return
		}
	}
}

// Sequence returns the sequence the next command will carry.
func (t *HostTransport) Sequence() uint8 {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return t.seq
}
