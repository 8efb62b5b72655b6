package protocol

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

// firmware runs a Transport on one end of a pipe, echoing every command's
// first argument back as response cmdID+1.
type firmware struct {
	conn net.Conn
	out  *ScratchOutput
	tr   *Transport
	skip int // blocks to drop without answering
}

func startFirmware(t *testing.T, conn net.Conn) *firmware {
	t.Helper()
	f := &firmware{conn: conn, out: NewScratchOutput()}
	f.tr = NewTransport(f.out, func(cmdID uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		return f.tr.SendCommand(cmdID+1, func(o OutputBuffer) { EncodeVLQUint(o, v) })
	})
	f.tr.SetFlushCallback(f.flush)
	go f.run()
	return f
}

func (f *firmware) flush() {
	if f.out.CurPosition() == 0 {
		return
	}
	f.conn.Write(append([]byte(nil), f.out.Result()...))
	f.out.Reset()
}

func (f *firmware) run() {
	in := NewFifoBuffer(4 * MessageLengthMax)
	buf := make([]byte, MessageLengthMax)
	for {
		n, err := f.conn.Read(buf)
		if err != nil {
			return
		}
		in.Write(buf[:n])
		f.tr.Receive(in)
		f.flush()
	}
}

func TestHostRoundTrip(t *testing.T) {
	hostEnd, fwEnd := net.Pipe()
	fw := startFirmware(t, fwEnd)
	defer fw.conn.Close()

	host := NewHostTransport(hostEnd)
	defer host.Close()

	seen := make(chan uint16, 1)
	host.SetResponseHandler(func(cmdID uint16, data *[]byte) error {
		seen <- cmdID
		return nil
	})

	if err := host.SendCommand(20, func(o OutputBuffer) { EncodeVLQUint(o, 19999) }); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if host.Sequence() != 0x11 {
		t.Errorf("sequence = 0x%02x", host.Sequence())
	}

	m, err := host.ReceiveResponse(time.Second)
	if err != nil {
		t.Fatalf("ReceiveResponse: %v", err)
	}
	payload := m.Payload
	var id, v uint32
	if err := DecodeArgs(&payload, &id, &v); err != nil || id != 21 || v != 19999 {
		t.Errorf("response = %d %d, %v", id, v, err)
	}
	if got := <-seen; got != 21 {
		t.Errorf("handler saw %d", got)
	}
}

func TestHostRetransmitsOnNak(t *testing.T) {
	hostEnd, fwEnd := net.Pipe()
	fw := startFirmware(t, fwEnd)
	defer fw.conn.Close()

	host := NewHostTransport(hostEnd)
	defer host.Close()

	for i := uint32(0); i < 3; i++ {
		if err := host.SendCommand(1, func(o OutputBuffer) { EncodeVLQUint(o, i) }); err != nil {
			t.Fatal(err)
		}
	}
	// The host forgets its sequence; the firmware NAKs and names 0x13.
	host.sendMu.Lock()
	host.seq = 0x15
	host.sendMu.Unlock()

	if err := host.SendCommand(1, func(o OutputBuffer) { EncodeVLQUint(o, 7) }); err != nil {
		t.Fatalf("retransmit failed: %v", err)
	}
	if host.Sequence() != 0x14 {
		t.Errorf("sequence = 0x%02x, want 0x14", host.Sequence())
	}
}

func TestHostAckTimeout(t *testing.T) {
	hostEnd, silent := net.Pipe()
	defer silent.Close()
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := silent.Read(buf); err != nil {
				return
			}
		}
	}()

	host := NewHostTransport(hostEnd)
	defer host.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := host.Send(ctx, 1, nil)
	if !errors.Is(err, ErrAckTimeout) {
		t.Errorf("err = %v, want ErrAckTimeout", err)
	}
}

func TestHostClose(t *testing.T) {
	hostEnd, other := net.Pipe()
	defer other.Close()

	host := NewHostTransport(hostEnd)
	if err := host.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := host.ReceiveResponse(time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	host.Close()
}
