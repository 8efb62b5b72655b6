// Package loopback runs the firmware command layer on the simulated chip
// and exposes its serial link as an in-process connection. The host tools
// use it with -sim, and the host tests talk to it instead of a board.
//
// The command layer keeps package-level state, so only one Loopback may
// run at a time in a process.
package loopback

import (
	"errors"
	"net"
	"sync"
	"time"

	"avrperiph/core"
	"avrperiph/protocol"
	"avrperiph/sim"

	"periph.io/x/conn/v3/physic"
)

// Step is how much simulated time passes per main-loop pass.
const Step = time.Millisecond

var ErrRunning = errors.New("loopback: already running")

var running sync.Mutex

// Loopback is a simulated board behind a net.Conn.
type Loopback struct {
	MCU   *sim.MCU
	board *core.Board

	host net.Conn
	fw   net.Conn
	rx   chan []byte
	do   chan func()

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// buffer is an unbounded OutputBuffer drained on every flush.
type buffer struct{ buf []byte }

func (b *buffer) Output(data []byte)       { b.buf = append(b.buf, data...) }
func (b *buffer) CurPosition() int         { return len(b.buf) }
func (b *buffer) Update(pos int, val byte) { b.buf[pos] = val }
func (b *buffer) DataSince(pos int) []byte { return b.buf[pos:] }

func (b *buffer) Truncate(pos int) {
	if pos >= 0 && pos < len(b.buf) {
		b.buf = b.buf[:pos]
	}
}

// Start builds a board at cpu, initializes the command layer and starts
// the system clock. Simulated time advances by Step every tick of real
// time.
func Start(cpu physic.Frequency) (*Loopback, error) {
	if !running.TryLock() {
		return nil, ErrRunning
	}

	mcu := sim.New(cpu)
	b := core.NewBoard(mcu, cpu)
	mcu.Attach(b.Vectors)
	core.Init(b)
	if err := core.StartClock(b); err != nil {
		running.Unlock()
		return nil, err
	}

	host, fw := net.Pipe()
	l := &Loopback{
		MCU:   mcu,
		board: b,
		host:  host,
		fw:    fw,
		rx:    make(chan []byte, 16),
		do:    make(chan func()),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.read()
	go l.run()
	return l, nil
}

// Conn is the host end of the serial link.
func (l *Loopback) Conn() net.Conn { return l.host }

// Do runs fn on the firmware goroutine, between main-loop passes. Use it
// to drive simulated pins or the ADC.
func (l *Loopback) Do(fn func(m *sim.MCU)) error {
	wait := make(chan struct{})
	select {
	case l.do <- func() { fn(l.MCU); close(wait) }:
	case <-l.done:
		return net.ErrClosed
	}
	<-wait
	return nil
}

func (l *Loopback) read() {
	buf := make([]byte, protocol.MessageLengthMax)
	for {
		n, err := l.fw.Read(buf)
		if err != nil {
			return
		}
		data := append([]byte(nil), buf[:n]...)
		select {
		case l.rx <- data:
		case <-l.stop:
			return
		}
	}
}

func (l *Loopback) run() {
	defer close(l.done)
	defer running.Unlock()
	defer core.SetGlobalTransport(nil)

	out := &buffer{}
	in := protocol.NewFifoBuffer(4 * protocol.MessageLengthMax)
	flush := func() {
		if len(out.buf) == 0 {
			return
		}
		data := out.buf
		out.buf = nil
		if _, err := l.fw.Write(data); err != nil {
			l.shutdown()
		}
	}

	tr := protocol.NewTransport(out, core.DispatchCommand)
	tr.SetErrorCallback(core.ReportError)
	tr.SetResetCallback(core.ResetFirmwareState)
	core.SetGlobalTransport(tr)
	// A reset request reboots the chip: registers, command state and the
	// link all start over.
	core.SetResetHandler(func() {
		l.MCU.Reset()
		core.Init(l.board)
		if err := core.StartClock(l.board); err != nil {
			l.shutdown()
			return
		}
		tr.Reset()
	})

	tick := time.NewTicker(Step)
	defer tick.Stop()
	for {
		select {
		case <-l.stop:
			return
		case data := <-l.rx:
			for len(data) > 0 {
				n := in.Write(data)
				data = data[n:]
				tr.Receive(in)
				if n == 0 {
					in.Reset()
				}
			}
		case fn := <-l.do:
			fn()
		case <-tick.C:
			l.MCU.Advance(Step)
			core.RunTasks()
		}
		flush()
	}
}

func (l *Loopback) shutdown() {
	l.closeOnce.Do(func() {
		close(l.stop)
		l.fw.Close()
		l.host.Close()
	})
}

// Close stops the firmware goroutine and closes both ends of the link.
func (l *Loopback) Close() error {
	l.shutdown()
	<-l.done
	return nil
}
