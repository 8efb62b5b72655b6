//go:build tinygo && avr

// Firmware for ATmega328P boards (Arduino Uno, Nano). It speaks the framed
// command protocol on USART0 and runs the timer, ADC, GPIO and external
// interrupt commands. Timer2 is the 1 ms system clock.
package main

import (
	"avrperiph/core"
	"avrperiph/hal"
	"avrperiph/logger"
	"avrperiph/protocol"
	"avrperiph/usart"

	"periph.io/x/conn/v3/physic"
)

// Baud divides 16 MHz exactly in double-speed mode (UBRR0 = 7).
const Baud = 250000 * physic.Hertz

var (
	link   *usart.USART
	input  *protocol.FifoBuffer
	output *protocol.ScratchOutput

	overflows uint16
)

func main() {
	bus := hal.Device
	hal.WatchdogDisable(bus)

	board := core.NewBoard(bus, hal.CPUFrequency)
	bindVectors(board.Vectors)

	link = usart.New(bus)
	link.Init(hal.CPUFrequency, Baud, true)

	core.Init(board)
	if err := core.StartClock(board); err != nil {
		logger.Error("clock: " + err.Error())
	}

	input = protocol.NewFifoBuffer(2 * protocol.MessageLengthMax)
	output = protocol.NewScratchOutput()

	transport := protocol.NewTransport(output, core.DispatchCommand)
	transport.SetFlushCallback(flush)
	transport.SetErrorCallback(core.ReportError)
	transport.SetResetCallback(func() {
		core.ResetFirmwareState()
	})
	core.SetGlobalTransport(transport)
	core.SetResetHandler(func() {
		flush()
		hal.WatchdogReset(bus)
		for {
		}
	})

	hal.EnableInterrupts(bus)
	for {
		poll()
		if !input.IsEmpty() {
			transport.Receive(input)
			if input.Free() == 0 {
				// Full and nothing parsed: drop it and resync on the
				// next sync byte.
				input.Reset()
			}
		}
		core.RunTasks()
		flush()
	}
}

// poll drains the USART receiver. It has a two-byte FIFO, so the main loop
// must come round at least every two character times.
func poll() {
	for {
		c, ok := link.TryReadByte()
		if !ok {
			return
		}
		if !input.PutByte(c) {
			return
		}
	}
}

func flush() {
	data := output.Result()
	if len(data) > 0 {
		link.Write(data)
	}
	if output.Overflow > 0 {
		overflows++
		core.RecordEvent(core.EvtCommandError, 0xFF, uint32(overflows))
	}
	output.Reset()
}
