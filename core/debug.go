package core

import "avrperiph/logger"

// Event is one entry in the post-mortem ring.
type Event struct {
	Type  uint8
	OID   uint8
	Clock uint32
	Value uint32
}

const (
	EvtTimerConfig  = 1 // Value: ticks
	EvtTimerError   = 2 // Value: error code
	EvtExtInt       = 3 // Value: event count
	EvtCommandError = 4 // OID: low byte of command ID
	EvtShutdown     = 5
	EvtAnalogRange  = 6 // Value: out-of-range sum
)

const EventRingSize = 16

var (
	eventRing [EventRingSize]Event
	eventHead uint8
)

// RecordEvent stores an event, overwriting the oldest.
func RecordEvent(typ, oid uint8, value uint32) {
	critical(func() {
		eventRing[eventHead] = Event{Type: typ, OID: oid, Clock: sysClock.ticks, Value: value}
		eventHead = (eventHead + 1) % EventRingSize
	})
}

// Events returns the recorded events, oldest first.
func Events() []Event {
	var out []Event
	critical(func() {
		for i := uint8(0); i < EventRingSize; i++ {
			e := eventRing[(eventHead+i)%EventRingSize]
			if e.Type != 0 {
				out = append(out, e)
			}
		}
	})
	return out
}

func eventName(t uint8) string {
	switch t {
	case EvtTimerConfig:
		return "TIMER_CONFIG"
	case EvtTimerError:
		return "TIMER_ERROR"
	case EvtExtInt:
		return "EXTINT"
	case EvtCommandError:
		return "CMD_ERROR"
	case EvtShutdown:
		return "SHUTDOWN"
	case EvtAnalogRange:
		return "ANALOG_RANGE"
	}
	return "UNKNOWN"
}

// DumpEvents logs the ring at debug level.
func DumpEvents() {
	for _, e := range Events() {
		logger.Debug("[event] " + eventName(e.Type) +
			" oid=" + itoa(int(e.OID)) +
			" clock=" + utoa(e.Clock) +
			" v=" + utoa(e.Value))
	}
}

func ClearEvents() {
	critical(func() {
		eventRing = [EventRingSize]Event{}
		eventHead = 0
	})
}
