package core

import (
	"avrperiph/extint"
	"avrperiph/protocol"
)

// ExtInt counts edges on an INTn line or a pin-change pin. The count is
// bumped in interrupt context and reported by ExtIntTask.
type ExtInt struct {
	OID      uint8
	count    uint32
	reported uint32
}

var extInts = make(map[uint8]*ExtInt)

func InitExtIntCommands() {
	RegisterCommand("config_extint", "oid=%c line=%c sense=%c", handleConfigExtInt)
	RegisterCommand("config_pcint", "oid=%c pin=%u", handleConfigPCInt)

	RegisterResponse("extint_event", "oid=%c count=%u clock=%u")
}

func handleConfigExtInt(data *[]byte) error {
	var oid, line, sense uint32
	if err := protocol.DecodeArgs(data, &oid, &line, &sense); err != nil {
		return err
	}
	if err := checkOID(oid); err != nil {
		return err
	}
	e := &ExtInt{OID: uint8(oid)}
	if err := MustBoard().ExtInt.EnableINT(extint.Line(line), extint.Sense(sense&3), e.fire); err != nil {
		return err
	}
	extInts[e.OID] = e
	return nil
}

func handleConfigPCInt(data *[]byte) error {
	var oid, pin uint32
	if err := protocol.DecodeArgs(data, &oid, &pin); err != nil {
		return err
	}
	if err := checkOID(oid); err != nil {
		return err
	}
	p, err := pinFromID(pin)
	if err != nil {
		return err
	}
	e := &ExtInt{OID: uint8(oid)}
	MustBoard().ExtInt.EnablePCINT(p.Port, p.Bit, e.fire)
	extInts[e.OID] = e
	return nil
}

func (e *ExtInt) fire() {
	e.count++
}

// ExtIntTask sends extint_event for every source that fired since the last
// report.
func ExtIntTask() {
	for _, e := range extInts {
		var n uint32
		critical(func() { n = e.count })
		if n == e.reported {
			continue
		}
		e.reported = n
		RecordEvent(EvtExtInt, e.OID, n)
		now := GetTime()
		SendResponse("extint_event", func(out protocol.OutputBuffer) {
			protocol.EncodeVLQUint(out, uint32(e.OID))
			protocol.EncodeVLQUint(out, n)
			protocol.EncodeVLQUint(out, now)
		})
	}
}

// ShutdownExtInt masks every external and pin-change interrupt.
func ShutdownExtInt() {
	if board != nil {
		board.ExtInt.DisableAll()
	}
}
