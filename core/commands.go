package core

import (
	"avrperiph/hal"
	"avrperiph/logger"
	"avrperiph/protocol"
)

// FirmwareState is the host-visible configuration state. It is only
// touched from the main loop.
type FirmwareState struct {
	configCRC    uint32
	isShutdown   bool
	oidCount     uint8
	moveCount    uint16
	resetPending bool
}

var globalState = FirmwareState{moveCount: 8}

// InitCoreCommands registers the protocol commands. identify_response and
// identify must be IDs 0 and 1: the host knows them before it has a
// dictionary.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%.*s")
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify)

	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("get_clock", "", handleGetClock)
	RegisterCommand("get_config", "", handleGetConfig)
	RegisterCommand("config_reset", "", handleConfigReset)
	RegisterCommand("finalize_config", "crc=%u", handleFinalizeConfig)
	RegisterCommand("allocate_oids", "count=%c", handleAllocateOids)
	RegisterCommand("emergency_stop", "", handleEmergencyStop)
	RegisterCommand("reset", "", handleReset)
	RegisterCommand("debug_read", "order=%c addr=%hu", handleDebugRead)

	RegisterResponse("clock", "clock=%u")
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterResponse("config", "is_config=%c crc=%u is_shutdown=%c move_count=%hu")
	RegisterResponse("shutdown", "clock=%u reason=%*s")
	RegisterResponse("debug_result", "val=%u")
}

func handleIdentify(data *[]byte) error {
	var offset, count uint32
	if err := protocol.DecodeArgs(data, &offset, &count); err != nil {
		return err
	}
	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))
	return SendResponse("identify_response", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, offset)
		protocol.EncodeVLQBytes(out, chunk)
	})
}

func handleGetUptime(data *[]byte) error {
	up := GetUptime()
	return SendResponse("uptime", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(up>>32))
		protocol.EncodeVLQUint(out, uint32(up))
	})
}

func handleGetClock(data *[]byte) error {
	now := GetTime()
	return SendResponse("clock", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, now)
	})
}

func handleGetConfig(data *[]byte) error {
	s := &globalState
	return SendResponse("config", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, boolArg(s.configCRC != 0))
		protocol.EncodeVLQUint(out, s.configCRC)
		protocol.EncodeVLQUint(out, boolArg(s.isShutdown))
		protocol.EncodeVLQUint(out, uint32(s.moveCount))
	})
}

// handleConfigReset releases every configured object and leaves shutdown.
func handleConfigReset(data *[]byte) error {
	ResetFirmwareState()
	return nil
}

func handleFinalizeConfig(data *[]byte) error {
	crc, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	globalState.configCRC = crc
	return nil
}

// handleAllocateOids bounds the object IDs the config_* commands accept.
func handleAllocateOids(data *[]byte) error {
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	globalState.oidCount = uint8(count)
	return nil
}

func handleEmergencyStop(data *[]byte) error {
	TryShutdown("emergency stop")
	return nil
}

// handleReset defers the reset to the main loop so the ACK goes out first.
func handleReset(data *[]byte) error {
	globalState.resetPending = true
	return nil
}

// handleDebugRead reads data space: order 0 is a byte, 1 a 16-bit pair
// read low byte first.
func handleDebugRead(data *[]byte) error {
	var order, addr uint32
	if err := protocol.DecodeArgs(data, &order, &addr); err != nil {
		return err
	}
	b := MustBoard()
	var val uint32
	switch order {
	case 0:
		val = uint32(hal.R8(b.Bus, hal.Addr(addr)).Get())
	case 1:
		val = uint32(hal.R16(b.Bus, hal.Addr(addr)).Get())
	}
	return SendResponse("debug_result", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, val)
	})
}

// checkOID rejects an object ID outside allocate_oids and any
// configuration while shut down.
func checkOID(oid uint32) error {
	if globalState.isShutdown {
		return ErrShutdown
	}
	if globalState.oidCount != 0 && oid >= uint32(globalState.oidCount) {
		return ErrUnknownOID
	}
	return nil
}

// TryShutdown stops the timers, masks the external interrupts, returns
// outputs to their defaults and tells the host why.
func TryShutdown(reason string) {
	if globalState.isShutdown {
		return
	}
	globalState.isShutdown = true
	RecordEvent(EvtShutdown, 0, 0)
	logger.Error("shutdown: " + reason)

	ShutdownTimers()
	ShutdownExtInt()
	ShutdownAllAnalogIn()
	ShutdownAllDigitalOut()

	now := GetTime()
	SendResponse("shutdown", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, now)
		protocol.EncodeVLQString(out, reason)
	})
}

func IsShutdown() bool {
	return globalState.isShutdown
}

// ResetFirmwareState drops every configured object and clears shutdown,
// for config_reset and for a host that restarted its sequence.
func ResetFirmwareState() {
	ShutdownTimers()
	ShutdownExtInt()
	ShutdownAllAnalogIn()
	ShutdownAllDigitalOut()
	resetObjects()
	globalState.configCRC = 0
	globalState.isShutdown = false
	globalState.oidCount = 0
}

func resetObjects() {
	resetTimerState()
	analogInputs = make(map[uint8]*AnalogIn)
	digitalOutputs = make(map[uint8]*DigitalOut)
	buttons = make(map[uint8]*Button)
	extInts = make(map[uint8]*ExtInt)
}

var globalTransport *protocol.Transport

func SetGlobalTransport(t *protocol.Transport) {
	globalTransport = t
}

// SendResponse frames a registered response. Without a transport it does
// nothing. An unregistered name is a programming error.
func SendResponse(name string, args func(out protocol.OutputBuffer)) error {
	if globalTransport == nil {
		return nil
	}
	cmd, ok := globalRegistry.GetCommandByName(name)
	if !ok {
		panic("core: response not registered: " + name)
	}
	return globalTransport.SendCommand(cmd.ID, args)
}

var globalResetHandler func()

// SetResetHandler installs the target's reset (the watchdog on AVR).
func SetResetHandler(h func()) {
	globalResetHandler = h
}

// CheckPendingReset runs the reset handler once a reset was requested.
func CheckPendingReset() {
	if globalState.resetPending && globalResetHandler != nil {
		globalState.resetPending = false
		globalResetHandler()
	}
}

// Init registers every command against b and publishes the board
// constants. Calling it again rebinds the command layer to a new board
// and drops all configured objects.
func Init(b *Board) {
	stopClock()
	resetTimers()
	adcReady = false
	mcuSensor = nil
	globalState = FirmwareState{moveCount: 8}
	resetObjects()
	SetBoard(b)
	InitCoreCommands()
	InitTimerCommands()
	InitADCCommands()
	InitGPIOCommands()
	InitButtonCommands()
	InitExtIntCommands()

	globalDictionary.AddConstant("MCU", "atmega328p")
	RegisterConstant("CLOCK_FREQ", TimerFreq)
	RegisterConstant("CPU_FREQ", hal.Hz(b.CPU))
	RegisterEnumeration("pin", PinNames[:])
	globalDictionary.Invalidate()
}

// RunTasks is one main-loop pass: due timers, pending events, a requested
// reset.
func RunTasks() {
	ProcessTimers(GetTime())
	TimerEventTask()
	ExtIntTask()
	CheckPendingReset()
}

// ReportError is the transport's error callback.
func ReportError(cmdID uint16, err error) {
	RecordEvent(EvtCommandError, uint8(cmdID), 0)
	logger.Warn("command " + itoa(int(cmdID)) + ": " + err.Error())
}
