package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"avrperiph/host/config"
	"avrperiph/host/mcu"
	"avrperiph/timer"
)

// shell runs the interactive commands against one MCU.
type shell struct {
	m   *mcu.MCU
	out io.Writer
}

func newShell(m *mcu.MCU, out io.Writer) *shell {
	sh := &shell{m: m, out: out}
	m.OnTimerEvent(func(e mcu.TimerEvent) {
		fmt.Fprintf(out, "[event] timer %d: %d periods at clock %d\n", e.Unit, e.Count, e.Clock)
	})
	m.OnExtIntEvent(func(e mcu.ExtIntEvent) {
		fmt.Fprintf(out, "[event] extint %d: %d edges at clock %d\n", e.OID, e.Count, e.Clock)
	})
	m.OnShutdown(func(clock uint32, reason string) {
		fmt.Fprintf(out, "[shutdown] %s at clock %d\n", reason, clock)
	})
	return sh
}

// applyProfiles programs every timer profile from the config.
func (sh *shell) applyProfiles(ctx context.Context, profiles []config.TimerProfile) error {
	for _, p := range profiles {
		cfg, err := p.Config()
		if err != nil {
			return err
		}
		s, err := sh.m.ConfigureTimer(ctx, p.Unit, cfg)
		if err != nil {
			return err
		}
		sh.printSettings(p.Unit, s)
	}
	return nil
}

func (sh *shell) printSettings(unit uint8, s timer.Settings) {
	fmt.Fprintf(sh.out, "timer %d: %s %s compare=%s ticks=%d interrupt=%t\n",
		unit, s.Waveform, s.Prescaler, s.Compare, s.Ticks, s.Interrupt)
	if s.WaveformDefaulted {
		fmt.Fprintf(sh.out, "  waveform not supported by unit %d, using %s\n", unit, s.Waveform)
	}
	if s.PrescalerDefaulted {
		fmt.Fprintf(sh.out, "  prescaler not available, using %s\n", s.Prescaler)
	}
}

// run reads commands from in until quit or end of input.
func (sh *shell) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(sh.out, "> ")
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if parts[0] == "quit" || parts[0] == "exit" || parts[0] == "q" {
			fmt.Fprintln(sh.out, "Goodbye!")
			return nil
		}
		if err := sh.exec(ctx, parts[0], parts[1:]); err != nil {
			fmt.Fprintf(sh.out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (sh *shell) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		sh.printHelp()
	case "dict":
		sh.m.PrintDictionary(sh.out)
	case "raw":
		raw := sh.m.GetDictionaryRaw()
		fmt.Fprintf(sh.out, "Raw dictionary data (%d bytes):\n%s\n", len(raw), raw)

	case "clock":
		c, err := sh.m.GetClock(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "clock: %d\n", c)
	case "uptime":
		up, err := sh.m.GetUptime(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "uptime: %d ticks\n", up)
	case "status":
		st, err := sh.m.GetStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "configured=%t crc=0x%08x shutdown=%t\n", st.Configured, st.CRC, st.Shutdown)

	case "timer":
		return sh.configTimer(ctx, args)
	case "read", "check", "stop", "clear", "reset-timer":
		unit, err := argUnit(args)
		if err != nil {
			return err
		}
		return sh.timerOp(ctx, cmd, unit)

	case "adc":
		if len(args) != 2 {
			return fmt.Errorf("usage: adc <oid> <channel>")
		}
		oid, err := argUint8(args[0])
		if err != nil {
			return err
		}
		ch, err := argUint8(args[1])
		if err != nil {
			return err
		}
		if err := sh.m.ConfigAnalogIn(ctx, oid, ch); err != nil {
			return err
		}
		v, err := sh.m.ReadAnalog(ctx, oid)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "adc %d: %d\n", ch, v)
	case "temp":
		t, err := sh.m.Temperature(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "temperature: %s\n", t)

	case "estop":
		return sh.m.EmergencyStop(ctx)
	case "config-reset":
		return sh.m.ConfigReset(ctx)
	case "reset":
		return sh.m.Reset(ctx)
	case "send":
		if len(args) == 0 {
			return fmt.Errorf("usage: send <command> [args...]")
		}
		vals := make([]uint32, len(args)-1)
		for i, a := range args[1:] {
			v, err := strconv.ParseUint(a, 0, 32)
			if err != nil {
				return fmt.Errorf("argument %q: %w", a, err)
			}
			vals[i] = uint32(v)
		}
		return sh.m.Send(ctx, args[0], vals...)

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
	return nil
}

// configTimer parses "timer <unit> <waveform> <period_ms> <compare>
// <prescaler> [irq]".
func (sh *shell) configTimer(ctx context.Context, args []string) error {
	if len(args) < 5 || len(args) > 6 {
		return fmt.Errorf("usage: timer <unit> <waveform> <period_ms> <compare> <prescaler> [irq]")
	}
	unit, err := argUnit(args[:1])
	if err != nil {
		return err
	}
	period, err := strconv.ParseUint(args[2], 10, 16)
	if err != nil {
		return fmt.Errorf("period %q: %w", args[2], err)
	}
	prescaler, err := strconv.ParseUint(args[4], 10, 16)
	if err != nil {
		return fmt.Errorf("prescaler %q: %w", args[4], err)
	}
	p := config.TimerProfile{
		Unit:      unit,
		Waveform:  args[1],
		PeriodMs:  uint16(period),
		Compare:   args[3],
		Prescaler: uint16(prescaler),
		Interrupt: len(args) == 6 && args[5] == "irq",
	}
	return sh.applyProfiles(ctx, []config.TimerProfile{p})
}

func (sh *shell) timerOp(ctx context.Context, op string, unit uint8) error {
	switch op {
	case "read":
		v, err := sh.m.ReadTimer(ctx, unit)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "timer %d: %d\n", unit, v)
	case "check":
		ov, err := sh.m.CheckTimer(ctx, unit)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "timer %d overflow: %t\n", unit, ov)
	case "stop":
		return sh.m.StopTimer(ctx, unit)
	case "clear":
		return sh.m.ClearTimer(ctx, unit)
	case "reset-timer":
		return sh.m.ResetTimer(ctx, unit)
	}
	return nil
}

func argUnit(args []string) (uint8, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected a timer unit")
	}
	u, err := argUint8(args[0])
	if err != nil {
		return 0, err
	}
	if u > 2 {
		return 0, fmt.Errorf("unit %d: no such timer", u)
	}
	return u, nil
}

func argUint8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	return uint8(v), nil
}

func (sh *shell) printHelp() {
	fmt.Fprint(sh.out, `
Available commands:
  help                     - Show this help message
  dict / raw               - Print the dictionary summary / raw JSON
  clock / uptime / status  - Query the firmware
  timer <unit> <waveform> <period_ms> <compare> <prescaler> [irq]
                           - Configure a timer (waveform: normal, ctc-ocra,
                             ctc-icr; compare: disconnected, toggle, clear, set)
  read|check|stop|clear|reset-timer <unit>
                           - Timer runtime control
  adc <oid> <channel>      - Configure and read an ADC channel (8 = temperature)
  temp                     - Read the on-chip temperature sensor
  estop / config-reset     - Shut down / leave shutdown
  reset                    - Reboot the firmware
  send <command> [args...] - Send any dictionary command
  quit/exit/q              - Exit the program

`)
}
