// Package config loads the host tool's JSON profile: how to reach the
// board and which timers to program once connected.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"avrperiph/host/serial"
	"avrperiph/timer"

	"periph.io/x/conn/v3/physic"
)

// Config is one board profile.
type Config struct {
	Device        string `json:"device"`
	Baud          int    `json:"baud"`
	ReadTimeoutMs int    `json:"read_timeout_ms"`

	// CPU is the board's clock, e.g. "16MHz". It must match the firmware
	// build; the host only uses it to report periods in time units.
	CPU string `json:"cpu"`

	// ResetPin names a host GPIO wired to the board's RESET line, e.g.
	// "GPIO17" on a Raspberry Pi. Empty means no hardware reset.
	ResetPin     string `json:"reset_pin,omitempty"`
	ResetPulseMs int    `json:"reset_pulse_ms,omitempty"`

	Timers []TimerProfile `json:"timers,omitempty"`
}

// TimerProfile is a config_timer request in readable form.
type TimerProfile struct {
	Unit      uint8  `json:"unit"`
	Waveform  string `json:"waveform"`
	PeriodMs  uint16 `json:"period_ms"`
	Compare   string `json:"compare"`
	Prescaler uint16 `json:"prescaler"`
	Interrupt bool   `json:"interrupt"`
}

// LoadConfig parses a JSON profile and fills in defaults.
func LoadConfig(jsonData []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and parses the profile at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Baud == 0 {
		cfg.Baud = serial.DefaultBaud
	}
	if cfg.ReadTimeoutMs == 0 {
		cfg.ReadTimeoutMs = 100
	}
	if cfg.CPU == "" {
		cfg.CPU = "16MHz"
	}
	if cfg.ResetPin != "" && cfg.ResetPulseMs == 0 {
		// The datasheet minimum is 2.5 us; the bootloader needs far less
		// than this.
		cfg.ResetPulseMs = 10
	}
	for i := range cfg.Timers {
		t := &cfg.Timers[i]
		if t.Waveform == "" {
			t.Waveform = timer.Normal.String()
		}
		if t.Compare == "" {
			t.Compare = timer.Disconnected.String()
		}
	}
}

// Default returns the profile used when no file is given.
func Default(device string) *Config {
	cfg := &Config{Device: device}
	applyDefaults(cfg)
	return cfg
}

// Validate checks the fields applyDefaults cannot fix.
func (c *Config) Validate() error {
	if _, err := c.CPUFrequency(); err != nil {
		return err
	}
	for i, t := range c.Timers {
		if _, err := t.Config(); err != nil {
			return fmt.Errorf("timers[%d]: %w", i, err)
		}
	}
	return nil
}

// CPUFrequency parses CPU.
func (c *Config) CPUFrequency() (physic.Frequency, error) {
	var f physic.Frequency
	if err := f.Set(c.CPU); err != nil {
		return 0, fmt.Errorf("cpu %q: %w", c.CPU, err)
	}
	return f, nil
}

// Serial returns the port settings.
func (c *Config) Serial() *serial.Config {
	return &serial.Config{
		Device:      c.Device,
		Baud:        c.Baud,
		ReadTimeout: time.Duration(c.ReadTimeoutMs) * time.Millisecond,
	}
}

// ResetPulse is the reset line's low time.
func (c *Config) ResetPulse() time.Duration {
	return time.Duration(c.ResetPulseMs) * time.Millisecond
}

// Config converts the profile to a driver request. The prescaler is passed
// through unchecked: the firmware substitutes the default for values
// outside the enumerated set and says so.
func (t TimerProfile) Config() (timer.Config, error) {
	if t.Unit > 2 {
		return timer.Config{}, fmt.Errorf("unit %d: no such timer", t.Unit)
	}
	w, err := ParseWaveform(t.Waveform)
	if err != nil {
		return timer.Config{}, err
	}
	c, err := ParseCompare(t.Compare)
	if err != nil {
		return timer.Config{}, err
	}
	return timer.Config{
		Waveform:  w,
		PeriodMs:  t.PeriodMs,
		Compare:   c,
		Prescaler: timer.Prescaler(t.Prescaler),
		Interrupt: t.Interrupt,
	}, nil
}

// ParseWaveform accepts the names Waveform.String returns.
func ParseWaveform(s string) (timer.Waveform, error) {
	for _, w := range []timer.Waveform{timer.Normal, timer.CTCCompareA, timer.CTCInputCapture} {
		if w.String() == s {
			return w, nil
		}
	}
	return 0, fmt.Errorf("unknown waveform %q", s)
}

// ParseCompare accepts the names CompareOutput.String returns.
func ParseCompare(s string) (timer.CompareOutput, error) {
	for _, c := range []timer.CompareOutput{timer.Disconnected, timer.Toggle, timer.Clear, timer.Set} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compare output %q", s)
}
