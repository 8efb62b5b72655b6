package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"avrperiph/host/serial"
	"avrperiph/timer"

	"periph.io/x/conn/v3/physic"
)

const profile = `{
	"device": "/dev/ttyUSB0",
	"cpu": "8MHz",
	"reset_pin": "GPIO17",
	"timers": [
		{"unit": 1, "waveform": "ctc-ocra", "period_ms": 10, "compare": "toggle", "prescaler": 8, "interrupt": true},
		{"unit": 0, "prescaler": 64}
	]
}`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(profile))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Baud != serial.DefaultBaud {
		t.Errorf("Baud = %d", cfg.Baud)
	}
	if cfg.ResetPulse() != 10*time.Millisecond {
		t.Errorf("ResetPulse = %s", cfg.ResetPulse())
	}
	if f, _ := cfg.CPUFrequency(); f != 8*physic.MegaHertz {
		t.Errorf("CPU = %s", f)
	}
	if s := cfg.Serial(); s.Device != "/dev/ttyUSB0" || s.ReadTimeout != 100*time.Millisecond {
		t.Errorf("Serial = %+v", s)
	}

	tc, err := cfg.Timers[0].Config()
	if err != nil {
		t.Fatalf("timer 0: %v", err)
	}
	if tc.Waveform != timer.CTCCompareA || tc.Compare != timer.Toggle || tc.Prescaler != timer.Prescaler8 || !tc.Interrupt {
		t.Errorf("timer profile = %+v", tc)
	}
	if cfg.Timers[1].Waveform != "normal" || cfg.Timers[1].Compare != "disconnected" {
		t.Errorf("timer defaults = %+v", cfg.Timers[1])
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"syntax", `{"device":`},
		{"cpu", `{"cpu": "fast"}`},
		{"waveform", `{"timers": [{"unit": 0, "waveform": "pwm"}]}`},
		{"compare", `{"timers": [{"unit": 0, "compare": "invert"}]}`},
		{"unit", `{"timers": [{"unit": 3}]}`},
	}
	for _, tt := range tests {
		if _, err := LoadConfig([]byte(tt.json)); err == nil {
			t.Errorf("%s: LoadConfig succeeded", tt.name)
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default("COM3")
	if cfg.CPU != "16MHz" || cfg.ResetPulseMs != 0 {
		t.Errorf("Default = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	if err := os.WriteFile(path, []byte(profile), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(cfg.Timers) != 2 {
		t.Errorf("timers = %d", len(cfg.Timers))
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadFile of a missing file succeeded")
	}
}

func TestParseNames(t *testing.T) {
	if w, err := ParseWaveform("ctc-icr"); err != nil || w != timer.CTCInputCapture {
		t.Errorf("ctc-icr = %v, %v", w, err)
	}
	if c, err := ParseCompare("set"); err != nil || c != timer.Set {
		t.Errorf("set = %v, %v", c, err)
	}
}
