package serial

import (
	"fmt"

	"github.com/tarm/serial"
)

// NativePort is an OS serial device.
type NativePort struct {
	port *serial.Port
	cfg  Config
}

// Open opens cfg.Device 8N1 at cfg.Baud.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("serial: config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return &NativePort{port: port, cfg: *cfg}, nil
}

func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

func (p *NativePort) Flush() error {
	return p.port.Flush()
}

// Device returns the path the port was opened with.
func (p *NativePort) Device() string {
	return p.cfg.Device
}
