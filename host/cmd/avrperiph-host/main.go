// Command avrperiph-host talks to an avrperiph board over serial: it loads
// the firmware dictionary, applies the timer profiles from a JSON config
// and then accepts commands interactively.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"avrperiph/hal"
	"avrperiph/host/config"
	"avrperiph/host/loopback"
	"avrperiph/host/mcu"
	"avrperiph/host/reset"
	"avrperiph/logger"
)

var (
	configPath = flag.String("config", "", "JSON board profile")
	device     = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud       = flag.Int("baud", 0, "Baud rate (default from profile, 250000)")
	simulate   = flag.Bool("sim", false, "Run against the simulated chip instead of a board")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()
	if !*verbose {
		logger.Set(nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	m := mcu.New()
	if *simulate {
		// The simulator runs the firmware built for hal.CPUFrequency.
		cpu := hal.CPUFrequency
		lb, err := loopback.Start(cpu)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: simulator: %v\n", err)
			os.Exit(1)
		}
		defer lb.Close()
		fmt.Printf("Running against the simulated ATmega328P at %s\n", cpu)
		m.Attach(lb.Conn())
	} else {
		if cfg.ResetPin != "" {
			fmt.Printf("Resetting board via %s...\n", cfg.ResetPin)
			if err := reset.Board(cfg.ResetPin, cfg.ResetPulse()); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
		fmt.Printf("Connecting to MCU on %s...\n", cfg.Device)
		if err := m.ConnectWithConfig(cfg.Serial()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
			os.Exit(1)
		}
	}
	defer m.Close()

	ctx := context.Background()
	if err := m.RetrieveDictionary(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}
	m.PrintDictionary(os.Stdout)

	sh := newShell(m, os.Stdout)
	if err := sh.applyProfiles(ctx, cfg.Timers); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nEnter commands (type 'help' for available commands, 'quit' to exit):")
	if err := sh.run(ctx, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads -config when given and lets flags override it.
func loadConfig() (*config.Config, error) {
	cfg := config.Default(*device)
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *device
		case "baud":
			cfg.Baud = *baud
		}
	})
	if cfg.Device == "" {
		cfg.Device = *device
	}
	return cfg, cfg.Validate()
}
