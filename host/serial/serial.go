// Package serial opens the host side of the target's debug UART.
package serial

import "io"

// Port is a serial connection. Flush discards anything buffered but not yet
// read or sent.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	Baud int

	// ReadTimeout bounds a single Read in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultBaud is the rate of the target's UART-A console.
const DefaultBaud = 115200

// DefaultConfig returns the usual settings for the target console on device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}
