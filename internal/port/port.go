package port

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialPort defines the interface for serial port operations. It is
// trimmed to exactly what a receiver driver calls: open the link once,
// move bytes in both directions, close it on disconnect.
type SerialPort interface {
	// Open opens the serial port with the given configuration
	Open(portName string, baudRate int) error

	// Close closes the serial port
	Close() error

	// Read reads data from the port
	Read(buffer []byte) (int, error)

	// Write writes data to the port
	Write(data []byte) (int, error)
}

// SerialConfig holds configuration for the serial port
type SerialConfig struct {
	BaudRate int
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits
	Timeout  time.Duration
}

// DefaultSerialConfig returns a default configuration for TOPGNSS TOP708
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		BaudRate: 38400, // Default baud rate for TOPGNSS TOP708
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
		Timeout:  500 * time.Millisecond,
	}
}

// GNSSSerialPort implements SerialPort interface for GNSS devices
type GNSSSerialPort struct {
	port   serial.Port
	config SerialConfig
}

// NewGNSSSerialPort creates a new GNSSSerialPort with default configuration
func NewGNSSSerialPort() *GNSSSerialPort {
	return &GNSSSerialPort{
		config: DefaultSerialConfig(),
	}
}

// Open opens the serial port with the given configuration
func (p *GNSSSerialPort) Open(portName string, baudRate int) error {
	// Update baud rate if provided
	if baudRate > 0 {
		p.config.BaudRate = baudRate
	}

	// Configure serial port
	mode := &serial.Mode{
		BaudRate: p.config.BaudRate,
		DataBits: p.config.DataBits,
		Parity:   p.config.Parity,
		StopBits: p.config.StopBits,
	}

	// Open the port
	port, err := serial.Open(portName, mode)
	if err != nil {
		return fmt.Errorf("error opening serial port %s: %w", portName, err)
	}

	p.port = port

	// Set read timeout
	err = p.port.SetReadTimeout(p.config.Timeout)
	if err != nil {
		return fmt.Errorf("error setting read timeout: %w", err)
	}

	return nil
}

// Close closes the serial port
func (p *GNSSSerialPort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Read reads data from the port
func (p *GNSSSerialPort) Read(buffer []byte) (int, error) {
	if p.port == nil {
		return 0, fmt.Errorf("port not open")
	}
	return p.port.Read(buffer)
}

// Write writes data to the port
func (p *GNSSSerialPort) Write(data []byte) (int, error) {
	if p.port == nil {
		return 0, fmt.Errorf("port not open")
	}
	return p.port.Write(data)
}
