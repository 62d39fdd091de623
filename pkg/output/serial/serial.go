package serial

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ericogr/fsr-serial/pkg/config"
	"github.com/ericogr/fsr-serial/pkg/output"
	"github.com/ericogr/fsr-serial/pkg/sensor"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate is the rate the original sketch opens Serial with.
const DefaultBaudRate = 9600

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("serial output closed")

// openPort is replaced in tests.
var openPort = serial.Open

// Port describes a serial device found on the host.
type Port struct {
	Name        string
	Description string
}

// SerialOutput writes one decimal line per reading to a serial port.
type SerialOutput struct {
	mu   sync.Mutex
	name string
	port serial.Port
	term string
}

// NewSerial opens the port in 8N1 mode at the configured bit rate.
func NewSerial(cfg config.SerialConfig, term string) (output.Output, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := openPort(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	log.Printf("serial: %s open at %d baud", cfg.Port, baud)
	return &SerialOutput{name: cfg.Port, port: port, term: term}, nil
}

func (s *SerialOutput) Publish(r sensor.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return ErrClosed
	}
	if err := writeFull(s.port, output.FormatLine(r.Raw, s.term)); err != nil {
		return fmt.Errorf("write %s: %w", s.name, err)
	}
	return nil
}

func (s *SerialOutput) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// writeFull retries short writes until b is fully written.
func writeFull(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

// listPorts is replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// Ports returns the serial ports available on this host. USB adapters are
// described by product name or VID:PID so the FSR board can be told apart.
func Ports() ([]Port, error) {
	details, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	out := make([]Port, 0, len(details))
	for _, d := range details {
		out = append(out, Port{Name: d.Name, Description: describe(d)})
	}
	return out, nil
}

func describe(d *enumerator.PortDetails) string {
	if !d.IsUSB {
		return "native"
	}
	desc := fmt.Sprintf("USB %s:%s", d.VID, d.PID)
	if d.Product != "" {
		desc = d.Product + " (" + desc + ")"
	}
	if d.SerialNumber != "" {
		desc += " sn=" + d.SerialNumber
	}
	return desc
}
