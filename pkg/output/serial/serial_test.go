package serial

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ericogr/fsr-serial/pkg/config"
	"github.com/ericogr/fsr-serial/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// fakePort records writes. It embeds serial.Port so unused methods exist;
// calling one of them panics.
type fakePort struct {
	serial.Port
	buf      bytes.Buffer
	chunk    int
	closed   bool
	writeErr error
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if p.chunk > 0 && len(b) > p.chunk {
		b = b[:p.chunk]
	}
	return p.buf.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func withPort(t *testing.T, p *fakePort) *serial.Mode {
	t.Helper()
	var got serial.Mode
	prev := openPort
	openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		got = *mode
		return p, nil
	}
	t.Cleanup(func() { openPort = prev })
	return &got
}

func TestNewSerialMode(t *testing.T) {
	p := &fakePort{}
	mode := withPort(t, p)

	_, err := NewSerial(config.SerialConfig{Port: "/dev/ttyFAKE"}, "\n")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaudRate, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.NoParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
}

func TestSerialPublish(t *testing.T) {
	p := &fakePort{}
	withPort(t, p)

	out, err := NewSerial(config.SerialConfig{Port: "/dev/ttyFAKE", BaudRate: 9600}, "\r\n")
	require.NoError(t, err)

	for _, v := range []int{0, 512, 1023} {
		require.NoError(t, out.Publish(sensor.Reading{Raw: v}))
	}
	assert.Equal(t, "0\r\n512\r\n1023\r\n", p.buf.String())

	require.NoError(t, out.Close())
	assert.True(t, p.closed)
	assert.ErrorIs(t, out.Publish(sensor.Reading{Raw: 1}), ErrClosed)
	assert.NoError(t, out.Close())
}

func TestSerialPublishShortWrites(t *testing.T) {
	p := &fakePort{chunk: 1}
	withPort(t, p)

	out, err := NewSerial(config.SerialConfig{Port: "/dev/ttyFAKE"}, "\n")
	require.NoError(t, err)
	require.NoError(t, out.Publish(sensor.Reading{Raw: 32767}))
	assert.Equal(t, "32767\n", p.buf.String())
}

func TestSerialPublishError(t *testing.T) {
	p := &fakePort{writeErr: errors.New("unplugged")}
	withPort(t, p)

	out, err := NewSerial(config.SerialConfig{Port: "/dev/ttyFAKE"}, "\n")
	require.NoError(t, err)
	assert.Error(t, out.Publish(sensor.Reading{Raw: 1}))
}

func TestNewSerialOpenError(t *testing.T) {
	prev := openPort
	openPort = func(string, *serial.Mode) (serial.Port, error) {
		return nil, errors.New("no such device")
	}
	t.Cleanup(func() { openPort = prev })

	_, err := NewSerial(config.SerialConfig{Port: "/dev/missing"}, "\n")
	assert.Error(t, err)
}

func TestPorts(t *testing.T) {
	prev := listPorts
	listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043", Product: "Arduino Uno", SerialNumber: "7563"},
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523"},
		}, nil
	}
	t.Cleanup(func() { listPorts = prev })

	ports, err := Ports()
	require.NoError(t, err)
	assert.Equal(t, []Port{
		{Name: "/dev/ttyS0", Description: "native"},
		{Name: "/dev/ttyACM0", Description: "Arduino Uno (USB 2341:0043) sn=7563"},
		{Name: "/dev/ttyUSB0", Description: "USB 1a86:7523"},
	}, ports)
}

func TestPortsError(t *testing.T) {
	prev := listPorts
	listPorts = func() ([]*enumerator.PortDetails, error) { return nil, errors.New("no sysfs") }
	t.Cleanup(func() { listPorts = prev })

	_, err := Ports()
	assert.Error(t, err)
}
