package sensor

import (
	"fmt"
	"time"

	"github.com/ericogr/fsr-serial/pkg/config"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	pointerConv   = 0x00
	pointerConfig = 0x01
)

// ADS1115Sensor reads one single-ended input of an ADS1115 in single-shot
// mode. The FSR divider is expected on that input.
type ADS1115Sensor struct {
	dev        *i2c.Dev
	bus        i2c.BusCloser
	sampleRate int
	channel    int
	msb, lsb   byte
	configured bool
}

func NewADS1115Sensor(cfg config.Config) (Sensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2C.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	return newADS1115(bus, uint16(cfg.I2C.Address), cfg.SampleRate), nil
}

func newADS1115(bus i2c.BusCloser, addr uint16, sampleRate int) *ADS1115Sensor {
	return &ADS1115Sensor{dev: &i2c.Dev{Addr: addr, Bus: bus}, bus: bus, sampleRate: sampleRate}
}

// Configure selects the single-ended mux for channel. The chip has no
// separate pin mode; routing the input to the converter is the equivalent.
func (s *ADS1115Sensor) Configure(channel int) error {
	msb, lsb, err := s.configForChannel(channel, s.sampleRate)
	if err != nil {
		return err
	}
	s.channel, s.msb, s.lsb = channel, msb, lsb
	s.configured = true
	return nil
}

func (s *ADS1115Sensor) Close() error {
	if s.bus != nil {
		return s.bus.Close()
	}
	return nil
}

func (s *ADS1115Sensor) Read() (Reading, error) {
	if !s.configured {
		return Reading{}, fmt.Errorf("read: channel not configured")
	}
	now := time.Now()
	// writing the config with OS set starts a conversion
	if err := s.dev.Tx([]byte{pointerConfig, s.msb, s.lsb}, nil); err != nil {
		return Reading{}, fmt.Errorf("write config: %w", err)
	}
	time.Sleep(s.conversionDelay())
	readBuf := make([]byte, 2)
	if err := s.dev.Tx([]byte{pointerConv}, readBuf); err != nil {
		return Reading{}, fmt.Errorf("read conv: %w", err)
	}
	raw := int16(readBuf[0])<<8 | int16(readBuf[1])
	return Reading{Channel: s.channel, Raw: int(raw), Timestamp: now}, nil
}

// conversionDelay covers one conversion at the data rate the chip was
// actually programmed with.
func (s *ADS1115Sensor) conversionDelay() time.Duration {
	_, rate := dataRate(s.sampleRate)
	return time.Duration(int(1000.0/float64(rate))+2) * time.Millisecond
}

// dataRate returns the DR bits for sampleRate and the rate they select.
// Unsupported rates fall back to 128 SPS.
func dataRate(sampleRate int) (byte, int) {
	switch sampleRate {
	case 8:
		return 0x0, 8
	case 16:
		return 0x1, 16
	case 32:
		return 0x2, 32
	case 64:
		return 0x3, 64
	case 250:
		return 0x5, 250
	case 475:
		return 0x6, 475
	case 860:
		return 0x7, 860
	}
	return 0x4, 128
}

func (s *ADS1115Sensor) configForChannel(channel, sampleRate int) (byte, byte, error) {
	var mux byte
	switch channel {
	case 0:
		mux = 0x4
	case 1:
		mux = 0x5
	case 2:
		mux = 0x6
	case 3:
		mux = 0x7
	default:
		return 0, 0, fmt.Errorf("invalid channel %d", channel)
	}
	// PGA: use ±4.096V -> bits 001
	pga := byte(0x1)
	dr, _ := dataRate(sampleRate)
	var config uint16 = 0x8000 // OS = 1 (start single conversion)
	config |= uint16(mux) << 12
	config |= uint16(pga) << 9
	config |= 1 << 8 // single-shot mode
	config |= uint16(dr) << 5
	// comparator disabled
	config |= 0x3
	return byte(config >> 8), byte(config & 0xFF), nil
}
