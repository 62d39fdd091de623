package sensor

import (
	"errors"
	"time"
)

// ErrExhausted is returned by sensors that replay a finite sequence.
var ErrExhausted = errors.New("sensor: no more values")

// Reading is one raw ADC sample. Raw is whatever the converter produced;
// it is never clamped or scaled.
type Reading struct {
	Channel   int       `json:"channel"`
	Raw       int       `json:"raw"`
	Timestamp time.Time `json:"timestamp"`
}

type Sensor interface {
	// Configure selects channel as the input to sample. It must be called
	// once before Read.
	Configure(channel int) error
	Read() (Reading, error)
	Close() error
}
