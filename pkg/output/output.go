package output

import "github.com/ericogr/fsr-serial/pkg/sensor"

// Output transmits readings. Publish blocks until the reading is handed to
// the transport.
type Output interface {
	Publish(sensor.Reading) error
	Close() error
}

// helper constructors are in subpackages
