package sensor

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// simulatedMax is the full scale of a 10-bit converter.
const simulatedMax = 1023

// FakeSensor produces random readings in the 10-bit ADC range.
type FakeSensor struct {
	mu         sync.Mutex
	channel    int
	configured bool
}

func NewFakeSensor() Sensor {
	return &FakeSensor{}
}

func (f *FakeSensor) Configure(channel int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel = channel
	f.configured = true
	return nil
}

func (f *FakeSensor) Read() (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.configured {
		return Reading{}, fmt.Errorf("read: channel not configured")
	}
	raw := rand.Intn(simulatedMax + 1)
	return Reading{Channel: f.channel, Raw: raw, Timestamp: time.Now()}, nil
}

func (f *FakeSensor) Close() error { return nil }
