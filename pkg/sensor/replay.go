package sensor

import (
	"fmt"
	"sync"
	"time"
)

// ReplaySensor returns a fixed sequence of raw values, one per Read. Values
// are passed through as given, including negative or out-of-range ones, so
// it can stand in for a faulty converter.
type ReplaySensor struct {
	mu         sync.Mutex
	values     []int
	loop       bool
	pos        int
	channel    int
	configured bool
}

func NewReplaySensor(values []int, loop bool) Sensor {
	v := make([]int, len(values))
	copy(v, values)
	return &ReplaySensor{values: v, loop: loop}
}

func (r *ReplaySensor) Configure(channel int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channel = channel
	r.configured = true
	return nil
}

// Read returns ErrExhausted once every value was returned, unless the
// sensor loops.
func (r *ReplaySensor) Read() (Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.configured {
		return Reading{}, fmt.Errorf("read: channel not configured")
	}
	if r.pos >= len(r.values) {
		if !r.loop || len(r.values) == 0 {
			return Reading{}, ErrExhausted
		}
		r.pos = 0
	}
	raw := r.values[r.pos]
	r.pos++
	return Reading{Channel: r.channel, Raw: raw, Timestamp: time.Now()}, nil
}

func (r *ReplaySensor) Close() error { return nil }
