// Package sampler runs the fixed-rate read and transmit loop.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ericogr/fsr-serial/pkg/output"
	"github.com/ericogr/fsr-serial/pkg/sensor"
)

// DefaultInterval is the pause between readings.
const DefaultInterval = 500 * time.Millisecond

type Options struct {
	Channel int
	// Interval is the pause after each reading is transmitted. Zero means
	// no pause.
	Interval time.Duration
	// MaxIterations stops Run after that many iterations. Zero runs until
	// the context is cancelled.
	MaxIterations int
}

// Stats counts what the loop did so far.
type Stats struct {
	Iterations  int
	Emitted     int
	ReadErrors  int
	WriteErrors int
}

type Sampler struct {
	sensor  sensor.Sensor
	outputs []output.Output
	opts    Options

	mu    sync.Mutex
	stats Stats
	ready bool
}

func New(s sensor.Sensor, outputs []output.Output, opts Options) *Sampler {
	return &Sampler{sensor: s, outputs: outputs, opts: opts}
}

// Setup configures the sensor input. It must run once before Run.
func (s *Sampler) Setup() error {
	if err := s.sensor.Configure(s.opts.Channel); err != nil {
		return fmt.Errorf("configure channel %d: %w", s.opts.Channel, err)
	}
	s.ready = true
	return nil
}

// Run reads, transmits and waits until ctx is done, MaxIterations is
// reached or a replay sensor runs out of values. Readings reach every
// output in the order they were taken.
func (s *Sampler) Run(ctx context.Context) error {
	if !s.ready {
		return errors.New("sampler: Setup not called")
	}
	for n := 0; s.opts.MaxIterations == 0 || n < s.opts.MaxIterations; n++ {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.step(); err != nil {
			if errors.Is(err, sensor.ErrExhausted) {
				log.Printf("sampler: sensor exhausted after %d readings", n)
				return nil
			}
			log.Printf("sampler: %v", err)
		}
		if s.opts.MaxIterations != 0 && n+1 == s.opts.MaxIterations {
			break
		}
		if !sleep(ctx, s.opts.Interval) {
			return nil
		}
	}
	return nil
}

// step performs one iteration. The reading is local to it.
func (s *Sampler) step() error {
	r, err := s.sensor.Read()
	if err != nil {
		if errors.Is(err, sensor.ErrExhausted) {
			return err
		}
		s.count(func(st *Stats) { st.Iterations++; st.ReadErrors++ })
		return fmt.Errorf("read: %w", err)
	}
	var errs []error
	for _, o := range s.outputs {
		if err := o.Publish(r); err != nil {
			errs = append(errs, err)
		}
	}
	s.count(func(st *Stats) {
		st.Iterations++
		st.Emitted++
		st.WriteErrors += len(errs)
	})
	if len(errs) > 0 {
		return fmt.Errorf("publish: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Sampler) count(f func(*Stats)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}

func (s *Sampler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
