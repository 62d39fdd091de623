package console

import (
	"io"
	"os"

	"github.com/ericogr/fsr-serial/pkg/output"
	"github.com/ericogr/fsr-serial/pkg/sensor"
)

// ConsoleOutput mirrors the serial stream on stdout.
type ConsoleOutput struct {
	w    io.Writer
	term string
}

func NewConsole(term string) output.Output {
	return &ConsoleOutput{w: os.Stdout, term: term}
}

func (c *ConsoleOutput) Publish(r sensor.Reading) error {
	w := c.w
	if w == nil {
		w = os.Stdout
	}
	_, err := w.Write(output.FormatLine(r.Raw, c.term))
	return err
}

func (c *ConsoleOutput) Close() error { return nil }
