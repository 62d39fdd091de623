package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ericogr/fsr-serial/pkg/config"
)

// Terminator maps a configured line ending name to its bytes. "crlf" is
// what Arduino's Serial.println emits.
func Terminator(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", config.LineEndingLF:
		return "\n", nil
	case config.LineEndingCRLF:
		return "\r\n", nil
	}
	return "", fmt.Errorf("unknown line ending %q", name)
}

// FormatLine renders raw as base-10 ASCII followed by term.
func FormatLine(raw int, term string) []byte {
	b := make([]byte, 0, 12+len(term))
	b = strconv.AppendInt(b, int64(raw), 10)
	return append(b, term...)
}

// ParseLine is the inverse of FormatLine. Either terminator is accepted.
func ParseLine(line string) (int, error) {
	s := strings.TrimRight(line, "\r\n")
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse line %q: %w", line, err)
	}
	return v, nil
}
