// Package integrations defines the sources cities are read from.
package integrations

import (
	"io"

	"github.com/kayky-cas/romaria-da-vovo/internal/opt"
)

// CitySource reads a city set from a stream. Malformed records are skipped,
// never fatal; Rejected lists what the last Read dropped. Read only fails on
// I/O errors.
type CitySource interface {
	Name() string
	Read(r io.Reader) (opt.Cities, error)
	Rejected() []SkippedLine
}

// SkippedLine describes a record a source dropped.
type SkippedLine struct {
	Line   int
	Reason string
}
