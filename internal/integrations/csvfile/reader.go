// Package csvfile reads cities from CSV records "x,y,name".
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kayky-cas/romaria-da-vovo/internal/integrations"
	"github.com/kayky-cas/romaria-da-vovo/internal/opt"
)

// Reader implements integrations.CitySource. With Header set the first record
// is dropped unconditionally, like the text format's header line.
type Reader struct {
	Header   bool
	rejected []integrations.SkippedLine
}

var _ integrations.CitySource = (*Reader)(nil)

func (r *Reader) Name() string { return "csv" }

func (r *Reader) Rejected() []integrations.SkippedLine { return r.rejected }

func (r *Reader) Read(in io.Reader) (opt.Cities, error) {
	r.rejected = nil
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out opt.Cities
	rec := 0
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rec++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				r.rejected = append(r.rejected, integrations.SkippedLine{Line: pe.Line, Reason: pe.Err.Error()})
				continue
			}
			return out, fmt.Errorf("read csv: %w", err)
		}
		if rec == 1 && r.Header {
			continue
		}
		line, _ := cr.FieldPos(0)
		c, err := parseRecord(fields)
		if err != nil {
			r.rejected = append(r.rejected, integrations.SkippedLine{Line: line, Reason: err.Error()})
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func parseRecord(f []string) (opt.City, error) {
	if len(f) < 3 || strings.TrimSpace(f[2]) == "" {
		return opt.City{}, fmt.Errorf("want x,y,name, got %d fields", len(f))
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(f[0]), 64)
	if err != nil {
		return opt.City{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(f[1]), 64)
	if err != nil {
		return opt.City{}, fmt.Errorf("y: %w", err)
	}
	return opt.NewCity(strings.TrimSpace(f[2]), x, y)
}
