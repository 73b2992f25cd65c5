// Package textstream reads cities in the whitespace format:
//
//	<header, ignored>
//	65.6478 68.3254 Cid1000
//	...
package textstream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kayky-cas/romaria-da-vovo/internal/integrations"
	"github.com/kayky-cas/romaria-da-vovo/internal/opt"
)

const maxLine = 1 << 20

// Reader implements integrations.CitySource.
type Reader struct {
	rejected []integrations.SkippedLine
}

var _ integrations.CitySource = (*Reader)(nil)

func (r *Reader) Name() string { return "text" }

func (r *Reader) Rejected() []integrations.SkippedLine { return r.rejected }

// Read discards the first line and parses every other one as "<x> <y> <name>".
// Lines that do not parse, carry a NaN or infinite coordinate, or exceed
// maxLine bytes are skipped. Tokens after the name are ignored.
func (r *Reader) Read(in io.Reader) (opt.Cities, error) {
	r.rejected = nil
	br := bufio.NewReaderSize(in, 64*1024)

	var out opt.Cities
	line := 0
	for {
		text, tooLong, err := readLine(br)
		if err != nil && !errors.Is(err, io.EOF) {
			return out, fmt.Errorf("read cities: %w", err)
		}
		if errors.Is(err, io.EOF) && text == "" && !tooLong {
			break
		}
		line++
		switch {
		case line == 1:
		case tooLong:
			r.rejected = append(r.rejected, integrations.SkippedLine{Line: line, Reason: fmt.Sprintf("line longer than %d bytes", maxLine)})
		default:
			c, perr := ParseLine(text)
			if perr != nil {
				r.rejected = append(r.rejected, integrations.SkippedLine{Line: line, Reason: perr.Error()})
			} else {
				out = append(out, c)
			}
		}
		if err != nil {
			break
		}
	}
	return out, nil
}

// readLine returns the next line without its terminator. A line over maxLine
// is consumed but not kept, and tooLong is set.
func readLine(br *bufio.Reader) (text string, tooLong bool, err error) {
	var buf []byte
	for {
		frag, ferr := br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(frag) > maxLine+2 {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, frag...)
			}
		}
		if errors.Is(ferr, bufio.ErrBufferFull) {
			continue
		}
		text = strings.TrimSuffix(strings.TrimSuffix(string(buf), "\n"), "\r")
		if !tooLong && len(text) > maxLine {
			tooLong, text = true, ""
		}
		return text, tooLong, ferr
	}
}

// ParseLine parses one city record.
func ParseLine(s string) (opt.City, error) {
	f := strings.Fields(s)
	if len(f) < 3 {
		return opt.City{}, fmt.Errorf("want <x> <y> <name>, got %d fields", len(f))
	}
	x, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return opt.City{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return opt.City{}, fmt.Errorf("y: %w", err)
	}
	return opt.NewCity(f[2], x, y)
}

// Write renders cities in the same format, header line first.
func Write(w io.Writer, cities []opt.City) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", len(cities))
	for _, c := range cities {
		fmt.Fprintf(bw, "%s %s %s\n",
			strconv.FormatFloat(c.X, 'g', -1, 64),
			strconv.FormatFloat(c.Y, 'g', -1, 64),
			c.Name)
	}
	return bw.Flush()
}
