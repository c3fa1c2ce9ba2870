package spectrum

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrBadRecord is returned for unparsable lines in a text spectrum
var ErrBadRecord = errors.New("spectrum: invalid record")

// ReadCSV reads a two column "mass,current" text export. Separators may
// be comma, semicolon or tab; with semicolon or tab separators a decimal
// comma is accepted. Lines that start with '#' and a leading header line
// are skipped. Fractional masses are rounded to the nearest integer
// channel and summed.
func ReadCSV(r io.Reader) (Spectrum, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffSeparator(data)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	channels := make(map[int]float64)
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		fields := splitFields(rec)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrBadRecord, line, len(fields))
		}
		mz, err1 := strconv.ParseFloat(decimalPoint(fields[0]), 64)
		cur, err2 := strconv.ParseFloat(decimalPoint(fields[1]), 64)
		if err1 != nil || err2 != nil {
			if line == 1 {
				// header
				continue
			}
			return nil, fmt.Errorf("%w: line %d: %q", ErrBadRecord, line, strings.Join(fields, " "))
		}
		channels[int(math.Round(mz))] += cur
	}
	return FromMap(channels), nil
}

// sniffSeparator picks the field separator from the first data line
func sniffSeparator(data []byte) rune {
	for _, l := range bytes.Split(data, []byte("\n")) {
		l = bytes.TrimSpace(l)
		if len(l) == 0 || l[0] == '#' {
			continue
		}
		switch {
		case bytes.ContainsRune(l, ';'):
			return ';'
		case bytes.ContainsRune(l, '\t'):
			return '\t'
		}
		return ','
	}
	return ','
}

// splitFields handles lines that use another separator than the sniffed one
func splitFields(rec []string) []string {
	if len(rec) >= 2 {
		return rec
	}
	if len(rec) == 0 {
		return nil
	}
	return strings.FieldsFunc(rec[0], func(r rune) bool {
		return r == ';' || r == '\t' || r == ' '
	})
}

func decimalPoint(s string) string {
	return strings.Replace(strings.TrimSpace(s), ",", ".", 1)
}
