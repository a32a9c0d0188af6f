package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout of the fixed-width sunrise/sunset tables.
const (
	astroHeaderLines = 9
	astroFirstCell   = 4
	astroCellStride  = 11
	astroCellWidth   = 9
)

var astroYearRe = regexp.MustCompile(`\bfor (\d{4})\b`)

type astroLine struct {
	number int
	day    int
	text   string
}

// ParseAstronomicalTable parses one year of sunrise/sunset times. Times are
// read in loc and stored as UTC.
//
// A structurally unusable table (too short, no day lines, no year) returns an
// error wrapping ErrSourceUnavailable. Bad cells are returned as malformed
// record errors and skipped; empty cells for days a month does not have are
// ignored.
func ParseAstronomicalTable(src AstroSource, loc *time.Location) ([]AstronomicalRecord, []*RecordError, error) {
	if loc == nil {
		loc = time.UTC
	}
	if len(src.Lines) <= astroHeaderLines {
		return nil, nil, fmt.Errorf("%w: astronomical table %s: %d lines, want more than %d",
			ErrSourceUnavailable, src.Name, len(src.Lines), astroHeaderLines)
	}

	year := src.Year
	if year == 0 {
		y, err := astroYear(src.Lines[:astroHeaderLines])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: astronomical table %s: %w", ErrSourceUnavailable, src.Name, err)
		}
		year = y
	}

	var (
		days []astroLine
		errs []*RecordError
	)
	for i, line := range src.Lines[astroHeaderLines:] {
		n := astroHeaderLines + i + 1
		if len(line) < 2 || !isDigit(line[0]) || !isDigit(line[1]) {
			continue
		}
		d, _ := strconv.Atoi(line[:2])
		if d < 1 || d > 31 {
			errs = append(errs, malformed(FamilyAstronomical, src.Name, n, fmt.Errorf("day %02d out of range", d)))
			continue
		}
		days = append(days, astroLine{number: n, day: d, text: line})
	}
	if len(days) == 0 {
		return nil, errs, fmt.Errorf("%w: astronomical table %s: no day lines", ErrSourceUnavailable, src.Name)
	}

	var out []AstronomicalRecord
	for m := range 12 {
		off := astroFirstCell + astroCellStride*m
		for _, dl := range days {
			cell := fixedCell(dl.text, off, astroCellWidth)
			if strings.TrimSpace(cell) == "" {
				continue
			}
			day := Day{Year: year, Month: time.Month(m + 1), Day: dl.day}
			rec, err := parseAstroCell(day, cell, loc)
			if err != nil {
				errs = append(errs, malformed(FamilyAstronomical, src.Name, dl.number, err))
				continue
			}
			out = append(out, rec)
		}
	}
	return out, errs, nil
}

func astroYear(header []string) (int, error) {
	for _, line := range header {
		if m := astroYearRe.FindStringSubmatch(line); m != nil {
			return strconv.Atoi(m[1])
		}
	}
	return 0, errors.New("no year in header")
}

func parseAstroCell(day Day, cell string, loc *time.Location) (AstronomicalRecord, error) {
	if !day.Valid() {
		return AstronomicalRecord{}, fmt.Errorf("%s: data for a day that does not exist", day)
	}
	riseRaw, setRaw := strings.TrimSpace(cell[:4]), strings.TrimSpace(cell[5:])
	if riseRaw == "" || setRaw == "" {
		return AstronomicalRecord{}, fmt.Errorf("%s: half-filled cell %q", day, cell)
	}
	rh, rm, err := parseHHMM(riseRaw)
	if err != nil {
		return AstronomicalRecord{}, fmt.Errorf("%s sunrise: %w", day, err)
	}
	sh, sm, err := parseHHMM(setRaw)
	if err != nil {
		return AstronomicalRecord{}, fmt.Errorf("%s sunset: %w", day, err)
	}
	return AstronomicalRecord{
		Date:    day,
		Sunrise: day.At(rh, rm, loc).UTC(),
		Sunset:  day.At(sh, sm, loc).UTC(),
	}, nil
}

// parseHHMM parses a four-digit 24-hour clock time such as "0713".
func parseHHMM(s string) (hour, minute int, err error) {
	if len(s) != 4 {
		return 0, 0, fmt.Errorf("time %q: want HHMM", s)
	}
	for i := range 4 {
		if !isDigit(s[i]) {
			return 0, 0, fmt.Errorf("time %q: want HHMM", s)
		}
	}
	hour, _ = strconv.Atoi(s[:2])
	minute, _ = strconv.Atoi(s[2:])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q: out of range", s)
	}
	return hour, minute, nil
}

// fixedCell returns line[off:off+width], space-padded when line is short.
func fixedCell(line string, off, width int) string {
	if off >= len(line) {
		return strings.Repeat(" ", width)
	}
	end := off + width
	if end > len(line) {
		return line[off:] + strings.Repeat(" ", end-len(line))
	}
	return line[off:end]
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
