package buildstamp

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record holds the four components of a build version.
type Record struct {
	Major uint64
	Minor uint64
	Patch uint64
	Build uint64
}

// MalformedVersionError reports version text that is not major.minor.patch[.build]
// with non-negative decimal components.
type MalformedVersionError struct {
	Text   string
	Reason string
}

func (e *MalformedVersionError) Error() string {
	return fmt.Sprintf("malformed version %q: %s", e.Text, e.Reason)
}

// ErrVersionOverflow is returned when incrementing a component would wrap
// around to zero.
var ErrVersionOverflow = errors.New("version component overflow")

// increment adds one to *c, or returns ErrVersionOverflow when *c is already the
// largest representable value.
func increment(name string, c *uint64) error {
	if *c == math.MaxUint64 {
		return fmt.Errorf("%w: %s is already %d", ErrVersionOverflow, name, *c)
	}
	*c++
	return nil
}

// Text formats the record as "major.minor.patch.build". It is derived on every
// call so it always matches the numeric fields.
func (r Record) Text() string {
	return fmt.Sprintf("%d.%d.%d.%d", r.Major, r.Minor, r.Patch, r.Build)
}

// String implements fmt.Stringer.
func (r Record) String() string {
	return r.Text()
}

// Release returns the three-component "major.minor.patch" form.
func (r Record) Release() string {
	return fmt.Sprintf("%d.%d.%d", r.Major, r.Minor, r.Patch)
}

// ParseRecord parses canonical version text. Trailing newlines are optional,
// so "1.2.3.4" loads like "1.2.3.4\n" and is saved with the newline. Three
// components are accepted (build is then 0); more than four or fewer than
// three is an error, as is any non-decimal component or a leading zero.
func ParseRecord(text string) (Record, error) {
	var r Record
	trimmed := strings.TrimRight(text, "\r\n")
	parts := strings.Split(trimmed, ".")
	if len(parts) < 3 || len(parts) > 4 {
		return r, &MalformedVersionError{Text: trimmed, Reason: fmt.Sprintf("expected 3 or 4 components, got %d", len(parts))}
	}

	fields := []*uint64{&r.Major, &r.Minor, &r.Patch, &r.Build}
	for i, p := range parts {
		if len(p) > 1 && p[0] == '0' {
			return Record{}, &MalformedVersionError{Text: trimmed, Reason: fmt.Sprintf("component %d: %q has a leading zero", i+1, p)}
		}
		n, err := parseComponent(p)
		if err != nil {
			return Record{}, &MalformedVersionError{Text: trimmed, Reason: fmt.Sprintf("component %d: %v", i+1, err)}
		}
		*fields[i] = n
	}
	return r, nil
}

// parseComponent accepts only plain decimal digits; signs and whitespace are
// rejected even though strconv would take some of them.
func parseComponent(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%q is not a decimal number", s)
		}
	}
	return strconv.ParseUint(s, 10, 64)
}
