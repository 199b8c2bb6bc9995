// Package rut validates and formats Chilean RUT numbers (Rol Único
// Tributario) using the Módulo 11 check digit.
package rut

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEmpty    = errors.New("rut: empty value")
	ErrFormat   = errors.New("rut: expected 8 or 9 digits followed by a check digit (0-9 or K)")
	ErrChecksum = errors.New("rut: check digit does not match")

	reRUT     = regexp.MustCompile(`^([0-9]{8,9})([0-9K])$`)
	separator = strings.NewReplacer(".", "", "-", "", " ", "", "\t", "")
)

// RUT is a validated tax id.
type RUT struct {
	Body  string
	Check byte
}

// Normalize strips separators and uppercases the check digit.
func Normalize(s string) string {
	return strings.ToUpper(separator.Replace(strings.TrimSpace(s)))
}

// CheckDigit computes the Módulo 11 check character for a numeric body.
func CheckDigit(body string) (byte, error) {
	if body == "" {
		return 0, ErrEmpty
	}
	sum, weight := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		c := body[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("rut: non-digit %q in body", c)
		}
		sum += int(c-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	switch r := sum % 11; r {
	case 0:
		return '0', nil
	case 1:
		return 'K', nil
	default:
		return byte('0' + 11 - r), nil
	}
}

// Parse normalizes and validates s.
func Parse(s string) (RUT, error) {
	n := Normalize(s)
	if n == "" {
		return RUT{}, ErrEmpty
	}
	m := reRUT.FindStringSubmatch(n)
	if m == nil {
		return RUT{}, fmt.Errorf("%w: got %q", ErrFormat, s)
	}
	want, err := CheckDigit(m[1])
	if err != nil {
		return RUT{}, err
	}
	if m[2][0] != want {
		return RUT{}, fmt.Errorf("%w: %s-%s", ErrChecksum, m[1], m[2])
	}
	return RUT{Body: m[1], Check: want}, nil
}

// Valid reports whether s is a well-formed RUT with a correct check digit.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Format parses s and returns its canonical display form.
func Format(s string) (string, error) {
	r, err := Parse(s)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

// String renders the body grouped by thousands with dots and the check digit
// after a dash, e.g. 76.086.428-5.
func (r RUT) String() string {
	body := strings.TrimLeft(r.Body, "0")
	if body == "" {
		body = "0"
	}
	var b strings.Builder
	lead := len(body) % 3
	if lead > 0 {
		b.WriteString(body[:lead])
	}
	for i := lead; i < len(body); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(body[i : i+3])
	}
	b.WriteByte('-')
	b.WriteByte(r.Check)
	return b.String()
}

// Compact returns the form without thousands separators, e.g. 76086428-5.
func (r RUT) Compact() string {
	return r.Body + "-" + string(r.Check)
}
