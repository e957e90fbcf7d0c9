// Package rut validates and formats Chilean RUT numbers (Rol Único Tributario).
package rut

import (
	"errors"
	"strconv"
	"strings"
)

var ErrMalformed = errors.New("rut must be digits followed by a check digit")

// Clean strips dots, dashes and spaces and upper-cases a trailing k.
func Clean(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'k' || r == 'K':
			b.WriteRune('K')
		}
	}
	return b.String()
}

// Split separates a RUT into its body and check digit.
func Split(raw string) (body string, dv byte, err error) {
	c := Clean(raw)
	if len(c) < 2 || len(c) > 9 {
		return "", 0, ErrMalformed
	}
	body, dv = c[:len(c)-1], c[len(c)-1]
	if strings.ContainsRune(body, 'K') {
		return "", 0, ErrMalformed
	}
	return body, dv, nil
}

// CheckDigit computes the modulo-11 verifier for a numeric body.
func CheckDigit(body string) (byte, error) {
	if body == "" {
		return 0, ErrMalformed
	}
	sum, factor := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		d := body[i]
		if d < '0' || d > '9' {
			return 0, ErrMalformed
		}
		sum += int(d-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	switch r := 11 - sum%11; r {
	case 11:
		return '0', nil
	case 10:
		return 'K', nil
	default:
		return byte('0' + r), nil
	}
}

// Validate reports whether raw is a well-formed RUT with a matching check digit.
func Validate(raw string) bool {
	body, dv, err := Split(raw)
	if err != nil {
		return false
	}
	want, err := CheckDigit(body)
	return err == nil && want == dv
}

// Format renders a RUT as 12.345.678-5 without checking the verifier.
// Malformed input is returned unchanged.
func Format(raw string) string {
	body, dv, err := Split(raw)
	if err != nil {
		return raw
	}
	n, err := strconv.Atoi(body)
	if err != nil {
		return raw
	}
	digits := strconv.Itoa(n)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte('-')
	b.WriteByte(dv)
	return b.String()
}
