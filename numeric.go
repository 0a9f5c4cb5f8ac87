// FILE: numeric.go
// Package main – Fast number and timestamp conversion (spec §4.E).
//
// ParseInt64/ParseFloat64 parse a pure decimal lexeme with an optional
// leading '-' and at most one '.'. ParseFloat64 uses fastfloat.ParseBestEffort
// for the digit scan (grounded on NimbleMarkets-dbn-go's use of fastfloat)
// and ParseInt64 uses strconv.ParseInt. BestEffort accepts trailing garbage
// and does not report errors — spec §4.E instead requires hard rejection, so
// every lexeme is validated against the fixed grammar before it is parsed.
//
// ParseUTCNanos parses exactly "YYYY-MM-DDTHH:MM:SS[.frac]Z" into
// nanoseconds-since-midnight of that day, rejecting any other layout.
package main

import (
	"fmt"
	"math"
	"strconv"

	"github.com/valyala/fastjson/fastfloat"
)

// validateDecimalLexeme checks the pure-decimal grammar: optional leading
// '-', digits, at most one '.', no other characters.
func validateDecimalLexeme(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty lexeme", ErrNumberFormat)
	}
	i := 0
	if s[0] == '-' {
		i++
	}
	if i >= len(s) {
		return fmt.Errorf("%w: %q", ErrNumberFormat, s)
	}
	seenDigit := false
	seenDot := false
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case c == '.' && !seenDot:
			seenDot = true
		default:
			return fmt.Errorf("%w: %q", ErrNumberFormat, s)
		}
	}
	if !seenDigit {
		return fmt.Errorf("%w: %q", ErrNumberFormat, s)
	}
	return nil
}

// ParseInt64 parses a pure decimal integer lexeme.
func ParseInt64(s string) (int64, error) {
	if err := validateDecimalLexeme(s); err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNumberOverflow, s)
	}
	return v, nil
}

// ParseFloat64 parses a pure decimal float lexeme (at most one '.').
func ParseFloat64(s string) (float64, error) {
	if err := validateDecimalLexeme(s); err != nil {
		return 0, err
	}
	v := fastfloat.ParseBestEffort(s)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNumberOverflow, s)
	}
	return v, nil
}

const nsPerSecond = int64(1_000_000_000)

// ParseUTCNanos parses "YYYY-MM-DDTHH:MM:SS[.frac]Z" and returns
// nanoseconds-since-midnight of that day. Any deviation from the grammar
// fails with ErrMalformedJSON-adjacent ErrNumberFormat (the layout is a
// fixed timestamp grammar, not general ISO-8601).
func ParseUTCNanos(s string) (int64, error) {
	// Fixed positions: YYYY-MM-DDTHH:MM:SS then optional .fffffffff then Z.
	if len(s) < len("2006-01-02T15:04:05Z") {
		return 0, fmt.Errorf("%w: timestamp too short %q", ErrNumberFormat, s)
	}
	if s[4] != '-' || s[7] != '-' || s[10] != 'T' || s[13] != ':' || s[16] != ':' {
		return 0, fmt.Errorf("%w: bad timestamp layout %q", ErrNumberFormat, s)
	}
	if s[len(s)-1] != 'Z' {
		return 0, fmt.Errorf("%w: timestamp missing Z %q", ErrNumberFormat, s)
	}
	digits := func(sub string) (int64, error) {
		for _, c := range sub {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("%w: non-digit in %q", ErrNumberFormat, s)
			}
		}
		return strconv.ParseInt(sub, 10, 64)
	}
	for _, date := range []string{s[0:4], s[5:7], s[8:10]} {
		if _, err := digits(date); err != nil {
			return 0, err
		}
	}
	hh, err := digits(s[11:13])
	if err != nil {
		return 0, err
	}
	mm, err := digits(s[14:16])
	if err != nil {
		return 0, err
	}
	ss, err := digits(s[17:19])
	if err != nil {
		return 0, err
	}
	if hh > 23 || mm > 59 || ss > 60 {
		return 0, fmt.Errorf("%w: out-of-range clock fields %q", ErrNumberFormat, s)
	}
	ns := (hh*3600 + mm*60 + ss) * nsPerSecond
	rest := s[19 : len(s)-1] // between seconds and 'Z'
	if rest != "" {
		if rest[0] != '.' {
			return 0, fmt.Errorf("%w: expected '.' before fraction %q", ErrNumberFormat, s)
		}
		frac := rest[1:]
		if frac == "" || len(frac) > 9 {
			return 0, fmt.Errorf("%w: bad fractional seconds %q", ErrNumberFormat, s)
		}
		fv, err := digits(frac)
		if err != nil {
			return 0, err
		}
		for i := len(frac); i < 9; i++ {
			fv *= 10
		}
		ns += fv
	}
	return ns, nil
}
