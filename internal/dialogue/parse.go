package dialogue

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	errNotFinite  = errors.New("value is not a finite number")
	errNotDecimal = errors.New("hexadecimal notation is not accepted")
)

// ParseError reports user input that is not a decimal number.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse number %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reason is the underlying parse failure shown back to the user.
func (e *ParseError) Reason() string {
	return e.Err.Error()
}

// ParseDecimal parses user text as a float64. A comma is accepted in place of
// the decimal point.
func ParseDecimal(text string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	if strings.ContainsAny(s, "xX") {
		return 0, &ParseError{Input: text, Err: errNotDecimal}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ParseError{Input: text, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseError{Input: text, Err: errNotFinite}
	}
	return v, nil
}
