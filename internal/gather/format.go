package gather

import (
	"errors"
	"fmt"
)

// FormatCode identifies how a trace header field is encoded.
type FormatCode string

const (
	FormatLong     FormatCode = "long"      // 4-byte signed integer
	FormatFloat    FormatCode = "float"     // 4-byte IEEE float
	FormatIBMFloat FormatCode = "ibm_float" // 4-byte IBM floating point
	FormatShort    FormatCode = "short"     // 2-byte signed integer
	FormatString   FormatCode = "string"    // 1-byte character
)

var (
	ErrUnknownFormat   = errors.New("unknown header format code")
	ErrInvalidPosition = errors.New("header byte position must be >= 1")
)

// HeaderFieldSpec describes one trace header field: a 1-based byte position
// within the 240-byte trace header and the format code used to decode it.
// Specs are immutable values; edits construct a replacement.
type HeaderFieldSpec struct {
	BytePos int
	Format  FormatCode
}

// NewHeaderFieldSpec validates the position and format code.
func NewHeaderFieldSpec(bytePos int, code FormatCode) (HeaderFieldSpec, error) {
	if bytePos < 1 {
		return HeaderFieldSpec{}, fmt.Errorf("%w: got %d", ErrInvalidPosition, bytePos)
	}
	switch code {
	case FormatLong, FormatFloat, FormatIBMFloat, FormatShort, FormatString:
	default:
		return HeaderFieldSpec{}, fmt.Errorf("%w: %q", ErrUnknownFormat, code)
	}
	return HeaderFieldSpec{BytePos: bytePos, Format: code}, nil
}

// ByteWidth is derived from the format code and never stored separately.
func (s HeaderFieldSpec) ByteWidth() int {
	switch s.Format {
	case FormatLong, FormatFloat, FormatIBMFloat:
		return 4
	case FormatShort:
		return 2
	case FormatString:
		return 1
	}
	return 0
}

// ParseFormatCode converts user text to a FormatCode. The single-letter
// aliases match the struct-style codes accepted by other SEG-Y tools.
func ParseFormatCode(text string) (FormatCode, error) {
	switch text {
	case "long", "l":
		return FormatLong, nil
	case "float", "f":
		return FormatFloat, nil
	case "ibm_float", "ibm":
		return FormatIBMFloat, nil
	case "short", "h":
		return FormatShort, nil
	case "string", "s":
		return FormatString, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, text)
}
