package gather

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field names the session parameters that accept text input.
type Field string

const (
	FieldStart  Field = "start"
	FieldWidth  Field = "width"
	FieldAmpMin Field = "ampMin"
	FieldAmpMax Field = "ampMax"

	FieldHead1Pos Field = "head1Pos"
	FieldHead1Fmt Field = "head1Fmt"
	FieldHead2Pos Field = "head2Pos"
	FieldHead2Fmt Field = "head2Fmt"
)

var (
	ErrNotParseable = errors.New("input not parseable")
	ErrUnknownField = errors.New("unknown input field")
)

// ViewStateSync is the parse-then-apply boundary between raw text input and
// the typed session configuration. Malformed text is rejected before any
// session state changes; successful applies return the canonical value the
// session actually adopted, which may differ from the request (a shifted
// window start, for example). Display widgets must echo the canonical value,
// not the raw input.
type ViewStateSync struct {
	session *Session
}

func NewViewStateSync(s *Session) *ViewStateSync {
	return &ViewStateSync{session: s}
}

// Apply parses raw per the field's type, forwards the value to the session,
// and returns the canonical post-resolution value as text. On any error the
// session's prior state is retained unchanged.
func (v *ViewStateSync) Apply(field Field, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch field {
	case FieldStart:
		n, err := parseInt(raw)
		if err != nil {
			return "", err
		}
		win, err := v.session.SetWindow(n, v.session.RequestedWidth())
		if err != nil {
			return "", err
		}
		return strconv.Itoa(win.Start), nil

	case FieldWidth:
		n, err := parseInt(raw)
		if err != nil {
			return "", err
		}
		win, err := v.session.SetWindow(v.session.Window().Start, n)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(win.Width()), nil

	case FieldAmpMin, FieldAmpMax:
		f, err := parseFloat(raw)
		if err != nil {
			return "", err
		}
		min, max := v.session.AmplitudeBounds()
		if field == FieldAmpMin {
			min = f
		} else {
			max = f
		}
		if err := v.session.SetAmplitudeBounds(min, max); err != nil {
			return "", err
		}
		return formatFloat(f), nil

	case FieldHead1Pos, FieldHead2Pos:
		n, err := parseInt(raw)
		if err != nil {
			return "", err
		}
		head1, head2 := v.session.HeaderSpecs()
		if field == FieldHead1Pos {
			spec, err := NewHeaderFieldSpec(n, head1.Format)
			if err != nil {
				return "", err
			}
			head1 = spec
		} else {
			spec, err := NewHeaderFieldSpec(n, head2.Format)
			if err != nil {
				return "", err
			}
			head2 = spec
		}
		if err := v.session.SetHeaderSpecs(head1, head2); err != nil {
			return "", err
		}
		return strconv.Itoa(n), nil

	case FieldHead1Fmt, FieldHead2Fmt:
		code, err := ParseFormatCode(raw)
		if err != nil {
			return "", err
		}
		head1, head2 := v.session.HeaderSpecs()
		if field == FieldHead1Fmt {
			spec, err := NewHeaderFieldSpec(head1.BytePos, code)
			if err != nil {
				return "", err
			}
			head1 = spec
		} else {
			spec, err := NewHeaderFieldSpec(head2.BytePos, code)
			if err != nil {
				return "", err
			}
			head2 = spec
		}
		if err := v.session.SetHeaderSpecs(head1, head2); err != nil {
			return "", err
		}
		return string(code), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
}

func parseInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q as integer", ErrNotParseable, raw)
	}
	return n, nil
}

func parseFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q as number", ErrNotParseable, raw)
	}
	return f, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
