package gather

import (
	"errors"
	"testing"
)

func newTestSync(t *testing.T, total int) (*ViewStateSync, *Session, *fakeReader) {
	t.Helper()
	s, reader := openTestSession(t, total)
	return NewViewStateSync(s), s, reader
}

func TestApplyStartReturnsCanonicalShiftedValue(t *testing.T) {
	v, s, _ := newTestSync(t, 1000)
	// Default width 500; trace 800 cannot start a full window, so the
	// canonical start is the shifted 501.
	got, err := v.Apply(FieldStart, "800")
	if err != nil {
		t.Fatalf("Apply(start) failed: %v", err)
	}
	if got != "501" {
		t.Fatalf("canonical start = %q, want \"501\"", got)
	}
	if s.Window().Start != 501 {
		t.Fatalf("session start = %d, want 501", s.Window().Start)
	}
}

func TestApplyWidthReturnsCanonicalWidth(t *testing.T) {
	v, s, _ := newTestSync(t, 300)
	got, err := v.Apply(FieldWidth, "1500")
	if err != nil {
		t.Fatalf("Apply(width) failed: %v", err)
	}
	if got != "300" {
		t.Fatalf("canonical width = %q, want \"300\" (shrunk to file)", got)
	}
	if s.Window().Width() != 300 {
		t.Fatalf("session width = %d, want 300", s.Window().Width())
	}
}

func TestApplyRejectsGarbageAndKeepsState(t *testing.T) {
	v, s, reader := newTestSync(t, 1000)
	prevWin := s.Window()
	prevMin, prevMax := s.AmplitudeBounds()
	prevH1, prevH2 := s.HeaderSpecs()
	baseTrace, baseHeader := reader.traceCalls, reader.headerCalls

	bad := []struct {
		field Field
		raw   string
	}{
		{FieldStart, "12x"},
		{FieldStart, ""},
		{FieldWidth, "five hundred"},
		{FieldAmpMin, "--3"},
		{FieldAmpMax, "1e"},
		{FieldHead1Pos, "29.5"},
		{FieldHead2Pos, "0x1d"},
	}
	for _, tc := range bad {
		if _, err := v.Apply(tc.field, tc.raw); !errors.Is(err, ErrNotParseable) {
			t.Fatalf("Apply(%s, %q) error = %v, want ErrNotParseable", tc.field, tc.raw, err)
		}
	}
	if _, err := v.Apply(FieldHead1Fmt, "bogus"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("Apply(head1Fmt, bogus) error, want ErrUnknownFormat")
	}

	if s.Window() != prevWin {
		t.Fatalf("window changed by rejected input")
	}
	if min, max := s.AmplitudeBounds(); min != prevMin || max != prevMax {
		t.Fatalf("amplitude bounds changed by rejected input")
	}
	if h1, h2 := s.HeaderSpecs(); h1 != prevH1 || h2 != prevH2 {
		t.Fatalf("header specs changed by rejected input")
	}
	if reader.traceCalls != baseTrace || reader.headerCalls != baseHeader {
		t.Fatalf("rejected input caused a reload")
	}
}

func TestApplyAmplitudeBoundsPair(t *testing.T) {
	v, s, _ := newTestSync(t, 100)
	if _, err := v.Apply(FieldAmpMin, "-250.5"); err != nil {
		t.Fatalf("Apply(ampMin) failed: %v", err)
	}
	if _, err := v.Apply(FieldAmpMax, "250.5"); err != nil {
		t.Fatalf("Apply(ampMax) failed: %v", err)
	}
	min, max := s.AmplitudeBounds()
	if min != -250.5 || max != 250.5 {
		t.Fatalf("bounds = [%g, %g], want [-250.5, 250.5]", min, max)
	}
	// A minimum above the current maximum is parseable but invalid; the
	// prior bounds stay.
	if _, err := v.Apply(FieldAmpMin, "9000"); !errors.Is(err, ErrAmplitudeRange) {
		t.Fatalf("Apply(ampMin, 9000) error = %v, want ErrAmplitudeRange", err)
	}
	if min, _ := s.AmplitudeBounds(); min != -250.5 {
		t.Fatalf("min changed after rejected range: %g", min)
	}
}

func TestApplyHeaderFields(t *testing.T) {
	v, s, _ := newTestSync(t, 100)
	if got, err := v.Apply(FieldHead1Pos, "73"); err != nil || got != "73" {
		t.Fatalf("Apply(head1Pos) = %q, %v", got, err)
	}
	if got, err := v.Apply(FieldHead1Fmt, "ibm"); err != nil || got != "ibm_float" {
		t.Fatalf("Apply(head1Fmt, ibm) = %q, %v, want canonical \"ibm_float\"", got, err)
	}
	h1, _ := s.HeaderSpecs()
	if h1.BytePos != 73 || h1.Format != FormatIBMFloat {
		t.Fatalf("head1 spec = %+v", h1)
	}
	// Invalid position is rejected at spec construction, before the
	// session is touched.
	if _, err := v.Apply(FieldHead2Pos, "-1"); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("Apply(head2Pos, -1) error = %v, want ErrInvalidPosition", err)
	}
	_, h2 := s.HeaderSpecs()
	if h2.BytePos != DefaultHead2Pos {
		t.Fatalf("head2 spec changed after rejected position: %+v", h2)
	}
}

func TestApplyUnknownField(t *testing.T) {
	v, _, _ := newTestSync(t, 100)
	if _, err := v.Apply("colormap", "bwr"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("Apply(colormap) error = %v, want ErrUnknownField", err)
	}
}
