package gather

import (
	"errors"
	"testing"
)

// fakeReader serves deterministic values: trace i sample j = i*1000+j,
// header value for trace i = bytePos*100000 + i, so buffers are traceable
// to the window and spec that produced them.
type fakeReader struct {
	total       int
	bhead       BinaryHeader
	traceCalls  int
	headerCalls int
	failNext    error
}

func (f *fakeReader) TotalTraces() int          { return f.total }
func (f *fakeReader) BinaryHeader() BinaryHeader { return f.bhead }
func (f *fakeReader) TextHeader() []string      { return []string{"C 1 FAKE"} }

func (f *fakeReader) ReadTraces(t0, t1 int) ([][]float32, error) {
	f.traceCalls++
	if f.failNext != nil {
		return nil, f.failNext
	}
	out := make([][]float32, 0, t1-t0)
	for i := t0; i < t1; i++ {
		out = append(out, []float32{float32(i * 1000), float32(i*1000 + 1)})
	}
	return out, nil
}

func (f *fakeReader) ReadHeaderField(t0, t1 int, spec HeaderFieldSpec) ([]float64, error) {
	f.headerCalls++
	if f.failNext != nil {
		return nil, f.failNext
	}
	out := make([]float64, 0, t1-t0)
	for i := t0; i < t1; i++ {
		out = append(out, float64(spec.BytePos*100000+i))
	}
	return out, nil
}

func defaultSpecs(t *testing.T) (HeaderFieldSpec, HeaderFieldSpec) {
	t.Helper()
	h1, err := NewHeaderFieldSpec(DefaultHead1Pos, FormatShort)
	if err != nil {
		t.Fatalf("head1 spec: %v", err)
	}
	h2, err := NewHeaderFieldSpec(DefaultHead2Pos, FormatLong)
	if err != nil {
		t.Fatalf("head2 spec: %v", err)
	}
	return h1, h2
}

func openTestSession(t *testing.T, total int) (*Session, *fakeReader) {
	t.Helper()
	reader := &fakeReader{total: total, bhead: BinaryHeader{NumSamples: 2, SampleInterval: 4000}}
	h1, h2 := defaultSpecs(t)
	s, err := OpenSession(reader, h1, h2)
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	return s, reader
}

func TestOpenSessionDefaults(t *testing.T) {
	s, _ := openTestSession(t, 1200)
	win := s.Window()
	if win.Start != 1 || win.T0 != 0 || win.T1 != DefaultWindowWidth {
		t.Fatalf("initial window = %+v, want start 1 width %d", win, DefaultWindowWidth)
	}
	min, max := s.AmplitudeBounds()
	if min != DefaultAmpMin || max != DefaultAmpMax {
		t.Fatalf("amplitude bounds = [%g, %g], want [%d, %d]", min, max, DefaultAmpMin, DefaultAmpMax)
	}
	if got := len(s.Traces()); got != DefaultWindowWidth {
		t.Fatalf("trace buffer rows = %d, want %d", got, DefaultWindowWidth)
	}
	h1, h2 := s.HeaderValues()
	if len(h1) != DefaultWindowWidth || len(h2) != DefaultWindowWidth {
		t.Fatalf("header buffers = %d/%d values, want %d", len(h1), len(h2), DefaultWindowWidth)
	}
}

func TestOpenSessionSmallFile(t *testing.T) {
	s, _ := openTestSession(t, 30)
	win := s.Window()
	if win.T0 != 0 || win.T1 != 30 {
		t.Fatalf("window = %+v, want whole 30-trace file", win)
	}
}

func TestOpenSessionEmptyFile(t *testing.T) {
	s, reader := openTestSession(t, 0)
	win := s.Window()
	if win.T0 != 0 || win.T1 != 0 {
		t.Fatalf("window = %+v, want empty", win)
	}
	if len(s.Traces()) != 0 {
		t.Fatalf("trace buffer not empty: %d rows", len(s.Traces()))
	}
	if reader.traceCalls != 0 || reader.headerCalls != 0 {
		t.Fatalf("reader called for empty window: %d trace, %d header calls", reader.traceCalls, reader.headerCalls)
	}
}

func TestSetWindowShiftAtTail(t *testing.T) {
	s, _ := openTestSession(t, 1000)
	win, err := s.SetWindow(800, 500)
	if err != nil {
		t.Fatalf("SetWindow failed: %v", err)
	}
	if win.Start != 501 || win.T0 != 500 || win.T1 != 1000 {
		t.Fatalf("window = %+v, want start 501 covering [500, 1000)", win)
	}
	traces := s.Traces()
	if len(traces) != 500 {
		t.Fatalf("trace buffer rows = %d, want 500", len(traces))
	}
	// First row must belong to trace 500, not the requested 799.
	if traces[0][0] != 500*1000 {
		t.Fatalf("first row sample = %g, want %d", traces[0][0], 500*1000)
	}
	h1, _ := s.HeaderValues()
	if h1[0] != float64(DefaultHead1Pos*100000+500) {
		t.Fatalf("first head1 value = %g, want trace 500", h1[0])
	}
}

func TestSetWindowIdempotent(t *testing.T) {
	s, reader := openTestSession(t, 1000)
	base := reader.traceCalls
	if _, err := s.SetWindow(100, 200); err != nil {
		t.Fatalf("SetWindow failed: %v", err)
	}
	if _, err := s.SetWindow(100, 200); err != nil {
		t.Fatalf("second SetWindow failed: %v", err)
	}
	if got := reader.traceCalls - base; got != 1 {
		t.Fatalf("reloads = %d, want exactly 1 for identical resolved windows", got)
	}
	// Different request resolving to the same window is also a no-op.
	if _, err := s.SetWindow(900, 200); err != nil {
		t.Fatalf("SetWindow failed: %v", err)
	}
	if _, err := s.SetWindow(801, 200); err != nil {
		t.Fatalf("SetWindow failed: %v", err)
	}
	if got := reader.traceCalls - base; got != 2 {
		t.Fatalf("reloads = %d, want 2: equal resolved windows must not reload", got)
	}
}

func TestSetWindowReloadFailureKeepsState(t *testing.T) {
	s, reader := openTestSession(t, 1000)
	if _, err := s.SetWindow(101, 100); err != nil {
		t.Fatalf("SetWindow failed: %v", err)
	}
	prevWin := s.Window()
	prevTraces := s.Traces()
	prevH1, prevH2 := s.HeaderValues()

	boom := errors.New("disk unplugged")
	reader.failNext = boom
	if _, err := s.SetWindow(301, 100); !errors.Is(err, boom) {
		t.Fatalf("SetWindow error = %v, want wrapped %v", err, boom)
	}
	reader.failNext = nil

	if s.Window() != prevWin {
		t.Fatalf("window changed after failed reload: %+v -> %+v", prevWin, s.Window())
	}
	if &s.Traces()[0] != &prevTraces[0] {
		t.Fatalf("trace buffer replaced after failed reload")
	}
	h1, h2 := s.HeaderValues()
	if &h1[0] != &prevH1[0] || &h2[0] != &prevH2[0] {
		t.Fatalf("header buffers replaced after failed reload")
	}
}

func TestSetHeaderSpecsReloadsHeadersOnly(t *testing.T) {
	s, reader := openTestSession(t, 1000)
	prevWin := s.Window()
	prevTraces := s.Traces()
	baseTraceCalls := reader.traceCalls

	h1, err := NewHeaderFieldSpec(73, FormatLong)
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	h2, err := NewHeaderFieldSpec(77, FormatLong)
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	if err := s.SetHeaderSpecs(h1, h2); err != nil {
		t.Fatalf("SetHeaderSpecs failed: %v", err)
	}

	if reader.traceCalls != baseTraceCalls {
		t.Fatalf("SetHeaderSpecs reloaded traces")
	}
	if &s.Traces()[0] != &prevTraces[0] {
		t.Fatalf("SetHeaderSpecs replaced the trace buffer")
	}
	if s.Window() != prevWin {
		t.Fatalf("SetHeaderSpecs moved the window")
	}
	v1, v2 := s.HeaderValues()
	if v1[0] != float64(73*100000) || v2[0] != float64(77*100000) {
		t.Fatalf("header buffers not decoded per new specs: %g, %g", v1[0], v2[0])
	}
	gotH1, gotH2 := s.HeaderSpecs()
	if gotH1 != h1 || gotH2 != h2 {
		t.Fatalf("specs not committed: %+v, %+v", gotH1, gotH2)
	}
}

func TestSetHeaderSpecsFailureKeepsSpecs(t *testing.T) {
	s, reader := openTestSession(t, 1000)
	prevH1, prevH2 := s.HeaderSpecs()
	prevV1, _ := s.HeaderValues()

	boom := errors.New("short read")
	reader.failNext = boom
	h1, _ := NewHeaderFieldSpec(73, FormatLong)
	h2, _ := NewHeaderFieldSpec(77, FormatLong)
	if err := s.SetHeaderSpecs(h1, h2); !errors.Is(err, boom) {
		t.Fatalf("SetHeaderSpecs error = %v, want wrapped %v", err, boom)
	}
	reader.failNext = nil

	gotH1, gotH2 := s.HeaderSpecs()
	if gotH1 != prevH1 || gotH2 != prevH2 {
		t.Fatalf("specs changed after failed reload")
	}
	v1, _ := s.HeaderValues()
	if &v1[0] != &prevV1[0] {
		t.Fatalf("header buffer replaced after failed reload")
	}
}

func TestSetAmplitudeBounds(t *testing.T) {
	s, _ := openTestSession(t, 100)
	if err := s.SetAmplitudeBounds(-100, 100); err != nil {
		t.Fatalf("SetAmplitudeBounds failed: %v", err)
	}
	if err := s.SetAmplitudeBounds(5, 5); !errors.Is(err, ErrAmplitudeRange) {
		t.Fatalf("equal bounds error = %v, want ErrAmplitudeRange", err)
	}
	if err := s.SetAmplitudeBounds(10, -10); !errors.Is(err, ErrAmplitudeRange) {
		t.Fatalf("inverted bounds error = %v, want ErrAmplitudeRange", err)
	}
	min, max := s.AmplitudeBounds()
	if min != -100 || max != 100 {
		t.Fatalf("bounds = [%g, %g], want prior [-100, 100] retained", min, max)
	}
}

func TestClosedSessionRejectsMutation(t *testing.T) {
	s, _ := openTestSession(t, 100)
	s.Close()
	if _, err := s.SetWindow(1, 10); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("SetWindow on closed session: %v", err)
	}
	h1, h2 := defaultSpecs(t)
	if err := s.SetHeaderSpecs(h1, h2); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("SetHeaderSpecs on closed session: %v", err)
	}
	if err := s.SetAmplitudeBounds(-1, 1); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("SetAmplitudeBounds on closed session: %v", err)
	}
	s.Close() // idempotent
}

func TestTraceLengthMs(t *testing.T) {
	reader := &fakeReader{total: 10, bhead: BinaryHeader{NumSamples: 1500, SampleInterval: 2000}}
	h1, h2 := defaultSpecs(t)
	s, err := OpenSession(reader, h1, h2)
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	if got := s.TraceLengthMs(); got != 3000 {
		t.Fatalf("TraceLengthMs = %g, want 3000", got)
	}
	if s.NumSamples() != 1500 || s.SampleInterval() != 2000 {
		t.Fatalf("binary header pass-through mangled: %d, %d", s.NumSamples(), s.SampleInterval())
	}
}

func TestSnapshotPairsWindowWithItsBuffers(t *testing.T) {
	s, _ := openTestSession(t, 100)
	if _, err := s.SetWindow(1, 50); err != nil {
		t.Fatalf("SetWindow failed: %v", err)
	}

	win, traces, h1, h2 := s.Snapshot()

	// Shrink the window after the snapshot was taken. The snapshot must
	// keep describing the buffers it was taken with.
	if _, err := s.SetWindow(1, 10); err != nil {
		t.Fatalf("SetWindow failed: %v", err)
	}

	if len(traces) != win.Width() || len(h1) != win.Width() || len(h2) != win.Width() {
		t.Fatalf("snapshot buffers have %d/%d/%d entries for width %d",
			len(traces), len(h1), len(h2), win.Width())
	}
	for i := 0; i < win.Width(); i++ {
		trace := win.T0 + i
		if traces[i][0] != float32(trace*1000) {
			t.Fatalf("trace %d: sample = %g, want %d", trace, traces[i][0], trace*1000)
		}
		if h1[i] != float64(DefaultHead1Pos*100000+trace) {
			t.Fatalf("trace %d: head1 = %g", trace, h1[i])
		}
	}
}

func TestSnapshotConsistentDuringWindowChanges(t *testing.T) {
	s, _ := openTestSession(t, 1000)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			width := 10
			if i%2 == 0 {
				width = 300
			}
			if _, err := s.SetWindow(1+i%500, width); err != nil {
				t.Errorf("SetWindow failed: %v", err)
				return
			}
		}
	}()

	for alive := true; alive; {
		select {
		case <-done:
			alive = false
		default:
		}
		win, traces, h1, h2 := s.Snapshot()
		if len(traces) != win.Width() || len(h1) != win.Width() || len(h2) != win.Width() {
			t.Fatalf("torn snapshot: %d/%d/%d entries for window %+v",
				len(traces), len(h1), len(h2), win)
		}
		for i := range h1 {
			if h1[i] != float64(DefaultHead1Pos*100000+win.T0+i) {
				t.Fatalf("snapshot pairs window %+v with foreign header buffer", win)
			}
		}
	}
}
