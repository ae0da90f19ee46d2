package gather

import (
	"errors"
	"fmt"
	"sync"

	"example.com/gatherview/internal/common"
)

// Defaults applied when a session opens. They match the historical gather
// viewer this tool replaces.
const (
	DefaultWindowWidth = 500
	DefaultAmpMin      = -5000
	DefaultAmpMax      = 5000

	DefaultHead1Pos = 29
	DefaultHead2Pos = 37
)

var (
	ErrSessionClosed  = errors.New("session is closed")
	ErrAmplitudeRange = errors.New("amplitude minimum must be less than maximum")
)

// BinaryHeader carries the file-level fields the display needs.
type BinaryHeader struct {
	NumSamples     int
	SampleInterval int // microseconds
}

// TraceReader is the file-side collaborator a session loads from. The segy
// package provides the real implementation; tests substitute fakes.
type TraceReader interface {
	TotalTraces() int
	BinaryHeader() BinaryHeader
	TextHeader() []string
	ReadTraces(t0, t1 int) ([][]float32, error)
	ReadHeaderField(t0, t1 int, spec HeaderFieldSpec) ([]float64, error)
}

// Session owns the current display window over an open file: its position
// and size, the amplitude clip bounds, the two header field specs, and the
// decoded buffers for the window. Buffers are replaced wholesale together
// with the window; callers never observe a window paired with another
// window's data.
type Session struct {
	mu sync.Mutex

	reader TraceReader
	total  int
	bhead  BinaryHeader

	window   Window
	reqWidth int

	ampMin float64
	ampMax float64

	head1 HeaderFieldSpec
	head2 HeaderFieldSpec

	traces    [][]float32
	head1Vals []float64
	head2Vals []float64

	metrics *common.Metrics
	closed  bool
}

// OpenSession caches the file's trace count, applies default amplitude
// bounds and window size, and loads the initial window starting at trace 1.
func OpenSession(reader TraceReader, head1, head2 HeaderFieldSpec) (*Session, error) {
	s := &Session{
		reader:   reader,
		total:    reader.TotalTraces(),
		bhead:    reader.BinaryHeader(),
		reqWidth: DefaultWindowWidth,
		ampMin:   DefaultAmpMin,
		ampMax:   DefaultAmpMax,
		head1:    head1,
		head2:    head2,
	}
	win := ResolveWindow(s.total, 1, DefaultWindowWidth)
	traces, h1, h2, err := s.fetch(win, head1, head2)
	if err != nil {
		return nil, err
	}
	s.commit(win, traces, h1, h2)
	return s, nil
}

// SetMetrics attaches read metrics. Pass nil to detach.
func (s *Session) SetMetrics(m *common.Metrics) {
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
}

// SetWindow resolves the requested window and, when it differs from the
// current one, reloads both buffers. A request resolving to the current
// window is a no-op. On reload failure the previously committed window and
// buffers are left untouched.
func (s *Session) SetWindow(requestedStart, requestedWidth int) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Window{}, ErrSessionClosed
	}
	if requestedWidth < 1 {
		requestedWidth = 1
	}
	win := ResolveWindow(s.total, requestedStart, requestedWidth)
	if win == s.window {
		// Same resolved window: no reload, but remember the requested
		// width for later start-only moves.
		s.reqWidth = requestedWidth
		return s.window, nil
	}
	traces, h1, h2, err := s.fetch(win, s.head1, s.head2)
	if err != nil {
		return s.window, fmt.Errorf("reload traces %d-%d: %w", win.T0, win.T1, err)
	}
	s.reqWidth = requestedWidth
	s.commit(win, traces, h1, h2)
	return s.window, nil
}

// SetHeaderSpecs replaces both header field specs and reloads the header
// buffers for the current window. The trace buffer is untouched: sample
// decoding does not depend on header specs. Reload failure keeps the prior
// specs and buffers.
func (s *Session) SetHeaderSpecs(head1, head2 HeaderFieldSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	h1, h2, err := s.fetchHeaders(s.window, head1, head2)
	if err != nil {
		return fmt.Errorf("reload headers %d-%d: %w", s.window.T0, s.window.T1, err)
	}
	s.head1 = head1
	s.head2 = head2
	s.head1Vals = h1
	s.head2Vals = h2
	if s.metrics != nil {
		s.metrics.AddReload()
	}
	return nil
}

// SetAmplitudeBounds updates the display clip range. Inverted ranges are
// rejected; the prior bounds stay in force.
func (s *Session) SetAmplitudeBounds(min, max float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if min >= max {
		return fmt.Errorf("%w: [%g, %g]", ErrAmplitudeRange, min, max)
	}
	s.ampMin = min
	s.ampMax = max
	return nil
}

// Close releases the buffers and marks the session terminal. Further
// mutations fail with ErrSessionClosed. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.traces = nil
	s.head1Vals = nil
	s.head2Vals = nil
	s.mu.Unlock()
}

func (s *Session) Window() Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

func (s *Session) RequestedWidth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqWidth
}

func (s *Session) AmplitudeBounds() (min, max float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ampMin, s.ampMax
}

func (s *Session) HeaderSpecs() (head1, head2 HeaderFieldSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head1, s.head2
}

// Traces returns the decoded sample matrix for the current window, one row
// per trace. The slice is owned by the session and replaced, never mutated;
// callers must not write to it.
func (s *Session) Traces() [][]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traces
}

// HeaderValues returns the decoded values of both header fields over the
// current window.
func (s *Session) HeaderValues() (head1, head2 []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head1Vals, s.head2Vals
}

// Snapshot returns the committed window together with the buffers loaded
// for it, under one lock acquisition. Readers that need the window and its
// data to agree must use this instead of separate accessor calls, which a
// concurrent SetWindow could interleave.
func (s *Session) Snapshot() (win Window, traces [][]float32, head1, head2 []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window, s.traces, s.head1Vals, s.head2Vals
}

func (s *Session) TotalTraces() int { return s.total }

func (s *Session) NumSamples() int { return s.bhead.NumSamples }

// SampleInterval is the sample period in microseconds, as recorded in the
// binary header.
func (s *Session) SampleInterval() int { return s.bhead.SampleInterval }

// TraceLengthMs is the vertical display extent: trace length in
// milliseconds.
func (s *Session) TraceLengthMs() float64 {
	return float64(s.bhead.NumSamples) * float64(s.bhead.SampleInterval) * 0.001
}

// fetch loads trace and header buffers for win without touching session
// state, so a failed load leaves the committed tuple intact.
func (s *Session) fetch(win Window, head1, head2 HeaderFieldSpec) ([][]float32, []float64, []float64, error) {
	if win.Width() == 0 {
		return [][]float32{}, []float64{}, []float64{}, nil
	}
	traces, err := s.reader.ReadTraces(win.T0, win.T1)
	if err != nil {
		return nil, nil, nil, err
	}
	h1, h2, err := s.fetchHeaders(win, head1, head2)
	if err != nil {
		return nil, nil, nil, err
	}
	if s.metrics != nil {
		s.metrics.AddTraces(win.Width(), int64(win.Width())*int64(s.bhead.NumSamples)*4)
		s.metrics.AddReload()
	}
	return traces, h1, h2, nil
}

func (s *Session) fetchHeaders(win Window, head1, head2 HeaderFieldSpec) ([]float64, []float64, error) {
	if win.Width() == 0 {
		return []float64{}, []float64{}, nil
	}
	h1, err := s.reader.ReadHeaderField(win.T0, win.T1, head1)
	if err != nil {
		return nil, nil, err
	}
	h2, err := s.reader.ReadHeaderField(win.T0, win.T1, head2)
	if err != nil {
		return nil, nil, err
	}
	return h1, h2, nil
}

func (s *Session) commit(win Window, traces [][]float32, h1, h2 []float64) {
	s.window = win
	s.traces = traces
	s.head1Vals = h1
	s.head2Vals = h2
}
