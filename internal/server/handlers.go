package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"example.com/gatherview/internal/common"
	"example.com/gatherview/internal/gather"
	"example.com/gatherview/internal/segy"
)

// Server owns the open gather sessions and serves them over HTTP. Each
// session pairs a SEG-Y reader with its windowing state; the registry map
// is the only shared structure, the sessions themselves serialize their own
// mutations.
type Server struct {
	mu           sync.RWMutex
	sessions     map[string]*sessionEntry
	dataDir      string
	defaultWidth int
}

type sessionEntry struct {
	id      string
	path    string
	reader  *segy.Reader
	session *gather.Session
	sync    *gather.ViewStateSync
}

// NewServer constructs a Server with an empty session registry.
func NewServer(opts Options) *Server {
	return &Server{
		sessions:     make(map[string]*sessionEntry),
		dataDir:      opts.DataDir,
		defaultWidth: opts.defaultWidth(),
	}
}

// Close shuts every open session down.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for id, entry := range s.sessions {
		entry.session.Close()
		if err := entry.reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.sessions, id)
	}
	return firstErr
}

func (s *Server) getSession(id string) (*sessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	return entry, ok
}

// windowState is the canonical view of a resolved window in API responses.
type windowState struct {
	Start int `json:"start"`
	Width int `json:"width"`
	T0    int `json:"t0"`
	T1    int `json:"t1"`
}

type headerSpecState struct {
	BytePos int    `json:"bytePos"`
	Format  string `json:"format"`
}

// sessionState is the full canonical session configuration. Every mutating
// endpoint responds with it so clients redisplay what the session actually
// adopted rather than echoing their own request.
type sessionState struct {
	ID           string          `json:"id"`
	Path         string          `json:"path"`
	TotalTraces  int             `json:"totalTraces"`
	NumSamples   int             `json:"numSamples"`
	SampleRateUs int             `json:"sampleRateUs"`
	TraceLenMs   float64         `json:"traceLenMs"`
	Window       windowState     `json:"window"`
	AmpMin       float64         `json:"ampMin"`
	AmpMax       float64         `json:"ampMax"`
	Head1        headerSpecState `json:"head1"`
	Head2        headerSpecState `json:"head2"`
}

func (s *Server) stateOf(entry *sessionEntry) sessionState {
	win := entry.session.Window()
	min, max := entry.session.AmplitudeBounds()
	h1, h2 := entry.session.HeaderSpecs()
	return sessionState{
		ID:           entry.id,
		Path:         entry.path,
		TotalTraces:  entry.session.TotalTraces(),
		NumSamples:   entry.session.NumSamples(),
		SampleRateUs: entry.session.SampleInterval(),
		TraceLenMs:   entry.session.TraceLengthMs(),
		Window:       windowState{Start: win.Start, Width: win.Width(), T0: win.T0, T1: win.T1},
		AmpMin:       min,
		AmpMax:       max,
		Head1:        headerSpecState{BytePos: h1.BytePos, Format: string(h1.Format)},
		Head2:        headerSpecState{BytePos: h2.BytePos, Format: string(h2.Format)},
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleOpen(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type openRequest struct {
	Path     string `json:"path"`
	Head1Pos int    `json:"head1Pos,omitempty"`
	Head1Fmt string `json:"head1Fmt,omitempty"`
	Head2Pos int    `json:"head2Pos,omitempty"`
	Head2Fmt string `json:"head2Fmt,omitempty"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	path, err := resolveDataPath(s.dataDir, req.Path)
	if err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return
	}
	head1, head2, err := specsFromRequest(req)
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, "%v", err)
		return
	}

	reader, err := segy.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			httpError(w, http.StatusNotFound, "open %s: file not found", req.Path)
			return
		}
		httpError(w, http.StatusUnprocessableEntity, "open %s: %v", req.Path, err)
		return
	}
	session, err := gather.OpenSession(reader, head1, head2)
	if err != nil {
		reader.Close()
		httpError(w, http.StatusUnprocessableEntity, "load %s: %v", req.Path, err)
		return
	}
	if s.defaultWidth != gather.DefaultWindowWidth {
		if _, err := session.SetWindow(1, s.defaultWidth); err != nil {
			session.Close()
			reader.Close()
			httpError(w, http.StatusUnprocessableEntity, "load %s: %v", req.Path, err)
			return
		}
	}

	entry := &sessionEntry{
		id:      uuid.NewString(),
		path:    path,
		reader:  reader,
		session: session,
		sync:    gather.NewViewStateSync(session),
	}
	s.mu.Lock()
	s.sessions[entry.id] = entry
	s.mu.Unlock()

	common.Logf("opened %s as session %s (%d traces)", path, entry.id, session.TotalTraces())
	writeJSON(w, http.StatusCreated, s.stateOf(entry))
}

func specsFromRequest(req openRequest) (gather.HeaderFieldSpec, gather.HeaderFieldSpec, error) {
	pos1, fmt1 := gather.DefaultHead1Pos, gather.FormatShort
	pos2, fmt2 := gather.DefaultHead2Pos, gather.FormatLong
	if req.Head1Pos != 0 {
		pos1 = req.Head1Pos
	}
	if req.Head2Pos != 0 {
		pos2 = req.Head2Pos
	}
	var err error
	if req.Head1Fmt != "" {
		if fmt1, err = gather.ParseFormatCode(req.Head1Fmt); err != nil {
			return gather.HeaderFieldSpec{}, gather.HeaderFieldSpec{}, err
		}
	}
	if req.Head2Fmt != "" {
		if fmt2, err = gather.ParseFormatCode(req.Head2Fmt); err != nil {
			return gather.HeaderFieldSpec{}, gather.HeaderFieldSpec{}, err
		}
	}
	head1, err := gather.NewHeaderFieldSpec(pos1, fmt1)
	if err != nil {
		return gather.HeaderFieldSpec{}, gather.HeaderFieldSpec{}, err
	}
	head2, err := gather.NewHeaderFieldSpec(pos2, fmt2)
	if err != nil {
		return gather.HeaderFieldSpec{}, gather.HeaderFieldSpec{}, err
	}
	return head1, head2, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	states := make([]sessionState, 0, len(s.sessions))
	for _, entry := range s.sessions {
		states = append(states, s.stateOf(entry))
	}
	s.mu.RUnlock()
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleSessionSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	id, sub, _ := strings.Cut(rest, "/")
	entry, ok := s.getSession(id)
	if !ok {
		httpError(w, http.StatusNotFound, "no such session: %s", id)
		return
	}
	switch {
	case sub == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.stateOf(entry))
	case sub == "" && r.Method == http.MethodDelete:
		s.handleClose(w, entry)
	case sub == "input" && r.Method == http.MethodPost:
		s.handleInput(w, r, entry)
	case sub == "window" && r.Method == http.MethodPost:
		s.handleWindow(w, r, entry)
	case sub == "headers" && r.Method == http.MethodPost:
		s.handleHeaderSpecs(w, r, entry)
	case sub == "amplitude" && r.Method == http.MethodPost:
		s.handleAmplitude(w, r, entry)
	case sub == "traces" && r.Method == http.MethodGet:
		s.handleTraces(w, entry)
	case sub == "headers.ndjson" && r.Method == http.MethodGet:
		s.handleHeaderStream(w, entry)
	default:
		httpError(w, http.StatusNotFound, "no such endpoint: %s", r.URL.Path)
	}
}

func (s *Server) handleClose(w http.ResponseWriter, entry *sessionEntry) {
	s.mu.Lock()
	delete(s.sessions, entry.id)
	s.mu.Unlock()
	entry.session.Close()
	entry.reader.Close()
	common.Logf("closed session %s", entry.id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// inputRequest applies one raw text edit through the parse-then-apply
// boundary, exactly as a display widget would.
type inputRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type inputResponse struct {
	Canonical string       `json:"canonical"`
	State     sessionState `json:"state"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request, entry *sessionEntry) {
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	canonical, err := entry.sync.Apply(gather.Field(req.Field), req.Value)
	if err != nil {
		httpError(w, statusForGatherError(err), "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, inputResponse{Canonical: canonical, State: s.stateOf(entry)})
}

type windowRequest struct {
	Start int `json:"start"`
	Width int `json:"width"`
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request, entry *sessionEntry) {
	var req windowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Start < 1 || req.Width < 1 {
		httpError(w, http.StatusUnprocessableEntity, "start and width must be >= 1")
		return
	}
	if _, err := entry.session.SetWindow(req.Start, req.Width); err != nil {
		httpError(w, statusForGatherError(err), "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, s.stateOf(entry))
}

type headerSpecsRequest struct {
	Head1 headerSpecState `json:"head1"`
	Head2 headerSpecState `json:"head2"`
}

func (s *Server) handleHeaderSpecs(w http.ResponseWriter, r *http.Request, entry *sessionEntry) {
	var req headerSpecsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	head1, err := gather.NewHeaderFieldSpec(req.Head1.BytePos, gather.FormatCode(req.Head1.Format))
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, "head1: %v", err)
		return
	}
	head2, err := gather.NewHeaderFieldSpec(req.Head2.BytePos, gather.FormatCode(req.Head2.Format))
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, "head2: %v", err)
		return
	}
	if err := entry.session.SetHeaderSpecs(head1, head2); err != nil {
		httpError(w, statusForGatherError(err), "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, s.stateOf(entry))
}

type amplitudeRequest struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (s *Server) handleAmplitude(w http.ResponseWriter, r *http.Request, entry *sessionEntry) {
	var req amplitudeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if err := entry.session.SetAmplitudeBounds(req.Min, req.Max); err != nil {
		httpError(w, statusForGatherError(err), "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, s.stateOf(entry))
}

type tracesResponse struct {
	Window windowState `json:"window"`
	Traces [][]float32 `json:"traces"`
}

func (s *Server) handleTraces(w http.ResponseWriter, entry *sessionEntry) {
	win, traces, _, _ := entry.session.Snapshot()
	writeJSON(w, http.StatusOK, tracesResponse{
		Window: windowState{Start: win.Start, Width: win.Width(), T0: win.T0, T1: win.T1},
		Traces: traces,
	})
}

func (s *Server) handleHeaderStream(w http.ResponseWriter, entry *sessionEntry) {
	win, _, h1, h2 := entry.session.Snapshot()
	w.Header().Set("Content-Type", "application/x-ndjson")
	out := NewNDJSONWriter(w)
	n := win.Width()
	if n > len(h1) {
		n = len(h1)
	}
	if n > len(h2) {
		n = len(h2)
	}
	for i := 0; i < n; i++ {
		rec := HeaderRecord{Trace: win.Start + i, Head1: h1[i], Head2: h2[i]}
		if err := out.WriteObject(rec); err != nil {
			return
		}
	}
}

func statusForGatherError(err error) int {
	switch {
	case errors.Is(err, gather.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, gather.ErrNotParseable),
		errors.Is(err, gather.ErrUnknownField),
		errors.Is(err, gather.ErrUnknownFormat),
		errors.Is(err, gather.ErrInvalidPosition),
		errors.Is(err, gather.ErrAmplitudeRange):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
