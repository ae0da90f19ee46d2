package gather

// Window is a resolved, in-bounds range of trace indices. Start is the
// 1-based first trace; [T0, T1) is the same range 0-based.
type Window struct {
	Start int
	T0    int
	T1    int
}

// Width returns the number of traces covered by the window.
func (w Window) Width() int {
	return w.T1 - w.T0
}

// ResolveWindow clamps a requested window of traces to the file bounds.
// When the requested range runs past the last trace the whole window is
// shifted left so a full width of traces stays on screen; only when the
// width exceeds the file does the window shrink to cover the entire file.
func ResolveWindow(totalTraces, requestedStart, requestedWidth int) Window {
	if totalTraces <= 0 {
		return Window{Start: 1, T0: 0, T1: 0}
	}
	if requestedStart < 1 {
		requestedStart = 1
	}
	if requestedWidth < 1 {
		requestedWidth = 1
	}
	t0 := requestedStart - 1
	t1 := t0 + requestedWidth
	if t1 > totalTraces {
		t1 = totalTraces
		t0 = t1 - requestedWidth
		if t0 < 0 {
			t0 = 0
		}
	}
	return Window{Start: t0 + 1, T0: t0, T1: t1}
}
