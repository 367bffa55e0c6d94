package scrollsync

import "sync"

// Metrics is a snapshot of a pane's scroll geometry.
type Metrics struct {
	ScrollTop    float64 `json:"scrollTop"`
	ScrollHeight float64 `json:"scrollHeight"`
	ClientHeight float64 `json:"clientHeight"`
}

// RemoteView is a View whose geometry is reported by a client that renders
// the pane elsewhere (for example a browser). Offsets set by the
// synchronizer are recorded for the client to apply.
type RemoteView struct {
	mu      sync.Mutex
	m       Metrics
	changed bool
}

// Update replaces the reported geometry and clears the changed flag.
func (r *RemoteView) Update(m Metrics) {
	r.mu.Lock()
	r.m = m
	r.changed = false
	r.mu.Unlock()
}

// Metrics returns the current geometry.
func (r *RemoteView) Metrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m
}

// Changed reports whether the synchronizer moved the view since the last
// Update.
func (r *RemoteView) Changed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changed
}

func (r *RemoteView) ScrollTop() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m.ScrollTop
}

func (r *RemoteView) ScrollHeight() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m.ScrollHeight
}

func (r *RemoteView) ClientHeight() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m.ClientHeight
}

func (r *RemoteView) SetScrollTop(top float64) {
	r.mu.Lock()
	r.m.ScrollTop = top
	r.changed = true
	r.mu.Unlock()
}
