package progress

import (
	"time"
)

const windowSlots = 10

type sample struct {
	bytes int64
	at    time.Time
}

// Snapshot is a point-in-time view of a running download, handed to the
// caller's progress callback. All fields are derived; nothing is retained.
type Snapshot struct {
	URL             string
	Path            string
	BytesDownloaded int64 // this session only
	StartOffset     int64 // resumed bytes
	TotalBytes      int64 // -1 when unknown (chunked responses)
	BytesPerSecond  float64
	ETA             time.Duration
	HasETA          bool
	Elapsed         time.Duration
}

// Percent returns completion in [0,100], or -1 when the total is unknown.
func (s Snapshot) Percent() float64 {
	if s.TotalBytes <= 0 {
		return -1
	}
	p := float64(s.StartOffset+s.BytesDownloaded) / float64(s.TotalBytes) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// Tracker accumulates byte counts for one attempt and rate-limits
// progress reports. It is owned by a single goroutine.
type Tracker struct {
	start       time.Time
	startOffset int64
	session     int64
	total       int64 // -1 unknown
	lastReport  time.Time
	window      [windowSlots]sample
	wi          int
	wn          int
}

// NewTracker starts tracking from startOffset. total < 0 means unknown.
func NewTracker(startOffset, total int64) *Tracker {
	now := time.Now()
	return &Tracker{
		start:       now,
		startOffset: startOffset,
		total:       total,
		lastReport:  now,
	}
}

// Update adds n bytes to the session total. It never fires a callback.
func (t *Tracker) Update(n int64) {
	t.session += n
	t.window[t.wi] = sample{bytes: n, at: time.Now()}
	t.wi = (t.wi + 1) % windowSlots
	if t.wn < windowSlots {
		t.wn++
	}
}

// ShouldReport returns true when at least min has elapsed since the last
// report, and resets the internal timer. This gate is what bounds
// callback frequency inside tight read loops.
func (t *Tracker) ShouldReport(min time.Duration) bool {
	now := time.Now()
	if now.Sub(t.lastReport) < min {
		return false
	}
	t.lastReport = now
	return true
}

// BytesDownloaded returns the session byte count.
func (t *Tracker) BytesDownloaded() int64 { return t.session }

// Elapsed returns time since tracking started.
func (t *Tracker) Elapsed() time.Duration { return time.Since(t.start) }

// BytesPerSecond is the average session throughput.
func (t *Tracker) BytesPerSecond() float64 {
	ms := time.Since(t.start).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return float64(t.session) * 1000 / float64(ms)
}

// currentRate estimates recent throughput from the sample window, falling
// back to the overall average when the window is too sparse.
func (t *Tracker) currentRate() float64 {
	if t.wn < 2 {
		return t.BytesPerSecond()
	}
	oldest := (t.wi - t.wn + windowSlots) % windowSlots
	first := t.window[oldest]
	last := t.window[(t.wi-1+windowSlots)%windowSlots]
	span := last.at.Sub(first.at).Seconds()
	if span <= 0 {
		return t.BytesPerSecond()
	}
	var bytes int64
	for i := 1; i < t.wn; i++ {
		bytes += t.window[(oldest+i)%windowSlots].bytes
	}
	return float64(bytes) / span
}

// ETA estimates the remaining time. ok is false when the total size is
// unknown or the rate is zero.
func (t *Tracker) ETA() (eta time.Duration, ok bool) {
	if t.total < 0 {
		return 0, false
	}
	remaining := t.total - t.startOffset - t.session
	if remaining <= 0 {
		return 0, true
	}
	rate := t.BytesPerSecond()
	if rate <= 0 {
		return 0, false
	}
	return time.Duration(float64(remaining) / rate * float64(time.Second)), true
}

// Snapshot builds a report for the callback. It is a pure read of the
// current state and is safe to call at any time.
func (t *Tracker) Snapshot(url, path string) Snapshot {
	eta, ok := t.ETA()
	return Snapshot{
		URL:             url,
		Path:            path,
		BytesDownloaded: t.session,
		StartOffset:     t.startOffset,
		TotalBytes:      t.total,
		BytesPerSecond:  t.currentRate(),
		ETA:             eta,
		HasETA:          ok,
		Elapsed:         time.Since(t.start),
	}
}
