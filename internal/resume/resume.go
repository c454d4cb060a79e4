package resume

import (
	"net/http"
	"os"
)

// Reason explains why a partial file cannot be resumed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNoPartialFile
	ReasonFileEmpty
	ReasonServerNotSupported
	ReasonFileComplete
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoPartialFile:
		return "no partial file"
	case ReasonFileEmpty:
		return "file empty"
	case ReasonServerNotSupported:
		return "server does not support ranges"
	case ReasonFileComplete:
		return "file already complete"
	}
	return "unknown"
}

// Decision is the outcome of one resume negotiation. It is computed fresh
// per attempt and never persisted.
type Decision struct {
	CanResume   bool
	StartOffset int64
	Reason      Reason
}

// Decide inspects the local partial file and the server's advertised
// capabilities. contentLength < 0 means the server did not report a size.
// Callers with resume disabled skip this entirely and start at offset 0.
func Decide(outputPath string, acceptsRanges bool, contentLength int64) Decision {
	info, err := os.Stat(outputPath)
	if err != nil {
		return Decision{Reason: ReasonNoPartialFile}
	}
	size := info.Size()
	if size == 0 {
		return Decision{Reason: ReasonFileEmpty}
	}
	if !acceptsRanges {
		return Decision{Reason: ReasonServerNotSupported}
	}
	if contentLength >= 0 && size >= contentLength {
		return Decision{Reason: ReasonFileComplete, StartOffset: size}
	}
	return Decision{CanResume: true, StartOffset: size}
}

// Marker remembers the validators of the response a partial file came
// from. If a later response disagrees, the partial is stale and must be
// discarded. The marker lives for one Download call; nothing is written
// beside the partial file.
type Marker struct {
	ETag         string
	LastModified string
	recorded     bool
}

// Record captures ETag and Last-Modified from a response.
func (m *Marker) Record(h http.Header) {
	etag := h.Get("ETag")
	lastMod := h.Get("Last-Modified")
	if etag == "" && lastMod == "" {
		return
	}
	m.ETag = etag
	m.LastModified = lastMod
	m.recorded = true
}

// Recorded reports whether any validator has been captured.
func (m *Marker) Recorded() bool { return m.recorded }

// Matches reports whether the response's validators agree with the
// recorded ones. An unrecorded marker matches everything.
func (m *Marker) Matches(h http.Header) bool {
	if !m.recorded {
		return true
	}
	if m.ETag != "" && h.Get("ETag") != "" && m.ETag != h.Get("ETag") {
		return false
	}
	if m.LastModified != "" && h.Get("Last-Modified") != "" && m.LastModified != h.Get("Last-Modified") {
		return false
	}
	return true
}
