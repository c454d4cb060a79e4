package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/klauver/snatch/internal/checksum"
	"github.com/klauver/snatch/internal/config"
	"github.com/klauver/snatch/internal/dlerr"
	"github.com/klauver/snatch/internal/progress"
	"github.com/klauver/snatch/internal/resume"
	"github.com/klauver/snatch/internal/retry"
	"github.com/klauver/snatch/internal/utils"
)

// ProgressFunc receives snapshots at a bounded rate during streaming.
// Returning false cancels the download before the next read.
type ProgressFunc func(progress.Snapshot) bool

// Client drives one logical download at a time. A Client must not be used
// concurrently from multiple goroutines; run independent Clients for
// parallel downloads.
type Client struct {
	cfg  config.Config
	http utils.HTTPDoer
}

// New validates the config and builds a client.
func New(cfg config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, http: utils.NewHTTPClient(cfg)}, nil
}

// downloadState carries per-call state across attempts.
type downloadState struct {
	url           string
	requestedPath string
	resolvedPath  string
	cb            ProgressFunc
	marker        resume.Marker
	// policyApplied is set once the exists policy has run for this call.
	// After that, whatever sits at resolvedPath is this call's own
	// partial, so retries must not trip the policy on it again.
	policyApplied bool
}

// Download streams url to outputPath, retrying transient failures per the
// configured policy. It returns the total bytes at the output path
// (session bytes plus any resumed offset). Every failure is normalized
// into the engine's closed error set and carries the attempts made.
func (c *Client) Download(ctx context.Context, rawurl, outputPath string, cb ProgressFunc) (int64, error) {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return 0, dlerr.Wrap(dlerr.KindInvalidURL, err, "cannot parse URL %q", rawurl)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return 0, dlerr.New(dlerr.KindUnsupportedScheme, "unsupported scheme %q", parsed.Scheme)
	}

	st := retry.New(c.cfg)
	s := &downloadState{url: rawurl, requestedPath: outputPath, cb: cb}
	if c.cfg.FilenameStrategy == config.NameExact {
		s.resolvedPath = outputPath
	}

	for {
		if err := st.Advance(); err != nil {
			de := err.(*dlerr.Error)
			de.Attempts = st.Attempt()
			return 0, de
		}
		if st.Attempt() > 1 {
			log.Warn().Str("op", "client/download").Msgf("Retrying %s (attempt %d/%d)", rawurl, st.Attempt(), c.cfg.MaxRetries+1)
			if err := st.Wait(ctx); err != nil {
				return 0, &dlerr.Error{Kind: dlerr.KindCancelled, Message: "cancelled while waiting to retry", Attempts: st.Attempt(), Err: err}
			}
		}

		n, err := c.attempt(ctx, s)
		if err == nil {
			return n, nil
		}
		de := normalize(err)
		de.Attempts = st.Attempt()
		st.SetLastError(de)
		if dlerr.Terminal(de.Kind) || !dlerr.IsRetryable(de.Kind) {
			return 0, de
		}
		log.Debug().Str("op", "client/download").Err(de).Msgf("Attempt %d failed", st.Attempt())
	}
}

// normalize guarantees the closed error set at the Download boundary.
func normalize(err error) *dlerr.Error {
	var de *dlerr.Error
	if errors.As(err, &de) {
		return de
	}
	return dlerr.Wrap(dlerr.Classify(err), err, "download failed")
}

// attempt runs one full pass: resume negotiation, request, redirects,
// status validation, path placement, streaming, and verification.
func (c *Client) attempt(ctx context.Context, s *downloadState) (int64, error) {
	offset, done, total, err := c.resolveOffset(ctx, s)
	if err != nil {
		return 0, err
	}
	if done {
		// Partial file already covers the full content length.
		return total, nil
	}

	resp, finalURL, err := c.fetch(ctx, http.MethodGet, s.url, offset)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if offset > 0 {
		switch resp.StatusCode {
		case http.StatusOK:
			// Server ignored the range: drop the partial and restart.
			log.Warn().Str("op", "client/download").Msgf("Server ignored range request, restarting %s from scratch", s.resolvedPath)
			offset = 0
		case http.StatusPartialContent:
			refetch := false
			if !s.marker.Matches(resp.Header) {
				log.Warn().Str("op", "client/download").Msgf("Partial file %s is stale (validators changed), restarting", s.resolvedPath)
				refetch = true
			} else if cr := resp.Header.Get("Content-Range"); cr != "" {
				start, _, crTotal, crErr := utils.ParseContentRange(cr)
				if crErr != nil || start != offset {
					log.Warn().Str("op", "client/download").Msgf("Content-Range does not match requested offset %d, restarting", offset)
					refetch = true
				} else if crTotal > 0 {
					total = crTotal
				}
			}
			if refetch {
				resp.Body.Close()
				offset = 0
				// The discarded response's length no longer applies.
				total = -1
				resp, finalURL, err = c.fetch(ctx, http.MethodGet, s.url, 0)
				if err != nil {
					return 0, err
				}
				defer resp.Body.Close()
			}
		}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, dlerr.New(dlerr.FromStatus(resp.StatusCode), "server returned status %d", resp.StatusCode)
	}
	s.marker.Record(resp.Header)

	if s.resolvedPath == "" {
		name := utils.ResolveFilename(finalURL, resp.Header, c.cfg.FilenameStrategy)
		dir := s.requestedPath
		if dir == "" {
			dir = "."
		}
		s.resolvedPath = filepath.Join(dir, name)
		log.Debug().Str("op", "client/download").Msgf("Resolved output filename: %s", s.resolvedPath)
	}

	if offset == 0 && !s.policyApplied {
		skip, err := c.applyExistsPolicy(s)
		if err != nil {
			return 0, err
		}
		if skip {
			return 0, nil
		}
		s.policyApplied = true
	}

	if c.cfg.CreateDirs {
		if dir := filepath.Dir(s.resolvedPath); dir != "." {
			// Best effort: a real problem surfaces at file open.
			if err := os.MkdirAll(dir, 0755); err != nil {
				log.Warn().Str("op", "client/download").Err(err).Msg("Could not create parent directories")
			}
		}
	}

	lock := flock.New(s.resolvedPath + ".lock")
	locked, lockErr := lock.TryLock()
	if lockErr != nil || !locked {
		return 0, dlerr.Wrap(dlerr.KindFileOpenError, lockErr, "output path %s is locked by another download", s.resolvedPath)
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	fileMode := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		fileMode |= os.O_APPEND
	} else {
		fileMode |= os.O_TRUNC
	}
	out, err := os.OpenFile(s.resolvedPath, fileMode, 0644)
	if err != nil {
		kind := dlerr.KindFileOpenError
		if os.IsPermission(err) {
			kind = dlerr.KindPermissionDenied
		}
		return 0, dlerr.Wrap(kind, err, "cannot open output file %s", s.resolvedPath)
	}
	defer out.Close()

	if total < 0 && resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}

	tracker := progress.NewTracker(offset, total)
	if err := c.stream(resp.Body, out, resp.ContentLength, tracker, s); err != nil {
		return 0, err
	}
	out.Sync()

	if s.cb != nil {
		// Final report; cancellation no longer applies.
		s.cb(tracker.Snapshot(s.url, s.resolvedPath))
	}

	written := offset + tracker.BytesDownloaded()
	if err := c.verify(s.resolvedPath, written); err != nil {
		return 0, err
	}

	if c.cfg.InferExtension && filepath.Ext(s.resolvedPath) == "" {
		c.inferExtension(s)
	}

	log.Info().Str("op", "client/download").Msgf("Download complete: %s (%d bytes)", s.resolvedPath, written)
	return written, nil
}

// resolveOffset negotiates resumption for this attempt. done=true means
// the existing file already holds the complete content.
func (c *Client) resolveOffset(ctx context.Context, s *downloadState) (offset int64, done bool, total int64, err error) {
	total = -1
	if !c.cfg.ResumeEnabled || c.cfg.FileExistsAction != config.ResumeOrOverwrite || s.resolvedPath == "" {
		return 0, false, total, nil
	}
	info, statErr := os.Stat(s.resolvedPath)
	if statErr != nil || info.Size() == 0 {
		return 0, false, total, nil
	}

	meta, headErr := c.headInfo(ctx, s.url)
	if headErr != nil {
		log.Debug().Str("op", "client/resume").Err(headErr).Msg("HEAD failed, starting from scratch")
		return 0, false, total, nil
	}
	dec := resume.Decide(s.resolvedPath, meta.acceptRanges, meta.length)
	log.Debug().Str("op", "client/resume").Msgf("Resume decision: can=%v offset=%d reason=%s", dec.CanResume, dec.StartOffset, dec.Reason)
	if dec.Reason == resume.ReasonFileComplete {
		return 0, true, dec.StartOffset, nil
	}
	if !dec.CanResume {
		return 0, false, total, nil
	}
	if s.marker.Recorded() && !s.marker.Matches(meta.header) {
		log.Warn().Str("op", "client/resume").Msgf("Partial file %s is stale, restarting from scratch", s.resolvedPath)
		return 0, false, total, nil
	}
	s.marker.Record(meta.header)
	if meta.length >= 0 {
		total = meta.length
	}
	return dec.StartOffset, false, total, nil
}

// applyExistsPolicy handles an occupied destination for a fresh (non
// resuming) write. skip=true reports success with zero bytes.
func (c *Client) applyExistsPolicy(s *downloadState) (skip bool, err error) {
	if _, statErr := os.Stat(s.resolvedPath); statErr != nil {
		return false, nil
	}
	switch c.cfg.FileExistsAction {
	case config.Skip:
		log.Info().Str("op", "client/download").Msgf("File exists, skipping: %s", s.resolvedPath)
		return true, nil
	case config.Fail:
		return false, dlerr.New(dlerr.KindFileAlreadyExists, "file already exists: %s", s.resolvedPath)
	case config.RenameWithNumber:
		renamed, renErr := utils.NumberedPath(s.resolvedPath)
		if renErr != nil {
			return false, dlerr.Wrap(dlerr.KindFileOpenError, renErr, "cannot find free path for %s", s.resolvedPath)
		}
		log.Debug().Str("op", "client/download").Msgf("File exists, renaming output to %s", renamed)
		s.resolvedPath = renamed
	}
	// Overwrite and ResumeOrOverwrite proceed with truncation.
	return false, nil
}

// stream copies the body to the file in bounded chunks, firing the
// callback at the configured cadence. When the content length is known
// it stops after exactly that many bytes even if the stream has more.
func (c *Client) stream(body io.Reader, out *os.File, contentLength int64, tracker *progress.Tracker, s *downloadState) error {
	buf := make([]byte, c.cfg.BufferSize)
	remaining := contentLength // -1 when unknown
	for {
		if remaining == 0 {
			break
		}
		readSize := int64(len(buf))
		if remaining > 0 && remaining < readSize {
			readSize = remaining
		}
		n, readErr := body.Read(buf[:readSize])
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return dlerr.Wrap(dlerr.ClassifyFileWrite(writeErr), writeErr, "error writing to %s", s.resolvedPath)
			}
			tracker.Update(int64(n))
			if remaining > 0 {
				remaining -= int64(n)
			}
			if s.cb != nil && tracker.ShouldReport(c.cfg.ProgressMinInterval) {
				if !s.cb(tracker.Snapshot(s.url, s.resolvedPath)) {
					return dlerr.New(dlerr.KindCancelled, "cancelled by progress callback")
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return dlerr.Wrap(dlerr.Classify(readErr), readErr, "error reading response body")
		}
	}
	return nil
}

// verify runs the post-download size and checksum checks. They only run
// after a complete stream; a failing file is left on disk and named in
// the error, never reported as success.
func (c *Client) verify(path string, written int64) error {
	if c.cfg.ExpectedSize > 0 && written != c.cfg.ExpectedSize {
		return dlerr.New(dlerr.KindSizeMismatch, "downloaded %d bytes to %s, expected %d", written, path, c.cfg.ExpectedSize)
	}
	if c.cfg.ChecksumAlgorithm != checksum.None && c.cfg.ExpectedChecksum != "" {
		ok, err := checksum.Matches(path, c.cfg.ChecksumAlgorithm, c.cfg.ExpectedChecksum)
		if err != nil {
			// Failing to compute the hash is not a content mismatch.
			return dlerr.Wrap(dlerr.KindFileOpenError, err, "cannot verify %s checksum of %s", c.cfg.ChecksumAlgorithm, path)
		}
		if !ok {
			return dlerr.New(dlerr.KindChecksumMismatch, "%s checksum of %s does not match expected value", c.cfg.ChecksumAlgorithm, path)
		}
	}
	return nil
}

// inferExtension renames an extension-less output based on its magic
// bytes. Failures are logged and ignored.
func (c *Client) inferExtension(s *downloadState) {
	f, err := os.Open(s.resolvedPath)
	if err != nil {
		return
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	f.Close()
	ext := utils.SniffExtension(head[:n])
	if ext == "" {
		return
	}
	renamed := s.resolvedPath + "." + ext
	if _, err := os.Stat(renamed); err == nil {
		return
	}
	if err := os.Rename(s.resolvedPath, renamed); err != nil {
		log.Warn().Str("op", "client/download").Err(err).Msg("Could not rename by detected type")
		return
	}
	log.Debug().Str("op", "client/download").Msgf("Renamed output by detected type: %s", renamed)
	s.resolvedPath = renamed
}

// fetch issues a request, walking redirects up to the configured bound.
// Redirects never consume a retry attempt. The final request URL is
// returned alongside the response.
func (c *Client) fetch(ctx context.Context, method, rawurl string, offset int64) (*http.Response, string, error) {
	target := rawurl
	if method == http.MethodGet && c.cfg.Method != "" {
		method = c.cfg.Method
	}
	for redirects := 0; ; {
		var body io.Reader
		if len(c.cfg.Body) > 0 && method != http.MethodGet && method != http.MethodHead {
			// Fresh reader per hop so redirected requests resend the body.
			body = bytes.NewReader(c.cfg.Body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, "", dlerr.Wrap(dlerr.KindInvalidURL, err, "cannot build request for %q", target)
		}
		if offset > 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", dlerr.Wrap(dlerr.KindCancelled, ctx.Err(), "request cancelled")
			}
			return nil, "", dlerr.Wrap(dlerr.Classify(err), err, "request to %s failed", target)
		}

		switch resp.StatusCode {
		case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
			http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
			if !c.cfg.FollowRedirects {
				return resp, target, nil
			}
			loc := resp.Header.Get("Location")
			if loc == "" {
				return resp, target, nil
			}
			resp.Body.Close()
			if redirects >= c.cfg.MaxRedirects {
				return nil, "", dlerr.New(dlerr.KindTooManyRedirects, "stopped after %d redirects", redirects)
			}
			redirects++
			base, err := url.Parse(target)
			if err != nil {
				return nil, "", dlerr.Wrap(dlerr.KindInvalidURL, err, "cannot parse URL %q", target)
			}
			ref, err := url.Parse(loc)
			if err != nil {
				return nil, "", dlerr.Wrap(dlerr.KindInvalidURL, err, "cannot parse redirect location %q", loc)
			}
			target = base.ResolveReference(ref).String()
			if resp.StatusCode == http.StatusSeeOther {
				method = http.MethodGet
			}
			log.Debug().Str("op", "client/download").Msgf("Following redirect %d to %s", redirects, target)
			continue
		}
		return resp, target, nil
	}
}

type serverInfo struct {
	acceptRanges bool
	length       int64
	header       http.Header
}

// headInfo probes the server's capabilities ahead of a resume attempt.
func (c *Client) headInfo(ctx context.Context, rawurl string) (*serverInfo, error) {
	resp, _, err := c.fetch(ctx, http.MethodHead, rawurl, 0)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HEAD returned status %d", resp.StatusCode)
	}
	return &serverInfo{
		acceptRanges: resp.Header.Get("Accept-Ranges") == "bytes",
		length:       resp.ContentLength,
		header:       resp.Header,
	}, nil
}
