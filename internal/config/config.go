package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/klauver/snatch/internal/checksum"
)

const (
	// DefaultBufferSize is the stream copy buffer when none is configured.
	DefaultBufferSize = 256 * 1024
	// MaxBufferSize bounds the stream copy buffer.
	MaxBufferSize = 16 * 1024 * 1024

	DefaultUserAgent = "snatch/1.2"
)

// Validation sentinels for buffer size bounds.
var (
	ErrInvalidBufferSize  = errors.New("buffer size must be greater than zero")
	ErrBufferSizeTooLarge = errors.New("buffer size exceeds 16MiB limit")
)

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FileExistsAction decides what happens when the destination path is
// already occupied.
type FileExistsAction int

const (
	Overwrite FileExistsAction = iota
	ResumeOrOverwrite
	Skip
	RenameWithNumber
	Fail
)

func (a FileExistsAction) String() string {
	switch a {
	case Overwrite:
		return "overwrite"
	case ResumeOrOverwrite:
		return "resume"
	case Skip:
		return "skip"
	case RenameWithNumber:
		return "rename"
	case Fail:
		return "fail"
	}
	return "unknown"
}

// ParseFileExistsAction maps a flag value to a FileExistsAction.
func ParseFileExistsAction(s string) (FileExistsAction, error) {
	switch s {
	case "overwrite":
		return Overwrite, nil
	case "", "resume":
		return ResumeOrOverwrite, nil
	case "skip":
		return Skip, nil
	case "rename":
		return RenameWithNumber, nil
	case "fail":
		return Fail, nil
	}
	return Overwrite, fmt.Errorf("unknown file-exists action: %s", s)
}

// FilenameStrategy controls how the output filename is derived when the
// caller gives a directory (or nothing) instead of a full path.
type FilenameStrategy int

const (
	// NameExact uses the caller-provided path as-is.
	NameExact FilenameStrategy = iota
	// NameFromURL derives the filename from the final URL path.
	NameFromURL
	// NameFromHeaders derives the filename from Content-Disposition only.
	NameFromHeaders
	// NameAuto prefers Content-Disposition and falls back to the URL.
	NameAuto
)

// Header is one custom request header. Order is preserved and duplicate
// names are allowed.
type Header struct {
	Name  string
	Value string
}

// Config is the immutable set of parameters for one download client.
// Construct it, Validate it once, then treat it as read-only.
type Config struct {
	MaxRetries         int
	RetryDelayBase     time.Duration
	RetryDelayCap      time.Duration
	ExponentialBackoff bool
	RetryJitter        bool

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	BufferSize     int

	ResumeEnabled    bool
	FileExistsAction FileExistsAction
	FilenameStrategy FilenameStrategy

	FollowRedirects bool
	MaxRedirects    int

	Method string
	Body   []byte

	UserAgent string
	VerifyTLS bool
	Headers   []Header

	// ExpectedSize of the complete file; 0 means unchecked.
	ExpectedSize int64
	// ExpectedChecksum is the hex digest to verify after a complete
	// download; empty or ChecksumAlgorithm None disables verification.
	ExpectedChecksum  string
	ChecksumAlgorithm checksum.Algorithm

	ProgressMinInterval time.Duration

	CreateDirs     bool
	InferExtension bool
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		MaxRetries:          3,
		RetryDelayBase:      time.Second,
		RetryDelayCap:       30 * time.Second,
		ExponentialBackoff:  true,
		RetryJitter:         true,
		ConnectTimeout:      30 * time.Second,
		ReadTimeout:         60 * time.Second,
		BufferSize:          DefaultBufferSize,
		ResumeEnabled:       true,
		FileExistsAction:    ResumeOrOverwrite,
		FilenameStrategy:    NameExact,
		FollowRedirects:     true,
		MaxRedirects:        10,
		VerifyTLS:           true,
		ProgressMinInterval: 100 * time.Millisecond,
		CreateDirs:          true,
	}
}

// Validate checks the buffer size bounds. All other fields intentionally
// accept any value.
func (c Config) Validate() error {
	if c.BufferSize <= 0 {
		return &ConfigError{Field: "BufferSize", Err: ErrInvalidBufferSize}
	}
	if c.BufferSize > MaxBufferSize {
		return &ConfigError{Field: "BufferSize", Err: ErrBufferSizeTooLarge}
	}
	return nil
}

// EffectiveUserAgent returns the configured value or the library default.
func (c Config) EffectiveUserAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return DefaultUserAgent
}

// ForLargeFiles returns a derived config tuned for big transfers: a wide
// buffer, patient timeouts, and a bigger retry budget.
func (c Config) ForLargeFiles() Config {
	c.BufferSize = 8 * 1024 * 1024
	c.ReadTimeout = 5 * time.Minute
	c.MaxRetries = 5
	return c
}

// ForSmallFiles returns a derived config tuned for many small transfers.
func (c Config) ForSmallFiles() Config {
	c.BufferSize = 64 * 1024
	c.ReadTimeout = 30 * time.Second
	return c
}

// NoResume returns a derived config with resumption disabled.
func (c Config) NoResume() Config {
	c.ResumeEnabled = false
	if c.FileExistsAction == ResumeOrOverwrite {
		c.FileExistsAction = Overwrite
	}
	return c
}

// NoRetries returns a derived config that gives up after one attempt.
func (c Config) NoRetries() Config {
	c.MaxRetries = 0
	return c
}
