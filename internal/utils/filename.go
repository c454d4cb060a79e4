package utils

import (
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/h2non/filetype"
	"github.com/vfaronov/httpheader"

	"github.com/klauver/snatch/internal/config"
)

// DefaultFilename is the fallback when nothing usable can be derived.
const DefaultFilename = "download"

// ResolveFilename derives the output filename from the response headers
// and URL per the configured strategy. Content-Disposition wins over the
// URL when both are in play.
func ResolveFilename(rawurl string, header http.Header, strategy config.FilenameStrategy) string {
	var candidate string
	if strategy == config.NameFromHeaders || strategy == config.NameAuto {
		if _, name, err := httpheader.ContentDisposition(header); err == nil && name != "" {
			candidate = name
		}
	}
	if candidate == "" && (strategy == config.NameFromURL || strategy == config.NameAuto) {
		if parsed, err := url.Parse(rawurl); err == nil {
			candidate = filepath.Base(parsed.Path)
			if candidate == "." || candidate == "/" {
				candidate = ""
			}
		}
	}
	name := SanitizeFilename(candidate)
	if name == "" {
		name = DefaultFilename
	}
	return name
}

// SanitizeFilename strips characters that are unsafe across platforms:
// <>:"/\|?* and control bytes, then trims trailing spaces and dots.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return -1
		}
		return r
	}, name)
	name = strings.TrimRight(name, " .")
	return name
}

// SniffExtension inspects the first bytes of downloaded content and
// returns a file extension from its magic numbers, or "" when unknown.
func SniffExtension(head []byte) string {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.Extension
}
