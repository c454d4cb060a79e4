package utils

import (
	"net/http"
	"testing"

	"github.com/klauver/snatch/internal/config"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"bad<file>.txt", "badfile.txt"},
		{`a:b"c|d?e*f.txt`, "abcdef.txt"},
		{"trailing. . .", "trailing"},
		{"spaces   ", "spaces"},
		{"../../etc/passwd", "passwd"},
		{`..\..\windows\system32`, "system32"},
		{"with\x00control\x1f.bin", "withcontrol.bin"},
		{".", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveFilename(t *testing.T) {
	withDisposition := http.Header{}
	withDisposition.Set("Content-Disposition", `attachment; filename="quarterly report.pdf"`)

	tests := []struct {
		name     string
		url      string
		header   http.Header
		strategy config.FilenameStrategy
		want     string
	}{
		{"url path", "https://example.com/files/data.tar.gz", http.Header{}, config.NameFromURL, "data.tar.gz"},
		{"url with query", "https://example.com/files/data.bin?token=abc", http.Header{}, config.NameFromURL, "data.bin"},
		{"disposition wins", "https://example.com/files/data.bin", withDisposition, config.NameAuto, "quarterly report.pdf"},
		{"headers only", "https://example.com/files/data.bin", withDisposition, config.NameFromHeaders, "quarterly report.pdf"},
		{"headers only, none present", "https://example.com/files/data.bin", http.Header{}, config.NameFromHeaders, DefaultFilename},
		{"auto falls back to url", "https://example.com/files/data.bin", http.Header{}, config.NameAuto, "data.bin"},
		{"bare host", "https://example.com/", http.Header{}, config.NameAuto, DefaultFilename},
		{"no path", "https://example.com", http.Header{}, config.NameAuto, DefaultFilename},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveFilename(tt.url, tt.header, tt.strategy); got != tt.want {
				t.Errorf("ResolveFilename = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveFilenameSanitizesDisposition(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Disposition", `attachment; filename="../../evil.sh"`)
	got := ResolveFilename("https://example.com/x", h, config.NameAuto)
	if got != "evil.sh" {
		t.Errorf("ResolveFilename = %q, want evil.sh", got)
	}
}
