package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauver/snatch/internal/config"
)

// maxRenameProbes bounds the numbered-path search so a pathological
// directory cannot loop forever.
const maxRenameProbes = 10000

var ErrTooManyRenames = errors.New("no free numbered path found")

// NumberedPath probes "name (1).ext", "name (2).ext", ... and returns the
// first path that does not exist.
func NumberedPath(outputPath string) (string, error) {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	for i := 1; i <= maxRenameProbes; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", name, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", ErrTooManyRenames
}

// ParseHeaderArgs converts "Name: Value" strings into an ordered header
// list. Entries without a colon are dropped; duplicates are kept.
func ParseHeaderArgs(headers []string) []config.Header {
	var result []config.Header
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			continue
		}
		result = append(result, config.Header{
			Name:  strings.TrimSpace(parts[0]),
			Value: strings.TrimSpace(parts[1]),
		})
	}
	return result
}

// ParseContentRange parses a Content-Range header value like
// "bytes 100-199/1000". total is -1 for "*" (unknown).
func ParseContentRange(header string) (start, end, total int64, err error) {
	header = strings.TrimPrefix(header, "bytes ")
	parts := strings.Split(header, "/")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}
	rangeParts := strings.Split(parts[0], "-")
	if len(rangeParts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}
	start, err = strconv.ParseInt(rangeParts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}
	end, err = strconv.ParseInt(rangeParts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}
	if parts[1] == "*" {
		total = -1
	} else {
		total, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
		}
	}
	return start, end, total, nil
}
