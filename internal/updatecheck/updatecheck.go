// Package updatecheck runs an optional release check at most once per
// Checker instance. The download engine never touches it; callers that
// want the check inject a Checker and invoke it before the first
// download.
package updatecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const defaultReleaseURL = "https://api.github.com/repos/klauver/snatch/releases/latest"

// Checker fetches the latest released version. The once-guard is scoped
// to the instance, not the process.
type Checker struct {
	URL     string
	Client  *http.Client
	Version string

	once   sync.Once
	latest string
	err    error
}

type release struct {
	TagName string `json:"tag_name"`
}

// Check returns the latest release tag. Repeated calls reuse the first
// result.
func (c *Checker) Check(ctx context.Context) (string, error) {
	c.once.Do(func() {
		c.latest, c.err = c.fetch(ctx)
	})
	return c.latest, c.err
}

// Outdated reports whether the running version differs from the latest
// release. It never returns an error; a failed check means "not
// outdated".
func (c *Checker) Outdated(ctx context.Context) (string, bool) {
	latest, err := c.Check(ctx)
	if err != nil || latest == "" || c.Version == "" || c.Version == "dev" {
		return "", false
	}
	return latest, latest != c.Version && latest != "v"+c.Version
}

func (c *Checker) fetch(ctx context.Context) (string, error) {
	url := c.URL
	if url == "" {
		url = defaultReleaseURL
	}
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release check returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var rel release
	if err := json.Unmarshal(body, &rel); err != nil {
		return "", err
	}
	return rel.TagName, nil
}
