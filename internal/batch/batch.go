// Package batch runs many downloads from a YAML manifest. Parallelism
// comes from independent clients on separate goroutines; no download
// state is shared between workers.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/klauver/snatch/internal/checksum"
	"github.com/klauver/snatch/internal/client"
	"github.com/klauver/snatch/internal/config"
	"github.com/klauver/snatch/internal/dlerr"
	"github.com/klauver/snatch/internal/output"
	"github.com/klauver/snatch/internal/state"
)

// Entry is one manifest line.
type Entry struct {
	Link     string `yaml:"link"`
	Output   string `yaml:"op,omitempty"`
	Checksum string `yaml:"checksum,omitempty"` // algorithm:hexdigest
}

// File is the manifest layout.
type File struct {
	Downloads []Entry `yaml:"downloads"`
}

// Load reads and parses a YAML manifest, dropping entries with no link.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing manifest: %w", err)
	}
	var entries []Entry
	for _, e := range f.Downloads {
		if e.Link == "" {
			log.Warn().Str("op", "batch/load").Msg("Skipping manifest entry with empty link")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Run downloads all entries with the given number of workers. Each
// worker owns its own client. history may be nil.
func Run(ctx context.Context, entries []Entry, workers int, cfg config.Config, history *state.Store) error {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(entries) {
		workers = len(entries)
	}

	jobCh := make(chan Entry, len(entries))
	for _, e := range entries {
		jobCh <- e
	}
	close(jobCh)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed int
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobCh {
				if err := runOne(ctx, e, cfg, history); err != nil {
					output.PrintError(fmt.Sprintf("%s %s: %v", output.StyleSymbols["fail"], e.Link, err))
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				output.PrintSuccess(fmt.Sprintf("%s %s", output.StyleSymbols["pass"], e.Link))
			}
		}()
	}
	wg.Wait()

	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(entries))
	}
	return nil
}

func runOne(ctx context.Context, e Entry, cfg config.Config, history *state.Store) error {
	if e.Checksum != "" {
		algo, digest, err := checksum.ParseSpec(e.Checksum)
		if err != nil {
			return err
		}
		cfg.ChecksumAlgorithm = algo
		cfg.ExpectedChecksum = digest
	}
	outputPath := e.Output
	if outputPath == "" {
		cfg.FilenameStrategy = config.NameAuto
	}

	cl, err := client.New(cfg)
	if err != nil {
		return err
	}
	start := time.Now()
	n, err := cl.Download(ctx, e.Link, outputPath, nil)

	if history != nil {
		entry := state.Entry{
			ID:       uuid.NewString(),
			URL:      e.Link,
			Path:     outputPath,
			Bytes:    n,
			Status:   "complete",
			Elapsed:  time.Since(start),
			Checksum: cfg.ExpectedChecksum,
		}
		if cfg.ChecksumAlgorithm != checksum.None {
			entry.Algorithm = cfg.ChecksumAlgorithm.String()
		}
		if err != nil {
			entry.Status = dlerr.KindOf(err).String()
			var de *dlerr.Error
			if errors.As(err, &de) {
				entry.Attempts = de.Attempts
			}
		}
		if recErr := history.Record(entry); recErr != nil {
			log.Warn().Str("op", "batch/run").Err(recErr).Msg("Could not record history entry")
		}
	}
	return err
}
