package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/klauver/snatch/internal/checksum"
	"github.com/klauver/snatch/internal/client"
	"github.com/klauver/snatch/internal/config"
	"github.com/klauver/snatch/internal/dlerr"
	"github.com/klauver/snatch/internal/output"
	"github.com/klauver/snatch/internal/progress"
	"github.com/klauver/snatch/internal/s3"
	"github.com/klauver/snatch/internal/state"
	"github.com/klauver/snatch/internal/updatecheck"
	"github.com/klauver/snatch/internal/utils"
)

var SnatchVersion = "dev"

var (
	outputPath       string
	retries          int
	retryDelay       time.Duration
	retryCap         time.Duration
	noBackoff        bool
	noJitter         bool
	connectTimeout   time.Duration
	readTimeout      time.Duration
	bufferSizeFlag   string
	noResume         bool
	ifExists         string
	maxRedirects     int
	noFollow         bool
	userAgent        string
	insecure         bool
	headers          []string
	expectedSize     string
	checksumSpec     string
	progressInterval time.Duration
	inferExt         bool
	awsProfile       string
	debug            bool
	quiet            bool
	noHistory        bool
	noUpdateCheck    bool
	workers          int
)

var rootCmd = &cobra.Command{
	Use:     "snatch [URL]",
	Short:   "Snatch is a resumable file download tool",
	Version: SnatchVersion,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		utils.InitLogger(debug)
		if len(args) == 0 {
			return fmt.Errorf("no URL provided")
		}
		cfg, err := buildConfig()
		if err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
		ctx := cmd.Context()
		if !noUpdateCheck {
			checker := &updatecheck.Checker{Version: SnatchVersion}
			if latest, outdated := checker.Outdated(ctx); outdated {
				output.PrintWarning(fmt.Sprintf("A newer release is available: %s", latest))
			}
		}
		if err := runDownload(ctx, args[0], cfg); err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
		return nil
	},
}

func runDownload(ctx context.Context, rawurl string, cfg config.Config) error {
	var cb client.ProgressFunc
	if !quiet {
		cb = func(s progress.Snapshot) bool {
			fmt.Printf("\r%s    ", output.RenderSnapshot(s))
			return true
		}
	}

	start := time.Now()
	var n int64
	var err error
	if strings.HasPrefix(rawurl, "s3://") {
		var fetcher *s3.Fetcher
		fetcher, err = s3.NewFetcher(ctx, awsProfile, int64(cfg.BufferSize))
		if err == nil {
			dest := outputPath
			if dest == "" {
				_, key, parseErr := s3.ParseURL(rawurl)
				if parseErr != nil {
					return parseErr
				}
				dest = filepath.Base(key)
			}
			n, err = fetcher.Download(ctx, rawurl, dest, s3.ProgressFunc(cb))
		}
	} else {
		var cl *client.Client
		cl, err = client.New(cfg)
		if err != nil {
			return err
		}
		n, err = cl.Download(ctx, rawurl, outputPath, cb)
	}
	if !quiet {
		fmt.Println()
	}

	if !noHistory {
		recordHistory(rawurl, cfg, n, time.Since(start), err)
	}
	if err != nil {
		return err
	}
	output.PrintSuccess(fmt.Sprintf("%s Downloaded %s in %s",
		output.StyleSymbols["pass"], humanize.IBytes(uint64(n)), output.FormatETA(time.Since(start))))
	return nil
}

func buildConfig() (config.Config, error) {
	cfg := config.Default()
	cfg.MaxRetries = retries
	cfg.RetryDelayBase = retryDelay
	cfg.RetryDelayCap = retryCap
	cfg.ExponentialBackoff = !noBackoff
	cfg.RetryJitter = !noJitter
	cfg.ConnectTimeout = connectTimeout
	cfg.ReadTimeout = readTimeout
	cfg.ResumeEnabled = !noResume
	cfg.FollowRedirects = !noFollow
	cfg.MaxRedirects = maxRedirects
	cfg.UserAgent = userAgent
	cfg.VerifyTLS = !insecure
	cfg.Headers = utils.ParseHeaderArgs(headers)
	cfg.ProgressMinInterval = progressInterval
	cfg.InferExtension = inferExt

	if bufferSizeFlag != "" {
		size, err := humanize.ParseBytes(bufferSizeFlag)
		if err != nil {
			return cfg, fmt.Errorf("invalid buffer size %q: %v", bufferSizeFlag, err)
		}
		cfg.BufferSize = int(size)
	}
	action, err := config.ParseFileExistsAction(ifExists)
	if err != nil {
		return cfg, err
	}
	cfg.FileExistsAction = action
	if noResume && cfg.FileExistsAction == config.ResumeOrOverwrite {
		cfg.FileExistsAction = config.Overwrite
	}
	if expectedSize != "" {
		size, err := humanize.ParseBytes(expectedSize)
		if err != nil {
			return cfg, fmt.Errorf("invalid expected size %q: %v", expectedSize, err)
		}
		cfg.ExpectedSize = int64(size)
	}
	algo, digest, err := checksum.ParseSpec(checksumSpec)
	if err != nil {
		return cfg, err
	}
	cfg.ChecksumAlgorithm = algo
	cfg.ExpectedChecksum = digest

	// No explicit output path means the filename comes from the server.
	if outputPath == "" || strings.HasSuffix(outputPath, string(os.PathSeparator)) || isDir(outputPath) {
		cfg.FilenameStrategy = config.NameAuto
	}
	return cfg, cfg.Validate()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".snatch-history.db"
	}
	return filepath.Join(home, ".snatch", "history.db")
}

func openHistory() *state.Store {
	path := historyPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil
	}
	store, err := state.Open(path)
	if err != nil {
		return nil
	}
	return store
}

func recordHistory(rawurl string, cfg config.Config, n int64, elapsed time.Duration, dlErr error) {
	store := openHistory()
	if store == nil {
		return
	}
	defer store.Close()
	entry := state.Entry{
		ID:       uuid.NewString(),
		URL:      rawurl,
		Path:     outputPath,
		Bytes:    n,
		Status:   "complete",
		Elapsed:  elapsed,
		Checksum: cfg.ExpectedChecksum,
	}
	if cfg.ChecksumAlgorithm != checksum.None {
		entry.Algorithm = cfg.ChecksumAlgorithm.String()
	}
	if dlErr != nil {
		entry.Status = dlerr.KindOf(dlErr).String()
	}
	store.Record(entry)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (inferred from the server if not provided)")
	rootCmd.Flags().IntVarP(&retries, "retries", "r", 3, "Number of retries for transient failures")
	rootCmd.Flags().DurationVar(&retryDelay, "retry-delay", time.Second, "Base delay between retries")
	rootCmd.Flags().DurationVar(&retryCap, "retry-cap", 30*time.Second, "Maximum delay between retries")
	rootCmd.Flags().BoolVar(&noBackoff, "no-backoff", false, "Use a constant retry delay instead of exponential backoff")
	rootCmd.Flags().BoolVar(&noJitter, "no-jitter", false, "Disable retry delay jitter")
	rootCmd.Flags().DurationVarP(&connectTimeout, "connect-timeout", "t", 30*time.Second, "Connection timeout (eg. 5s, 1m)")
	rootCmd.Flags().DurationVar(&readTimeout, "read-timeout", 60*time.Second, "Response header timeout")
	rootCmd.Flags().StringVarP(&bufferSizeFlag, "buffer-size", "b", "", "Stream buffer size (eg. 64KiB, 8MiB; max 16MiB)")
	rootCmd.Flags().BoolVar(&noResume, "no-resume", false, "Never resume partial files")
	rootCmd.Flags().StringVar(&ifExists, "if-exists", "resume", "Action when the output exists: overwrite, resume, skip, rename, fail")
	rootCmd.Flags().IntVar(&maxRedirects, "max-redirects", 10, "Maximum redirects to follow")
	rootCmd.Flags().BoolVar(&noFollow, "no-follow-redirects", false, "Do not follow redirects")
	rootCmd.Flags().StringVarP(&userAgent, "user-agent", "a", "", "User agent override")
	rootCmd.Flags().BoolVarP(&insecure, "insecure", "k", false, "Skip TLS certificate verification")
	rootCmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Bearer token'); can be specified multiple times")
	rootCmd.Flags().StringVar(&expectedSize, "expected-size", "", "Fail unless the download is exactly this size")
	rootCmd.Flags().StringVarP(&checksumSpec, "checksum", "c", "", "Verify content, algorithm:hexdigest (md5, sha1, sha256, sha512, crc32)")
	rootCmd.Flags().DurationVar(&progressInterval, "progress-interval", 100*time.Millisecond, "Minimum interval between progress updates")
	rootCmd.Flags().BoolVar(&inferExt, "infer-ext", false, "Add a file extension from magic bytes when the name has none")
	rootCmd.Flags().StringVar(&awsProfile, "aws-profile", "default", "AWS profile for s3:// downloads")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this download in history")
	rootCmd.Flags().BoolVar(&noUpdateCheck, "no-update-check", false, "Skip the release check")
}
