// Package config holds the common knobs every symboldb subcommand shares:
// the file cache directory, the download policy's network/randomization
// behavior, worker counts, and logging verbosity. A [Config] is populated
// from a [flag.FlagSet] in cmd/symboldb, mirroring cmd/cctool's single
// common-config-plus-subcommand-dispatch pattern.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/symboldb/symboldb/errs"
)

// DefaultDownloadThreads is the worker-pool size used when the caller
// doesn't override it.
const DefaultDownloadThreads = 4

// Config carries the options every subcommand shares.
type Config struct {
	// CacheDir roots the file cache (C2); defaults to ~/.cache/symboldb.
	CacheDir string

	// NoNet disables network access entirely; only cached artifacts can be
	// used.
	NoNet bool
	// Randomize shuffles the ingestion work list before the first round.
	Randomize bool
	// IgnoreDownloadErrors, once three rounds exhaust retries, logs and
	// proceeds instead of aborting, provided at least one package loaded.
	IgnoreDownloadErrors bool
	// ExcludeName, when non-nil, drops any package whose name matches.
	ExcludeName *regexp.Regexp

	// DownloadThreads is the worker-pool size for C10.
	DownloadThreads int

	// Quiet and Verbose adjust logging severity; they are mutually
	// exclusive, enforced by Validate.
	Quiet   bool
	Verbose bool
}

// New returns a Config with every field at its default.
func New() *Config {
	return &Config{
		CacheDir:        defaultCacheDir(),
		DownloadThreads: DefaultDownloadThreads,
	}
}

// defaultCacheDir returns ~/.cache/symboldb, consulting HOME directly
// rather than os.UserHomeDir (which on non-Unix platforms consults
// different variables this CLI never targets).
func defaultCacheDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		return filepath.Join(os.TempDir(), "symboldb-cache")
	}
	return filepath.Join(home, ".cache", "symboldb")
}

// RegisterFlags binds fs's common flags to c. ExcludeName is repeatable;
// repeats are combined with "|" into a single compiled regexp.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.CacheDir, "cache", c.CacheDir, "file cache root directory")
	fs.BoolVar(&c.NoNet, "no-net", c.NoNet, "never access the network; use only cached artifacts")
	fs.BoolVar(&c.Randomize, "randomize", c.Randomize, "shuffle the ingestion work list before downloading")
	fs.BoolVar(&c.IgnoreDownloadErrors, "ignore-download-errors", c.IgnoreDownloadErrors, "proceed after retries are exhausted if any package loaded")
	fs.IntVar(&c.DownloadThreads, "download-threads", c.DownloadThreads, "concurrent download workers per round")
	fs.BoolVar(&c.Quiet, "quiet", c.Quiet, "suppress info-level logging")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "enable debug-level logging")
	fs.Var(&excludeNameFlag{c}, "exclude-name", "exclude packages whose name matches REGEXP (repeatable)")
}

// excludeNameFlag adapts the repeatable -exclude-name flag onto
// Config.ExcludeName, combining repeats into one alternation.
type excludeNameFlag struct{ c *Config }

func (f *excludeNameFlag) String() string {
	if f.c == nil || f.c.ExcludeName == nil {
		return ""
	}
	return f.c.ExcludeName.String()
}

func (f *excludeNameFlag) Set(s string) error {
	parts := []string{s}
	if f.c.ExcludeName != nil {
		parts = []string{f.c.ExcludeName.String(), s}
	}
	re, err := regexp.Compile(strings.Join(parts, "|"))
	if err != nil {
		return &errs.Config{Msg: fmt.Sprintf("invalid -exclude-name pattern %q: %v", s, err)}
	}
	f.c.ExcludeName = re
	return nil
}

// Validate checks the options that can only be judged once parsing is
// complete: conflicting flags, an unusable cache directory.
func (c *Config) Validate() error {
	if c.Quiet && c.Verbose {
		return &errs.Config{Msg: "-quiet and -verbose are mutually exclusive"}
	}
	if c.DownloadThreads < 1 {
		return &errs.Config{Msg: fmt.Sprintf("-download-threads must be at least 1, got %d", c.DownloadThreads)}
	}
	if c.CacheDir == "" {
		return &errs.Config{Msg: "cache directory must not be empty"}
	}
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return &errs.Config{Msg: fmt.Sprintf("creating cache directory %s: %v", c.CacheDir, err)}
	}
	return nil
}
