// Command symboldb is the CLI driver for the ABI-level package-universe
// indexer: it ingests RPMs (locally or from yum/DNF repositories), maintains
// named package sets and their link closures, and answers a handful of
// query/maintenance subcommands.
//
// The dispatch style mirrors cmd/cctool/main.go: one flag.FlagSet, a
// subcommand table, and signal-driven context cancellation — adapted from
// cctool's single positional-subcommand-word dispatch to a table of mutually
// exclusive action flags (the CLI's subcommand IS the flag that selects it,
// not a following positional word).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/quay/zlog"
	"github.com/rs/zerolog"

	"github.com/symboldb/symboldb/config"
	"github.com/symboldb/symboldb/errs"
	"github.com/symboldb/symboldb/fetch"
	"github.com/symboldb/symboldb/filecache"
	"github.com/symboldb/symboldb/ingest"
	"github.com/symboldb/symboldb/store/postgres"
)

// action is one CLI subcommand's handler. args is the flag set's remaining
// positional operands (file paths or URLs, per the action).
type action func(ctx context.Context, env *environment, args []string) error

// environment bundles the collaborators every action needs: the
// configuration, a fetch client, the file cache, and (lazily) a store
// connection, since --create-schema never needs a live database.
type environment struct {
	cfg   *config.Config
	fetch *fetch.Client

	databaseURI string
	cache       *filecache.Cache
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
		With().Timestamp().Logger()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		<-ch
		cancel()
	}()

	err := run(ctx, &log, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errs.Prefix(err), err)
	}
	os.Exit(errs.ExitCode(err))
}

func run(ctx context.Context, log *zerolog.Logger, argv []string) error {
	cfg := config.New()
	fs := flag.NewFlagSet("symboldb", flag.ContinueOnError)
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		fs.PrintDefaults()
	}
	cfg.RegisterFlags(fs)

	var (
		createSchema        bool
		loadRPM             bool
		createSet           string
		updateSet           string
		updateSetFromRepo   string
		download            bool
		showRepomd          bool
		showPrimary         bool
		downloadRepo        bool
		loadRepo            bool
		showSourcePackages  bool
		showStaleCachedRPMs bool
		showSonameConflicts string
		expire              bool
		databaseURI         string
	)
	fs.BoolVar(&createSchema, "create-schema", false, "emit the relational schema DDL to stdout")
	fs.BoolVar(&loadRPM, "load-rpm", false, "ingest local RPM files")
	fs.StringVar(&createSet, "create-set", "", "ingest local RPM files and create a new package set NAME")
	fs.StringVar(&updateSet, "update-set", "", "ingest local RPM files and replace package set NAME's membership")
	fs.StringVar(&updateSetFromRepo, "update-set-from-repo", "", "ingest repository URLs and replace package set NAME's membership")
	fs.BoolVar(&download, "download", false, "fetch a URL through the download policy and write its bytes to stdout")
	fs.BoolVar(&showRepomd, "show-repomd", false, "print a repository's repomd.xml metadata")
	fs.BoolVar(&showPrimary, "show-primary", false, "print a repository's primary.xml package descriptors")
	fs.BoolVar(&downloadRepo, "download-repo", false, "fetch and ingest every package in the given repositories (same as -load-repo)")
	fs.BoolVar(&loadRepo, "load-repo", false, "fetch and ingest every package in the given repositories")
	fs.BoolVar(&showSourcePackages, "show-source-packages", false, "collapse a repository's packages to their distinct source package names")
	fs.BoolVar(&showStaleCachedRPMs, "show-stale-cached-rpms", false, "list file-cache digests no longer referenced by any package")
	fs.StringVar(&showSonameConflicts, "show-soname-conflicts", "", "report link-closure soname conflicts for package set SET")
	fs.BoolVar(&expire, "expire", false, "remove expired url-cache rows, unreferenced packages/files, and stale cached RPMs")
	fs.StringVar(&databaseURI, "database-uri", os.Getenv("SYMBOLDB_DATABASE_URI"), "PostgreSQL connection string (env SYMBOLDB_DATABASE_URI)")

	if err := fs.Parse(argv); err != nil {
		return &errs.Usage{Msg: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	*log = log.Level(logLevel(cfg))
	zlog.Set(log)

	selected := map[string]bool{
		"create-schema":          createSchema,
		"load-rpm":               loadRPM,
		"create-set":             createSet != "",
		"update-set":             updateSet != "",
		"update-set-from-repo":   updateSetFromRepo != "",
		"download":               download,
		"show-repomd":            showRepomd,
		"show-primary":           showPrimary,
		"download-repo":          downloadRepo,
		"load-repo":              loadRepo,
		"show-source-packages":   showSourcePackages,
		"show-stale-cached-rpms": showStaleCachedRPMs,
		"show-soname-conflicts":  showSonameConflicts != "",
		"expire":                 expire,
	}
	var name string
	for n, on := range selected {
		if !on {
			continue
		}
		if name != "" {
			return &errs.Usage{Msg: fmt.Sprintf("only one subcommand may be given; got %q and %q", name, n)}
		}
		name = n
	}
	if name == "" {
		fs.Usage()
		return &errs.Usage{Msg: "no subcommand given"}
	}

	if name == "create-schema" {
		return actionCreateSchema(ctx, nil, fs.Args())
	}

	fc, err := filecache.New(cfg.CacheDir, false)
	if err != nil {
		return err
	}
	env := &environment{cfg: cfg, fetch: fetch.New(), databaseURI: databaseURI, cache: fc}

	var act action
	switch name {
	case "load-rpm":
		act = actionLoadRPM
	case "create-set":
		act = func(ctx context.Context, env *environment, args []string) error {
			return actionIngestLocal(ctx, env, createSet, args)
		}
	case "update-set":
		act = func(ctx context.Context, env *environment, args []string) error {
			return actionIngestLocal(ctx, env, updateSet, args)
		}
	case "update-set-from-repo":
		act = func(ctx context.Context, env *environment, args []string) error {
			return actionIngestRepo(ctx, env, updateSetFromRepo, args)
		}
	case "download":
		act = actionDownload
	case "show-repomd":
		act = actionShowRepomd
	case "show-primary":
		act = actionShowPrimary
	case "download-repo":
		act = func(ctx context.Context, env *environment, args []string) error {
			return actionIngestRepo(ctx, env, "", args)
		}
	case "load-repo":
		act = func(ctx context.Context, env *environment, args []string) error {
			return actionIngestRepo(ctx, env, "", args)
		}
	case "show-source-packages":
		act = actionShowSourcePackages
	case "show-stale-cached-rpms":
		act = actionShowStaleCachedRPMs
	case "show-soname-conflicts":
		act = func(ctx context.Context, env *environment, args []string) error {
			return actionShowSonameConflicts(ctx, env, showSonameConflicts)
		}
	case "expire":
		act = actionExpire
	}
	return act(ctx, env, fs.Args())
}

// connectStore opens the relational store for actions that need one; every
// action except --create-schema does.
func (e *environment) connectStore(ctx context.Context) (*postgres.Store, func(), error) {
	if e.databaseURI == "" {
		return nil, nil, &errs.Config{Msg: "-database-uri (or SYMBOLDB_DATABASE_URI) is required for this subcommand"}
	}
	pool, err := postgres.Connect(ctx, e.databaseURI, "symboldb")
	if err != nil {
		return nil, nil, &errs.DB{Err: err}
	}
	st := postgres.New(pool)
	return st, func() { st.Close(ctx) }, nil
}

func (e *environment) ingestOptions() ingest.Options {
	return ingest.Options{
		DownloadThreads:      e.cfg.DownloadThreads,
		NoNet:                e.cfg.NoNet,
		IgnoreDownloadErrors: e.cfg.IgnoreDownloadErrors,
		Randomize:            e.cfg.Randomize,
		ExcludeName:          e.cfg.ExcludeName,
	}
}

func logLevel(cfg *config.Config) zerolog.Level {
	switch {
	case cfg.Quiet:
		return zerolog.WarnLevel
	case cfg.Verbose:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
