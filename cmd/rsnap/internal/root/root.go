// Package root implements rsnap's command-line surface: option parsing,
// help/version printing, and translation of flags into a snapshot.Config.
// It is grounded on mutagen's cmd/mutagen root command (cobra.Command +
// pflag, cmd.Fatal-style error reporting) and on rdup.c's usage() for the
// flag semantics themselves.
package root

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/a1s/rsnap/internal/config"
	"github.com/a1s/rsnap/internal/logging"
	"github.com/a1s/rsnap/internal/signals"
	"github.com/a1s/rsnap/report"
	"github.com/a1s/rsnap/snapshot"
	"github.com/a1s/rsnap/snapshot/classify"
	"github.com/a1s/rsnap/snapshot/codec"
	"github.com/a1s/rsnap/snapshot/crawl"
)

// ExitSignalAborted is the exit code used when a signal aborted the run
// before the filelist could be rewritten, per SPEC_FULL.md's resolution of
// Open Question 2 (the conventional 128+SIGINT value).
const ExitSignalAborted = 130

// ErrSignalAborted is returned by Execute (via the cobra RunE chain) when a
// run was aborted by a signal. main checks for it with == to select
// ExitSignalAborted instead of the generic failure code.
var ErrSignalAborted = errors.New("rsnap: aborted by signal")

// flags holds the raw command-line state bound by pflag. It is translated
// into a snapshot.Config in runE.
var flags struct {
	null          bool
	oneFilesystem bool
	noNobackup    bool
	verbose       int
	size          int64
	timestamp     string
	exclude       string
	removedOnly   bool
	modifiedOnly  bool
	format        string
	configPath    string
}

// Command is rsnap's root cobra command.
var Command = &cobra.Command{
	Use:   "rsnap FILELIST DIR...",
	Short: "rsnap generates a full or incremental filesystem snapshot list",
	Long: "rsnap generates a full or incremental file list; this\n" +
		"list can be used to implement an (incremental) backup scheme.",
	Args:          cobra.MinimumNArgs(2),
	RunE:          runE,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flagSet := Command.Flags()
	flagSet.BoolVarP(&flags.null, "null", "0", false, "delimit all input/output with NUL bytes")
	flagSet.BoolVarP(&flags.oneFilesystem, "one-filesystem", "x", false, "stay in the local file system")
	flagSet.BoolVarP(&flags.noNobackup, "no-nobackup", "n", false, "do not look at .nobackup files")
	flagSet.CountVarP(&flags.verbose, "verbose", "v", "be more verbose (may be given twice)")
	flagSet.Int64VarP(&flags.size, "max-size", "s", 0, "skip regular files larger than SIZE bytes")
	flagSet.StringVarP(&flags.timestamp, "timestamp", "N", "", "use the change-time of FILE for incremental dumps")
	flagSet.StringVar(&flags.exclude, "exclude", "", "regular expression of paths to exclude from the crawl")
	flagSet.BoolVar(&flags.removedOnly, "removed-only", false, "only report removed entries")
	flagSet.BoolVar(&flags.modifiedOnly, "modified-only", false, "only report modified entries")
	flagSet.StringVar(&flags.format, "format", "", "printf-like report line format")
	flagSet.StringVar(&flags.configPath, "config", "", "path to a persisted defaults file (defaults to ~/.rsnap/config.yaml)")
}

func runE(cmd *cobra.Command, args []string) error {
	logger := logging.RootLogger.Sublogger("rsnap")
	if flags.verbose > 2 {
		flags.verbose = 2
	}
	switch flags.verbose {
	case 1:
		logger.SetLevel(logging.LevelInfo)
	case 2:
		logger.SetLevel(logging.LevelDebug)
		logger.AssignRunID()
	default:
		logger.SetLevel(logging.LevelWarn)
	}

	cfg, err := loadPersistedDefaults()
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}

	exclude := flags.exclude
	if exclude == "" {
		exclude = cfg.Exclude
	}
	excludePattern, err := snapshot.CompileExclude(exclude)
	if err != nil {
		return fmt.Errorf("invalid --exclude pattern: %w", err)
	}

	maxSize := flags.size
	if maxSize == 0 {
		maxSize = cfg.MaxSize
	}

	respectNobackup := cfg.ShouldRespectNobackup()
	if flags.noNobackup {
		respectNobackup = false
	}

	delim := codec.Newline
	if flags.null {
		delim = codec.Null
	}

	var classifier *classify.Classifier
	if flags.timestamp != "" {
		classifier = classify.NewTimestamp(snapshot.AnchorTime(flags.timestamp))
	} else {
		classifier = classify.NewDefault()
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("unable to determine working directory: %w", err)
	}

	snapshotConfig := snapshot.Config{
		FilelistPath:     args[0],
		Roots:            args[1:],
		WorkingDirectory: wd,
		Delimiter:        delim,
		Crawl: crawl.Config{
			OneFilesystem:   flags.oneFilesystem || cfg.OneFilesystem,
			RespectNobackup: respectNobackup,
			MaxSize:         maxSize,
			Exclude:         excludePattern,
		},
		Classifier: classifier,
		AnchorPath: flags.timestamp,
		Logger:     logger,
	}

	format := flags.format
	if format == "" {
		format = cfg.Format
	}
	sink := report.NewLineSink(os.Stdout, format, flags.removedOnly, flags.modifiedOnly)

	ctx, stop := signals.WatchContext(context.Background())
	defer stop()

	runErr := snapshot.Run(ctx, snapshotConfig, sink)

	if flushErr := sink.Flush(); flushErr != nil && runErr == nil {
		runErr = fmt.Errorf("unable to flush report output: %w", flushErr)
	}

	if errors.Is(runErr, snapshot.ErrAborted) {
		return ErrSignalAborted
	}
	return runErr
}

// loadPersistedDefaults reads the configuration file named by --config, or
// the default ~/.rsnap/config.yaml if --config was not given.
func loadPersistedDefaults() (*config.Config, error) {
	path := flags.configPath
	if path == "" {
		defaultPath, err := config.DefaultPath()
		if err != nil {
			// A home directory lookup failure is not fatal: it just means
			// no persisted defaults are available.
			return &config.Config{}, nil
		}
		path = defaultPath
	}
	return config.Load(path)
}
