// Package snapshot is the orchestrator: it sequences loading the prior
// snapshot, crawling the current filesystem state, diffing and classifying
// the two, driving a report.Sink, and rewriting the persisted filelist in
// place (truncate, then write). It is grounded on rdup.c's main(), reshaped (per SPEC_FULL.md's
// design notes) around a single immutable Config value rather than global
// option state.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/a1s/rsnap/internal/logging"
	"github.com/a1s/rsnap/report"
	"github.com/a1s/rsnap/snapshot/classify"
	"github.com/a1s/rsnap/snapshot/codec"
	"github.com/a1s/rsnap/snapshot/crawl"
	"github.com/a1s/rsnap/snapshot/diff"
	"github.com/a1s/rsnap/snapshot/entry"
	"github.com/a1s/rsnap/snapshot/set"
)

// maxArgumentLength caps the length of any root argument, matching rdup.c's
// BUFSIZE-based overrun check.
const maxArgumentLength = 4096

// ErrAborted is returned by Run when a signal aborted the crawl before the
// filelist could be rewritten. Per SPEC_FULL.md's resolution of Open
// Question 2, the CLI layer maps this to a dedicated non-zero exit code
// rather than the generic fatal-error code.
var ErrAborted = errors.New("snapshot aborted by signal")

// Config holds everything the orchestrator needs for a single run. It is
// constructed once by the CLI layer and never mutated, replacing rdup.c's
// process-wide option globals (SPEC_FULL.md §9, "Global option block").
type Config struct {
	// FilelistPath is the path to the persisted snapshot log.
	FilelistPath string
	// Roots are the crawl roots, as given on the command line (possibly
	// relative).
	Roots []string
	// WorkingDirectory is the directory relative roots are resolved
	// against; it is captured once at startup (SPEC_FULL.md §6,
	// "Environment").
	WorkingDirectory string
	// Delimiter selects the filelist record terminator.
	Delimiter codec.Delimiter
	// Crawl holds the crawler's policy knobs.
	Crawl crawl.Config
	// Classifier selects the change-detection strategy. A nil Classifier is
	// treated as classify.NewDefault().
	Classifier *classify.Classifier
	// AnchorPath, when non-empty, is touched (its modification time
	// advanced to now) after a successful run, per SPEC_FULL.md §4.7 step
	// 10.
	AnchorPath string
	// Logger receives diagnostics. A nil Logger discards them.
	Logger *logging.Logger
}

// Run executes one full orchestration cycle: load, crawl, diff, classify,
// emit, rewrite. It implements SPEC_FULL.md §4.7 steps 1-11.
func Run(ctx context.Context, cfg Config, sink report.Sink) error {
	logger := cfg.Logger

	// Step 1: refuse to run when real and effective identities differ.
	if os.Getuid() != os.Geteuid() || os.Getgid() != os.Getegid() {
		return fmt.Errorf("refusing to run suid/sgid")
	}

	// Step 2: resolve roots, capping argument length.
	roots := make([]string, len(cfg.Roots))
	for i, root := range cfg.Roots {
		if len(root) > maxArgumentLength {
			return fmt.Errorf("argument length overrun: %q", root)
		}
		if filepath.IsAbs(root) {
			roots[i] = entry.Normalize(root)
		} else {
			roots[i] = entry.Normalize(filepath.Join(cfg.WorkingDirectory, root))
		}
	}
	if len(roots) == 0 {
		return fmt.Errorf("no crawl roots specified")
	}

	// Step 3: open the filelist for reading and writing (creating it if
	// absent, never truncating it on open), then rewind. This
	// file descriptor is the commit anchor: it stays open across the read
	// and the eventual rewrite.
	isNullSink := cfg.FilelistPath == os.DevNull
	file, err := os.OpenFile(cfg.FilelistPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("unable to open filelist: %w", err)
	}
	defer file.Close()
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("unable to rewind filelist: %w", err)
	}

	// Step 5: parse the prior snapshot. Corrupted records are skipped with
	// a diagnostic; they never abort the run.
	prior := codec.Parse(file, cfg.Delimiter, logger)

	// Step 6: crawl each root, producing the current snapshot.
	current := set.New()
	for _, root := range roots {
		if err := crawl.Walk(ctx, cfg.Crawl, root, current, logger); err != nil {
			return fmt.Errorf("crawl of %q failed: %w", root, err)
		}
	}

	if ctx.Err() != nil {
		return ErrAborted
	}

	// Step 7: compute the three-way partition.
	result := diff.Compute(prior, current)

	// Step 8 (classifier): filter ChangedRaw down to changed.
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = classify.NewDefault()
	}
	changed := set.New()
	result.ChangedRaw.Range(func(e *entry.Entry) bool {
		old, ok := prior.Get(e.Path)
		if !ok {
			return true
		}
		if classifier.Changed(old, e) {
			changed.Insert(e)
		}
		return true
	})

	if ctx.Err() != nil {
		return ErrAborted
	}

	// Step 8 (drive the sink): removed, then changed, then new, each in the
	// set's in-order traversal.
	if err := driveSink(result.Removed, sink.Removed); err != nil {
		return fmt.Errorf("sink write failed: %w", err)
	}
	if err := driveSink(changed, sink.Modified); err != nil {
		return fmt.Errorf("sink write failed: %w", err)
	}
	if err := driveSink(result.New, sink.New); err != nil {
		return fmt.Errorf("sink write failed: %w", err)
	}

	if ctx.Err() != nil {
		return ErrAborted
	}

	// Step 9: truncate and rewrite the filelist, unless it's the null sink.
	if !isNullSink {
		if err := file.Truncate(0); err != nil {
			return fmt.Errorf("unable to truncate filelist: %w", err)
		}
		if _, err := file.Seek(0, 0); err != nil {
			return fmt.Errorf("unable to rewind filelist before rewrite: %w", err)
		}
		if err := codec.Emit(file, current, cfg.Delimiter); err != nil {
			return fmt.Errorf("unable to rewrite filelist: %w", err)
		}
	}

	// Step 10: recreate the timestamp anchor so its change-time
	// advances to now.
	if cfg.AnchorPath != "" {
		if err := touch(cfg.AnchorPath); err != nil {
			return fmt.Errorf("unable to update timestamp anchor: %w", err)
		}
	}

	return nil
}

// driveSink calls emit for every entry in s, stopping at the first error.
func driveSink(s *set.Set, emit func(*entry.Entry) error) error {
	var emitErr error
	s.Range(func(e *entry.Entry) bool {
		emitErr = emit(e)
		return emitErr == nil
	})
	return emitErr
}

// touch updates path's modification time to now, creating it if it doesn't
// exist, matching rdup.c's re-creation of the timestamp file after a
// successful run.
func touch(path string) error {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		f, createErr := os.Create(path)
		if createErr != nil {
			return createErr
		}
		return f.Close()
	}
	return nil
}

// AnchorTime stats path and returns its change-time, or the zero time.Time
// if the anchor file does not exist (SPEC_FULL.md §4.6's "full dump"
// fallback).
func AnchorTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// CompileExclude compiles a single exclusion pattern, returning nil if
// pattern is empty. It is a thin convenience used by the CLI layer; the
// crawler itself only ever sees a compiled *regexp.Regexp, per SPEC_FULL.md
// §4.4.
func CompileExclude(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}
