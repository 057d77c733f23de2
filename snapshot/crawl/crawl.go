// Package crawl implements the filesystem walk that produces the current
// snapshot. It is grounded on synchronization/core's scan.go recursive
// directory descent (scanner.directory), reshaped per SPEC_FULL.md's design
// notes to poll a context.Context instead of a scan-local cancellation
// channel, and simplified to the flat, stat-metadata-only entry model rsnap
// needs (no hashing, no ignore-pattern engine, no executability cache).
package crawl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"syscall"

	"github.com/a1s/rsnap/internal/logging"
	"github.com/a1s/rsnap/snapshot/entry"
	"github.com/a1s/rsnap/snapshot/set"
)

// nobackupMarker is the name rdup looks for in a directory to signal that it
// should not be descended into.
const nobackupMarker = ".nobackup"

// Config holds the policy knobs that govern a single crawl, threaded down
// from the CLI layer.
type Config struct {
	// OneFilesystem stops descent at device boundaries (--one-filesystem /
	// -x). The boundary-crossing directory's own entry is still included.
	OneFilesystem bool
	// RespectNobackup causes a directory containing a ".nobackup" file to be
	// included but not descended into. It defaults to true in rdup's
	// semantics; passing --no-nobackup (-n) disables it.
	RespectNobackup bool
	// MaxSize, when greater than zero, causes regular files larger than this
	// many bytes to be skipped entirely.
	MaxSize int64
	// Exclude, when non-nil, is matched against each candidate path; a match
	// causes the entry (and, for directories, its entire subtree) to be
	// skipped with no insertion at all.
	Exclude *regexp.Regexp
}

// Walk crawls root (which must already be absolute) and inserts entries for
// root's ancestors (the "prepend" step) and for every descendant reachable
// under cfg's policy into dst. It returns only on fatal errors; per-entry
// stat failures are logged via logger and otherwise skipped, matching
// SPEC_FULL.md §4.4 and §7.
func Walk(ctx context.Context, cfg Config, root string, dst *set.Set, logger *logging.Logger) error {
	if !filepath.IsAbs(root) {
		return fmt.Errorf("crawl root %q is not absolute", root)
	}
	root = entry.Normalize(root)

	if err := prepend(root, dst, logger); err != nil {
		return err
	}

	rootInfo, err := os.Lstat(root)
	if err != nil {
		logger.Warn(fmt.Sprintf("unable to stat crawl root %q: %v", root, err))
		return nil
	}
	rootEntry, err := toEntry(root, rootInfo)
	if err != nil {
		logger.Warn(fmt.Sprintf("unable to stat crawl root %q: %v", root, err))
		return nil
	}
	dst.Insert(rootEntry)

	if !rootEntry.IsDir() {
		return nil
	}

	return descend(ctx, cfg, root, rootEntry.Dev, dst, logger)
}

// prepend synthesizes entries for "/" and every ancestor directory on the
// path from "/" to root, per SPEC_FULL.md §4.4. Duplicate ancestors from
// overlapping crawl roots are idempotent because an ancestor already present
// in dst is neither stat'd nor inserted again.
func prepend(root string, dst *set.Set, logger *logging.Logger) error {
	for _, ancestor := range entry.Ancestors(root) {
		if dst.Contains(ancestor) {
			continue
		}
		info, err := os.Lstat(ancestor)
		if err != nil {
			return fmt.Errorf("unable to stat ancestor %q: %w", ancestor, err)
		}
		e, err := toEntry(ancestor, info)
		if err != nil {
			return fmt.Errorf("unable to stat ancestor %q: %w", ancestor, err)
		}
		dst.Insert(e)
	}
	return nil
}

// descend reads the contents of the directory at path (whose own entry has
// already been inserted into dst) and recurses into every child.
func descend(ctx context.Context, cfg Config, path string, rootDev uint64, dst *set.Set, logger *logging.Logger) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	names, err := readDirNames(path)
	if err != nil {
		logger.Warn(fmt.Sprintf("unable to read directory %q: %v", path, err))
		return nil
	}

	if cfg.RespectNobackup && containsNobackup(names) {
		return nil
	}

	for _, name := range names {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		childPath := entry.Join(path, name)

		if cfg.Exclude != nil && cfg.Exclude.MatchString(childPath) {
			continue
		}

		info, err := os.Lstat(childPath)
		if err != nil {
			logger.Warn(fmt.Sprintf("unable to stat %q: %v", childPath, err))
			continue
		}

		childEntry, err := toEntry(childPath, info)
		if err != nil {
			logger.Warn(fmt.Sprintf("unable to stat %q: %v", childPath, err))
			continue
		}

		if childEntry.Mode&entry.ModeTypeMask == entry.ModeTypeRegular &&
			cfg.MaxSize > 0 && childEntry.Size > cfg.MaxSize {
			continue
		}

		if !childEntry.IsDir() {
			dst.Insert(childEntry)
			continue
		}

		if cfg.OneFilesystem && childEntry.Dev != rootDev {
			dst.Insert(childEntry)
			continue
		}

		dst.Insert(childEntry)
		if err := descend(ctx, cfg, childPath, rootDev, dst, logger); err != nil {
			return err
		}
	}

	return nil
}

// readDirNames returns the sorted base names of a directory's contents.
// Sorting is not required for correctness (the destination set imposes its
// own order), but it makes crawl output deterministic for a given directory
// listing, which simplifies testing.
func readDirNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// containsNobackup reports whether names includes the .nobackup marker.
func containsNobackup(names []string) bool {
	for _, name := range names {
		if name == nobackupMarker {
			return true
		}
	}
	return false
}

// toEntry converts a path and its lstat result into an Entry, reading the
// symbolic link target if applicable. It never follows symbolic links,
// matching rdup's lstat-based crawl.
func toEntry(path string, info os.FileInfo) (*entry.Entry, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, fmt.Errorf("unsupported stat_t representation for %q", path)
	}

	e := &entry.Entry{
		Path:    path,
		Mode:    stat.Mode,
		UID:     stat.Uid,
		GID:     stat.Gid,
		ModTime: info.ModTime(),
		Dev:     uint64(stat.Dev),
		Ino:     stat.Ino,
	}

	if e.Mode&entry.ModeTypeMask == entry.ModeTypeRegular {
		e.Size = info.Size()
	}

	if e.Mode&entry.ModeTypeMask == entry.ModeTypeSymbolicLink {
		target, err := os.Readlink(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read symbolic link: %w", err)
		}
		e.LinkTarget = target
	}

	return e, nil
}
