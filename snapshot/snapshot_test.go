package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a1s/rsnap/internal/logging"
	"github.com/a1s/rsnap/report"
	"github.com/a1s/rsnap/snapshot/codec"
	"github.com/a1s/rsnap/snapshot/entry"
)

// recordingSink implements report.Sink and records every event it receives,
// in call order, for assertions against spec.md §8's end-to-end scenarios.
type recordingSink struct {
	removed  []string
	modified []string
	new      []string
}

func (s *recordingSink) Removed(e *entry.Entry) error {
	s.removed = append(s.removed, e.Path)
	return nil
}

func (s *recordingSink) Modified(e *entry.Entry) error {
	s.modified = append(s.modified, e.Path)
	return nil
}

func (s *recordingSink) New(e *entry.Entry) error {
	s.new = append(s.new, e.Path)
	return nil
}

var _ report.Sink = (*recordingSink)(nil)

// TestFullDump mirrors spec.md §8 scenario 1: an empty filelist and a single
// regular file under the crawl root produces an entirely "new" stream.
func TestFullDump(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("abc"), 0644))

	filelist := filepath.Join(t.TempDir(), "filelist")

	sink := &recordingSink{}
	cfg := Config{
		FilelistPath:     filelist,
		Roots:            []string{root},
		WorkingDirectory: "/",
		Delimiter:        codec.Newline,
		Logger:           logging.RootLogger,
	}

	require.NoError(t, Run(context.Background(), cfg, sink))

	require.Empty(t, sink.removed)
	require.Empty(t, sink.modified)

	require.Contains(t, sink.new, root)
	require.Contains(t, sink.new, filepath.Join(root, "f"))

	content, err := os.ReadFile(filelist)
	require.NoError(t, err)
	require.NotEmpty(t, content, "expected filelist to be rewritten with the current snapshot")
}

// TestPureRemoval mirrors spec.md §8 scenario 2.
func TestPureRemoval(t *testing.T) {
	root := t.TempDir()

	filelist := filepath.Join(t.TempDir(), "filelist")
	gone := filepath.Join(root, "gone")
	record := "100644 7 7 " + strconv.Itoa(len(gone)) + " " + gone + "\n"
	require.NoError(t, os.WriteFile(filelist, []byte(record), 0644))

	sink := &recordingSink{}
	cfg := Config{
		FilelistPath:     filelist,
		Roots:            []string{root},
		WorkingDirectory: "/",
		Delimiter:        codec.Newline,
		Logger:           logging.RootLogger,
	}

	require.NoError(t, Run(context.Background(), cfg, sink))

	require.Equal(t, []string{gone}, sink.removed)
	require.Empty(t, sink.modified)
	require.Contains(t, sink.new, root, "expected ancestor prepend in new stream")
}

// TestEmptyFilelistBoundary mirrors spec.md §8's boundary behavior: an empty
// filelist yields an empty prior snapshot and reports everything as new.
func TestEmptyFilelistBoundary(t *testing.T) {
	root := t.TempDir()
	filelist := filepath.Join(t.TempDir(), "filelist")

	sink := &recordingSink{}
	cfg := Config{
		FilelistPath:     filelist,
		Roots:            []string{root},
		WorkingDirectory: "/",
		Delimiter:        codec.Newline,
		Logger:           logging.RootLogger,
	}

	require.NoError(t, Run(context.Background(), cfg, sink))
	require.Empty(t, sink.removed)
}

// TestNullSinkSkipsTruncation mirrors spec.md §8's boundary behavior for a
// filelist path equal to the system's null sink.
func TestNullSinkSkipsTruncation(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), nil, 0644))

	sink := &recordingSink{}
	cfg := Config{
		FilelistPath:     os.DevNull,
		Roots:            []string{root},
		WorkingDirectory: "/",
		Delimiter:        codec.Newline,
		Logger:           logging.RootLogger,
	}

	require.NoError(t, Run(context.Background(), cfg, sink))
	require.NotEmpty(t, sink.new, "expected diff to still be computed against the null sink")
}

// TestOverlappingRootsAreIdempotent mirrors SPEC_FULL.md's resolution of
// Open Question 3: two crawl roots sharing a subtree must not produce
// duplicate entries on the new stream.
func TestOverlappingRootsAreIdempotent(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "shared")
	require.NoError(t, os.Mkdir(child, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(child, "f"), nil, 0644))

	filelist := filepath.Join(t.TempDir(), "filelist")
	sink := &recordingSink{}
	cfg := Config{
		FilelistPath:     filelist,
		Roots:            []string{root, child},
		WorkingDirectory: "/",
		Delimiter:        codec.Newline,
		Logger:           logging.RootLogger,
	}

	require.NoError(t, Run(context.Background(), cfg, sink))

	seen := map[string]int{}
	for _, p := range sink.new {
		seen[p]++
	}
	for p, n := range seen {
		require.Equalf(t, 1, n, "path %q reported more than once across overlapping roots", p)
	}
}

// TestSignalAbortLeavesFilelistByteIdentical mirrors spec.md §8 scenario 6:
// a signal arriving mid-crawl must leave the on-disk filelist untouched and
// must surface as ErrAborted rather than a successful run.
func TestSignalAbortLeavesFilelistByteIdentical(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), nil, 0644))

	filelist := filepath.Join(t.TempDir(), "filelist")
	original := "100644 1 1 2 /a\n"
	require.NoError(t, os.WriteFile(filelist, []byte(original), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	cfg := Config{
		FilelistPath:     filelist,
		Roots:            []string{root},
		WorkingDirectory: "/",
		Delimiter:        codec.Newline,
		Logger:           logging.RootLogger,
	}

	err := Run(ctx, cfg, sink)
	require.ErrorIs(t, err, ErrAborted)

	after, readErr := os.ReadFile(filelist)
	require.NoError(t, readErr)
	require.Equal(t, original, string(after), "filelist must be byte-identical after an aborted run")
}

// TestDefaultClassifierUsedWhenNil confirms the nil-Classifier default behaves
// as classify.NewDefault(), per the Config doc comment.
func TestDefaultClassifierUsedWhenNil(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), nil, 0644))
	filelist := filepath.Join(t.TempDir(), "filelist")

	sink := &recordingSink{}
	cfg := Config{
		FilelistPath:     filelist,
		Roots:            []string{root},
		WorkingDirectory: "/",
		Delimiter:        codec.Newline,
		Classifier:       nil,
		Logger:           logging.RootLogger,
	}

	require.NoError(t, Run(context.Background(), cfg, sink))
	require.NotEmpty(t, sink.new)
}
