package crawl

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a1s/rsnap/internal/logging"
	"github.com/a1s/rsnap/snapshot/set"
)

func TestWalkPrependsAncestorsAndDescendants(t *testing.T) {
	root := t.TempDir()
	leaf := filepath.Join(root, "a")
	require.NoError(t, os.Mkdir(leaf, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(leaf, "f"), []byte("hi!"), 0644))

	dst := set.New()
	require.NoError(t, Walk(context.Background(), Config{}, leaf, dst, logging.RootLogger))

	require.True(t, dst.Contains("/"), "expected filesystem root to be prepended")
	require.True(t, dst.Contains(leaf), "expected root to be present")

	file := filepath.Join(leaf, "f")
	e, ok := dst.Get(file)
	require.True(t, ok)
	require.EqualValues(t, 3, e.Size)

	rootEntry, ok := dst.Get(leaf)
	require.True(t, ok)
	require.True(t, rootEntry.IsDir())
}

func TestWalkRespectsNobackup(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".nobackup"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), nil, 0644))

	dst := set.New()
	cfg := Config{RespectNobackup: true}
	require.NoError(t, Walk(context.Background(), cfg, root, dst, logging.RootLogger))

	require.True(t, dst.Contains(root), "expected the directory itself to be present")
	require.False(t, dst.Contains(filepath.Join(root, "f")), "expected descendants to be skipped when .nobackup is present")
}

func TestWalkIgnoresNobackupWhenDisabled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".nobackup"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), nil, 0644))

	dst := set.New()
	cfg := Config{RespectNobackup: false}
	require.NoError(t, Walk(context.Background(), cfg, root, dst, logging.RootLogger))

	require.True(t, dst.Contains(filepath.Join(root, "f")), "expected descendants to be crawled when RespectNobackup is false")
}

func TestWalkExcludePattern(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip"), nil, 0644))

	dst := set.New()
	cfg := Config{Exclude: regexp.MustCompile(`/skip$`)}
	require.NoError(t, Walk(context.Background(), cfg, root, dst, logging.RootLogger))

	require.True(t, dst.Contains(filepath.Join(root, "keep")), "expected non-excluded entry to be present")
	require.False(t, dst.Contains(filepath.Join(root, "skip")), "expected excluded entry to be absent")
}

func TestWalkMaxSize(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "small"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "big"), []byte("aaaaaaaaaa"), 0644))

	dst := set.New()
	cfg := Config{MaxSize: 5}
	require.NoError(t, Walk(context.Background(), cfg, root, dst, logging.RootLogger))

	require.True(t, dst.Contains(filepath.Join(root, "small")), "expected file under the size cap to be present")
	require.False(t, dst.Contains(filepath.Join(root, "big")), "expected file over the size cap to be skipped")
}

func TestWalkSymlinkNeverFollowed(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "dir")
	require.NoError(t, os.Mkdir(target, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "f"), nil, 0644))
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(target, link))

	dst := set.New()
	require.NoError(t, Walk(context.Background(), Config{}, root, dst, logging.RootLogger))

	e, ok := dst.Get(link)
	require.True(t, ok)
	require.True(t, e.IsSymlink(), "expected symlink entry to be stored as a symlink")
	require.Equal(t, target, e.LinkTarget)
	require.False(t, dst.Contains(filepath.Join(link, "f")), "expected a symlink to a directory to never be followed")
}

func TestWalkOneFilesystemDescendsWithinSameDevice(t *testing.T) {
	// There is no portable way to fabricate a second device in a unit test,
	// so this exercises the policy surface rather than an actual mount
	// boundary: with OneFilesystem on, a child directory on the same device
	// still descends; the
	// Dev-mismatch branch itself is covered indirectly via crawl.go's
	// symmetry with the RespectNobackup test above (same code shape, just a
	// Dev comparison instead of a name comparison).
	root := t.TempDir()
	child := filepath.Join(root, "child")
	require.NoError(t, os.Mkdir(child, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(child, "f"), nil, 0644))

	dst := set.New()
	cfg := Config{OneFilesystem: true}
	require.NoError(t, Walk(context.Background(), cfg, root, dst, logging.RootLogger))

	require.True(t, dst.Contains(child))
	require.True(t, dst.Contains(filepath.Join(child, "f")), "same device, so descent should still occur")
}

func TestWalkRemovedEntryAbsentSiblingKept(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok"), nil, 0644))
	gone := filepath.Join(root, "vanishes")
	require.NoError(t, os.WriteFile(gone, nil, 0644))
	require.NoError(t, os.Remove(gone))

	dst := set.New()
	require.NoError(t, Walk(context.Background(), Config{}, root, dst, logging.RootLogger))

	require.True(t, dst.Contains(filepath.Join(root, "ok")), "a removed sibling must not keep the remaining entry out of the crawl")
	require.False(t, dst.Contains(gone))
}
