// Package codec implements the persisted-log grammar: parsing a prior
// snapshot from its textual form, and emitting the current snapshot back
// into that form. It accepts both the extended grammar ("mode dev ino
// path_len path") and the legacy grammar ("mode path"), multiplexed per
// record via a single lookahead, and emits the extended grammar for every
// entry except those with a zero Dev and Ino, which are written in the
// legacy grammar (see Emit). It
// is grounded on rdup.c's g_tree_read_file (BUFSIZE scratch buffer,
// LIST_SPACEPOS-style fixed mode prefix).
package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/a1s/rsnap/internal/logging"
	"github.com/a1s/rsnap/internal/signals"
	"github.com/a1s/rsnap/snapshot/entry"
	"github.com/a1s/rsnap/snapshot/set"
)

// minRecordLength is the shortest byte sequence that could possibly hold a
// legal record: a single mode digit, a separator, and a single path byte.
const minRecordLength = 3

// Delimiter selects the record terminator used for both parsing and
// emitting. It is controlled end-to-end by the CLI's -0/--null switch, per
// SPEC_FULL.md §4.3.
type Delimiter byte

const (
	// Newline is the default record delimiter.
	Newline Delimiter = '\n'
	// Null is the NUL record delimiter enabled by -0.
	Null Delimiter = 0
)

// splitOn returns a bufio.SplitFunc that splits on the given delimiter byte,
// mirroring bufio.ScanLines but parameterized on the terminator so that
// NUL-delimited filelists are supported without a second code path.
func splitOn(delim byte) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.IndexByte(data, delim); i >= 0 {
			return i + 1, data[:i], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// Parse reads every record from r, using the given delimiter, and inserts
// the resulting entries into a fresh set. Corrupt records never abort the
// parse: a diagnostic tagged with the record's 1-based index is logged via
// logger and the record is skipped. Parsing stops early, without error, if
// an abort has been requested (signals.Aborted), leaving the set populated
// with whatever parsed so far -- the orchestrator must not rewrite the log
// in that case.
func Parse(r io.Reader, delim Delimiter, logger *logging.Logger) *set.Set {
	result := set.New()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitOn(byte(delim)))

	index := 0
	for scanner.Scan() {
		index++
		if signals.Aborted() {
			return result
		}

		e, err := parseRecord(scanner.Bytes())
		if err != nil {
			logger.Warn(fmt.Sprintf("corrupt entry in filelist (record %d): %v", index, err))
			continue
		}
		result.Insert(e)
	}

	return result
}

// parseRecord parses a single delimiter-stripped record, trying the extended
// grammar first and falling back to the legacy grammar.
func parseRecord(raw []byte) (*entry.Entry, error) {
	if len(raw) < minRecordLength {
		return nil, fmt.Errorf("record too short")
	}

	e, ok, err := parseExtended(raw)
	if ok {
		return e, err
	}
	return parseLegacy(raw)
}

// parseExtended attempts the "mode dev ino path_len path" grammar. ok
// reports whether the record has the extended shape at all (five
// space-separated fields with a path_len matching the trailing byte count);
// when ok is false, err is always nil and the caller must fall back to the
// legacy grammar. Once the shape is recognized, any remaining corruption (a
// zero mode, or a zero dev/ino) is reported via err rather than folded into
// ok, so that a recognized-but-corrupt record is skipped by the caller
// instead of silently falling through to the legacy parser with a nil
// entry.
func parseExtended(raw []byte) (*entry.Entry, bool, error) {
	fields := bytes.SplitN(raw, []byte{' '}, 5)
	if len(fields) != 5 {
		return nil, false, nil
	}

	pathLen, err := strconv.Atoi(string(fields[3]))
	if err != nil || pathLen != len(fields[4]) {
		return nil, false, nil
	}

	mode, err := strconv.ParseUint(string(fields[0]), 10, 32)
	if err != nil || mode == 0 {
		return nil, true, fmt.Errorf("corrupt mode")
	}
	dev, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil || dev == 0 {
		return nil, true, fmt.Errorf("corrupt dev")
	}
	ino, err := strconv.ParseUint(string(fields[2]), 10, 64)
	if err != nil || ino == 0 {
		return nil, true, fmt.Errorf("corrupt ino")
	}

	return &entry.Entry{
		Path: string(fields[4]),
		Mode: uint32(mode),
		Dev:  dev,
		Ino:  ino,
	}, true, nil
}

// parseLegacy parses the "mode path" grammar. It always reports success or
// failure via error, since there is no narrower grammar to fall back to.
func parseLegacy(raw []byte) (*entry.Entry, error) {
	sp := bytes.IndexByte(raw, ' ')
	if sp < 0 {
		return nil, fmt.Errorf("missing separator")
	}

	mode, err := strconv.ParseUint(string(raw[:sp]), 10, 32)
	if err != nil || mode == 0 {
		return nil, fmt.Errorf("corrupt mode")
	}

	path := raw[sp+1:]
	if len(path) == 0 {
		return nil, fmt.Errorf("empty path")
	}

	return &entry.Entry{
		Path: string(path),
		Mode: uint32(mode),
	}, nil
}

// Emit writes every entry in s, in the set's in-order traversal, using the
// given delimiter. It flushes before returning.
//
// Per-entry, it prefers the extended grammar, but falls back to the legacy
// "mode path" grammar for entries whose Dev and Ino are both zero -- i.e.
// entries that were themselves reconstructed from a legacy-grammar record
// and never re-stat'd against a live filesystem. Writing "0 0" for such an
// entry's dev/ino fields would make it indistinguishable from a corrupt
// extended record on the next parse (parseExtended treats a zero dev/ino as
// corruption), which would silently drop it and violate the round-trip and
// legacy-acceptance invariants. Every entry the crawler itself produces has
// a genuine non-zero Dev/Ino, so in normal operation (where only the
// crawler's current snapshot is ever re-emitted) this fallback never
// triggers; it only matters for entries that flow straight from Parse to
// Emit without an intervening crawl.
func Emit(w io.Writer, s *set.Set, delim Delimiter) error {
	bw := bufio.NewWriter(w)

	var writeErr error
	s.Range(func(e *entry.Entry) bool {
		if e.Dev == 0 && e.Ino == 0 {
			_, writeErr = fmt.Fprintf(bw, "%d %s", e.Mode, e.Path)
		} else {
			_, writeErr = fmt.Fprintf(bw, "%d %d %d %d %s", e.Mode, e.Dev, e.Ino, len(e.Path), e.Path)
		}
		if writeErr != nil {
			return false
		}
		writeErr = bw.WriteByte(byte(delim))
		return writeErr == nil
	})
	if writeErr != nil {
		return writeErr
	}

	return bw.Flush()
}
