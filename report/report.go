// Package report models the sink external collaborator described in
// SPEC_FULL.md §6: a consumer of the three classified streams (removed,
// changed, new) that the core orchestrator drives but does not implement
// itself. It includes one concrete implementation, LineSink, which supports
// a small fixed set of printf-like placeholders -- the actual format-string
// interpreter remains, per spec.md's Non-goals, outside the core.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/a1s/rsnap/snapshot/entry"
)

// Sink receives a sequence of classified entries from the orchestrator. It
// is the external collaborator modeled in SPEC_FULL.md §6.
type Sink interface {
	// Removed is called for every entry present in the prior snapshot but
	// absent from the current one.
	Removed(e *entry.Entry) error
	// Modified is called for every entry the classifier identified as
	// changed.
	Modified(e *entry.Entry) error
	// New is called for every entry present in the current snapshot but
	// absent from the prior one.
	New(e *entry.Entry) error
}

// DefaultFormat is the placeholder template used when none is supplied.
// Supported placeholders: %m mode (octal), %u uid, %g gid, %s size
// (human-readable), %p path, %l link target.
const DefaultFormat = "%m %u %g %s %p%l"

// LineSink writes one formatted line per event to an underlying writer. It
// is the concrete default for rsnap's CLI, filling the role of the rdup
// report program that would otherwise consume the three streams over a
// pipe.
type LineSink struct {
	w            *bufio.Writer
	format       string
	removedOnly  bool
	modifiedOnly bool
}

// NewLineSink constructs a LineSink writing to w using the given format
// string (DefaultFormat if empty). removedOnly and modifiedOnly implement
// the two emission-gating switches from SPEC_FULL.md §4.6: at most one
// should be true.
func NewLineSink(w io.Writer, format string, removedOnly, modifiedOnly bool) *LineSink {
	if format == "" {
		format = DefaultFormat
	}
	return &LineSink{
		w:            bufio.NewWriter(w),
		format:       format,
		removedOnly:  removedOnly,
		modifiedOnly: modifiedOnly,
	}
}

// Flush flushes any buffered output. The caller must call this once after
// driving the sink to completion.
func (s *LineSink) Flush() error {
	return s.w.Flush()
}

func (s *LineSink) render(e *entry.Entry) string {
	link := ""
	if e.LinkTarget != "" {
		link = " -> " + e.LinkTarget
	}

	r := strings.NewReplacer(
		"%m", fmt.Sprintf("%o", e.Mode&07777),
		"%u", fmt.Sprintf("%d", e.UID),
		"%g", fmt.Sprintf("%d", e.GID),
		"%s", humanize.Bytes(uint64(e.Size)),
		"%p", e.Path,
		"%l", link,
	)
	return r.Replace(s.format)
}

// Removed implements Sink.
func (s *LineSink) Removed(e *entry.Entry) error {
	if s.modifiedOnly {
		return nil
	}
	_, err := fmt.Fprintln(s.w, "- "+s.render(e))
	return err
}

// Modified implements Sink.
func (s *LineSink) Modified(e *entry.Entry) error {
	if s.removedOnly {
		return nil
	}
	_, err := fmt.Fprintln(s.w, "~ "+s.render(e))
	return err
}

// New implements Sink.
func (s *LineSink) New(e *entry.Entry) error {
	if s.removedOnly || s.modifiedOnly {
		return nil
	}
	_, err := fmt.Fprintln(s.w, "+ "+s.render(e))
	return err
}
