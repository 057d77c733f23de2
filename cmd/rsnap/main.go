// Command rsnap generates a full or incremental filesystem snapshot list.
// This list can be used to implement an (incremental) backup scheme: pipe
// its output to an archiver or rsync-like transport.
package main

import (
	"fmt"
	"os"

	"github.com/a1s/rsnap/cmd/rsnap/internal/root"
)

func main() {
	if err := root.Command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rsnap:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a top-level error to a process exit code.
// root.ErrSignalAborted gets the dedicated signal-abort code described in
// SPEC_FULL.md's Open Question 2; everything else is a generic fatal error.
func exitCodeFor(err error) int {
	if err == root.ErrSignalAborted {
		return root.ExitSignalAborted
	}
	return 1
}
