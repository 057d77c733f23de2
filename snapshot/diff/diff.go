// Package diff implements the three-way partition between a prior snapshot
// and the current filesystem state. It is grounded on
// synchronization/core's diff.go, whose recursive tree differ is reshaped
// here into a flat set subtraction, since rsnap's entries are keyed by
// absolute path rather than nested by directory content.
package diff

import (
	"github.com/a1s/rsnap/snapshot/entry"
	"github.com/a1s/rsnap/snapshot/set"
)

// Subtract returns a fresh set containing every element of a whose path is
// not present in b. Entries in the result are the ones from a (not b),
// preserving a's field values. Subtract is pure: neither a nor b is mutated.
func Subtract(a, b *set.Set) *set.Set {
	result := set.New()
	a.Range(func(e *entry.Entry) bool {
		if !b.Contains(e.Path) {
			result.Insert(e)
		}
		return true
	})
	return result
}

// Result holds the three partitions produced by Compute.
type Result struct {
	// Removed holds entries present in prior but absent from current.
	Removed *set.Set
	// New holds entries present in current but absent from prior.
	New *set.Set
	// ChangedRaw holds entries present in both prior and current that are
	// candidates for the change classifier; it has not yet been filtered by
	// classify.Classifier.
	ChangedRaw *set.Set
}

// Compute derives the three partitions described in SPEC_FULL.md §4.5:
//
//	removed    = prior − current
//	new        = current − prior
//	candidates = current − new
//	changedRaw = candidates − removed
//
// The second subtraction in changedRaw removes directory entries that
// appear in both current (because a descendant still exists) and in removed
// (because the directory-as-such disappeared) -- the pathological case of a
// partial subtree deletion combined with crawl ancestry reinsertion.
func Compute(prior, current *set.Set) Result {
	removed := Subtract(prior, current)
	news := Subtract(current, prior)
	candidates := Subtract(current, news)
	changedRaw := Subtract(candidates, removed)

	return Result{
		Removed:    removed,
		New:        news,
		ChangedRaw: changedRaw,
	}
}
