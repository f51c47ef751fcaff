package resolver

import (
	"fmt"
	"slices"
)

type chainKey struct {
	Name    string
	Version int
}

func (k chainKey) String() string {
	return fmt.Sprintf("%s@%d", k.Name, k.Version)
}

// ResolutionContext tracks the chain of versions currently being expanded in
// one top-level resolution. It exists purely for cycle detection and is
// never shared across concurrent resolutions.
type ResolutionContext struct {
	chain    []chainKey
	maxDepth int
}

func NewResolutionContext(maxDepth int) *ResolutionContext {
	return &ResolutionContext{maxDepth: maxDepth}
}

func (rc *ResolutionContext) push(k chainKey) error {
	if i := slices.Index(rc.chain, k); i >= 0 {
		cycle := make([]string, 0, len(rc.chain)-i+1)
		for _, c := range rc.chain[i:] {
			cycle = append(cycle, c.String())
		}
		cycle = append(cycle, k.String())
		return &CyclicReferenceError{Chain: cycle}
	}
	if rc.maxDepth > 0 && len(rc.chain) >= rc.maxDepth {
		return fmt.Errorf("%w at %s (depth %d)", ErrDepthExceeded, k, len(rc.chain))
	}
	rc.chain = append(rc.chain, k)
	return nil
}

func (rc *ResolutionContext) pop() {
	rc.chain = rc.chain[:len(rc.chain)-1]
}
