package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDepthExceeded aborts a resolution whose reference chain grew past the
// configured maximum. Distinct from a cycle: the chain never revisited a
// version, it just kept going.
var ErrDepthExceeded = errors.New("max resolution depth exceeded")

// CyclicReferenceError is fatal to the single top-level resolution that hit
// it. Chain lists the cycle as "name@version" entries, closed on the
// revisited version.
type CyclicReferenceError struct {
	Chain []string
}

func (e *CyclicReferenceError) Error() string {
	return fmt.Sprintf("cyclic reference: %s", strings.Join(e.Chain, " -> "))
}

// MissingReferenceError is returned only under the strict policy; under the
// default placeholder policy a missing reference degrades the document
// instead of failing it.
type MissingReferenceError struct {
	Name     string
	Selector string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("reference %q not found", e.Name+"@"+e.Selector)
}
