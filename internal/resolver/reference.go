package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/promptvault/promptvault/internal/models"
)

// Reference syntax inside a prompt body:
//
//	{{ref:name}}          references name at the production label
//	{{ref:name@label}}    references name at a label
//	{{ref:name@3}}        references name at an explicit version
//	\{{ref:name}}         escaped; rendered literally with the backslash stripped
var (
	refPattern  = regexp.MustCompile(`\\?\{\{ref:([^{}]*)\}\}`)
	namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

// ValidName reports whether name is usable as a prompt name or label.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Reference is an in-body pointer to another prompt. It does not own its
// target; it is a lookup key resolved at resolution time.
type Reference struct {
	Name    string
	Label   string // set when the selector is a label (or defaulted to production)
	Version int    // set when the selector is an explicit version
	Raw     string // inner text as written, for placeholders and errors
	Start   int    // byte offset of the match in the body
	End     int
	Escaped bool
	Err     error // non-nil for malformed references; treated as missing
}

// Selector renders the reference's selector as written, with the implicit
// production default made explicit.
func (r Reference) Selector() string {
	if r.Version > 0 {
		return strconv.Itoa(r.Version)
	}
	return r.Label
}

// Placeholder is the deterministic text substituted for a reference that
// cannot be resolved.
func (r Reference) Placeholder() string {
	if r.Err != nil {
		return fmt.Sprintf("[unresolved: %s]", r.Raw)
	}
	return fmt.Sprintf("[unresolved: %s@%s]", r.Name, r.Selector())
}

// ParseRefs scans a body for references in left-to-right order. A malformed
// reference yields an entry with Err set rather than failing the parse; one
// bad reference must not abort resolution of an otherwise valid document.
func ParseRefs(body string) []Reference {
	if body == "" {
		return nil
	}

	matches := refPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return nil
	}

	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		ref := Reference{
			Raw:   body[m[2]:m[3]],
			Start: m[0],
			End:   m[1],
		}
		if body[m[0]] == '\\' {
			ref.Escaped = true
			refs = append(refs, ref)
			continue
		}
		parseTarget(&ref)
		refs = append(refs, ref)
	}
	return refs
}

func parseTarget(ref *Reference) {
	name, selector, hasSelector := strings.Cut(ref.Raw, "@")
	if !namePattern.MatchString(name) {
		ref.Err = fmt.Errorf("invalid reference target %q", ref.Raw)
		return
	}
	ref.Name = name

	if !hasSelector {
		ref.Label = models.LabelProduction
		return
	}
	if selector == "" {
		ref.Err = fmt.Errorf("empty selector in reference %q", ref.Raw)
		return
	}
	if version, err := strconv.Atoi(selector); err == nil {
		if version <= 0 {
			ref.Err = fmt.Errorf("invalid version %d in reference %q", version, ref.Raw)
			return
		}
		ref.Version = version
		return
	}
	if !namePattern.MatchString(selector) {
		ref.Err = fmt.Errorf("invalid selector in reference %q", ref.Raw)
		return
	}
	ref.Label = selector
}
