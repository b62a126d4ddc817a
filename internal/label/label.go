// Package label implements muddle's identifier value type: a 5-tuple
// (type, name, role, tag, domain) plus transient/system flags, with
// wildcard matching and a total order. Grounded on
// original_source/muddled/depend.py's Label class (not shipped in the
// retrieval pack's original_source excerpt, inferred from utils.py's
// LabelType/LabelTag vocabularies and spec.md §3/4.1) and on the teacher's
// orderedStringSet/selectionSet idiom (surgeon/selection.go) for ordered
// collections of labels.
package label

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/muddle-build/muddle/internal/merrors"
)

// Wildcard is the special value any of type/name/role/tag may hold to mean
// "matches anything in this field".
const Wildcard = "*"

// Type is one of the four label types.
type Type string

const (
	Checkout   Type = "checkout"
	Package    Type = "package"
	Deployment Type = "deployment"
	Synth      Type = "synth"
)

// Known tag vocabularies, per spec.md §6.
const (
	CheckedOut       = "checked_out"
	Pulled           = "pulled"
	Merged           = "merged"
	ChangesCommitted = "changes_committed"
	ChangesPushed    = "changes_pushed"

	PreConfig    = "preconfig"
	Configured   = "configured"
	Built        = "built"
	Installed    = "installed"
	PostInstall  = "postinstalled"
	Clean        = "clean"
	DistClean    = "distclean"

	Deployed            = "deployed"
	InstructionsApplied = "instructions_applied"

	Loaded      = "loaded"
	Temporary   = "temporary"
	RuntimeEnv  = "runtime_env"
	Distributed = "distributed"
)

// DefaultTagFor returns the tag that operations reach for by default, for
// each label type, per original_source's label_type_to_tag table.
func DefaultTagFor(t Type) string {
	switch t {
	case Checkout:
		return CheckedOut
	case Package:
		return PostInstall
	case Deployment:
		return Deployed
	default:
		return Wildcard
	}
}

// Label is the 5-tuple identifier. Flags are not part of identity: two
// Labels compare equal (I1-I4 of spec.md §3) iff their five identifying
// fields match, regardless of Transient/System.
type Label struct {
	Type   Type
	Name   string
	Role   string // "" means "unset", distinct from Wildcard
	Tag    string
	Domain string // "" (None) denotes the top-level build

	Transient bool
	System    bool
}

// New builds a definite-by-construction label; callers that need wildcards
// should just set the corresponding field to Wildcard.
func New(t Type, name, role, tag, domain string) Label {
	return Label{Type: t, Name: name, Role: role, Tag: tag, Domain: domain}
}

// Key identifies a Label is by its five identifying fields, ignoring flags -
// used as a map key wherever labels index rules/tags.
type Key struct {
	Type   Type
	Name   string
	Role   string
	Tag    string
	Domain string
}

// Key projects a Label down to its identity.
func (l Label) Key() Key {
	return Key{l.Type, l.Name, l.Role, l.Tag, l.Domain}
}

// Equal implements I3/I4: identity is the 5-tuple, flags don't count.
func (l Label) Equal(o Label) bool {
	return l.Key() == o.Key()
}

// JustMatch is Equal under another name, matching spec.md §4.1's
// just_match(), for readability at call sites that are explicitly
// contrasting it with Match.
func (l Label) JustMatch(o Label) bool {
	return l.Equal(o)
}

// IsDefinite reports whether none of type/name/role/tag is wildcarded.
// (Domain is never wildcarded in this model; it is rewritten by subdomain
// inclusion instead - see internal/subdomain.)
func (l Label) IsDefinite() bool {
	return string(l.Type) != Wildcard && l.Name != Wildcard &&
		l.Role != Wildcard && l.Tag != Wildcard
}

// IsWildcard is the complement of IsDefinite.
func (l Label) IsWildcard() bool {
	return !l.IsDefinite()
}

// MatchScore is the result of Label.Match: nil means no match; otherwise
// more negative means a weaker (more-wildcarded) match, 0 is an exact match.
type MatchScore struct {
	Score int
}

// Match scores how well l and other correspond, per spec.md §3 "Matching".
// Matching is symmetric in which side carries the wildcard: a wildcarded
// field on either l or other matches any value in the corresponding field
// of the other and weakens the score by one step; a mismatch between two
// concrete values in any field is no match.
func (l Label) Match(other Label) *MatchScore {
	score := 0
	if !fieldMatches(string(l.Type), string(other.Type), &score) {
		return nil
	}
	if !fieldMatches(l.Name, other.Name, &score) {
		return nil
	}
	if !fieldMatches(l.Role, other.Role, &score) {
		return nil
	}
	if !fieldMatches(l.Tag, other.Tag, &score) {
		return nil
	}
	if l.Domain != other.Domain {
		return nil
	}
	return &MatchScore{Score: score}
}

func fieldMatches(a, b string, score *int) bool {
	if a == Wildcard || b == Wildcard {
		*score--
		return true
	}
	return a == b
}

// CopyWithTag returns a copy of l with Tag replaced.
func (l Label) CopyWithTag(tag string) Label {
	l2 := l
	l2.Tag = tag
	return l2
}

// CopyWithDomain returns a copy of l with Domain replaced - the core
// operation subdomain inclusion uses to rewrite every label it encounters.
func (l Label) CopyWithDomain(domain string) Label {
	l2 := l
	l2.Domain = domain
	return l2
}

// CopyWithFlags returns a copy of l with Transient/System overridden. Per
// I4, System is never considered when persisting, but callers sometimes want
// to strip it before writing, as the teacher's db.py sqlite adapter does
// (copy_with_flags(system=False)).
func (l Label) CopyWithFlags(transient, system bool) Label {
	l2 := l
	l2.Transient = transient
	l2.System = system
	return l2
}

// String renders a label in its canonical textual form:
// type:[(domain)]name[{role}]/tag[flags]
func (l Label) String() string {
	var b strings.Builder
	b.WriteString(string(l.Type))
	b.WriteByte(':')
	if l.Domain != "" {
		b.WriteByte('(')
		b.WriteString(l.Domain)
		b.WriteByte(')')
	}
	b.WriteString(l.Name)
	if l.Role != "" {
		b.WriteByte('{')
		b.WriteString(l.Role)
		b.WriteByte('}')
	}
	b.WriteByte('/')
	b.WriteString(l.Tag)
	if l.Transient {
		b.WriteString("[T]")
	}
	if l.System {
		b.WriteString("[S]")
	}
	return b.String()
}

// Less gives labels a total, deterministic order for stable reporting -
// by (type, domain, name, role, tag), matching the teacher's total_ordering
// idiom from original_source's utils.py @total_ordering usage on similarly
// tuple-like value types.
func Less(a, b Label) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	if a.Domain != b.Domain {
		return a.Domain < b.Domain
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.Role != b.Role {
		return a.Role < b.Role
	}
	return a.Tag < b.Tag
}

var fragmentRE = regexp.MustCompile(
	`^(?:([A-Za-z_][A-Za-z0-9_*]*):)?(?:\(([^)]*)\))?([A-Za-z0-9_*.+-]+)(?:\{([A-Za-z0-9_*.+-]*)\})?(?:/([A-Za-z0-9_*.+-]+))?((?:\[[A-Za-z]\])*)$`)

// Defaults supplies fallback field values used by Parse when the textual
// fragment omits a field, per spec.md §4.1's fragment-parsing rules.
type Defaults struct {
	Type   Type
	Role   string
	Tag    string
	Domain string
}

// Parse parses the abbreviated forms accepted for user input:
// [type:][(domain)]name[{role}][/tag]. Any field omitted from text is taken
// from defaults; if a mandatory field (type, name or tag) is still missing
// after applying defaults, Parse returns a GiveUp-flavoured error naming
// what's missing, per spec.md §4.1.
func Parse(text string, defaults Defaults) (Label, error) {
	m := fragmentRE.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Label{}, merrors.NewGiveUp("cannot parse label %q: malformed fragment", text)
	}
	typ, domain, name, role, tag, flags := m[1], m[2], m[3], m[4], m[5], m[6]

	if typ == "" {
		typ = string(defaults.Type)
	}
	if domain == "" {
		domain = defaults.Domain
	}
	if role == "" {
		role = defaults.Role
	}
	if tag == "" {
		tag = defaults.Tag
	}

	var missing []string
	if typ == "" {
		missing = append(missing, "type")
	}
	if name == "" {
		missing = append(missing, "name")
	}
	if tag == "" {
		missing = append(missing, "tag")
	}
	if len(missing) > 0 {
		return Label{}, merrors.NewGiveUp("label %q is missing required field(s): %s",
			text, strings.Join(missing, ", "))
	}

	return Label{
		Type: Type(typ), Name: name, Role: role, Tag: tag, Domain: domain,
		Transient: strings.Contains(flags, "[T]"),
		System:    strings.Contains(flags, "[S]"),
	}, nil
}

// MustParse is Parse for callers (tests, DSL builtins with their own error
// wrapping) that already know the text is well-formed.
func MustParse(text string) Label {
	l, err := Parse(text, Defaults{})
	if err != nil {
		panic(fmt.Sprintf("label.MustParse(%q): %v", text, err))
	}
	return l
}
