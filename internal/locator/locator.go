package locator

import (
	"errors"
	"strings"
)

var (
	// ErrNoElement is returned by a Scope when a selector matches nothing.
	ErrNoElement = errors.New("no element matches selector")
	// ErrNoAttribute is returned by an Element when the attribute is absent.
	ErrNoAttribute = errors.New("attribute not present")
)

// Element is one located DOM element. Implementations wrap a live
// playwright locator or a parsed HTML node.
type Element interface {
	Text() (string, error)
	Attribute(name string) (string, error)
}

// Scope is the context a chain resolves against: the whole results page
// or a single product container.
type Scope interface {
	// Find returns the first element matching the CSS selector, or
	// ErrNoElement when nothing matches within the scope.
	Find(selector string) (Element, error)
}

// Candidate is one alternative location rule for a field. When Attribute
// is empty the element's rendered text is read instead.
type Candidate struct {
	Selector  string
	Attribute string
}

// Chain is an ordered list of candidates for one logical field. Order is
// significant: the first candidate yielding an acceptable non-empty value
// wins and later candidates are never consulted.
type Chain struct {
	Field      string
	Candidates []Candidate
	// Accept, when set, is an extra acceptance rule applied to the trimmed
	// value. A rejected value counts as a candidate miss.
	Accept func(string) bool
}

// Result is the outcome of resolving one chain.
type Result struct {
	Found bool
	Value string
}

// NotFound is the zero Result.
var NotFound = Result{}

// Validate reports whether the chain is usable.
func (c Chain) Validate() error {
	if c.Field == "" {
		return errors.New("chain has no field name")
	}
	if len(c.Candidates) == 0 {
		return errors.New("chain has no candidates")
	}
	return nil
}

// Resolve tries each candidate in order against the scope and returns the
// first acceptable value. Candidate failures (missing element, missing
// attribute, empty or rejected value) are control flow, not errors; they
// fall through to the next candidate. An exhausted chain yields NotFound.
func (c Chain) Resolve(scope Scope) Result {
	for _, cand := range c.Candidates {
		el, err := scope.Find(cand.Selector)
		if err != nil {
			continue
		}

		var raw string
		if cand.Attribute != "" {
			raw, err = el.Attribute(cand.Attribute)
		} else {
			raw, err = el.Text()
		}
		if err != nil {
			continue
		}

		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if c.Accept != nil && !c.Accept(value) {
			continue
		}
		return Result{Found: true, Value: value}
	}
	return NotFound
}

// Selectors returns the candidate selectors in priority order. Used where
// a caller needs the raw fallback list, e.g. container enumeration.
func (c Chain) Selectors() []string {
	out := make([]string, len(c.Candidates))
	for i, cand := range c.Candidates {
		out[i] = cand.Selector
	}
	return out
}
