package deck

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformed wraps input that is not a well-formed JSON or YAML deck.
var ErrMalformed = errors.New("malformed deck")

// Constraint names the structural rule a deck violated.
type Constraint string

const (
	ConstraintMaxDepth      Constraint = "max-depth"
	ConstraintMaxChildren   Constraint = "max-children"
	ConstraintSectionCount  Constraint = "section-count"
	ConstraintSplitLayout   Constraint = "split-layout"
	ConstraintSlideType     Constraint = "slide-type"
	ConstraintSectionType   Constraint = "section-type"
	ConstraintRequiredField Constraint = "required-field"
	ConstraintAbsoluteURL   Constraint = "absolute-url"
	ConstraintTableHeaders  Constraint = "table-headers"
	ConstraintEmptyDeck     Constraint = "empty-deck"
)

// StructuralError reports a deck shape the build cannot accept.
type StructuralError struct {
	// Path locates the offending value, e.g. "slides[2].points[0].children".
	Path       string
	Constraint Constraint
	Detail     string
}

func (e *StructuralError) Error() string {
	if e == nil {
		return "invalid deck structure"
	}
	if e.Path == "" {
		return fmt.Sprintf("deck violates %s: %s", e.Constraint, e.Detail)
	}
	return fmt.Sprintf("deck violates %s at %s: %s", e.Constraint, e.Path, e.Detail)
}

func (e *StructuralError) within(prefix string) *StructuralError {
	if prefix == "" {
		return e
	}
	out := *e
	if out.Path == "" {
		out.Path = prefix
	} else {
		out.Path = prefix + "." + out.Path
	}
	return &out
}

func indexPath(at string, i int) string {
	return at + "[" + strconv.Itoa(i) + "]"
}

func itoa(i int) string { return strconv.Itoa(i) }

func quote(s string) string { return strconv.Quote(s) }
