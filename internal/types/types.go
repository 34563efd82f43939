// Package types provides the fact value shared by the grounder, the solver
// and the assignment extractor.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"fmt"
	"strings"

	"github.com/google/mangle/ast"
)

// =============================================================================
// MANGLE FACT TYPES
// =============================================================================

// MangleAtom represents a Mangle name constant (starting with /).
// This explicit type avoids ambiguity between strings and atoms.
type MangleAtom string

// Fact represents a single ground atom: an input fact, a boundary (external)
// fact or a symbol shown by a model.
type Fact struct {
	Predicate string
	Args      []interface{}
}

// NewFact builds a fact from a predicate and its arguments.
func NewFact(predicate string, args ...interface{}) Fact {
	return Fact{Predicate: predicate, Args: args}
}

func isValidMangleNameConstant(v string) bool {
	if !strings.HasPrefix(v, "/") {
		return false
	}
	if strings.ContainsAny(v, " \t\n\r") {
		return false
	}
	_, err := ast.Name(v)
	return err == nil
}

// String returns the Datalog string representation of the fact.
func (f Fact) String() string {
	var args []string
	for _, arg := range f.Args {
		switch v := arg.(type) {
		case MangleAtom:
			args = append(args, string(v))
		case string:
			if isValidMangleNameConstant(v) {
				args = append(args, v)
			} else {
				args = append(args, fmt.Sprintf("%q", v))
			}
		case int:
			args = append(args, fmt.Sprintf("%d", v))
		case int64:
			args = append(args, fmt.Sprintf("%d", v))
		case bool:
			if v {
				args = append(args, "/true")
			} else {
				args = append(args, "/false")
			}
		default:
			args = append(args, fmt.Sprintf("%v", v))
		}
	}
	return fmt.Sprintf("%s(%s).", f.Predicate, strings.Join(args, ", "))
}

// Key returns a canonical identity for the fact, used to index externals.
func (f Fact) Key() string {
	return strings.TrimSuffix(f.String(), ".")
}

// FromAtom converts a ground Mangle atom back into a Fact. Name constants
// become MangleAtom, numbers int64 and strings string.
func FromAtom(atom ast.Atom) Fact {
	args := make([]interface{}, len(atom.Args))
	for i, arg := range atom.Args {
		args[i] = termToValue(arg)
	}
	return Fact{Predicate: atom.Predicate.Symbol, Args: args}
}

func termToValue(term ast.BaseTerm) interface{} {
	c, ok := term.(ast.Constant)
	if !ok {
		return fmt.Sprintf("%v", term)
	}
	switch c.Type {
	case ast.NameType:
		return MangleAtom(c.Symbol)
	case ast.StringType:
		return c.Symbol
	case ast.NumberType:
		return c.NumValue
	default:
		return c.String()
	}
}
