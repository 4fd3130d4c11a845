// Package gate enforces workflow ordering outside the prompt. Gates are
// declarative preconditions checked before every tool execution; a denial is
// a recoverable conversation event, not a process error.
package gate

import (
	"github.com/sandevgo/roostbot/internal/notepad"
)

type Decision struct {
	Allowed bool
	// Gate names the first failing gate when denied.
	Gate   string
	Reason string
	Hint   string
}

var allow = Decision{Allowed: true}

// Predicate answers whether a gate holds for the current notepad and the
// proposed tool arguments.
type Predicate func(pad *notepad.Notepad, args map[string]any) bool

// PathTrue holds when the dotted notepad path resolves to boolean true.
func PathTrue(path string) Predicate {
	return func(pad *notepad.Notepad, _ map[string]any) bool {
		v, ok := pad.Lookup(path)
		if !ok {
			return false
		}
		b, ok := v.(bool)
		return ok && b
	}
}

// PathNonEmpty holds when the dotted notepad path resolves to a non-empty
// string, list, or object.
func PathNonEmpty(path string) Predicate {
	return func(pad *notepad.Notepad, _ map[string]any) bool {
		v, ok := pad.Lookup(path)
		if !ok {
			return false
		}
		switch t := v.(type) {
		case string:
			return t != ""
		case []any:
			return len(t) > 0
		case map[string]any:
			return len(t) > 0
		case nil:
			return false
		default:
			return true
		}
	}
}

// ArgsAnyPresent holds when at least one of the named arguments is present
// and non-empty. This is the only predicate type that inspects the tool's
// own arguments.
func ArgsAnyPresent(keys ...string) Predicate {
	return func(_ *notepad.Notepad, args map[string]any) bool {
		for _, k := range keys {
			v, ok := args[k]
			if !ok {
				continue
			}
			if s, isStr := v.(string); isStr && s == "" {
				continue
			}
			return true
		}
		return false
	}
}

type Gate struct {
	Name   string
	Pred   Predicate
	Reason string
	Hint   string
}

type Evaluator struct {
	gates map[string][]Gate
}

func NewEvaluator() *Evaluator {
	return &Evaluator{gates: make(map[string][]Gate)}
}

// Declare registers gates for a tool in evaluation order.
func (e *Evaluator) Declare(tool string, gates ...Gate) {
	e.gates[tool] = append(e.gates[tool], gates...)
}

// Check evaluates the tool's gates in declared order. The first failing
// gate wins; later gates are not evaluated. Tools without gates pass.
func (e *Evaluator) Check(tool string, pad *notepad.Notepad, args map[string]any) Decision {
	for _, g := range e.gates[tool] {
		if !g.Pred(pad, args) {
			return Decision{Gate: g.Name, Reason: g.Reason, Hint: g.Hint}
		}
	}
	return allow
}
