package excelgrid

import (
	"fmt"
	"strings"
)

// Display codes for failed cells, following Excel conventions. Projections
// show these in place of a value when a cell could not be computed.
const (
	displayValueError = "#VALUE!"
	displayRefError   = "#REF!"
	displayCycleError = "#CYCLE!"
)

// AddressParseError reports malformed cell reference text.
type AddressParseError struct {
	Input  string
	Reason string
}

func (e *AddressParseError) Error() string {
	return fmt.Sprintf("invalid address %q: %s", e.Input, e.Reason)
}

// FormulaParseError reports malformed formula text. Offending is the
// substring that could not be parsed and Pos its rune offset in Input.
type FormulaParseError struct {
	Input     string
	Offending string
	Pos       int
	Reason    string
}

func (e *FormulaParseError) Error() string {
	return fmt.Sprintf("cannot parse formula %q: %s at offset %d (%q)", e.Input, e.Reason, e.Pos, e.Offending)
}

// CircularDependencyError reports a dependency cycle. Cycle holds every
// address on the cycle, in traversal order.
type CircularDependencyError struct {
	Cycle []Ref
}

func (e *CircularDependencyError) Error() string {
	refs := make([]string, len(e.Cycle))
	for i, r := range e.Cycle {
		refs[i] = r.String()
	}
	return "circular dependency: " + strings.Join(refs, " -> ")
}

// MissingDependencyError reports a reference to a cell that does not exist:
// an unknown grid, or a row or column outside the grid's shape. It is only
// detected during evaluation, never at construction.
type MissingDependencyError struct {
	Target Ref
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing dependency: no cell at %s", e.Target)
}

// TypeError reports an operand of the wrong kind, such as arithmetic on a
// boolean or an IF condition that is not a boolean.
type TypeError struct {
	Op    string
	Value Value
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: unsupported operand %v (%T)", e.Op, e.Value, e.Value)
}

// OutOfBoundsError reports an index outside a grid's declared shape, such as
// a previous-row offset reaching before row 0.
type OutOfBoundsError struct {
	Grid   string
	Column string
	Row    int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("row %d out of bounds for column %q of grid %q", e.Row, e.Column, e.Grid)
}

// UnknownColumnError reports a column name that the grid does not declare.
type UnknownColumnError struct {
	Grid   string
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("grid %q has no column %q", e.Grid, e.Column)
}

// CellNotEditableError reports an attempted edit of a derived cell.
type CellNotEditableError struct {
	Cell Ref
}

func (e *CellNotEditableError) Error() string {
	return fmt.Sprintf("cell %s holds a derived formula and cannot be edited", e.Cell)
}

// CellError attributes an evaluation failure to the cell that triggered it.
// When a cell fails because one of its dependencies failed, Origin names the
// cell where the fault first occurred and Err is that original fault.
type CellError struct {
	Cell   Ref
	Origin Ref
	Err    error
}

func (e *CellError) Error() string {
	if e.Origin != e.Cell {
		return fmt.Sprintf("cell %s: dependency %s failed: %v", e.Cell, e.Origin, e.Err)
	}
	return fmt.Sprintf("cell %s: %v", e.Cell, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// displayCode picks the Excel-style code shown for a failed cell.
func (e *CellError) displayCode() string {
	switch e.Err.(type) {
	case *MissingDependencyError:
		return displayRefError
	case *CircularDependencyError:
		return displayCycleError
	default:
		return displayValueError
	}
}

// EvalError aggregates per-cell failures from one evaluation pass. Cells
// that do not depend on a failed cell are still computed; their values live
// in the returned snapshot alongside this error.
type EvalError struct {
	Failures []*CellError
}

func (e *EvalError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}
	return fmt.Sprintf("%d cells failed to evaluate (first: %v)", len(e.Failures), e.Failures[0])
}

// ByCell returns the failure recorded for a cell, if any.
func (e *EvalError) ByCell(r Ref) (*CellError, bool) {
	for _, f := range e.Failures {
		if f.Cell == r {
			return f, true
		}
	}
	return nil, false
}
