package excelgrid

import "sort"

// engine runs one evaluation pass: it walks the dependency graph implied by
// the expressions (the graph is never stored), orders the cells so every
// dependency is computed before its dependents, computes each cell exactly
// once, and folds the results into a snapshot grid of constants.
type engine struct {
	root     *Grid
	grids    map[string]*Grid
	values   map[Ref]Value
	failures map[Ref]*CellError
	order    []Ref
}

func newEngine(root *Grid) *engine {
	e := &engine{
		root:     root,
		grids:    make(map[string]*Grid),
		values:   make(map[Ref]Value),
		failures: make(map[Ref]*CellError),
	}
	e.collect(root)
	return e
}

// collect walks the cross-grid reference closure so every grid reachable
// from the root is addressable by name.
func (e *engine) collect(g *Grid) {
	if _, seen := e.grids[g.name]; seen {
		return
	}
	e.grids[g.name] = g
	for _, ref := range g.refs {
		e.collect(ref)
	}
}

// exprAt returns the expression of the cell a reference points at, or a
// MissingDependencyError when the reference leaves every known grid.
func (e *engine) exprAt(ref Ref) (Expr, error) {
	g, ok := e.grids[ref.Grid]
	if !ok {
		return nil, &MissingDependencyError{Target: ref}
	}
	if !g.inBounds(ref.Pos) {
		return nil, &MissingDependencyError{Target: ref}
	}
	return g.cellAt(ref.Pos).Expr, nil
}

// Resolve hands a dependency's computed value to an expression. Failed
// dependencies surface as their CellError so the origin travels with the
// propagation.
func (e *engine) Resolve(ref Ref) (Value, error) {
	if failure, failed := e.failures[ref]; failed {
		return nil, failure
	}
	if v, ok := e.values[ref]; ok {
		return v, nil
	}
	// a reference that was never ordered points outside every grid
	return nil, &MissingDependencyError{Target: ref}
}

func (e *engine) fail(ref Ref, err error) {
	// keep the first failure recorded for a cell
	if _, failed := e.failures[ref]; failed {
		return
	}
	origin := ref
	if cellErr, ok := err.(*CellError); ok {
		// propagated failure: keep the origin, re-tag the cell
		e.failures[ref] = &CellError{Cell: ref, Origin: cellErr.Origin, Err: cellErr.Err}
		return
	}
	e.failures[ref] = &CellError{Cell: ref, Origin: origin, Err: err}
}

// rootRefs lists the root's cells row by row so evaluation order, and with
// it any error reporting, is deterministic.
func (e *engine) rootRefs() []Ref {
	refs := make([]Ref, 0, e.root.height*e.root.width)
	for row := 0; row < e.root.height; row++ {
		for col := 0; col < e.root.width; col++ {
			refs = append(refs, Ref{Grid: e.root.name, Pos: Position{Row: row, Col: col}})
		}
	}
	return refs
}

// topoSort orders the root cells and their transitive dependencies,
// dependencies first. Three states per cell: unvisited (absent), visiting
// (false), visited (true). Hitting a visiting cell means a cycle; every cell
// on it is failed with the full loop spelled out.
func (e *engine) topoSort() {
	state := make(map[Ref]bool)
	var stack []Ref

	var visit func(ref Ref)
	visit = func(ref Ref) {
		if done, seen := state[ref]; seen {
			if !done {
				e.failCycle(stack, ref)
			}
			return
		}
		state[ref] = false
		stack = append(stack, ref)

		if expr, err := e.exprAt(ref); err == nil {
			for _, dep := range expr.Dependencies() {
				visit(dep)
			}
		}

		stack = stack[:len(stack)-1]
		state[ref] = true
		e.order = append(e.order, ref)
	}

	for _, ref := range e.rootRefs() {
		visit(ref)
	}
}

// failCycle marks every cell on the detected loop with a
// CircularDependencyError naming the whole loop.
func (e *engine) failCycle(stack []Ref, entry Ref) {
	start := 0
	for i, ref := range stack {
		if ref == entry {
			start = i
			break
		}
	}
	cycle := make([]Ref, len(stack)-start)
	copy(cycle, stack[start:])

	err := &CircularDependencyError{Cycle: cycle}
	for _, ref := range cycle {
		e.fail(ref, err)
	}
}

// run executes the evaluation pass and builds the snapshot.
func (e *engine) run() (*Grid, error) {
	e.topoSort()

	for _, ref := range e.order {
		if _, failed := e.failures[ref]; failed {
			continue
		}
		expr, err := e.exprAt(ref)
		if err != nil {
			e.fail(ref, err)
			continue
		}
		v, err := expr.Compute(e)
		if err != nil {
			e.fail(ref, err)
			continue
		}
		e.values[ref] = v
	}

	return e.snapshot(), e.evalError()
}

// snapshot freezes the root grid: every cell becomes a constant holding its
// computed value, failed cells hold their display code. Colors carry over,
// cross-grid bindings do not, constants have nothing left to reference.
func (e *engine) snapshot() *Grid {
	result := Empty(e.root.name, e.root.height)
	result.width = e.root.width
	result.labels = append([]string(nil), e.root.labels...)

	for row := 0; row < e.root.height; row++ {
		for col := 0; col < e.root.width; col++ {
			pos := Position{Row: row, Col: col}
			ref := Ref{Grid: e.root.name, Pos: pos}

			var value Value
			if failure, failed := e.failures[ref]; failed {
				value = failure.displayCode()
			} else {
				value = e.values[ref]
			}

			cell := NewCell(&Constant{Value: value})
			if color := e.root.cellAt(pos).Color; color != "" {
				cell = cell.WithColor(color)
			}
			result.cells[pos] = cell
		}
	}
	return result
}

// evalError gathers the root grid's failures into one EvalError, ordered by
// position. Failures confined to other grids are reported through the root
// cells that depend on them.
func (e *engine) evalError() error {
	var failures []*CellError
	for ref, failure := range e.failures {
		if ref.Grid == e.root.name && e.root.inBounds(ref.Pos) {
			failures = append(failures, failure)
		}
	}
	if len(failures) == 0 {
		return nil
	}
	sort.Slice(failures, func(i, j int) bool {
		a, b := failures[i].Cell.Pos, failures[j].Cell.Pos
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	return &EvalError{Failures: failures}
}
