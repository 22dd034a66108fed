package excelgrid

import (
	"fmt"
	"strings"
)

// Grid is a named, fixed-height sheet of cells. Column operations return new
// grids; the receiver is never modified by them. Cell-level editing through
// SetCell mutates in place, which is the escape hatch the interactive viewer
// uses.
//
// Grid identity is the name: cross-grid references carry the name, and the
// refs map binds each referenced name to the instance it meant when the
// reference was built.
//
// Columns are addressed two ways: by letter, which is how formula text always
// renders them, and optionally by a declared name. labels holds the declared
// name per column ("" when the letter is the only name); every name-taking
// operation resolves declared names first and falls back to letters.
type Grid struct {
	name   string
	height int
	width  int
	labels []string
	cells  map[Position]*Cell
	refs   map[string]*Grid
}

// GridInterface is the full grid API surface.
type GridInterface interface {
	Name() string
	Height() int
	Width() int

	// cell methods

	CellAt(addr string) (*Cell, error)
	SetCell(addr string, input string) error
	ValueAt(addr string) (Value, error)
	Formula(addr string) (string, error)

	// column methods

	WithColumns(defs ...ColumnDef) (*Grid, error)
	Column(name string) ([]Value, error)
	Headers() []string
	Select(names ...string) (*Grid, error)
	Transpose() *Grid
	Concat(other *Grid) (*Grid, error)

	Evaluate() (*Grid, error)
}

var _ GridInterface = (*Grid)(nil)

// Empty creates a grid with the given name and height. Column names are
// optional; each one declares a named column left to right, still unset.
// Names must be unique, otherwise the leftmost wins on lookup.
func Empty(name string, height int, columns ...string) *Grid {
	g := &Grid{
		name:   name,
		height: height,
		cells:  make(map[Position]*Cell),
		refs:   make(map[string]*Grid),
	}
	if len(columns) > 0 {
		g.width = len(columns)
		g.labels = append([]string(nil), columns...)
	}
	return g
}

func (g *Grid) Name() string { return g.name }
func (g *Grid) Height() int  { return g.height }
func (g *Grid) Width() int   { return g.width }

func labelIndex(labels []string, name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for col, label := range labels {
		if label == name {
			return col, true
		}
	}
	return 0, false
}

// resolveColumn maps a column name to its index: declared names first, then
// column letters within width.
func resolveColumn(labels []string, width int, grid, name string) (int, error) {
	if col, ok := labelIndex(labels, name); ok {
		return col, nil
	}
	if col, err := ColumnIndex(name); err == nil && col < width {
		return col, nil
	}
	return 0, &UnknownColumnError{Grid: grid, Column: name}
}

func (g *Grid) columnIndex(name string) (int, error) {
	return resolveColumn(g.labels, g.width, g.name, name)
}

func (g *Grid) labelAt(col int) string {
	if col < len(g.labels) {
		return g.labels[col]
	}
	return ""
}

// Header renders a column heading: "amount (B)" for a named column, the bare
// letter otherwise.
func (g *Grid) Header(col int) string {
	if label := g.labelAt(col); label != "" {
		return fmt.Sprintf("%s (%s)", label, ColumnName(col))
	}
	return ColumnName(col)
}

// Headers returns the heading of every column, left to right.
func (g *Grid) Headers() []string {
	headers := make([]string, g.width)
	for col := 0; col < g.width; col++ {
		headers[col] = g.Header(col)
	}
	return headers
}

// clone copies the grid shallowly. Cells are replaced wholesale on edit, so
// sharing the cell pointers between clones is safe.
func (g *Grid) clone() *Grid {
	cells := make(map[Position]*Cell, len(g.cells))
	for pos, cell := range g.cells {
		cells[pos] = cell
	}
	refs := make(map[string]*Grid, len(g.refs))
	for name, ref := range g.refs {
		refs[name] = ref
	}
	labels := append([]string(nil), g.labels...)
	return &Grid{name: g.name, height: g.height, width: g.width, labels: labels, cells: cells, refs: refs}
}

// cellAt returns the cell at pos, treating absent positions as empty.
func (g *Grid) cellAt(pos Position) *Cell {
	if cell, ok := g.cells[pos]; ok {
		return cell
	}
	return EmptyCell()
}

func (g *Grid) inBounds(pos Position) bool {
	return pos.Row >= 0 && pos.Row < g.height && pos.Col >= 0 && pos.Col < g.width
}

// CellAt returns the cell at a canonical address like "B2".
func (g *Grid) CellAt(addr string) (*Cell, error) {
	pos, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	if !g.inBounds(pos) {
		return nil, &OutOfBoundsError{Grid: g.name, Column: ColumnName(pos.Col), Row: pos.Row}
	}
	return g.cellAt(pos), nil
}

// SetCell replaces the cell at addr with whatever input parses to, entry-bar
// style: "=B1*2" is a formula, "42" a number, anything else text. This is an
// in-place edit of the receiver.
func (g *Grid) SetCell(addr string, input string) error {
	pos, err := ParseAddress(addr)
	if err != nil {
		return err
	}
	if !g.inBounds(pos) {
		return &OutOfBoundsError{Grid: g.name, Column: ColumnName(pos.Col), Row: pos.Row}
	}
	expr, err := ParseLiteral(input, g.name)
	if err != nil {
		return err
	}
	g.cells[pos] = NewCell(expr)
	return nil
}

// ValueAt returns the computed value at addr. It only works on evaluated
// grids, where every cell is a constant.
func (g *Grid) ValueAt(addr string) (Value, error) {
	cell, err := g.CellAt(addr)
	if err != nil {
		return nil, err
	}
	if !cell.Expr.IsPrimitive() {
		return nil, fmt.Errorf("cell %s!%s holds a formula, evaluate the grid first", g.name, addr)
	}
	return cell.Expr.Compute(nil)
}

// Formula returns the formula text of the cell at addr.
func (g *Grid) Formula(addr string) (string, error) {
	cell, err := g.CellAt(addr)
	if err != nil {
		return "", err
	}
	return cell.Formula(g.name), nil
}

// WithColumns returns a new grid extended, or overwritten, with the given
// column definitions. A definition naming an existing column, by declared
// name or by letter, overwrites it; any other name appends a new named
// column on the right. Definitions may reference any column of the resulting
// grid, including ones defined later in the same call, and a column may
// reference its own earlier rows through Prev; evaluation order is settled by
// the engine, not by definition order.
func (g *Grid) WithColumns(defs ...ColumnDef) (*Grid, error) {
	next := g.clone()

	cols := make([]int, len(defs))
	for i, def := range defs {
		if col, ok := labelIndex(next.labels, def.Name); ok {
			cols[i] = col
			continue
		}
		if col, err := ColumnIndex(def.Name); err == nil {
			cols[i] = col
			if col >= next.width {
				next.width = col + 1
			}
			continue
		}
		if def.Name == "" {
			return nil, &UnknownColumnError{Grid: next.name, Column: def.Name}
		}
		for len(next.labels) < next.width {
			next.labels = append(next.labels, "")
		}
		cols[i] = next.width
		next.labels = append(next.labels, def.Name)
		next.width++
	}

	ctx := colContext{grid: next.name, height: next.height, width: next.width, labels: next.labels, refs: next.refs}
	for i, def := range defs {
		for row := 0; row < next.height; row++ {
			expr, err := def.Expr.gen(ctx, row)
			if err != nil {
				return nil, err
			}
			next.cells[Position{Row: row, Col: cols[i]}] = NewCell(expr)
		}
	}
	return next, nil
}

// Column returns the computed values of the named column, top to bottom.
// Like ValueAt it requires an evaluated grid.
func (g *Grid) Column(name string) ([]Value, error) {
	col, err := g.columnIndex(name)
	if err != nil {
		return nil, err
	}
	values := make([]Value, g.height)
	for row := 0; row < g.height; row++ {
		cell := g.cellAt(Position{Row: row, Col: col})
		if !cell.Expr.IsPrimitive() {
			return nil, fmt.Errorf("column %s of %s holds formulas, evaluate the grid first", name, g.name)
		}
		v, err := cell.Expr.Compute(nil)
		if err != nil {
			return nil, err
		}
		values[row] = v
	}
	return values, nil
}

// Select returns a new grid holding only the named columns, in the order
// given. References between selected columns are rewritten to the new
// positions; references into dropped columns are left dangling and surface
// as missing dependencies at evaluation time.
func (g *Grid) Select(names ...string) (*Grid, error) {
	next := Empty(g.name, g.height)
	next.width = len(names)
	next.labels = make([]string, len(names))
	for name, ref := range g.refs {
		next.refs[name] = ref
	}

	reloc := make(map[Ref]Ref)
	srcCols := make([]int, len(names))
	for i, name := range names {
		col, err := g.columnIndex(name)
		if err != nil {
			return nil, err
		}
		srcCols[i] = col
		next.labels[i] = g.labelAt(col)
		for row := 0; row < g.height; row++ {
			from := Ref{Grid: g.name, Pos: Position{Row: row, Col: col}}
			to := Ref{Grid: g.name, Pos: Position{Row: row, Col: i}}
			reloc[from] = to
		}
	}

	for i, col := range srcCols {
		for row := 0; row < g.height; row++ {
			cell := g.cellAt(Position{Row: row, Col: col})
			next.cells[Position{Row: row, Col: i}] = cell.relocate(reloc)
		}
	}
	return next, nil
}

// Transpose returns a new grid with rows and columns swapped. Every same-grid
// reference follows its cell to the mirrored position. Column names do not
// survive the swap; the result addresses columns by letter only.
func (g *Grid) Transpose() *Grid {
	next := Empty(g.name, g.width)
	next.width = g.height
	for name, ref := range g.refs {
		next.refs[name] = ref
	}

	reloc := make(map[Ref]Ref)
	for pos := range g.cells {
		from := Ref{Grid: g.name, Pos: pos}
		to := Ref{Grid: g.name, Pos: Position{Row: pos.Col, Col: pos.Row}}
		reloc[from] = to
	}

	for pos, cell := range g.cells {
		next.cells[Position{Row: pos.Col, Col: pos.Row}] = cell.relocate(reloc)
	}
	return next
}

// Concat stacks other below the receiver. Widths must match. Cells from
// other are shifted down and their references into other are rebound to the
// combined grid.
func (g *Grid) Concat(other *Grid) (*Grid, error) {
	if other.width != g.width {
		return nil, fmt.Errorf("cannot concat %s (%d columns) below %s (%d columns)",
			other.name, other.width, g.name, g.width)
	}

	next := g.clone()
	next.height = g.height + other.height
	for name, ref := range other.refs {
		next.refs[name] = ref
	}

	reloc := make(map[Ref]Ref)
	for pos := range other.cells {
		from := Ref{Grid: other.name, Pos: pos}
		to := Ref{Grid: g.name, Pos: Position{Row: pos.Row + g.height, Col: pos.Col}}
		reloc[from] = to
	}

	for pos, cell := range other.cells {
		next.cells[Position{Row: pos.Row + g.height, Col: pos.Col}] = cell.relocate(reloc)
	}
	return next, nil
}

// Evaluate computes every cell and returns a snapshot grid of constants.
// On partial failure the snapshot is still returned: failed cells hold their
// display code and the returned error is an EvalError listing every failure.
func (g *Grid) Evaluate() (*Grid, error) {
	return newEngine(g).run()
}

// String renders the grid's formulas as an aligned table with column headers
// and row numbers. Evaluated grids render their values, since a constant's
// formula text is its value.
func (g *Grid) String() string {
	widths := make([]int, g.width)
	texts := make([][]string, g.height)
	for col := 0; col < g.width; col++ {
		widths[col] = len(g.Header(col))
	}
	for row := 0; row < g.height; row++ {
		texts[row] = make([]string, g.width)
		for col := 0; col < g.width; col++ {
			text := g.cellAt(Position{Row: row, Col: col}).Formula(g.name)
			texts[row][col] = text
			if len(text) > widths[col] {
				widths[col] = len(text)
			}
		}
	}

	rowLabelWidth := len(fmt.Sprintf("%d", g.height))
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%dx%d]\n", g.name, g.height, g.width)
	b.WriteString(strings.Repeat(" ", rowLabelWidth))
	for col := 0; col < g.width; col++ {
		fmt.Fprintf(&b, " %*s", widths[col], g.Header(col))
	}
	b.WriteString("\n")
	for row := 0; row < g.height; row++ {
		fmt.Fprintf(&b, "%*d", rowLabelWidth, row+1)
		for col := 0; col < g.width; col++ {
			fmt.Fprintf(&b, " %*s", widths[col], texts[row][col])
		}
		b.WriteString("\n")
	}
	return b.String()
}
