package excelgrid

// Cell pairs an expression with presentation metadata. The expression is the
// cell's single source of truth; computed values live only in evaluated
// snapshots, never on the cell itself.
type Cell struct {
	Expr     Expr
	Editable bool
	Color    string
}

// NewCell wraps an expression in a cell with default metadata. Primitive
// cells are editable, derived cells are not.
func NewCell(expr Expr) *Cell {
	return &Cell{Expr: expr, Editable: expr.IsPrimitive()}
}

// EmptyCell is the unset cell every grid position starts as.
func EmptyCell() *Cell {
	return NewCell(&Constant{})
}

// Formula renders the cell's expression as seen from the grid named scope.
// Derived cells carry the "=" prefix, primitive cells render their raw value.
func (c *Cell) Formula(scope string) string {
	if c.Expr.IsPrimitive() {
		return c.Expr.Formula(scope)
	}
	return "=" + c.Expr.Formula(scope)
}

// Dependencies lists the cells this cell reads.
func (c *Cell) Dependencies() []Ref {
	return c.Expr.Dependencies()
}

// WithExpr returns a copy of the cell holding a new expression. Metadata is
// kept except editability, which follows the new expression's kind.
func (c *Cell) WithExpr(expr Expr) *Cell {
	return &Cell{Expr: expr, Editable: expr.IsPrimitive(), Color: c.Color}
}

// WithColor returns a copy of the cell with a display color.
func (c *Cell) WithColor(color string) *Cell {
	return &Cell{Expr: c.Expr, Editable: c.Editable, Color: color}
}

// relocate rewrites the cell's embedded references under the relocation map.
func (c *Cell) relocate(reloc map[Ref]Ref) *Cell {
	expr := c.Expr.UpdateRefs(reloc)
	if expr == c.Expr {
		return c
	}
	return &Cell{Expr: expr, Editable: c.Editable, Color: c.Color}
}
