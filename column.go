package excelgrid

// colContext is the grid a column expression is being materialized into:
// its name, height, and where cross-grid references may point.
type colContext struct {
	grid   string
	height int
	width  int              // final width of the grid being built
	labels []string         // declared column names, "" for letter-only columns
	refs   map[string]*Grid // cross-grid instances referenced while materializing
}

// column resolves a declared column name or letter within the grid being
// built.
func (ctx colContext) column(name string) (int, error) {
	return resolveColumn(ctx.labels, ctx.width, ctx.grid, name)
}

// ColumnExpr builds one cell expression per row of a target column. It is a
// description, not data: nothing is resolved until the expression is
// materialized by Grid.WithColumns, which supplies the grid name and height.
type ColumnExpr struct {
	gen func(ctx colContext, row int) (Expr, error)
}

// ColumnDef binds a column name, declared or letter, to the expression that
// fills it.
type ColumnDef struct {
	Name string
	Expr ColumnExpr
}

// Def pairs a column name with its expression for Grid.WithColumns.
func Def(name string, expr ColumnExpr) ColumnDef {
	return ColumnDef{Name: name, Expr: expr}
}

// Col references the same-row cell of the named column in the target grid.
func Col(name string) ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		col, err := ctx.column(name)
		if err != nil {
			return nil, err
		}
		return &CellRef{Target: Ref{Grid: ctx.grid, Pos: Position{Row: row, Col: col}}}, nil
	}}
}

// ColFrom references the same-row cell of the named column in another grid.
// The other grid must be at least as tall as the target.
func ColFrom(g *Grid, name string) ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		col, err := g.columnIndex(name)
		if err != nil {
			return nil, err
		}
		if row >= g.Height() {
			return nil, &OutOfBoundsError{Grid: g.Name(), Column: name, Row: row}
		}
		ctx.refs[g.Name()] = g
		return &CellRef{Target: Ref{Grid: g.Name(), Pos: Position{Row: row, Col: col}}}, nil
	}}
}

// Lit fills every row with the same literal value.
func Lit(v Value) ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		return &Constant{Value: v}, nil
	}}
}

// At references one fixed cell of the target grid from every row.
func At(addr string) ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		pos, err := ParseAddress(addr)
		if err != nil {
			return nil, err
		}
		return &CellRef{Target: Ref{Grid: ctx.grid, Pos: pos}}, nil
	}}
}

// AtFrom references one fixed cell of another grid from every row.
func AtFrom(g *Grid, addr string) ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		pos, err := ParseAddress(addr)
		if err != nil {
			return nil, err
		}
		if pos.Row >= g.Height() {
			return nil, &OutOfBoundsError{Grid: g.Name(), Column: ColumnName(pos.Col), Row: pos.Row}
		}
		ctx.refs[g.Name()] = g
		return &CellRef{Target: Ref{Grid: g.Name(), Pos: pos}}, nil
	}}
}

// Map derives each row's expression from the row index. It is the escape
// hatch when no combination of the other constructors fits.
func Map(fn func(row int) ColumnExpr) ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		return fn(row).gen(ctx, row)
	}}
}

// Prev shifts the expression n rows up: row i reads what the expression
// would produce for row i-n. Rows with no row i-n fail materialization with
// an OutOfBoundsError rather than silently clamping.
func (e ColumnExpr) Prev(n int) ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		if row-n < 0 {
			return nil, &OutOfBoundsError{Grid: ctx.grid, Column: "", Row: row - n}
		}
		return e.gen(ctx, row-n)
	}}
}

func (e ColumnExpr) binary(op BinaryOp, other ColumnExpr) ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		left, err := e.gen(ctx, row)
		if err != nil {
			return nil, err
		}
		right, err := other.gen(ctx, row)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: op, Left: left, Right: right}, nil
	}}
}

func (e ColumnExpr) Add(other ColumnExpr) ColumnExpr { return e.binary(OpAdd, other) }
func (e ColumnExpr) Sub(other ColumnExpr) ColumnExpr { return e.binary(OpSub, other) }
func (e ColumnExpr) Mul(other ColumnExpr) ColumnExpr { return e.binary(OpMul, other) }
func (e ColumnExpr) Div(other ColumnExpr) ColumnExpr { return e.binary(OpDiv, other) }
func (e ColumnExpr) Pow(other ColumnExpr) ColumnExpr { return e.binary(OpPow, other) }
func (e ColumnExpr) Eq(other ColumnExpr) ColumnExpr  { return e.binary(OpEq, other) }
func (e ColumnExpr) Ne(other ColumnExpr) ColumnExpr  { return e.binary(OpNe, other) }
func (e ColumnExpr) Lt(other ColumnExpr) ColumnExpr  { return e.binary(OpLt, other) }
func (e ColumnExpr) Gt(other ColumnExpr) ColumnExpr  { return e.binary(OpGt, other) }
func (e ColumnExpr) Le(other ColumnExpr) ColumnExpr  { return e.binary(OpLe, other) }
func (e ColumnExpr) Ge(other ColumnExpr) ColumnExpr  { return e.binary(OpGe, other) }

// Neg negates every row's expression.
func (e ColumnExpr) Neg() ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		operand, err := e.gen(ctx, row)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: OpNeg, Operand: operand}, nil
	}}
}

// If selects between two expressions per row based on a boolean condition.
func If(cond, then, els ColumnExpr) ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		c, err := cond.gen(ctx, row)
		if err != nil {
			return nil, err
		}
		t, err := then.gen(ctx, row)
		if err != nil {
			return nil, err
		}
		e, err := els.gen(ctx, row)
		if err != nil {
			return nil, err
		}
		return &Function{Name: FnIf, Args: []Expr{c, t, e}}, nil
	}}
}

// columnRange builds the full-height range of one named column.
func columnRange(ctx colContext, name string) (*RangeRef, error) {
	col, err := ctx.column(name)
	if err != nil {
		return nil, err
	}
	from := Ref{Grid: ctx.grid, Pos: Position{Row: 0, Col: col}}
	to := Ref{Grid: ctx.grid, Pos: Position{Row: ctx.height - 1, Col: col}}
	return newRangeRef(from, to), nil
}

func colAggregate(fn, name string) ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		rng, err := columnRange(ctx, name)
		if err != nil {
			return nil, err
		}
		return &Function{Name: fn, Args: []Expr{rng}}, nil
	}}
}

// SumCol fills every row with the sum of the named column's full height.
func SumCol(name string) ColumnExpr { return colAggregate(FnSum, name) }

// AverageCol fills every row with the mean of the named column.
func AverageCol(name string) ColumnExpr { return colAggregate(FnAverage, name) }

// MaxCol fills every row with the maximum of the named column.
func MaxCol(name string) ColumnExpr { return colAggregate(FnMax, name) }

// MinCol fills every row with the minimum of the named column.
func MinCol(name string) ColumnExpr { return colAggregate(FnMin, name) }

// RunningSum fills row i with the sum of the named column's rows 0..i.
func RunningSum(name string) ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		col, err := ctx.column(name)
		if err != nil {
			return nil, err
		}
		from := Ref{Grid: ctx.grid, Pos: Position{Row: 0, Col: col}}
		to := Ref{Grid: ctx.grid, Pos: Position{Row: row, Col: col}}
		return &Function{Name: FnSum, Args: []Expr{newRangeRef(from, to)}}, nil
	}}
}

// SumProductCols fills every row with SUMPRODUCT over the named columns'
// full heights.
func SumProductCols(names ...string) ColumnExpr {
	return ColumnExpr{gen: func(ctx colContext, row int) (Expr, error) {
		args := make([]Expr, len(names))
		for i, name := range names {
			rng, err := columnRange(ctx, name)
			if err != nil {
				return nil, err
			}
			args[i] = rng
		}
		return &Function{Name: FnSumProduct, Args: args}, nil
	}}
}
