package excelgrid

// CellView is the display projection of one cell: what an interactive viewer
// needs to render and edit it. Formula, dependencies and editability come
// straight from the cell; the value text requires an evaluated snapshot.
type CellView struct {
	Formula string `json:"formula"`
	Value   string `json:"value"`
	// DepIndices lists same-grid dependencies as [row, col] pairs. The view
	// covers a single grid, so references into other grids have no index
	// here and are omitted; their targets remain visible in Formula.
	DepIndices [][2]int `json:"depIndices"`
	IsEditable bool     `json:"is_editable"`
	Color      string   `json:"color,omitempty"`
}

// GridView is the display projection of a whole grid, row-major. Columns
// holds each column's header, "amount (B)" for named columns and the bare
// letter otherwise.
type GridView struct {
	Name    string       `json:"name"`
	Height  int          `json:"height"`
	Width   int          `json:"width"`
	Columns []string     `json:"columns"`
	Cells   [][]CellView `json:"cells"`
}

// Project builds the view of a grid. snapshot is the grid's latest
// evaluation and supplies the value texts; pass nil to project formulas
// only. Dependency indices cover same-grid references, which is what a
// single-grid viewer can highlight.
func Project(g *Grid, snapshot *Grid) *GridView {
	view := &GridView{
		Name:    g.name,
		Height:  g.height,
		Width:   g.width,
		Columns: g.Headers(),
		Cells:   make([][]CellView, g.height),
	}

	for row := 0; row < g.height; row++ {
		view.Cells[row] = make([]CellView, g.width)
		for col := 0; col < g.width; col++ {
			pos := Position{Row: row, Col: col}
			cell := g.cellAt(pos)

			deps := [][2]int{}
			for _, dep := range cell.Dependencies() {
				if dep.Grid == g.name {
					deps = append(deps, [2]int{dep.Pos.Row, dep.Pos.Col})
				}
			}

			value := ""
			if snapshot != nil && snapshot.inBounds(pos) {
				if c, ok := snapshot.cellAt(pos).Expr.(*Constant); ok {
					value = formatValue(c.Value)
				}
			}

			view.Cells[row][col] = CellView{
				Formula:    cell.Formula(g.name),
				Value:      value,
				DepIndices: deps,
				IsEditable: cell.Editable,
				Color:      cell.Color,
			}
		}
	}
	return view
}

// UpdateCell is the editing entry point used by the viewer: it rejects edits
// to derived cells, then replaces the target the same way the entry bar
// would.
func UpdateCell(g *Grid, addr string, input string) error {
	cell, err := g.CellAt(addr)
	if err != nil {
		return err
	}
	if !cell.Editable {
		pos, _ := ParseAddress(addr)
		return &CellNotEditableError{Cell: Ref{Grid: g.name, Pos: pos}}
	}
	return g.SetCell(addr, input)
}
