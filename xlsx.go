package excelgrid

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
)

// WriteXlsx writes a grid and every grid it references to an .xlsx workbook,
// one sheet per grid named after it. Primitive cells are written as typed
// values, derived cells as live formulas, so the workbook recalculates in
// any spreadsheet application.
func WriteXlsx(g *Grid, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	grids := map[string]*Grid{}
	collectGrids(g, grids)

	names := make([]string, 0, len(grids))
	for name := range grids {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writeSheet(f, grids[name]); err != nil {
			return err
		}
	}

	// the workbook starts with a default sheet we never asked for
	if _, taken := grids["Sheet1"]; !taken {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return err
		}
	}
	idx, err := f.GetSheetIndex(g.name)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	return f.SaveAs(path)
}

func collectGrids(g *Grid, into map[string]*Grid) {
	if _, seen := into[g.name]; seen {
		return
	}
	into[g.name] = g
	for _, ref := range g.refs {
		collectGrids(ref, into)
	}
}

func writeSheet(f *excelize.File, g *Grid) error {
	if _, err := f.NewSheet(g.name); err != nil {
		return err
	}
	for row := 0; row < g.height; row++ {
		for col := 0; col < g.width; col++ {
			pos := Position{Row: row, Col: col}
			cell := g.cellAt(pos)
			axis := FormatAddress(pos)

			if c, ok := cell.Expr.(*Constant); ok {
				if c.Value == nil {
					continue
				}
				if err := f.SetCellValue(g.name, axis, c.Value); err != nil {
					return err
				}
				continue
			}
			if err := f.SetCellFormula(g.name, axis, cell.Expr.Formula(g.name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadXlsx loads the named sheet of an .xlsx workbook back into a grid.
// Every other sheet of the workbook is loaded too and bound wherever the
// named grid's formulas reference it.
func ReadXlsx(path string, name string) (*Grid, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	grids := make(map[string]*Grid)
	for _, sheet := range f.GetSheetList() {
		g, err := readSheet(f, sheet)
		if err != nil {
			return nil, err
		}
		grids[sheet] = g
	}

	root, ok := grids[name]
	if !ok {
		return nil, fmt.Errorf("workbook %s has no sheet %q", path, name)
	}

	// rebind cross-grid references to the loaded instances
	for _, g := range grids {
		for _, cell := range g.cells {
			for _, dep := range cell.Dependencies() {
				if dep.Grid == g.name {
					continue
				}
				if target, loaded := grids[dep.Grid]; loaded {
					g.refs[dep.Grid] = target
				}
			}
		}
	}
	return root, nil
}

func readSheet(f *excelize.File, sheet string) (*Grid, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}

	height := len(rows)
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	g := Empty(sheet, height)
	g.width = width

	for row := 0; row < height; row++ {
		for col := 0; col < len(rows[row]); col++ {
			axis := FormatAddress(Position{Row: row, Col: col})

			formula, err := f.GetCellFormula(sheet, axis)
			if err != nil {
				return nil, err
			}

			var expr Expr
			if formula != "" {
				expr, err = ParseFormula(formula, sheet)
			} else {
				expr, err = ParseLiteral(rows[row][col], sheet)
			}
			if err != nil {
				return nil, err
			}
			g.cells[Position{Row: row, Col: col}] = NewCell(expr)
		}
	}
	return g, nil
}
