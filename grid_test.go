package excelgrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustColumns(t *testing.T, g *Grid, defs ...ColumnDef) *Grid {
	t.Helper()
	next, err := g.WithColumns(defs...)
	require.NoError(t, err)
	return next
}

func mustEvaluate(t *testing.T, g *Grid) *Grid {
	t.Helper()
	snapshot, err := g.Evaluate()
	require.NoError(t, err)
	return snapshot
}

func mustFormula(t *testing.T, g *Grid, addr string) string {
	t.Helper()
	formula, err := g.Formula(addr)
	require.NoError(t, err)
	return formula
}

func TestWithColumns(t *testing.T) {
	g := mustColumns(t, Empty("sales", 3),
		Def("A", Lit(2)),
		Def("B", Col("A").Mul(Lit(3))),
	)

	assert.Equal(t, 3, g.Height())
	assert.Equal(t, 2, g.Width())
	assert.Equal(t, "2", mustFormula(t, g, "A2"))
	assert.Equal(t, "=A2 * 3", mustFormula(t, g, "B2"))

	values, err := mustEvaluate(t, g).Column("B")
	require.NoError(t, err)
	assert.Equal(t, []Value{float64(6), float64(6), float64(6)}, values)
}

func TestWithColumnsLeavesReceiverUntouched(t *testing.T) {
	base := mustColumns(t, Empty("base", 2), Def("A", Lit(1)))
	derived := mustColumns(t, base, Def("A", Lit(9)), Def("B", Col("A")))

	assert.Equal(t, 1, base.Width())
	assert.Equal(t, "1", mustFormula(t, base, "A1"))
	assert.Equal(t, 2, derived.Width())
	assert.Equal(t, "9", mustFormula(t, derived, "A1"))
}

func TestWithColumnsCompounding(t *testing.T) {
	// year-over-year balance: begin with 100, grow by the rate each year
	g := mustColumns(t, Empty("savings", 3),
		Def("A", Lit(0.10)),
		Def("B", Map(func(row int) ColumnExpr {
			if row == 0 {
				return Lit(float64(100))
			}
			return Col("C").Prev(1)
		})),
		Def("C", Col("B").Mul(Lit(float64(1)).Add(Col("A")))),
	)

	assert.Equal(t, "=C1", mustFormula(t, g, "B2"))
	assert.Equal(t, "=B2 * (1 + A2)", mustFormula(t, g, "C2"))

	eoy, err := mustEvaluate(t, g).Column("C")
	require.NoError(t, err)
	require.Len(t, eoy, 3)
	assert.InDelta(t, 110.0, eoy[0].(float64), 1e-9)
	assert.InDelta(t, 121.0, eoy[1].(float64), 1e-9)
	assert.InDelta(t, 133.1, eoy[2].(float64), 1e-9)
}

func TestNamedColumns(t *testing.T) {
	// same model as TestWithColumnsCompounding, columns addressed by name
	g := mustColumns(t, Empty("savings", 3),
		Def("annual_return", Lit(0.10)),
		Def("boy_amount", Map(func(row int) ColumnExpr {
			if row == 0 {
				return Lit(float64(100))
			}
			return Col("eoy_amount").Prev(1)
		})),
		Def("eoy_amount", Col("boy_amount").Mul(Lit(float64(1)).Add(Col("annual_return")))),
		Def("total", SumCol("eoy_amount")),
	)

	assert.Equal(t, 4, g.Width())
	assert.Equal(t, []string{"annual_return (A)", "boy_amount (B)", "eoy_amount (C)", "total (D)"}, g.Headers())

	// formula text stays in the letter dialect
	assert.Equal(t, "=B2 * (1 + A2)", mustFormula(t, g, "C2"))
	assert.Equal(t, "=SUM(C1:C3)", mustFormula(t, g, "D1"))

	snapshot := mustEvaluate(t, g)
	eoy, err := snapshot.Column("eoy_amount")
	require.NoError(t, err)
	require.Len(t, eoy, 3)
	assert.InDelta(t, 110.0, eoy[0].(float64), 1e-9)
	assert.InDelta(t, 121.0, eoy[1].(float64), 1e-9)
	assert.InDelta(t, 133.1, eoy[2].(float64), 1e-9)

	total, err := snapshot.Column("total")
	require.NoError(t, err)
	assert.InDelta(t, 364.1, total[0].(float64), 1e-9)
}

func TestNamedColumnRedefinition(t *testing.T) {
	base := mustColumns(t, Empty("g", 2), Def("x", Lit(float64(1))))
	next := mustColumns(t, base, Def("x", Lit(float64(5))), Def("y", Col("x")))

	assert.Equal(t, 2, next.Width())
	assert.Equal(t, "5", mustFormula(t, next, "A1"))
	assert.Equal(t, "=A1", mustFormula(t, next, "B1"))
}

func TestEmptyWithDeclaredColumns(t *testing.T) {
	g := Empty("g", 2, "x", "y")
	assert.Equal(t, 2, g.Width())
	assert.Equal(t, []string{"x (A)", "y (B)"}, g.Headers())

	// filling declared columns does not widen the grid
	g = mustColumns(t, g, Def("y", Lit(float64(3))), Def("x", Col("y").Mul(Lit(float64(2)))))
	assert.Equal(t, 2, g.Width())

	values, err := mustEvaluate(t, g).Column("x")
	require.NoError(t, err)
	assert.Equal(t, []Value{float64(6), float64(6)}, values)
}

func TestNamedColumnsMixWithLetters(t *testing.T) {
	g := mustColumns(t, Empty("g", 1),
		Def("amount", Lit(float64(7))),
		Def("B", Col("amount").Add(Col("A"))),
	)

	assert.Equal(t, []string{"amount (A)", "B"}, g.Headers())
	assert.Contains(t, g.String(), "amount (A)")

	values, err := mustEvaluate(t, g).Column("B")
	require.NoError(t, err)
	assert.Equal(t, []Value{float64(14)}, values)
}

func TestSelfReferencingColumn(t *testing.T) {
	// a column may read its own earlier rows
	g := mustColumns(t, Empty("counter", 4),
		Def("A", Map(func(row int) ColumnExpr {
			if row == 0 {
				return Lit(float64(1))
			}
			return Col("A").Prev(1).Add(Lit(float64(1)))
		})),
	)

	values, err := mustEvaluate(t, g).Column("A")
	require.NoError(t, err)
	assert.Equal(t, []Value{float64(1), float64(2), float64(3), float64(4)}, values)
}

func TestPrevBeforeFirstRow(t *testing.T) {
	_, err := Empty("g", 2).WithColumns(
		Def("A", Lit(1)),
		Def("B", Col("A").Prev(1)),
	)
	require.Error(t, err)
	var oob *OutOfBoundsError
	assert.ErrorAs(t, err, &oob)
}

func TestUnknownColumn(t *testing.T) {
	_, err := Empty("g", 2).WithColumns(Def("A", Col("Q")))
	require.Error(t, err)
	var unknown *UnknownColumnError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Q", unknown.Column)

	// a later definition of the same call is a legal forward reference
	g, err := Empty("g", 2).WithColumns(Def("A", Col("B")), Def("B", Lit(float64(4))))
	require.NoError(t, err)
	values, err := mustEvaluate(t, g).Column("A")
	require.NoError(t, err)
	assert.Equal(t, []Value{float64(4), float64(4)}, values)
}

func TestColumnAggregates(t *testing.T) {
	g := mustColumns(t, Empty("g", 4),
		Def("A", Map(func(row int) ColumnExpr { return Lit(float64(row + 1)) })),
		Def("B", Lit(float64(10))),
		Def("C", SumCol("A")),
		Def("D", AverageCol("A")),
		Def("E", MaxCol("A")),
		Def("F", MinCol("A")),
		Def("G", RunningSum("A")),
		Def("H", SumProductCols("A", "B")),
	)

	assert.Equal(t, "=SUM(A1:A4)", mustFormula(t, g, "C1"))
	assert.Equal(t, "=SUM(A1:A3)", mustFormula(t, g, "G3"))
	assert.Equal(t, "=SUMPRODUCT(A1:A4, B1:B4)", mustFormula(t, g, "H2"))

	snapshot := mustEvaluate(t, g)
	for addr, want := range map[string]float64{
		"C1": 10, "D1": 2.5, "E1": 4, "F1": 1,
		"G1": 1, "G2": 3, "G3": 6, "G4": 10,
		"H1": 100,
	} {
		v, err := snapshot.ValueAt(addr)
		require.NoError(t, err)
		assert.Equal(t, want, v, addr)
	}
}

func TestIfColumn(t *testing.T) {
	g := mustColumns(t, Empty("g", 3),
		Def("A", Map(func(row int) ColumnExpr { return Lit(float64(row)) })),
		Def("B", If(Col("A").Gt(Lit(float64(0))), Col("A").Mul(Lit(float64(10))), Lit(float64(-1)))),
	)

	assert.Equal(t, "=IF(A2 > 0, A2 * 10, -1)", mustFormula(t, g, "B2"))

	values, err := mustEvaluate(t, g).Column("B")
	require.NoError(t, err)
	assert.Equal(t, []Value{float64(-1), float64(10), float64(20)}, values)
}

func TestSetCell(t *testing.T) {
	g := mustColumns(t, Empty("g", 2), Def("A", Lit(float64(1))), Def("B", Col("A")))

	require.NoError(t, g.SetCell("A1", "5"))
	require.NoError(t, g.SetCell("A2", "=A1 * 2"))
	assert.Equal(t, "5", mustFormula(t, g, "A1"))
	assert.Equal(t, "=A1 * 2", mustFormula(t, g, "A2"))

	var oob *OutOfBoundsError
	assert.ErrorAs(t, g.SetCell("C1", "1"), &oob)
	assert.ErrorAs(t, g.SetCell("A3", "1"), &oob)

	var parseErr *AddressParseError
	assert.ErrorAs(t, g.SetCell("a1", "1"), &parseErr)
}

func TestValueAtRequiresEvaluatedGrid(t *testing.T) {
	g := mustColumns(t, Empty("g", 1), Def("A", Lit(float64(1))), Def("B", Col("A")))

	v, err := g.ValueAt("A1")
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)

	_, err = g.ValueAt("B1")
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	g := mustColumns(t, Empty("g", 2),
		Def("A", Lit(float64(2))),
		Def("B", Lit(float64(5))),
		Def("C", Col("A").Mul(Lit(float64(10)))),
	)

	picked, err := g.Select("C", "A")
	require.NoError(t, err)
	assert.Equal(t, 2, picked.Width())

	// C moved to column A, its reference follows A to column B
	assert.Equal(t, "=B1 * 10", mustFormula(t, picked, "A1"))
	assert.Equal(t, "2", mustFormula(t, picked, "B1"))

	v, err := mustEvaluate(t, picked).ValueAt("A1")
	require.NoError(t, err)
	assert.Equal(t, float64(20), v)

	_, err = g.Select("Z")
	var unknown *UnknownColumnError
	assert.ErrorAs(t, err, &unknown)
}

func TestSelectByName(t *testing.T) {
	g := mustColumns(t, Empty("g", 2),
		Def("x", Lit(float64(1))),
		Def("y", Col("x").Add(Lit(float64(1)))),
		Def("z", Lit(float64(9))),
	)

	picked, err := g.Select("y", "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"y (A)", "x (B)"}, picked.Headers())
	assert.Equal(t, "=B1 + 1", mustFormula(t, picked, "A1"))
}

func TestSelectDanglingReference(t *testing.T) {
	g := mustColumns(t, Empty("g", 1),
		Def("A", Lit(float64(1))),
		Def("B", Lit(float64(2))),
		Def("C", Col("B")),
	)

	picked, err := g.Select("C")
	require.NoError(t, err)

	// the reference into dropped column B now points outside the grid
	_, err = picked.Evaluate()
	require.Error(t, err)
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)

	failure, ok := evalErr.ByCell(Ref{Grid: "g", Pos: Position{0, 0}})
	require.True(t, ok)
	var missing *MissingDependencyError
	assert.ErrorAs(t, failure, &missing)
}

func TestTranspose(t *testing.T) {
	g := mustColumns(t, Empty("g", 2),
		Def("A", Map(func(row int) ColumnExpr { return Lit(float64(row + 1)) })),
		Def("B", Col("A").Mul(Lit(float64(10)))),
	)

	flipped := g.Transpose()
	assert.Equal(t, 2, flipped.Height())
	assert.Equal(t, 2, flipped.Width())

	// cell B2 moved to row 2 column B; its reference to A2 followed to B1
	assert.Equal(t, "=B1 * 10", mustFormula(t, flipped, "B2"))

	snapshot := mustEvaluate(t, flipped)
	v, err := snapshot.ValueAt("B2")
	require.NoError(t, err)
	assert.Equal(t, float64(20), v)
	v, err = snapshot.ValueAt("B1")
	require.NoError(t, err)
	assert.Equal(t, float64(2), v)
}

func TestConcat(t *testing.T) {
	top := mustColumns(t, Empty("top", 2),
		Def("A", Lit(float64(1))),
		Def("B", Col("A").Add(Lit(float64(1)))),
	)
	bottom := mustColumns(t, Empty("bottom", 2),
		Def("A", Lit(float64(100))),
		Def("B", Col("A").Add(Lit(float64(1)))),
	)

	combined, err := top.Concat(bottom)
	require.NoError(t, err)
	assert.Equal(t, 4, combined.Height())
	assert.Equal(t, "top", combined.Name())

	// bottom's rows shifted down and rebound to the combined grid
	assert.Equal(t, "=A3 + 1", mustFormula(t, combined, "B3"))

	snapshot := mustEvaluate(t, combined)
	v, err := snapshot.ValueAt("B4")
	require.NoError(t, err)
	assert.Equal(t, float64(101), v)
}

func TestConcatWidthMismatch(t *testing.T) {
	top := mustColumns(t, Empty("top", 1), Def("A", Lit(1)))
	bottom := mustColumns(t, Empty("bottom", 1), Def("A", Lit(1)), Def("B", Lit(2)))

	_, err := top.Concat(bottom)
	assert.Error(t, err)
}

func TestCrossGridReferences(t *testing.T) {
	rates := mustColumns(t, Empty("rates", 2), Def("A", Lit(0.05)))
	loan := mustColumns(t, Empty("loan", 2),
		Def("A", Lit(float64(1000))),
		Def("B", Col("A").Mul(ColFrom(rates, "A"))),
		Def("C", AtFrom(rates, "A1")),
	)

	assert.Equal(t, "=A1 * rates!A1", mustFormula(t, loan, "B1"))
	assert.Equal(t, "=rates!A1", mustFormula(t, loan, "C2"))

	values, err := mustEvaluate(t, loan).Column("B")
	require.NoError(t, err)
	assert.Equal(t, []Value{float64(50), float64(50)}, values)
}

func TestColFromByName(t *testing.T) {
	rates := mustColumns(t, Empty("rates", 2), Def("rate", Lit(0.05)))
	loan := mustColumns(t, Empty("loan", 2),
		Def("principal", Lit(float64(1000))),
		Def("interest", Col("principal").Mul(ColFrom(rates, "rate"))),
	)

	assert.Equal(t, "=A1 * rates!A1", mustFormula(t, loan, "B1"))

	values, err := mustEvaluate(t, loan).Column("interest")
	require.NoError(t, err)
	assert.Equal(t, []Value{float64(50), float64(50)}, values)
}

func TestColFromRequiresTallEnoughSource(t *testing.T) {
	short := mustColumns(t, Empty("short", 1), Def("A", Lit(1)))

	_, err := Empty("g", 3).WithColumns(Def("A", ColFrom(short, "A")))
	require.Error(t, err)
	var oob *OutOfBoundsError
	assert.ErrorAs(t, err, &oob)

	_, err = Empty("g", 3).WithColumns(Def("A", AtFrom(short, "A2")))
	assert.ErrorAs(t, err, &oob)
}

func TestGridString(t *testing.T) {
	g := mustColumns(t, Empty("g", 2),
		Def("A", Lit(float64(1))),
		Def("B", Col("A").Add(Lit(float64(1)))),
	)

	out := g.String()
	assert.Contains(t, out, "g [2x2]")
	assert.Contains(t, out, "A1 + 1")
	assert.Contains(t, out, "1 ")
}
