package excelgrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, input, scope string) Expr {
	t.Helper()
	expr, err := ParseFormula(input, scope)
	require.NoError(t, err)
	return expr
}

func TestParseFormulaRoundTrip(t *testing.T) {
	// canonical formulas survive a parse/render cycle unchanged
	formulas := []string{
		"A1",
		"42",
		"3.5",
		"TRUE",
		"FALSE",
		"-A1",
		"A1 + B1",
		"A1 - B1",
		"A1 * B1",
		"A1 / B1",
		"A1 ^ B1",
		"A1 = B1",
		"A1 <> B1",
		"A1 < B1",
		"A1 <= B1",
		"A1 > B1",
		"A1 >= B1",
		"SUM(A1:A10)",
		"SUM(A1, B1, C1)",
		"AVERAGE(B1:B5)",
		"MAX(A1:A3)",
		"MIN(A1:A3)",
		"SUMPRODUCT(A1:A3, B1:B3)",
		"IF(A1 > B1, A1, B1)",
		"rates!B2",
		"SUM(rates!A1:A5)",
		"A1 + rates!B2 * C3",
	}
	for _, formula := range formulas {
		t.Run(formula, func(t *testing.T) {
			expr := mustParse(t, formula, "loan")
			assert.Equal(t, formula, expr.Formula("loan"))
		})
	}
}

func TestFormulaMinimalParens(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		// redundant parentheses are dropped
		{"(A1)", "A1"},
		{"((A1 + B1))", "A1 + B1"},
		{"(A1 * B1) - A1", "A1 * B1 - A1"},
		{"A1 + (B1 * C1)", "A1 + B1 * C1"},
		{"A1 ^ B1 * C1", "A1 ^ B1 * C1"},
		{"A1 + B1 * C1 ^ D1", "A1 + B1 * C1 ^ D1"},
		// structural parentheses survive
		{"(A1 + B1) * C1", "(A1 + B1) * C1"},
		{"(A1 - B1) / C1", "(A1 - B1) / C1"},
		{"A1 * (B1 ^ C1)", "A1 * B1 ^ C1"},
		{"(A1 * B1) ^ C1", "(A1 * B1) ^ C1"},
		{"A1 - (B1 - C1)", "A1 - (B1 - C1)"},
		{"A1 / (B1 / C1)", "A1 / (B1 / C1)"},
		{"A1 - (B1 + C1)", "A1 - (B1 + C1)"},
		// power is right-associative, the bare chain needs no parens
		{"A1 ^ (B1 ^ C1)", "A1 ^ B1 ^ C1"},
		{"(A1 ^ B1) ^ C1", "(A1 ^ B1) ^ C1"},
		{"-(A1 + B1)", "-(A1 + B1)"},
		{"-A1 + B1", "-A1 + B1"},
		{"(A1 + B1) = C1", "A1 + B1 = C1"},
	}
	src := mapSource{
		ref("g", "A1"): float64(7),
		ref("g", "B1"): float64(3),
		ref("g", "C1"): float64(2),
		ref("g", "D1"): float64(5),
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr := mustParse(t, tt.input, "g")
			got := expr.Formula("g")
			assert.Equal(t, tt.want, got)

			// the canonical form parses back to an identical rendering and
			// an equal value
			again := mustParse(t, got, "g")
			assert.Equal(t, got, again.Formula("g"))

			want, err := expr.Compute(src)
			require.NoError(t, err)
			have, err := again.Compute(src)
			require.NoError(t, err)
			assert.Equal(t, want, have)
		})
	}
}

func TestParseFormulaLeadingEquals(t *testing.T) {
	with := mustParse(t, "=A1 + B1", "g")
	without := mustParse(t, "A1 + B1", "g")
	assert.Equal(t, without.Formula("g"), with.Formula("g"))
}

func TestParseFormulaConstantFolding(t *testing.T) {
	expr := mustParse(t, "-3", "g")
	c, ok := expr.(*Constant)
	require.True(t, ok)
	assert.Equal(t, float64(-3), c.Value)
}

func TestParseFormulaDependencies(t *testing.T) {
	expr := mustParse(t, "SUM(A1:A3) + rates!B2", "loan")

	deps := expr.Dependencies()
	want := []Ref{
		{Grid: "loan", Pos: Position{0, 0}},
		{Grid: "loan", Pos: Position{1, 0}},
		{Grid: "loan", Pos: Position{2, 0}},
		{Grid: "rates", Pos: Position{1, 1}},
	}
	assert.Equal(t, want, deps)
}

func TestParseFormulaErrors(t *testing.T) {
	inputs := []string{
		"",
		"=",
		"A1 +",
		"* A1",
		"A1 B1",
		"(A1",
		"A1)",
		"SUM(",
		"SUM(A1",
		"SUM()",
		"NOSUCHFN(A1)",
		"IF(A1)",
		"IF(A1, B1, C1, D1)",
		// ranges are only valid as whole arguments of range-taking functions
		"A1:A5",
		"A1 + B1:B5",
		"IF(A1:A5, 1, 2)",
		"SUM(A1:rates!A5)",
		"1.2.3",
		"A1 <> ",
		"rates!",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseFormula(input, "g")
			require.Error(t, err)
			var parseErr *FormulaParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestParseFormulaErrorPosition(t *testing.T) {
	_, err := ParseFormula("A1 + * B1", "g")
	require.Error(t, err)
	var parseErr *FormulaParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "*", parseErr.Offending)
	assert.Equal(t, 5, parseErr.Pos)
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		input string
		want  Value
	}{
		{"42", float64(42)},
		{"3.5", 3.5},
		{"-10", float64(-10)},
		{"1e3", float64(1000)},
		{"TRUE", true},
		{"FALSE", false},
		{"hello", "hello"},
		{"12 apples", "12 apples"},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := ParseLiteral(tt.input, "g")
			require.NoError(t, err)
			c, ok := expr.(*Constant)
			require.True(t, ok)
			assert.Equal(t, tt.want, c.Value)
		})
	}
}

func TestParseLiteralFormula(t *testing.T) {
	expr, err := ParseLiteral("=A1 + B1", "g")
	require.NoError(t, err)
	assert.False(t, expr.IsPrimitive())
	assert.Equal(t, "A1 + B1", expr.Formula("g"))

	_, err = ParseLiteral("=A1 +", "g")
	assert.Error(t, err)
}
