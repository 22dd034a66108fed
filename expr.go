package excelgrid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value represents basic cell value types.
// types:
//   - float64: numeric values (integers are converted to float64)
//   - bool: boolean values (comparison results)
//   - string: text values
//   - nil: unset/empty cells
type Value any

// ValueSource supplies already-resolved values for dependencies during
// Compute. The evaluation engine is the only production implementation;
// expressions never resolve their own dependencies.
type ValueSource interface {
	Resolve(Ref) (Value, error)
}

// Operator precedence values (higher binds tighter). Non-operators use
// precedenceNone and never need parentheses.
const (
	precedenceNone       = 0
	precedenceComparison = 1
	precedenceAdditive   = 2
	precedenceMultiplic  = 3
	precedencePower      = 4
	precedenceUnary      = 5
)

// Expr is one node of a formula expression tree. The variant set is closed:
// Constant, CellRef, RangeRef, Unary, Binary and Function, each implementing
// all operations so no node kind can silently miss one. Nodes are immutable
// and carry no cached state.
type Expr interface {
	// Dependencies lists every cell this node reads, in left-to-right order.
	Dependencies() []Ref

	// Formula renders canonical formula text as seen from the grid named
	// scope; references into other grids carry a grid qualifier.
	Formula(scope string) string

	// Compute resolves the node to a value, reading dependency values from
	// src. It never walks into other cells' expressions.
	Compute(src ValueSource) (Value, error)

	// UpdateRefs returns a node with every embedded address rewritten under
	// the relocation map. Addresses absent from the map stay as they are.
	UpdateRefs(reloc map[Ref]Ref) Expr

	// IsPrimitive is true only for constants.
	IsPrimitive() bool

	precedence() int
}

// needsParens decides whether child must be parenthesized when rendered as
// an operand of a parent with parentPrec. At equal precedence the operand on
// the non-associating side keeps its parentheses: the right one for the
// left-associative tiers, the left one for right-associative power.
func needsParens(child Expr, parentPrec int, rightOperand bool) bool {
	p := child.precedence()
	if p == precedenceNone {
		return false
	}
	if p < parentPrec {
		return true
	}
	if p == parentPrec {
		if parentPrec == precedencePower {
			return !rightOperand
		}
		return rightOperand
	}
	return false
}

func renderOperand(child Expr, scope string, parentPrec int, rightOperand bool) string {
	s := child.Formula(scope)
	if needsParens(child, parentPrec, rightOperand) {
		return "(" + s + ")"
	}
	return s
}

// Constant is a literal. A nil value is the unset literal every cell starts
// with; it renders as empty formula text and computes to nil.
type Constant struct {
	Value Value
}

func (c *Constant) Dependencies() []Ref { return nil }

func (c *Constant) Formula(scope string) string {
	return formatValue(c.Value)
}

func (c *Constant) Compute(src ValueSource) (Value, error) {
	return c.Value, nil
}

func (c *Constant) UpdateRefs(reloc map[Ref]Ref) Expr { return c }

func (c *Constant) IsPrimitive() bool { return true }

func (c *Constant) precedence() int { return precedenceNone }

// CellRef reads one cell, in the same grid or another one.
type CellRef struct {
	Target Ref
}

func (c *CellRef) Dependencies() []Ref { return []Ref{c.Target} }

func (c *CellRef) Formula(scope string) string {
	return formatRef(c.Target, scope)
}

func (c *CellRef) Compute(src ValueSource) (Value, error) {
	return src.Resolve(c.Target)
}

func (c *CellRef) UpdateRefs(reloc map[Ref]Ref) Expr {
	if to, ok := reloc[c.Target]; ok {
		return &CellRef{Target: to}
	}
	return c
}

func (c *CellRef) IsPrimitive() bool { return false }

func (c *CellRef) precedence() int { return precedenceNone }

// RangeRef reads a rectangular run of cells within one grid. It only occurs
// as a function argument; the parser rejects it anywhere else.
type RangeRef struct {
	From Ref
	To   Ref
}

// newRangeRef normalizes corner order so From is the top-left cell.
func newRangeRef(a, b Ref) *RangeRef {
	from := Ref{Grid: a.Grid, Pos: Position{Row: min(a.Pos.Row, b.Pos.Row), Col: min(a.Pos.Col, b.Pos.Col)}}
	to := Ref{Grid: a.Grid, Pos: Position{Row: max(a.Pos.Row, b.Pos.Row), Col: max(a.Pos.Col, b.Pos.Col)}}
	return &RangeRef{From: from, To: to}
}

func (r *RangeRef) Dependencies() []Ref {
	var deps []Ref
	for col := r.From.Pos.Col; col <= r.To.Pos.Col; col++ {
		for row := r.From.Pos.Row; row <= r.To.Pos.Row; row++ {
			deps = append(deps, Ref{Grid: r.From.Grid, Pos: Position{Row: row, Col: col}})
		}
	}
	return deps
}

func (r *RangeRef) Formula(scope string) string {
	if r.From.Grid == scope {
		return FormatAddress(r.From.Pos) + ":" + FormatAddress(r.To.Pos)
	}
	return r.From.Grid + "!" + FormatAddress(r.From.Pos) + ":" + FormatAddress(r.To.Pos)
}

// Compute yields the resolved values of every cell in the range, column by
// column. Aggregate functions flatten this into their argument list.
func (r *RangeRef) Compute(src ValueSource) (Value, error) {
	var values []Value
	for _, dep := range r.Dependencies() {
		v, err := src.Resolve(dep)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (r *RangeRef) UpdateRefs(reloc map[Ref]Ref) Expr {
	from, to := r.From, r.To
	if moved, ok := reloc[from]; ok {
		from = moved
	}
	if moved, ok := reloc[to]; ok {
		to = moved
	}
	if from == r.From && to == r.To {
		return r
	}
	return newRangeRef(from, to)
}

func (r *RangeRef) IsPrimitive() bool { return false }

func (r *RangeRef) precedence() int { return precedenceNone }

// UnaryOp enumerates unary operators. Negation is the only one in the
// dialect.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
)

// Unary applies a unary operator to an operand.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

func (u *Unary) Dependencies() []Ref { return u.Operand.Dependencies() }

func (u *Unary) Formula(scope string) string {
	return "-" + renderOperand(u.Operand, scope, precedenceUnary, false)
}

func (u *Unary) Compute(src ValueSource) (Value, error) {
	v, err := u.Operand.Compute(src)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	n, ok := toNumber(v)
	if !ok {
		return nil, &TypeError{Op: "negation", Value: v}
	}
	return -n, nil
}

func (u *Unary) UpdateRefs(reloc map[Ref]Ref) Expr {
	operand := u.Operand.UpdateRefs(reloc)
	if operand == u.Operand {
		return u
	}
	return &Unary{Op: u.Op, Operand: operand}
}

func (u *Unary) IsPrimitive() bool { return false }

func (u *Unary) precedence() int { return precedenceUnary }

// BinaryOp enumerates binary operators: arithmetic and comparison.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpPow
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
)

func (op BinaryOp) symbol() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpPow:
		return "^"
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpGt:
		return ">"
	case OpLe:
		return "<="
	case OpGe:
		return ">="
	}
	return "?"
}

func (op BinaryOp) isComparison() bool {
	return op >= OpEq
}

func (op BinaryOp) opPrecedence() int {
	switch op {
	case OpAdd, OpSub:
		return precedenceAdditive
	case OpMul, OpDiv:
		return precedenceMultiplic
	case OpPow:
		return precedencePower
	default:
		return precedenceComparison
	}
}

// Binary combines two operands with an arithmetic or comparison operator.
// Comparisons yield a boolean.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (b *Binary) Dependencies() []Ref {
	return append(b.Left.Dependencies(), b.Right.Dependencies()...)
}

func (b *Binary) Formula(scope string) string {
	p := b.precedence()
	return fmt.Sprintf("%s %s %s",
		renderOperand(b.Left, scope, p, false),
		b.Op.symbol(),
		renderOperand(b.Right, scope, p, true))
}

func (b *Binary) Compute(src ValueSource) (Value, error) {
	left, err := b.Left.Compute(src)
	if err != nil {
		return nil, err
	}
	right, err := b.Right.Compute(src)
	if err != nil {
		return nil, err
	}
	// unset operands propagate: the result is unset, not an error
	if left == nil || right == nil {
		return nil, nil
	}

	if b.Op.isComparison() {
		return compareValues(b.Op, left, right)
	}

	leftNum, leftOk := toNumber(left)
	rightNum, rightOk := toNumber(right)
	if !leftOk {
		return nil, &TypeError{Op: "arithmetic " + b.Op.symbol(), Value: left}
	}
	if !rightOk {
		return nil, &TypeError{Op: "arithmetic " + b.Op.symbol(), Value: right}
	}

	switch b.Op {
	case OpAdd:
		return leftNum + rightNum, nil
	case OpSub:
		return leftNum - rightNum, nil
	case OpMul:
		return leftNum * rightNum, nil
	case OpDiv:
		// division by zero follows IEEE: +/-Inf, or NaN for 0/0
		return leftNum / rightNum, nil
	case OpPow:
		return math.Pow(leftNum, rightNum), nil
	}
	return nil, &TypeError{Op: "unknown operator", Value: left}
}

func (b *Binary) UpdateRefs(reloc map[Ref]Ref) Expr {
	left := b.Left.UpdateRefs(reloc)
	right := b.Right.UpdateRefs(reloc)
	if left == b.Left && right == b.Right {
		return b
	}
	return &Binary{Op: b.Op, Left: left, Right: right}
}

func (b *Binary) IsPrimitive() bool { return false }

func (b *Binary) precedence() int { return b.Op.opPrecedence() }

// Function names supported by the dialect.
const (
	FnSum        = "SUM"
	FnAverage    = "AVERAGE"
	FnMax        = "MAX"
	FnMin        = "MIN"
	FnSumProduct = "SUMPRODUCT"
	FnIf         = "IF"
)

// Function is a named call with ordered arguments. Aggregates take range or
// scalar arguments; IF takes exactly condition, then-branch, else-branch.
type Function struct {
	Name string
	Args []Expr
}

func (f *Function) Dependencies() []Ref {
	// IF declares both branches so graph ordering stays safe even though
	// only the taken branch is computed
	var deps []Ref
	for _, arg := range f.Args {
		deps = append(deps, arg.Dependencies()...)
	}
	return deps
}

func (f *Function) Formula(scope string) string {
	args := make([]string, len(f.Args))
	for i, arg := range f.Args {
		args[i] = arg.Formula(scope)
	}
	return f.Name + "(" + strings.Join(args, ", ") + ")"
}

func (f *Function) Compute(src ValueSource) (Value, error) {
	if f.Name == FnIf {
		return f.computeIf(src)
	}

	// flatten scalar and range arguments into one value list per argument
	groups := make([][]Value, len(f.Args))
	for i, arg := range f.Args {
		v, err := arg.Compute(src)
		if err != nil {
			return nil, err
		}
		switch vv := v.(type) {
		case []Value:
			groups[i] = vv
		default:
			groups[i] = []Value{vv}
		}
	}

	if f.Name == FnSumProduct {
		return computeSumProduct(groups)
	}

	var nums []float64
	for _, group := range groups {
		for _, v := range group {
			if v == nil {
				return nil, nil
			}
			n, ok := toNumber(v)
			if !ok {
				return nil, &TypeError{Op: f.Name, Value: v}
			}
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return nil, nil
	}

	switch f.Name {
	case FnSum:
		total := 0.0
		for _, n := range nums {
			total += n
		}
		return total, nil
	case FnAverage:
		total := 0.0
		for _, n := range nums {
			total += n
		}
		return total / float64(len(nums)), nil
	case FnMax:
		best := nums[0]
		for _, n := range nums[1:] {
			best = math.Max(best, n)
		}
		return best, nil
	case FnMin:
		best := nums[0]
		for _, n := range nums[1:] {
			best = math.Min(best, n)
		}
		return best, nil
	}
	return nil, &TypeError{Op: "unknown function " + f.Name, Value: nil}
}

// computeIf evaluates the condition eagerly and only the selected branch.
func (f *Function) computeIf(src ValueSource) (Value, error) {
	if len(f.Args) != 3 {
		return nil, &TypeError{Op: "IF expects 3 arguments", Value: nil}
	}
	cond, err := f.Args[0].Compute(src)
	if err != nil {
		return nil, err
	}
	if cond == nil {
		return nil, nil
	}
	b, ok := cond.(bool)
	if !ok {
		return nil, &TypeError{Op: "IF condition", Value: cond}
	}
	if b {
		return f.Args[1].Compute(src)
	}
	return f.Args[2].Compute(src)
}

func computeSumProduct(groups [][]Value) (Value, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	width := len(groups[0])
	for _, group := range groups {
		if len(group) != width {
			return nil, &TypeError{Op: "SUMPRODUCT ranges must have equal size", Value: nil}
		}
	}
	total := 0.0
	for i := 0; i < width; i++ {
		product := 1.0
		for _, group := range groups {
			v := group[i]
			if v == nil {
				return nil, nil
			}
			n, ok := toNumber(v)
			if !ok {
				return nil, &TypeError{Op: "SUMPRODUCT", Value: v}
			}
			product *= n
		}
		total += product
	}
	return total, nil
}

func (f *Function) UpdateRefs(reloc map[Ref]Ref) Expr {
	changed := false
	args := make([]Expr, len(f.Args))
	for i, arg := range f.Args {
		args[i] = arg.UpdateRefs(reloc)
		if args[i] != arg {
			changed = true
		}
	}
	if !changed {
		return f
	}
	return &Function{Name: f.Name, Args: args}
}

func (f *Function) IsPrimitive() bool { return false }

func (f *Function) precedence() int { return precedenceNone }

// compareValues compares two non-nil values. Numbers compare numerically,
// strings lexically, booleans only under = and <>. Mixed kinds fail.
func compareValues(op BinaryOp, left, right Value) (Value, error) {
	if leftNum, ok := toNumber(left); ok {
		rightNum, ok := toNumber(right)
		if !ok {
			return nil, &TypeError{Op: "comparison " + op.symbol(), Value: right}
		}
		return compareOrdered(op, leftNum, rightNum)
	}
	if leftStr, ok := left.(string); ok {
		rightStr, ok := right.(string)
		if !ok {
			return nil, &TypeError{Op: "comparison " + op.symbol(), Value: right}
		}
		return compareOrdered(op, leftStr, rightStr)
	}
	if leftBool, ok := left.(bool); ok {
		rightBool, ok := right.(bool)
		if !ok {
			return nil, &TypeError{Op: "comparison " + op.symbol(), Value: right}
		}
		switch op {
		case OpEq:
			return leftBool == rightBool, nil
		case OpNe:
			return leftBool != rightBool, nil
		}
		return nil, &TypeError{Op: "ordering comparison on booleans", Value: left}
	}
	return nil, &TypeError{Op: "comparison " + op.symbol(), Value: left}
}

func compareOrdered[T float64 | string](op BinaryOp, left, right T) (Value, error) {
	switch op {
	case OpEq:
		return left == right, nil
	case OpNe:
		return left != right, nil
	case OpLt:
		return left < right, nil
	case OpGt:
		return left > right, nil
	case OpLe:
		return left <= right, nil
	case OpGe:
		return left >= right, nil
	}
	return nil, &TypeError{Op: "unknown comparison", Value: left}
}

// toNumber converts a value to float64 if it is numeric.
func toNumber(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// formatValue renders a value as canonical formula/value text. Integral
// floats drop the decimal part; unset renders empty.
func formatValue(v Value) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case float64:
		if vv == float64(int64(vv)) && math.Abs(vv) < 1e15 {
			return strconv.FormatInt(int64(vv), 10)
		}
		return strconv.FormatFloat(vv, 'g', -1, 64)
	case bool:
		if vv {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return vv
	default:
		return fmt.Sprintf("%v", vv)
	}
}
