package excelgrid

import (
	"strconv"
	"strings"
)

// funcSpec describes one callable function in the formula dialect.
type funcSpec struct {
	minArgs   int
	maxArgs   int // -1 for variadic
	rangeArgs bool
}

// FormulaParser holds the grammar of the formula dialect: the function table
// and operator set. It is built once and safe for concurrent use; per-parse
// state lives in a throwaway parse struct.
type FormulaParser struct {
	functions map[string]funcSpec
}

// NewFormulaParser compiles the grammar.
func NewFormulaParser() *FormulaParser {
	return &FormulaParser{
		functions: map[string]funcSpec{
			FnSum:        {minArgs: 1, maxArgs: -1, rangeArgs: true},
			FnAverage:    {minArgs: 1, maxArgs: -1, rangeArgs: true},
			FnMax:        {minArgs: 1, maxArgs: -1, rangeArgs: true},
			FnMin:        {minArgs: 1, maxArgs: -1, rangeArgs: true},
			FnSumProduct: {minArgs: 1, maxArgs: -1, rangeArgs: true},
			FnIf:         {minArgs: 3, maxArgs: 3},
		},
	}
}

var defaultParser = NewFormulaParser()

// ParseFormula parses formula text into an expression tree. Unqualified
// references bind to the grid named scope. A leading "=" is accepted and
// ignored so user-typed formulas parse the same as canonical ones.
func ParseFormula(input, scope string) (Expr, error) {
	return defaultParser.Parse(input, scope)
}

// Parse parses one formula under this grammar.
func (g *FormulaParser) Parse(input, scope string) (Expr, error) {
	text := strings.TrimSpace(input)
	text = strings.TrimPrefix(text, "=")

	tokens, err := newLexer(text).tokenize()
	if err != nil {
		return nil, err
	}

	p := &parse{grammar: g, input: text, tokens: tokens, scope: scope}
	expr, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.typ != tokenEOF {
		return nil, p.errorAt(tok, "unexpected token after expression")
	}
	return expr, nil
}

// parse is the per-call state of one parser run.
type parse struct {
	grammar *FormulaParser
	input   string
	tokens  []token
	pos     int
	scope   string
}

func (p *parse) current() token {
	return p.tokens[p.pos]
}

func (p *parse) advance() token {
	tok := p.tokens[p.pos]
	if tok.typ != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parse) errorAt(tok token, reason string) error {
	offending := tok.text
	if tok.typ == tokenEOF {
		offending = "end of formula"
	}
	return &FormulaParseError{
		Input:     p.input,
		Offending: offending,
		Pos:       tok.pos,
		Reason:    reason,
	}
}

// parseComparison handles the comparison operators, the loosest-binding tier.
func (p *parse) parseComparison() (Expr, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		if tok.typ != tokenOp {
			return left, nil
		}
		var op BinaryOp
		switch tok.text {
		case "=":
			op = OpEq
		case "<>":
			op = OpNe
		case "<":
			op = OpLt
		case ">":
			op = OpGt
		case "<=":
			op = OpLe
		case ">=":
			op = OpGe
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parse) parseAddition() (Expr, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		if tok.typ != tokenOp {
			return left, nil
		}
		var op BinaryOp
		switch tok.text {
		case "+":
			op = OpAdd
		case "-":
			op = OpSub
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parse) parseMultiplication() (Expr, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		if tok.typ != tokenOp {
			return left, nil
		}
		var op BinaryOp
		switch tok.text {
		case "*":
			op = OpMul
		case "/":
			op = OpDiv
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parse) parsePower() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	// right-associative
	if tok := p.current(); tok.typ == tokenOp && tok.text == "^" {
		p.advance()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &Binary{Op: OpPow, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *parse) parseUnary() (Expr, error) {
	tok := p.current()
	if tok.typ == tokenOp && (tok.text == "-" || tok.text == "+") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if tok.text == "+" {
			return operand, nil
		}
		// fold negation into numeric literals so -1 round-trips as a constant
		if c, ok := operand.(*Constant); ok {
			if n, isNum := toNumber(c.Value); isNum {
				return &Constant{Value: -n}, nil
			}
		}
		return &Unary{Op: OpNeg, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parse) parsePrimary() (Expr, error) {
	tok := p.current()

	switch tok.typ {
	case tokenNumber:
		p.advance()
		val, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, p.errorAt(tok, "invalid number")
		}
		return &Constant{Value: val}, nil

	case tokenBoolean:
		p.advance()
		return &Constant{Value: tok.text == "TRUE"}, nil

	case tokenCell:
		p.advance()
		ref, err := parseRef(tok.text, p.scope)
		if err != nil {
			return nil, p.errorAt(tok, err.Error())
		}
		return &CellRef{Target: ref}, nil

	case tokenRange:
		return nil, p.errorAt(tok, "range reference is only valid as a function argument")

	case tokenFunction:
		return p.parseFunctionCall()

	case tokenLeftParen:
		p.advance()
		expr, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if closing := p.current(); closing.typ != tokenRightParen {
			return nil, p.errorAt(closing, "expected closing parenthesis")
		}
		p.advance()
		return expr, nil

	case tokenEOF:
		return nil, p.errorAt(tok, "unexpected end of formula")
	}

	return nil, p.errorAt(tok, "unexpected token")
}

func (p *parse) parseFunctionCall() (Expr, error) {
	nameTok := p.advance()
	spec, known := p.grammar.functions[nameTok.text]
	if !known {
		return nil, p.errorAt(nameTok, "unknown function")
	}

	if open := p.current(); open.typ != tokenLeftParen {
		return nil, p.errorAt(open, "expected '(' after function name")
	}
	p.advance()

	var args []Expr
	if p.current().typ != tokenRightParen {
		for {
			arg, err := p.parseFunctionArg(spec)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			sep := p.current()
			if sep.typ == tokenRightParen {
				break
			}
			if sep.typ != tokenComma {
				return nil, p.errorAt(sep, "expected ',' or ')' in function arguments")
			}
			p.advance()
		}
	}
	p.advance() // consume ')'

	if len(args) < spec.minArgs {
		return nil, p.errorAt(nameTok, "too few arguments")
	}
	if spec.maxArgs >= 0 && len(args) > spec.maxArgs {
		return nil, p.errorAt(nameTok, "too many arguments")
	}
	return &Function{Name: nameTok.text, Args: args}, nil
}

// parseFunctionArg parses one argument. A bare range is only accepted as a
// whole argument of a range-taking function, never inside a larger
// expression.
func (p *parse) parseFunctionArg(spec funcSpec) (Expr, error) {
	tok := p.current()
	if tok.typ == tokenRange {
		if !spec.rangeArgs {
			return nil, p.errorAt(tok, "range reference is not valid here")
		}
		p.advance()
		colon := strings.LastIndex(tok.text, ":")
		from, err := parseRef(tok.text[:colon], p.scope)
		if err != nil {
			return nil, p.errorAt(tok, err.Error())
		}
		to, err := parseRef(tok.text[colon+1:], from.Grid)
		if err != nil {
			return nil, p.errorAt(tok, err.Error())
		}
		return newRangeRef(from, to), nil
	}
	return p.parseComparison()
}

// ParseLiteral interprets user-typed cell input the way a spreadsheet entry
// bar does: a leading "=" means formula, TRUE/FALSE and numbers become typed
// constants, anything else is text. Empty input clears the cell.
func ParseLiteral(input, scope string) (Expr, error) {
	text := strings.TrimSpace(input)
	if strings.HasPrefix(text, "=") {
		return ParseFormula(text, scope)
	}
	if text == "" {
		return &Constant{}, nil
	}
	switch strings.ToUpper(text) {
	case "TRUE":
		return &Constant{Value: true}, nil
	case "FALSE":
		return &Constant{Value: false}, nil
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return &Constant{Value: n}, nil
	}
	return &Constant{Value: text}, nil
}
