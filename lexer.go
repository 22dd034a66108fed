package excelgrid

import "strings"

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenNumber
	tokenBoolean
	tokenCell
	tokenRange
	tokenFunction
	tokenOp
	tokenComma
	tokenLeftParen
	tokenRightParen
)

// token carries the lexeme text and its rune offset in the input so parse
// errors can point at the offending fragment.
type token struct {
	typ  tokenType
	text string
	pos  int
}

// lexer tokenizes formula text. Grid-qualified references ("rates!B2") are
// folded into single cell/range tokens, same as the colon in "A1:A5".
type lexer struct {
	runes []rune
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{runes: []rune(input)}
}

func (l *lexer) tokenize() ([]token, error) {
	var tokens []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.typ == tokenEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) errorAt(pos int, offending, reason string) error {
	return &FormulaParseError{
		Input:     string(l.runes),
		Offending: offending,
		Pos:       pos,
		Reason:    reason,
	}
}

func (l *lexer) current() rune {
	if l.pos >= len(l.runes) {
		return 0
	}
	return l.runes[l.pos]
}

func (l *lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos < 0 || pos >= len(l.runes) {
		return 0
	}
	return l.runes[pos]
}

func (l *lexer) substring(start, end int) string {
	return string(l.runes[start:end])
}

func (l *lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		switch l.current() {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentRune(ch rune) bool {
	return isAlpha(ch) || isDigit(ch) || ch == '_'
}

func (l *lexer) next() (token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.runes) {
		return token{typ: tokenEOF, pos: l.pos}, nil
	}

	start := l.pos
	ch := l.current()

	if isDigit(ch) || (ch == '.' && isDigit(l.peek(1))) {
		return l.scanNumber(), nil
	}

	if isAlpha(ch) || ch == '_' {
		return l.scanIdentifier()
	}

	switch ch {
	case '(':
		l.pos++
		return token{typ: tokenLeftParen, text: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{typ: tokenRightParen, text: ")", pos: start}, nil
	case ',':
		l.pos++
		return token{typ: tokenComma, text: ",", pos: start}, nil
	case '+', '-', '*', '/', '^', '=':
		l.pos++
		return token{typ: tokenOp, text: string(ch), pos: start}, nil
	case '<':
		l.pos++
		if l.current() == '=' || l.current() == '>' {
			op := l.substring(start, l.pos+1)
			l.pos++
			return token{typ: tokenOp, text: op, pos: start}, nil
		}
		return token{typ: tokenOp, text: "<", pos: start}, nil
	case '>':
		l.pos++
		if l.current() == '=' {
			l.pos++
			return token{typ: tokenOp, text: ">=", pos: start}, nil
		}
		return token{typ: tokenOp, text: ">", pos: start}, nil
	}

	return token{}, l.errorAt(start, string(ch), "unexpected character")
}

func (l *lexer) scanNumber() token {
	start := l.pos

	for isDigit(l.current()) {
		l.pos++
	}
	if l.current() == '.' && isDigit(l.peek(1)) {
		l.pos++
		for isDigit(l.current()) {
			l.pos++
		}
	}
	// scientific notation, only when digits follow the exponent marker
	if l.current() == 'e' || l.current() == 'E' {
		saved := l.pos
		l.pos++
		if l.current() == '+' || l.current() == '-' {
			l.pos++
		}
		if !isDigit(l.current()) {
			l.pos = saved
		} else {
			for isDigit(l.current()) {
				l.pos++
			}
		}
	}

	return token{typ: tokenNumber, text: l.substring(start, l.pos), pos: start}
}

// scanIdentifier handles booleans, cell and range references (including a
// grid qualifier), and function names.
func (l *lexer) scanIdentifier() (token, error) {
	start := l.pos

	for isIdentRune(l.current()) {
		l.pos++
	}
	word := l.substring(start, l.pos)
	upper := strings.ToUpper(word)

	if upper == "TRUE" || upper == "FALSE" {
		return token{typ: tokenBoolean, text: upper, pos: start}, nil
	}

	// grid qualifier folds the whole reference into one token
	if l.current() == '!' {
		l.pos++
		cellStart := l.pos
		for isIdentRune(l.current()) {
			l.pos++
		}
		cell := l.substring(cellStart, l.pos)
		if !isCellWord(cell) {
			return token{}, l.errorAt(start, l.substring(start, l.pos), "expected cell reference after grid qualifier")
		}
		if tok, ok := l.tryScanRangeTail(start); ok {
			return tok, nil
		}
		return token{typ: tokenCell, text: l.substring(start, l.pos), pos: start}, nil
	}

	if isCellWord(word) {
		if tok, ok := l.tryScanRangeTail(start); ok {
			return tok, nil
		}
		return token{typ: tokenCell, text: word, pos: start}, nil
	}

	if l.current() == '(' {
		return token{typ: tokenFunction, text: upper, pos: start}, nil
	}

	return token{}, l.errorAt(start, word, "unknown identifier")
}

// tryScanRangeTail consumes ":A5" after a cell reference if what follows
// really is another cell; otherwise it leaves the position untouched.
func (l *lexer) tryScanRangeTail(start int) (token, bool) {
	if l.current() != ':' {
		return token{}, false
	}
	saved := l.pos
	l.pos++
	cellStart := l.pos
	for isIdentRune(l.current()) {
		l.pos++
	}
	if !isCellWord(l.substring(cellStart, l.pos)) {
		l.pos = saved
		return token{}, false
	}
	return token{typ: tokenRange, text: l.substring(start, l.pos), pos: start}, true
}

// isCellWord reports whether s has the shape of a canonical cell address:
// one or more uppercase letters followed by one or more digits.
func isCellWord(s string) bool {
	letterEnd := 0
	for _, ch := range s {
		if ch < 'A' || ch > 'Z' {
			break
		}
		letterEnd++
	}
	if letterEnd == 0 || letterEnd == len(s) {
		return false
	}
	for _, ch := range s[letterEnd:] {
		if !isDigit(ch) {
			return false
		}
	}
	return true
}
