package excelgrid

import (
	"fmt"
	"strconv"
	"strings"
)

// Position is a zero-based (row, column) location inside a grid.
type Position struct {
	Row int
	Col int
}

// Ref is a position scoped to a named grid. Cell references store a Ref
// rather than a pointer to the cell itself, so cross-grid references form a
// named relation and never shared ownership.
type Ref struct {
	Grid string
	Pos  Position
}

func (r Ref) String() string {
	return r.Grid + "!" + FormatAddress(r.Pos)
}

// ColumnName converts a zero-based column index to its letter form
// (0 -> "A", 25 -> "Z", 26 -> "AA").
func ColumnName(col int) string {
	// base-26 with no zero digit: peel the low digit, then shift
	name := ""
	for {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
		if col < 0 {
			break
		}
	}
	return name
}

// ColumnIndex converts a column letter sequence back to its zero-based index.
func ColumnIndex(name string) (int, error) {
	if name == "" {
		return 0, &AddressParseError{Input: name, Reason: "empty column name"}
	}
	col := 0
	for i, ch := range name {
		if ch < 'A' || ch > 'Z' {
			return 0, &AddressParseError{Input: name, Reason: fmt.Sprintf("invalid column letter %q", ch)}
		}
		col = col*26 + int(ch-'A')
		if i < len(name)-1 {
			col++ // no zero digit, so every non-final letter shifts by one
		}
	}
	return col, nil
}

// FormatAddress renders a position in canonical spreadsheet form: column
// letters followed by the 1-based row number.
func FormatAddress(p Position) string {
	return ColumnName(p.Col) + strconv.Itoa(p.Row+1)
}

// ParseAddress is the inverse of FormatAddress. It fails with an
// AddressParseError on anything that is not a canonical address.
func ParseAddress(s string) (Position, error) {
	if len(s) < 2 {
		return Position{}, &AddressParseError{Input: s, Reason: "address too short"}
	}

	// find where letters end and digits begin
	letterEnd := 0
	for letterEnd < len(s) && s[letterEnd] >= 'A' && s[letterEnd] <= 'Z' {
		letterEnd++
	}
	if letterEnd == 0 || letterEnd == len(s) {
		return Position{}, &AddressParseError{Input: s, Reason: "expected column letters followed by a row number"}
	}

	col, err := ColumnIndex(s[:letterEnd])
	if err != nil {
		return Position{}, err
	}

	row, err := strconv.Atoi(s[letterEnd:])
	if err != nil {
		return Position{}, &AddressParseError{Input: s, Reason: fmt.Sprintf("invalid row number %q", s[letterEnd:])}
	}
	if row < 1 {
		return Position{}, &AddressParseError{Input: s, Reason: fmt.Sprintf("row number must be positive, got %d", row)}
	}
	if s[letterEnd] == '0' || (s[letterEnd] == '+') {
		return Position{}, &AddressParseError{Input: s, Reason: "row number must not have leading zeros or signs"}
	}

	return Position{Row: row - 1, Col: col}, nil
}

// formatRef renders a reference as seen from the grid named scope. Same-grid
// references stay unqualified; cross-grid references carry the grid name.
func formatRef(r Ref, scope string) string {
	if r.Grid == scope {
		return FormatAddress(r.Pos)
	}
	return r.Grid + "!" + FormatAddress(r.Pos)
}

// parseRef parses a reference that may carry a grid qualifier
// ("other!B2"); unqualified references bind to scope.
func parseRef(s, scope string) (Ref, error) {
	grid := scope
	addr := s
	if idx := strings.LastIndex(s, "!"); idx != -1 {
		grid = s[:idx]
		addr = s[idx+1:]
		if grid == "" {
			return Ref{}, &AddressParseError{Input: s, Reason: "empty grid qualifier"}
		}
	}
	pos, err := ParseAddress(addr)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Grid: grid, Pos: pos}, nil
}
