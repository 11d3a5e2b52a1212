package table

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
)

var ErrColumnOutOfRange = errors.New("column out of range")

// Direction is the sort order of a column.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// SortState records the column the dataset is currently sorted by.
// A nil *SortState means unsorted.
type SortState struct {
	Column    int       `json:"column"`
	Direction Direction `json:"direction"`
}

// Next returns the state after a sort request on column: the same column
// flips direction, any other column starts ascending.
func (s *SortState) Next(column int) *SortState {
	if s != nil && s.Column == column && s.Direction == Ascending {
		return &SortState{Column: column, Direction: Descending}
	}
	return &SortState{Column: column, Direction: Ascending}
}

// Sort reorders a copy of ds by column and returns it with the new state.
// ds is left untouched.
func Sort(ds Dataset, current *SortState, column int) (Dataset, *SortState, error) {
	if column < 0 || column >= ds.Width() {
		return ds, current, fmt.Errorf("%w: %d (dataset has %d columns)", ErrColumnOutOfRange, column, ds.Width())
	}

	next := current.Next(column)
	out := ds.Clone()
	c := newComparer()

	slices.SortStableFunc(out.Rows, func(a, b protocol.Row) int {
		r := c.compare(a.At(column), b.At(column))
		if next.Direction == Descending {
			return -r
		}
		return r
	})

	return out, next, nil
}

// Compare orders two cells the way Sort does in ascending order.
func Compare(a, b protocol.Cell) int {
	return newComparer().compare(a, b)
}

type comparer struct {
	text *collate.Collator
}

// A Collator keeps internal buffers, so each sort gets its own.
func newComparer() *comparer {
	return &comparer{text: collate.New(language.English)}
}

func (c *comparer) compare(a, b protocol.Cell) int {
	if x, ok := numericValue(a); ok {
		if y, ok := numericValue(b); ok {
			return cmp.Compare(x, y)
		}
	}
	return c.text.CompareString(strings.ToLower(string(a)), strings.ToLower(string(b)))
}

// numericValue reports whether a cell reads as a number under JavaScript
// Number() rules, which is what the table has always been sorted by:
// blank text is 0, hex/octal/binary literals and Infinity are numbers,
// NaN and Go-only spellings are not.
func numericValue(c protocol.Cell) (float64, bool) {
	s := strings.TrimSpace(string(c))
	switch s {
	case "":
		return 0, true
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if errors.Is(err, strconv.ErrRange) {
				wide, ok := new(big.Int).SetString(s[2:], base)
				if !ok {
					return 0, false
				}
				f, _ := new(big.Float).SetInt(wide).Float64()
				return f, true
			}
			return float64(n), err == nil
		}
	}

	lower := strings.ToLower(s)
	if strings.ContainsAny(lower, "_xpn") || strings.Contains(lower, "inf") {
		return 0, false
	}
	// Out of range values saturate to ±Inf and still count as numbers.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}
