package table

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
)

func rows(rs ...[]string) []protocol.Row {
	out := make([]protocol.Row, len(rs))
	for i, r := range rs {
		out[i] = protocol.NewRow(r...)
	}
	return out
}

func column(ds Dataset, i int) []string {
	out := make([]string, len(ds.Rows))
	for j, r := range ds.Rows {
		out[j] = string(r.At(i))
	}
	return out
}

func TestAssemblerConcatenatesInArrivalOrder(t *testing.T) {
	a := NewAssembler()
	a.SetHeaders([]string{"Date", "Team", "Score"})

	pages := [][]protocol.Row{
		rows([]string{"1", "A", "10"}, []string{"2", "B", "11"}),
		rows(),
		rows([]string{"3", "C", "12"}),
	}
	for _, p := range pages {
		a.Append(p)
	}
	assert.Equal(t, 3, a.Pending())

	ds := a.Finish(rows([]string{"4", "D", "13"}))
	assert.Equal(t, []string{"Date", "Team", "Score"}, ds.Headers)
	assert.Equal(t, []string{"1", "2", "3", "4"}, column(ds, 0))
	assert.Equal(t, 0, a.Pending())
}

func TestAssemblerFinishWithoutChunks(t *testing.T) {
	a := NewAssembler()
	a.SetHeaders([]string{"Date"})

	ds := a.Finish(nil)
	assert.Equal(t, []string{"Date"}, ds.Headers)
	assert.NotNil(t, ds.Rows)
	assert.Empty(t, ds.Rows)
}

func TestAssemblerHeadersLastWriteWins(t *testing.T) {
	a := NewAssembler()
	a.SetHeaders([]string{"Old"})
	a.SetHeaders([]string{"New", "Cols"})
	assert.Equal(t, []string{"New", "Cols"}, a.Finish(nil).Headers)
}

func TestAssemblerBuffersRowsBeforeHeaders(t *testing.T) {
	a := NewAssembler()
	a.Append(rows([]string{"early"}))
	a.SetHeaders([]string{"Col"})

	ds := a.Finish(rows([]string{"late"}))
	assert.Equal(t, []string{"early", "late"}, column(ds, 0))
}

func TestAssemblerReset(t *testing.T) {
	a := NewAssembler()
	a.SetHeaders([]string{"Col"})
	a.Append(rows([]string{"x"}))
	a.Reset()

	assert.Empty(t, a.Headers())
	assert.Zero(t, a.Pending())
}

func TestSortStateNext(t *testing.T) {
	var s *SortState

	s = s.Next(2)
	assert.Equal(t, &SortState{Column: 2, Direction: Ascending}, s)

	s = s.Next(2)
	assert.Equal(t, &SortState{Column: 2, Direction: Descending}, s)

	s = s.Next(2)
	assert.Equal(t, &SortState{Column: 2, Direction: Ascending}, s)

	s = s.Next(2).Next(0)
	assert.Equal(t, &SortState{Column: 0, Direction: Ascending}, s)
}

func TestSortScenario(t *testing.T) {
	a := NewAssembler()
	a.SetHeaders([]string{"Date", "Team", "Score"})
	a.Append(rows([]string{"2023-09-10", "MIN", "24"}))
	ds := a.Finish(rows([]string{"2023-09-17", "BUF", "20"}))

	assert.Equal(t, []string{"MIN", "BUF"}, column(ds, 1))

	sorted, state, err := Sort(ds, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, &SortState{Column: 2, Direction: Ascending}, state)
	assert.Equal(t, []string{"BUF", "MIN"}, column(sorted, 1))

	// the input dataset is untouched
	assert.Equal(t, []string{"MIN", "BUF"}, column(ds, 1))
}

func TestSortTogglesDirection(t *testing.T) {
	ds := Dataset{
		Headers: []string{"Score", "Team"},
		Rows:    rows([]string{"3", "c"}, []string{"10", "a"}, []string{"7", "b"}),
	}

	var state *SortState
	var err error
	want := []struct {
		dir   Direction
		order []string
	}{
		{Ascending, []string{"3", "7", "10"}},
		{Descending, []string{"10", "7", "3"}},
		{Ascending, []string{"3", "7", "10"}},
		{Descending, []string{"10", "7", "3"}},
	}
	for i, w := range want {
		ds, state, err = Sort(ds, state, 0)
		require.NoError(t, err)
		assert.Equal(t, w.dir, state.Direction, "call %d", i+1)
		assert.Equal(t, w.order, column(ds, 0), "call %d", i+1)
	}

	ds, state, err = Sort(ds, state, 1)
	require.NoError(t, err)
	assert.Equal(t, Ascending, state.Direction)
	assert.Equal(t, []string{"a", "b", "c"}, column(ds, 1))
}

func TestSortNumericBeatsLexical(t *testing.T) {
	ds := Dataset{Headers: []string{"N"}, Rows: rows([]string{"100"}, []string{"9"}, []string{"25.5"}, []string{"-3"})}
	sorted, _, err := Sort(ds, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"-3", "9", "25.5", "100"}, column(sorted, 0))
}

func TestSortTextIsCaseInsensitive(t *testing.T) {
	ds := Dataset{Headers: []string{"T"}, Rows: rows([]string{"banana"}, []string{"Apple"}, []string{"cherry"})}
	sorted, _, err := Sort(ds, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple", "banana", "cherry"}, column(sorted, 0))
}

func TestSortIsStable(t *testing.T) {
	ds := Dataset{
		Headers: []string{"Score", "ID"},
		Rows:    rows([]string{"1", "first"}, []string{"0", "x"}, []string{"1", "second"}, []string{"1", "third"}),
	}
	sorted, _, err := Sort(ds, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "first", "second", "third"}, column(sorted, 1))

	sorted, _, err = Sort(ds, &SortState{Column: 0, Direction: Ascending}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third", "x"}, column(sorted, 1))
}

func TestSortShortRowsUseEmptyCell(t *testing.T) {
	ds := Dataset{
		Headers: []string{"A", "B"},
		Rows:    []protocol.Row{protocol.NewRow("x", "5"), protocol.NewRow("y")},
	}
	sorted, _, err := Sort(ds, nil, 1)
	require.NoError(t, err)
	// a missing cell reads as blank, and blank is numeric zero
	assert.Equal(t, []string{"y", "x"}, column(sorted, 0))
}

func TestSortColumnOutOfRange(t *testing.T) {
	ds := Dataset{Headers: []string{"A"}, Rows: rows([]string{"1"})}
	state := &SortState{Column: 0, Direction: Ascending}

	for _, col := range []int{-1, 1, 5} {
		out, got, err := Sort(ds, state, col)
		assert.ErrorIs(t, err, ErrColumnOutOfRange)
		assert.Same(t, state, got)
		assert.Equal(t, ds, out)
	}
}

func TestCompareIsPerPair(t *testing.T) {
	// numeric pairs compare as numbers, anything involving text compares as text
	assert.Negative(t, Compare("9", "10"))
	assert.Positive(t, Compare("9", "10a"))
	assert.Negative(t, Compare("10", "10a"))
	assert.Zero(t, Compare("abc", "ABC"))
	assert.Positive(t, Compare("1e400", "5"))
	assert.Negative(t, Compare("-1e400", "5"))
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{" 42 ", 42, true},
		{"-1.5", -1.5, true},
		{"1e3", 1000, true},
		{".5", 0.5, true},
		{"", 0, true},
		{"   ", 0, true},
		{"0x1A", 26, true},
		{"0b101", 5, true},
		{"0o17", 15, true},
		{"Infinity", math.Inf(1), true},
		{"-Infinity", math.Inf(-1), true},
		{"1e400", math.Inf(1), true},
		{"-1e400", math.Inf(-1), true},
		{"0x1ffffffffffffffff", math.Ldexp(1, 65), true},
		{"0x1fffffffffffffffg", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
		{"1_000", 0, false},
		{"-0x1A", 0, false},
		{"2023-09-10", 0, false},
		{"MIN", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := numericValue(protocol.Cell(tt.in))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDatasetHelpers(t *testing.T) {
	ds := Dataset{Headers: []string{"A"}, Rows: rows([]string{"1"}, []string{"2", "extra"}, []string{"3"})}
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 2, ds.Width())
	assert.False(t, ds.Empty())
	assert.True(t, Dataset{}.Empty())

	limited := ds.Limit(2)
	assert.Equal(t, 2, limited.Len())
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 3, ds.Limit(0).Len())
}
