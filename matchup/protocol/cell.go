package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Cell is one table value rendered as text. The backend sends a mix of JSON
// strings and numbers; both are kept as the text the backend produced.
type Cell string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty cell")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Cell(s)
	case 'n':
		if !bytes.Equal(data, []byte("null")) {
			return fmt.Errorf("invalid cell %s", data)
		}
		*c = ""
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*c = Cell(fmt.Sprint(b))
	case '[', '{':
		return fmt.Errorf("cell must be a scalar, got %s", data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*c = Cell(n.String())
	}
	return nil
}

// Row is one table row in column order.
type Row []Cell

// At returns the cell in column i, or "" when the row is shorter.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// Strings converts the row for display.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = string(c)
	}
	return out
}

// NewRow builds a row from plain strings.
func NewRow(cells ...string) Row {
	r := make(Row, len(cells))
	for i, c := range cells {
		r[i] = Cell(c)
	}
	return r
}
