package table

import "github.com/wricardo/gridiron-odds/matchup/protocol"

// Dataset is a complete streamed table result.
type Dataset struct {
	Headers []string       `json:"headers"`
	Rows    []protocol.Row `json:"rows"`
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Rows) }

// Empty reports whether nothing has been published.
func (d Dataset) Empty() bool { return len(d.Headers) == 0 && len(d.Rows) == 0 }

// Width is the number of addressable columns.
func (d Dataset) Width() int {
	w := len(d.Headers)
	for _, r := range d.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Clone copies headers and the row slice. Rows themselves are shared; they
// are never mutated once published.
func (d Dataset) Clone() Dataset {
	out := Dataset{}
	if d.Headers != nil {
		out.Headers = append([]string(nil), d.Headers...)
	}
	if d.Rows != nil {
		out.Rows = append([]protocol.Row(nil), d.Rows...)
	}
	return out
}

// Limit returns a copy holding at most n rows. n <= 0 means no limit.
func (d Dataset) Limit(n int) Dataset {
	out := d.Clone()
	if n > 0 && len(out.Rows) > n {
		out.Rows = out.Rows[:n]
	}
	return out
}
