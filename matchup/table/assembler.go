package table

import "github.com/wricardo/gridiron-odds/matchup/protocol"

// Assembler accumulates one streamed table result. A new Assembler is
// created for every request so nothing carries over between requests.
type Assembler struct {
	headers []string
	buffer  []protocol.Row
}

// NewAssembler returns an empty accumulator.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// SetHeaders replaces the column names. Last write wins.
func (a *Assembler) SetHeaders(cols []string) {
	a.headers = append([]string(nil), cols...)
}

// Headers returns the column names received so far.
func (a *Assembler) Headers() []string {
	return append([]string(nil), a.headers...)
}

// Append buffers an intermediate page. Nothing is published.
func (a *Assembler) Append(rows []protocol.Row) {
	a.buffer = append(a.buffer, rows...)
}

// Pending is the number of buffered rows.
func (a *Assembler) Pending() int { return len(a.buffer) }

// Finish appends the final page and returns the whole result. The buffer
// is cleared; headers are kept in case the backend repeats last_chunk.
func (a *Assembler) Finish(rows []protocol.Row) Dataset {
	a.buffer = append(a.buffer, rows...)
	ds := Dataset{
		Headers: a.Headers(),
		Rows:    a.buffer,
	}
	if ds.Rows == nil {
		ds.Rows = []protocol.Row{}
	}
	a.buffer = nil
	return ds
}

// Reset drops headers and buffered rows.
func (a *Assembler) Reset() {
	a.headers = nil
	a.buffer = nil
}
