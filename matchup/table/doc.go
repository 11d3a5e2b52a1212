// Package table holds the streamed historical-game dataset and the logic
// around it.
//
// The table package implements:
//   - Dataset, the published header list plus rows
//   - Assembler, which accumulates chunk frames into one Dataset
//   - Sort and SortState, the column sort with toggling direction
//
// Assembly:
//
// A streamed result arrives as one headers frame, zero or more chunk frames
// and exactly one last_chunk frame. Intermediate rows stay inside the
// Assembler; only Finish returns a Dataset, so callers never observe a
// partially loaded table.
//
// Sorting:
//
// Sorting compares cells pair by pair. When both cells of a pair read as
// numbers they are compared numerically, otherwise as lower-cased text.
// A column that mixes numbers and words can therefore come out in an order
// that is not a total order over the whole column. This matches the web
// client the backend was built for.
//
// Everything in this package is pure and holds no locks; owners serialize
// access.
package table
