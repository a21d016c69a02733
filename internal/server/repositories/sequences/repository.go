// Package sequences hands out per-table, per-year code numbers.
package sequences

import "context"

// Repository returns the next number of the (table, year) sequence. The
// first call for a pair returns 1.
type Repository interface {
	Next(ctx context.Context, table string, year int) (int64, error)
}
