package builtin

import (
	"errors"
	"fmt"

	"staretl/internal/table"
)

// Require checks that a table carries every listed column. It passes the
// input through unchanged; the error names all missing columns at once.
type Require struct {
	Columns []string
}

// Apply implements transformer.Transformer.
func (r Require) Apply(in *table.Table) (*table.Table, error) {
	var errs []error
	for _, c := range r.Columns {
		if _, err := in.MustIndex(c); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("require: %w", errors.Join(errs...))
	}
	return in, nil
}
