// Package transformer defines the table-at-a-time transformation contract used
// by the star-schema builders. Implementations live in the builtin subpackage.
package transformer

import "staretl/internal/table"

// Transformer turns one table into another. Implementations must not modify
// the input table; they return a new table (or the input unchanged).
type Transformer interface {
	Apply(in *table.Table) (*table.Table, error)
}

// Func adapts an ordinary function to the Transformer interface.
type Func func(in *table.Table) (*table.Table, error)

// Apply calls f(in).
func (f Func) Apply(in *table.Table) (*table.Table, error) { return f(in) }

// Chain is an ordered list of transformers. The first error stops the chain.
type Chain []Transformer

func (c Chain) Apply(in *table.Table) (*table.Table, error) {
	out := in
	for _, t := range c {
		var err error
		if out, err = t.Apply(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
