package chunker

import "github.com/dshills/gocpd/pkg/types"

// FilterStatements compacts every run of consecutive statements with equal
// values down to the run's first and last element. Singletons are kept.
// Order is preserved and the input is not modified.
//
// Long runs of identical statements (array initializers, repeated calls)
// would otherwise produce many identical windows. Keeping both ends of the
// run preserves the line span the run covered.
func FilterStatements(statements []types.Statement) []types.Statement {
	filtered := make([]types.Statement, 0, len(statements))

	for i, j := 0, 0; i < len(statements); i = j {
		first := statements[i]
		j = i + 1
		for j < len(statements) && statements[j].Value == first.Value {
			j++
		}

		filtered = append(filtered, first)
		if j-i > 1 {
			filtered = append(filtered, statements[j-1])
		}
	}

	return filtered
}
