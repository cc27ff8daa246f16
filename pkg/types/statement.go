package types

// Statement is a normalized unit of source content produced by a tokenizer.
// Two statements are equal for filtering purposes iff their Value is equal.
type Statement struct {
	Value     string // Normalized text used for equality and hashing
	StartLine int    // 1-based
	EndLine   int    // 1-based, inclusive
}

// NewStatement creates a Statement spanning startLine..endLine
func NewStatement(value string, startLine, endLine int) Statement {
	return Statement{
		Value:     value,
		StartLine: startLine,
		EndLine:   endLine,
	}
}

// Lines returns the number of source lines the statement covers
func (s Statement) Lines() int {
	return s.EndLine - s.StartLine + 1
}
