// Package statement produces the normalized statement sequences that the
// chunker fingerprints.
//
// Go files are tokenized with go/scanner; everything else falls back to one
// statement per significant line:
//
//	p := statement.ForPath("service.go")
//	stmts, err := p.Statements("service.go", src)
package statement
