// Package types provides shared type definitions for gocpd.
//
// # Statements
//
// Statement is the input of fingerprinting: a normalized piece of source
// content with the 1-based line span it came from. Statements are produced by
// internal/statement and are never modified afterwards.
//
//	stmt := types.NewStatement("x = $NUMBER", 12, 12)
//
// # Blocks
//
// Block is the output of fingerprinting: a window of consecutive statements
// tagged with a 64-bit Hash. The hash is a pure function of the statement
// values in the window, so equal content in different files yields equal
// hashes:
//
//	block := types.NewBlock("internal/a.go", types.HashFromInt64(h), 0, 10, 24)
//	fmt.Println(block.Hash) // 16 hex characters, big-endian
//
// Hash bytes are always big-endian two's complement so that persisted
// fingerprints stay comparable across processes and versions.
//
// # Clone Groups
//
// CloneGroup describes content found in two or more places. Groups are built
// by internal/detector from the stored blocks of a project:
//
//	if err := group.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package types
