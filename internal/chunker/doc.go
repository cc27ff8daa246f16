// Package chunker turns a sequence of normalized statements into
// fingerprinted blocks for duplicate code detection.
//
// # Basic Usage
//
//	c, err := chunker.New(10)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	blocks, err := c.Chunk("internal/service.go", statements)
//	for _, b := range blocks {
//	    fmt.Printf("%s lines %d-%d\n", b.Hash, b.StartLine, b.EndLine)
//	}
//
// # Filtering
//
// Before hashing, runs of consecutive statements with the same value are
// reduced to their first and last element:
//
//	a a a b  ->  a a b
//
// This bounds the number of near-identical windows that repetitive code
// would otherwise generate.
//
// # Rolling Hash
//
// Each statement value is hashed with StringHash (the 31-based polynomial
// over UTF-16 code units, sign-extended to 64 bits). A window of blockSize
// statements hashes to
//
//	h(s[first])*31^(blockSize-1) + ... + h(s[last])
//
// The window moves one statement at a time; the new statement is folded in
// with H*31 + h(s[last]) and the oldest one removed with H - 31^(blockSize-1)*h(s[first]).
// All arithmetic wraps modulo 2^64, so the result is bit-for-bit identical
// across platforms and builds.
//
// # Concurrency
//
// A BlockChunker holds only its block size and precomputed power. A single
// instance can be shared by any number of goroutines.
package chunker
