package chunker

import "unicode/utf16"

// StringHash computes the polynomial string hash
//
//	h = c[0]*31^(n-1) + c[1]*31^(n-2) + ... + c[n-1]
//
// over the UTF-16 code units of s using 32-bit wraparound arithmetic. This
// is the same value java.lang.String.hashCode produces, which keeps block
// fingerprints comparable with other CPD implementations. Go's own string
// hashing is seeded per process and must not be used here.
//
// Runes above U+FFFF contribute their surrogate pair. Invalid UTF-8 bytes
// decode to U+FFFD, one code unit per bad byte.
func StringHash(s string) int32 {
	var h int32
	for _, r := range s {
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			h = 31*h + int32(hi)
			h = 31*h + int32(lo)
			continue
		}
		h = 31*h + int32(r)
	}
	return h
}

// statementHash widens the string hash of a statement value with sign
// extension, as the rolling hash operates on int64
func statementHash(value string) int64 {
	return int64(StringHash(value))
}
