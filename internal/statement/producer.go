package statement

import (
	"path/filepath"
	"strings"

	"github.com/dshills/gocpd/pkg/types"
)

// Producer turns source text into the normalized statements fed to the
// block chunker
type Producer interface {
	// Statements returns the statements of src in source order. When src
	// cannot be fully tokenized, the statements recovered so far are
	// returned together with the error.
	Statements(path string, src []byte) ([]types.Statement, error)
}

// ForPath picks the producer for a file based on its extension
func ForPath(path string) Producer {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return NewGoProducer()
	default:
		return NewLineProducer()
	}
}
