package statement

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"

	"github.com/dshills/gocpd/pkg/types"
)

// commentSyntax describes how a language writes comments
type commentSyntax struct {
	line  []string // line comment prefixes
	block bool     // /* ... */ block comments
}

var (
	cFamily    = commentSyntax{line: []string{"//"}, block: true}
	hashFamily = commentSyntax{line: []string{"#"}}
	dashFamily = commentSyntax{line: []string{"--"}}
)

// commentSyntaxes maps lower-case extensions to their comment syntax.
// Unknown extensions fall back to cFamily.
var commentSyntaxes = map[string]commentSyntax{
	".c":     cFamily,
	".h":     cFamily,
	".cc":    cFamily,
	".cpp":   cFamily,
	".hpp":   cFamily,
	".java":  cFamily,
	".kt":    cFamily,
	".scala": cFamily,
	".cs":    cFamily,
	".js":    cFamily,
	".jsx":   cFamily,
	".ts":    cFamily,
	".tsx":   cFamily,
	".rs":    cFamily,
	".swift": cFamily,
	".dart":  cFamily,
	".proto": cFamily,
	".php":   {line: []string{"//", "#"}, block: true},
	".tf":    {line: []string{"#", "//"}, block: true},
	".sql":   {line: []string{"--"}, block: true},
	".py":    hashFamily,
	".rb":    hashFamily,
	".sh":    hashFamily,
	".bash":  hashFamily,
	".pl":    hashFamily,
	".r":     hashFamily,
	".yaml":  hashFamily,
	".yml":   hashFamily,
	".toml":  hashFamily,
	".lua":   dashFamily,
	".hs":    dashFamily,
}

func commentSyntaxFor(path string) commentSyntax {
	if syntax, ok := commentSyntaxes[strings.ToLower(filepath.Ext(path))]; ok {
		return syntax
	}
	return cFamily
}

// LineProducer treats every significant line as one statement. It is the
// fallback for languages without a dedicated tokenizer.
type LineProducer struct{}

// NewLineProducer creates a new LineProducer instance
func NewLineProducer() *LineProducer {
	return &LineProducer{}
}

// Statements drops blank and comment-only lines and collapses whitespace
// in the rest. Which lines are comments depends on the file extension.
func (p *LineProducer) Statements(path string, src []byte) ([]types.Statement, error) {
	syntax := commentSyntaxFor(path)
	statements := make([]types.Statement, 0, bytes.Count(src, []byte("\n"))+1)

	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	inBlock := false
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())

		if syntax.block {
			line, inBlock = stripBlockComment(line, inBlock)
		}
		if line == "" || hasAnyPrefix(line, syntax.line) {
			continue
		}

		value := strings.Join(strings.Fields(line), " ")
		statements = append(statements, types.NewStatement(value, lineNo, lineNo))
	}

	return statements, sc.Err()
}

// stripBlockComment removes a leading block comment from line. It returns
// what is left and whether the line ends inside an open comment.
func stripBlockComment(line string, inBlock bool) (string, bool) {
	for {
		if inBlock {
			end := strings.Index(line, "*/")
			if end < 0 {
				return "", true
			}
			line = strings.TrimSpace(line[end+2:])
			inBlock = false
		}
		if !strings.HasPrefix(line, "/*") {
			return line, false
		}
		line = line[2:]
		inBlock = true
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
