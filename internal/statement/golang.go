package statement

import (
	"go/scanner"
	"go/token"
	"strings"

	"github.com/dshills/gocpd/pkg/types"
)

const (
	// CharsPlaceholder replaces string and rune literals
	CharsPlaceholder = "$CHARS"
	// NumberPlaceholder replaces numeric literals
	NumberPlaceholder = "$NUMBER"
)

// GoProducer splits Go source into statements using the Go scanner.
//
// Comments, the package clause and import declarations are dropped. A
// statement ends at a semicolon (explicit or inserted at a newline) or at
// an opening brace; closing braces form their own statement. Literal values
// are replaced with placeholders so that code differing only in constants
// still fingerprints the same.
type GoProducer struct{}

// NewGoProducer creates a new GoProducer instance
func NewGoProducer() *GoProducer {
	return &GoProducer{}
}

// Statements tokenizes a Go source file
func (p *GoProducer) Statements(path string, src []byte) ([]types.Statement, error) {
	fset := token.NewFileSet()
	file := fset.AddFile(path, fset.Base(), len(src))

	var errs scanner.ErrorList
	var s scanner.Scanner
	s.Init(file, src, func(pos token.Position, msg string) {
		errs.Add(pos, msg)
	}, 0)

	b := &builder{statements: make([]types.Statement, 0, len(src)/40)}
	skip := skipNone
	parenDepth := 0

	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		line := file.Line(pos)

		// Package clause and imports carry no duplication signal
		switch skip {
		case skipNone:
			if tok == token.PACKAGE || tok == token.IMPORT {
				skip = skipDecl
				continue
			}
		case skipDecl:
			switch tok {
			case token.LPAREN:
				parenDepth++
			case token.RPAREN:
				parenDepth--
			case token.SEMICOLON:
				if parenDepth == 0 {
					skip = skipNone
				}
			}
			continue
		}

		switch tok {
		case token.SEMICOLON:
			b.flush()
		case token.LBRACE:
			b.add("{", line)
			b.flush()
		case token.RBRACE:
			b.flush()
			b.add("}", line)
			b.flush()
		default:
			b.add(normalizeToken(tok, lit), line)
		}
	}
	b.flush()

	errs.Sort()
	return b.statements, errs.Err()
}

type skipState int

const (
	skipNone skipState = iota
	skipDecl
)

// normalizeToken returns the text a token contributes to its statement
func normalizeToken(tok token.Token, lit string) string {
	switch tok {
	case token.STRING, token.CHAR:
		return CharsPlaceholder
	case token.INT, token.FLOAT, token.IMAG:
		return NumberPlaceholder
	case token.IDENT:
		return lit
	default:
		return tok.String()
	}
}

// builder accumulates tokens of the statement being scanned
type builder struct {
	statements []types.Statement
	tokens     []string
	startLine  int
	endLine    int
}

func (b *builder) add(text string, line int) {
	if len(b.tokens) == 0 {
		b.startLine = line
	}
	b.tokens = append(b.tokens, text)
	b.endLine = line
}

func (b *builder) flush() {
	if len(b.tokens) == 0 {
		return
	}
	b.statements = append(b.statements, types.NewStatement(
		strings.Join(b.tokens, " "), b.startLine, b.endLine,
	))
	b.tokens = b.tokens[:0]
}
