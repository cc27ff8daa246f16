package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocpd/pkg/types"
)

// stmts builds statements with one statement per line, starting at line 1
func stmts(values ...string) []types.Statement {
	out := make([]types.Statement, len(values))
	for i, v := range values {
		out[i] = types.NewStatement(v, i+1, i+1)
	}
	return out
}

func values(statements []types.Statement) []string {
	out := make([]string, len(statements))
	for i, s := range statements {
		out[i] = s.Value
	}
	return out
}

func TestFilterStatements_Empty(t *testing.T) {
	assert.Empty(t, FilterStatements(nil))
	assert.Empty(t, FilterStatements([]types.Statement{}))
}

func TestFilterStatements_RunOfThree(t *testing.T) {
	in := stmts("a", "a", "a", "b")
	out := FilterStatements(in)

	require.Len(t, out, 3)
	assert.Equal(t, []string{"a", "a", "b"}, values(out))
	// First and last of the run, so lines 1 and 3
	assert.Equal(t, 1, out[0].StartLine)
	assert.Equal(t, 3, out[1].StartLine)
	assert.Equal(t, 4, out[2].StartLine)
}

func TestFilterStatements_AllIdentical(t *testing.T) {
	out := FilterStatements(stmts("x", "x", "x", "x", "x", "x"))

	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].StartLine)
	assert.Equal(t, 6, out[1].StartLine)
}

func TestFilterStatements_PairIsKept(t *testing.T) {
	out := FilterStatements(stmts("x", "x"))
	assert.Equal(t, []string{"x", "x"}, values(out))
}

func TestFilterStatements_NoRuns(t *testing.T) {
	in := stmts("a", "b", "a", "b")
	assert.Equal(t, in, FilterStatements(in))
}

func TestFilterStatements_MultipleRuns(t *testing.T) {
	out := FilterStatements(stmts("a", "b", "b", "b", "b", "c", "c", "d"))

	assert.Equal(t, []string{"a", "b", "b", "c", "c", "d"}, values(out))
	assert.Equal(t, []int{1, 2, 5, 6, 7, 8}, []int{
		out[0].StartLine, out[1].StartLine, out[2].StartLine,
		out[3].StartLine, out[4].StartLine, out[5].StartLine,
	})
}

func TestFilterStatements_DoesNotModifyInput(t *testing.T) {
	in := stmts("a", "a", "a")
	snapshot := append([]types.Statement(nil), in...)

	_ = FilterStatements(in)
	assert.Equal(t, snapshot, in)
}
