package types

// ClonePart is one occurrence of duplicated content
type ClonePart struct {
	ResourceID string
	StartLine  int
	EndLine    int
	StartIndex int // IndexInFile of the first matching block
	EndIndex   int // IndexInFile of the last matching block
}

// Lines returns the number of source lines covered by the part
func (p ClonePart) Lines() int {
	return p.EndLine - p.StartLine + 1
}

// CloneGroup is a set of two or more parts sharing the same fingerprint run
type CloneGroup struct {
	Hash   Hash // Fingerprint of the first block in the run
	Blocks int  // Number of consecutive matching blocks
	Parts  []ClonePart
}

// Lines returns the largest span among the group's parts
func (g *CloneGroup) Lines() int {
	lines := 0
	for _, p := range g.Parts {
		if l := p.Lines(); l > lines {
			lines = l
		}
	}
	return lines
}

// Validate checks if the clone group is well formed
func (g *CloneGroup) Validate() error {
	if len(g.Parts) < 2 {
		return ErrTooFewParts
	}

	for _, p := range g.Parts {
		if p.ResourceID == "" {
			return ErrMissingOrigin
		}
		if p.StartLine > p.EndLine {
			return ErrInvalidSpan
		}
	}

	return nil
}
