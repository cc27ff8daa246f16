// Package detector reports duplicated code from the block fingerprints
// stored by the indexer.
//
// A single duplicated block only says that BlockSize statements repeat.
// GroupClones stitches consecutive duplicated blocks together: when block k
// and block k+1 of a file are both duplicated, and their copies sit at the
// same places shifted by one, they are reported as one clone group spanning
// from the first block's start line to the last block's end line.
//
//	det := detector.New(store)
//	report, err := det.FindClones(ctx, projectID, detector.Options{MinLines: 10})
//	for _, g := range report.Groups {
//	    fmt.Println(g.Lines(), len(g.Parts))
//	}
//
// Grouped results are cached in an LRU keyed by project and its last index
// time, so a reindex makes the next call recompute.
package detector
