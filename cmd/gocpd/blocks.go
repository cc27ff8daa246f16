package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/gocpd/internal/chunker"
	"github.com/dshills/gocpd/internal/statement"
	"github.com/dshills/gocpd/pkg/types"
)

type blocksOptions struct {
	blockSize  int
	json       bool
	statements bool
}

type blockLine struct {
	Index     int    `json:"index"`
	Hash      string `json:"hash"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

func newBlocksCmd() *cobra.Command {
	opts := &blocksOptions{}

	cmd := &cobra.Command{
		Use:   "blocks <file>",
		Short: "Print the block fingerprints of one file",
		Long: `Split a single file into statements and print the fingerprint of every
window of block-size statements. Nothing is stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlocks(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.blockSize, "block-size", chunker.DefaultBlockSize, "statements per block")
	f.BoolVar(&opts.json, "json", false, "print JSON instead of a table")
	f.BoolVar(&opts.statements, "statements", false, "print the normalized statements instead of blocks")

	return cmd
}

func runBlocks(cmd *cobra.Command, path string, opts *blocksOptions) error {
	blockChunker, err := chunker.New(opts.blockSize)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(path) //nolint:gosec // user-supplied CLI argument
	if err != nil {
		return err
	}

	stmts, parseErr := statement.ForPath(path).Statements(path, src)
	if parseErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.YellowString("warning:"), parseErr)
	}
	if stmts == nil {
		stmts = []types.Statement{}
	}

	w := cmd.OutOrStdout()
	if opts.statements {
		for _, s := range chunker.FilterStatements(stmts) {
			_, _ = fmt.Fprintf(w, "%d-%d\t%s\n", s.StartLine, s.EndLine, s.Value)
		}
		return nil
	}

	blocks, err := blockChunker.Chunk(path, stmts)
	if err != nil {
		return err
	}

	lines := make([]blockLine, 0, len(blocks))
	for _, b := range blocks {
		lines = append(lines, blockLine{Index: b.IndexInFile, Hash: b.Hash.String(), StartLine: b.StartLine, EndLine: b.EndLine})
	}

	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(lines)
	}

	bold := color.New(color.Bold)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, bold.Sprint("INDEX")+"\t"+bold.Sprint("HASH")+"\t"+bold.Sprint("LINES"))
	for _, l := range lines {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d-%d\n", l.Index, l.Hash, l.StartLine, l.EndLine)
	}
	return tw.Flush()
}
