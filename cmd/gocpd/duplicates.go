package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/gocpd/internal/detector"
	"github.com/dshills/gocpd/internal/storage"
)

type duplicatesOptions struct {
	minLines int
	limit    int
	json     bool
	fail     bool
}

func newDuplicatesCmd(global *globalOptions) *cobra.Command {
	opts := &duplicatesOptions{}

	cmd := &cobra.Command{
		Use:   "duplicates [path]",
		Short: "Report duplicated code in an indexed project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDuplicates(cmd, args, global, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.minLines, "min-lines", 0, "ignore groups spanning fewer lines (default from config)")
	f.IntVar(&opts.limit, "limit", 0, "maximum groups to print (0 for all)")
	f.BoolVar(&opts.json, "json", false, "print JSON instead of text")
	f.BoolVar(&opts.fail, "fail", false, "exit with status 2 when duplicates are found")

	return cmd
}

type duplicateReport struct {
	Root            string           `json:"root"`
	BlockSize       int              `json:"block_size"`
	TotalGroups     int              `json:"total_groups"`
	DuplicatedLines int              `json:"duplicated_lines"`
	Groups          []duplicateGroup `json:"groups"`
}

type duplicateGroup struct {
	Hash        string              `json:"hash"`
	Lines       int                 `json:"lines"`
	Blocks      int                 `json:"blocks"`
	Occurrences []duplicateLocation `json:"occurrences"`
}

type duplicateLocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

func runDuplicates(cmd *cobra.Command, args []string, global *globalOptions, opts *duplicatesOptions) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	cfg, err := loadProjectConfig(root)
	if err != nil {
		return err
	}
	minLines := cfg.MinLines
	if cmd.Flags().Changed("min-lines") {
		minLines = opts.minLines
	}

	store, err := openStorage(global, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	project, err := store.GetProject(cmd.Context(), root)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s is not indexed; run `gocpd index %s` first", root, root)
	}
	if err != nil {
		return err
	}

	report, err := detector.New(store).FindClones(cmd.Context(), project.ID, detector.Options{
		MinLines: minLines,
		Limit:    opts.limit,
	})
	if err != nil {
		return err
	}

	out := duplicateReport{
		Root:            project.RootPath,
		BlockSize:       project.BlockSize,
		TotalGroups:     report.TotalGroups,
		DuplicatedLines: report.DuplicatedLines,
		Groups:          make([]duplicateGroup, 0, len(report.Groups)),
	}
	for _, g := range report.Groups {
		dg := duplicateGroup{Hash: g.Hash.String(), Lines: g.Lines(), Blocks: g.Blocks}
		for _, p := range g.Parts {
			dg.Occurrences = append(dg.Occurrences, duplicateLocation{File: p.ResourceID, StartLine: p.StartLine, EndLine: p.EndLine})
		}
		out.Groups = append(out.Groups, dg)
	}

	w := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		printDuplicates(cmd, out)
	}

	if opts.fail && report.TotalGroups > 0 {
		return &exitCodeError{code: ExitDuplicates}
	}
	return nil
}

func printDuplicates(cmd *cobra.Command, report duplicateReport) {
	w := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)
	dim := color.New(color.Faint)

	if report.TotalGroups == 0 {
		_, _ = fmt.Fprintln(w, green.Sprint("No duplicated code found."))
		return
	}

	for _, g := range report.Groups {
		_, _ = fmt.Fprintf(w, "%s in %d places %s\n",
			yellow.Sprintf("%d lines", g.Lines), len(g.Occurrences), dim.Sprintf("(%s, %d blocks)", g.Hash, g.Blocks))
		for _, o := range g.Occurrences {
			_, _ = fmt.Fprintf(w, "  %s:%d-%d\n", o.File, o.StartLine, o.EndLine)
		}
	}

	_, _ = fmt.Fprintf(w, "\n%s %d of %d groups, %d duplicated lines\n",
		bold.Sprint("Shown:"), len(report.Groups), report.TotalGroups, report.DuplicatedLines)
}
