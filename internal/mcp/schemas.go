package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.NewTool("index_codebase",
		mcp.WithDescription("Fingerprint a codebase into blocks of consecutive statements so duplicated code can be found"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to the project root"),
		),
		mcp.WithBoolean("force_reindex",
			mcp.Description("If true, re-fingerprint all files ignoring file hashes (full rebuild)"),
			mcp.DefaultBool(false),
		),
		mcp.WithBoolean("include_tests",
			mcp.Description("If true, index *_test.go files"),
			mcp.DefaultBool(true),
		),
		mcp.WithBoolean("include_vendor",
			mcp.Description("If true, index vendor/ directory"),
			mcp.DefaultBool(false),
		),
		mcp.WithNumber("block_size",
			mcp.Description("Statements per block; defaults to the project's .gocpd.yaml or 10"),
			mcp.Min(1),
		),
	)
}

// findDuplicatesTool returns the tool definition for find_duplicates
func findDuplicatesTool() mcp.Tool {
	return mcp.NewTool("find_duplicates",
		mcp.WithDescription("List groups of duplicated code in an indexed project, largest first"),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to an indexed project"),
		),
		mcp.WithNumber("min_lines",
			mcp.Description("Ignore groups spanning fewer source lines"),
			mcp.Min(0),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of groups to return (1-500)"),
			mcp.DefaultNumber(50),
			mcp.Min(1),
			mcp.Max(500),
		),
	)
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.NewTool("get_status",
		mcp.WithDescription("Query indexing status and statistics for a project"),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to the project root"),
		),
	)
}

// fingerprintFileTool returns the tool definition for fingerprint_file
func fingerprintFileTool() mcp.Tool {
	return mcp.NewTool("fingerprint_file",
		mcp.WithDescription("Compute the block fingerprints of a single file without storing them"),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to a source file"),
		),
		mcp.WithNumber("block_size",
			mcp.Description("Statements per block (default 10)"),
			mcp.Min(1),
		),
	)
}
