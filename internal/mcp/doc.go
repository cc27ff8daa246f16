// Package mcp implements the Model Context Protocol (MCP) server for gocpd.
//
// The server exposes four tools to AI coding assistants:
//   - index_codebase: fingerprint a project into statement blocks
//   - find_duplicates: list clone groups found in an indexed project
//   - get_status: report index statistics and recent runs
//   - fingerprint_file: compute the blocks of one file without storing them
//
// MCP is JSON-RPC 2.0 over stdio. stdout carries protocol messages only;
// logs go to stderr or a log file.
//
//	gocpd serve
//
// # Tool: index_codebase
//
//	Request:
//	{
//	  "name": "index_codebase",
//	  "arguments": {
//	    "path": "/path/to/project",
//	    "force_reindex": false,
//	    "include_tests": true,
//	    "include_vendor": false,
//	    "block_size": 10
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "run_id": "5f0c...",
//	  "files_indexed": 247,
//	  "files_skipped": 89,
//	  "blocks_created": 18204,
//	  "duration_ms": 912
//	}
//
// Defaults for omitted arguments come from the project's .gocpd.yaml when
// present. Only one index_codebase call runs at a time; a concurrent call
// fails with ErrorCodeIndexingInProgress.
//
// # Tool: find_duplicates
//
//	Request:
//	{
//	  "name": "find_duplicates",
//	  "arguments": {"path": "/path/to/project", "min_lines": 10, "limit": 20}
//	}
//
//	Response:
//	{
//	  "total_groups": 31,
//	  "returned": 20,
//	  "groups": [
//	    {
//	      "hash": "0f3a9c21d4e5b607",
//	      "lines": 42,
//	      "blocks": 12,
//	      "occurrences": [
//	        {"file": "internal/a.go", "start_line": 10, "end_line": 51},
//	        {"file": "internal/b.go", "start_line": 88, "end_line": 129}
//	      ]
//	    }
//	  ]
//	}
//
// # Errors
//
// Tool failures are returned as *MCPError values carrying a JSON-RPC style
// code (ErrorCodeInvalidParams, ErrorCodeNotIndexed, ...) and a data map
// describing the offending parameter.
package mcp
