package main

// Exit codes for the gocpd CLI.
const (
	ExitOK         = 0 // Success.
	ExitError      = 1 // Invalid arguments, bad path or runtime failure.
	ExitDuplicates = 2 // duplicates --fail found clone groups.
)

// exitCodeError carries a specific process exit code out of a command
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string { return e.msg }
