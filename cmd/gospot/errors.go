package main

import (
	"fmt"

	"github.com/gospot-dev/gospot/pkg/remote"
)

// CLI exit codes.
const (
	exitOK       = 0
	exitRuntime  = 1
	exitUsage    = 2
	exitNotReady = 3
)

// cliError carries a user-visible message and exit code.
type cliError struct {
	code int
	msg  string
	err  error
}

func (e *cliError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *cliError) Unwrap() error {
	return e.err
}

func usageError(msg string) *cliError {
	return &cliError{code: exitUsage, msg: msg}
}

func wrapError(code int, msg string, err error) *cliError {
	return &cliError{code: code, msg: msg, err: err}
}

// errorForReply maps reply error codes to CLI exit codes.
func errorForReply(re *remote.ReplyError) *cliError {
	if re == nil {
		return &cliError{code: exitRuntime, msg: "command rejected"}
	}
	switch re.Code {
	case remote.ErrCodeInvalid:
		return &cliError{code: exitUsage, msg: re.Message}
	case remote.ErrCodeNotReady:
		return &cliError{code: exitNotReady, msg: re.Message}
	default:
		return &cliError{code: exitRuntime, msg: re.Message}
	}
}

// exitCode returns the CLI exit code for err.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if cliErr, ok := err.(*cliError); ok {
		return cliErr.code
	}
	return exitRuntime
}
