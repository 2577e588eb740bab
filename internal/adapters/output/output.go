package output

import "github.com/gospot-dev/gospot/pkg/remote"

// Printer renders command results to stdout.
type Printer interface {
	PrintOK(cmdType string) error
	PrintSnapshot(s remote.Snapshot) error
	PrintMessage(msg string) error
}
