package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gospot-dev/gospot/pkg/remote"
)

// JSONPrinter prints JSON to stdout.
type JSONPrinter struct{}

// PrintOK emits an ok object for a fire-and-ack command.
func (JSONPrinter) PrintOK(cmdType string) error {
	return printJSON(map[string]any{"ok": true, "type": cmdType})
}

// PrintSnapshot emits the snapshot as JSON.
func (JSONPrinter) PrintSnapshot(s remote.Snapshot) error {
	return printJSON(s)
}

// PrintMessage emits a message object.
func (JSONPrinter) PrintMessage(msg string) error {
	return printJSON(map[string]any{"message": msg})
}

func printJSON(v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(payload))
	return err
}
