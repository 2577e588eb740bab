package output

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"

	"github.com/gospot-dev/gospot/pkg/remote"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct{}

// PrintOK acknowledges a fire-and-ack command.
func (HumanPrinter) PrintOK(cmdType string) error {
	pterm.Success.Println(cmdType)
	return nil
}

// PrintSnapshot renders a device snapshot as a table.
func (HumanPrinter) PrintSnapshot(s remote.Snapshot) error {
	state := s.PlaybackState
	if !s.Running {
		state = "engine stopped"
	} else if !s.Connected {
		state = "disconnected"
	}

	track := s.Title
	if s.Artist != "" {
		track = fmt.Sprintf("%s - %s", s.Artist, s.Title)
	}

	rows := pterm.TableData{
		{"Device", s.DeviceName},
		{"State", state},
		{"Track", track},
		{"Album", s.Album},
		{"Position", fmt.Sprintf("%s / %s", formatMS(s.PositionMS), formatMS(s.DurationMS))},
		{"Volume", fmt.Sprintf("%d%%", volumePercent(s.Volume))},
		{"Status", s.StatusMessage},
	}
	return pterm.DefaultTable.WithData(rows).Render()
}

// PrintMessage prints a plain line.
func (HumanPrinter) PrintMessage(msg string) error {
	_, err := fmt.Fprintln(os.Stdout, msg)
	return err
}

func formatMS(ms uint32) string {
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func volumePercent(volume uint16) int {
	return int(float64(volume)*100/65535 + 0.5)
}
