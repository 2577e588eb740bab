package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gospot-dev/gospot/pkg/remote"
)

func playCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Resume playback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fromContext(cmd).run(remote.CmdResume, nil)
		},
	}
}

func pauseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause playback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fromContext(cmd).run(remote.CmdPause, nil)
		},
	}
}

func toggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "toggle",
		Aliases: []string{"play-pause"},
		Short:   "Toggle play/pause",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fromContext(cmd).run(remote.CmdPlayPause, nil)
		},
	}
}

func nextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Skip to the next track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fromContext(cmd).run(remote.CmdNext, nil)
		},
	}
}

func prevCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prev",
		Short: "Skip to the previous track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fromContext(cmd).run(remote.CmdPrev, nil)
		},
	}
}

func seekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seek <ms|+dur|-dur>",
		Short: "Seek within the current track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			pos, err := resolveSeek(app, args[0])
			if err != nil {
				return err
			}
			return app.run(remote.CmdSeek, remote.SeekBody{PositionMS: pos})
		},
	}
}

// resolveSeek turns an absolute millisecond value or a signed duration
// relative to the current position into a target position.
func resolveSeek(app *app, arg string) (uint32, error) {
	if !strings.HasPrefix(arg, "+") && !strings.HasPrefix(arg, "-") {
		pos, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return 0, usageError("position must be milliseconds or a signed duration")
		}
		return uint32(pos), nil
	}

	delta, err := time.ParseDuration(arg)
	if err != nil {
		return 0, usageError("position must be milliseconds or a signed duration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), app.timeout)
	defer cancel()
	snapshot, err := app.client.GetSnapshot(ctx, app.deviceID)
	if err != nil {
		return 0, wrapError(exitRuntime, "relative seek needs a snapshot", err)
	}

	target := int64(snapshot.PositionMS) + delta.Milliseconds()
	if target < 0 {
		target = 0
	}
	if snapshot.DurationMS > 0 && target > int64(snapshot.DurationMS) {
		target = int64(snapshot.DurationMS)
	}
	return uint32(target), nil
}

func transferCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer",
		Short: "Pull the session onto this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fromContext(cmd).run(remote.CmdTransfer, nil)
		},
	}
}

func disconnectCommand() *cobra.Command {
	var pause bool

	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Release the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fromContext(cmd).run(remote.CmdDisconnect, remote.DisconnectBody{Pause: pause})
		},
	}
	cmd.Flags().BoolVar(&pause, "pause", false, "pause before releasing")

	return cmd
}

func shuffleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shuffle <on|off>",
		Short: "Set shuffle mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := onOffArg(args[0])
			if err != nil {
				return err
			}
			return fromContext(cmd).run(remote.CmdSetShuffle, remote.ToggleBody{Enabled: enabled})
		},
	}
}

func repeatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repeat <context|track> <on|off>",
		Short: "Set repeat mode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := onOffArg(args[1])
			if err != nil {
				return err
			}
			switch args[0] {
			case "context":
				return fromContext(cmd).run(remote.CmdSetRepeatCtx, remote.ToggleBody{Enabled: enabled})
			case "track":
				return fromContext(cmd).run(remote.CmdSetRepeatTrk, remote.ToggleBody{Enabled: enabled})
			default:
				return usageError("expected context|track")
			}
		},
	}
}
