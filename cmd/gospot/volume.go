package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gospot-dev/gospot/pkg/remote"
)

func volumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "volume <0..65535|up|down>",
		Aliases: []string{"vol"},
		Short:   "Set or step the volume",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			switch args[0] {
			case "up":
				return app.run(remote.CmdVolumeUp, nil)
			case "down":
				return app.run(remote.CmdVolumeDown, nil)
			}
			vol, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil {
				return usageError("volume must be 0..65535, up or down")
			}
			return app.run(remote.CmdSetVolume, remote.VolumeBody{Volume: uint16(vol)})
		},
	}
}
