package main

import (
	"github.com/spf13/cobra"

	"github.com/gospot-dev/gospot/pkg/gospot"
	"github.com/gospot-dev/gospot/pkg/remote"
)

func trackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "track <uri|id>",
		Short: "Load and play a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := gospot.TrackURIFromInput(args[0])
			if err != nil {
				return usageError(err.Error())
			}
			return fromContext(cmd).run(remote.CmdLoadTrack, remote.TrackBody{URI: uri})
		},
	}
}

func queueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "queue <uri|id>",
		Short: "Queue a track after the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := gospot.TrackURIFromInput(args[0])
			if err != nil {
				return usageError(err.Error())
			}
			return fromContext(cmd).run(remote.CmdAddToQueue, remote.TrackBody{URI: uri})
		},
	}
}
