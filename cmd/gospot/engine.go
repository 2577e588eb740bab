package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/gospot-dev/gospot/pkg/remote"
)

func startCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start [name]",
		Short: "Start the connect engine",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			body := remote.StartBody{}
			if len(args) == 1 {
				body.DeviceName = args[0]
			}
			return app.run(remote.CmdStart, body)
		},
	}
}

func stopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the connect engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fromContext(cmd).run(remote.CmdStop, nil)
		},
	}
}

func lastErrorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "last-error",
		Short: "Show and clear the engine's last error",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), app.timeout)
			defer cancel()

			reply, err := app.send(ctx, remote.CmdLastError, nil)
			if err != nil {
				return err
			}
			var body remote.LastErrorBody
			if err := json.Unmarshal(reply.Body, &body); err != nil {
				return wrapError(exitRuntime, "decode reply", err)
			}
			if body.Message == "" {
				body.Message = "no error"
			}
			return app.printer.PrintMessage(body.Message)
		},
	}
}
