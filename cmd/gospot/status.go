package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gospot-dev/gospot/pkg/remote"
)

func statusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the device snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if watch {
				return watchStatus(app)
			}
			ctx, cancel := context.WithTimeout(context.Background(), app.timeout)
			defer cancel()
			snapshot, err := app.client.GetSnapshot(ctx, app.deviceID)
			if err != nil {
				return wrapError(exitRuntime, "no snapshot for device", err)
			}
			return app.printer.PrintSnapshot(snapshot)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "follow snapshot updates")

	return cmd
}

func watchStatus(app *app) error {
	updates := make(chan remote.Snapshot, 4)
	topic := remote.TopicSnapshot(app.client.TopicBase(), app.deviceID)
	err := app.client.Subscribe(topic, func(_ string, payload []byte) {
		var snapshot remote.Snapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return
		}
		select {
		case updates <- snapshot:
		default:
		}
	})
	if err != nil {
		return wrapError(exitRuntime, "subscribe snapshot", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	for {
		select {
		case snapshot := <-updates:
			if err := app.printer.PrintSnapshot(snapshot); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
