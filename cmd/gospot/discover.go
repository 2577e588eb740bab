package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/gospot-dev/gospot/pkg/gospot"
)

// discoverCommand runs a local pairing session instead of talking to the
// daemon: it advertises on the local network and waits for a phone to
// hand over credentials.
func discoverCommand() *cobra.Command {
	var (
		name       string
		listen     string
		deviceType string
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Advertise locally and wait for a pairing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				host, err := os.Hostname()
				if err != nil || host == "" {
					return usageError("device name required (set --name)")
				}
				name = host
			}
			dt, err := gospot.ParseDeviceType(deviceType)
			if err != nil {
				return usageError(err.Error())
			}

			discovery, err := gospot.NewDiscovery(gospot.DiscoveryConfig{
				DeviceID:   gospot.DeviceIDFromName(name),
				Name:       name,
				DeviceType: dt,
				Listen:     listen,
			})
			if err != nil {
				return wrapError(exitRuntime, "start discovery", err)
			}
			defer discovery.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			spinner, _ := pterm.DefaultSpinner.Start("waiting for a pairing as ", name)
			creds, err := discovery.Next(ctx)
			if err != nil {
				spinner.Fail(err.Error())
				if ctx.Err() != nil {
					return nil
				}
				return wrapError(exitRuntime, "pairing failed", err)
			}
			spinner.Success("paired as ", creds.Username,
				" (", gospot.AuthTypeName(creds.AuthType), ")")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "advertised device name (default hostname)")
	cmd.Flags().StringVar(&listen, "listen", "", "pairing endpoint listen address")
	cmd.Flags().StringVar(&deviceType, "type", "speaker", "advertised device type")

	return cmd
}
