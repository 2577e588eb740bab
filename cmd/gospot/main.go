package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/gospot-dev/gospot/internal/adapters/config"
	"github.com/gospot-dev/gospot/internal/adapters/mqtt"
	"github.com/gospot-dev/gospot/internal/adapters/output"
	"github.com/gospot-dev/gospot/pkg/gospot"
	"github.com/gospot-dev/gospot/pkg/remote"
)

type app struct {
	client   *mqtt.Client
	printer  output.Printer
	deviceID string
	timeout  time.Duration
}

func main() {
	root := &cobra.Command{
		Use:           "gospot",
		Short:         "Spotify Connect bridge CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var (
		broker    string
		topicBase string
		device    string
		deviceID  string
		timeout   time.Duration
		jsonOut   bool
		noColor   bool
		tlsCA     string
		tlsCert   string
		tlsKey    string
		userOpt   string
		passOpt   string
	)

	root.PersistentFlags().StringVarP(&broker, "broker", "b", "", "MQTT broker URL")
	root.PersistentFlags().StringVar(&topicBase, "topic-base", remote.BaseTopic, "MQTT topic base")
	root.PersistentFlags().StringVarP(&device, "device", "d", "", "connect device name")
	root.PersistentFlags().StringVar(&deviceID, "device-id", "", "connect device id (overrides --device)")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color")
	root.PersistentFlags().StringVar(&tlsCA, "tls-ca", "", "TLS CA path")
	root.PersistentFlags().StringVar(&tlsCert, "tls-cert", "", "TLS cert path")
	root.PersistentFlags().StringVar(&tlsKey, "tls-key", "", "TLS key path")
	root.PersistentFlags().StringVar(&userOpt, "user", "", "MQTT username")
	root.PersistentFlags().StringVar(&passOpt, "pass", "", "MQTT password")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if noColor {
			pterm.DisableColor()
		}
		if cmd.Name() == "discover" {
			return nil
		}
		cfg, err := config.Load()
		if err != nil {
			return wrapError(exitRuntime, "load config", err)
		}
		if broker == "" {
			broker = os.Getenv("GOSPOT_BROKER")
		}
		if broker == "" {
			broker = cfg.Broker
		}
		if broker == "" {
			return usageError("broker is required (set --broker, GOSPOT_BROKER or config)")
		}
		if topicBase == remote.BaseTopic && cfg.TopicBase != "" {
			topicBase = cfg.TopicBase
		}
		if deviceID == "" {
			if device == "" {
				device = os.Getenv("GOSPOT_DEVICE")
			}
			if device == "" {
				device = cfg.Device
			}
			if device == "" {
				return usageError("device is required (set --device, GOSPOT_DEVICE or config)")
			}
			deviceID = gospot.DeviceIDFromName(device)
		}

		client, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: broker,
			Username:  userOpt,
			Password:  passOpt,
			TLSCA:     tlsCA,
			TLSCert:   tlsCert,
			TLSKey:    tlsKey,
			TopicBase: topicBase,
			Timeout:   timeout,
		})
		if err != nil {
			return wrapError(exitRuntime, "mqtt connection failed", err)
		}

		var p output.Printer
		if jsonOut {
			p = output.JSONPrinter{}
		} else {
			p = output.HumanPrinter{}
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			client:   client,
			printer:  p,
			deviceID: deviceID,
			timeout:  timeout,
		}))
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if app := fromContext(cmd); app != nil {
			app.client.Close()
		}
	}

	root.AddCommand(discoverCommand())
	root.AddCommand(statusCommand())
	root.AddCommand(startCommand())
	root.AddCommand(stopCommand())
	root.AddCommand(lastErrorCommand())
	root.AddCommand(playCommand())
	root.AddCommand(pauseCommand())
	root.AddCommand(toggleCommand())
	root.AddCommand(nextCommand())
	root.AddCommand(prevCommand())
	root.AddCommand(seekCommand())
	root.AddCommand(transferCommand())
	root.AddCommand(disconnectCommand())
	root.AddCommand(volumeCommand())
	root.AddCommand(shuffleCommand())
	root.AddCommand(repeatCommand())
	root.AddCommand(trackCommand())
	root.AddCommand(queueCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

// send publishes a command envelope and resolves the reply into an error.
func (a *app) send(ctx context.Context, cmdType string, body any) (remote.ReplyEnvelope, error) {
	env, err := a.client.NewEnvelope(cmdType, body)
	if err != nil {
		return remote.ReplyEnvelope{}, wrapError(exitRuntime, "encode command", err)
	}
	reply, err := a.client.PublishCommand(ctx, a.deviceID, env)
	if err != nil {
		return remote.ReplyEnvelope{}, wrapError(exitRuntime, cmdType, err)
	}
	if !reply.OK {
		return reply, errorForReply(reply.Err)
	}
	return reply, nil
}

// run is the common shape of fire-and-ack commands.
func (a *app) run(cmdType string, body any) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if _, err := a.send(ctx, cmdType, body); err != nil {
		return err
	}
	return a.printer.PrintOK(cmdType)
}

func onOffArg(arg string) (bool, error) {
	switch arg {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, usageError("expected on|off")
	}
}
