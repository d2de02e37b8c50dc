package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wscomms-dev/wscomms/internal/config"
	"github.com/wscomms-dev/wscomms/pkg/client"
	"github.com/wscomms-dev/wscomms/pkg/discovery"
	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

func callCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		url     string
		link    string
		route   string
		timeout time.Duration
		notify  bool
	)

	cmd := &cobra.Command{
		Use:   "call NAME [ARGS...]",
		Short: "Invoke a command on a host and print the result",
		Long: `Invoke a command on a host and print the JSON result.

Arguments that parse as JSON are sent as-is; anything else is sent as a
string. With --link the host is looked up through etcd discovery.

Examples:
  wscomms call --url ws://localhost:8080/calc Add 2 3
  wscomms call --url ws://localhost:8080/calc Sum '[1,2,3]'
  wscomms call --link calc-host --route /calc GetName`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if _, err := setupLogger(cfg); err != nil {
				return err
			}
			if !cmd.Flags().Changed("url") {
				url = cfg.Client.URL
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = cfg.Client.Timeout
			}

			callArgs, err := parseArgs(args[1:])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			c, err := dialForCall(ctx, cfg, url, link, route)
			if err != nil {
				return err
			}
			defer c.Close()

			if notify {
				if err := c.Notify(args[0], callArgs...); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("sent"))
				return nil
			}

			result, err := c.Call(ctx, args[0], callArgs...)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "host WebSocket URL (default from config)")
	cmd.Flags().StringVar(&link, "link", "", "discover the host by link name through etcd")
	cmd.Flags().StringVar(&route, "route", "", "route to pick when discovering")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "overall timeout")
	cmd.Flags().BoolVarP(&notify, "notify", "n", false, "send without waiting for a reply")

	return cmd
}

func dialForCall(ctx context.Context, cfg *config.Config, url, link, route string) (*client.Client, error) {
	ccfg := client.DefaultConfig()
	ccfg.Session = cfg.SessionConfig()

	if link == "" {
		if url == "" {
			return nil, fmt.Errorf("no host: set --url, --link or client.url in the config")
		}
		return client.Dial(ctx, url, nil, ccfg)
	}

	if len(cfg.Discovery.EtcdEndpoints) == 0 {
		return nil, fmt.Errorf("--link needs discovery.etcd_endpoints in the config")
	}
	reg, err := discovery.NewEtcdRegistry(cfg.Discovery.EtcdEndpoints, cfg.Discovery.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}
	defer reg.Close()
	return client.DialDiscovered(ctx, reg, link, route, nil, ccfg)
}

// parseArgs turns command-line words into argument values.
func parseArgs(words []string) ([]any, error) {
	args := make([]any, 0, len(words))
	for _, w := range words {
		if json.Valid([]byte(w)) {
			v, err := protocol.RawValue([]byte(w))
			if err != nil {
				return nil, err
			}
			args = append(args, v)
			continue
		}
		args = append(args, w)
	}
	return args, nil
}
