package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wscomms-dev/wscomms/internal/config"
	"github.com/wscomms-dev/wscomms/pkg/server"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "wscomms",
		Short: "Bidirectional command/response RPC over WebSocket",
		Long: `wscomms hosts and calls command/response endpoints over WebSocket.

Either side of a connection can invoke named commands on the other.
Commands carrying a correlation id get a __response or __error reply;
commands without one are notifications.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./"+config.FileName+")")

	load := func() (*config.Config, error) {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cmd.AddCommand(
		serveCmd(load),
		callCmd(load),
		versionCmd(),
	)
	return cmd
}

// setupLogger installs the configured logger as the default.
func setupLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	server.Version = version
	return logger, nil
}
