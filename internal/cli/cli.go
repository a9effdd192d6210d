// Package cli implements the monitornap command line. "run" starts the
// daemon; every other command talks to it over the control socket.
package cli

import (
	"context"
	"fmt"
	"os"

	"codeberg.org/mutker/monitornap/internal/config"
	"codeberg.org/mutker/monitornap/internal/control"
	"codeberg.org/mutker/monitornap/internal/daemon"
	"codeberg.org/mutker/monitornap/internal/engine"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"github.com/spf13/cobra"
)

// Client is the daemon command surface used by the CLI.
type Client interface {
	Status(ctx context.Context) (control.Status, error)
	Nap(ctx context.Context) (control.Status, error)
	Resume(ctx context.Context) (control.Status, error)
	Pause(ctx context.Context, minutes int) (control.Status, error)
	CancelPause(ctx context.Context) (control.Status, error)
	ToggleAwake(ctx context.Context) (control.Status, error)
	SetAwake(ctx context.Context, enabled bool) (control.Status, error)
	Identify(ctx context.Context, id monitor.ID) (control.Status, error)
	UpdateGlobalSettings(ctx context.Context, update engine.GlobalSettingsUpdate) (control.Status, error)
	UpdateMonitorSettings(ctx context.Context, id monitor.ID, settings monitor.Settings) (control.Status, error)
}

// CLI holds the loaded configuration and the factories the commands use.
type CLI struct {
	cfg *config.Config

	newClient func(socket string) Client
	runDaemon func(ctx context.Context, cfg *config.Config) error
}

func New() *CLI {
	return &CLI{
		newClient: func(socket string) Client { return control.NewClient(socket) },
		runDaemon: daemon.Run,
	}
}

// Execute runs the root command. Called from main.
func Execute(version string) {
	root := New().Command(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Command builds the root command with every subcommand attached.
func (c *CLI) Command(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "monitornap",
		Short: "Dim idle monitors",
		Long: `MonitorNap dims each monitor independently once it has been idle for a
while, using DDC/CI or the backlight where possible and a click-through
overlay everywhere else.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.load,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(c.createRunCmd())
	root.AddCommand(c.createNapCmd())
	root.AddCommand(c.createResumeCmd())
	root.AddCommand(c.createPauseCmd())
	root.AddCommand(c.createUnpauseCmd())
	root.AddCommand(c.createAwakeCmd())
	root.AddCommand(c.createIdentifyCmd())
	root.AddCommand(c.createStatusCmd())
	root.AddCommand(c.createSetCmd())

	return root
}

func (c *CLI) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	c.cfg = cfg

	logger.Init(cfg.Level(), logger.IsService())
	logger.Debug().Str("config", cfg.Path).Msg("Config loaded")

	return nil
}

func (c *CLI) client() Client {
	socket := c.cfg.Socket
	if socket == "" {
		socket = control.DefaultSocketPath()
	}
	return c.newClient(socket)
}
