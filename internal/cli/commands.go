package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/monitornap/internal/config"
	"codeberg.org/mutker/monitornap/internal/control"
	"codeberg.org/mutker/monitornap/internal/engine"
	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"github.com/spf13/cobra"
)

func (c *CLI) createRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the dimming daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runDaemon(cmd.Context(), c.cfg)
		},
	}
	config.RegisterDaemonFlags(cmd.Flags())
	return cmd
}

func (c *CLI) createNapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nap",
		Short: "Dim every monitor now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := c.client().Nap(cmd.Context())
			if err != nil {
				return err
			}
			if override := overrideLabel(st); override != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Nap ignored: %s\n", override)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Monitors dimmed")
			return nil
		},
	}
}

func (c *CLI) createResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Wake every monitor and cancel any pause",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.client().Resume(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Dimming resumed")
			return nil
		},
	}
}

func (c *CLI) createPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause MINUTES",
		Short: "Suspend dimming for a number of minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.New().WithData(errors.ErrInvalidArgument, fmt.Sprintf("minutes %q", args[0]))
			}
			st, err := c.client().Pause(cmd.Context(), minutes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dimming paused until %s\n", st.PausedUntil.Local().Format(time.Kitchen))
			return nil
		},
	}
}

func (c *CLI) createUnpauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpause",
		Short: "Cancel a running pause",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.client().CancelPause(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Pause cancelled")
			return nil
		},
	}
}

func (c *CLI) createAwakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "awake [on|off]",
		Short:     "Toggle or set awake mode, which keeps every monitor bright",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client := c.client()

			var (
				st  control.Status
				err error
			)
			if len(args) == 0 {
				st, err = client.ToggleAwake(cmd.Context())
			} else {
				var enabled bool
				enabled, err = parseOnOff(args[0])
				if err != nil {
					return err
				}
				st, err = client.SetAwake(cmd.Context(), enabled)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Awake mode %s\n", onOff(st.Global.AwakeMode))
			return nil
		},
	}
}

func (c *CLI) createIdentifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify MONITOR",
		Short: "Flash a monitor to tell it apart from the others",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.client().Identify(cmd.Context(), monitor.ID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flashing %s\n", args[0])
			return nil
		},
	}
}

func (c *CLI) createStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show monitors, phases and recent notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := c.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), st)
			}
			return printStatus(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status document")

	return cmd
}

func (c *CLI) createSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings of the running daemon",
	}
	cmd.AddCommand(c.createSetGlobalCmd())
	cmd.AddCommand(c.createSetMonitorCmd())
	return cmd
}

func (c *CLI) createSetGlobalCmd() *cobra.Command {
	var (
		limit     time.Duration
		hotkey    string
		fadeTime  time.Duration
		fadeSteps int
	)

	cmd := &cobra.Command{
		Use:   "global",
		Short: "Change global settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var update engine.GlobalSettingsUpdate
			flags := cmd.Flags()
			if flags.Changed("inactivity-limit") {
				update.InactivityLimit = &limit
			}
			if flags.Changed("hotkey") {
				update.Hotkey = &hotkey
			}
			if flags.Changed("fade-time") {
				update.FadeTime = &fadeTime
			}
			if flags.Changed("fade-steps") {
				update.FadeSteps = &fadeSteps
			}
			if update == (engine.GlobalSettingsUpdate{}) {
				return errors.New().WithData(errors.ErrInvalidArgument, "no settings given")
			}

			st, err := c.client().UpdateGlobalSettings(cmd.Context(), update)
			if err != nil {
				return err
			}
			return printGlobal(cmd.OutOrStdout(), st.Global)
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&limit, "inactivity-limit", 0, "Idle time before a monitor dims")
	flags.StringVar(&hotkey, "hotkey", "", "Awake mode toggle, e.g. ctrl+alt+a")
	flags.DurationVar(&fadeTime, "fade-time", 0, "Duration of the dim fade")
	flags.IntVar(&fadeSteps, "fade-steps", 0, "Number of fade steps")

	return cmd
}

func (c *CLI) createSetMonitorCmd() *cobra.Command {
	var (
		limit      time.Duration
		hardware   bool
		level      int
		software   bool
		opacity    int
		color      string
		ddcDisplay int
	)

	cmd := &cobra.Command{
		Use:   "monitor MONITOR",
		Short: "Change the settings of one monitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := monitor.ID(args[0])
			client := c.client()

			st, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			current, ok := st.Monitor(id)
			if !ok {
				return errors.New().WithData(errors.ErrUnknownMonitor, args[0])
			}

			settings := current.Settings
			flags := cmd.Flags()
			if flags.Changed("inactivity-limit") {
				settings.InactivityLimit = limit
			}
			if flags.Changed("hardware") {
				settings.HardwareDimEnabled = hardware
			}
			if flags.Changed("hardware-level") {
				settings.HardwareDimLevel = level
			}
			if flags.Changed("software") {
				settings.SoftwareDimEnabled = software
			}
			if flags.Changed("opacity") {
				settings.SoftwareOpacity = opacity
			}
			if flags.Changed("color") {
				parsed, err := monitor.ParseColor(color)
				if err != nil {
					return err
				}
				settings.OverlayColor = parsed
			}
			if flags.Changed("ddc-display") {
				settings.DDCDisplay = ddcDisplay
			}

			st, err = client.UpdateMonitorSettings(cmd.Context(), id, settings)
			if err != nil {
				return err
			}
			updated, _ := st.Monitor(id)
			return printMonitorSettings(cmd.OutOrStdout(), id, updated.Settings)
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&limit, "inactivity-limit", 0, "Idle time before this monitor dims; 0 uses the global limit")
	flags.BoolVar(&hardware, "hardware", true, "Dim through DDC/CI or the backlight")
	flags.IntVar(&level, "hardware-level", monitor.DefaultHardwareDimLevel, "Brightness reduction in percent")
	flags.BoolVar(&software, "software", true, "Dim with an overlay")
	flags.IntVar(&opacity, "opacity", monitor.DefaultSoftwareOpacity, "Overlay opacity in percent")
	flags.StringVar(&color, "color", monitor.Black.String(), "Overlay color, #rrggbb")
	flags.IntVar(&ddcDisplay, "ddc-display", 0, "ddcutil display number; 0 uses the detected one")

	return cmd
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, errors.New().WithData(errors.ErrInvalidArgument, fmt.Sprintf("expected on or off, got %q", s))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
