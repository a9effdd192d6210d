package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"codeberg.org/mutker/monitornap/internal/control"
	"codeberg.org/mutker/monitornap/internal/engine"
	"codeberg.org/mutker/monitornap/internal/monitor"
)

const clock = "15:04:05"

// overrideLabel describes the global override that makes nap a no-op.
func overrideLabel(st control.Status) string {
	switch {
	case st.Global.AwakeMode:
		return "awake mode is on"
	case st.Paused():
		return "paused until " + st.PausedUntil.Local().Format(clock)
	}
	return ""
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatus(w io.Writer, st control.Status) error {
	paused := "no"
	if st.Paused() {
		paused = "until " + st.PausedUntil.Local().Format(clock)
	}

	fmt.Fprintf(w, "Awake mode:  %s\n", onOff(st.Global.AwakeMode))
	fmt.Fprintf(w, "Paused:      %s\n", paused)
	fmt.Fprintf(w, "Inactivity:  %s\n", st.Global.InactivityLimit)
	fmt.Fprintf(w, "Hotkey:      %s\n\n", st.Global.Hotkey)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MONITOR\tPHASE\tIDLE\tLIMIT\tHARDWARE\tOVERLAY\tGEOMETRY")
	for _, m := range st.Monitors {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Monitor.ID,
			m.Phase,
			idle(st.Time, m.LastActivity),
			m.InactivityLimit,
			hardwareState(m),
			overlayState(m),
			m.Monitor.Geometry,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(st.Notifications) > 0 {
		fmt.Fprintln(w, "\nRecent notifications:")
		for _, n := range st.Notifications {
			fmt.Fprintf(w, "  %s  %-28s %s\n", n.Time.Local().Format(clock), n.Kind, n)
		}
	}

	if len(st.Transitions) > 0 {
		fmt.Fprintln(w, "\nRecent transitions:")
		for _, t := range st.Transitions {
			fmt.Fprintf(w, "  %s  %-8s %s -> %s (%s)\n",
				t.Time.Local().Format(clock), t.MonitorID, t.From, t.To, t.Reason)
		}
	}

	return nil
}

func idle(now, last time.Time) string {
	if last.IsZero() || now.Before(last) {
		return "-"
	}
	return now.Sub(last).Truncate(time.Second).String()
}

func hardwareState(m engine.MonitorSnapshot) string {
	switch {
	case !m.Settings.HardwareDimEnabled:
		return "off"
	case m.HardwareUnsupported:
		return "unsupported"
	case m.HardwareApplied:
		return fmt.Sprintf("-%d%%", m.Settings.HardwareDimLevel)
	}
	return "ready"
}

func overlayState(m engine.MonitorSnapshot) string {
	switch {
	case !m.Settings.SoftwareDimEnabled:
		return "off"
	case m.OverlayApplied:
		return fmt.Sprintf("%d%% %s", m.Settings.SoftwareOpacity, m.Settings.OverlayColor)
	}
	return "ready"
}

func printGlobal(w io.Writer, g monitor.GlobalSettings) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "inactivity-limit\t%s\n", g.InactivityLimit)
	fmt.Fprintf(tw, "hotkey\t%s\n", g.Hotkey)
	fmt.Fprintf(tw, "awake-mode\t%s\n", onOff(g.AwakeMode))
	fmt.Fprintf(tw, "fade-time\t%s\n", g.FadeTime)
	fmt.Fprintf(tw, "fade-steps\t%d\n", g.FadeSteps)
	return tw.Flush()
}

func printMonitorSettings(w io.Writer, id monitor.ID, s monitor.Settings) error {
	limit := "global"
	if s.InactivityLimit > 0 {
		limit = s.InactivityLimit.String()
	}
	ddc := "auto"
	if s.DDCDisplay > 0 {
		ddc = fmt.Sprint(s.DDCDisplay)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "monitor\t%s\n", id)
	fmt.Fprintf(tw, "inactivity-limit\t%s\n", limit)
	fmt.Fprintf(tw, "hardware\t%s\n", onOff(s.HardwareDimEnabled))
	fmt.Fprintf(tw, "hardware-level\t%d\n", s.HardwareDimLevel)
	fmt.Fprintf(tw, "software\t%s\n", onOff(s.SoftwareDimEnabled))
	fmt.Fprintf(tw, "opacity\t%d\n", s.SoftwareOpacity)
	fmt.Fprintf(tw, "color\t%s\n", s.OverlayColor)
	fmt.Fprintf(tw, "ddc-display\t%s\n", ddc)
	return tw.Flush()
}
