package display

import (
	"sort"
	"strings"

	"codeberg.org/mutker/monitornap/internal/monitor"
)

var internalPrefixes = []string{"eDP", "LVDS", "DSI"}

// isInternal reports whether an output name belongs to a built-in panel.
func isInternal(name string) bool {
	for _, p := range internalPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// finalize orders monitors by position, assigns indices and numbers the
// external outputs for ddcutil in the same order.
func finalize(monitors []monitor.Monitor) []monitor.Monitor {
	sort.SliceStable(monitors, func(i, j int) bool {
		a, b := monitors[i].Geometry, monitors[j].Geometry
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})

	ddc := 0
	for i := range monitors {
		monitors[i].Index = i
		monitors[i].Internal = isInternal(string(monitors[i].ID))
		if !monitors[i].Internal {
			ddc++
			monitors[i].DDCDisplay = ddc
		}
		monitors[i].SupportsHardwareDimming = true
	}

	return monitors
}
