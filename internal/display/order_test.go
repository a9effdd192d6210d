package display

import (
	"testing"

	"codeberg.org/mutker/monitornap/internal/monitor"
	"github.com/stretchr/testify/assert"
)

func TestFinalizeOrdersAndNumbers(t *testing.T) {
	in := []monitor.Monitor{
		{ID: "HDMI-1", Geometry: monitor.Rect{X: 4480, Width: 1920, Height: 1080}},
		{ID: "eDP-1", Geometry: monitor.Rect{X: 0, Y: 360, Width: 1920, Height: 1080}},
		{ID: "DP-2", Geometry: monitor.Rect{X: 1920, Width: 2560, Height: 1440}},
	}

	out := finalize(in)

	ids := []monitor.ID{out[0].ID, out[1].ID, out[2].ID}
	assert.Equal(t, []monitor.ID{"eDP-1", "DP-2", "HDMI-1"}, ids)

	assert.True(t, out[0].Internal)
	assert.Equal(t, 0, out[0].DDCDisplay)
	assert.Equal(t, 1, out[1].DDCDisplay)
	assert.Equal(t, 2, out[2].DDCDisplay)

	for i, m := range out {
		assert.Equal(t, i, m.Index)
		assert.True(t, m.SupportsHardwareDimming)
	}
}

func TestIsInternal(t *testing.T) {
	assert.True(t, isInternal("eDP-1"))
	assert.True(t, isInternal("LVDS1"))
	assert.True(t, isInternal("DSI-1"))
	assert.False(t, isInternal("DP-1"))
	assert.False(t, isInternal("HDMI-A-0"))
}
