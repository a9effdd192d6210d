package hotkey_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/monitornap/internal/hotkey"
	"github.com/stretchr/testify/assert"
)

const (
	repeatDelay    = 660 * time.Millisecond
	repeatInterval = 40 * time.Millisecond
)

func TestHeldKeyWithReleasePairsTogglesOnce(t *testing.T) {
	d := hotkey.NewDebouncer(hotkey.DefaultHoldTimeout)
	start := time.Unix(1000, 0)

	toggles := 0
	if d.Press(start) {
		toggles++
	}

	// Auto-repeat sends a release and a press with the same timestamp.
	for i := 0; i < 50; i++ {
		at := start.Add(repeatDelay + time.Duration(i)*repeatInterval)
		d.Release(at)
		if d.Press(at) {
			toggles++
		}
	}
	assert.Equal(t, 1, toggles)

	d.Release(start.Add(3 * time.Second))
	assert.True(t, d.Press(start.Add(3*time.Second+200*time.Millisecond)), "a new press after the real release")
}

func TestHeldKeyWithoutReleasesTogglesOnce(t *testing.T) {
	d := hotkey.NewDebouncer(hotkey.DefaultHoldTimeout)
	start := time.Unix(1000, 0)

	assert.True(t, d.Press(start))
	for i := 0; i < 50; i++ {
		assert.False(t, d.Press(start.Add(repeatDelay+time.Duration(i)*repeatInterval)))
	}
}

func TestQuickSeparatePressesEachToggle(t *testing.T) {
	d := hotkey.NewDebouncer(hotkey.DefaultHoldTimeout)
	start := time.Unix(1000, 0)

	assert.True(t, d.Press(start))
	d.Release(start.Add(80 * time.Millisecond))
	assert.True(t, d.Press(start.Add(150*time.Millisecond)))
	d.Release(start.Add(230 * time.Millisecond))
	assert.True(t, d.Press(start.Add(300*time.Millisecond)))
}

func TestMissedReleaseRecoversAfterTimeout(t *testing.T) {
	d := hotkey.NewDebouncer(hotkey.DefaultHoldTimeout)
	start := time.Unix(1000, 0)

	assert.True(t, d.Press(start))
	assert.True(t, d.Press(start.Add(hotkey.DefaultHoldTimeout+time.Second)))
}
