package hotkey_test

import (
	"testing"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/hotkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBinding(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		keysym uint32
	}{
		{"ctrl+alt+a", "ctrl+alt+a", 0x61},
		{"Alt+Ctrl+A", "ctrl+alt+a", 0x61},
		{"super+shift+F12", "shift+super+f12", 0xffc9},
		{"control + 5", "ctrl+5", 0x35},
		{"win+escape", "super+escape", 0xff1b},
		{"pause", "pause", 0xff13},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			b, err := hotkey.ParseBinding(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.String())
			assert.Equal(t, tt.keysym, b.Keysym)
		})
	}
}

func TestParseBindingErrors(t *testing.T) {
	for _, input := range []string{"", "ctrl+alt", "ctrl++a", "ctrl+a+b", "ctrl+hyper", "f25"} {
		t.Run(input, func(t *testing.T) {
			_, err := hotkey.ParseBinding(input)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, hotkey.ErrInvalidBinding))
		})
	}
}
