// Package hotkey parses key bindings and listens for a global key
// combination.
package hotkey

import (
	"fmt"
	"strings"

	"codeberg.org/mutker/monitornap/internal/errors"
)

// Modifier is a set of modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModSuper
)

var modifierNames = []struct {
	mod   Modifier
	names []string
}{
	{ModCtrl, []string{"ctrl", "control"}},
	{ModAlt, []string{"alt", "mod1"}},
	{ModShift, []string{"shift"}},
	{ModSuper, []string{"super", "win", "meta", "mod4"}},
}

// Binding is a parsed key combination.
type Binding struct {
	Modifiers Modifier
	Key       string
	Keysym    uint32
}

// ParseBinding parses strings like "ctrl+alt+a" or "Super+F12". Modifier
// order and case do not matter; exactly one non-modifier key is required.
func ParseBinding(s string) (Binding, error) {
	errFactory := errors.New()

	var b Binding
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return Binding{}, errFactory.WithData(ErrInvalidBinding, fmt.Sprintf("empty key in %q", s))
		}

		if mod, ok := lookupModifier(part); ok {
			b.Modifiers |= mod
			continue
		}

		if b.Key != "" {
			return Binding{}, errFactory.WithData(ErrInvalidBinding, fmt.Sprintf("more than one key in %q", s))
		}
		sym, ok := lookupKeysym(part)
		if !ok {
			return Binding{}, errFactory.WithData(ErrInvalidBinding, fmt.Sprintf("unknown key %q", part))
		}
		b.Key = part
		b.Keysym = sym
	}

	if b.Key == "" {
		return Binding{}, errFactory.WithData(ErrInvalidBinding, fmt.Sprintf("no key in %q", s))
	}

	return b, nil
}

func lookupModifier(name string) (Modifier, bool) {
	for _, m := range modifierNames {
		for _, n := range m.names {
			if n == name {
				return m.mod, true
			}
		}
	}
	return 0, false
}

// String returns the normalized form, modifiers first in a fixed order.
func (b Binding) String() string {
	parts := make([]string, 0, 5)
	for _, m := range modifierNames {
		if b.Modifiers&m.mod != 0 {
			parts = append(parts, m.names[0])
		}
	}
	return strings.Join(append(parts, b.Key), "+")
}
