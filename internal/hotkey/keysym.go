package hotkey

import "strconv"

var namedKeysyms = map[string]uint32{
	"escape":    0xff1b,
	"esc":       0xff1b,
	"space":     0x0020,
	"return":    0xff0d,
	"enter":     0xff0d,
	"tab":       0xff09,
	"backspace": 0xff08,
	"pause":     0xff13,
	"home":      0xff50,
	"end":       0xff57,
	"pageup":    0xff55,
	"pagedown":  0xff56,
	"insert":    0xff63,
	"delete":    0xffff,
	"left":      0xff51,
	"up":        0xff52,
	"right":     0xff53,
	"down":      0xff54,
}

// f1Keysym is XK_F1; F2 through F24 follow consecutively.
const f1Keysym = 0xffbe

func lookupKeysym(name string) (uint32, bool) {
	if sym, ok := namedKeysyms[name]; ok {
		return sym, true
	}

	if len(name) == 1 {
		c := name[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return uint32(c), true
		}
		return 0, false
	}

	if name[0] == 'f' {
		n, err := strconv.Atoi(name[1:])
		if err == nil && n >= 1 && n <= 24 {
			return f1Keysym + uint32(n-1), true
		}
	}

	return 0, false
}
