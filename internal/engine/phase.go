package engine

import "codeberg.org/mutker/monitornap/internal/errors"

// Phase is the dimming phase of one monitor.
type Phase int

const (
	PhaseActive Phase = iota
	PhaseDimmed
	PhaseOverrideAwake
	PhaseOverridePaused
)

var phaseNames = map[Phase]string{
	PhaseActive:         "ACTIVE",
	PhaseDimmed:         "DIMMED",
	PhaseOverrideAwake:  "OVERRIDE_AWAKE",
	PhaseOverridePaused: "OVERRIDE_PAUSED",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsOverride reports whether p is one of the global override phases.
func (p Phase) IsOverride() bool {
	return p == PhaseOverrideAwake || p == PhaseOverridePaused
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for phase, name := range phaseNames {
		if name == string(b) {
			*p = phase
			return nil
		}
	}
	return errors.New().WithData(errors.ErrInvalidArgument, "unknown phase "+string(b))
}
