package config

import (
	"fmt"

	"github.com/san-kum/pidlab/internal/dynamo"
)

var presetOrder = []string{
	"well-tuned",
	"too-much-p",
	"no-damping",
	"p-only-friction",
	"aggressive-d",
}

var Presets = map[string]dynamo.Preset{
	"well-tuned": {
		Name:        "well-tuned",
		Description: "balanced gains, quick rise with small overshoot",
		Kp:          2.0, Ki: 0.1, Kd: 0.5, Friction: 0.2,
		Expected: "fast rise, small overshoot, settles within a few seconds",
	},
	"too-much-p": {
		Name:        "too-much-p",
		Description: "proportional gain far too high",
		Kp:          8.0, Ki: 0.1, Kd: 0.5, Friction: 0.2,
		Expected: "very fast rise, large overshoot, rings before settling",
	},
	"no-damping": {
		Name:        "no-damping",
		Description: "derivative term removed",
		Kp:          4.0, Ki: 0.1, Kd: 0, Friction: 0.2,
		Expected: "sustained oscillation around the target",
	},
	"p-only-friction": {
		Name:        "p-only-friction",
		Description: "no integral action, heavier friction",
		Kp:          2.0, Ki: 0, Kd: 0.5, Friction: 0.5,
		Expected: "slow overdamped approach with no integral correction",
	},
	"aggressive-d": {
		Name:        "aggressive-d",
		Description: "derivative gain much larger than proportional",
		Kp:          2.0, Ki: 0.1, Kd: 5.0, Friction: 0.2,
		Expected: "sluggish, heavily damped approach with no overshoot",
	},
}

func GetPreset(name string) (dynamo.Preset, error) {
	p, ok := Presets[name]
	if !ok {
		return dynamo.Preset{}, fmt.Errorf("%w: %q", dynamo.ErrUnknownPreset, name)
	}
	return p, nil
}

// PresetNames lists the presets in display order.
func PresetNames() []string {
	return append([]string(nil), presetOrder...)
}
