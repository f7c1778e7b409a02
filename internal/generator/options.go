package generator

import (
	"fmt"
	"strings"

	"star-art-studio/internal/blueprint"
)

// Options are per-run overrides. An empty value or blueprint.Auto leaves the
// choice to the text model.
type Options struct {
	TimeOfDay     string `json:"timeOfDay,omitempty"`
	Weather       string `json:"weather,omitempty"`
	CameraAngle   string `json:"cameraAngle,omitempty"`
	CameraFOV     string `json:"cameraFov,omitempty"`
	ArtisticStyle string `json:"artisticStyle,omitempty"`
}

// Constraint pins one blueprint field to a value.
type Constraint struct {
	Path  string
	Value string
}

func (c Constraint) String() string {
	return fmt.Sprintf("Constraint: Set %s to '%s'.", c.Path, c.Value)
}

type optionSlot struct {
	param   string
	path    string
	value   string
	allowed []string
}

// slots keeps the stable constraint order.
func (o Options) slots() []optionSlot {
	return []optionSlot{
		{param: "timeOfDay", path: "scene.timeOfDay", value: o.TimeOfDay, allowed: blueprint.TimesOfDay()},
		{param: "weather", path: "scene.weather", value: o.Weather, allowed: blueprint.Weathers()},
		{param: "cameraAngle", path: "camera.angle", value: o.CameraAngle, allowed: blueprint.CameraAngles()},
		{param: "cameraFov", path: "camera.fov", value: o.CameraFOV, allowed: blueprint.CameraFOVs()},
		{param: "artisticStyle", path: "style.artisticStyle", value: o.ArtisticStyle, allowed: blueprint.ArtisticStyles()},
	}
}

// Constraints returns one entry per overridden option, in the order
// timeOfDay, weather, camera angle, camera fov, artistic style.
func (o Options) Constraints() []Constraint {
	var out []Constraint
	for _, s := range o.slots() {
		if isAuto(s.value) {
			continue
		}
		out = append(out, Constraint{Path: s.path, Value: strings.TrimSpace(s.value)})
	}
	return out
}

func (o Options) Validate() error {
	for _, s := range o.slots() {
		if isAuto(s.value) {
			continue
		}
		v := strings.TrimSpace(s.value)
		if !containsString(s.allowed, v) {
			return fmt.Errorf("%s: %q is not one of %s", s.param, v, strings.Join(s.allowed, ", "))
		}
	}
	return nil
}

// Set assigns a parameter by its catalog name. Used by the bot and CLI.
func (o *Options) Set(param, value string) error {
	f, err := o.field(param)
	if err != nil {
		return err
	}
	*f = strings.TrimSpace(value)
	return nil
}

// Get returns a parameter's value with empty mapped to blueprint.Auto.
func (o Options) Get(param string) (string, error) {
	n := o.Normalized()
	f, err := n.field(param)
	if err != nil {
		return "", err
	}
	return *f, nil
}

func (o *Options) field(param string) (*string, error) {
	switch strings.ToLower(strings.TrimSpace(param)) {
	case "timeofday", "time", "time-of-day":
		return &o.TimeOfDay, nil
	case "weather":
		return &o.Weather, nil
	case "cameraangle", "angle", "camera-angle":
		return &o.CameraAngle, nil
	case "camerafov", "fov", "camera-fov":
		return &o.CameraFOV, nil
	case "artisticstyle", "style", "artistic-style":
		return &o.ArtisticStyle, nil
	}
	return nil, fmt.Errorf("unknown option %q", param)
}

// Normalized maps empty values to blueprint.Auto for display.
func (o Options) Normalized() Options {
	norm := func(v string) string {
		if isAuto(v) {
			return blueprint.Auto
		}
		return strings.TrimSpace(v)
	}
	return Options{
		TimeOfDay:     norm(o.TimeOfDay),
		Weather:       norm(o.Weather),
		CameraAngle:   norm(o.CameraAngle),
		CameraFOV:     norm(o.CameraFOV),
		ArtisticStyle: norm(o.ArtisticStyle),
	}
}

func isAuto(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, blueprint.Auto)
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
