package blueprint

import "strings"

// Auto lets the text model pick a value for an option.
const Auto = "auto"

type NamedOption struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type Selector struct {
	Param   string        `json:"param"`
	Label   string        `json:"label"`
	Options []NamedOption `json:"options"`
}

// Catalog lists the five overridable parameters in constraint order, each led
// by the auto sentinel.
func Catalog() []Selector {
	return []Selector{
		newSelector("timeOfDay", "Time of Day", timesOfDay),
		newSelector("weather", "Weather", weathers),
		newSelector("cameraAngle", "Camera Angle", cameraAngles),
		newSelector("cameraFov", "Field of View", cameraFOVs),
		newSelector("artisticStyle", "Artistic Style", artisticStyles),
	}
}

func newSelector(param, label string, values []string) Selector {
	out := make([]NamedOption, 0, len(values)+1)
	out = append(out, NamedOption{Key: Auto, Name: "Auto"})
	for _, v := range values {
		out = append(out, NamedOption{Key: v, Name: displayName(v)})
	}
	return Selector{Param: param, Label: label, Options: out}
}

func displayName(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == ' ' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
