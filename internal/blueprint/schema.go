package blueprint

type Kind int

const (
	KindObject Kind = iota
	KindString
	KindStringList
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindString:
		return "string"
	case KindStringList:
		return "array"
	default:
		return "unknown"
	}
}

// Field is a provider-neutral description of one node of the blueprint shape.
// Providers convert it into their own schema representation.
type Field struct {
	Name        string
	Kind        Kind
	Description string
	Enum        []string
	Required    bool
	Fields      []Field
}

// Schema describes every Blueprint field. It must match the Blueprint struct
// tag for tag.
var Schema = Field{
	Kind:     KindObject,
	Required: true,
	Fields: []Field{
		{
			Name:     "scene",
			Kind:     KindObject,
			Required: true,
			Fields: []Field{
				{Name: "environment", Kind: KindString, Required: true, Description: "The primary setting, e.g., 'forest', 'city', 'desert'."},
				{Name: "subjects", Kind: KindStringList, Required: true, Description: "List of key subjects, objects, or characters in the scene. e.g., ['castle', 'dragon', 'knight']"},
				{Name: "timeOfDay", Kind: KindString, Required: true, Enum: clone(timesOfDay)},
				{Name: "weather", Kind: KindString, Required: true, Enum: clone(weathers)},
			},
		},
		{
			Name:     "camera",
			Kind:     KindObject,
			Required: true,
			Fields: []Field{
				{Name: "angle", Kind: KindString, Required: true, Enum: clone(cameraAngles)},
				{Name: "fov", Kind: KindString, Required: true, Enum: clone(cameraFOVs)},
			},
		},
		{
			Name:     "style",
			Kind:     KindObject,
			Required: true,
			Fields: []Field{
				{Name: "artisticStyle", Kind: KindString, Required: true, Enum: clone(artisticStyles)},
				{Name: "lighting", Kind: KindString, Required: true, Enum: clone(lightings)},
				{Name: "palette", Kind: KindString, Required: true, Enum: clone(palettes)},
			},
		},
		{
			Name:     "rendering",
			Kind:     KindObject,
			Required: true,
			Fields: []Field{
				{Name: "effects", Kind: KindStringList, Required: true, Description: "e.g., ['hdr', '16-bit color', 'atmospheric haze']"},
				{Name: "aspectRatio", Kind: KindString, Required: true, Enum: clone(aspectRatios)},
			},
		},
		{
			Name:        "finalPrompt",
			Kind:        KindString,
			Required:    true,
			Description: "A detailed, descriptive final prompt for the image generator, synthesizing all other parameters into a cohesive sentence.",
		},
	},
}

func (f Field) RequiredNames() []string {
	var out []string
	for _, child := range f.Fields {
		if child.Required {
			out = append(out, child.Name)
		}
	}
	return out
}

// JSONSchema renders the field as a JSON Schema document. Objects are closed
// with additionalProperties=false so strict structured-output modes accept it.
func (f Field) JSONSchema() map[string]any {
	out := map[string]any{"type": f.Kind.String()}
	if f.Description != "" {
		out["description"] = f.Description
	}

	switch f.Kind {
	case KindObject:
		props := make(map[string]any, len(f.Fields))
		for _, child := range f.Fields {
			props[child.Name] = child.JSONSchema()
		}
		out["properties"] = props
		out["required"] = f.RequiredNames()
		out["additionalProperties"] = false
	case KindStringList:
		out["items"] = map[string]any{"type": "string"}
	case KindString:
		if len(f.Enum) > 0 {
			out["enum"] = clone(f.Enum)
		}
	}
	return out
}
