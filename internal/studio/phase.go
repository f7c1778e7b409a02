package studio

import "fmt"

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBuildingBlueprint
	PhaseBuildingImages
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBuildingBlueprint:
		return "building_blueprint"
	case PhaseBuildingImages:
		return "building_images"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (p Phase) Loading() bool {
	return p == PhaseBuildingBlueprint || p == PhaseBuildingImages
}

func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Message is the progress line shown while a stage runs.
func (p Phase) Message() string {
	switch p {
	case PhaseBuildingBlueprint:
		return "Translating your vision into a blueprint..."
	case PhaseBuildingImages:
		return "Crafting image variations... This can take a moment."
	default:
		return ""
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{PhaseIdle, PhaseBuildingBlueprint, PhaseBuildingImages, PhaseDone, PhaseFailed} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}
