package blueprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrEmptyPayload = errors.New("blueprint payload is empty")

// Parse decodes the text model's payload. A surrounding markdown code fence is
// tolerated; unknown fields and trailing data are not.
func Parse(text string) (Blueprint, error) {
	text = stripCodeFence(strings.TrimSpace(text))
	if text == "" {
		return Blueprint{}, ErrEmptyPayload
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()

	var bp Blueprint
	if err := dec.Decode(&bp); err != nil {
		return Blueprint{}, fmt.Errorf("decode blueprint: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Blueprint{}, errors.New("decode blueprint: unexpected data after the JSON object")
	}
	return bp, nil
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	} else {
		text = ""
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// ValidationError lists every data-model violation found in a blueprint.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid blueprint: " + strings.Join(e.Problems, "; ")
}

// Validate checks the blueprint against the data-model invariants: every
// enumerated field inside its closed set and a non-empty finalPrompt. Free-text
// scene fields and list fields may be empty.
func (b Blueprint) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !b.Scene.TimeOfDay.Valid() {
		add("scene.timeOfDay %q is not allowed", b.Scene.TimeOfDay)
	}
	if !b.Scene.Weather.Valid() {
		add("scene.weather %q is not allowed", b.Scene.Weather)
	}
	if !b.Camera.Angle.Valid() {
		add("camera.angle %q is not allowed", b.Camera.Angle)
	}
	if !b.Camera.FOV.Valid() {
		add("camera.fov %q is not allowed", b.Camera.FOV)
	}
	if !b.Style.ArtisticStyle.Valid() {
		add("style.artisticStyle %q is not allowed", b.Style.ArtisticStyle)
	}
	if !b.Style.Lighting.Valid() {
		add("style.lighting %q is not allowed", b.Style.Lighting)
	}
	if !b.Style.Palette.Valid() {
		add("style.palette %q is not allowed", b.Style.Palette)
	}
	if !b.Rendering.AspectRatio.Valid() {
		add("rendering.aspectRatio %q is not allowed", b.Rendering.AspectRatio)
	}
	if strings.TrimSpace(b.FinalPrompt) == "" {
		add("finalPrompt is empty")
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
