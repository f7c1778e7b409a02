package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"star-art-studio/internal/blueprint"
)

const (
	BatchSize       = 4
	OutputMIMEType  = "image/jpeg"
	directive       = `Translate the following scene description into a structured JSON object that conforms to the provided schema. Act as a professional concept art director. Identify key subjects or objects from the description and list them in the 'subjects' array. The finalPrompt should be a rich, single-sentence description for an image generator that incorporates all elements.`
	defaultImageExt = ".jpg"
)

// TextModel returns a text payload constrained to the given schema.
type TextModel interface {
	GenerateJSON(ctx context.Context, prompt string, schema blueprint.Field) (string, error)
}

type ImageConfig struct {
	Count       int
	MIMEType    string
	AspectRatio string
}

type ImageModel interface {
	GenerateImages(ctx context.Context, prompt string, cfg ImageConfig) ([]Image, error)
}

// Image is one generated variation, self-contained and ready for display.
type Image struct {
	MIMEType string
	Data     []byte
}

func (img Image) DataURL() string {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = OutputMIMEType
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(img.Data))
}

func (img Image) Extension() string {
	switch img.MIMEType {
	case "", "image/jpeg":
		return defaultImageExt
	}
	if exts, _ := mime.ExtensionsByType(img.MIMEType); len(exts) > 0 {
		return exts[0]
	}
	return defaultImageExt
}

// BuildInstruction assembles the text-model prompt: the fixed directive, the
// description verbatim, then one constraint line per overridden option.
func BuildInstruction(description string, opts Options) string {
	var b strings.Builder
	b.WriteString(directive)
	b.WriteString("\n\nScene: \"")
	b.WriteString(description)
	b.WriteString("\"")
	for _, c := range opts.Constraints() {
		b.WriteString("\n")
		b.WriteString(c.String())
	}
	return b.String()
}

type BlueprintOptions struct {
	Model  TextModel
	Logger *slog.Logger
}

type BlueprintGenerator struct {
	model  TextModel
	logger *slog.Logger
}

func NewBlueprintGenerator(opts BlueprintOptions) *BlueprintGenerator {
	return &BlueprintGenerator{
		model:  opts.Model,
		logger: loggerOrDiscard(opts.Logger),
	}
}

// GenerateBlueprint makes exactly one text-model call. Every failure comes
// back as a StageError of kind ErrBlueprintFailed or ErrBlueprintInvalid.
func (g *BlueprintGenerator) GenerateBlueprint(ctx context.Context, description string, opts Options) (blueprint.Blueprint, error) {
	if strings.TrimSpace(description) == "" {
		return blueprint.Blueprint{}, g.fail(ErrBlueprintFailed, errors.New("description is empty"))
	}
	if err := opts.Validate(); err != nil {
		return blueprint.Blueprint{}, g.fail(ErrBlueprintFailed, err)
	}
	if g.model == nil {
		return blueprint.Blueprint{}, g.fail(ErrBlueprintFailed, errors.New("text model is nil"))
	}

	text, err := g.model.GenerateJSON(ctx, BuildInstruction(description, opts), blueprint.Schema)
	if err != nil {
		return blueprint.Blueprint{}, g.fail(ErrBlueprintFailed, err)
	}

	bp, err := blueprint.Parse(text)
	if err != nil {
		return blueprint.Blueprint{}, g.fail(ErrBlueprintFailed, err)
	}
	if err := bp.Validate(); err != nil {
		return blueprint.Blueprint{}, g.fail(ErrBlueprintInvalid, err)
	}
	return bp, nil
}

func (g *BlueprintGenerator) fail(kind, cause error) error {
	g.logger.Error("blueprint generation failed", "stage", "blueprint", "err", cause)
	return stageError(kind, cause)
}

type ImageOptions struct {
	Model  ImageModel
	Logger *slog.Logger
}

type ImageGenerator struct {
	model  ImageModel
	logger *slog.Logger
}

func NewImageGenerator(opts ImageOptions) *ImageGenerator {
	return &ImageGenerator{
		model:  opts.Model,
		logger: loggerOrDiscard(opts.Logger),
	}
}

// GenerateImages makes exactly one image-model call for a batch of
// BatchSize JPEGs. An empty batch is a failure, never an empty success.
func (g *ImageGenerator) GenerateImages(ctx context.Context, prompt string, ratio blueprint.AspectRatio) ([]Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, g.fail(errors.New("prompt is empty"))
	}
	if !ratio.Valid() {
		return nil, g.fail(fmt.Errorf("aspect ratio %q is not supported", ratio))
	}
	if g.model == nil {
		return nil, g.fail(errors.New("image model is nil"))
	}

	images, err := g.model.GenerateImages(ctx, prompt, ImageConfig{
		Count:       BatchSize,
		MIMEType:    OutputMIMEType,
		AspectRatio: string(ratio),
	})
	if err != nil {
		return nil, g.fail(err)
	}

	out := make([]Image, 0, len(images))
	for _, img := range images {
		if len(img.Data) == 0 {
			continue
		}
		if img.MIMEType == "" {
			img.MIMEType = OutputMIMEType
		}
		out = append(out, img)
		if len(out) == BatchSize {
			break
		}
	}
	if len(out) == 0 {
		return nil, g.fail(errors.New("model returned no images"))
	}
	return out, nil
}

func (g *ImageGenerator) fail(cause error) error {
	g.logger.Error("image generation failed", "stage", "images", "err", cause)
	return stageError(ErrImagesFailed, cause)
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}
