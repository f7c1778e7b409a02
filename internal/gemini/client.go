package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"star-art-studio/internal/blueprint"
	"star-art-studio/internal/generator"
)

const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "imagen-4.0-generate-001"
)

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	TextModel  string
	ImageModel string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client serves both generation stages from the Gemini API: structured text
// for blueprints and Imagen for the image batch.
type Client struct {
	genai      *genai.Client
	textModel  string
	imageModel string
	logger     *slog.Logger
}

func New(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		cfg.HTTPOptions.BaseURL = strings.TrimRight(baseURL, "/") + "/"
	}
	if apiVersion := strings.TrimSpace(opts.APIVersion); apiVersion != "" {
		cfg.HTTPOptions.APIVersion = apiVersion
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		genai:      client,
		textModel:  firstNonEmpty(opts.TextModel, DefaultTextModel),
		imageModel: firstNonEmpty(opts.ImageModel, DefaultImageModel),
		logger:     logger,
	}, nil
}

func (c *Client) TextModel() string  { return c.textModel }
func (c *Client) ImageModel() string { return c.imageModel }

func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema blueprint.Field) (string, error) {
	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.textModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toSchema(schema),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	c.logger.Debug("gemini text response", "model", c.textModel, "bytes", len(text), "dur_ms", time.Since(start).Milliseconds())
	if text == "" {
		return "", errors.New("gemini returned no text")
	}
	return text, nil
}

func (c *Client) GenerateImages(ctx context.Context, prompt string, cfg generator.ImageConfig) ([]generator.Image, error) {
	start := time.Now()
	resp, err := c.genai.Models.GenerateImages(ctx, c.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(cfg.Count),
		OutputMIMEType: cfg.MIMEType,
		AspectRatio:    cfg.AspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("generate images: %w", err)
	}

	images := make([]generator.Image, 0, len(resp.GeneratedImages))
	for _, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		images = append(images, generator.Image{
			MIMEType: firstNonEmpty(gi.Image.MIMEType, cfg.MIMEType),
			Data:     gi.Image.ImageBytes,
		})
	}

	c.logger.Debug("gemini image response", "model", c.imageModel, "images", len(images), "dur_ms", time.Since(start).Milliseconds())
	return images, nil
}

func toSchema(f blueprint.Field) *genai.Schema {
	out := &genai.Schema{Description: f.Description}

	switch f.Kind {
	case blueprint.KindObject:
		out.Type = genai.TypeObject
		out.Properties = make(map[string]*genai.Schema, len(f.Fields))
		for _, child := range f.Fields {
			out.Properties[child.Name] = toSchema(child)
			out.PropertyOrdering = append(out.PropertyOrdering, child.Name)
		}
		out.Required = f.RequiredNames()
	case blueprint.KindStringList:
		out.Type = genai.TypeArray
		out.Items = &genai.Schema{Type: genai.TypeString}
	default:
		out.Type = genai.TypeString
		if len(f.Enum) > 0 {
			out.Enum = append([]string(nil), f.Enum...)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
