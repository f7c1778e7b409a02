package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"star-art-studio/internal/config"
	"star-art-studio/internal/gemini"
	"star-art-studio/internal/generator"
	"star-art-studio/internal/httpclient"
	"star-art-studio/internal/openai"
	"star-art-studio/internal/studio"
)

// Services is the wiring shared by the web server, the bot and the CLI.
type Services struct {
	HTTPClient *http.Client
	Blueprints *generator.BlueprintGenerator
	Images     *generator.ImageGenerator
	Logger     *slog.Logger
	RunTimeout time.Duration
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Services, error) {
	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	gem, err := gemini.New(ctx, gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		TextModel:  cfg.TextModel,
		ImageModel: cfg.ImageModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	var text generator.TextModel = gem
	textModel := gem.TextModel()
	if cfg.BlueprintProvider == config.ProviderOpenAI {
		oa, err := openai.New(openai.Options{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		text = oa
		textModel = oa.Model()
	}

	logger.Info("generators ready",
		"blueprint_provider", cfg.BlueprintProvider,
		"text_model", textModel,
		"image_model", gem.ImageModel(),
	)

	return &Services{
		HTTPClient: httpClient,
		Blueprints: generator.NewBlueprintGenerator(generator.BlueprintOptions{Model: text, Logger: logger}),
		Images:     generator.NewImageGenerator(generator.ImageOptions{Model: gem, Logger: logger}),
		Logger:     logger,
		RunTimeout: cfg.RequestTimeout,
	}, nil
}

// NewStudio builds a fresh orchestrator over the shared generators.
func (s *Services) NewStudio() *studio.Orchestrator {
	return studio.New(studio.Options{
		Blueprints: s.Blueprints,
		Images:     s.Images,
		Logger:     s.Logger,
		RunTimeout: s.RunTimeout,
	})
}
