package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/h2non/filetype"
	cfg "github.com/maheshrc27/travelpost-bot/configs"
	"github.com/maheshrc27/travelpost-bot/internal/transfer"
	"golang.org/x/sync/semaphore"
)

const (
	imageTimeout        = 120 * time.Second
	imageConcurrency    = 2
	stabilityDefaultURL = "https://api.stability.ai"
)

// ImageProvider turns a prompt into image bytes.
type ImageProvider interface {
	Name() string
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

type ImageService interface {
	// GenerateImage tries each provider in order and returns the first image,
	// or nil when none produced one.
	GenerateImage(ctx context.Context, prompt string) []byte
}

type imageService struct {
	providers []ImageProvider
	sem       *semaphore.Weighted
}

// NewImageService builds the provider chain from names such as
// "openai:gpt-image-1" or "stability". Providers without credentials are skipped.
func NewImageService(c cfg.Config) ImageService {
	var providers []ImageProvider
	for _, name := range c.ImageProviders {
		kind, model, _ := strings.Cut(name, ":")
		switch kind {
		case "openai":
			if c.OpenAI.APIKey == "" {
				slog.Warn("skipping image provider without OPENAI_API_KEY", "provider", name)
				continue
			}
			if model == "" {
				model = "dall-e-3"
			}
			providers = append(providers, NewOpenAIImageProvider(c.OpenAI.BaseURL, c.OpenAI.APIKey, model))
		case "stability":
			if c.StabilityAPIKey == "" {
				slog.Warn("skipping image provider without STABILITY_API_KEY", "provider", name)
				continue
			}
			providers = append(providers, NewStabilityImageProvider(stabilityDefaultURL, c.StabilityAPIKey))
		default:
			slog.Warn("unknown image provider", "provider", name)
		}
	}
	return NewImageChain(providers...)
}

func NewImageChain(providers ...ImageProvider) ImageService {
	return &imageService{providers: providers, sem: semaphore.NewWeighted(imageConcurrency)}
}

func (s *imageService) GenerateImage(ctx context.Context, prompt string) []byte {
	if strings.TrimSpace(prompt) == "" || len(s.providers) == 0 {
		return nil
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer s.sem.Release(1)

	for _, p := range s.providers {
		image, err := p.Generate(ctx, prompt)
		if err == nil && !filetype.IsImage(image) {
			err = errors.New("response is not an image")
		}
		if err != nil {
			slog.Error("image generation failed", "provider", p.Name(), "err", err)
			continue
		}
		slog.Info("image generated", "provider", p.Name(), "bytes", len(image))
		return image
	}
	return nil
}

type openAIImageProvider struct {
	client *resty.Client
	model  string
}

func NewOpenAIImageProvider(baseURL, apiKey, model string) ImageProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetTimeout(imageTimeout)
	return &openAIImageProvider{client: client, model: model}
}

func (p *openAIImageProvider) Name() string {
	return "openai:" + p.model
}

func (p *openAIImageProvider) Generate(ctx context.Context, prompt string) ([]byte, error) {
	body := transfer.OpenAIImageRequest{Model: p.model, Prompt: prompt, Size: "1024x1024", N: 1}
	if strings.HasPrefix(p.model, "dall-e") {
		body.ResponseFormat = "b64_json"
	}

	var out transfer.OpenAIImageResponse
	resp, err := p.client.R().SetContext(ctx).SetBody(body).SetResult(&out).SetError(&out).Post("/images/generations")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		if out.Error != nil {
			return nil, fmt.Errorf("openai images %d: %s", resp.StatusCode(), out.Error.Message)
		}
		return nil, fmt.Errorf("openai images returned status %d", resp.StatusCode())
	}
	if len(out.Data) == 0 {
		return nil, errors.New("openai images returned no data")
	}

	if b64 := out.Data[0].B64JSON; b64 != "" {
		image, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		return image, nil
	}
	if url := out.Data[0].URL; url != "" {
		dl, err := p.client.R().SetContext(ctx).Get(url)
		if err != nil {
			return nil, err
		}
		if dl.IsError() {
			return nil, fmt.Errorf("image download returned status %d", dl.StatusCode())
		}
		return dl.Body(), nil
	}
	return nil, errors.New("openai images returned an empty item")
}

type stabilityImageProvider struct {
	client *resty.Client
}

func NewStabilityImageProvider(baseURL, apiKey string) ImageProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Accept", "image/*").
		SetTimeout(imageTimeout)
	return &stabilityImageProvider{client: client}
}

func (p *stabilityImageProvider) Name() string {
	return "stability"
}

func (p *stabilityImageProvider) Generate(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{
			"prompt":        prompt,
			"output_format": "jpeg",
			"aspect_ratio":  "1:1",
		}).
		Post("/v2beta/stable-image/generate/ultra")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		var apiErr transfer.StabilityErrorResponse
		if json.Unmarshal(resp.Body(), &apiErr) == nil && len(apiErr.Errors) > 0 {
			return nil, fmt.Errorf("stability %d: %s", resp.StatusCode(), strings.Join(apiErr.Errors, "; "))
		}
		return nil, fmt.Errorf("stability returned status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
