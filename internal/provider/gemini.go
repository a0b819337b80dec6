package provider

import (
	"context"
	"fmt"
	"strings"

	"focusdojo/internal/puzzle"

	"google.golang.org/genai"
)

const (
	DefaultImageModel   = "imagen-4.0-generate-001"
	DefaultVariantModel = "gemini-2.5-flash-image"
	DefaultTextModel    = "gemini-2.5-flash"
)

type GeminiConfig struct {
	APIKey       string
	ImageModel   string
	VariantModel string
	TextModel    string
	// BaseURL overrides the API endpoint; used by tests.
	BaseURL string
}

// Gemini generates puzzle content with the Gemini API: Imagen for the
// reference picture, an image-capable Gemini model for the edited variant
// and a text model for the list of differences.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if cfg.VariantModel == "" {
		cfg.VariantModel = DefaultVariantModel
	}
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

func (g *Gemini) GenerateImage(ctx context.Context, prompt string, aspectRatio string) (puzzle.Image, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.cfg.ImageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    aspectRatio,
	})
	if err != nil {
		return puzzle.Image{}, fmt.Errorf("gemini generate image failed: %w", err)
	}
	for _, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		return puzzle.Image{Data: gi.Image.ImageBytes, MIMEType: mimeOrPNG(gi.Image.MIMEType)}, nil
	}
	return puzzle.Image{}, nil
}

// GenerateImageVariant returns an empty image when the model answers
// without an image part.
func (g *Gemini) GenerateImageVariant(ctx context.Context, base puzzle.Image, instruction string) (puzzle.Image, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(base.Data, mimeOrPNG(base.MIMEType)),
			genai.NewPartFromText(instruction),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.VariantModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return puzzle.Image{}, fmt.Errorf("gemini generate variant failed: %w", err)
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return puzzle.Image{Data: part.InlineData.Data, MIMEType: mimeOrPNG(part.InlineData.MIMEType)}, nil
		}
	}
	return puzzle.Image{}, nil
}

func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.TextModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate text failed: %w", err)
	}
	return resp.Text(), nil
}

func (g *Gemini) Name() string {
	return fmt.Sprintf("gemini:%s", g.cfg.ImageModel)
}

func mimeOrPNG(mime string) string {
	if strings.TrimSpace(mime) == "" {
		return "image/png"
	}
	return mime
}
