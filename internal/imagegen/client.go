// Package imagegen generates images with a Gemini image model.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"luxemap/estates/internal/config"
)

// ErrNoImage means the model answered without an inline image part.
var ErrNoImage = errors.New("imagegen: response contained no image")

// Image is a generated picture.
type Image struct {
	MimeType string
	Data     []byte
}

// IGenerator turns a text prompt into an image.
type IGenerator interface {
	Generate(ctx context.Context, prompt string) (*Image, error)
}

// Client generates images through the Gemini API.
type Client struct {
	models *genai.Models
	model  string
}

// NewClient builds a Gemini API client from cfg. IMAGE_GEN_URL, when set,
// replaces the default endpoint.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.ImageGenAPIKey == "" {
		return nil, errors.New("imagegen: api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.ImageGenAPIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: 90 * time.Second},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.ImageGenURL},
	})
	if err != nil {
		return nil, fmt.Errorf("imagegen: create client: %w", err)
	}
	return &Client{models: client.Models, model: cfg.ImageGenModel}, nil
}

// Generate returns the first inline image of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (*Image, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("imagegen: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrNoImage
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return &Image{MimeType: mime, Data: part.InlineData.Data}, nil
	}
	return nil, ErrNoImage
}
