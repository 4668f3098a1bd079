// Package vision implements ocr.Engine on top of an OpenAI-compatible
// vision model. The page image travels as a base64 data URL in a chat
// completion request; the model's reply is the transcription.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const transcribePrompt = "Transcribe all text visible in this exam page image. " +
	"Preserve question numbering, sub-part labels and mark annotations exactly as printed. " +
	"Output plain text only, no commentary."

// Config holds vision OCR settings.
type Config struct {
	// APIKey for the OpenAI-compatible endpoint.
	APIKey string

	// BaseURL overrides the default endpoint (for self-hosted gateways).
	BaseURL string

	// Model name; defaults to gpt-4o-mini.
	Model string

	// Timeout per request in seconds; defaults to 60.
	Timeout int

	// RequestsPerSec caps the request rate; defaults to 1.
	RequestsPerSec float64
}

// Client is a rate-limited vision OCR engine.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

// New creates a vision OCR client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vision ocr: API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Recognize sends the image to the vision model and returns the
// transcribed text.
func (c *Client) Recognize(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("vision ocr: empty image")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("vision ocr: rate limit wait: %w", err)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: transcribePrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		Temperature: 0,
	}

	resp, err := c.client.CreateChatCompletion(ctxWithTimeout, req)
	if err != nil {
		return "", fmt.Errorf("vision ocr: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision ocr: empty response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
