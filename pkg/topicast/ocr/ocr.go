// Package ocr defines the engine interface the extractor falls back to
// when a page carries too little programmatic text. Implementations
// live in subpackages.
package ocr

import (
	"context"
	"fmt"

	"github.com/topicast/topicast/pkg/topicast/internalerr"
)

// Engine recognizes text in a page image.
type Engine interface {
	// Recognize returns the text found in image. mimeType describes the
	// image encoding ("image/png", "image/jpeg", ...).
	Recognize(ctx context.Context, image []byte, mimeType string) (string, error)
}

// Disabled is the no-engine placeholder. Every call fails, which makes
// the extractor keep whatever programmatic text it already has.
type Disabled struct{}

// Recognize always fails.
func (Disabled) Recognize(ctx context.Context, image []byte, mimeType string) (string, error) {
	return "", fmt.Errorf("%w: ocr engine disabled", internalerr.ErrInvalidConfig)
}
