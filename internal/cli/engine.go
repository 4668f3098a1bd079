package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/topicast/topicast/pkg/logger"
	"github.com/topicast/topicast/pkg/topicast"
	"github.com/topicast/topicast/pkg/topicast/curriculum"
	"github.com/topicast/topicast/pkg/topicast/ocr"
	"github.com/topicast/topicast/pkg/topicast/ocr/vision"
	"github.com/topicast/topicast/pkg/topicast/pipeline"
	"github.com/topicast/topicast/pkg/topicast/store/sqlite"
)

// newEngine assembles a Topicast instance from the loaded config.
// Callers own the returned engine and must Close it.
func newEngine(ctx context.Context, hooks pipeline.Hooks) (*topicast.Topicast, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	st, err := sqlite.Open(ctx, cfg.Database.Path, logger.Log)
	if err != nil {
		return nil, err
	}

	cur := curriculum.Default()
	if cfg.Curriculum.Path != "" {
		cur, err = curriculum.Load(cfg.Curriculum.Path)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	var engine ocr.Engine
	if cfg.OCR.Enabled {
		client, err := vision.New(vision.Config{
			APIKey:         cfg.OCR.APIKey,
			BaseURL:        cfg.OCR.BaseURL,
			Model:          cfg.OCR.Model,
			Timeout:        cfg.OCR.TimeoutSec,
			RequestsPerSec: cfg.OCR.RequestsPerSec,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		engine = client
	}

	eng, err := topicast.New(topicast.Options{
		Store:            st,
		Curriculum:       cur,
		OCR:              engine,
		Workers:          cfg.Pipeline.Workers,
		Limit:            cfg.Pipeline.Limit,
		DefaultYear:      cfg.Pipeline.DefaultYear,
		MaxQuestionChars: cfg.Pipeline.MaxQuestionChars,
		MinCharsForOCR:   cfg.Pipeline.MinCharsForOCR,
		CacheTTL:         time.Duration(cfg.Pipeline.CacheTTLSec) * time.Second,
		Logger:           logger.Log,
		Hooks:            hooks,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	return eng, nil
}
