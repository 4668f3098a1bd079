// Package extract turns source documents (PDF files, HTML pages) into
// plain text. PDF pages are read programmatically; pages that yield
// almost no text fall back to a pluggable OCR engine when one is
// configured.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/topicast/topicast/pkg/topicast/internalerr"
	"github.com/topicast/topicast/pkg/topicast/ocr"
)

// Page extraction methods.
const (
	MethodText = "text"
	MethodOCR  = "ocr"
	MethodHTML = "html"
)

// DefaultMinCharsForOCR is the page text length below which the OCR
// fallback kicks in.
const DefaultMinCharsForOCR = 50

// Page holds the text of one page.
type Page struct {
	Number int
	Text   string
	Method string
}

// Result is the outcome of extracting one document. Extraction
// failures below the file-missing level are reported here, not as
// errors: Success is false and Error carries the cause.
type Result struct {
	Success   bool
	Path      string
	Pages     []Page
	FullText  string
	PageCount int
	FileSize  int64
	Error     string
}

// Options configures an Extractor.
type Options struct {
	// MinCharsForOCR is the stripped page length below which OCR runs.
	// Zero means DefaultMinCharsForOCR.
	MinCharsForOCR int

	// Engine handles pages with too little programmatic text. Nil
	// disables the fallback.
	Engine ocr.Engine

	// Logger for per-page warnings. Nil means no logging.
	Logger *zap.Logger
}

// Extractor reads PDFs into Results.
type Extractor struct {
	minChars int
	engine   ocr.Engine
	log      *zap.Logger
	conf     *model.Configuration
}

// New creates an Extractor. PDF validation runs in relaxed mode so
// slightly malformed real-world papers still extract.
func New(opts Options) *Extractor {
	minChars := opts.MinCharsForOCR
	if minChars <= 0 {
		minChars = DefaultMinCharsForOCR
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return &Extractor{
		minChars: minChars,
		engine:   opts.Engine,
		log:      log,
		conf:     conf,
	}
}

// Extract reads the document at path, dispatching on extension. A
// missing file is the only error return; any other problem comes back
// as a Result with Success false.
func (e *Extractor) Extract(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", internalerr.ErrNotFound, path)
	}
	if err != nil {
		return failure(path, err), nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return e.extractHTML(path, info.Size())
	}

	if err := api.ValidateFile(path, e.conf); err != nil {
		return failure(path, fmt.Errorf("%w: %v", internalerr.ErrExtraction, err)), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return failure(path, err), nil
	}
	defer file.Close()

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return failure(path, fmt.Errorf("%w: %v", internalerr.ErrExtraction, err)), nil
	}

	pageCount := reader.NumPage()
	result := &Result{
		Success:   true,
		Path:      path,
		PageCount: pageCount,
		FileSize:  info.Size(),
	}

	var fullText strings.Builder
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return failure(path, err), nil
		}

		text := e.pageText(reader, i)
		method := MethodText

		if len(strings.TrimSpace(text)) < e.minChars && e.engine != nil {
			ocrText, err := e.ocrPage(ctx, path, i)
			switch {
			case err != nil:
				e.log.Warn("ocr fallback failed, keeping programmatic text",
					zap.String("path", path), zap.Int("page", i), zap.Error(err))
			case ocrText != "":
				text = ocrText
				method = MethodOCR
			}
		}

		result.Pages = append(result.Pages, Page{Number: i, Text: text, Method: method})
		fmt.Fprintf(&fullText, "\n\n--- Page %d ---\n\n%s", i, text)
	}

	result.FullText = fullText.String()
	return result, nil
}

// pageText reads one page programmatically. Errors degrade to empty
// text so the rest of the document still extracts.
func (e *Extractor) pageText(reader *pdf.Reader, num int) string {
	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		e.log.Warn("page text extraction failed", zap.Int("page", num), zap.Error(err))
		return ""
	}
	return text
}

// ocrPage exports the page's embedded images and feeds the largest one
// to the OCR engine. Scanned papers carry the whole page as a single
// image, which is exactly the case the fallback exists for.
func (e *Extractor) ocrPage(ctx context.Context, path string, num int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "topicast-ocr-*")
	if err != nil {
		return "", fmt.Errorf("ocr temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractImagesFile(path, tmpDir, []string{strconv.Itoa(num)}, e.conf); err != nil {
		return "", fmt.Errorf("export page %d images: %w", num, err)
	}

	imgPath, err := largestFile(tmpDir)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", num, err)
	}

	data, err := os.ReadFile(imgPath)
	if err != nil {
		return "", fmt.Errorf("read page image: %w", err)
	}

	return e.engine.Recognize(ctx, data, mimeForExt(filepath.Ext(imgPath)))
}

func largestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var best string
	var bestSize int64 = -1
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best = filepath.Join(dir, entry.Name())
			bestSize = info.Size()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no embedded images")
	}
	return best, nil
}

func mimeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func failure(path string, err error) *Result {
	return &Result{Success: false, Path: path, Error: err.Error()}
}
