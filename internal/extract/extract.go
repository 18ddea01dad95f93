// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hl-compare/hl-compare/internal/config"
	"github.com/hl-compare/hl-compare/internal/model"
)

// ErrUnsupported is returned for file types no extractor handles.
var ErrUnsupported = eris.New("extract: unsupported file type")

// Document is the extracted text of one file.
type Document struct {
	Filename    string   `json:"filename"`
	Path        string   `json:"-"`
	Size        int64    `json:"size"`
	DownloadURL string   `json:"download_url,omitempty"`
	Paged       bool     `json:"paged"`
	Pages       []string `json:"-"`
	Err         string   `json:"error,omitempty"`
}

// Text returns all pages joined by newlines.
func (d *Document) Text() string {
	return strings.Join(d.Pages, "\n")
}

// Characters counts the runes of all pages.
func (d *Document) Characters() int {
	n := 0
	for _, p := range d.Pages {
		n += len([]rune(p))
	}
	return n
}

// AllowedExtensions returns the extensions the router accepts.
func AllowedExtensions() []string {
	return model.AllowedExtensions()
}

// Extractor extracts text from a file on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

// PageExtractor returns the text of each PDF page.
type PageExtractor interface {
	ExtractPages(ctx context.Context, pdfPath string) ([]string, error)
}

// Router dispatches on file extension.
type Router struct {
	pdf PageExtractor
}

// New creates a Router based on config.
func New(cfg config.ExtractConfig) (*Router, error) {
	switch cfg.PDFProvider {
	case "native", "":
		return &Router{pdf: NewNativePDF()}, nil
	case "pdftotext":
		return &Router{pdf: NewPdfToText(cfg.PdfToTextPath)}, nil
	default:
		return nil, eris.Errorf("extract: unknown pdf provider %q", cfg.PDFProvider)
	}
}

// NewRouter creates a Router with an explicit PDF extractor.
func NewRouter(pdf PageExtractor) *Router {
	return &Router{pdf: pdf}
}

// Extract reads path and returns its text.
func (r *Router) Extract(ctx context.Context, path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: stat %s", path)
	}
	doc := &Document{
		Filename: filepath.Base(path),
		Path:     path,
		Size:     info.Size(),
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		doc.Pages, err = r.pdf.ExtractPages(ctx, path)
		doc.Paged = true
	case ".txt", ".md":
		doc.Pages, err = readText(path)
	case ".csv":
		doc.Pages, err = readDelimited(ctx, path, ',')
	case ".tsv":
		doc.Pages, err = readDelimited(ctx, path, '\t')
	case ".xlsx":
		doc.Pages, err = readWorkbook(path)
	default:
		return nil, eris.Wrapf(ErrUnsupported, "extract: %s", ext)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// File is one stored upload awaiting extraction.
type File struct {
	Name        string
	Path        string
	Size        int64
	DownloadURL string
}

// ExtractAll extracts every file with at most limit concurrent extractions. A file
// that fails is logged and yields a document with no text, so one bad upload
// never aborts the batch. Results keep the input order.
func ExtractAll(ctx context.Context, ex Extractor, files []File, limit int) []*Document {
	docs := make([]*Document, len(files))
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, f := range files {
		g.Go(func() error {
			doc, err := ex.Extract(gctx, f.Path)
			if err != nil {
				zap.L().Warn("extract: file failed, continuing with empty text",
					zap.String("file", f.Name),
					zap.Error(err),
				)
				doc = &Document{Err: err.Error()}
			}
			doc.Filename = f.Name
			doc.Path = f.Path
			doc.DownloadURL = f.DownloadURL
			if f.Size > 0 {
				doc.Size = f.Size
			}
			docs[i] = doc
			return nil
		})
	}
	_ = g.Wait()
	return docs
}

// Summaries describes each document for the response envelope.
func Summaries(docs []*Document) []model.DocumentSummary {
	out := make([]model.DocumentSummary, len(docs))
	for i, d := range docs {
		out[i] = model.DocumentSummary{
			Filename:    d.Filename,
			Size:        d.Size,
			Pages:       len(d.Pages),
			Characters:  d.Characters(),
			DownloadURL: d.DownloadURL,
		}
	}
	return out
}
