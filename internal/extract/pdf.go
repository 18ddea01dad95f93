package extract

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// NativePDF extracts PDF text in-process.
type NativePDF struct{}

// NewNativePDF creates a NativePDF extractor.
func NewNativePDF() *NativePDF { return &NativePDF{} }

// ExtractPages returns one entry per page. Pages without extractable text
// (scans, images) are kept as empty strings so page numbers stay aligned.
func (n *NativePDF) ExtractPages(ctx context.Context, pdfPath string) ([]string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read pdf %s", pdfPath)
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrapf(err, "extract: open pdf %s", pdfPath)
	}

	pages := make([]string, r.NumPage())
	for i := 1; i <= len(pages); i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "extract: context cancelled")
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			zap.L().Debug("extract: page text failed",
				zap.String("file", pdfPath),
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		pages[i-1] = strings.TrimSpace(text)
	}
	return pages, nil
}

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractPages runs pdftotext -layout and splits its output on form feeds,
// which pdftotext emits between pages.
func (p *PdfToText) ExtractPages(ctx context.Context, pdfPath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "extract: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return splitPages(stdout.String()), nil
}

func splitPages(out string) []string {
	out = strings.TrimSuffix(out, "\f")
	if out == "" {
		return nil
	}
	pages := strings.Split(out, "\f")
	for i := range pages {
		pages[i] = strings.TrimSpace(pages[i])
	}
	return pages
}
