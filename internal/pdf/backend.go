// Package pdf writes, merges and inspects the PDFs produced from captured
// frames. pdfcpu does the writing; text is read back with ledongthuc/pdf.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoInput is returned when a merge is requested with no input files.
var ErrNoInput = errors.New("no input files")

// Backend implements PDF operations on files.
type Backend struct {
	conf *model.Configuration
}

// NewBackend returns a backend with relaxed validation, since tesseract
// output does not always pass pdfcpu's strict mode. Output uses a classic
// xref table so the text reader can open it.
func NewBackend() *Backend {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return &Backend{conf: conf}
}

// MergeImages writes one page per image, in the given order. Each page is
// exactly the size of its image.
func (b *Backend) MergeImages(ctx context.Context, images []string, out string) error {
	if len(images) == 0 {
		return ErrNoInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prepareOutput(out); err != nil {
		return err
	}

	// ImportImagesFile appends to an existing output file.
	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImagesFile(images, out, imp, b.conf); err != nil {
		return fmt.Errorf("failed to write image PDF: %w", err)
	}
	return nil
}

// MergeDocuments concatenates PDFs in the given order into out.
func (b *Backend) MergeDocuments(ctx context.Context, docs []string, out string) error {
	if len(docs) == 0 {
		return ErrNoInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prepareOutput(out); err != nil {
		return err
	}

	if len(docs) == 1 {
		if err := copyFile(docs[0], out); err != nil {
			return fmt.Errorf("failed to write merged PDF: %w", err)
		}
		return nil
	}
	if err := api.MergeCreateFile(docs, out, false, b.conf); err != nil {
		return fmt.Errorf("failed to merge PDFs: %w", err)
	}
	return nil
}

// PageCount returns the number of pages in the PDF at path.
func (b *Backend) PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	n, err := api.PageCount(f, b.conf)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}

// ExtractText returns the plain text layer of a 1-indexed page. Image-only
// pages return an empty string.
func (b *Backend) ExtractText(path string, page int) (string, error) {
	f, r, err := lpdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	if page < 1 || page > r.NumPage() {
		return "", fmt.Errorf("page %d out of range (1-%d)", page, r.NumPage())
	}
	p := r.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", page, err)
	}
	return strings.TrimSpace(text), nil
}

func prepareOutput(out string) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace %s: %w", out, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
