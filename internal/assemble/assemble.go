// Package assemble turns the frames of a capture run into a single PDF,
// optionally with a text layer produced by an OCR engine.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/kodiwosan/pdf-converter/internal/frames"
)

var (
	// ErrNoFrames is returned when there is nothing to assemble.
	ErrNoFrames = errors.New("no frames to assemble")

	// ErrLanguageUnavailable is reported when the OCR language is not installed.
	ErrLanguageUnavailable = errors.New("OCR language not installed")
)

// Document is a single-page PDF produced for one frame.
type Document struct {
	Path string
}

// Engine recognizes text in page images.
type Engine interface {
	Name() string
	Languages(ctx context.Context) ([]string, error)
	Recognize(ctx context.Context, frame, lang string) (Document, error)
}

// PDF is the set of PDF file operations the pipeline needs.
type PDF interface {
	MergeImages(ctx context.Context, images []string, out string) error
	MergeDocuments(ctx context.Context, docs []string, out string) error
	PageCount(path string) (int, error)
	ExtractText(path string, page int) (string, error)
}

// PageFailurePolicy decides what happens to a frame the engine could not read.
type PageFailurePolicy string

const (
	// PageFailureImage keeps the page as a plain image so page numbers line up.
	PageFailureImage PageFailurePolicy = "image"
	// PageFailureSkip leaves the page out of the output.
	PageFailureSkip PageFailurePolicy = "skip"
)

// Options controls one assembly.
type Options struct {
	OCR           bool
	Language      string
	Output        string
	OnPageFailure PageFailurePolicy // PageFailureImage when empty
	Workers       int               // Concurrent recognitions; NumCPU when zero
}

// Status is the outcome of OCR for one frame.
type Status string

const (
	StatusRecognized Status = "recognized"
	StatusSkipped    Status = "skipped"
)

// PageResult records what happened to one frame.
type PageResult struct {
	Frame    int    `json:"frame" yaml:"frame"`
	Status   Status `json:"status" yaml:"status"`
	Document string `json:"document,omitempty" yaml:"document,omitempty"`
	Reason   string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Chars    int    `json:"chars" yaml:"chars"`
	Included bool   `json:"included" yaml:"included"`
}

// Result describes the written PDF.
type Result struct {
	Path        string       `json:"path" yaml:"path"`
	Pages       int          `json:"pages" yaml:"pages"`
	Searchable  bool         `json:"searchable" yaml:"searchable"`
	Fallback    string       `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	PageResults []PageResult `json:"page_results,omitempty" yaml:"page_results,omitempty"`
	TotalChars  int          `json:"total_chars" yaml:"total_chars"`
	Verified    bool         `json:"verified" yaml:"verified"`
}

// Pipeline assembles frames into a PDF.
type Pipeline struct {
	engine Engine
	pdf    PDF
	logger *slog.Logger
}

// NewPipeline creates a pipeline. engine may be nil, in which case OCR
// requests degrade to image-only output.
func NewPipeline(engine Engine, pdf PDF, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		engine: engine,
		pdf:    pdf,
		logger: logger.With("component", "assemble"),
	}
}

// Assemble writes frames, in index order, to opts.Output.
//
// Without OCR every frame becomes one page the size of the image. With OCR
// each frame is recognized on its own and the per-frame documents are merged
// in order. Any run-wide OCR problem (missing language, every page failing,
// merge failure) falls back to the image-only PDF; only a failure of that
// fallback, or cancellation, is returned as an error.
func (p *Pipeline) Assemble(ctx context.Context, in []frames.Frame, opts Options) (*Result, error) {
	if len(in) == 0 {
		return nil, ErrNoFrames
	}
	if opts.Output == "" {
		return nil, errors.New("no output path")
	}
	if opts.OnPageFailure == "" {
		opts.OnPageFailure = PageFailureImage
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	ordered := slices.Clone(in)
	slices.SortFunc(ordered, func(a, b frames.Frame) int { return a.Index - b.Index })

	if !opts.OCR {
		return p.imageOnly(ctx, ordered, opts.Output, "")
	}
	if p.engine == nil {
		p.logger.Warn("OCR requested but no engine is available, writing image-only PDF")
		return p.imageOnly(ctx, ordered, opts.Output, "ocr engine unavailable")
	}

	if err := p.checkLanguage(ctx, opts.Language); err != nil {
		return p.imageOnly(ctx, ordered, opts.Output, err.Error())
	}

	res, err := p.searchable(ctx, ordered, opts)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	p.logger.Warn("OCR assembly failed, writing image-only PDF", "error", err)
	fallback, ferr := p.imageOnly(ctx, ordered, opts.Output, err.Error())
	if ferr != nil {
		return nil, ferr
	}
	if res != nil {
		fallback.PageResults = res.PageResults
	}
	return fallback, nil
}

// checkLanguage returns ErrLanguageUnavailable when lang is known to be
// missing. A failure to list languages is not fatal.
func (p *Pipeline) checkLanguage(ctx context.Context, lang string) error {
	langs, err := p.engine.Languages(ctx)
	if err != nil {
		p.logger.Warn("could not list OCR languages, continuing", "engine", p.engine.Name(), "error", err)
		return nil
	}
	if !slices.Contains(langs, lang) {
		p.logger.Warn("OCR language is not installed, writing image-only PDF",
			"language", lang, "available", strings.Join(langs, ","))
		return fmt.Errorf("%w: %q", ErrLanguageUnavailable, lang)
	}
	return nil
}

func (p *Pipeline) imageOnly(ctx context.Context, ordered []frames.Frame, out, reason string) (*Result, error) {
	paths := make([]string, len(ordered))
	for i, f := range ordered {
		paths[i] = f.Path
	}
	if err := p.pdf.MergeImages(ctx, paths, out); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}

	res := &Result{Path: out, Pages: len(paths), Fallback: reason}
	if n, err := p.pdf.PageCount(out); err != nil {
		p.logger.Warn("could not verify output PDF", "path", out, "error", err)
	} else {
		res.Pages = n
		res.Verified = true
	}
	p.logger.Info("PDF saved", "path", out, "pages", res.Pages)
	return res, nil
}

// searchable runs OCR on every frame and merges the results. On error the
// partial result still carries the per-page outcomes.
func (p *Pipeline) searchable(ctx context.Context, ordered []frames.Frame, opts Options) (*Result, error) {
	p.logger.Info("performing OCR", "language", opts.Language, "pages", len(ordered), "workers", opts.Workers)

	pages := make([]PageResult, len(ordered))
	docs := make([]string, len(ordered))

	g := new(errgroup.Group)
	g.SetLimit(opts.Workers)
	for i, f := range ordered {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pages[i], docs[i] = p.recognize(ctx, f, opts.Language, len(ordered))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Path: opts.Output, PageResults: pages}

	recognized := 0
	for _, pr := range pages {
		if pr.Status == StatusRecognized {
			recognized++
		}
	}
	if recognized == 0 {
		return res, errors.New("no page could be recognized")
	}

	var merge []string
	for i, f := range ordered {
		pr := &res.PageResults[i]
		if pr.Status == StatusRecognized {
			merge = append(merge, docs[i])
			pr.Included = true
			continue
		}
		if opts.OnPageFailure == PageFailureSkip {
			continue
		}
		doc := strings.TrimSuffix(f.Path, filepath.Ext(f.Path)) + ".image.pdf"
		if err := p.pdf.MergeImages(ctx, []string{f.Path}, doc); err != nil {
			p.logger.Warn("could not keep unreadable page as image, dropping it", "frame", f.Index, "error", err)
			continue
		}
		merge = append(merge, doc)
		pr.Included = true
	}

	if err := p.pdf.MergeDocuments(ctx, merge, opts.Output); err != nil {
		return res, err
	}
	res.Searchable = true
	res.Pages = len(merge)
	p.logger.Info("searchable PDF saved", "path", opts.Output, "pages", len(merge), "recognized", recognized)

	p.verify(res)
	return res, nil
}

// recognize runs the engine on one frame and counts the characters it produced.
func (p *Pipeline) recognize(ctx context.Context, f frames.Frame, lang string, total int) (PageResult, string) {
	name := filepath.Base(f.Path)
	doc, err := p.engine.Recognize(ctx, f.Path, lang)
	if err != nil {
		p.logger.Warn("OCR failed for page", "frame", name, "error", err)
		return PageResult{Frame: f.Index, Status: StatusSkipped, Reason: err.Error()}, ""
	}

	pr := PageResult{Frame: f.Index, Status: StatusRecognized, Document: doc.Path}
	if text, err := p.pdf.ExtractText(doc.Path, 1); err != nil {
		p.logger.Warn("could not verify PDF text", "frame", name, "error", err)
	} else {
		pr.Chars = utf8.RuneCountInString(text)
	}
	p.logger.Info("OCR processing", "page", f.Index, "of", total, "frame", name, "chars", pr.Chars)
	return pr, doc.Path
}

// verify re-reads the merged PDF. Problems are logged, never returned.
func (p *Pipeline) verify(res *Result) {
	n, err := p.pdf.PageCount(res.Path)
	if err != nil {
		p.logger.Warn("could not verify final PDF", "path", res.Path, "error", err)
		return
	}
	if n != res.Pages {
		p.logger.Warn("final PDF page count differs", "expected", res.Pages, "actual", n)
	}

	total := 0
	for page := 1; page <= n; page++ {
		text, err := p.pdf.ExtractText(res.Path, page)
		if err != nil {
			p.logger.Warn("could not verify final PDF", "page", page, "error", err)
			return
		}
		total += utf8.RuneCountInString(text)
	}
	res.Pages = n
	res.TotalChars = total
	res.Verified = true
	p.logger.Info("final PDF verification", "pages", n, "total_chars", total)
}
