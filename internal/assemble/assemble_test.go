package assemble

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kodiwosan/pdf-converter/internal/frames"
	"github.com/kodiwosan/pdf-converter/internal/home"
)

// fakePDF keeps "files" in memory: each path maps to the sources of its pages.
type fakePDF struct {
	mu         sync.Mutex
	files      map[string][]string
	texts      map[string]string // per-frame document path -> text
	imageCalls [][]string
	mergeCalls [][]string
	imageErr   func(images []string) error
	mergeErr   error
}

func newFakePDF() *fakePDF {
	return &fakePDF{files: map[string][]string{}, texts: map[string]string{}}
}

func (f *fakePDF) MergeImages(ctx context.Context, images []string, out string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageErr != nil {
		if err := f.imageErr(images); err != nil {
			return err
		}
	}
	f.imageCalls = append(f.imageCalls, slices.Clone(images))
	f.files[out] = slices.Clone(images)
	return nil
}

func (f *fakePDF) MergeDocuments(ctx context.Context, docs []string, out string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.mergeCalls = append(f.mergeCalls, slices.Clone(docs))
	var pages []string
	for _, d := range docs {
		if src, ok := f.files[d]; ok {
			pages = append(pages, src...)
		} else {
			pages = append(pages, d)
		}
	}
	f.files[out] = pages
	return nil
}

func (f *fakePDF) PageCount(path string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages, ok := f.files[path]
	if !ok {
		return 0, fmt.Errorf("no such file: %s", path)
	}
	return len(pages), nil
}

func (f *fakePDF) ExtractText(path string, page int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pages, ok := f.files[path]; ok {
		if page < 1 || page > len(pages) {
			return "", fmt.Errorf("page %d out of range", page)
		}
		return f.texts[pages[page-1]], nil
	}
	if page != 1 {
		return "", fmt.Errorf("page %d out of range", page)
	}
	return f.texts[path], nil
}

type fakeEngine struct {
	langs   []string
	langErr error
	fail    map[int]bool // frame index -> fail
	delay   func(frame string) time.Duration

	mu       sync.Mutex
	calls    []string
	inflight int
	peak     int
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Languages(ctx context.Context) ([]string, error) {
	return e.langs, e.langErr
}

func (e *fakeEngine) Recognize(ctx context.Context, frame, lang string) (Document, error) {
	e.mu.Lock()
	e.calls = append(e.calls, frame)
	e.inflight++
	e.peak = max(e.peak, e.inflight)
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inflight--
		e.mu.Unlock()
	}()

	if e.delay != nil {
		time.Sleep(e.delay(frame))
	}
	var n int
	fmt.Sscanf(filepath.Base(frame), "page_%d.png", &n)
	if e.fail[n] {
		return Document{}, errors.New("tesseract exited with status 1")
	}
	return Document{Path: strings.TrimSuffix(frame, ".png") + ".pdf"}, nil
}

func testFrames(dir string, n int) []frames.Frame {
	out := make([]frames.Frame, n)
	for i := range out {
		out[i] = frames.Frame{Index: i + 1, Path: filepath.Join(dir, home.FrameName(i+1))}
	}
	return out
}

// withTexts gives every per-frame document "page N" as its text layer.
func withTexts(pdf *fakePDF, fs []frames.Frame) {
	for _, f := range fs {
		pdf.texts[strings.TrimSuffix(f.Path, ".png")+".pdf"] = fmt.Sprintf("page %d", f.Index)
	}
}

func TestAssemble_ImageOnly(t *testing.T) {
	dir := t.TempDir()
	fs := testFrames(dir, 3)
	shuffled := []frames.Frame{fs[2], fs[0], fs[1]}

	pdf := newFakePDF()
	p := NewPipeline(nil, pdf, nil)
	out := filepath.Join(dir, "out.pdf")

	res, err := p.Assemble(context.Background(), shuffled, Options{Output: out})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if res.Pages != 3 || res.Searchable || res.Fallback != "" || !res.Verified {
		t.Errorf("unexpected result: %+v", res)
	}
	want := []string{fs[0].Path, fs[1].Path, fs[2].Path}
	if !reflect.DeepEqual(pdf.files[out], want) {
		t.Errorf("pages = %v, want %v", pdf.files[out], want)
	}
}

func TestAssemble_ImageOnlyIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	fs := testFrames(dir, 5)
	pdf := newFakePDF()
	p := NewPipeline(nil, pdf, nil)
	opts := Options{Output: filepath.Join(dir, "out.pdf")}

	for i := 0; i < 2; i++ {
		if _, err := p.Assemble(context.Background(), fs, opts); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}
	if len(pdf.imageCalls) != 2 || !reflect.DeepEqual(pdf.imageCalls[0], pdf.imageCalls[1]) {
		t.Errorf("runs produced different page sequences: %v", pdf.imageCalls)
	}
}

func TestAssemble_NoFrames(t *testing.T) {
	p := NewPipeline(nil, newFakePDF(), nil)
	_, err := p.Assemble(context.Background(), nil, Options{Output: "out.pdf"})
	if !errors.Is(err, ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
}

func TestAssemble_LanguageUnavailable(t *testing.T) {
	dir := t.TempDir()
	fs := testFrames(dir, 3)
	engine := &fakeEngine{langs: []string{"eng", "osd"}}
	pdf := newFakePDF()
	var logs bytes.Buffer
	p := NewPipeline(engine, pdf, slog.New(slog.NewTextHandler(&logs, nil)))
	out := filepath.Join(dir, "out.pdf")

	res, err := p.Assemble(context.Background(), fs, Options{OCR: true, Language: "jpn", Output: out})
	if err != nil {
		t.Fatalf("missing language must not fail the run: %v", err)
	}
	if res.Searchable {
		t.Error("output should be image-only")
	}
	if !strings.Contains(res.Fallback, ErrLanguageUnavailable.Error()) {
		t.Errorf("fallback reason = %q", res.Fallback)
	}
	if len(engine.calls) != 0 {
		t.Errorf("engine should not run, got %d calls", len(engine.calls))
	}
	if res.Pages != 3 {
		t.Errorf("pages = %d, want 3", res.Pages)
	}
	// The user is told why the PDF has no text layer.
	got := logs.String()
	if !strings.Contains(got, "level=WARN") || !strings.Contains(got, "OCR language is not installed") ||
		!strings.Contains(got, "language=jpn") {
		t.Errorf("missing language warning in log output:\n%s", got)
	}
}

func TestAssemble_LanguageListingFailureContinues(t *testing.T) {
	dir := t.TempDir()
	fs := testFrames(dir, 2)
	engine := &fakeEngine{langErr: errors.New("tessdata not readable")}
	pdf := newFakePDF()
	withTexts(pdf, fs)
	p := NewPipeline(engine, pdf, nil)

	res, err := p.Assemble(context.Background(), fs, Options{OCR: true, Language: "jpn", Output: filepath.Join(dir, "out.pdf")})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !res.Searchable || len(engine.calls) != 2 {
		t.Errorf("OCR should have run: searchable=%v calls=%d", res.Searchable, len(engine.calls))
	}
}

func TestAssemble_SearchablePreservesOrder(t *testing.T) {
	dir := t.TempDir()
	fs := testFrames(dir, 8)
	engine := &fakeEngine{
		langs: []string{"jpn"},
		// Earlier pages finish last.
		delay: func(frame string) time.Duration {
			var n int
			fmt.Sscanf(filepath.Base(frame), "page_%d.png", &n)
			return time.Duration(9-n) * 2 * time.Millisecond
		},
	}
	pdf := newFakePDF()
	withTexts(pdf, fs)
	p := NewPipeline(engine, pdf, nil)
	out := filepath.Join(dir, "out.pdf")

	res, err := p.Assemble(context.Background(), fs, Options{OCR: true, Language: "jpn", Output: out, Workers: 3})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !res.Searchable || res.Pages != 8 || !res.Verified {
		t.Errorf("unexpected result: %+v", res)
	}

	var wantDocs []string
	wantChars := 0
	for i, f := range fs {
		doc := strings.TrimSuffix(f.Path, ".png") + ".pdf"
		wantDocs = append(wantDocs, doc)
		wantChars += len(fmt.Sprintf("page %d", f.Index))

		pr := res.PageResults[i]
		if pr.Frame != f.Index || pr.Status != StatusRecognized || !pr.Included || pr.Document != doc {
			t.Errorf("page result %d = %+v", i, pr)
		}
		if pr.Chars != len(fmt.Sprintf("page %d", f.Index)) {
			t.Errorf("page %d chars = %d", f.Index, pr.Chars)
		}
	}
	if !reflect.DeepEqual(pdf.mergeCalls[0], wantDocs) {
		t.Errorf("merge order = %v, want %v", pdf.mergeCalls[0], wantDocs)
	}
	if res.TotalChars != wantChars {
		t.Errorf("total chars = %d, want %d", res.TotalChars, wantChars)
	}
	if engine.peak > 3 {
		t.Errorf("worker limit exceeded: %d concurrent recognitions", engine.peak)
	}
}

func TestAssemble_PageFailurePolicies(t *testing.T) {
	tests := []struct {
		name      string
		policy    PageFailurePolicy
		wantPages int
		wantDocs  func(fs []frames.Frame) []string
	}{
		{
			name:      "image keeps alignment",
			policy:    PageFailureImage,
			wantPages: 4,
			wantDocs: func(fs []frames.Frame) []string {
				return []string{
					strings.TrimSuffix(fs[0].Path, ".png") + ".pdf",
					strings.TrimSuffix(fs[1].Path, ".png") + ".image.pdf",
					strings.TrimSuffix(fs[2].Path, ".png") + ".pdf",
					strings.TrimSuffix(fs[3].Path, ".png") + ".pdf",
				}
			},
		},
		{
			name:      "default is image",
			policy:    "",
			wantPages: 4,
			wantDocs: func(fs []frames.Frame) []string {
				return []string{
					strings.TrimSuffix(fs[0].Path, ".png") + ".pdf",
					strings.TrimSuffix(fs[1].Path, ".png") + ".image.pdf",
					strings.TrimSuffix(fs[2].Path, ".png") + ".pdf",
					strings.TrimSuffix(fs[3].Path, ".png") + ".pdf",
				}
			},
		},
		{
			name:      "skip drops the page",
			policy:    PageFailureSkip,
			wantPages: 3,
			wantDocs: func(fs []frames.Frame) []string {
				return []string{
					strings.TrimSuffix(fs[0].Path, ".png") + ".pdf",
					strings.TrimSuffix(fs[2].Path, ".png") + ".pdf",
					strings.TrimSuffix(fs[3].Path, ".png") + ".pdf",
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			fs := testFrames(dir, 4)
			engine := &fakeEngine{langs: []string{"jpn"}, fail: map[int]bool{2: true}}
			pdf := newFakePDF()
			withTexts(pdf, fs)
			p := NewPipeline(engine, pdf, nil)

			res, err := p.Assemble(context.Background(), fs, Options{
				OCR: true, Language: "jpn", Output: filepath.Join(dir, "out.pdf"), OnPageFailure: tt.policy,
			})
			if err != nil {
				t.Fatalf("a single failed page must not fail the run: %v", err)
			}
			if !res.Searchable || res.Pages != tt.wantPages {
				t.Errorf("searchable=%v pages=%d, want searchable with %d pages", res.Searchable, res.Pages, tt.wantPages)
			}
			if got := pdf.mergeCalls[0]; !reflect.DeepEqual(got, tt.wantDocs(fs)) {
				t.Errorf("merged %v, want %v", got, tt.wantDocs(fs))
			}

			skipped := res.PageResults[1]
			if skipped.Status != StatusSkipped || skipped.Reason == "" {
				t.Errorf("page 2 result = %+v", skipped)
			}
			if skipped.Included != (tt.policy != PageFailureSkip) {
				t.Errorf("page 2 included = %v", skipped.Included)
			}
		})
	}
}

func TestAssemble_AllPagesFailFallsBack(t *testing.T) {
	dir := t.TempDir()
	fs := testFrames(dir, 3)
	engine := &fakeEngine{langs: []string{"jpn"}, fail: map[int]bool{1: true, 2: true, 3: true}}
	pdf := newFakePDF()
	p := NewPipeline(engine, pdf, nil)
	out := filepath.Join(dir, "out.pdf")

	res, err := p.Assemble(context.Background(), fs, Options{OCR: true, Language: "jpn", Output: out})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if res.Searchable || res.Fallback == "" {
		t.Errorf("expected image-only fallback, got %+v", res)
	}
	if !reflect.DeepEqual(pdf.files[out], []string{fs[0].Path, fs[1].Path, fs[2].Path}) {
		t.Errorf("fallback pages = %v", pdf.files[out])
	}
	if len(res.PageResults) != 3 {
		t.Errorf("per-page outcomes should be kept, got %d", len(res.PageResults))
	}
}

func TestAssemble_MergeFailureFallsBack(t *testing.T) {
	dir := t.TempDir()
	fs := testFrames(dir, 2)
	engine := &fakeEngine{langs: []string{"jpn"}}
	pdf := newFakePDF()
	pdf.mergeErr = errors.New("corrupt xref")
	p := NewPipeline(engine, pdf, nil)
	out := filepath.Join(dir, "out.pdf")

	res, err := p.Assemble(context.Background(), fs, Options{OCR: true, Language: "jpn", Output: out})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if res.Searchable || !strings.Contains(res.Fallback, "corrupt xref") {
		t.Errorf("expected fallback after merge failure, got %+v", res)
	}
	if res.Pages != 2 {
		t.Errorf("pages = %d, want 2", res.Pages)
	}
}

func TestAssemble_FallbackFailureIsAnError(t *testing.T) {
	dir := t.TempDir()
	fs := testFrames(dir, 2)
	pdf := newFakePDF()
	pdf.imageErr = func([]string) error { return errors.New("disk full") }
	p := NewPipeline(nil, pdf, nil)

	if _, err := p.Assemble(context.Background(), fs, Options{Output: filepath.Join(dir, "out.pdf")}); err == nil {
		t.Error("expected error when the image-only PDF cannot be written")
	}
}

func TestAssemble_Cancelled(t *testing.T) {
	dir := t.TempDir()
	fs := testFrames(dir, 4)
	engine := &fakeEngine{langs: []string{"jpn"}}
	p := NewPipeline(engine, newFakePDF(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Assemble(ctx, fs, Options{OCR: true, Language: "jpn", Output: filepath.Join(dir, "out.pdf")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAssemble_NoEngine(t *testing.T) {
	dir := t.TempDir()
	p := NewPipeline(nil, newFakePDF(), nil)
	res, err := p.Assemble(context.Background(), testFrames(dir, 1), Options{OCR: true, Language: "jpn", Output: filepath.Join(dir, "out.pdf")})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if res.Searchable || res.Fallback == "" {
		t.Errorf("expected image-only fallback, got %+v", res)
	}
}
