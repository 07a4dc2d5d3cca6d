package pdf

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

func writePNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	if err := imaging.Save(imaging.New(w, h, c), path); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestBackend_MergeImages(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "page_0001.png")
	b := filepath.Join(dir, "page_0002.png")
	writePNG(t, a, 60, 80, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	writePNG(t, b, 60, 80, color.NRGBA{R: 10, G: 10, B: 10, A: 255})

	be := NewBackend()
	out := filepath.Join(dir, "out", "book.pdf")
	if err := be.MergeImages(context.Background(), []string{a, b}, out); err != nil {
		t.Fatalf("MergeImages failed: %v", err)
	}

	n, err := be.PageCount(out)
	if err != nil {
		t.Fatalf("PageCount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("page count = %d, want 2", n)
	}

	// Writing again replaces the file instead of appending.
	if err := be.MergeImages(context.Background(), []string{a}, out); err != nil {
		t.Fatalf("second MergeImages failed: %v", err)
	}
	if n, _ := be.PageCount(out); n != 1 {
		t.Errorf("page count after rewrite = %d, want 1", n)
	}

	text, err := be.ExtractText(out, 1)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if text != "" {
		t.Errorf("image-only page should have no text, got %q", text)
	}
	if _, err := be.ExtractText(out, 5); err == nil {
		t.Error("expected error for out-of-range page")
	}
}

// pageImages returns the raw image stream of every page of path, in order.
func pageImages(t *testing.T, path string) [][]byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	pages, err := api.ExtractImagesRaw(f, nil, nil)
	if err != nil {
		t.Fatalf("failed to extract images from %s: %v", path, err)
	}
	out := make([][]byte, len(pages))
	for i, imgs := range pages {
		if len(imgs) != 1 {
			t.Fatalf("page %d of %s has %d images, want 1", i+1, path, len(imgs))
		}
		for _, img := range imgs {
			data, err := io.ReadAll(img)
			if err != nil {
				t.Fatalf("failed to read image on page %d: %v", i+1, err)
			}
			out[i] = data
		}
	}
	return out
}

func TestBackend_MergeImagesIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	var frames []string
	for i, c := range []uint8{240, 20, 130} {
		path := filepath.Join(dir, "page_000"+string(rune('1'+i))+".png")
		writePNG(t, path, 50, 70, color.NRGBA{R: c, G: 255 - c, B: c / 2, A: 255})
		frames = append(frames, path)
	}

	be := NewBackend()
	first := filepath.Join(dir, "first.pdf")
	second := filepath.Join(dir, "second.pdf")
	for _, out := range []string{first, second} {
		if err := be.MergeImages(context.Background(), frames, out); err != nil {
			t.Fatalf("MergeImages(%s) failed: %v", out, err)
		}
	}

	a, b := pageImages(t, first), pageImages(t, second)
	if len(a) != len(frames) || len(b) != len(frames) {
		t.Fatalf("page counts = %d and %d, want %d", len(a), len(b), len(frames))
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			t.Errorf("page %d image differs between runs", i+1)
		}
	}
	if bytes.Equal(a[0], a[1]) {
		t.Error("distinct frames should give distinct page images")
	}
}

func TestBackend_MergeDocuments(t *testing.T) {
	dir := t.TempDir()
	be := NewBackend()
	ctx := context.Background()

	var docs []string
	for i, c := range []uint8{0, 128, 255} {
		png := filepath.Join(dir, "img"+string(rune('a'+i))+".png")
		writePNG(t, png, 30, 40, color.NRGBA{R: c, G: c, B: c, A: 255})
		doc := filepath.Join(dir, "doc"+string(rune('a'+i))+".pdf")
		if err := be.MergeImages(ctx, []string{png}, doc); err != nil {
			t.Fatalf("failed to build %s: %v", doc, err)
		}
		docs = append(docs, doc)
	}

	out := filepath.Join(dir, "merged.pdf")
	if err := be.MergeDocuments(ctx, docs, out); err != nil {
		t.Fatalf("MergeDocuments failed: %v", err)
	}
	if n, err := be.PageCount(out); err != nil || n != 3 {
		t.Errorf("page count = %d (%v), want 3", n, err)
	}

	single := filepath.Join(dir, "single.pdf")
	if err := be.MergeDocuments(ctx, docs[:1], single); err != nil {
		t.Fatalf("single MergeDocuments failed: %v", err)
	}
	if n, _ := be.PageCount(single); n != 1 {
		t.Errorf("page count = %d, want 1", n)
	}
}

func TestBackend_Errors(t *testing.T) {
	be := NewBackend()
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "x.pdf")

	if err := be.MergeImages(ctx, nil, out); !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput, got %v", err)
	}
	if err := be.MergeDocuments(ctx, nil, out); !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput, got %v", err)
	}
	if err := be.MergeImages(ctx, []string{filepath.Join(t.TempDir(), "missing.png")}, out); err == nil {
		t.Error("expected error for missing image")
	}
	if _, err := be.PageCount(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for missing PDF")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	png := filepath.Join(t.TempDir(), "p.png")
	writePNG(t, png, 4, 4, color.NRGBA{A: 255})
	if err := be.MergeImages(cancelled, []string{png}, out); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
