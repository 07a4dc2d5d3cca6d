package ocr

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"
)

// fakeTesseract writes a shell script that mimics the tesseract CLI:
// it writes "<base>.pdf" unless the image name contains "bad". Its own
// language list includes xyz_local, which no system data path has; with
// --tessdata-dir it lists that directory instead.
func fakeTesseract(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	script := `#!/bin/sh
if [ "$1" = "--tessdata-dir" ] && [ "$3" = "--list-langs" ]; then
  echo "List of available languages in \"$2/\":"
  for f in "$2"/*.traineddata; do basename "$f" .traineddata; done
  exit 0
fi
if [ "$1" = "--list-langs" ]; then
  echo 'List of available languages in "/opt/reader-ocr/tessdata/" (4):'
  echo eng
  echo osd
  echo jpn
  echo xyz_local
  exit 0
fi
case "$1" in
  *bad*) echo "Error in pixReadStream" >&2; exit 1 ;;
  *slow*) exec sleep 5 ;;
esac
printf '%%PDF-1.5 %s' "$4" > "$2.pdf"
`
	path := filepath.Join(t.TempDir(), "tesseract")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseListLangs(t *testing.T) {
	out := "List of available languages in \"/usr/share/tesseract-ocr/5/tessdata/\" (3):\njpn\neng\nosd\n"
	got := parseListLangs(out)
	want := []string{"eng", "jpn", "osd"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseListLangs = %v, want %v", got, want)
	}
	if got := parseListLangs(""); len(got) != 0 {
		t.Errorf("expected no languages, got %v", got)
	}
}

func TestLanguagesFromTessdataDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"jpn.traineddata", "eng.traineddata", "jpn_vert.traineddata", "README"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// The executable cannot be run, so the directory is read directly.
	tess := &Tesseract{bin: filepath.Join(dir, "no-such-tesseract"), tessdata: dir, logger: slog.Default()}
	got, err := tess.Languages(context.Background())
	if err != nil {
		t.Fatalf("Languages failed: %v", err)
	}
	want := []string{"eng", "jpn", "jpn_vert"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Languages = %v, want %v", got, want)
	}

	missing := &Tesseract{bin: filepath.Join(dir, "no-such-tesseract"), tessdata: filepath.Join(dir, "nope"), logger: slog.Default()}
	if _, err := missing.Languages(context.Background()); err == nil {
		t.Error("expected error for missing tessdata directory")
	}
}

func TestNew_MissingBinary(t *testing.T) {
	_, err := New(Config{Binary: filepath.Join(t.TempDir(), "no-such-tesseract")})
	if !errors.Is(err, ErrEngineNotFound) {
		t.Errorf("expected ErrEngineNotFound, got %v", err)
	}
}

func TestTesseract_ListLangsFromExecutable(t *testing.T) {
	tess, err := New(Config{Binary: fakeTesseract(t)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, err := tess.listLangs(context.Background())
	if err != nil {
		t.Fatalf("listLangs failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"eng", "jpn", "osd", "xyz_local"}) {
		t.Errorf("listLangs = %v", got)
	}
}

func TestTesseract_LanguagesAskExecutableFirst(t *testing.T) {
	tess, err := New(Config{Binary: fakeTesseract(t)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, err := tess.Languages(context.Background())
	if err != nil {
		t.Fatalf("Languages failed: %v", err)
	}
	// xyz_local only exists in the executable's own installation.
	if !slices.Contains(got, "xyz_local") {
		t.Errorf("Languages = %v, want the executable's list including xyz_local", got)
	}
}

func TestTesseract_LanguagesPassTessdataDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"deu.traineddata", "fra.traineddata"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	tess, err := New(Config{Binary: fakeTesseract(t), TessdataDir: dir})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, err := tess.Languages(context.Background())
	if err != nil {
		t.Fatalf("Languages failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"deu", "fra"}) {
		t.Errorf("Languages = %v, want [deu fra]", got)
	}
}

func TestTesseract_Recognize(t *testing.T) {
	tess, err := New(Config{Binary: fakeTesseract(t)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if tess.Name() != "tesseract" {
		t.Errorf("Name() = %q", tess.Name())
	}

	dir := t.TempDir()
	frame := filepath.Join(dir, "page_0001.png")
	if err := os.WriteFile(frame, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := tess.Recognize(context.Background(), frame, "jpn")
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if doc.Path != filepath.Join(dir, "page_0001.pdf") {
		t.Errorf("document path = %s", doc.Path)
	}
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "jpn") {
		t.Errorf("language was not passed through: %q", data)
	}
}

func TestTesseract_RecognizeFailure(t *testing.T) {
	tess, err := New(Config{Binary: fakeTesseract(t)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	frame := filepath.Join(t.TempDir(), "bad_0001.png")
	if err := os.WriteFile(frame, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = tess.Recognize(context.Background(), frame, "eng")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "pixReadStream") {
		t.Errorf("error should carry tesseract stderr: %v", err)
	}
}

func TestTesseract_RecognizeTimeout(t *testing.T) {
	tess, err := New(Config{Binary: fakeTesseract(t), Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	frame := filepath.Join(t.TempDir(), "slow_0001.png")
	if err := os.WriteFile(frame, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = tess.Recognize(context.Background(), frame, "eng")
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error, got %v", err)
	}
}
