// Package ocr runs Tesseract to turn a page image into a single-page
// searchable PDF.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/kodiwosan/pdf-converter/internal/assemble"
)

// ErrEngineNotFound is returned when no tesseract executable can be found.
var ErrEngineNotFound = errors.New("tesseract executable not found")

// DefaultTimeout bounds a single page recognition.
const DefaultTimeout = 2 * time.Minute

// Config locates the tesseract installation.
type Config struct {
	Binary      string        // Executable name or path; "tesseract" when empty
	TessdataDir string        // Optional --tessdata-dir
	Timeout     time.Duration // Per page; DefaultTimeout when zero
	Logger      *slog.Logger
}

// Tesseract recognizes pages with the tesseract command line tool.
type Tesseract struct {
	bin      string
	tessdata string
	timeout  time.Duration
	logger   *slog.Logger
}

// New resolves the tesseract executable from cfg.Binary, PATH and the usual
// install locations.
func New(cfg Config) (*Tesseract, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	bin, err := findBinary(cfg.Binary)
	if err != nil {
		return nil, err
	}
	logger.Debug("using tesseract", "path", bin)

	return &Tesseract{
		bin:      bin,
		tessdata: cfg.TessdataDir,
		timeout:  timeout,
		logger:   logger.With("component", "ocr"),
	}, nil
}

func (t *Tesseract) Name() string { return "tesseract" }

// Languages lists the language models of the executable Recognize runs,
// honoring the tessdata directory. Only when the executable cannot be asked
// is the tessdata directory read directly, or the library's data path used.
func (t *Tesseract) Languages(ctx context.Context) ([]string, error) {
	langs, err := t.listLangs(ctx)
	if err == nil {
		return langs, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	t.logger.Debug("tesseract could not list languages, reading data path", "error", err)

	if t.tessdata != "" {
		return languagesIn(t.tessdata)
	}
	libLangs, lerr := gosseract.GetAvailableLanguages()
	if lerr != nil {
		return nil, fmt.Errorf("%w (library lookup: %v)", err, lerr)
	}
	sort.Strings(libLangs)
	return libLangs, nil
}

func (t *Tesseract) listLangs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var args []string
	if t.tessdata != "" {
		args = append(args, "--tessdata-dir", t.tessdata)
	}
	args = append(args, "--list-langs")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to list tesseract languages: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	// Older versions print the list to stderr.
	out := stdout.String()
	if strings.TrimSpace(out) == "" {
		out = stderr.String()
	}
	return parseListLangs(out), nil
}

// parseListLangs reads `tesseract --list-langs` output: a header line
// followed by one language per line.
func parseListLangs(out string) []string {
	var langs []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of available languages") {
			continue
		}
		langs = append(langs, line)
	}
	sort.Strings(langs)
	return langs
}

func languagesIn(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.traineddata"))
	if err != nil {
		return nil, fmt.Errorf("failed to read tessdata directory: %w", err)
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to read tessdata directory: %w", err)
	}
	langs := make([]string, 0, len(matches))
	for _, m := range matches {
		langs = append(langs, strings.TrimSuffix(filepath.Base(m), ".traineddata"))
	}
	sort.Strings(langs)
	return langs, nil
}

// Recognize writes <frame without extension>.pdf next to the frame, holding
// the page image with an invisible text layer.
func (t *Tesseract) Recognize(ctx context.Context, frame, lang string) (assemble.Document, error) {
	base := strings.TrimSuffix(frame, filepath.Ext(frame))
	out := base + ".pdf"
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return assemble.Document{}, fmt.Errorf("failed to remove stale %s: %w", filepath.Base(out), err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	args := []string{frame, base, "-l", lang}
	if t.tessdata != "" {
		args = append(args, "--tessdata-dir", t.tessdata)
	}
	args = append(args, "pdf")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.bin, args...)
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return assemble.Document{}, fmt.Errorf("tesseract timed out after %s on %s", t.timeout, filepath.Base(frame))
		}
		return assemble.Document{}, fmt.Errorf("tesseract failed on %s: %w: %s", filepath.Base(frame), err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(out)
	if err != nil {
		return assemble.Document{}, fmt.Errorf("tesseract produced no PDF for %s: %w", filepath.Base(frame), err)
	}
	if info.Size() == 0 {
		return assemble.Document{}, fmt.Errorf("tesseract produced an empty PDF for %s", filepath.Base(frame))
	}

	t.logger.Debug("recognized page", "frame", filepath.Base(frame), "lang", lang, "duration", time.Since(start))
	return assemble.Document{Path: out}, nil
}

// findBinary returns an absolute path for name, checking PATH first and
// then the default install locations.
func findBinary(name string) (string, error) {
	if name == "" {
		name = "tesseract"
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	if name != "tesseract" {
		return "", fmt.Errorf("%w: %s", ErrEngineNotFound, name)
	}
	for _, p := range defaultLocations() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: install tesseract or set ocr.binary", ErrEngineNotFound)
}

func defaultLocations() []string {
	switch runtime.GOOS {
	case "windows":
		home, _ := os.UserHomeDir()
		return []string{
			`C:\Program Files\Tesseract-OCR\tesseract.exe`,
			`C:\Program Files (x86)\Tesseract-OCR\tesseract.exe`,
			filepath.Join(home, `AppData\Local\Tesseract-OCR\tesseract.exe`),
			filepath.Join(home, `AppData\Local\Programs\Tesseract-OCR\tesseract.exe`),
		}
	case "darwin":
		return []string{"/opt/homebrew/bin/tesseract", "/usr/local/bin/tesseract"}
	default:
		return []string{"/usr/bin/tesseract", "/usr/local/bin/tesseract"}
	}
}
