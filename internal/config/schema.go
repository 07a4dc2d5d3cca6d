package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config holds pdf-converter configuration.
// Stored at: ~/.pdf-converter/config.yaml (or ./config.yaml)
type Config struct {
	LogLevel string     `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
	Capture  CaptureCfg `mapstructure:"capture" yaml:"capture"`
	Detect   DetectCfg  `mapstructure:"detect" yaml:"detect"`
	OCR      OCRCfg     `mapstructure:"ocr" yaml:"ocr"`
	Output   OutputCfg  `mapstructure:"output" yaml:"output"`
}

// CaptureCfg configures the page-turning capture loop.
type CaptureCfg struct {
	NextPageKey        string `mapstructure:"next_page_key" yaml:"next_page_key"`               // Key sent to advance one page
	SettleDelayMS      int    `mapstructure:"settle_delay_ms" yaml:"settle_delay_ms"`           // Wait after a page turn
	StartDelayMS       int    `mapstructure:"start_delay_ms" yaml:"start_delay_ms"`             // Wait before the first capture
	ActivateDelayMS    int    `mapstructure:"activate_delay_ms" yaml:"activate_delay_ms"`       // Wait after focusing the window
	MaxPages           int    `mapstructure:"max_pages" yaml:"max_pages"`                       // Safety bound
	Retries            int    `mapstructure:"retries" yaml:"retries"`                           // Extra attempts per capture/key call
	RetryDelayMS       int    `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`             // Base delay between attempts
	CallTimeoutSeconds int    `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"` // Per OS call
	AbortKey           string `mapstructure:"abort_key" yaml:"abort_key"`                       // Global hotkey, empty disables
}

// DetectCfg configures content region auto-detection.
type DetectCfg struct {
	MinAreaRatio    float64 `mapstructure:"min_area_ratio" yaml:"min_area_ratio"`
	EdgeBandRatio   float64 `mapstructure:"edge_band_ratio" yaml:"edge_band_ratio"`
	MinWhiteDensity float64 `mapstructure:"min_white_density" yaml:"min_white_density"`
	Padding         int     `mapstructure:"padding" yaml:"padding"`
	BlurSigma       float64 `mapstructure:"blur_sigma" yaml:"blur_sigma"`
	Debug           bool    `mapstructure:"debug" yaml:"debug"` // Write overlay images
}

// OCRCfg configures text recognition during assembly.
type OCRCfg struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Language       string `mapstructure:"language" yaml:"language"`               // Tesseract language code
	Binary         string `mapstructure:"binary" yaml:"binary"`                   // Supports ${ENV_VAR} syntax
	TessdataDir    string `mapstructure:"tessdata_dir" yaml:"tessdata_dir"`       // Supports ${ENV_VAR} syntax
	Workers        int    `mapstructure:"workers" yaml:"workers"`                 // Concurrent recognitions
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // Per page
	OnPageFailure  string `mapstructure:"on_page_failure" yaml:"on_page_failure"` // "image" or "skip"
}

// OutputCfg configures the produced artifact.
type OutputCfg struct {
	Path       string `mapstructure:"path" yaml:"path"`               // Supports ${ENV_VAR} syntax
	KeepFrames bool   `mapstructure:"keep_frames" yaml:"keep_frames"` // Retain frames after assembly
}

const (
	PageFailureImage = "image"
	PageFailureSkip  = "skip"
)

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Capture: CaptureCfg{
			NextPageKey:        "right",
			SettleDelayMS:      1500,
			StartDelayMS:       3000,
			ActivateDelayMS:    1000,
			MaxPages:           2000,
			Retries:            3,
			RetryDelayMS:       500,
			CallTimeoutSeconds: 10,
			AbortKey:           "esc",
		},
		Detect: DetectCfg{
			MinAreaRatio:    0.05,
			EdgeBandRatio:   0.10,
			MinWhiteDensity: 0.70,
			Padding:         5,
			BlurSigma:       1.1,
			Debug:           true,
		},
		OCR: OCRCfg{
			Enabled:        false,
			Language:       "jpn",
			Binary:         "tesseract",
			Workers:        runtime.NumCPU(),
			TimeoutSeconds: 120,
			OnPageFailure:  PageFailureImage,
		},
		Output: OutputCfg{
			Path:       "output.pdf",
			KeepFrames: true,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Capture.MaxPages <= 0:
		return fmt.Errorf("capture.max_pages must be positive, got %d", c.Capture.MaxPages)
	case c.Capture.Retries < 0:
		return fmt.Errorf("capture.retries must not be negative, got %d", c.Capture.Retries)
	case c.Capture.NextPageKey == "":
		return fmt.Errorf("capture.next_page_key must be set")
	case c.Detect.MinWhiteDensity < 0 || c.Detect.MinWhiteDensity > 1:
		return fmt.Errorf("detect.min_white_density must be within [0,1], got %v", c.Detect.MinWhiteDensity)
	case c.Detect.MinAreaRatio < 0 || c.Detect.MinAreaRatio > 1:
		return fmt.Errorf("detect.min_area_ratio must be within [0,1], got %v", c.Detect.MinAreaRatio)
	case c.Detect.EdgeBandRatio < 0 || c.Detect.EdgeBandRatio >= 0.5:
		return fmt.Errorf("detect.edge_band_ratio must be within [0,0.5), got %v", c.Detect.EdgeBandRatio)
	case c.Detect.Padding < 0:
		return fmt.Errorf("detect.padding must not be negative, got %d", c.Detect.Padding)
	case c.OCR.OnPageFailure != PageFailureImage && c.OCR.OnPageFailure != PageFailureSkip:
		return fmt.Errorf("ocr.on_page_failure must be %q or %q, got %q", PageFailureImage, PageFailureSkip, c.OCR.OnPageFailure)
	}
	return nil
}

// SettleDelay returns the wait after each page turn.
func (c CaptureCfg) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

// StartDelay returns the wait before the first capture.
func (c CaptureCfg) StartDelay() time.Duration {
	return time.Duration(c.StartDelayMS) * time.Millisecond
}

// ActivateDelay returns the wait after the window is focused.
func (c CaptureCfg) ActivateDelay() time.Duration {
	return time.Duration(c.ActivateDelayMS) * time.Millisecond
}

// RetryDelay returns the base delay between retried OS calls.
func (c CaptureCfg) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// CallTimeout returns the timeout applied to each capture or key call.
func (c CaptureCfg) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// Timeout returns the per-page recognition timeout.
func (c OCRCfg) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
