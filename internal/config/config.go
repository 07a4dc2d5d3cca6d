package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix for environment overrides, e.g. PDFCONV_OCR_LANGUAGE.
const EnvPrefix = "PDFCONV"

// Manager handles loading configuration from defaults, file and environment.
type Manager struct {
	v      *viper.Viper
	config *Config
	source string
}

// NewManager creates a new config manager and loads the config.
// envFiles are optional dotenv files; missing ones are ignored.
func NewManager(cfgFile string, envFiles ...string) (*Manager, error) {
	cm := &Manager{v: viper.New()}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// loadEnvFiles reads dotenv files without overriding variables already set.
func loadEnvFiles(paths []string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pdf-converter")
	}

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	cm.source = v.ConfigFileUsed()

	return nil
}

// setDefaults registers every leaf key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("capture.next_page_key", d.Capture.NextPageKey)
	v.SetDefault("capture.settle_delay_ms", d.Capture.SettleDelayMS)
	v.SetDefault("capture.start_delay_ms", d.Capture.StartDelayMS)
	v.SetDefault("capture.activate_delay_ms", d.Capture.ActivateDelayMS)
	v.SetDefault("capture.max_pages", d.Capture.MaxPages)
	v.SetDefault("capture.retries", d.Capture.Retries)
	v.SetDefault("capture.retry_delay_ms", d.Capture.RetryDelayMS)
	v.SetDefault("capture.call_timeout_seconds", d.Capture.CallTimeoutSeconds)
	v.SetDefault("capture.abort_key", d.Capture.AbortKey)

	v.SetDefault("detect.min_area_ratio", d.Detect.MinAreaRatio)
	v.SetDefault("detect.edge_band_ratio", d.Detect.EdgeBandRatio)
	v.SetDefault("detect.min_white_density", d.Detect.MinWhiteDensity)
	v.SetDefault("detect.padding", d.Detect.Padding)
	v.SetDefault("detect.blur_sigma", d.Detect.BlurSigma)
	v.SetDefault("detect.debug", d.Detect.Debug)

	v.SetDefault("ocr.enabled", d.OCR.Enabled)
	v.SetDefault("ocr.language", d.OCR.Language)
	v.SetDefault("ocr.binary", d.OCR.Binary)
	v.SetDefault("ocr.tessdata_dir", d.OCR.TessdataDir)
	v.SetDefault("ocr.workers", d.OCR.Workers)
	v.SetDefault("ocr.timeout_seconds", d.OCR.TimeoutSeconds)
	v.SetDefault("ocr.on_page_failure", d.OCR.OnPageFailure)

	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("output.keep_frames", d.Output.KeepFrames)
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.OCR.Binary = ResolveEnvVars(cfg.OCR.Binary)
	cfg.OCR.TessdataDir = ResolveEnvVars(cfg.OCR.TessdataDir)
	cfg.Output.Path = ResolveEnvVars(cfg.Output.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the loaded configuration.
func (cm *Manager) Get() *Config {
	return cm.config
}

// Source returns the config file that was read, or "" when only defaults apply.
func (cm *Manager) Source() string {
	return cm.source
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# pdf-converter configuration
# Paths accept ${ENV_VAR} syntax. Every key can be overridden from the
# environment with the PDFCONV_ prefix, e.g. PDFCONV_OCR_LANGUAGE=eng.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
