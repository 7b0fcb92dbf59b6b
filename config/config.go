package config

import (
	"errors"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Scraper ScraperConfig `yaml:"scraper"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                   int      `yaml:"port"`
	CORSOrigins            []string `yaml:"cors_origins"`
	RateLimitPerSec        float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst         int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds        int      `yaml:"cache_ttl_seconds"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`

	CacheTTL        time.Duration `yaml:"-"`
	ShutdownTimeout time.Duration `yaml:"-"`
}

// ScraperConfig holds everything the lookup pipeline needs to drive the hazard tool.
type ScraperConfig struct {
	TargetURL      string   `yaml:"target_url"`
	Headful        bool     `yaml:"headful"`
	ExecutablePath string   `yaml:"executable_path"`
	InstallDriver  *bool    `yaml:"install_driver"`
	BrowserArgs    []string `yaml:"browser_args"`
	ViewportWidth  int      `yaml:"viewport_width"`
	ViewportHeight int      `yaml:"viewport_height"`

	NavigationTimeoutSeconds int `yaml:"navigation_timeout_seconds"`
	InputTimeoutSeconds      int `yaml:"input_timeout_seconds"`
	SuggestionTimeoutSeconds int `yaml:"suggestion_timeout_seconds"`
	OptionTimeoutSeconds     int `yaml:"option_timeout_seconds"`
	ResultsTimeoutSeconds    int `yaml:"results_timeout_seconds"`
	SettleDelayMillis        int `yaml:"settle_delay_ms"`

	NavigationTimeout time.Duration `yaml:"-"`
	InputTimeout      time.Duration `yaml:"-"`
	SuggestionTimeout time.Duration `yaml:"-"`
	OptionTimeout     time.Duration `yaml:"-"`
	ResultsTimeout    time.Duration `yaml:"-"`
	SettleDelay       time.Duration `yaml:"-"`

	ResultMarker     string `yaml:"result_marker"`
	RiskCategory     string `yaml:"risk_category"`
	LoadType         string `yaml:"load_type"`
	ResultsButton    string `yaml:"results_button"`
	DebugScreenshots bool   `yaml:"debug_screenshots"`

	AddressSelectors    []string `yaml:"address_selectors"`
	SuggestionSelectors []string `yaml:"suggestion_selectors"`
	PopupSelectors      []string `yaml:"popup_selectors"`
	PopupButtonTexts    []string `yaml:"popup_button_texts"`
}

// ShouldInstallDriver reports whether the playwright driver is downloaded at startup.
func (s ScraperConfig) ShouldInstallDriver() bool {
	return s.InstallDriver == nil || *s.InstallDriver
}

var defaultBrowserArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
	"--disable-gpu",
}

var defaultAddressSelectors = []string{
	`input[placeholder*="address" i]`,
	`input[aria-label*="address" i]`,
	`input[type="search"]`,
	`#address`,
	`input[name*="address" i]`,
	`input[type="text"]`,
}

var defaultSuggestionSelectors = []string{
	`[role="listbox"] [role="option"]`,
	`.pac-container .pac-item`,
	`.autocomplete-suggestions li`,
	`ul[class*="suggest" i] li`,
	`.esri-search__suggestions-list li`,
}

var defaultPopupSelectors = []string{
	`[role="dialog"] button[aria-label*="close" i]`,
	`.modal .close`,
	`.modal-footer button`,
	`button.close`,
	`.dismiss`,
	`.introjs-skipbutton`,
}

var defaultPopupButtonTexts = []string{"Close", "Got it", "Skip", "Dismiss", "No thanks", "OK"}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Load reads the configuration from the given path. An empty path yields the
// defaults. The PORT environment variable overrides server.port.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 {
			log.Printf("PORT=%q is not a valid port; ignoring", port)
		} else {
			cfg.Server.Port = p
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.Port <= 0 {
		s.Port = 3000
	}
	if len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"*"}
	}
	if s.RateLimitBurst <= 0 {
		s.RateLimitBurst = 5
	}
	if s.CacheTTLSeconds < 0 {
		s.CacheTTLSeconds = 0
	}
	s.CacheTTL = time.Duration(s.CacheTTLSeconds) * time.Second
	if s.ShutdownTimeoutSeconds <= 0 {
		s.ShutdownTimeoutSeconds = 90
	}
	s.ShutdownTimeout = time.Duration(s.ShutdownTimeoutSeconds) * time.Second

	sc := &cfg.Scraper
	if sc.TargetURL == "" {
		sc.TargetURL = "https://ascehazardtool.org/"
	}
	if len(sc.BrowserArgs) == 0 {
		sc.BrowserArgs = defaultBrowserArgs
	}
	if sc.ViewportWidth <= 0 {
		sc.ViewportWidth = 1280
	}
	if sc.ViewportHeight <= 0 {
		sc.ViewportHeight = 800
	}

	sc.NavigationTimeout = seconds(&sc.NavigationTimeoutSeconds, 60)
	sc.InputTimeout = seconds(&sc.InputTimeoutSeconds, 5)
	sc.SuggestionTimeout = seconds(&sc.SuggestionTimeoutSeconds, 3)
	sc.OptionTimeout = seconds(&sc.OptionTimeoutSeconds, 3)
	sc.ResultsTimeout = seconds(&sc.ResultsTimeoutSeconds, 60)
	if sc.SettleDelayMillis < 0 {
		sc.SettleDelayMillis = 0
	} else if sc.SettleDelayMillis == 0 {
		sc.SettleDelayMillis = 3000
	}
	sc.SettleDelay = time.Duration(sc.SettleDelayMillis) * time.Millisecond

	if sc.ResultMarker == "" {
		sc.ResultMarker = "Vmph"
	}
	if sc.RiskCategory == "" {
		sc.RiskCategory = "Risk Category II"
	}
	if sc.LoadType == "" {
		sc.LoadType = "Wind"
	}
	if sc.ResultsButton == "" {
		sc.ResultsButton = "View Results"
	}
	if len(sc.AddressSelectors) == 0 {
		sc.AddressSelectors = defaultAddressSelectors
	}
	if len(sc.SuggestionSelectors) == 0 {
		sc.SuggestionSelectors = defaultSuggestionSelectors
	}
	if len(sc.PopupSelectors) == 0 {
		sc.PopupSelectors = defaultPopupSelectors
	}
	if len(sc.PopupButtonTexts) == 0 {
		sc.PopupButtonTexts = defaultPopupButtonTexts
	}
}

// seconds fills in a non-positive value with def and returns it as a duration.
func seconds(v *int, def int) time.Duration {
	if *v <= 0 {
		*v = def
	}
	return time.Duration(*v) * time.Second
}
