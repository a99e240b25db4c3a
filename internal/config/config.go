package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	DefaultConfigPath = "config.yaml"
	DefaultPortalURL  = "https://horizon.mcgill.ca/pban1/bztkopto.pm_opt_out"
	DefaultGate       = "horizon.mcgill.ca/pban1/bztkopto"
)

// AppConfig holds the application configuration.
type AppConfig struct {
	Debug      bool   `yaml:"debug"`
	Headless   bool   `yaml:"headless"`
	ApiPort    string `yaml:"api-port"`
	LogFile    string `yaml:"log-file"`
	MaxRetries int    `yaml:"max-retries"`
	// MaxInProgress bounds how often one fee may find the tab still busy
	// with the previous fee's confirmation pages.
	MaxInProgress int              `yaml:"max-in-progress"`
	Browser       AppConfigBrowser `yaml:"browser"`
	Portal        AppConfigPortal  `yaml:"portal"`
	Timing        AppConfigTiming  `yaml:"timing"`
}

type AppConfigBrowser struct {
	ChromePath  string   `yaml:"chrome-path"`
	Args        []string `yaml:"args"`
	UserDataDir string   `yaml:"user-data-dir,omitempty"`
	UserAgent   string   `yaml:"user-agent,omitempty"`
}

type AppConfigPortal struct {
	URL      string `yaml:"url"`
	Gate     string `yaml:"gate"`
	AuthFile string `yaml:"auth-file"`
}

// AppConfigTiming holds every fixed delay of the opt-out workflow, in milliseconds.
type AppConfigTiming struct {
	StartupDelay    int `yaml:"startup-delay"`
	ConfirmDelay    int `yaml:"confirm-delay"`
	AfterClickDelay int `yaml:"after-click-delay"`
	GoBackDelay     int `yaml:"go-back-delay"`
	ElementTimeout  int `yaml:"element-timeout"`
	PollInterval    int `yaml:"poll-interval"`
	PollAttempts    int `yaml:"poll-attempts"`
	WatchInterval   int `yaml:"watch-interval"`
	AdvanceDelay    int `yaml:"advance-delay"`
	RetryDelay      int `yaml:"retry-delay"`
	ResponseTimeout int `yaml:"response-timeout"`
	SessionTTL      int `yaml:"session-ttl"`
}

func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Default returns a configuration matching the portal's observed page timings.
func Default() *AppConfig {
	return &AppConfig{
		ApiPort:       "8317",
		LogFile:       "feeoptout.log",
		MaxRetries:    10,
		MaxInProgress: 60,
		Portal: AppConfigPortal{
			URL:      DefaultPortalURL,
			Gate:     DefaultGate,
			AuthFile: "auth/horizon.json",
		},
		Timing: AppConfigTiming{
			StartupDelay:    2000,
			ConfirmDelay:    2000,
			AfterClickDelay: 2000,
			GoBackDelay:     100,
			ElementTimeout:  1000,
			PollInterval:    1000,
			PollAttempts:    15,
			WatchInterval:   500,
			AdvanceDelay:    5000,
			RetryDelay:      5000,
			ResponseTimeout: 30000,
			SessionTTL:      3600000,
		},
	}
}

// LoadConfig loads configuration from the given yaml file. Keys the file
// leaves out keep their defaults; keys it sets, zero included, win.
func LoadConfig(path string) (*AppConfig, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *AppConfig) Validate() error {
	if c.ApiPort == "" {
		return fmt.Errorf("api-port must not be empty")
	}
	if c.Portal.URL == "" || c.Portal.Gate == "" {
		return fmt.Errorf("portal.url and portal.gate must not be empty")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative, got %d", c.MaxRetries)
	}
	if c.MaxInProgress < 0 {
		return fmt.Errorf("max-in-progress must not be negative, got %d", c.MaxInProgress)
	}
	if c.Timing.PollAttempts < 1 {
		return fmt.Errorf("timing.poll-attempts must be at least 1, got %d", c.Timing.PollAttempts)
	}

	t := c.Timing
	for name, v := range map[string]int{
		"startup-delay":     t.StartupDelay,
		"confirm-delay":     t.ConfirmDelay,
		"after-click-delay": t.AfterClickDelay,
		"go-back-delay":     t.GoBackDelay,
		"element-timeout":   t.ElementTimeout,
		"poll-interval":     t.PollInterval,
		"watch-interval":    t.WatchInterval,
		"advance-delay":     t.AdvanceDelay,
		"retry-delay":       t.RetryDelay,
		"response-timeout":  t.ResponseTimeout,
		"session-ttl":       t.SessionTTL,
	} {
		if v < 0 {
			return fmt.Errorf("timing.%s must not be negative, got %d", name, v)
		}
	}
	return nil
}
