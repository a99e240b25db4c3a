package chrome

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/luispater/feeOptOut/internal/config"
	log "github.com/sirupsen/logrus"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36"

// Manager manages a Chrome browser instance and its contexts.
type Manager struct {
	appConfig     *config.AppConfig
	allocator     context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	execPath      string
}

// NewManager creates a new Chromedp Manager instance.
// It initializes the allocator context but does not launch the browser yet.
func NewManager(appConfig *config.AppConfig) (*Manager, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("appConfig cannot be nil")
	}

	execPath := appConfig.Browser.ChromePath
	if execPath == "" {
		execPath = os.Getenv("CHROME_BIN")
		if execPath == "" {
			log.Debug("Chrome path not specified in config or CHROME_BIN env, will attempt auto-detection.")
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(appConfig, execPath)...)

	return &Manager{
		appConfig:   appConfig,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		execPath:    execPath,
	}, nil
}

func allocatorOptions(appConfig *config.AppConfig, execPath string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	}

	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	// The portal needs an interactive login, so the window is visible unless asked otherwise.
	if appConfig.Headless {
		opts = append(opts, chromedp.Flag("headless", true))
		opts = append(opts, chromedp.Flag("disable-gpu", true))
		opts = append(opts, chromedp.WindowSize(1280, 900))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	if appConfig.Browser.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(appConfig.Browser.UserDataDir))
	}

	userAgent := appConfig.Browser.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	opts = append(opts, chromedp.UserAgent(userAgent))

	for _, arg := range appConfig.Browser.Args {
		if arg != "" {
			parts := strings.SplitN(arg, "=", 2)
			if len(parts) == 2 {
				opts = append(opts, chromedp.Flag(strings.TrimPrefix(parts[0], "--"), parts[1]))
			} else {
				opts = append(opts, chromedp.Flag(strings.TrimPrefix(parts[0], "--"), true))
			}
		}
	}
	return opts
}

// LaunchBrowserAndContext launches the browser and creates a new browser context.
func (m *Manager) LaunchBrowserAndContext() error {
	if m.allocator == nil {
		return fmt.Errorf("manager not properly initialized, allocator is nil")
	}

	browserCtx, browserCancel := chromedp.NewContext(
		m.allocator,
		chromedp.WithLogf(log.Debugf),
		chromedp.WithErrorf(log.Debugf),
	)
	m.browserCtx = browserCtx
	m.browserCancel = browserCancel

	if err := chromedp.Run(m.browserCtx); err != nil {
		_ = m.Close()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	log.Infof("Chrome launched successfully with path: %s", m.execPath)
	return nil
}

// NewPage opens the portal in a new tab, restoring the saved login first.
func (m *Manager) NewPage(url string) (*Page, error) {
	if m.browserCtx == nil {
		return nil, fmt.Errorf("browser context not initialized. Call LaunchBrowserAndContext first")
	}
	return NewPage(m.browserCtx, url, m.appConfig.Portal.AuthFile)
}

func (m *Manager) Close() error {
	if m.browserCancel != nil {
		log.Debug("Cancelling Chromedp browser context...")
		m.browserCancel()
		m.browserCancel = nil
		m.browserCtx = nil
	}

	if m.allocCancel != nil {
		log.Debug("Cancelling Chromedp allocator context...")
		m.allocCancel()
		m.allocCancel = nil
		m.allocator = nil
		log.Info("Chrome shut down.")
	}
	return nil
}
