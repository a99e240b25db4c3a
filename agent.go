package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/luispater/feeOptOut/internal/browser/chrome"
	"github.com/luispater/feeOptOut/internal/config"
	"github.com/luispater/feeOptOut/internal/portal"
	log "github.com/sirupsen/logrus"
)

const (
	authCheckInterval = 5 * time.Second
	authMaxAge        = 5 * time.Minute
)

// pageAgent is a launched browser, its portal tab, and the agent driving it.
type pageAgent struct {
	manager *chrome.Manager
	page    *chrome.Page
	agent   *portal.Agent
	handler *portal.Handler
}

func startPageAgent(cfg *config.AppConfig) (*pageAgent, error) {
	log.Info("Starting browser...")
	manager, err := chrome.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	if err = manager.LaunchBrowserAndContext(); err != nil {
		return nil, err
	}

	log.Debugf("Navigating to: %s", cfg.Portal.URL)
	page, err := manager.NewPage(cfg.Portal.URL)
	if err != nil {
		_ = manager.Close()
		return nil, err
	}

	agent := portal.NewAgent(page, portal.TimingFromConfig(cfg.Timing))
	return &pageAgent{
		manager: manager,
		page:    page,
		agent:   agent,
		handler: portal.NewHandler(agent),
	}, nil
}

// background runs the workflow watcher and keeps the saved login fresh until
// ctx is cancelled.
func (p *pageAgent) background(ctx context.Context, authFile string) {
	go func() {
		if err := p.agent.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("Page watcher stopped: %v", err)
		}
	}()
	go p.keepAuthFresh(ctx, authFile)
}

func (p *pageAgent) keepAuthFresh(ctx context.Context, authFile string) {
	if authFile == "" {
		return
	}
	ticker := time.NewTicker(authCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			kind, err := p.agent.ClassifyPage(ctx)
			if err != nil || kind != portal.KindMain {
				continue
			}

			saveState := false
			if fileInfo, errStat := os.Stat(authFile); os.IsNotExist(errStat) {
				saveState = true
			} else if errStat == nil && time.Since(fileInfo.ModTime()) > authMaxAge {
				saveState = true
			}

			if saveState {
				if err = p.page.SaveAuth(); err != nil {
					log.Debugf("Error saving auth state: %v", err)
				}
			}
		}
	}
}

func (p *pageAgent) Close() {
	if err := p.page.SaveAuth(); err != nil {
		log.Debugf("Error saving auth state: %v", err)
	}
	p.page.Close()
	if err := p.manager.Close(); err != nil {
		log.Debugf("Error closing browser manager: %v", err)
	}
}
