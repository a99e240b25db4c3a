package chrome

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
)

const (
	clickInterval = 200 * time.Millisecond
	clickTimeout  = 10 * time.Second
)

// Page is one browser tab. It implements portal.Browser.
type Page struct {
	ctx           context.Context
	cancel        context.CancelFunc
	URLToOpen     string
	authFile      string
	clickMutex    sync.Mutex
	lastClickTime time.Time
}

func NewPage(browserCtx context.Context, url string, authFilePath string) (*Page, error) {
	if browserCtx == nil {
		return nil, fmt.Errorf("browser context not initialized. Call LaunchBrowserAndContext first")
	}

	var newTargetID target.ID
	err := chromedp.Run(
		browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			newTargetID, err = target.CreateTarget("about:blank").Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create new target (tab): %w", err)
	}

	newPageCtx, newPageCancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(newTargetID))

	if err = LoadAuthInfo(newPageCtx, authFilePath); err != nil {
		log.Warnf("Failed to load auth info: %v", err)
	}

	if err = chromedp.Run(newPageCtx, chromedp.Navigate(url)); err != nil {
		newPageCancel()
		return nil, fmt.Errorf("failed to navigate new page to %s: %w", url, err)
	}

	log.Debugf("New Chromedp page (targetID: %s) created.", newTargetID)

	return &Page{
		ctx:       newPageCtx,
		cancel:    newPageCancel,
		URLToOpen: url,
		authFile:  authFilePath,
	}, nil
}

// run executes actions in the tab, stopping early when ctx is done.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var currentURL string
	if err := p.run(ctx, chromedp.Location(&currentURL)); err != nil {
		return "", err
	}
	return currentURL, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	var body string
	err := p.run(ctx, chromedp.Evaluate(`document.documentElement ? document.documentElement.outerHTML : ""`, &body))
	if err != nil {
		return "", err
	}
	return body, nil
}

// Click waits for the first element matching selector to be visible and clicks it.
func (p *Page) Click(ctx context.Context, selector string) error {
	p.clickMutex.Lock()
	if time.Since(p.lastClickTime) < clickInterval {
		log.Debugf("Click too fast, wait for %v", clickInterval)
		time.Sleep(clickInterval)
	}
	p.lastClickTime = time.Now()
	p.clickMutex.Unlock()

	log.Debugf("Attempting to find and click element with selector: %s", selector)

	opCtx, cancel := context.WithTimeout(ctx, clickTimeout)
	defer cancel()

	err := p.run(opCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		currentURL, _ := p.URL(ctx)
		return fmt.Errorf("error clicking element '%s' on page %s: %w", selector, currentURL, err)
	}

	log.Debugf("Successfully clicked element '%s'.", selector)
	return nil
}

// SaveAuth persists the tab's cookies to the configured auth file.
func (p *Page) SaveAuth() error {
	if p.authFile == "" {
		return nil
	}
	return SaveAuthInfo(p.ctx, p.authFile)
}

func (p *Page) Close() {
	p.cancel()
}
