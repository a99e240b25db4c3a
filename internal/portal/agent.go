package portal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/luispater/feeOptOut/internal/config"
	"github.com/luispater/feeOptOut/internal/utils"
	log "github.com/sirupsen/logrus"
)

const elementPollInterval = 100 * time.Millisecond

// Browser is the tab the agent works on.
type Browser interface {
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
}

type Timing struct {
	StartupDelay    time.Duration
	WatchInterval   time.Duration
	ConfirmDelay    time.Duration
	AfterClickDelay time.Duration
	GoBackDelay     time.Duration
	ElementTimeout  time.Duration
	PollInterval    time.Duration
	PollAttempts    int
}

func TimingFromConfig(t config.AppConfigTiming) Timing {
	return Timing{
		StartupDelay:    config.Millis(t.StartupDelay),
		WatchInterval:   config.Millis(t.WatchInterval),
		ConfirmDelay:    config.Millis(t.ConfirmDelay),
		AfterClickDelay: config.Millis(t.AfterClickDelay),
		GoBackDelay:     config.Millis(t.GoBackDelay),
		ElementTimeout:  config.Millis(t.ElementTimeout),
		PollInterval:    config.Millis(t.PollInterval),
		PollAttempts:    t.PollAttempts,
	}
}

// Agent drives the opt-out workflow in one browser tab. Clicking operations
// are serialised so the watcher and a message request never interleave.
type Agent struct {
	browser Browser
	timing  Timing
	sleep   func(ctx context.Context, d time.Duration) error
	mu      sync.Mutex
}

func NewAgent(browser Browser, timing Timing) *Agent {
	return &Agent{
		browser: browser,
		timing:  timing,
		sleep:   utils.Sleep,
	}
}

// Snapshot reads the tab's current location and DOM.
func (a *Agent) Snapshot(ctx context.Context) (*Document, error) {
	pageURL, err := a.browser.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page url: %w", err)
	}
	body, err := a.browser.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page html: %w", err)
	}
	return ParseDocument(pageURL, body)
}

func (a *Agent) ClassifyPage(ctx context.Context) (Kind, error) {
	doc, err := a.Snapshot(ctx)
	if err != nil {
		return KindUnknown, err
	}
	kind := doc.Classify()
	log.Debugf("Current page is %s (%s)", kind, doc.URL)
	return kind, nil
}

func (a *Agent) ExtractFees(ctx context.Context) ([]Fee, error) {
	doc, err := a.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	fees := doc.Fees()
	log.Debugf("Fees extracted: %v", fees)
	return fees, nil
}

// WaitForElement polls the page until selector matches or timeout elapses.
// Running out of time is not an error.
func (a *Agent) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	attempts := int(timeout / elementPollInterval)
	for i := 0; ; i++ {
		doc, err := a.Snapshot(ctx)
		if err == nil && doc.Has(selector) {
			return true, nil
		}
		if err != nil {
			log.Debugf("Snapshot while waiting for %s failed: %v", selector, err)
		}
		if i >= attempts {
			return false, nil
		}
		if err = a.sleep(ctx, elementPollInterval); err != nil {
			return false, err
		}
	}
}

// PerformStep advances a confirmation page by one step. It returns false with
// a nil error when the page needs nothing (main or unknown), and false with an
// error when the expected control is missing or the click did not land.
func (a *Agent) PerformStep(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.performStep(ctx)
}

func (a *Agent) performStep(ctx context.Context) (bool, error) {
	kind, err := a.ClassifyPage(ctx)
	if err != nil {
		return false, err
	}

	switch kind {
	case KindConfirm:
		return a.confirm(ctx)
	case KindFinal, KindComplete:
		return a.goBack(ctx)
	default:
		return false, nil
	}
}

func (a *Agent) confirm(ctx context.Context) (bool, error) {
	log.Debug("Looking for opt-out button...")
	found, err := a.WaitForElement(ctx, OptOutButtonSelector, a.timing.ElementTimeout)
	if err != nil {
		return false, err
	}
	if !found {
		return false, fmt.Errorf("%w: %s", ErrButtonNotFound, OptOutButtonValue)
	}

	log.Debug("Found opt-out button, waiting before click...")
	if err = a.sleep(ctx, a.timing.ConfirmDelay); err != nil {
		return false, err
	}
	if err = a.browser.Click(ctx, OptOutButtonSelector); err != nil {
		return false, fmt.Errorf("failed to click opt-out button: %w", err)
	}
	log.Info("Opt-out confirmed")

	if err = a.sleep(ctx, a.timing.AfterClickDelay); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Agent) goBack(ctx context.Context) (bool, error) {
	log.Debug("Looking for Go Back button...")
	found, err := a.WaitForElement(ctx, GoBackButtonSelector, a.timing.ElementTimeout)
	if err != nil {
		return false, err
	}
	if !found {
		return false, fmt.Errorf("%w: Go Back", ErrButtonNotFound)
	}

	if err = a.sleep(ctx, a.timing.GoBackDelay); err != nil {
		return false, err
	}
	if err = a.browser.Click(ctx, GoBackButtonSelector); err != nil {
		return false, fmt.Errorf("failed to click go back button: %w", err)
	}
	log.Debug("Go Back button clicked")

	for i := 0; i < a.timing.PollAttempts; i++ {
		if err = a.sleep(ctx, a.timing.PollInterval); err != nil {
			return false, err
		}
		doc, errSnapshot := a.Snapshot(ctx)
		if errSnapshot != nil {
			log.Debugf("Waiting for main page, attempt %d: %v", i+1, errSnapshot)
			continue
		}
		if doc.Classify() == KindMain {
			log.Info("Returned to the fee list")
			return true, nil
		}
		log.Debugf("Waiting for main page table, attempt: %d", i+1)
	}
	return false, ErrReturnTimeout
}

// OptOutFee clicks the opt-out link of the fee's row on the fee list.
func (a *Agent) OptOutFee(ctx context.Context, fee Fee) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	doc, err := a.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	selector, err := doc.OptOutLinkSelector(fee)
	if err != nil {
		log.Debugf("Unable to locate opt-out link for %s: %v", fee.Name, err)
		return false, err
	}

	log.Infof("Clicking opt-out link for: %s", fee.Name)
	if err = a.browser.Click(ctx, selector); err != nil {
		return false, fmt.Errorf("failed to click opt-out link for %s: %w", fee.Name, err)
	}
	return true, nil
}

// Watch keeps the confirmation pages moving: every time a workflow page that
// has not been handled yet shows up, it performs that page's step. It runs
// until ctx is cancelled.
func (a *Agent) Watch(ctx context.Context) error {
	log.Debug("Waiting for page to stabilize")
	if err := a.sleep(ctx, a.timing.StartupDelay); err != nil {
		return err
	}

	handled := ""
	for {
		doc, err := a.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debugf("Watch snapshot failed: %v", err)
		} else {
			kind := doc.Classify()
			key := string(kind) + "|" + doc.URL
			switch {
			case !kind.IsWorkflow():
				handled = ""
			case key != handled:
				ok, errStep := a.PerformStep(ctx)
				if ok {
					handled = key
				} else if errStep != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					log.Warnf("Step on %s page failed: %v", kind, errStep)
				}
			}
		}

		if err = a.sleep(ctx, a.timing.WatchInterval); err != nil {
			return err
		}
	}
}
