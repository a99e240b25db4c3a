package popup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luispater/feeOptOut/internal/config"
	"github.com/luispater/feeOptOut/internal/portal"
	"github.com/luispater/feeOptOut/internal/utils"
	log "github.com/sirupsen/logrus"
)

var (
	ErrWrongPage        = errors.New("please navigate to the McGill fee opt-out page to use this tool")
	ErrConnection       = errors.New("unable to connect to the page, refresh the page and try again")
	ErrNoFees           = errors.New("no opt-out fees found on this page")
	ErrNoSelection      = errors.New("please select at least one fee to opt out from")
	ErrRetriesExhausted = errors.New("giving up on fee")
)

type Options struct {
	Gate            string
	AdvanceDelay    time.Duration
	RetryDelay      time.Duration
	ResponseTimeout time.Duration
	MaxRetries      int
	// MaxInProgress bounds the "page still busy" answers per fee. They are
	// counted apart from MaxRetries since a slow but healthy confirmation
	// cycle produces them.
	MaxInProgress int
}

func OptionsFromConfig(cfg *config.AppConfig) Options {
	return Options{
		Gate:            cfg.Portal.Gate,
		AdvanceDelay:    config.Millis(cfg.Timing.AdvanceDelay),
		RetryDelay:      config.Millis(cfg.Timing.RetryDelay),
		ResponseTimeout: config.Millis(cfg.Timing.ResponseTimeout),
		MaxRetries:      cfg.MaxRetries,
		MaxInProgress:   cfg.MaxInProgress,
	}
}

// Progress describes where a run is. Current is empty once every fee is done.
type Progress struct {
	Current string
	Next    string
	// Later names the fees queued after Next.
	Later   []string
	Attempt int
	Done    bool
}

type Controller struct {
	tab   Tab
	opts  Options
	sleep func(ctx context.Context, d time.Duration) error
}

func NewController(tab Tab, opts Options) *Controller {
	return &Controller{
		tab:   tab,
		opts:  opts,
		sleep: utils.Sleep,
	}
}

// CheckPage is the activation gate: the tab must be on the portal.
func (c *Controller) CheckPage(ctx context.Context) error {
	activeURL, err := c.tab.ActiveURL(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	log.Debugf("Current URL: %s", activeURL)
	if !strings.Contains(activeURL, c.opts.Gate) {
		return ErrWrongPage
	}
	return nil
}

// LoadFees passes the gate and asks the agent for the fee list.
func (c *Controller) LoadFees(ctx context.Context) ([]portal.Fee, error) {
	if err := c.CheckPage(ctx); err != nil {
		return nil, err
	}

	resp, err := c.tab.Send(ctx, portal.Request{Action: portal.ActionGetFeeList})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrConnection, resp.Error)
	}
	if len(resp.Fees) == 0 {
		return nil, ErrNoFees
	}
	return resp.Fees, nil
}

// Run opts out of the selected fees in order, one request at a time. A fee
// that keeps failing is retried up to MaxRetries times after its first
// failure, and a fee that keeps finding the page busy is retried up to
// MaxInProgress times. Past either limit the run stops with
// ErrRetriesExhausted.
func (c *Controller) Run(ctx context.Context, selected []portal.Fee, progress func(Progress)) error {
	if len(selected) == 0 {
		return ErrNoSelection
	}
	if progress == nil {
		progress = func(Progress) {}
	}

	queue := utils.NewQueue(selected...)
	attempt, failures, waits := 0, 0, 0
	for !queue.IsEmpty() {
		current, _ := queue.Peek(0)
		next, hasNext := queue.Peek(1)
		attempt++

		nextName := ""
		if hasNext {
			nextName = next.Name
		}
		log.Debugf("Processing: %s, next: %s, attempt %d", current.Name, nextName, attempt)
		progress(Progress{Current: current.Name, Next: nextName, Later: laterNames(queue.Items()), Attempt: attempt})

		resp, err := c.send(ctx, portal.Request{
			Action:    portal.ActionOptOut,
			Fees:      []portal.Fee{current},
			NextFee:   nextName,
			IsLastFee: !hasNext,
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err == nil && resp.Success {
			log.Infof("Successfully processed: %s", current.Name)
			_, _ = queue.Dequeue()
			attempt, failures, waits = 0, 0, 0
			if err = c.sleep(ctx, c.opts.AdvanceDelay); err != nil {
				return err
			}
			continue
		}

		switch {
		case err != nil:
			failures++
			log.Warnf("Error during opt-out of %s: %v", current.Name, err)
			if failures > c.opts.MaxRetries {
				return fmt.Errorf("%w %s after %d attempts: %s", ErrRetriesExhausted, current.Name, attempt, err.Error())
			}
		case resp.InProgress:
			waits++
			log.Debugf("Still processing, retrying %s in %v", current.Name, c.opts.RetryDelay)
			if waits > c.opts.MaxInProgress {
				return fmt.Errorf("%w %s after %d attempts: page stayed busy", ErrRetriesExhausted, current.Name, attempt)
			}
		default:
			failures++
			log.Warnf("Failed to process %s: %s", current.Name, resp.Error)
			if failures > c.opts.MaxRetries {
				return fmt.Errorf("%w %s after %d attempts: %s", ErrRetriesExhausted, current.Name, attempt, resp.Error)
			}
		}

		if err = c.sleep(ctx, c.opts.RetryDelay); err != nil {
			return err
		}
	}

	progress(Progress{Done: true})
	log.Info("All opt-out requests have been processed")
	return nil
}

// laterNames returns the names queued after the current and next fee.
func laterNames(queued []portal.Fee) []string {
	if len(queued) <= 2 {
		return nil
	}
	names := make([]string, 0, len(queued)-2)
	for _, fee := range queued[2:] {
		names = append(names, fee.Name)
	}
	return names
}

func (c *Controller) send(ctx context.Context, req portal.Request) (portal.Response, error) {
	if c.opts.ResponseTimeout <= 0 {
		return c.tab.Send(ctx, req)
	}
	sendCtx, cancel := context.WithTimeout(ctx, c.opts.ResponseTimeout)
	defer cancel()
	return c.tab.Send(sendCtx, req)
}
