package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	mainURL     = "https://horizon.mcgill.ca/pban1/bztkopto.pm_opt_out"
	confirmURL  = "https://horizon.mcgill.ca/pban1/bztkopto.pm_agree_opt_out?fee=SSF"
	finalURL    = "https://horizon.mcgill.ca/pban1/bztkopto.pm_confirm_opt_out"
	completeURL = "https://horizon.mcgill.ca/pban1/bztkopto.pm_opt_out_processing"
	otherURL    = "https://horizon.mcgill.ca/pban1/twbkwbis.P_GenMenu"
)

func page(body string) string {
	return "<!DOCTYPE html><html><head><title>Fee Opt-out</title></head><body>" + body + "</body></html>"
}

func feeTable(rows ...string) string {
	return `<table class="datadisplaytable"><tr><th>Fee</th><th>Amount</th><th>Term</th><th>Action</th></tr>` +
		strings.Join(rows, "") + `</table>`
}

func feeRow(name, linkText string) string {
	return fmt.Sprintf(`<tr><td> %s </td><td>$12.50</td><td>Fall 2024</td><td><a href="/pban1/bztkopto.pm_agree_opt_out?fee=%s">%s</a></td></tr>`,
		name, strings.ReplaceAll(name, " ", "_"), linkText)
}

func confirmPage() string {
	return page(`<form action="bztkopto.pm_confirm_opt_out" method="post">
<input type="hidden" name="fee" value="SSF">
<input type="submit" value="Cancel">
<input type="submit" value="Opt-out">
</form>`)
}

func goBackPage() string {
	return page(`<p>Your request has been processed.</p><form><input type="submit" value="Go Back"></form>`)
}

var errNoNode = errors.New("no node matches selector")

// fakeBrowser serves fixed HTML and resolves clicks against it with the same
// selector engine the agent uses.
type fakeBrowser struct {
	mu      sync.Mutex
	url     string
	html    string
	clicks  []string
	onClick func(b *fakeBrowser, selector string)
}

func newFakeBrowser(url, html string) *fakeBrowser {
	return &fakeBrowser{url: url, html: html}
}

func (b *fakeBrowser) URL(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.url, ctx.Err()
}

func (b *fakeBrowser) HTML(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.html, ctx.Err()
}

func (b *fakeBrowser) Click(_ context.Context, selector string) error {
	b.mu.Lock()
	doc, err := ParseDocument(b.url, b.html)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	if !doc.Has(selector) {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", errNoNode, selector)
	}
	b.clicks = append(b.clicks, selector)
	onClick := b.onClick
	b.mu.Unlock()

	if onClick != nil {
		onClick(b, selector)
	}
	return nil
}

func (b *fakeBrowser) navigate(url, html string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.url = url
	b.html = html
}

func (b *fakeBrowser) clicked() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.clicks))
	copy(out, b.clicks)
	return out
}

func testTiming() Timing {
	return Timing{
		StartupDelay:    time.Second,
		WatchInterval:   time.Second,
		ConfirmDelay:    2 * time.Second,
		AfterClickDelay: 2 * time.Second,
		GoBackDelay:     100 * time.Millisecond,
		ElementTimeout:  time.Second,
		PollInterval:    time.Second,
		PollAttempts:    3,
	}
}

// newTestAgent returns an agent whose delays return immediately and are
// recorded instead.
func newTestAgent(b Browser) (*Agent, *[]time.Duration) {
	slept := make([]time.Duration, 0)
	agent := NewAgent(b, testTiming())
	agent.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return agent, &slept
}
