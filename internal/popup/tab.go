// Package popup is the user-facing side of the opt-out flow: it checks that
// the tab is on the portal, lists the fees, keeps the selection and walks the
// selected fees through the page agent one at a time.
package popup

import (
	"context"

	"github.com/luispater/feeOptOut/internal/portal"
)

// Tab is the popup's view of the browser tab: where it is, and a message
// channel to the page agent running in it.
type Tab interface {
	ActiveURL(ctx context.Context) (string, error)
	Send(ctx context.Context, req portal.Request) (portal.Response, error)
}

// Locator reports the URL a browser tab is showing.
type Locator interface {
	URL(ctx context.Context) (string, error)
}

// LocalTab talks to an agent in the same process.
type LocalTab struct {
	Page   Locator
	Sender portal.SessionSender
}

func (t LocalTab) ActiveURL(ctx context.Context) (string, error) {
	return t.Page.URL(ctx)
}

func (t LocalTab) Send(ctx context.Context, req portal.Request) (portal.Response, error) {
	return t.Sender.Send(ctx, req)
}
