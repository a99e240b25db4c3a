package popup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luispater/feeOptOut/internal/portal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTab struct {
	url      string
	urlErr   error
	fees     []portal.Fee
	respond  func(call int, req portal.Request) (portal.Response, error)
	mu       sync.Mutex
	requests []portal.Request
	inFlight atomic.Int32
	overlaps atomic.Int32
}

func (f *fakeTab) ActiveURL(context.Context) (string, error) {
	return f.url, f.urlErr
}

func (f *fakeTab) Send(_ context.Context, req portal.Request) (portal.Response, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlaps.Add(1)
	}
	defer f.inFlight.Add(-1)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	call := len(f.requests)
	f.mu.Unlock()

	if req.Action == portal.ActionGetFeeList {
		return portal.Response{Fees: f.fees, Success: true, ShouldContinue: true}, nil
	}
	if f.respond != nil {
		return f.respond(call, req)
	}
	// let a concurrent caller show up if there is one
	time.Sleep(time.Millisecond)
	return portal.Response{Success: true, ShouldContinue: true}, nil
}

func (f *fakeTab) optOutNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0)
	for _, r := range f.requests {
		if r.Action == portal.ActionOptOut {
			names = append(names, r.Fees[0].Name)
		}
	}
	return names
}

const portalURL = "https://horizon.mcgill.ca/pban1/bztkopto.pm_opt_out"

func testOptions() Options {
	return Options{
		Gate:          "horizon.mcgill.ca/pban1/bztkopto",
		AdvanceDelay:  5 * time.Second,
		RetryDelay:    5 * time.Second,
		MaxRetries:    2,
		MaxInProgress: 3,
	}
}

func newTestController(tab Tab) (*Controller, *[]time.Duration) {
	slept := make([]time.Duration, 0)
	c := NewController(tab, testOptions())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

var (
	feeA = portal.Fee{Name: "Student Services", RowIndex: 1}
	feeB = portal.Fee{Name: "Legal Clinic", RowIndex: 3}
)

func TestCheckPage(t *testing.T) {
	c, _ := newTestController(&fakeTab{url: portalURL})
	assert.NoError(t, c.CheckPage(context.Background()))

	c, _ = newTestController(&fakeTab{url: "https://www.mcgill.ca/"})
	assert.ErrorIs(t, c.CheckPage(context.Background()), ErrWrongPage)

	c, _ = newTestController(&fakeTab{urlErr: errors.New("tab closed")})
	assert.ErrorIs(t, c.CheckPage(context.Background()), ErrConnection)
}

func TestLoadFees(t *testing.T) {
	tab := &fakeTab{url: portalURL, fees: []portal.Fee{feeA, feeB}}
	c, _ := newTestController(tab)

	fees, err := c.LoadFees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []portal.Fee{feeA, feeB}, fees)

	c, _ = newTestController(&fakeTab{url: portalURL})
	_, err = c.LoadFees(context.Background())
	assert.ErrorIs(t, err, ErrNoFees)

	wrong := &fakeTab{url: "https://www.mcgill.ca/", fees: []portal.Fee{feeA}}
	c, _ = newTestController(wrong)
	_, err = c.LoadFees(context.Background())
	assert.ErrorIs(t, err, ErrWrongPage)
	assert.Empty(t, wrong.requests)
}

func TestRunProcessesInOrderOneAtATime(t *testing.T) {
	tab := &fakeTab{url: portalURL}
	c, slept := newTestController(tab)

	progress := make([]Progress, 0)
	err := c.Run(context.Background(), []portal.Fee{feeA, feeB}, func(p Progress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Student Services", "Legal Clinic"}, tab.optOutNames())
	assert.Zero(t, tab.overlaps.Load())
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *slept)

	assert.Equal(t, []Progress{
		{Current: "Student Services", Next: "Legal Clinic", Attempt: 1},
		{Current: "Legal Clinic", Attempt: 1},
		{Done: true},
	}, progress)

	assert.Equal(t, "Legal Clinic", tab.requests[0].NextFee)
	assert.False(t, tab.requests[0].IsLastFee)
	assert.True(t, tab.requests[1].IsLastFee)
}

func TestRunRetriesSameFee(t *testing.T) {
	tab := &fakeTab{url: portalURL}
	tab.respond = func(call int, req portal.Request) (portal.Response, error) {
		switch call {
		case 1:
			return portal.Response{ShouldContinue: true, Error: "fee row not found"}, nil
		case 2:
			return portal.Response{InProgress: true, ShouldContinue: true}, nil
		case 3:
			return portal.Response{}, errors.New("connection reset")
		}
		return portal.Response{Success: true, ShouldContinue: true}, nil
	}
	c, _ := newTestController(tab)
	c.opts.MaxRetries = 5

	require.NoError(t, c.Run(context.Background(), []portal.Fee{feeA, feeB}, nil))
	assert.Equal(t, []string{
		"Student Services", "Student Services", "Student Services", "Student Services",
		"Legal Clinic",
	}, tab.optOutNames())
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	tab := &fakeTab{url: portalURL}
	tab.respond = func(int, portal.Request) (portal.Response, error) {
		return portal.Response{ShouldContinue: true, Error: "opt-out link not found"}, nil
	}
	c, slept := newTestController(tab)

	err := c.Run(context.Background(), []portal.Fee{feeA, feeB}, nil)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "Student Services")
	assert.Contains(t, err.Error(), "opt-out link not found")

	// first attempt plus MaxRetries retries, never reaching the second fee
	assert.Equal(t, []string{"Student Services", "Student Services", "Student Services"}, tab.optOutNames())
	assert.Len(t, *slept, 2)
}

func TestRunBusyPageDoesNotUseRetries(t *testing.T) {
	tab := &fakeTab{url: portalURL}
	tab.respond = func(call int, _ portal.Request) (portal.Response, error) {
		switch call {
		case 1, 3, 4:
			return portal.Response{InProgress: true, ShouldContinue: true}, nil
		case 2, 5:
			return portal.Response{ShouldContinue: true, Error: "fee row not found"}, nil
		}
		return portal.Response{Success: true, ShouldContinue: true}, nil
	}
	c, _ := newTestController(tab)

	// three busy answers and two failures stay within both limits
	require.NoError(t, c.Run(context.Background(), []portal.Fee{feeA}, nil))
	assert.Len(t, tab.optOutNames(), 6)
}

func TestRunGivesUpWhenPageStaysBusy(t *testing.T) {
	tab := &fakeTab{url: portalURL}
	tab.respond = func(int, portal.Request) (portal.Response, error) {
		return portal.Response{InProgress: true, ShouldContinue: true}, nil
	}
	c, _ := newTestController(tab)

	err := c.Run(context.Background(), []portal.Fee{feeA}, nil)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "page stayed busy")
	assert.Len(t, tab.optOutNames(), 4)
}

func TestRunReportsLaterFees(t *testing.T) {
	feeC := portal.Fee{Name: "Campus Radio", RowIndex: 5}
	feeD := portal.Fee{Name: "Daycare", RowIndex: 7}
	c, _ := newTestController(&fakeTab{url: portalURL})

	progress := make([]Progress, 0)
	require.NoError(t, c.Run(context.Background(), []portal.Fee{feeA, feeB, feeC, feeD}, func(p Progress) {
		progress = append(progress, p)
	}))

	require.Len(t, progress, 5)
	assert.Equal(t, []string{"Campus Radio", "Daycare"}, progress[0].Later)
	assert.Equal(t, []string{"Daycare"}, progress[1].Later)
	assert.Empty(t, progress[2].Later)
}

func TestRunTimesOutSlowResponse(t *testing.T) {
	tab := &fakeTab{url: portalURL}
	tab.respond = func(call int, _ portal.Request) (portal.Response, error) {
		if call == 1 {
			return portal.Response{}, context.DeadlineExceeded
		}
		return portal.Response{Success: true, ShouldContinue: true}, nil
	}
	c, _ := newTestController(tab)
	c.opts.ResponseTimeout = time.Second

	require.NoError(t, c.Run(context.Background(), []portal.Fee{feeA}, nil))
	assert.Equal(t, []string{"Student Services", "Student Services"}, tab.optOutNames())
}

func TestRunEmptySelection(t *testing.T) {
	c, _ := newTestController(&fakeTab{url: portalURL})
	assert.ErrorIs(t, c.Run(context.Background(), nil, nil), ErrNoSelection)
}

func TestRunCancelled(t *testing.T) {
	tab := &fakeTab{url: portalURL}
	c, _ := newTestController(tab)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Run(ctx, []portal.Fee{feeA, feeB}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, tab.optOutNames(), 1)
}
