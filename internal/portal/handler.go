package portal

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

const (
	ActionGetFeeList = "getFeeList"
	ActionOptOut     = "optOut"
)

// Request is a message from the popup to the page agent.
type Request struct {
	Action    string `json:"action"`
	Fees      []Fee  `json:"fees,omitempty"`
	NextFee   string `json:"nextFee,omitempty"`
	IsLastFee bool   `json:"isLastFee,omitempty"`
}

// Response answers a Request. ShouldContinue is always set; callers tell
// failure apart through Success, InProgress and Error.
type Response struct {
	Fees           []Fee  `json:"fees,omitempty"`
	Success        bool   `json:"success"`
	InProgress     bool   `json:"inProgress"`
	ShouldContinue bool   `json:"shouldContinue"`
	Error          string `json:"error,omitempty"`
}

func failure(err error) Response {
	return Response{ShouldContinue: true, Error: err.Error()}
}

type Handler struct {
	agent *Agent
}

func NewHandler(agent *Agent) *Handler {
	return &Handler{agent: agent}
}

func (h *Handler) Agent() *Agent {
	return h.agent
}

// Handle answers one message within the given session.
func (h *Handler) Handle(ctx context.Context, session *Session, req Request) Response {
	switch req.Action {
	case ActionGetFeeList:
		fees, err := h.agent.ExtractFees(ctx)
		if err != nil {
			log.Errorf("Extract fee list failed: %v", err)
			return failure(err)
		}
		return Response{Fees: fees, Success: true, ShouldContinue: true}
	case ActionOptOut:
		return h.optOut(ctx, session, req)
	default:
		return failure(fmt.Errorf("unknown action %q", req.Action))
	}
}

func (h *Handler) optOut(ctx context.Context, session *Session, req Request) Response {
	if len(req.Fees) == 0 {
		return failure(fmt.Errorf("no fee given"))
	}
	fee := req.Fees[0]

	if session.IsCompleted(fee) {
		log.Infof("Fee %s (row %d) was already processed, skipping", fee.Name, fee.RowIndex)
		return Response{Success: true, ShouldContinue: true}
	}

	kind, err := h.agent.ClassifyPage(ctx)
	if err != nil {
		return failure(err)
	}
	if kind.IsWorkflow() {
		log.Debugf("Page is at %s step, %s has to wait", kind, fee.Name)
		return Response{InProgress: true, ShouldContinue: true}
	}

	log.Infof("Processing opt-out for: %s (next: %s, last: %t)", fee.Name, req.NextFee, req.IsLastFee)
	ok, err := h.agent.OptOutFee(ctx, fee)
	if !ok {
		if err == nil {
			err = fmt.Errorf("opt-out of %s did not start", fee.Name)
		}
		log.Warnf("Unable to process %s: %v", fee.Name, err)
		return failure(err)
	}

	session.MarkCompleted(fee)
	return Response{Success: true, ShouldContinue: true}
}

// SessionSender binds a handler to one session so an in-process popup can
// talk to the agent directly.
type SessionSender struct {
	Handler *Handler
	Session *Session
}

func (s SessionSender) Send(ctx context.Context, req Request) (Response, error) {
	return s.Handler.Handle(ctx, s.Session, req), nil
}
