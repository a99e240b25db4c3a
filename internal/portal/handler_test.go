package portal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleGetFeeList(t *testing.T) {
	agent, _ := newTestAgent(newFakeBrowser(mainURL, mainPage()))
	handler := NewHandler(agent)

	resp := handler.Handle(context.Background(), NewSession(), Request{Action: ActionGetFeeList})
	assert.True(t, resp.Success)
	assert.True(t, resp.ShouldContinue)
	assert.Len(t, resp.Fees, 2)
	assert.Equal(t, "Student Services", resp.Fees[0].Name)
}

func TestHandleOptOutTracksSession(t *testing.T) {
	browser := newFakeBrowser(mainURL, mainPage())
	agent, _ := newTestAgent(browser)
	handler := NewHandler(agent)
	session := NewSession()
	req := Request{Action: ActionOptOut, Fees: []Fee{{Name: "Student Services", RowIndex: 1}}, IsLastFee: true}

	resp := handler.Handle(context.Background(), session, req)
	assert.True(t, resp.Success)
	assert.True(t, resp.ShouldContinue)
	assert.Empty(t, resp.Error)
	assert.Equal(t, []Fee{{Name: "Student Services", RowIndex: 1}}, session.Completed())

	resp = handler.Handle(context.Background(), session, req)
	assert.True(t, resp.Success)
	assert.Len(t, browser.clicked(), 1)

	resp = handler.Handle(context.Background(), NewSession(), req)
	assert.True(t, resp.Success)
	assert.Len(t, browser.clicked(), 2)
}

func TestHandleOptOutRepeatedFeeName(t *testing.T) {
	browser := newFakeBrowser(mainURL, page(feeTable(
		feeRow("Student Society", "Opt-out"),
		feeRow("Student Society", "Opt-out"),
	)))
	agent, _ := newTestAgent(browser)
	handler := NewHandler(agent)
	session := NewSession()

	fall := Fee{Name: "Student Society", RowIndex: 1}
	winter := Fee{Name: "Student Society", RowIndex: 2}

	resp := handler.Handle(context.Background(), session, Request{Action: ActionOptOut, Fees: []Fee{fall}, NextFee: winter.Name})
	require.True(t, resp.Success)
	resp = handler.Handle(context.Background(), session, Request{Action: ActionOptOut, Fees: []Fee{winter}, IsLastFee: true})
	require.True(t, resp.Success)

	clicks := browser.clicked()
	require.Len(t, clicks, 2)
	assert.NotEqual(t, clicks[0], clicks[1])
	assert.Equal(t, []Fee{fall, winter}, session.Completed())
	assert.True(t, session.IsCompleted(winter))
	assert.False(t, session.IsCompleted(Fee{Name: "Student Society", RowIndex: 3}))
}

func TestHandleOptOutDuringWorkflow(t *testing.T) {
	browser := newFakeBrowser(confirmURL, confirmPage())
	agent, _ := newTestAgent(browser)
	handler := NewHandler(agent)

	resp := handler.Handle(context.Background(), NewSession(), Request{
		Action: ActionOptOut,
		Fees:   []Fee{{Name: "Legal Clinic", RowIndex: 3}},
	})
	assert.False(t, resp.Success)
	assert.True(t, resp.InProgress)
	assert.True(t, resp.ShouldContinue)
	assert.Empty(t, browser.clicked())
}

func TestHandleOptOutFailures(t *testing.T) {
	agent, _ := newTestAgent(newFakeBrowser(mainURL, mainPage()))
	handler := NewHandler(agent)
	session := NewSession()

	resp := handler.Handle(context.Background(), session, Request{
		Action: ActionOptOut,
		Fees:   []Fee{{Name: "Gone", RowIndex: 12}},
	})
	assert.False(t, resp.Success)
	assert.False(t, resp.InProgress)
	assert.True(t, resp.ShouldContinue)
	assert.Contains(t, resp.Error, ErrRowNotFound.Error())
	assert.Empty(t, session.Completed())

	resp = handler.Handle(context.Background(), session, Request{Action: ActionOptOut})
	assert.False(t, resp.Success)
	assert.Equal(t, "no fee given", resp.Error)

	resp = handler.Handle(context.Background(), session, Request{Action: "reload"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown action")
}

func TestSessionSender(t *testing.T) {
	agent, _ := newTestAgent(newFakeBrowser(mainURL, mainPage()))
	sender := SessionSender{Handler: NewHandler(agent), Session: NewSession()}

	resp, err := sender.Send(context.Background(), Request{Action: ActionGetFeeList})
	require.NoError(t, err)
	assert.Len(t, resp.Fees, 2)
	assert.NotEmpty(t, sender.Session.ID)
}
