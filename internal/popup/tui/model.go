// Package tui renders the popup controller in the terminal with bubbletea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/luispater/feeOptOut/internal/popup"
	"github.com/luispater/feeOptOut/internal/portal"
)

type state int

const (
	stateLoading state = iota
	stateSelecting
	stateRunning
	stateDone
	stateFailed
)

type feesLoadedMsg struct {
	fees []portal.Fee
	err  error
}

type progressMsg popup.Progress

type runFinishedMsg struct {
	err error
}

// Model is the popup screen: fee checkboxes, then the progress of the run.
type Model struct {
	ctx       context.Context
	cancel    context.CancelFunc
	ctrl      *popup.Controller
	state     state
	selection *popup.Selection
	cursor    int
	progress  popup.Progress
	notice    string
	err       error
	events    chan tea.Msg
	spinner   spinner.Model
	keys      keyMap
	help      help.Model
}

func New(parent context.Context, ctrl *popup.Controller) Model {
	ctx, cancel := context.WithCancel(parent)
	return Model{
		ctx:     ctx,
		cancel:  cancel,
		ctrl:    ctrl,
		state:   stateLoading,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(cursorStyle)),
		keys:    defaultKeyMap(),
		help:    help.New(),
	}
}

// Err is the error the run ended with, if any.
func (m Model) Err() error {
	return m.err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadFees())
}

func (m Model) loadFees() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		fees, err := ctrl.LoadFees(ctx)
		return feesLoadedMsg{fees: fees, err: err}
	}
}

func (m Model) startRun(selected []portal.Fee) (Model, tea.Cmd) {
	events := make(chan tea.Msg, 8)
	ctrl, ctx := m.ctrl, m.ctx
	go func() {
		defer close(events)
		send := func(msg tea.Msg) {
			select {
			case events <- msg:
			case <-ctx.Done():
			}
		}
		err := ctrl.Run(ctx, selected, func(p popup.Progress) {
			send(progressMsg(p))
		})
		send(runFinishedMsg{err: err})
	}()

	m.events = events
	m.state = stateRunning
	m.notice = ""
	return m, waitForEvent(events)
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case feesLoadedMsg:
		if msg.err != nil {
			m.state = stateFailed
			m.err = msg.err
			return m, nil
		}
		m.state = stateSelecting
		m.err = nil
		m.selection = popup.NewSelection(msg.fees)
		m.cursor = 0
		return m, nil

	case progressMsg:
		m.progress = popup.Progress(msg)
		return m, waitForEvent(m.events)

	case runFinishedMsg:
		if msg.err != nil {
			m.state = stateFailed
			m.err = msg.err
		} else {
			m.state = stateDone
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}

	switch m.state {
	case stateSelecting:
		rows := m.selection.Len() + 1
		switch {
		case key.Matches(msg, m.keys.Up):
			m.cursor = (m.cursor - 1 + rows) % rows
		case key.Matches(msg, m.keys.Down):
			m.cursor = (m.cursor + 1) % rows
		case key.Matches(msg, m.keys.Toggle):
			if m.cursor == 0 {
				m.selection.ToggleAll()
			} else {
				m.selection.Toggle(m.cursor - 1)
			}
			m.notice = ""
		case key.Matches(msg, m.keys.All):
			m.selection.ToggleAll()
			m.notice = ""
		case key.Matches(msg, m.keys.Submit):
			selected := m.selection.Selected()
			if len(selected) == 0 {
				m.notice = popup.ErrNoSelection.Error()
				return m, nil
			}
			return m.startRun(selected)
		case key.Matches(msg, m.keys.Reload):
			m.state = stateLoading
			return m, m.loadFees()
		}
	case stateFailed:
		if key.Matches(msg, m.keys.Reload) && !errors.Is(m.err, popup.ErrRetriesExhausted) {
			m.state = stateLoading
			m.err = nil
			return m, m.loadFees()
		}
	case stateDone:
		if key.Matches(msg, m.keys.Submit) {
			m.cancel()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("McGill Fee Opt-out"))
	b.WriteString("\n")

	switch m.state {
	case stateLoading:
		b.WriteString(m.spinner.View() + " Reading fees from the page...\n")
	case stateSelecting:
		b.WriteString(m.selectionView())
	case stateRunning:
		b.WriteString(m.progressView())
	case stateDone:
		b.WriteString(checkedStyle.Render("All opt-out requests have been processed!") + "\n")
		b.WriteString(mutedStyle.Render("press enter to close") + "\n")
	case stateFailed:
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
		if !errors.Is(m.err, popup.ErrRetriesExhausted) {
			b.WriteString(mutedStyle.Render("press r to try again") + "\n")
		}
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func checkbox(checked bool) string {
	if checked {
		return checkedStyle.Render("[x]")
	}
	return "[ ]"
}

func (m Model) selectionView() string {
	var b strings.Builder
	rows := make([]string, 0, m.selection.Len()+1)
	rows = append(rows, fmt.Sprintf("%s Select all", checkbox(m.selection.AllChecked())))
	for i := 0; i < m.selection.Len(); i++ {
		rows = append(rows, fmt.Sprintf("%s %s", checkbox(m.selection.IsChecked(i)), m.selection.Fee(i).Name))
	}
	for i, row := range rows {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> ") + row + "\n")
		} else {
			b.WriteString("  " + row + "\n")
		}
	}
	if m.notice != "" {
		b.WriteString("\n" + errorStyle.Render(m.notice) + "\n")
	}
	return b.String()
}

func (m Model) progressView() string {
	current := m.progress.Current
	if current == "" {
		current = "-"
	}
	next := m.progress.Next
	if next == "" {
		next = "None"
	}

	lines := []string{
		fmt.Sprintf("%s Current: %s", m.spinner.View(), current),
		fmt.Sprintf("  Next:    %s", next),
	}
	if len(m.progress.Later) > 0 {
		lines = append(lines, fmt.Sprintf("  Then:    %s", strings.Join(m.progress.Later, ", ")))
	}
	if m.progress.Attempt > 1 {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("  attempt %d", m.progress.Attempt)))
	}
	return boxStyle.Render(strings.Join(lines, "\n")) + "\n" +
		warningStyle.Render("Do not use the browser window until all fees are processed.") + "\n"
}
