// Package portal is the page agent for the student-account fee opt-out
// workflow. It reads the live tab through a Browser, decides which step of the
// workflow is on screen and clicks the controls that move it forward.
package portal

import "errors"

// Kind classifies the page currently shown in the tab.
type Kind string

const (
	KindMain     Kind = "main"
	KindConfirm  Kind = "confirm"
	KindFinal    Kind = "final"
	KindComplete Kind = "complete"
	KindUnknown  Kind = "unknown"
)

// IsWorkflow reports whether the page is one of the confirmation pages the
// agent advances on its own.
func (k Kind) IsWorkflow() bool {
	return k == KindConfirm || k == KindFinal || k == KindComplete
}

// URL fragments of the server-rendered workflow pages.
const (
	ConfirmURLFragment  = "bztkopto.pm_agree_opt_out"
	FinalURLFragment    = "bztkopto.pm_confirm_opt_out"
	CompleteURLFragment = "bztkopto.pm_opt_out_processing"
)

const (
	FeeTableSelector     = "table.datadisplaytable"
	GoBackButtonSelector = `input[value="Go Back"]`
	SubmitInputSelector  = `form input[type="submit"]`

	OptOutButtonValue = "Opt-out"
	optLinkText       = "opt"
	minFeeCells       = 4
)

// Fee is one opt-out-able row of the fee table. RowIndex indexes the table's
// tr elements, header included, at the time the list was read.
type Fee struct {
	Name     string `json:"name"`
	RowIndex int    `json:"rowIndex"`
}

var (
	ErrTableNotFound  = errors.New("fee table not found")
	ErrRowNotFound    = errors.New("fee row not found")
	ErrRowChanged     = errors.New("fee row holds a different fee")
	ErrLinkNotFound   = errors.New("opt-out link not found")
	ErrButtonNotFound = errors.New("workflow button not found")
	ErrReturnTimeout  = errors.New("main page did not reappear")
)
