package popup

import (
	"testing"

	"github.com/luispater/feeOptOut/internal/portal"
	"github.com/stretchr/testify/assert"
)

func TestSelectionSelectAllSync(t *testing.T) {
	feeC := portal.Fee{Name: "Campus Radio", RowIndex: 5}
	s := NewSelection([]portal.Fee{feeA, feeB, feeC})

	assert.False(t, s.AllChecked())
	assert.Empty(t, s.Selected())

	s.ToggleAll()
	assert.True(t, s.AllChecked())
	assert.Equal(t, []portal.Fee{feeA, feeB, feeC}, s.Selected())

	s.Toggle(1)
	assert.False(t, s.AllChecked())
	assert.Equal(t, []portal.Fee{feeA, feeC}, s.Selected())

	s.Toggle(1)
	assert.True(t, s.AllChecked())

	s.ToggleAll()
	assert.False(t, s.AllChecked())
	assert.Empty(t, s.Selected())
}

func TestSelectionKeepsListOrder(t *testing.T) {
	s := NewSelection([]portal.Fee{feeA, feeB})
	s.Toggle(1)
	s.Toggle(0)
	s.Toggle(7)

	assert.True(t, s.IsChecked(0))
	assert.False(t, s.IsChecked(7))
	assert.Equal(t, []portal.Fee{feeA, feeB}, s.Selected())
	assert.True(t, s.AllChecked())
}

func TestSelectionEmpty(t *testing.T) {
	s := NewSelection(nil)
	s.ToggleAll()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Selected())
}
