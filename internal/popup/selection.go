package popup

import "github.com/luispater/feeOptOut/internal/portal"

// Selection is the checkbox list: one box per fee plus a "select all" box
// that always reflects whether every fee is checked.
type Selection struct {
	fees    []portal.Fee
	checked []bool
	all     bool
}

func NewSelection(fees []portal.Fee) *Selection {
	return &Selection{
		fees:    fees,
		checked: make([]bool, len(fees)),
	}
}

func (s *Selection) Len() int {
	return len(s.fees)
}

func (s *Selection) Fee(i int) portal.Fee {
	return s.fees[i]
}

func (s *Selection) IsChecked(i int) bool {
	return i >= 0 && i < len(s.checked) && s.checked[i]
}

// Toggle flips one box and recomputes "select all".
func (s *Selection) Toggle(i int) {
	if i < 0 || i >= len(s.checked) {
		return
	}
	s.checked[i] = !s.checked[i]
	s.all = len(s.checked) > 0
	for _, c := range s.checked {
		if !c {
			s.all = false
			break
		}
	}
}

// ToggleAll flips "select all" and sets every box to match it.
func (s *Selection) ToggleAll() {
	s.all = !s.all
	for i := range s.checked {
		s.checked[i] = s.all
	}
}

func (s *Selection) AllChecked() bool {
	return s.all
}

// Selected returns the checked fees in list order.
func (s *Selection) Selected() []portal.Fee {
	out := make([]portal.Fee, 0)
	for i, c := range s.checked {
		if c {
			out = append(out, s.fees[i])
		}
	}
	return out
}
