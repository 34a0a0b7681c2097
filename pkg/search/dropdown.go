package search

import "strings"

// Key is a navigation key sent from the search box.
type Key string

const (
	ArrowDown Key = "ArrowDown"
	ArrowUp   Key = "ArrowUp"
	Enter     Key = "Enter"
	Escape    Key = "Escape"
)

// Dropdown is the state of one autocomplete list. Highlight is -1 when
// nothing is highlighted and never exceeds len(Results)-1.
type Dropdown struct {
	Term      string   `json:"term"`
	Results   []Option `json:"results"`
	Highlight int      `json:"highlight"`
	Open      bool     `json:"open"`
}

// Selection is what Enter commits.
type Selection struct {
	Option   Option `json:"option"`
	Freeform bool   `json:"freeform"`
}

func NewDropdown() *Dropdown {
	return &Dropdown{Highlight: -1}
}

// Show replaces the results for term and resets the highlight.
func (d *Dropdown) Show(term string, results []Option) {
	d.Term = term
	d.Results = results
	d.Highlight = -1
	d.Open = len(results) > 0
}

func (d *Dropdown) Close() {
	d.Open = false
	d.Highlight = -1
}

// Press applies a key. Enter returns the highlighted option or, with nothing
// highlighted, the typed text as a freeform selection. ok is false when
// there is nothing to commit.
func (d *Dropdown) Press(k Key) (sel Selection, ok bool) {
	switch k {
	case ArrowDown:
		if len(d.Results) == 0 {
			return sel, false
		}
		d.Open = true
		if d.Highlight < len(d.Results)-1 {
			d.Highlight++
		}
	case ArrowUp:
		if d.Highlight > -1 {
			d.Highlight--
		}
	case Escape:
		d.Close()
	case Enter:
		if d.Open && d.Highlight >= 0 && d.Highlight < len(d.Results) {
			sel = Selection{Option: d.Results[d.Highlight]}
		} else {
			term := strings.TrimSpace(d.Term)
			if term == "" {
				return sel, false
			}
			sel = Selection{Option: Option{Name: term}, Freeform: true}
		}
		d.Term = ""
		d.Results = nil
		d.Close()
		return sel, true
	}
	return sel, false
}
