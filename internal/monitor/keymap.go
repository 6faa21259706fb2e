package monitor

import "fmt"

// KeyMap defines the keyboard shortcuts displayed in the footer.
type KeyMap struct {
	Results string
	Filter  string
	Back    string
	Quit    string
}

// DefaultKeyMap returns the default shortcut mapping.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Results: "enter",
		Filter:  "/",
		Back:    "esc",
		Quit:    "q",
	}
}

// HelpLine renders the footer help text for the target table.
func (k KeyMap) HelpLine() string {
	return fmt.Sprintf("[%s] results  [%s] filter  [%s] quit", k.Results, k.Filter, k.Quit)
}

// ResultsHelpLine renders the footer help text for the results view.
func (k KeyMap) ResultsHelpLine() string {
	return fmt.Sprintf("[%s] back  [up/down] scroll  [%s] quit", k.Back, k.Quit)
}

// FilterHelpLine renders the footer help text while editing the filter.
func (k KeyMap) FilterHelpLine() string {
	return fmt.Sprintf("[enter] apply  [%s] cancel", k.Back)
}
