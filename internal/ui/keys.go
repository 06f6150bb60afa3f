package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all application key bindings
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding

	// Actions
	Enter  key.Binding
	Escape key.Binding
	Quit   key.Binding
	Help   key.Binding
	Search key.Binding
	Theme  key.Binding

	// Library specific
	StatusFilter key.Binding
	Details      key.Binding
	Upload       key.Binding
	Refresh      key.Binding
	CycleStatus  key.Binding
	TriggerOcr   key.Binding

	// Reader specific
	NextPage  key.Binding
	PrevPage  key.Binding
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	ZoomReset key.Binding
	Select    key.Binding
	Colors    key.Binding
	Translate key.Binding
	Copy      key.Binding
	Overlay   key.Binding
	Notes     key.Binding
	Delete    key.Binding
}

// DefaultKeyMap returns the default vim-like key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("PgUp/^u", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("PgDn/^d", "page down"),
		),
		Home: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "top"),
		),
		End: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "bottom"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open / confirm"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back / dismiss"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Theme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "next theme"),
		),
		StatusFilter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "status filter"),
		),
		Details: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "details"),
		),
		Upload: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "upload pdf"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		CycleStatus: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "cycle status"),
		),
		TriggerOcr: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "run ocr"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("l", "right", "n"),
			key.WithHelp("l/→", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("h", "left", "p"),
			key.WithHelp("h/←", "previous page"),
		),
		ZoomIn: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "zoom in"),
		),
		ZoomOut: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "zoom out"),
		),
		ZoomReset: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "reset zoom"),
		),
		Select: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "select lines"),
		),
		Colors: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5"),
			key.WithHelp("1-5", "highlight color"),
		),
		Translate: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "translate selection"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy selection"),
		),
		Overlay: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "show translation"),
		),
		Notes: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "annotations panel"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("^x", "delete highlight"),
		),
	}
}

// helpSections groups bindings for the help overlay
func (k KeyMap) helpSections() []helpSection {
	return []helpSection{
		{"Navigation", []key.Binding{k.Up, k.Down, k.PageUp, k.PageDown, k.Home, k.End}},
		{"General", []key.Binding{k.Enter, k.Escape, k.Search, k.Theme, k.Help, k.Quit}},
		{"Library", []key.Binding{k.StatusFilter, k.Details, k.Upload, k.Refresh, k.CycleStatus, k.TriggerOcr}},
		{"Reader", []key.Binding{
			k.NextPage, k.PrevPage, k.ZoomIn, k.ZoomOut, k.ZoomReset,
			k.Select, k.Colors, k.Translate, k.Copy, k.Overlay, k.Notes, k.Delete,
		}},
	}
}

type helpSection struct {
	title    string
	bindings []key.Binding
}
