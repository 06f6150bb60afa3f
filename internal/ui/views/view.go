package views

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justyntemme/readium-t/pkg/models"
)

// ViewType represents different screens in the application
type ViewType int

const (
	ViewLibrary ViewType = iota
	ViewReader
	ViewUpload
	ViewDetails
)

// String returns the name of the view
func (v ViewType) String() string {
	switch v {
	case ViewLibrary:
		return "Library"
	case ViewReader:
		return "Reader"
	case ViewUpload:
		return "Upload"
	case ViewDetails:
		return "Book Details"
	default:
		return "Unknown"
	}
}

// View is the interface that all views must implement
type View interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (View, tea.Cmd)
	View() string
	SetSize(width, height int)
}

// Capturer is implemented by views that sometimes need every key,
// including the ones the app handles globally.
type Capturer interface {
	Capturing() bool
}

// Message types for inter-view communication

// OpenBookMsg is sent when a book is selected to read
type OpenBookMsg struct {
	Book models.Book
}

// ShowBookDetailsMsg opens the details view for a book
type ShowBookDetailsMsg struct {
	Book models.Book
}

// BookChangedMsg reports a book whose status changed or that was uploaded
type BookChangedMsg struct {
	Book models.Book
}

// ErrorMsg is sent when an error occurs
type ErrorMsg struct {
	Err error
}

// ClearErrorMsg clears the current error
type ClearErrorMsg struct{}

// SwitchViewMsg requests a view switch
type SwitchViewMsg struct {
	View ViewType
}

// ThemeChangedMsg is sent after the theme was cycled
type ThemeChangedMsg struct {
	Name string
}

// Helper functions to create messages

// SendError creates an error message command
func SendError(err error) tea.Cmd {
	return func() tea.Msg {
		return ErrorMsg{Err: err}
	}
}

// ClearError creates a command to clear errors
func ClearError() tea.Cmd {
	return func() tea.Msg {
		return ClearErrorMsg{}
	}
}

// SwitchTo creates a command to switch views
func SwitchTo(view ViewType) tea.Cmd {
	return func() tea.Msg {
		return SwitchViewMsg{View: view}
	}
}

// NotifyThemeChanged creates a theme change message
func NotifyThemeChanged(name string) tea.Cmd {
	return func() tea.Msg {
		return ThemeChangedMsg{Name: name}
	}
}
