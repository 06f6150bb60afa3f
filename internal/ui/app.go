package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justyntemme/readium-t/internal/api"
	"github.com/justyntemme/readium-t/internal/config"
	"github.com/justyntemme/readium-t/internal/reader"
	"github.com/justyntemme/readium-t/internal/ui/styles"
	"github.com/justyntemme/readium-t/internal/ui/views"
)

// App is the main application model
type App struct {
	config *config.Config
	client *api.Client
	keys   KeyMap

	currentView views.ViewType

	width  int
	height int

	// View models
	libraryView *views.LibraryView
	readerView  *views.ReaderView
	uploadView  *views.UploadView
	detailsView *views.BookDetailsView

	err       error
	statusMsg string
	showHelp  bool
}

// NewApp creates a new application instance. svc is shared by every book
// opened in the reader.
func NewApp(cfg *config.Config, client *api.Client, svc reader.Services) *App {
	styles.SetCurrentTheme(cfg.Theme)

	return &App{
		config:      cfg,
		client:      client,
		keys:        DefaultKeyMap(),
		currentView: views.ViewLibrary,
		width:       80,
		height:      24,
		libraryView: views.NewLibraryView(client, cfg),
		readerView:  views.NewReaderView(svc, cfg),
		uploadView:  views.NewUploadView(client),
		detailsView: views.NewBookDetailsView(client),
	}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.getCurrentView().Init(),
		tea.SetWindowTitle("readium-t"),
	)
}

// Close releases the open book, if any
func (a *App) Close() {
	a.readerView.Close()
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		for _, v := range a.allViews() {
			v.SetSize(msg.Width, msg.Height)
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.Close()
			return a, tea.Quit
		}
		if a.showHelp {
			if key.Matches(msg, a.keys.Help) || key.Matches(msg, a.keys.Escape) {
				a.showHelp = false
			}
			return a, nil
		}
		if !a.capturing() {
			switch {
			case key.Matches(msg, a.keys.Quit):
				if a.currentView != views.ViewLibrary {
					return a.switchView(views.ViewLibrary)
				}
				a.Close()
				return a, tea.Quit

			case key.Matches(msg, a.keys.Help):
				a.showHelp = true
				return a, nil

			case key.Matches(msg, a.keys.Escape):
				if a.currentView != views.ViewLibrary {
					return a.switchView(views.ViewLibrary)
				}
			}
		}

	case views.OpenBookMsg:
		if err := a.config.AddRecentlyRead(msg.Book.ID, msg.Book.Title, msg.Book.ResumePage()); err != nil {
			a.err = fmt.Errorf("save recently read: %w", err)
		}
		a.readerView.SetBook(msg.Book)
		return a.switchView(views.ViewReader)

	case views.ShowBookDetailsMsg:
		a.detailsView.SetBook(msg.Book)
		return a.switchView(views.ViewDetails)

	case views.BookChangedMsg:
		a.libraryView.Update(msg)
		if a.currentView == views.ViewLibrary {
			return a, nil
		}

	case views.ThemeChangedMsg:
		a.statusMsg = "Theme: " + msg.Name
		return a, nil

	case views.ErrorMsg:
		a.err = msg.Err
		return a, nil

	case views.ClearErrorMsg:
		a.err = nil
		return a, nil

	case views.SwitchViewMsg:
		return a.switchView(msg.View)
	}

	// Delegate to current view
	var cmd tea.Cmd
	switch a.currentView {
	case views.ViewLibrary:
		_, cmd = a.libraryView.Update(msg)
	case views.ViewReader:
		_, cmd = a.readerView.Update(msg)
	case views.ViewUpload:
		_, cmd = a.uploadView.Update(msg)
	case views.ViewDetails:
		_, cmd = a.detailsView.Update(msg)
	}
	return a, cmd
}

// View implements tea.Model
func (a *App) View() string {
	if a.showHelp {
		return a.renderHelp()
	}

	content := a.getCurrentView().View()

	if a.err != nil {
		errorBar := styles.ErrorStyle.Render("Error: " + a.err.Error())
		content = lipgloss.JoinVertical(lipgloss.Left, content, errorBar)
	} else if a.statusMsg != "" && a.currentView == views.ViewLibrary {
		content = lipgloss.JoinVertical(lipgloss.Left, content, styles.StatusBar.Render(a.statusMsg))
	}

	return content
}

func (a *App) capturing() bool {
	c, ok := a.getCurrentView().(views.Capturer)
	return ok && c.Capturing()
}

// switchView changes the current view and initializes it
func (a *App) switchView(view views.ViewType) (*App, tea.Cmd) {
	if a.currentView == views.ViewReader && view != views.ViewReader {
		a.readerView.Close()
	}

	a.currentView = view
	a.err = nil
	a.statusMsg = ""

	return a, a.getCurrentView().Init()
}

func (a *App) allViews() []views.View {
	return []views.View{a.libraryView, a.readerView, a.uploadView, a.detailsView}
}

// getCurrentView returns the current view model
func (a *App) getCurrentView() views.View {
	switch a.currentView {
	case views.ViewReader:
		return a.readerView
	case views.ViewUpload:
		return a.uploadView
	case views.ViewDetails:
		return a.detailsView
	default:
		return a.libraryView
	}
}

// renderHelp renders the help overlay from the key map
func (a *App) renderHelp() string {
	var b strings.Builder
	b.WriteString(styles.DialogTitle.Render("Keyboard Shortcuts"))
	for _, section := range a.keys.helpSections() {
		b.WriteString("\n" + styles.HelpKey.Render(section.title) + "\n")
		for _, binding := range section.bindings {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc))
		}
	}
	b.WriteString("\n" + styles.MutedText.Render("Popups: 1-5 color, ctrl+s save, esc dismiss"))

	help := styles.Dialog.Width(56).Render(b.String())
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, help)
}
