package views

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/justyntemme/readium-t/internal/api"
	"github.com/justyntemme/readium-t/internal/ui/styles"
	"github.com/justyntemme/readium-t/pkg/models"
)

// UploadView displays a file picker for uploading PDFs
type UploadView struct {
	client     *api.Client
	filepicker filepicker.Model
	progress   progress.Model

	selected  string
	size      string
	uploading bool
	percent   int
	updates   <-chan tea.Msg
	result    *uploadResult
	err       error

	width  int
	height int
}

type uploadResult struct {
	book *models.Book
	err  error
}

type uploadProgressMsg struct {
	percent int
}

type uploadCompleteMsg struct {
	book *models.Book
	err  error
}

type clearResultMsg struct{}

type clearUploadErrorMsg struct{}

// NewUploadView creates a new upload view
func NewUploadView(client *api.Client) *UploadView {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	fp := filepicker.New()
	fp.AllowedTypes = []string{".pdf", ".PDF"}
	fp.CurrentDirectory = cwd
	fp.ShowHidden = false
	fp.ShowPermissions = false
	fp.ShowSize = true
	fp.Height = 15

	return &UploadView{
		client:     client,
		filepicker: fp,
		progress:   progress.New(progress.WithDefaultGradient()),
		width:      80,
		height:     24,
	}
}

// Init implements View
func (v *UploadView) Init() tea.Cmd {
	return v.filepicker.Init()
}

// Update implements View
func (v *UploadView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q":
			if v.uploading {
				return v, nil
			}
			return v, SwitchTo(ViewLibrary)
		}

	case uploadProgressMsg:
		v.percent = msg.percent
		return v, waitForUpload(v.updates)

	case uploadCompleteMsg:
		v.uploading = false
		v.updates = nil
		v.result = &uploadResult{book: msg.book, err: msg.err}
		cmds := []tea.Cmd{tea.Tick(3*time.Second, func(time.Time) tea.Msg { return clearResultMsg{} })}
		if msg.err == nil {
			book := *msg.book
			cmds = append(cmds, func() tea.Msg { return BookChangedMsg{Book: book} })
		}
		return v, tea.Batch(cmds...)

	case clearResultMsg:
		v.result = nil
		v.selected = ""
		return v, nil

	case clearUploadErrorMsg:
		v.err = nil
		return v, nil
	}

	if v.uploading {
		return v, nil
	}

	var cmd tea.Cmd
	v.filepicker, cmd = v.filepicker.Update(msg)

	if didSelect, path := v.filepicker.DidSelectFile(msg); didSelect {
		v.selected = path
		v.size = ""
		if info, err := os.Stat(path); err == nil {
			v.size = humanize.Bytes(uint64(info.Size()))
		}
		v.uploading = true
		v.percent = 0
		v.result = nil
		return v, v.uploadFile(path)
	}

	if didSelect, path := v.filepicker.DidSelectDisabledFile(msg); didSelect {
		v.err = fmt.Errorf("cannot select %s (not a pdf file)", filepath.Base(path))
		return v, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return clearUploadErrorMsg{} })
	}

	return v, cmd
}

// View implements View
func (v *UploadView) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleBar.Render(" Add Book ") + "\n\n")
	b.WriteString(styles.Help.Render("Navigate to a .pdf file and press Enter to upload") + "\n")
	b.WriteString(styles.Help.Render("Press Esc to go back") + "\n\n")

	if v.uploading {
		name := filepath.Base(v.selected)
		if v.size != "" {
			name += " (" + v.size + ")"
		}
		b.WriteString(styles.SecondaryText.Render("Uploading "+name) + "\n")
		b.WriteString(v.progress.ViewAs(float64(v.percent)/100) + "\n\n")
	}

	if v.result != nil {
		if v.result.err == nil {
			msg := fmt.Sprintf("Uploaded: %s by %s", v.result.book.Title, v.result.book.AuthorName())
			b.WriteString(styles.SuccessStyle.Render(msg) + "\n\n")
		} else {
			b.WriteString(styles.ErrorStyle.Render("Upload failed: "+v.result.err.Error()) + "\n\n")
		}
	}

	if v.err != nil {
		b.WriteString(styles.ErrorStyle.Render(v.err.Error()) + "\n\n")
	}

	b.WriteString(v.filepicker.View())

	b.WriteString("\n\n")
	help := []string{
		styles.HelpKey.Render("↑/↓") + styles.Help.Render(" navigate"),
		styles.HelpKey.Render("enter") + styles.Help.Render(" select"),
		styles.HelpKey.Render("esc") + styles.Help.Render(" back"),
	}
	b.WriteString(strings.Join(help, "  "))

	content := styles.Dialog.Width(v.width - 4).Render(b.String())
	return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center, content)
}

// SetSize implements View
func (v *UploadView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.filepicker.Height = max(5, height-17)
	v.progress.Width = max(10, min(60, width-12))
}

// uploadFile starts the upload and streams its progress back as messages
func (v *UploadView) uploadFile(path string) tea.Cmd {
	updates := make(chan tea.Msg, 8)
	v.updates = updates

	go func() {
		defer close(updates)
		book, err := v.client.UploadBook(context.Background(), path, func(percent int) {
			select {
			case updates <- uploadProgressMsg{percent: percent}:
			default:
			}
		})
		updates <- uploadCompleteMsg{book: book, err: err}
	}()

	return waitForUpload(updates)
}

func waitForUpload(updates <-chan tea.Msg) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return nil
		}
		return msg
	}
}
