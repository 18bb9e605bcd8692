// Package tui is the interactive list. Store calls run as tea.Cmds and
// their results are applied on the event loop, so a slow remote request
// never blocks input.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/Makepad-fr/tada-sync/internal/model"
	"github.com/Makepad-fr/tada-sync/internal/todo"
)

type Options struct {
	Timeout time.Duration // per store call
	Logger  zerolog.Logger
}

// listItem adapts model.Todo to bubbles/list.Item
type listItem struct {
	todo model.Todo
}

func (i listItem) Title() string       { return i.todo.Text }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.todo.Text }

// itemDelegate renders one line per todo.
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	box := mutedStyle.Render(boxUnchecked)
	text := it.todo.Text
	if it.todo.Done {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}
	line := box + " " + text
	if it.todo.CreatedAt != nil {
		line += "  " + mutedStyle.Render(it.todo.CreatedAt.Local().Format("Jan 2 15:04"))
	}
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprint(w, prefix+line)
}

// Messages carrying store results back to Update.
type (
	loadedMsg struct{ err error }
	opMsg     struct {
		op  string
		err error
	}
)

type Model struct {
	backend todo.Backend
	editor  todo.Editor // nil when the backend cannot edit
	opts    Options

	list    list.Model
	ti      textinput.Model
	spinner spinner.Model
	filter  model.Filter

	adding     bool
	addPending bool
	editing    bool
	editID     int64

	pending int    // store calls in flight
	alert   string // last failure, until dismissed

	width, height int
}

var (
	addBind    = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	toggleBind = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle"))
	editBind   = key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit"))
	deleteBind = key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	filterBind = key.NewBinding(key.WithKeys("tab", "1", "2", "3"), key.WithHelp("tab/1-3", "filter"))
	quitBind   = key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit"))
)

// New builds the model. Backends that load on activation are loaded by Init.
func New(b todo.Backend, opts Options) Model {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle

	ed, _ := b.(todo.Editor)
	extra := []key.Binding{addBind, toggleBind, deleteBind, filterBind, quitBind}
	if ed != nil {
		extra = append(extra, editBind)
	}
	l.AdditionalShortHelpKeys = func() []key.Binding { return extra }
	l.AdditionalFullHelpKeys = func() []key.Binding { return extra }

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200
	ti.Cursor.SetMode(cursor.CursorStatic)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	m := Model{
		backend: b,
		editor:  ed,
		opts:    opts,
		list:    l,
		ti:      ti,
		spinner: sp,
		width:   80,
		height:  24,
	}
	if _, ok := b.(todo.Loader); ok {
		m.pending = 1
	}
	m.refresh()
	return m
}

// Run starts the program on the alternate screen and blocks until quit.
func Run(b todo.Backend, opts Options) error {
	_, err := tea.NewProgram(New(b, opts), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	ld, ok := m.backend.(todo.Loader)
	if !ok {
		return nil
	}
	timeout := m.opts.Timeout
	load := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return loadedMsg{err: ld.Load(ctx)}
	}
	return tea.Batch(load, m.spinner.Tick)
}

// call runs fn off the event loop and reports back with an opMsg.
func (m *Model) call(op string, fn func(ctx context.Context) error) tea.Cmd {
	timeout := m.opts.Timeout
	cmd := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return opMsg{op: op, err: fn(ctx)}
	}
	m.pending++
	if m.pending == 1 {
		return tea.Batch(cmd, m.spinner.Tick)
	}
	return cmd
}

// refresh rebuilds the list from the backend's view.
func (m *Model) refresh() {
	all := m.backend.Todos()
	view := model.View(all, m.filter)
	items := make([]list.Item, 0, len(view))
	for _, t := range view {
		items = append(items, listItem{todo: t})
	}
	m.list.SetItems(items)

	dn, pn := model.Stats(all)
	m.list.Title = fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("Todos"),
		successStyle.Render("✔"), dn,
		pendingStyle.Render("•"), pn,
		accentStyle.Render("Total"), len(all),
	)
}

func (m Model) selected() (model.Todo, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return model.Todo{}, false
	}
	return it.todo, true
}

func (m Model) addBlocked() bool {
	if m.addPending {
		return true
	}
	busy, ok := m.backend.(todo.Busy)
	return ok && busy.Loading()
}

func (m *Model) closeInput() {
	m.adding, m.editing, m.addPending = false, false, false
	m.ti.SetValue("")
	m.ti.Blur()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case loadedMsg:
		m.pending--
		if msg.err != nil {
			m.alert = "load: " + msg.err.Error()
		}
		m.refresh()
		return m, nil

	case opMsg:
		m.pending--
		m.apply(msg)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.pending <= 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	k, isKey := msg.(tea.KeyMsg)
	if isKey && k.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.adding || m.editing {
		if isKey {
			return m.updateInput(k)
		}
		var cmd tea.Cmd
		m.ti, cmd = m.ti.Update(msg)
		return m, cmd
	}

	if isKey {
		switch k.String() {
		case "q":
			return m, tea.Quit
		case "esc":
			m.alert = ""
			return m, nil
		case "tab":
			m.filter = m.filter.Next()
			m.refresh()
			return m, nil
		case "1", "2", "3":
			m.filter = model.Filters()[k.String()[0]-'1']
			m.refresh()
			return m, nil
		case " ":
			t, ok := m.selected()
			if !ok {
				return m, nil
			}
			return m, m.call("toggle", func(ctx context.Context) error {
				return m.backend.Toggle(ctx, t.ID)
			})
		case "d":
			t, ok := m.selected()
			if !ok {
				return m, nil
			}
			return m, m.call("delete", func(ctx context.Context) error {
				return m.backend.Delete(ctx, t.ID)
			})
		case "a":
			m.adding = true
			m.ti.SetValue("")
			m.ti.Placeholder = "What needs to be done?"
			m.ti.Focus()
			return m, nil
		case "e":
			if m.editor == nil {
				return m, nil
			}
			t, ok := m.selected()
			if !ok || !m.editor.BeginEdit(t.ID) {
				return m, nil
			}
			m.editing, m.editID = true, t.ID
			m.ti.SetValue(t.Text)
			m.ti.CursorEnd()
			m.ti.Placeholder = "Edit item..."
			m.ti.Focus()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateInput(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.addPending {
		// input is disabled until the add resolves
		return m, nil
	}
	if m.editing && (k.String() == "enter" || k.String() == "esc") {
		// leaving the field commits, like losing focus
		id, ed, text := m.editID, m.editor, m.ti.Value()
		m.closeInput()
		return m, m.call("edit", func(ctx context.Context) error {
			return ed.Edit(ctx, id, text)
		})
	}

	switch k.String() {
	case "esc":
		m.closeInput()
		return m, nil

	case "enter":
		text := m.ti.Value()
		if m.addBlocked() {
			return m, nil
		}
		m.addPending = true
		m.ti.Blur()
		return m, m.call("add", func(ctx context.Context) error {
			_, err := m.backend.Add(ctx, text)
			return err
		})
	}

	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(k)
	return m, cmd
}

// apply folds a finished store call into the view state. Failures of every
// operation are surfaced the same way.
func (m *Model) apply(msg opMsg) {
	if msg.op == "add" {
		m.addPending = false
		switch {
		case msg.err == nil:
			m.closeInput()
		case errors.Is(msg.err, todo.ErrEmptyText):
			m.ti.Focus()
			return
		default:
			// keep the text so the user can retry
			m.ti.Focus()
		}
	}
	if msg.err != nil {
		m.alert = msg.op + ": " + msg.err.Error()
		m.opts.Logger.Debug().Str("operation", msg.op).Err(msg.err).Msg("Store call failed")
	}
}

func (m Model) View() string {
	w, h := m.width, m.height
	listHeight := h - 6
	if m.adding || m.editing {
		listHeight -= 3
	}
	if m.alert != "" {
		listHeight--
	}
	if listHeight < 3 {
		listHeight = 3
	}
	m.list.SetSize(w-4, listHeight)

	var b strings.Builder
	b.WriteString(m.tabs())
	if m.pending > 0 {
		b.WriteString("  " + m.spinner.View())
	}
	b.WriteString("\n")

	if len(m.list.Items()) == 0 {
		b.WriteString(m.list.Styles.Title.Render(m.list.Title) + "\n\n")
		b.WriteString(mutedStyle.Render("  (no todos)"))
	} else {
		b.WriteString(m.list.View())
	}

	if m.adding || m.editing {
		title := "Add new item"
		if m.editing {
			title = "Edit item"
		}
		if m.addPending {
			title += " " + m.spinner.View()
		}
		b.WriteString("\n" + frameStyle.Render(title+"\n"+m.ti.View()))
	}
	if m.alert != "" {
		b.WriteString("\n" + errorStyle.Render("✖ "+m.alert) + helpStyle.Render("  (esc to dismiss)"))
	}
	return frameStyle.Render(b.String())
}

func (m Model) tabs() string {
	parts := make([]string, 0, 3)
	for _, f := range model.Filters() {
		if f == m.filter {
			parts = append(parts, accentStyle.Render("["+f.String()+"]"))
		} else {
			parts = append(parts, mutedStyle.Render(f.String()))
		}
	}
	return strings.Join(parts, " ")
}
