// Package tui is the terminal display for the watch command. The bubbletea
// Update loop is the only goroutine that touches the capture buffer's router;
// background producers reach it through the mailbox.
package tui

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/hpungsan/clipstash/internal/capture"
	"github.com/hpungsan/clipstash/internal/clipboard"
	"github.com/hpungsan/clipstash/internal/config"
	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/ops"
	"github.com/hpungsan/clipstash/internal/provider"
	"github.com/hpungsan/clipstash/internal/search"
	"github.com/hpungsan/clipstash/internal/storage"
)

const (
	defaultWrap     = 80
	panelBodyLines  = 6
	chromeLines     = 3 // title, status, help
	minBodyHeight   = 5
	listWidthFactor = 0.4
)

// Options wires the model to the rest of the process.
type Options struct {
	Store     *storage.Store
	Settings  *config.Manager
	Router    *capture.Router
	Mailbox   *capture.Mailbox
	Runner    *provider.Runner // nil when no provider is configured
	Clipboard clipboard.Writer
	Logger    *zap.Logger

	// GlamourStyle names a glamour standard style. Empty picks one from the
	// terminal background.
	GlamourStyle string
}

type (
	mailboxMsg      struct{}
	storeChangedMsg struct{}
)

// Model is the bubbletea model for the watch screen.
type Model struct {
	ctx    context.Context
	opts   Options
	log    *zap.Logger
	keys   keyMap
	styles Styles

	list     list.Model
	preview  viewport.Model
	input    textinput.Model
	help     help.Model
	renderer *glamour.TermRenderer

	changes     chan struct{}
	unsubscribe func()

	width, height int
	geometry      string
	expanded      bool
	searching     bool
	focusPreview  bool
	query         string
	previewID     string
	status        string
	statusErr     bool
}

// listItem adapts item.Item to list.DefaultItem.
type listItem struct {
	it item.Item
}

func (i listItem) Title() string { return i.it.Preview }
func (i listItem) Description() string {
	return fmt.Sprintf("%s · %s · %s · %d chars",
		i.it.Timestamp.Local().Format("01-02 15:04:05"), i.it.Type, i.it.Source, i.it.Length)
}
func (i listItem) FilterValue() string { return i.it.Preview }

// New builds the model and subscribes it to store changes. Call Close when done.
func New(ctx context.Context, opts Options) (Model, error) {
	if opts.Store == nil || opts.Settings == nil || opts.Router == nil || opts.Mailbox == nil {
		return Model{}, fmt.Errorf("tui: store, settings, router and mailbox are required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Items"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	l.Styles.Title = lipgloss.NewStyle().Bold(true).Foreground(accent)

	in := textinput.New()
	in.Prompt = "/ "
	in.Placeholder = "search previews"
	in.CharLimit = ops.MaxQueryLength

	renderer, err := newRenderer(opts.GlamourStyle, defaultWrap)
	if err != nil {
		log.Warn("markdown preview unavailable", zap.Error(err))
	}

	changes := make(chan struct{}, 1)
	unsubscribe := opts.Store.Subscribe(func(storage.Change) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	settings := opts.Settings.Get()
	m := Model{
		ctx:         ctx,
		opts:        opts,
		log:         log.Named("tui"),
		keys:        defaultKeyMap(),
		styles:      DefaultStyles(),
		list:        l,
		preview:     viewport.New(0, 0),
		input:       in,
		help:        help.New(),
		renderer:    renderer,
		changes:     changes,
		unsubscribe: unsubscribe,
		geometry:    settings.WindowGeometry,
		expanded:    settings.OCRExpanded,
	}
	m.reload()
	return m, nil
}

// Close detaches the model from the store.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Run shows the model until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	m, err := New(ctx, opts)
	if err != nil {
		return err
	}
	defer m.Close()

	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if stderrors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.waitForChange())
}

func (m Model) waitForEvent() tea.Cmd {
	ctx, mb := m.ctx, m.opts.Mailbox
	return func() tea.Msg {
		select {
		case <-mb.C():
			return mailboxMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) waitForChange() tea.Cmd {
	ctx, ch := m.ctx, m.changes
	return func() tea.Msg {
		select {
		case <-ch:
			return storeChangedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case mailboxMsg:
		if ev, ok := m.opts.Mailbox.Take(); ok {
			m.deliver(ev)
		}
		return m, m.waitForEvent()

	case storeChangedMsg:
		m.reload()
		return m, m.waitForChange()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m.forward(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Store):
		m.storeBuffer()
	case key.Matches(msg, m.keys.Copy):
		m.copySelected()
	case key.Matches(msg, m.keys.Delete):
		m.deleteSelected()
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.input.SetValue(m.query)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Clear):
		m.opts.Router.Buffer().Clear()
		m.setStatus("buffer cleared")
	case key.Matches(msg, m.keys.Rebuild):
		m.rebuild()
	case key.Matches(msg, m.keys.LLM):
		m.processLLM()
	case key.Matches(msg, m.keys.OCR):
		m.togglePanel()
	case key.Matches(msg, m.keys.Focus):
		m.focusPreview = !m.focusPreview
	default:
		return m.forward(msg)
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Accept):
		m.searching = false
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.searching = false
		m.input.Blur()
		m.input.SetValue("")
		m.query = ""
		m.reload()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if q := m.input.Value(); q != m.query {
		m.query = q
		m.reload()
	}
	return m, cmd
}

func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if _, isKey := msg.(tea.KeyMsg); isKey && m.focusPreview {
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd
	}
	m.list, cmd = m.list.Update(msg)
	m.syncPreview()
	return m, cmd
}

// deliver hands a background event to the router.
func (m *Model) deliver(ev capture.Event) {
	if !m.opts.Router.Deliver(ev) {
		return
	}
	if ev.Err != nil {
		m.setError(ev.Err)
		return
	}
	if ev.Source != item.SourceClipboard {
		m.setStatus(fmt.Sprintf("%s result received", ev.Source))
	}
}

func (m *Model) storeBuffer() {
	snap, ok := m.opts.Router.Buffer().Current()
	if !ok || item.IsBlank(snap.Text) {
		m.setStatusErr("buffer is empty")
		return
	}
	out, err := ops.Store(m.ctx, m.opts.Store, m.opts.Settings.Get(), ops.StoreInput{
		Text:   snap.Text,
		Source: snap.Source,
	})
	if err != nil {
		m.setError(err)
		return
	}
	msg := fmt.Sprintf("stored %s (%s)", out.ID, out.Type)
	if out.Cleanup != nil {
		msg += "; " + out.Cleanup.Message
	}
	m.setStatus(msg)
	m.reload()
}

func (m *Model) copySelected() {
	sel, ok := m.selected()
	if !ok {
		return
	}
	if m.opts.Clipboard == nil {
		m.setStatusErr("clipboard unavailable")
		return
	}
	out, err := ops.Fetch(m.ctx, m.opts.Store, ops.FetchInput{ID: sel.ID})
	if err != nil {
		m.setError(err)
		return
	}
	if err := m.opts.Clipboard.WriteAll(out.Text); err != nil {
		m.setStatusErr("copy failed: " + err.Error())
		return
	}
	m.setStatus(fmt.Sprintf("copied %d chars", out.Length))
}

func (m *Model) deleteSelected() {
	sel, ok := m.selected()
	if !ok {
		return
	}
	if _, err := ops.Delete(m.ctx, m.opts.Store, ops.DeleteInput{ID: sel.ID}); err != nil {
		m.setError(err)
		return
	}
	m.setStatus("deleted " + sel.ID)
	m.reload()
}

func (m *Model) rebuild() {
	out, err := ops.Rebuild(m.ctx, m.opts.Store)
	if err != nil {
		m.setError(err)
		return
	}
	m.setStatus(out.Message)
	m.reload()
}

func (m *Model) processLLM() {
	if m.opts.Runner == nil {
		m.setStatusErr("no LLM provider configured (set ANTHROPIC_API_KEY, OPENAI_API_KEY or GOOGLE_API_KEY)")
		return
	}
	snap, ok := m.opts.Router.Buffer().Current()
	if !ok || item.IsBlank(snap.Text) {
		m.setStatusErr("buffer is empty")
		return
	}
	settings := m.opts.Settings.Get()
	m.opts.Runner.Process(m.ctx, snap, settings.RenderPrompt(snap.Text))
	m.setStatus("sent to " + m.opts.Runner.Provider().Name())
}

func (m *Model) togglePanel() {
	expanded, err := m.opts.Settings.ToggleOCR()
	if err != nil {
		m.setError(err)
		return
	}
	m.expanded = expanded
	if m.width > 0 {
		m.resize(m.width, m.height)
	}
}

// reload re-runs the current search and refreshes the list.
// reload rebuilds the list from the whole index. The display is not paged,
// so every stored item stays reachable.
func (m *Model) reload() {
	all, err := m.opts.Store.Items(m.ctx)
	if err != nil {
		m.setError(err)
		return
	}
	matched, err := search.Filter(all, search.Query{Text: m.query})
	if err != nil {
		m.setError(err)
		return
	}
	items := make([]list.Item, len(matched))
	for i, it := range matched {
		items[i] = listItem{it: it}
	}
	m.list.SetItems(items)
	if n := len(items); n > 0 && m.list.Index() >= n {
		m.list.Select(n - 1)
	}

	if m.query == "" {
		m.list.Title = fmt.Sprintf("Items (%d)", len(matched))
	} else {
		m.list.Title = fmt.Sprintf("Items matching %q (%d)", m.query, len(matched))
	}
	m.previewID = ""
	m.syncPreview()
}

func (m *Model) selected() (item.Item, bool) {
	sel, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return item.Item{}, false
	}
	return sel.it, true
}

// syncPreview loads the selected item's body into the viewport when the
// selection has moved.
func (m *Model) syncPreview() {
	sel, ok := m.selected()
	if !ok {
		m.previewID = ""
		m.preview.SetContent(m.styles.Muted.Render("No items."))
		return
	}
	if sel.ID == m.previewID {
		return
	}
	m.previewID = sel.ID

	out, err := ops.Fetch(m.ctx, m.opts.Store, ops.FetchInput{ID: sel.ID})
	if err != nil {
		m.preview.SetContent(m.styles.Error.Render(err.Error()))
		return
	}
	m.preview.SetContent(m.renderBody(out.Type, out.Text))
	m.preview.GotoTop()
}

func (m *Model) renderBody(typ item.Type, text string) string {
	md := text
	switch typ {
	case item.TypeURL:
		return text
	case item.TypeCommand:
		md = "```sh\n" + text + "\n```"
	case item.TypeCode:
		md = "```\n" + text + "\n```"
	}
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		m.log.Debug("preview render failed", zap.Error(err))
		return text
	}
	return out
}

func (m *Model) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width, m.height = width, height
	m.help.Width = width

	bodyHeight := max(height-m.panelHeight()-chromeLines, minBodyHeight)
	listWidth := int(float64(width) * listWidthFactor)
	frameW := m.styles.Pane.GetHorizontalFrameSize()
	frameH := m.styles.Pane.GetVerticalFrameSize()

	m.list.SetSize(listWidth-frameW, bodyHeight-frameH)
	m.preview.Width = width - listWidth - frameW
	m.preview.Height = bodyHeight - frameH

	if r, err := newRenderer(m.opts.GlamourStyle, m.preview.Width); err == nil {
		m.renderer = r
	}
	m.previewID = ""
	m.syncPreview()

	geometry := fmt.Sprintf("%dx%d", width, height)
	if geometry != m.geometry {
		m.geometry = geometry
		if err := m.opts.Settings.SetGeometry(geometry); err != nil {
			m.log.Warn("failed to record geometry", zap.Error(err))
		}
	}
}

// panelHeight is the rendered height of the capture panel: a header line and
// an error line, plus the body when the panel is expanded.
func (m Model) panelHeight() int {
	inner := 2
	if m.expanded {
		inner += panelBodyLines
	}
	return inner + m.styles.Panel.GetVerticalFrameSize()
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setStatusErr(s string) {
	m.status, m.statusErr = s, true
}

func (m *Model) setError(err error) {
	m.log.Debug("action failed", zap.Error(err))
	m.setStatusErr(err.Error())
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	title := m.styles.Title.Render("clipstash") + "  " + m.styles.Muted.Render(m.opts.Store.BaseDir())

	listStyle, previewStyle := m.styles.Focused, m.styles.Pane
	if m.focusPreview {
		listStyle, previewStyle = m.styles.Pane, m.styles.Focused
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		listStyle.Render(m.list.View()),
		previewStyle.Render(m.preview.View()))

	var status string
	switch {
	case m.searching:
		status = m.input.View()
	case m.statusErr:
		status = m.styles.Error.Render(m.status)
	default:
		status = m.styles.Status.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.renderPanel(),
		body,
		status,
		m.help.View(m.keys))
}

func (m Model) renderPanel() string {
	inner := m.width - m.styles.Panel.GetHorizontalBorderSize()
	textWidth := inner - m.styles.Panel.GetHorizontalPadding()
	lines := m.panelHeight() - m.styles.Panel.GetVerticalFrameSize()

	snap, ok := m.opts.Router.Buffer().Current()
	var header string
	if ok {
		header = m.styles.Label.Render("Buffer") + " " + sourceBadge(string(snap.Source)) +
			m.styles.Muted.Render(fmt.Sprintf(" · epoch %d · %d chars", snap.Epoch, item.CountChars(snap.Text)))
	} else {
		header = m.styles.Muted.Render("Buffer empty. Clipboard captures land here.")
	}
	if m.opts.Runner != nil && m.opts.Runner.Busy() {
		header += m.styles.Muted.Render(" · processing")
	}

	out := []string{header}
	if snap.Err != "" {
		out = append(out, m.styles.Error.Render(clip("error: "+snap.Err, textWidth)))
	} else {
		out = append(out, "")
	}
	if ok && m.expanded {
		for i, line := range strings.Split(snap.Text, "\n") {
			if i == panelBodyLines {
				break
			}
			out = append(out, clip(line, textWidth))
		}
	} else if ok {
		out[0] += "  " + clip(firstLine(snap.Text), textWidth-lipgloss.Width(header)-2)
	}

	return m.styles.Panel.
		Width(inner).
		Height(lines).
		MaxHeight(lines + m.styles.Panel.GetVerticalBorderSize()).
		Render(strings.Join(out, "\n"))
}

func newRenderer(style string, wrap int) (*glamour.TermRenderer, error) {
	if wrap <= 0 {
		wrap = defaultWrap
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(wrap)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	return glamour.NewTermRenderer(opts...)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
