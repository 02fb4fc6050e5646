package ui

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scenarios/internal/artifacts"
)

// previewLimit caps how much of a file the preview pane renders.
const previewLimit = 64 * 1024

// Source serves artifact contents for previews and downloads.
type Source interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Download(ctx context.Context, keys []string, cacheDir string) ([]string, error)
}

type previewMsg struct {
	key  string
	data []byte
	err  error
}

type downloadMsg struct {
	key  string
	path string
	err  error
}

// Model is the artifact browser: a navigable directory tree on the left and
// a file preview on the right.
type Model struct {
	source   Source
	cacheDir string
	styles   Styles

	crumbs  []*artifacts.Node // navigation stack, root first
	entries []*artifacts.Node // children of the current directory
	cursor  int

	preview    viewport.Model
	previewKey string
	loading    bool
	status     string
	err        error

	width  int
	height int
}

// New builds the browser over an artifact tree.
func New(root *artifacts.Node, source Source, cacheDir string) Model {
	m := Model{
		source:   source,
		cacheDir: cacheDir,
		styles:   DefaultStyles(),
		crumbs:   []*artifacts.Node{root},
		preview:  viewport.New(60, 20),
	}
	m.entries = root.SortedChildren()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.preview.Width = m.previewWidth()
		m.preview.Height = m.paneHeight()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case previewMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.previewKey = msg.key
		m.preview.SetContent(renderPreview(msg.data))
		m.preview.GotoTop()
		return m, nil

	case downloadMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = "saved " + msg.path
		return m, nil
	}

	var cmd tea.Cmd
	m.preview, cmd = m.preview.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}

	case "enter", "l", "right":
		selected := m.selected()
		if selected == nil {
			break
		}
		if selected.IsLeaf() {
			key := m.selectedKey()
			m.loading = true
			m.status = ""
			return m, m.fetchCmd(key)
		}
		m.crumbs = append(m.crumbs, selected)
		m.entries = selected.SortedChildren()
		m.cursor = 0

	case "esc", "backspace", "h", "left":
		if len(m.crumbs) > 1 {
			leaving := m.crumbs[len(m.crumbs)-1]
			m.crumbs = m.crumbs[:len(m.crumbs)-1]
			m.entries = m.currentDir().SortedChildren()
			m.cursor = indexOf(m.entries, leaving.Name)
		}

	case "d":
		selected := m.selected()
		if selected == nil || !selected.IsLeaf() {
			break
		}
		key := m.selectedKey()
		m.loading = true
		m.status = ""
		return m, m.downloadCmd(key)

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) fetchCmd(key string) tea.Cmd {
	return func() tea.Msg {
		data, err := m.source.Fetch(context.Background(), key)
		return previewMsg{key: key, data: data, err: err}
	}
}

func (m Model) downloadCmd(key string) tea.Cmd {
	return func() tea.Msg {
		paths, err := m.source.Download(context.Background(), []string{key}, m.cacheDir)
		out := downloadMsg{key: key, err: err}
		if err == nil && len(paths) > 0 {
			out.path = paths[0]
		}
		return out
	}
}

func (m Model) currentDir() *artifacts.Node {
	return m.crumbs[len(m.crumbs)-1]
}

func (m Model) selected() *artifacts.Node {
	if m.cursor < 0 || m.cursor >= len(m.entries) {
		return nil
	}
	return m.entries[m.cursor]
}

// selectedKey joins the breadcrumb names with the selected entry into the
// object key the entry came from.
func (m Model) selectedKey() string {
	parts := make([]string, 0, len(m.crumbs))
	for _, crumb := range m.crumbs[1:] {
		parts = append(parts, crumb.Name)
	}
	if sel := m.selected(); sel != nil {
		parts = append(parts, sel.Name)
	}
	return path.Join(parts...)
}

func (m Model) breadcrumb() string {
	parts := make([]string, 0, len(m.crumbs))
	for _, crumb := range m.crumbs[1:] {
		parts = append(parts, crumb.Name)
	}
	if len(parts) == 0 {
		return "/"
	}
	return strings.Join(parts, " / ")
}

func indexOf(nodes []*artifacts.Node, name string) int {
	for i, n := range nodes {
		if n.Name == name {
			return i
		}
	}
	return 0
}

// renderPreview trims binary garbage and oversized payloads down to
// something a terminal can show.
func renderPreview(data []byte) string {
	if len(data) > previewLimit {
		data = data[:previewLimit]
	}
	if !utf8.Valid(data) {
		return fmt.Sprintf("(binary content, %d bytes)", len(data))
	}
	return string(data)
}

func (m Model) previewWidth() int {
	w := m.width - m.listWidth() - 6
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) listWidth() int {
	return 36
}

func (m Model) paneHeight() int {
	h := m.height - 4
	if h < 5 {
		h = 5
	}
	return h
}

// View implements tea.Model.
func (m Model) View() string {
	header := m.styles.Title.Render("scenarios dashboard") + "  " +
		m.styles.Crumb.Render(m.breadcrumb())

	var list strings.Builder
	for i, entry := range m.entries {
		name := entry.Name
		style := m.styles.Item
		if !entry.IsLeaf() {
			name += "/"
			style = m.styles.Dir
		}
		line := "  " + style.Render(name)
		if i == m.cursor {
			line = m.styles.Selected.Render("> " + name)
		}
		list.WriteString(line + "\n")
	}
	if len(m.entries) == 0 {
		list.WriteString(m.styles.Muted.Render("(empty)"))
	}

	left := m.styles.Pane.Width(m.listWidth()).Height(m.paneHeight()).Render(list.String())

	right := m.styles.Muted.Render("select a file and press enter to preview")
	switch {
	case m.err != nil:
		right = m.styles.ErrText.Render(m.err.Error())
	case m.loading:
		right = m.styles.Status.Render("loading…")
	case m.previewKey != "":
		right = m.styles.Muted.Render(m.previewKey) + "\n" + m.preview.View()
	}
	rightPane := m.styles.Pane.Width(m.previewWidth()).Height(m.paneHeight()).Render(right)

	footer := m.styles.Help.Render("↑/↓ move · enter open · backspace up · d download · q quit")
	if m.status != "" {
		footer = m.styles.Status.Render(m.status) + "  " + footer
	}

	return header + "\n" +
		lipgloss.JoinHorizontal(lipgloss.Top, left, rightPane) + "\n" +
		footer
}
