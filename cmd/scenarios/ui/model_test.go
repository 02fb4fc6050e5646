package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenarios/internal/artifacts"
)

type fakeSource struct {
	fetched    []string
	downloaded []string
	content    map[string][]byte
	err        error
}

func (f *fakeSource) Fetch(_ context.Context, key string) ([]byte, error) {
	f.fetched = append(f.fetched, key)
	if f.err != nil {
		return nil, f.err
	}
	return f.content[key], nil
}

func (f *fakeSource) Download(_ context.Context, keys []string, cacheDir string) ([]string, error) {
	f.downloaded = append(f.downloaded, keys...)
	if f.err != nil {
		return nil, f.err
	}
	return []string{cacheDir + "/" + keys[0]}, nil
}

func testTree() *artifacts.Node {
	return artifacts.BuildTree([]string{
		"flu_2024/job1/CA/config.json",
		"flu_2024/job1/CA/timeline.csv",
		"flu_2024/job1/TX/timeline.csv",
	})
}

func press(m tea.Model, key string) tea.Model {
	var msg tea.Msg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next
}

func descend(t *testing.T, m tea.Model, levels int) tea.Model {
	t.Helper()
	for i := 0; i < levels; i++ {
		m = press(m, "enter")
	}
	return m
}

func TestNavigation(t *testing.T) {
	source := &fakeSource{}
	var m tea.Model = New(testTree(), source, "/cache")

	t.Run("starts at experiment level", func(t *testing.T) {
		assert.Contains(t, m.View(), "flu_2024/")
	})

	t.Run("enter descends to regions", func(t *testing.T) {
		m = descend(t, m, 2) // flu_2024 -> job1
		view := m.View()
		assert.Contains(t, view, "CA/")
		assert.Contains(t, view, "TX/")
		assert.Contains(t, view, "flu_2024 / job1")
	})

	t.Run("cursor moves and wraps at edges", func(t *testing.T) {
		m = press(m, "j")
		assert.Contains(t, m.View(), "> TX/")
		m = press(m, "j") // already at the bottom
		assert.Contains(t, m.View(), "> TX/")
		m = press(m, "k")
		assert.Contains(t, m.View(), "> CA/")
	})

	t.Run("backspace ascends and restores selection", func(t *testing.T) {
		m = press(m, "esc")
		assert.Contains(t, m.View(), "> job1/")
		m = press(m, "enter")
		assert.Contains(t, m.View(), "> CA/")
	})
}

func TestPreview(t *testing.T) {
	source := &fakeSource{content: map[string][]byte{
		"flu_2024/job1/CA/config.json": []byte(`{"POP_SIZE": 39500000}`),
	}}
	var m tea.Model = New(testTree(), source, "/cache")
	m = descend(t, m, 3) // flu_2024 -> job1 -> CA

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()
	require.Equal(t, []string{"flu_2024/job1/CA/config.json"}, source.fetched)

	next, _ = next.Update(msg)
	assert.Contains(t, next.View(), "POP_SIZE")
	assert.Contains(t, next.View(), "flu_2024/job1/CA/config.json")
}

func TestPreviewError(t *testing.T) {
	source := &fakeSource{err: errors.New("access denied")}
	var m tea.Model = New(testTree(), source, "/cache")
	m = descend(t, m, 3)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	next, _ = next.Update(cmd())
	assert.Contains(t, next.View(), "access denied")
}

func TestDownload(t *testing.T) {
	source := &fakeSource{content: map[string][]byte{}}
	var m tea.Model = New(testTree(), source, "/cache")
	m = descend(t, m, 3)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	require.NotNil(t, cmd)
	next, _ = next.Update(cmd())
	assert.Equal(t, []string{"flu_2024/job1/CA/config.json"}, source.downloaded)
	assert.Contains(t, next.View(), "saved /cache/flu_2024/job1/CA/config.json")
}

func TestDownloadIgnoredOnDirectories(t *testing.T) {
	source := &fakeSource{}
	var m tea.Model = New(testTree(), source, "/cache")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	assert.Nil(t, cmd)
	assert.Empty(t, source.downloaded)
}

func TestQuit(t *testing.T) {
	var m tea.Model = New(testTree(), &fakeSource{}, "/cache")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestRenderPreviewBinary(t *testing.T) {
	out := renderPreview([]byte{0xff, 0xfe, 0x00})
	assert.Contains(t, out, "binary content")
}
