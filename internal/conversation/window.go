// Package conversation turns stored chat history into the bounded prompt sent
// to the language model.
package conversation

import (
	"strings"
	"unicode/utf8"

	"mindmate/internal/model"
)

const (
	DefaultWindowSize = 10
	MaxTitleRunes     = 128

	humanPrefix = "Human: "
	aiPrefix    = "AI: "
)

// Window keeps the most recent formatted turns of a conversation.
type Window struct {
	size int
}

func NewWindow(size int) Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return Window{size: size}
}

func (w Window) Size() int {
	return w.size
}

// FormatTurn renders one turn as a prompt line.
func FormatTurn(role, content string) string {
	if role == model.RoleAssistant {
		return aiPrefix + content
	}
	return humanPrefix + content
}

// Lines formats history plus the next user input and keeps the last Size lines.
// An empty next input adds nothing.
func (w Window) Lines(history []model.Message, next string) []string {
	lines := make([]string, 0, len(history)+1)
	for _, m := range history {
		lines = append(lines, FormatTurn(m.Role, m.Content))
	}
	if next = strings.TrimSpace(next); next != "" {
		lines = append(lines, FormatTurn(model.RoleUser, next))
	}
	if len(lines) > w.size {
		lines = lines[len(lines)-w.size:]
	}
	return lines
}

// Build returns the window as a single newline-joined prompt.
func (w Window) Build(history []model.Message, next string) string {
	return strings.Join(w.Lines(history, next), "\n")
}

// DeriveTitle names a session after its first message.
func DeriveTitle(text string) string {
	title := strings.Join(strings.Fields(text), " ")
	if title == "" {
		return model.PlaceholderSessionTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleRunes {
		runes := []rune(title)
		title = strings.TrimSpace(string(runes[:MaxTitleRunes]))
	}
	return title
}
