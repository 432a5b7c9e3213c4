package chat

import (
	"strings"
	"sync"
)

// InputBuffer is the pending chat input. User typing, suggestion picks, and
// finished transcriptions all write here; the next send drains it.
type InputBuffer struct {
	mu   sync.Mutex
	text string
}

// Set replaces the buffered text.
func (b *InputBuffer) Set(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
}

// Append adds text to the buffer, separated by a space when needed.
func (b *InputBuffer) Append(text string) {
	text = strings.TrimRight(text, " \t\r\n")
	if text == "" {
		return
	}
	b.mu.Lock()
	if b.text == "" {
		b.text = text
	} else {
		b.text = b.text + " " + text
	}
	b.mu.Unlock()
}

// Peek returns the buffered text without clearing it.
func (b *InputBuffer) Peek() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Take returns the buffered text and clears the buffer.
func (b *InputBuffer) Take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := b.text
	b.text = ""
	return text
}
