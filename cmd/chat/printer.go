package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/Rrens/bloombuddy/internal/chat"
	"github.com/Rrens/bloombuddy/internal/domain"
)

// printer renders the conversation to the terminal. Background drains write
// through it too, so every write holds the lock.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) message(m domain.Message) {
	speaker := "BloomBuddy"
	if m.Role == domain.RoleUser {
		speaker = "You"
	}
	p.line("%s [%s]: %s", speaker, m.Timestamp.Local().Format("15:04"), m.Content)
}

func (p *printer) status(online bool) {
	if online {
		p.line("-- online --")
		return
	}
	p.line("-- offline --")
}

// MessageAppended echoes assistant messages; the user's own lines are already on screen
func (p *printer) MessageAppended(m domain.Message) {
	if m.Role == domain.RoleUser {
		return
	}
	p.message(m)
}

func (p *printer) ErrorOccurred(f chat.Failure) {
	p.line("BloomBuddy: %s", f.Message)
}
