package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Rrens/bloombuddy/internal/chat"
	"github.com/Rrens/bloombuddy/internal/connectivity"
	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/topic"
)

const helpText = `Commands:
  /topics            list topics
  /topic <name>      open a topic
  /history [topic]   list archived conversations
  /load <n|id>       resume an archived conversation
  /export [file]     save the current chat to a text file
  /clear             delete the saved history of every topic
  /offline, /online  simulate losing or regaining the network
  /status            show connection and queue state
  /quit              leave
Anything else is sent as a message.`

type repl struct {
	ctx         context.Context
	in          io.Reader
	out         *printer
	coordinator *chat.Coordinator
	monitor     *connectivity.Monitor
	catalog     *topic.Catalog
	opened      func()

	// listed holds the last /history result for /load by number
	listed []domain.Conversation
}

func (r *repl) run() {
	r.out.line("Type /help for commands. Pick a topic with /topic <name>: %s", strings.Join(r.catalog.Names(), ", "))

	scanner := bufio.NewScanner(r.in)
	for r.ctx.Err() == nil && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.command(line); quit {
				return
			}
			continue
		}
		r.send(line)
	}
}

func (r *repl) command(line string) bool {
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	switch fields[0] {
	case "/quit", "/exit":
		r.coordinator.Close()
		return true
	case "/help":
		r.out.line("%s", helpText)
	case "/topics":
		for _, name := range r.catalog.Names() {
			cfg, _ := r.catalog.Lookup(name)
			r.out.line("  %-10s %s", name, cfg.Title)
		}
	case "/topic":
		r.openTopic(arg)
	case "/history":
		r.history(arg)
	case "/load":
		r.load(arg)
	case "/export":
		r.export(arg)
	case "/clear":
		if err := r.coordinator.ClearHistory(r.ctx); err != nil {
			r.out.line("Cannot clear history: %v", err)
			return false
		}
		r.out.line("Chat history cleared.")
	case "/offline":
		r.monitor.Set(false)
	case "/online":
		r.monitor.Set(true)
	case "/status":
		r.out.line("state=%s online=%t topic=%q", r.coordinator.State(), r.monitor.Online(), r.coordinator.Session().Topic())
	default:
		r.out.line("Unknown command %s. Type /help.", fields[0])
	}
	return false
}

func (r *repl) openTopic(name string) {
	if err := r.coordinator.Open(r.ctx, name); err != nil {
		r.out.line("Cannot open topic %q: %v", name, err)
		return
	}
	cfg, _ := r.catalog.Lookup(name)
	r.out.line("== %s ==", cfg.Title)
	r.printTranscript()
	if r.opened != nil {
		r.opened()
	}
}

func (r *repl) send(content string) {
	_, err := r.coordinator.Submit(r.ctx, content)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrNoSession):
		r.out.line("Pick a topic first with /topic <name>.")
	case errors.Is(err, chat.ErrBusy):
		r.out.line("Still waiting for the last reply.")
	case errors.Is(err, chat.ErrEmptyMessage):
	default:
		// Enqueue failures were already reported by the coordinator
	}
}

func (r *repl) history(topicName string) {
	conversations, err := r.coordinator.Conversations(r.ctx, topicName)
	if err != nil {
		r.out.line("Cannot list conversations: %v", err)
		return
	}
	r.listed = conversations
	if len(conversations) == 0 {
		r.out.line("No saved conversations yet.")
		return
	}
	for i, c := range conversations {
		title := c.Topic
		if cfg, ok := r.catalog.Lookup(c.Topic); ok {
			title = cfg.Title
		}
		r.out.line("  %2d. %s  %s", i+1, c.StartedAt.Local().Format("2006-01-02 15:04"), title)
	}
}

func (r *repl) load(arg string) {
	id := arg
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(r.listed) {
			r.out.line("No conversation %d; run /history first.", n)
			return
		}
		id = r.listed[n-1].ID
	}
	if id == "" {
		r.out.line("Usage: /load <n|id>")
		return
	}

	if err := r.coordinator.Resume(r.ctx, id); err != nil {
		r.out.line("Cannot load conversation: %v", err)
		return
	}
	r.printTranscript()
	if r.opened != nil {
		r.opened()
	}
}

func (r *repl) export(path string) {
	session := r.coordinator.Session()
	cfg, ok := r.catalog.Lookup(session.Topic())
	if !ok {
		r.out.line("Open a topic first.")
		return
	}
	if path == "" {
		path = chat.ExportFilename(cfg.Title)
	}

	f, err := os.Create(path)
	if err != nil {
		r.out.line("Cannot create %s: %v", path, err)
		return
	}
	err = chat.ExportTranscript(f, session, r.catalog, time.Now())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, chat.ErrNothingToExport) {
			r.out.line("Nothing to export yet.")
			return
		}
		r.out.line("Export failed: %v", err)
		return
	}
	r.out.line("Chat exported to %s", path)
}

func (r *repl) printTranscript() {
	for _, m := range r.coordinator.Session().Transcript() {
		r.out.message(m)
	}
}

