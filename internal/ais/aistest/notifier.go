package aistest

import (
	"context"
	"sync"

	"github.com/example/visa-rescheduler/internal/notify"
)

type Notification struct {
	Title notify.Title
	Msg   string
}

// Notifier records notifications instead of delivering them.
type Notifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *Notifier) Notify(_ context.Context, title notify.Title, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Title: title, Msg: msg})
}

func (n *Notifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

func (n *Notifier) Titles() []notify.Title {
	var out []notify.Title
	for _, s := range n.Sent() {
		out = append(out, s.Title)
	}
	return out
}

// Journal keeps appended entries in memory.
type Journal struct {
	mu      sync.Mutex
	Entries []string
}

func (j *Journal) Append(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Entries = append(j.Entries, msg)
}
