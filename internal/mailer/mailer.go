// Package mailer implements the asynchronous notification mail queue.
package mailer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Message is a queued notification mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Dialer is the delivery surface; satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer holds an unbounded in-memory backlog consumed by a single worker
// goroutine. Enqueue never blocks the caller; delivery failures are logged
// and the message is dropped after send fails (no durable retry).
type Mailer struct {
	dialer Dialer
	from   string

	mu      sync.Mutex
	backlog []Message
	notify  chan struct{}
	done    chan struct{}
	stopped bool
}

func New(dialer Dialer, from string) *Mailer {
	return &Mailer{
		dialer: dialer,
		from:   from,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// NewSMTP builds a Mailer backed by a gomail SMTP dialer. An empty host
// yields a log-only mailer that records what it would have sent.
func NewSMTP(host string, port int, username, password, from string) *Mailer {
	if host == "" {
		return New(nil, from)
	}
	return New(gomail.NewDialer(host, port, username, password), from)
}

// Start runs the delivery worker until ctx is cancelled.
func (m *Mailer) Start(ctx context.Context) {
	go m.worker(ctx)
}

// Enqueue pushes a message onto the backlog and wakes the worker.
func (m *Mailer) Enqueue(msg Message) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.backlog = append(m.backlog, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Depth returns the current backlog size, used by the stats job.
func (m *Mailer) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.backlog)
}

func (m *Mailer) worker(ctx context.Context) {
	defer close(m.done)
	for {
		m.flush()
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.stopped = true
			m.mu.Unlock()
			m.flush()
			return
		case <-m.notify:
		}
	}
}

func (m *Mailer) flush() {
	for {
		m.mu.Lock()
		if len(m.backlog) == 0 {
			m.mu.Unlock()
			return
		}
		msg := m.backlog[0]
		m.backlog = m.backlog[1:]
		m.mu.Unlock()

		m.deliver(msg)
	}
}

func (m *Mailer) deliver(msg Message) {
	if m.dialer == nil || msg.To == "" {
		zap.L().Info("mail delivery skipped (smtp disabled)",
			zap.String("to", msg.To), zap.String("subject", msg.Subject))
		return
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.Body)

	if err := m.dialer.DialAndSend(gm); err != nil {
		zap.L().Error("mail delivery failed",
			zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	zap.L().Debug("mail delivered", zap.String("to", msg.To), zap.String("subject", msg.Subject))
}

// Drain waits for the worker to finish flushing after its context is
// cancelled, bounded by the given timeout.
func (m *Mailer) Drain(timeout time.Duration) {
	select {
	case <-m.done:
	case <-time.After(timeout):
		zap.L().Warn("mail queue drain timed out", zap.Int("remaining", m.Depth()))
	}
}
