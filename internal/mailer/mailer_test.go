package mailer

import (
	"context"
	"sync"
	"testing"
	"time"

	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	mu   sync.Mutex
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestEnqueueDeliversAsynchronously(t *testing.T) {
	dialer := &fakeDialer{}
	m := New(dialer, "noreply@funkostore.local")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	m.Enqueue(Message{To: "ops@funkostore.local", Subject: "Funko created", Body: "<p>hi</p>"})
	waitFor(t, func() bool { return dialer.count() == 1 })

	msg := dialer.sent[0]
	if got := msg.GetHeader("To"); len(got) != 1 || got[0] != "ops@funkostore.local" {
		t.Errorf("To = %v", got)
	}
	if got := msg.GetHeader("Subject"); len(got) != 1 || got[0] != "Funko created" {
		t.Errorf("Subject = %v", got)
	}
}

func TestEnqueueNeverBlocksCaller(t *testing.T) {
	// no worker running: the backlog just grows
	m := New(&fakeDialer{}, "noreply@funkostore.local")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			m.Enqueue(Message{To: "ops@funkostore.local", Subject: "s"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked the caller")
	}
	if m.Depth() != 1000 {
		t.Errorf("backlog depth = %d, want 1000", m.Depth())
	}
}

func TestDeliveryFailureIsDroppedNotRetried(t *testing.T) {
	dialer := &fakeDialer{err: context.DeadlineExceeded}
	m := New(dialer, "noreply@funkostore.local")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	m.Enqueue(Message{To: "ops@funkostore.local", Subject: "s"})
	waitFor(t, func() bool { return m.Depth() == 0 })
}

func TestDrainFlushesBacklogOnShutdown(t *testing.T) {
	dialer := &fakeDialer{}
	m := New(dialer, "noreply@funkostore.local")
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	for i := 0; i < 10; i++ {
		m.Enqueue(Message{To: "ops@funkostore.local", Subject: "s"})
	}
	cancel()
	m.Drain(2 * time.Second)

	if dialer.count() != 10 {
		t.Errorf("delivered %d of 10 before shutdown", dialer.count())
	}
}

func TestLogOnlyMailerSwallowsMessages(t *testing.T) {
	m := NewSMTP("", 0, "", "", "noreply@funkostore.local")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	m.Enqueue(Message{To: "ops@funkostore.local", Subject: "s"})
	waitFor(t, func() bool { return m.Depth() == 0 })
}
