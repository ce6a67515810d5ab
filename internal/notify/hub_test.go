package notify

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeConn struct {
	messages [][]byte
	failNext bool
	closed   bool
}

func (c *fakeConn) WriteText(data []byte) error {
	if c.failNext {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestBroadcastReachesEveryConnection(t *testing.T) {
	hub := NewHub("test")
	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		hub.Register(c)
	}

	n := hub.Broadcast(NewEnvelope("funko", EventCreated, int64(1), nil))
	if n != 3 {
		t.Fatalf("delivered %d, want 3", n)
	}
	for i, c := range conns {
		if len(c.messages) != 1 {
			t.Errorf("conn %d got %d messages", i, len(c.messages))
		}
	}
}

func TestBroadcastDropsDeadConnectionAndContinues(t *testing.T) {
	hub := NewHub("test")
	healthy1 := &fakeConn{}
	dead := &fakeConn{failNext: true}
	healthy2 := &fakeConn{}
	hub.Register(healthy1)
	hub.Register(dead)
	hub.Register(healthy2)

	n := hub.Broadcast(NewEnvelope("funko", EventUpdated, int64(2), nil))
	if n != 2 {
		t.Fatalf("delivered %d, want 2", n)
	}
	if !dead.closed {
		t.Error("dead connection not closed")
	}
	if hub.Count() != 2 {
		t.Errorf("hub count %d, want 2", hub.Count())
	}
	if len(healthy2.messages) != 1 {
		t.Error("delivery aborted after the dead connection")
	}

	// the dropped connection gets nothing on the next broadcast
	dead.failNext = false
	hub.Broadcast(NewEnvelope("funko", EventUpdated, int64(3), nil))
	if len(dead.messages) != 0 {
		t.Error("unregistered connection still receives broadcasts")
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub("test")
	id := hub.Register(&fakeConn{})
	hub.Unregister(id)
	hub.Unregister(id)
	if hub.Count() != 0 {
		t.Errorf("hub count %d, want 0", hub.Count())
	}
}

func TestCloseShutsEveryConnection(t *testing.T) {
	hub := NewHub("test")
	conns := []*fakeConn{{}, {}}
	for _, c := range conns {
		hub.Register(c)
	}
	hub.Close()
	for i, c := range conns {
		if !c.closed {
			t.Errorf("conn %d not closed", i)
		}
	}
	if hub.Count() != 0 {
		t.Errorf("hub count %d after close", hub.Count())
	}
}

func TestEnvelopeKeysFollowEntity(t *testing.T) {
	env := Envelope{
		Entity:    "categoria",
		Type:      EventDeleted,
		ID:        "abc-123",
		Payload:   nil,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	body := string(data)
	for _, want := range []string{`"categoriaId":"abc-123"`, `"categoria":null`, `"type":"DELETED"`, `"timestamp":"2024-05-01T12:00:00Z"`} {
		if !strings.Contains(body, want) {
			t.Errorf("envelope %s misses %s", body, want)
		}
	}
}
