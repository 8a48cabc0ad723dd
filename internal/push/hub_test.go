package push

import (
	"context"
	"testing"
	"time"

	"taskping/internal/model"
	"taskping/pkg/logx"
)

func testHub() *Hub {
	return NewHub(Config{SendTimeout: 200 * time.Millisecond, RatePerSec: 1000}, logx.Nop())
}

func TestSendNotConnected(t *testing.T) {
	t.Parallel()
	h := testHub()
	if got := h.Send(context.Background(), 42, model.NotificationPayload{}); got != NotConnected {
		t.Fatalf("Send = %v, want NotConnected", got)
	}
}

func TestSendDeliversToAllSessions(t *testing.T) {
	t.Parallel()
	h := testHub()
	c1 := h.Connect(1)
	c2 := h.Connect(1)

	p := model.NotificationPayload{UserID: 1, Kind: model.KindTaskDueSoon, Message: "hi"}
	if got := h.Send(context.Background(), 1, p); got != Delivered {
		t.Fatalf("Send = %v, want Delivered", got)
	}

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.Receive():
			if got.Message != "hi" {
				t.Fatalf("payload = %+v", got)
			}
		default:
			t.Fatal("session did not receive the payload")
		}
	}
}

func TestDisconnectRemovesSession(t *testing.T) {
	t.Parallel()
	h := testHub()
	c := h.Connect(1)
	if !h.Connected(1) {
		t.Fatal("Connected(1) = false after Connect")
	}
	h.Disconnect(c)
	if h.Connected(1) {
		t.Fatal("Connected(1) = true after Disconnect")
	}
	if got := h.Send(context.Background(), 1, model.NotificationPayload{}); got != NotConnected {
		t.Fatalf("Send = %v, want NotConnected", got)
	}
}

func TestSendFullBufferFails(t *testing.T) {
	t.Parallel()
	h := testHub()
	c := h.Connect(1)

	// Fill the session buffer without draining it.
	for i := 0; ; i++ {
		if got := h.Send(context.Background(), 1, model.NotificationPayload{}); got != Delivered {
			if got != Failed {
				t.Fatalf("Send = %v, want Failed once buffer is full", got)
			}
			break
		}
		if i > cap(c.ch)+1 {
			t.Fatal("send never failed despite undrained buffer")
		}
	}
}

func TestSendIsolatesUsers(t *testing.T) {
	t.Parallel()
	h := testHub()
	c1 := h.Connect(1)
	_ = h.Connect(2)

	h.Send(context.Background(), 1, model.NotificationPayload{UserID: 1})

	select {
	case <-c1.Receive():
	default:
		t.Fatal("user 1 did not receive")
	}
	if h.Connected(3) {
		t.Fatal("unknown user reported connected")
	}
}
