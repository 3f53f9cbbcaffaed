package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// drain collects everything currently queued on ch.
func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe(0)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestFolderCreatedFrame(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	b.PublishFolderEvent("created", []string{"f1"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\nevent: folder.created\n") {
			t.Errorf("unexpected framing %q", s)
		}
		if !strings.Contains(s, `data: {"id":"f1"}`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestFolderDeletedPayload(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	b.PublishFolderEvent("deleted", []string{"a", "a1"})

	msgs := drain(ch)
	if len(msgs) == 0 {
		t.Fatal("no messages")
	}
	if !strings.Contains(msgs[0], "event: folder.deleted") ||
		!strings.Contains(msgs[0], `"removed":["a","a1"]`) {
		t.Errorf("unexpected frame %q", msgs[0])
	}
}

func TestTreeUpdatedThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	// First event triggers tree.updated; the second, within the window, does not.
	b.PublishFolderEvent("created", []string{"f1"})
	b.PublishFolderEvent("deleted", []string{"f1", "f2"})

	treeCount, folderCount := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "event: tree.updated") {
			treeCount++
		} else {
			folderCount++
		}
	}
	if folderCount != 2 {
		t.Errorf("folder events = %d, want 2", folderCount)
	}
	if treeCount != 1 {
		t.Errorf("tree events = %d, want 1 (throttled)", treeCount)
	}
}

func TestIgnoresEmptyAndUnknown(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	b.PublishFolderEvent("created", nil)
	b.PublishFolderEvent("renamed", []string{"x"})

	if msgs := drain(ch); len(msgs) != 0 {
		t.Fatalf("unexpected messages %q", msgs)
	}
}

func TestReplayAfterLastEventID(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	// id 1 folder.created, id 2 tree.updated, id 3 folder.created
	b.PublishFolderEvent("created", []string{"a"})
	b.PublishFolderEvent("created", []string{"b"})
	time.Sleep(50 * time.Millisecond)

	ch := b.Subscribe(2)
	defer b.Unsubscribe(ch)

	msgs := drain(ch)
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "id: 3\n") || !strings.Contains(msgs[0], `"id":"b"`) {
		t.Errorf("replay = %q", msgs)
	}
}

func TestHistoryBounded(t *testing.T) {
	b := NewBroker(time.Hour, WithHistory(2))
	defer b.Close()

	b.Publish(Event{Type: "x", Data: 1})
	b.Publish(Event{Type: "x", Data: 2})
	b.Publish(Event{Type: "x", Data: 3})
	time.Sleep(50 * time.Millisecond)

	ch := b.Subscribe(1)
	defer b.Unsubscribe(ch)
	msgs := drain(ch)
	if len(msgs) != 2 || !strings.HasPrefix(msgs[0], "id: 2\n") {
		t.Errorf("replay = %q", msgs)
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	// Exceeding the client buffer must not block the loop.
	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(Event{Type: "test", Data: i})
	}
	if b.ClientCount() != 1 {
		t.Error("broker loop stalled")
	}
}

// syncRecorder guards the recorder body so the test can read while the
// handler writes.
type syncRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Hour, WithHeartbeat(20*time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishFolderEvent("deleted", []string{"x"})
	time.Sleep(80 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: folder.deleted") {
		t.Errorf("handler output missing event: %q", body)
	}
	if !strings.Contains(body, ": ping") {
		t.Errorf("handler output missing heartbeat: %q", body)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe(0)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Safe no-ops after close.
	b.Publish(Event{Type: TypeFolderCreated, Data: FolderCreated{ID: "x"}})
	b.PublishFolderEvent("created", []string{"x"})
	if _, ok := <-b.Subscribe(0); ok {
		t.Error("subscribe after close should return a closed channel")
	}
}
