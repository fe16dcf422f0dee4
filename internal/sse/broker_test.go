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

func drain(ch chan []byte) []string {
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

// settle waits until the loop has processed everything queued before it.
func settle(b *Broker) { b.ClientCount() }

func TestClientCount(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ch := b.Subscribe("", 0)
	other := b.Subscribe("p1", 0)
	if n := b.ClientCount(); n != 2 {
		t.Fatalf("clients = %d, want 2", n)
	}
	b.Unsubscribe(ch)
	b.Unsubscribe(other)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after unsubscribe", n)
	}
}

func TestFrameFormat(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe("", 0)

	b.PublishRecordEvent(KindCreated, "p1", "r1")
	settle(b)

	got := drain(ch)
	if len(got) != 2 {
		t.Fatalf("frames = %q", got)
	}
	want := "id: 1\nevent: record.created\ndata: {\"projectId\":\"p1\",\"id\":\"r1\"}\n\n"
	if got[0] != want {
		t.Errorf("record frame = %q, want %q", got[0], want)
	}
	if !strings.HasPrefix(got[1], "id: 2\nevent: tree.updated\n") {
		t.Errorf("tree frame = %q", got[1])
	}
}

func TestTreeThrottle_PerProject(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("", 0)

	b.PublishRecordEvent(KindCreated, "p1", "a")
	b.PublishRecordEvent(KindMoved, "p1", "b")
	b.PublishRecordEvent(KindDeleted, "p2", "c")
	settle(b)

	tree, record := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "event: tree.updated") {
			tree++
		} else {
			record++
		}
	}
	if record != 3 || tree != 2 {
		t.Errorf("record = %d tree = %d, want 3 and 2", record, tree)
	}
}

func TestProjectFilter(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	mine := b.Subscribe("p1", 0)
	all := b.Subscribe("", 0)

	b.PublishRecordEvent(KindUpdated, "p2", "x")
	time.Sleep(5 * time.Millisecond)
	b.PublishRecordEvent(KindUpdated, "p1", "y")
	b.Publish(Event{Type: "server.notice", Data: "hello"})
	settle(b)

	for _, s := range drain(mine) {
		if strings.Contains(s, `"p2"`) {
			t.Errorf("p1 subscriber received %q", s)
		}
	}
	if got := len(drain(all)); got != 5 {
		t.Errorf("unfiltered subscriber got %d frames, want 5", got)
	}
}

func TestSubscribe_ReplaysAfterLastEventID(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	b.PublishRecordEvent(KindCreated, "p1", "a") // ids 1, 2
	b.PublishRecordEvent(KindUpdated, "p1", "a") // id 3
	b.PublishRecordEvent(KindCreated, "p2", "z") // ids 4, 5
	settle(b)

	ch := b.Subscribe("p1", 2)
	got := drain(ch)
	if len(got) != 1 || !strings.HasPrefix(got[0], "id: 3\nevent: record.updated") {
		t.Errorf("replay = %q", got)
	}

	fresh := b.Subscribe("p1", 0)
	if got := drain(fresh); len(got) != 0 {
		t.Errorf("new subscriber got backlog %q", got)
	}
}

func TestBacklogIsBounded(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	for i := 0; i < 3*clientBuffer; i++ {
		b.Publish(Event{Type: "tick", Data: i})
	}
	settle(b)

	got := drain(b.Subscribe("", 1))
	if len(got) != clientBuffer {
		t.Fatalf("replayed %d frames, want %d", len(got), clientBuffer)
	}
	if !strings.HasPrefix(got[0], "id: 129\n") {
		t.Errorf("oldest retained frame = %q", got[0])
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("", 0)

	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(Event{Type: "test", Data: i})
	}
	settle(b)
	if got := len(drain(ch)); got != clientBuffer {
		t.Errorf("buffered %d frames, want %d", got, clientBuffer)
	}
}

// flushRecorder is an httptest.ResponseRecorder safe to read while the
// handler is still writing.
type flushRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) Flush() {}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Body.String()
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(100*time.Millisecond, WithHeartbeat(20*time.Millisecond))
	defer b.Close()

	b.PublishRecordEvent(KindCreated, "p1", "before") // ids 1, 2
	settle(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events?project=p1", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "1")
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	b.PublishRecordEvent(KindUpdated, "p1", "main")
	b.PublishRecordEvent(KindUpdated, "p2", "elsewhere")
	time.Sleep(60 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	for _, want := range []string{"id: 2\nevent: tree.updated", "event: record.updated", `"id":"main"`, ": ping\n\n"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "elsewhere") || strings.Contains(body, `"id":"before"`) {
		t.Errorf("stream leaked filtered or acknowledged events:\n%s", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("client not removed after disconnect: %d", n)
	}
}

func TestClose(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("", 0)

	b.Close()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel still open")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.ClientCount() != 0 {
		t.Fatal("clients reported after close")
	}

	// Operations after Close are no-ops.
	b.Publish(Event{Type: "record.updated"})
	b.PublishRecordEvent(KindUpdated, "p", "x")
	if _, ok := <-b.Subscribe("", 0); ok {
		t.Error("Subscribe after Close returned an open channel")
	}
}
