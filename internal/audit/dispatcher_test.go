package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Type: "login_success"})
	}
	close(sink.release)
	d.Close()

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events")
	}
	sink.mu.Lock()
	delivered := len(sink.got)
	sink.mu.Unlock()
	if uint64(delivered)+d.Dropped() != 10 {
		t.Fatalf("delivered %d + dropped %d != 10", delivered, d.Dropped())
	}
	if d.Delivered() != uint64(delivered) {
		t.Fatalf("Delivered() = %d, sink saw %d", d.Delivered(), delivered)
	}

	d.Emit(context.Background(), Event{Type: "late"})
	d.Close()
}

func TestBlockingDispatcherHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	d.Emit(context.Background(), Event{Type: "first"})
	d.Emit(context.Background(), Event{Type: "second"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{Type: "abandoned"})
	if d.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", d.Dropped())
	}

	close(sink.release)
	d.Close()
	d.Close()
	if d.Delivered() != 2 {
		t.Fatalf("Delivered() = %d, want 2", d.Delivered())
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{Type: "refresh_success", PrincipalID: 4, Success: true, Timestamp: time.Unix(0, 0).UTC()})
	sink.Emit(context.Background(), Event{Type: "refresh_failure", Error: "token_inactive"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var e Event
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.PrincipalID != 4 || !e.Success {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	SlogSink{Logger: logger}.Emit(context.Background(), Event{Type: "login_failure", Error: "invalid_credentials"})

	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"error":"invalid_credentials"`) {
		t.Fatalf("unexpected log line %s", out)
	}
}
