package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "login_success", AccountID: "a1", Success: true})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "login_success" || ev.AccountID != "a1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	if d := NewDispatcher(Config{Enabled: false}, NoOpSink{}); d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	var d *Dispatcher
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (b blockingSink) Emit(context.Context, Event) { <-b.release }

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a full buffer")
	}
	close(sink.release)
	d.Close()
}

type panickySink struct{ calls atomic.Int32 }

func (p *panickySink) Emit(context.Context, Event) {
	if p.calls.Add(1) == 1 {
		panic("sink exploded")
	}
}

func TestDispatcherSurvivesSinkPanic(t *testing.T) {
	sink := &panickySink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "first"})
	d.Emit(context.Background(), Event{EventType: "second"})
	d.Close()

	if got := sink.calls.Load(); got != 2 {
		t.Fatalf("expected both events delivered, got %d", got)
	}
	if d.SinkPanics() != 1 {
		t.Fatalf("expected one recorded panic, got %d", d.SinkPanics())
	}
}

type ctxKey struct{}

type ctxSink struct{ got chan any }

func (s ctxSink) Emit(ctx context.Context, _ Event) {
	s.got <- ctx.Value(ctxKey{})
}

func TestDispatcherKeepsRequestValuesAfterCancel(t *testing.T) {
	sink := ctxSink{got: make(chan any, 1)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))
	d.Emit(ctx, Event{EventType: "logout"})
	cancel()

	select {
	case v := <-sink.got:
		if v != "req-1" {
			t.Fatalf("expected request value, got %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDispatcherCloseIsIdempotentAndEmitAfterCloseIsNoop(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, NoOpSink{})
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "late"})
	if d.Dropped() != 0 {
		t.Fatalf("emit after close should not count as drop, got %d", d.Dropped())
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "register", AccountID: "a2", Success: true})

	line := strings.TrimSpace(buf.String())
	var ev Event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.AccountID != "a2" || ev.EventType != "register" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestLogSinkWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	NewLogSink(logger).Emit(context.Background(), Event{
		EventType: "account_banned",
		AccountID: "a3",
		ActorID:   "admin",
		Metadata:  map[string]string{"reason": "spam"},
	})

	out := buf.String()
	for _, want := range []string{`"event_type":"account_banned"`, `"account_id":"a3"`, `"actor_id":"admin"`, `"meta_reason":"spam"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %s: %s", want, out)
		}
	}
}
