package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"schedule-booking-api/internal/model"
)

// memSource mimics DrainOutbox: events before the first failure are marked
// published, the rest stay pending.
type memSource struct {
	mu      sync.Mutex
	pending []model.OutboxEvent
	calls   int
}

func (m *memSource) left() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *memSource) DrainOutbox(ctx context.Context, limit int, handle func(context.Context, model.OutboxEvent) error) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	batch := m.pending
	if len(batch) > limit {
		batch = batch[:limit]
	}
	done := 0
	for _, evt := range batch {
		if err := handle(ctx, evt); err != nil {
			m.pending = m.pending[done:]
			return done, err
		}
		done++
	}
	m.pending = m.pending[done:]
	return done, nil
}

type recordSink struct {
	name   string
	got    []string
	failOn string
}

func (s *recordSink) Name() string { return s.name }

func (s *recordSink) Publish(_ context.Context, evt model.OutboxEvent) error {
	if evt.EventID == s.failOn {
		return errors.New("unavailable")
	}
	s.got = append(s.got, evt.EventID)
	return nil
}

func events(ids ...string) []model.OutboxEvent {
	out := make([]model.OutboxEvent, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.OutboxEvent{EventID: id, EventType: "booking.created", AggregateID: "b-" + id})
	}
	return out
}

func TestFlushDrainsAllBatches(t *testing.T) {
	src := &memSource{pending: events("1", "2", "3", "4", "5")}
	a, b := &recordSink{name: "a"}, &recordSink{name: "b"}
	r := NewRelay(src, Config{BatchSize: 2}, zap.NewNop(), a, b)

	n, err := r.Flush(context.Background())
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n != 5 {
		t.Errorf("published %d, want 5", n)
	}
	if len(a.got) != 5 || len(b.got) != 5 {
		t.Errorf("every sink should see every event: a=%v b=%v", a.got, b.got)
	}
	if src.calls != 3 {
		t.Errorf("expected 3 drains, got %d", src.calls)
	}
}

func TestFlushStopsAtFailingSink(t *testing.T) {
	src := &memSource{pending: events("1", "2", "3")}
	sink := &recordSink{name: "flaky", failOn: "2"}
	r := NewRelay(src, Config{BatchSize: 10}, zap.NewNop(), sink)

	n, err := r.Flush(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if n != 1 || len(src.pending) != 2 {
		t.Errorf("n=%d pending=%d, want 1 and 2", n, len(src.pending))
	}

	sink.failOn = ""
	if _, err := r.Flush(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(src.pending) != 0 {
		t.Errorf("events left after retry: %d", len(src.pending))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &memSource{pending: events("1")}
	sink := &recordSink{name: "s"}
	r := NewRelay(src, Config{PollEvery: 5 * time.Millisecond}, zap.NewNop(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if src.left() == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("event never relayed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSinkMessage(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSinkWithWriter(w)
	evt := model.OutboxEvent{EventID: "e-1", EventType: "booking.created", AggregateID: "b-1", Payload: []byte(`{}`)}

	if err := sink.Publish(context.Background(), evt); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if m.Topic != "booking.created.v1" || string(m.Key) != "b-1" {
		t.Errorf("topic=%s key=%s", m.Topic, m.Key)
	}
	c := &headerCarrier{headers: m.Headers}
	if c.Get("event_id") != "e-1" || c.Get("event_type") != "booking.created" {
		t.Errorf("headers = %v", m.Headers)
	}
}
