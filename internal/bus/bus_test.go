package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/collectline/dunlin/internal/domain"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestChannelBusPublishSubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	var received atomic.Int32
	var lastPayload atomic.Value

	sub, err := b.Subscribe(context.Background(), domain.TopicRunInitiated, func(ctx context.Context, msg *domain.Message) error {
		lastPayload.Store(string(msg.Payload))
		received.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if sub.Topic() != domain.TopicRunInitiated {
		t.Errorf("topic = %q", sub.Topic())
	}

	if err := b.Publish(context.Background(), domain.TopicRunInitiated, []byte(`{"runId":"run-1"}`)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	waitFor(t, func() bool { return received.Load() == 1 })
	if got := lastPayload.Load(); got != `{"runId":"run-1"}` {
		t.Errorf("payload = %v", got)
	}
}

func TestChannelBusTopicIsolation(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	var runEvents, batchEvents atomic.Int32

	b.Subscribe(context.Background(), domain.TopicRunCompleted, func(ctx context.Context, msg *domain.Message) error {
		runEvents.Add(1)
		return nil
	})
	b.Subscribe(context.Background(), domain.TopicBatchCompleted, func(ctx context.Context, msg *domain.Message) error {
		batchEvents.Add(1)
		return nil
	})

	b.Publish(context.Background(), domain.TopicRunCompleted, []byte("{}"))
	b.Publish(context.Background(), domain.TopicRunCompleted, []byte("{}"))

	waitFor(t, func() bool { return runEvents.Load() == 2 })
	if got := batchEvents.Load(); got != 0 {
		t.Errorf("batch handler saw %d messages, want 0", got)
	}
}

func TestChannelBusUnsubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	var received atomic.Int32
	sub, err := b.Subscribe(context.Background(), domain.TopicRunFailed, func(ctx context.Context, msg *domain.Message) error {
		received.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(context.Background(), domain.TopicRunFailed, []byte("{}"))
	waitFor(t, func() bool { return received.Load() == 1 })

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	b.Publish(context.Background(), domain.TopicRunFailed, []byte("{}"))
	time.Sleep(50 * time.Millisecond)
	if got := received.Load(); got != 1 {
		t.Errorf("received = %d after unsubscribe, want 1", got)
	}
}

func TestChannelBusClose(t *testing.T) {
	b := NewChannelBus(10)

	if err := b.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed on open bus: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if err := b.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded on closed bus")
	}
	if err := b.Publish(context.Background(), domain.TopicRunInitiated, []byte("{}")); err == nil {
		t.Error("Publish succeeded on closed bus")
	}
	if _, err := b.Subscribe(context.Background(), domain.TopicRunInitiated, nil); err == nil {
		t.Error("Subscribe succeeded on closed bus")
	}
}

func TestNewFactory(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 16})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	if _, ok := b.(*ChannelBus); !ok {
		t.Errorf("expected *ChannelBus, got %T", b)
	}

	if _, err := New(domain.EventBusConfig{Type: "carrier-pigeon"}); err == nil {
		t.Error("expected an error for unknown bus type")
	}
}
