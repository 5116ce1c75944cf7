package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lmoreira/opsight/internal/analysis"
	"github.com/lmoreira/opsight/internal/event"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestClient(user string) *Client {
	return &Client{
		conn:   nil, // Not needed for hub tests
		user:   user,
		send:   make(chan Message, 256),
		logger: testLogger(),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(testLogger())

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.clients == nil {
		t.Error("hub.clients map is nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("user-1")

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	// Verify channel is closed by attempting to receive.
	_, ok := <-client.send
	if ok {
		t.Error("client.send channel is not closed")
	}
}

func TestUnregisterNotRegistered(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("user-1")

	// Unregister without registering first should not panic.
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Unregister() panicked: %v", r)
		}
	}()

	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestUnregisterTwice(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("user-1")

	hub.Register(client)
	hub.Unregister(client)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("second Unregister() panicked: %v", r)
		}
	}()

	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(testLogger())

	client1 := newTestClient("user-1")
	client2 := newTestClient("user-2")
	client3 := newTestClient("user-3")

	hub.Register(client1)
	hub.Register(client2)
	hub.Register(client3)

	msg := Message{
		Type:      MessageRunStarted,
		RunID:     "run-123",
		Timestamp: time.Now(),
		Data:      RunStartedData{ProcessCount: 42},
	}

	hub.Broadcast(msg)

	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case received := <-client.send:
			if received.Type != MessageRunStarted {
				t.Errorf("client %d received Type = %v, want %v", i+1, received.Type, MessageRunStarted)
			}
			if received.RunID != "run-123" {
				t.Errorf("client %d received RunID = %v, want %v", i+1, received.RunID, "run-123")
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("client %d did not receive message", i+1)
		}
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(testLogger())

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Broadcast() to empty hub panicked: %v", r)
		}
	}()

	hub.Broadcast(Message{
		Type:      MessageRunCompleted,
		RunID:     "run-123",
		Timestamp: time.Now(),
		Data:      RunCompletedData{ProcessCount: 5, AnomalyCount: 1},
	})
}

func TestBroadcastDropsMessagesWhenBufferFull(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("user-1")

	hub.Register(client)

	// Fill the client's send buffer (capacity is 256).
	for i := 0; i < 256; i++ {
		client.send <- Message{
			Type:      MessageAnomalyDetected,
			RunID:     "run-fill",
			Timestamp: time.Now(),
		}
	}

	if len(client.send) != 256 {
		t.Fatalf("client.send buffer length = %d, want 256", len(client.send))
	}

	// Broadcast one more message -- should be dropped since buffer is full.
	hub.Broadcast(Message{
		Type:      MessageRunCompleted,
		RunID:     "run-dropped",
		Timestamp: time.Now(),
	})

	if len(client.send) != 256 {
		t.Errorf("client.send buffer length = %d, want 256 (message should have been dropped)", len(client.send))
	}

	received := <-client.send
	if received.RunID == "run-dropped" {
		t.Error("dropped message was unexpectedly received")
	}
}

func TestConcurrentRegisterUnregisterBroadcast(t *testing.T) {
	hub := NewHub(testLogger())

	var wg sync.WaitGroup
	numClients := 50
	numBroadcasts := 100

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			client := newTestClient(string(rune('a' + id)))
			hub.Register(client)

			// Drain messages to prevent buffer from filling.
			go func() {
				for range client.send {
					// Discard messages.
				}
			}()

			time.Sleep(10 * time.Millisecond)
			hub.Unregister(client)
		}(i)
	}

	for i := 0; i < numBroadcasts; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			hub.Broadcast(Message{
				Type:      MessageAnomalyDetected,
				RunID:     "concurrent-test",
				Timestamp: time.Now(),
				Data:      AnomalyDetectedData{ProcessID: "p", Score: float64(id)},
			})
		}(i)
	}

	wg.Wait()

	if hub.ClientCount() < 0 {
		t.Errorf("ClientCount() = %d, should not be negative", hub.ClientCount())
	}
}

func TestConcurrentClientCount(t *testing.T) {
	hub := NewHub(testLogger())

	var wg sync.WaitGroup
	var countSum int64

	for i := 0; i < 10; i++ {
		hub.Register(newTestClient(string(rune('a' + i))))
	}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			atomic.AddInt64(&countSum, int64(hub.ClientCount()))
		}()
	}

	wg.Wait()

	expectedSum := int64(10 * 100)
	if countSum != expectedSum {
		t.Errorf("sum of all ClientCount() calls = %d, want %d", countSum, expectedSum)
	}
}

func TestHandlerForwardsBusEvents(t *testing.T) {
	bus := event.NewBus(testLogger())
	h := NewHandler(nil, bus, testLogger())

	client := newTestClient("user-1")
	h.Hub().Register(client)

	now := time.Now().UTC()
	bus.Publish(context.Background(), event.Event{
		Topic:     analysis.TopicAnomalyDetected,
		Source:    "analysis",
		Timestamp: now,
		Payload: map[string]any{
			"run_id":     "run-7",
			"process_id": "4811",
			"score":      42.5,
			"threshold":  6.0,
		},
	})

	select {
	case msg := <-client.send:
		if msg.Type != MessageAnomalyDetected {
			t.Errorf("Type = %v, want %v", msg.Type, MessageAnomalyDetected)
		}
		if msg.RunID != "run-7" {
			t.Errorf("RunID = %q, want run-7", msg.RunID)
		}
		data, ok := msg.Data.(AnomalyDetectedData)
		if !ok {
			t.Fatalf("Data type = %T", msg.Data)
		}
		if data.ProcessID != "4811" || data.Score != 42.5 {
			t.Errorf("data = %+v", data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive forwarded event")
	}
}
