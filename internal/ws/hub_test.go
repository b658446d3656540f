package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/denzueee/gonsters-backend-assessment/internal/models"
)

// testSession builds a session without a live connection; deliveries land in
// the send channel, where tests can inspect them.
func testSession(hub *Hub, buffer int) *Session {
	return &Session{
		id:     uuid.NewString(),
		send:   make(chan []byte, buffer),
		hub:    hub,
		logger: zap.NewNop(),
	}
}

func drain(t *testing.T, s *Session) []Event {
	t.Helper()
	var events []Event
	for {
		select {
		case payload := <-s.send:
			var e Event
			require.NoError(t, json.Unmarshal(payload, &e))
			events = append(events, e)
		default:
			return events
		}
	}
}

func sampleReading(machineID string) models.Reading {
	temp := 50.0
	return models.Reading{
		MachineID:   machineID,
		SensorType:  "Temperature",
		Location:    "Floor 1",
		Timestamp:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Temperature: &temp,
	}
}

func TestPublishReading_TargetsOnlySubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	onlyA := testSession(hub, 8)
	all := testSession(hub, 8)
	other := testSession(hub, 8)
	hub.Register(onlyA)
	hub.Register(all)
	hub.Register(other)

	hub.Subscribe(onlyA, "machine-a")
	hub.Subscribe(all, TargetAll)
	hub.Subscribe(other, "machine-b")

	hub.PublishReading(sampleReading("machine-a"))

	assert.Len(t, drain(t, onlyA), 1)
	assert.Len(t, drain(t, all), 1)
	assert.Empty(t, drain(t, other))
}

func TestPublishAlert_AllSubscriptionReceivesEveryMachine(t *testing.T) {
	hub := NewHub(zap.NewNop())
	all := testSession(hub, 8)
	hub.Register(all)
	hub.Subscribe(all, TargetAll)

	hub.PublishAlert(models.AlertEvent{MachineID: "machine-a", Severity: models.SeverityCritical})
	hub.PublishAlert(models.AlertEvent{MachineID: "machine-b", Severity: models.SeverityInfo})

	events := drain(t, all)
	require.Len(t, events, 2)
	assert.Equal(t, "alert", events[0].Name)
}

func TestSubscribe_IsIdempotentAndAdditive(t *testing.T) {
	hub := NewHub(zap.NewNop())
	s := testSession(hub, 8)
	hub.Register(s)

	hub.Subscribe(s, "machine-a")
	hub.Subscribe(s, "machine-a")
	hub.Subscribe(s, TargetAll)

	// One event per publish even with the duplicate subscribe; the all-machines
	// subscription alone suffices for other machines.
	hub.PublishReading(sampleReading("machine-a"))
	hub.PublishReading(sampleReading("machine-z"))
	assert.Len(t, drain(t, s), 2)

	// Unsubscribing a target not held is a no-op.
	hub.Unsubscribe(s, "machine-never")
	hub.Unsubscribe(s, TargetAll)
	hub.PublishReading(sampleReading("machine-z"))
	assert.Empty(t, drain(t, s))
}

func TestUnregister_RemovesAllSubscriptions(t *testing.T) {
	hub := NewHub(zap.NewNop())
	s := testSession(hub, 8)
	hub.Register(s)
	hub.Subscribe(s, TargetAll)
	hub.Subscribe(s, "machine-a")

	hub.Unregister(s)
	hub.PublishReading(sampleReading("machine-a"))
	assert.Empty(t, drain(t, s))

	// Subscribe after removal must not resurrect the session.
	hub.Subscribe(s, TargetAll)
	hub.PublishReading(sampleReading("machine-a"))
	assert.Empty(t, drain(t, s))
}

func TestPublish_PreservesPerSessionOrder(t *testing.T) {
	hub := NewHub(zap.NewNop())
	s := testSession(hub, 16)
	hub.Register(s)
	hub.Subscribe(s, TargetAll)

	for i := 0; i < 5; i++ {
		r := sampleReading("machine-a")
		ts := r.Timestamp.Add(time.Duration(i) * time.Second)
		r.Timestamp = ts
		hub.PublishReading(r)
	}

	events := drain(t, s)
	require.Len(t, events, 5)
	var last time.Time
	for _, e := range events {
		data, err := json.Marshal(e.Data)
		require.NoError(t, err)
		var r models.Reading
		require.NoError(t, json.Unmarshal(data, &r))
		assert.True(t, r.Timestamp.After(last))
		last = r.Timestamp
	}
}

func TestPublish_SlowSessionDropsWithoutBlockingOthers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	slow := testSession(hub, 1)
	fast := testSession(hub, 8)
	hub.Register(slow)
	hub.Register(fast)
	hub.Subscribe(slow, TargetAll)
	hub.Subscribe(fast, TargetAll)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 4; i++ {
			hub.PublishReading(sampleReading("machine-a"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow session")
	}

	assert.Len(t, drain(t, slow), 1)
	assert.Len(t, drain(t, fast), 4)
}
