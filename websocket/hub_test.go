package websocket

import (
	"fmt"
	"testing"
	"time"
	"vitalwatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func startTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	go hub.Run()
	t.Cleanup(func() { hub.cancel() })
	return hub
}

func receiveEvent(t *testing.T, client *Client) models.WSMessage {
	t.Helper()
	select {
	case message := <-client.send:
		return message
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return models.WSMessage{}
	}
}

func assertNoEvent(t *testing.T, client *Client) {
	t.Helper()
	select {
	case message := <-client.send:
		t.Fatalf("unexpected event %s for patient %s", message.Type, message.PatientID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubDeliversOnlyToPatientObservers(t *testing.T) {
	hub := startTestHub(t)

	observerA := newTestClient(nurseIdentity("nurse-a", "patient-a"), 16)
	observerB := newTestClient(nurseIdentity("nurse-b", "patient-b"), 16)
	hub.registerClient(observerA)
	hub.registerClient(observerB)

	require.True(t, hub.Subscribe(observerA, "patient-a"))
	require.True(t, hub.Subscribe(observerB, "patient-b"))

	hub.PublishReadingCreated("patient-a", models.VitalReading{
		ID:          primitive.NewObjectID(),
		ReadingType: models.ReadingHeartRate,
	})

	event := receiveEvent(t, observerA)
	assert.Equal(t, models.EventReadingCreated, event.Type)
	assert.Equal(t, "patient-a", event.PatientID)

	assertNoEvent(t, observerB)
}

func TestHubIgnoresUnauthorizedSubscribe(t *testing.T) {
	hub := startTestHub(t)

	observer := newTestClient(nurseIdentity("nurse-a", "patient-a"), 16)
	hub.registerClient(observer)

	assert.False(t, hub.Subscribe(observer, "patient-b"))

	hub.PublishAlertCreated("patient-b", models.Alert{
		ID:       primitive.NewObjectID(),
		Severity: models.SeverityCritical,
	})

	assertNoEvent(t, observer)
}

func TestHubDeliversEventsInPublishOrder(t *testing.T) {
	hub := startTestHub(t)

	observer := newTestClient(nurseIdentity("nurse-a", "patient-a"), 64)
	hub.registerClient(observer)
	require.True(t, hub.Subscribe(observer, "patient-a"))

	// An abnormal ingestion publishes reading-created then alert-created;
	// observers must see them in that order.
	for i := 0; i < 10; i++ {
		hub.PublishReadingCreated("patient-a", models.VitalReading{
			DeviceID:    fmt.Sprintf("device-%d", i),
			ReadingType: models.ReadingHeartRate,
		})
		hub.PublishAlertCreated("patient-a", models.Alert{
			DeviceID: fmt.Sprintf("device-%d", i),
			Severity: models.SeverityHigh,
		})
	}

	for i := 0; i < 10; i++ {
		reading := receiveEvent(t, observer)
		assert.Equal(t, models.EventReadingCreated, reading.Type)
		readingEvent, ok := reading.Data.(models.WSReadingEvent)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("device-%d", i), readingEvent.Reading.DeviceID)

		alert := receiveEvent(t, observer)
		assert.Equal(t, models.EventAlertCreated, alert.Type)
		alertEvent, ok := alert.Data.(models.WSAlertEvent)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("device-%d", i), alertEvent.Alert.DeviceID)
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := startTestHub(t)

	observer := newTestClient(nurseIdentity("nurse-a", "patient-a"), 16)
	hub.registerClient(observer)
	require.True(t, hub.Subscribe(observer, "patient-a"))

	hub.Unsubscribe(observer, "patient-a")

	hub.PublishSettingsUpdated(models.WSSettingsUpdate{
		PatientID: "patient-a",
		Settings:  models.DefaultMonitoringSettings(),
	})

	assertNoEvent(t, observer)
}

func TestHubRefreshEntitlementsDetachesRevokedChannels(t *testing.T) {
	hub := startTestHub(t)

	observer := newTestClient(nurseIdentity("nurse-a", "patient-a", "patient-b"), 16)
	hub.registerClient(observer)
	require.True(t, hub.Subscribe(observer, "patient-a"))
	require.True(t, hub.Subscribe(observer, "patient-b"))

	revoked := hub.RefreshEntitlements(observer, nurseIdentity("nurse-a", "patient-b"))
	assert.Equal(t, []string{"patient-a"}, revoked)

	hub.PublishAlertTransition(models.EventAlertAcknowledged, models.WSAlertTransition{
		AlertID:   primitive.NewObjectID().Hex(),
		PatientID: "patient-a",
		Status:    models.AlertStatusAcknowledged,
	})

	assertNoEvent(t, observer)

	hub.PublishAlertTransition(models.EventAlertResolved, models.WSAlertTransition{
		AlertID:   primitive.NewObjectID().Hex(),
		PatientID: "patient-b",
		Status:    models.AlertStatusResolved,
	})

	event := receiveEvent(t, observer)
	assert.Equal(t, models.EventAlertResolved, event.Type)
}

func TestChannelBroadcastReportsSlowConsumers(t *testing.T) {
	channel := NewChannel("patient-a")

	fast := newTestClient(nurseIdentity("nurse-fast", "patient-a"), 16)
	slow := newTestClient(nurseIdentity("nurse-slow", "patient-a"), 1)
	channel.AddClient(fast)
	channel.AddClient(slow)

	// Fill the slow client's buffer.
	require.True(t, slow.enqueue(models.WSMessage{Type: models.WSTypePong}))

	dropped := channel.Broadcast(models.WSMessage{
		Type:      models.EventReadingCreated,
		PatientID: "patient-a",
	})

	require.Len(t, dropped, 1)
	assert.Same(t, slow, dropped[0])

	// The fast client still got the event.
	event := receiveEvent(t, fast)
	assert.Equal(t, models.EventReadingCreated, event.Type)
}

func TestHubStatsTracksChannels(t *testing.T) {
	hub := startTestHub(t)

	observer := newTestClient(nurseIdentity("nurse-a", "patient-a"), 16)
	hub.registerClient(observer)
	require.True(t, hub.Subscribe(observer, "patient-a"))

	hub.PublishReadingCreated("patient-a", models.VitalReading{ReadingType: models.ReadingTemperature})
	receiveEvent(t, observer)

	stats := hub.GetStats()
	assert.Equal(t, 1, stats.ActiveConnections)
	assert.Equal(t, 1, stats.ActiveChannels)
	assert.Equal(t, int64(1), stats.EventsPublished)
	require.Contains(t, stats.ChannelStats, "patient-a")
	assert.Equal(t, 1, stats.ChannelStats["patient-a"].ActiveObservers)
}
