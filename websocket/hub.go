package websocket

import (
	"context"
	"sync"
	"time"
	"vitalwatch/models"

	"github.com/sirupsen/logrus"
)

// IdentityResolver turns a bearer token into the identity the registry and
// channels operate on. Implemented by services.AuthService.
type IdentityResolver interface {
	ResolveToken(ctx context.Context, token string) (models.Identity, error)
}

const broadcastBufferSize = 1024

// Hub is the event broker. One goroutine drains the broadcast channel, so
// events published for a patient are handed to each observer's send queue in
// publish order. Publishing never blocks the caller: when the broker cannot
// keep up the event is dropped, never queued for replay.
type Hub struct {
	clients  map[*Client]bool
	channels map[string]*Channel
	registry *Registry

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMessage

	resolver IdentityResolver

	stats HubStats

	mutex sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc

	cleanupTicker *time.Ticker
}

type broadcastMessage struct {
	PatientID string
	Message   models.WSMessage
}

type HubStats struct {
	TotalConnections  int64
	ActiveConnections int
	EventsPublished   int64
	EventsDropped     int64
	SlowConsumerDrops int64
	StartTime         time.Time
	LastUpdate        time.Time

	mutex sync.RWMutex
}

func NewHub(resolver IdentityResolver) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	hub := &Hub{
		clients:    make(map[*Client]bool),
		channels:   make(map[string]*Channel),
		registry:   NewRegistry(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMessage, broadcastBufferSize),
		resolver:   resolver,
		stats: HubStats{
			StartTime: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}

	hub.cleanupTicker = time.NewTicker(5 * time.Minute)

	return hub
}

func (h *Hub) Run() {
	logrus.Info("WebSocket hub starting...")

	go h.runCleanup()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.deliver(message)

		case <-h.ctx.Done():
			logrus.Info("WebSocket hub shutting down...")
			return
		}
	}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	h.registry.Register(client)
	h.stats.ActiveConnections++
	h.stats.TotalConnections++

	logrus.Infof("Observer connected: %s (total: %d)", client.identity.UserID, h.stats.ActiveConnections)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	h.stats.ActiveConnections--

	for _, patientID := range h.registry.Subscriptions(client) {
		if channel, exists := h.channels[patientID]; exists {
			channel.RemoveClient(client)
			if channel.IsEmpty() {
				delete(h.channels, patientID)
			}
		}
	}
	h.registry.Remove(client)

	logrus.Infof("Observer disconnected: %s (total: %d)", client.identity.UserID, h.stats.ActiveConnections)
}

// Subscribe attaches the connection to a patient's channel if its identity
// covers the patient. Unauthorized requests are ignored.
func (h *Hub) Subscribe(client *Client, patientID string) bool {
	if !h.registry.Subscribe(client, patientID) {
		return false
	}

	h.mutex.Lock()
	channel, exists := h.channels[patientID]
	if !exists {
		channel = NewChannel(patientID)
		h.channels[patientID] = channel
	}
	h.mutex.Unlock()

	channel.AddClient(client)
	return true
}

func (h *Hub) Unsubscribe(client *Client, patientID string) {
	h.registry.Unsubscribe(client, patientID)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if channel, exists := h.channels[patientID]; exists {
		channel.RemoveClient(client)
		if channel.IsEmpty() {
			delete(h.channels, patientID)
		}
	}
}

// RefreshEntitlements re-validates a connection's subscriptions against a
// fresh identity, detaching it from channels it may no longer observe.
func (h *Hub) RefreshEntitlements(client *Client, identity models.Identity) []string {
	revoked := h.registry.Refresh(client, identity)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, patientID := range revoked {
		if channel, exists := h.channels[patientID]; exists {
			channel.RemoveClient(client)
			if channel.IsEmpty() {
				delete(h.channels, patientID)
			}
		}
	}
	return revoked
}

func (h *Hub) deliver(message broadcastMessage) {
	h.mutex.RLock()
	channel := h.channels[message.PatientID]
	h.mutex.RUnlock()

	if channel == nil {
		return
	}

	slow := channel.Broadcast(message.Message)
	for _, client := range slow {
		h.stats.mutex.Lock()
		h.stats.SlowConsumerDrops++
		h.stats.mutex.Unlock()

		logrus.Warnf("Disconnecting slow consumer %s on channel %s", client.identity.UserID, message.PatientID)
		go client.cleanup()
	}
}

func (h *Hub) publish(patientID string, message models.WSMessage) {
	h.stats.mutex.Lock()
	h.stats.EventsPublished++
	h.stats.mutex.Unlock()

	select {
	case h.broadcast <- broadcastMessage{PatientID: patientID, Message: message}:
	default:
		h.stats.mutex.Lock()
		h.stats.EventsDropped++
		h.stats.mutex.Unlock()
		logrus.Warnf("Broadcast channel full, dropping %s event for patient %s", message.Type, patientID)
	}
}

// Public publishing methods, one per event kind.

func (h *Hub) PublishReadingCreated(patientID string, reading models.VitalReading) {
	h.publish(patientID, models.WSMessage{
		Type:      models.EventReadingCreated,
		PatientID: patientID,
		Data: models.WSReadingEvent{
			PatientID: patientID,
			Reading:   reading,
		},
		Timestamp: time.Now(),
	})
}

func (h *Hub) PublishAlertCreated(patientID string, alert models.Alert) {
	h.publish(patientID, models.WSMessage{
		Type:      models.EventAlertCreated,
		PatientID: patientID,
		Data: models.WSAlertEvent{
			PatientID: patientID,
			Alert:     alert,
		},
		Timestamp: time.Now(),
	})
}

// PublishAlertTransition covers acknowledge, resolve, escalate and
// emergency-contacted events; eventType selects the kind.
func (h *Hub) PublishAlertTransition(eventType string, transition models.WSAlertTransition) {
	h.publish(transition.PatientID, models.WSMessage{
		Type:      eventType,
		PatientID: transition.PatientID,
		Data:      transition,
		Timestamp: time.Now(),
	})
}

func (h *Hub) PublishSettingsUpdated(update models.WSSettingsUpdate) {
	h.publish(update.PatientID, models.WSMessage{
		Type:      models.EventSettingsUpdated,
		PatientID: update.PatientID,
		Data:      update,
		Timestamp: time.Now(),
	})
}

// Utility methods

func (h *Hub) IsUserConnected(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if client.identity.UserID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) GetStats() models.WSHubStats {
	h.stats.mutex.RLock()
	published := h.stats.EventsPublished
	dropped := h.stats.EventsDropped
	slowDrops := h.stats.SlowConsumerDrops
	total := h.stats.TotalConnections
	active := h.stats.ActiveConnections
	startTime := h.stats.StartTime
	h.stats.mutex.RUnlock()

	h.mutex.RLock()
	channelStats := make(map[string]models.WSChannelStats, len(h.channels))
	for patientID, channel := range h.channels {
		channelStats[patientID] = models.WSChannelStats{
			PatientID:       patientID,
			ActiveObservers: channel.ObserverCount(),
			LastActivity:    channel.LastActivity(),
			EventsDelivered: channel.EventsDelivered(),
		}
	}
	h.mutex.RUnlock()

	return models.WSHubStats{
		TotalConnections:  int(total),
		ActiveConnections: active,
		ActiveChannels:    len(channelStats),
		EventsPublished:   published,
		EventsDelivered:   published - dropped,
		SlowConsumerDrops: slowDrops,
		ChannelStats:      channelStats,
		Uptime:            time.Since(startTime),
		LastUpdate:        time.Now(),
	}
}

func (h *Hub) runCleanup() {
	for {
		select {
		case <-h.cleanupTicker.C:
			h.performCleanup()
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) performCleanup() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		if !client.isActive || time.Since(client.lastActivity) > 5*time.Minute {
			logrus.Warnf("Removing inactive observer: %s", client.identity.UserID)
			go client.cleanup()
		}
	}

	for patientID, channel := range h.channels {
		if channel.IsEmpty() {
			delete(h.channels, patientID)
		}
	}
}

func (h *Hub) Shutdown() {
	logrus.Info("Shutting down WebSocket hub...")

	h.cleanupTicker.Stop()
	h.cancel()

	h.mutex.Lock()
	for client := range h.clients {
		go client.cleanup()
	}
	h.mutex.Unlock()

	logrus.Info("WebSocket hub shutdown complete")
}
