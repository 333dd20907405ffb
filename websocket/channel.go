package websocket

import (
	"sync"
	"time"
	"vitalwatch/models"

	"github.com/sirupsen/logrus"
)

// Channel fans events for one patient out to that patient's observers.
// Delivery is at-most-once: an observer whose send buffer is full is a slow
// consumer and is reported back to the hub for disconnection rather than
// stalling the other observers.
type Channel struct {
	PatientID string

	clients map[*Client]bool
	mutex   sync.RWMutex

	stats ChannelStats

	createdAt    time.Time
	lastActivity time.Time
}

type ChannelStats struct {
	TotalObservers  int64
	ActiveObservers int
	EventsDelivered int64
	EventsDropped   int64
	mutex           sync.RWMutex
}

func NewChannel(patientID string) *Channel {
	return &Channel{
		PatientID:    patientID,
		clients:      make(map[*Client]bool),
		createdAt:    time.Now(),
		lastActivity: time.Now(),
	}
}

func (ch *Channel) AddClient(client *Client) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	if client == nil || ch.clients[client] {
		return
	}

	ch.clients[client] = true
	ch.stats.ActiveObservers++
	ch.stats.TotalObservers++
	ch.lastActivity = time.Now()

	logrus.Debugf("Observer %s joined channel %s (observers: %d)", client.identity.UserID, ch.PatientID, len(ch.clients))
}

func (ch *Channel) RemoveClient(client *Client) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	if client == nil || !ch.clients[client] {
		return
	}

	delete(ch.clients, client)
	ch.stats.ActiveObservers--
	ch.lastActivity = time.Now()

	logrus.Debugf("Observer %s left channel %s (remaining: %d)", client.identity.UserID, ch.PatientID, len(ch.clients))
}

// Broadcast delivers one event to every observer of the channel and returns
// the clients whose send buffer was full.
func (ch *Channel) Broadcast(message models.WSMessage) []*Client {
	ch.mutex.RLock()
	clients := make([]*Client, 0, len(ch.clients))
	for client := range ch.clients {
		clients = append(clients, client)
	}
	ch.mutex.RUnlock()

	var slow []*Client
	delivered := int64(0)
	for _, client := range clients {
		if client.enqueue(message) {
			delivered++
		} else {
			slow = append(slow, client)
		}
	}

	ch.stats.mutex.Lock()
	ch.stats.EventsDelivered += delivered
	ch.stats.EventsDropped += int64(len(slow))
	ch.stats.mutex.Unlock()

	ch.mutex.Lock()
	ch.lastActivity = time.Now()
	ch.mutex.Unlock()

	return slow
}

func (ch *Channel) IsEmpty() bool {
	ch.mutex.RLock()
	defer ch.mutex.RUnlock()
	return len(ch.clients) == 0
}

func (ch *Channel) ObserverCount() int {
	ch.mutex.RLock()
	defer ch.mutex.RUnlock()
	return len(ch.clients)
}

func (ch *Channel) HasObserver(userID string) bool {
	ch.mutex.RLock()
	defer ch.mutex.RUnlock()

	for client := range ch.clients {
		if client.identity.UserID == userID {
			return true
		}
	}
	return false
}

func (ch *Channel) LastActivity() time.Time {
	ch.mutex.RLock()
	defer ch.mutex.RUnlock()
	return ch.lastActivity
}

func (ch *Channel) EventsDelivered() int64 {
	ch.stats.mutex.RLock()
	defer ch.stats.mutex.RUnlock()
	return ch.stats.EventsDelivered
}
