package websocket

import (
	"sync"
	"vitalwatch/models"
)

// Registry tracks which patients each connection is observing. A connection
// may only subscribe to patients inside its entitlement set; subscribe
// requests outside it are ignored without error, so an observer cannot probe
// which patient IDs exist.
type Registry struct {
	mu            sync.RWMutex
	subscriptions map[*Client]map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		subscriptions: make(map[*Client]map[string]bool),
	}
}

// Register adds a connection with no subscriptions yet.
func (reg *Registry) Register(client *Client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.subscriptions[client]; !exists {
		reg.subscriptions[client] = make(map[string]bool)
	}
}

// Subscribe records a subscription if the connection's identity is entitled
// to the patient. Returns false when the request was ignored.
func (reg *Registry) Subscribe(client *Client, patientID string) bool {
	if patientID == "" || !client.identity.CanObserve(patientID) {
		return false
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	subs, exists := reg.subscriptions[client]
	if !exists {
		return false
	}

	subs[patientID] = true
	return true
}

// Unsubscribe removes a subscription. Unsubscribing from a patient the
// connection never subscribed to is a no-op.
func (reg *Registry) Unsubscribe(client *Client, patientID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if subs, exists := reg.subscriptions[client]; exists {
		delete(subs, patientID)
	}
}

// Subscribed reports whether the connection currently observes the patient.
func (reg *Registry) Subscribed(client *Client, patientID string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	subs, exists := reg.subscriptions[client]
	return exists && subs[patientID]
}

// Subscriptions returns the patient IDs the connection currently observes.
func (reg *Registry) Subscriptions(client *Client) []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	subs, exists := reg.subscriptions[client]
	if !exists {
		return nil
	}

	patientIDs := make([]string, 0, len(subs))
	for patientID := range subs {
		patientIDs = append(patientIDs, patientID)
	}
	return patientIDs
}

// Refresh re-checks every subscription against a new identity and drops the
// ones no longer covered. Returns the revoked patient IDs so the hub can
// detach the connection from their channels.
func (reg *Registry) Refresh(client *Client, identity models.Identity) []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	subs, exists := reg.subscriptions[client]
	if !exists {
		return nil
	}

	var revoked []string
	for patientID := range subs {
		if !identity.CanObserve(patientID) {
			delete(subs, patientID)
			revoked = append(revoked, patientID)
		}
	}
	return revoked
}

// Remove drops the connection and all of its subscriptions.
func (reg *Registry) Remove(client *Client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	delete(reg.subscriptions, client)
}

func (reg *Registry) ConnectionCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return len(reg.subscriptions)
}
