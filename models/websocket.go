package models

import (
	"time"
)

// Event kinds fanned out by the broker. For one patient, events published by
// a single ingestion call are delivered to each subscriber in publish order.
const (
	EventReadingCreated     = "reading-created"
	EventAlertCreated       = "alert-created"
	EventAlertAcknowledged  = "alert-acknowledged"
	EventAlertResolved      = "alert-resolved"
	EventAlertEscalated     = "alert-escalated"
	EventEmergencyContacted = "emergency-contacted"
	EventSettingsUpdated    = "settings-updated"
)

// WSMessage is the envelope pushed to connected observers.
type WSMessage struct {
	Type      string      `json:"type"`
	PatientID string      `json:"patientId,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"requestId,omitempty"`
}

type WSReadingEvent struct {
	PatientID string       `json:"patientId"`
	Reading   VitalReading `json:"reading"`
}

type WSAlertEvent struct {
	PatientID string `json:"patientId"`
	Alert     Alert  `json:"alert"`
}

type WSAlertTransition struct {
	AlertID        string    `json:"alertId"`
	PatientID      string    `json:"patientId"`
	Status         string    `json:"status"`
	Severity       string    `json:"severity,omitempty"`
	Actor          string    `json:"actor,omitempty"`
	At             time.Time `json:"at"`
	Resolution     string    `json:"resolution,omitempty"`
	IncidentNumber string    `json:"incidentNumber,omitempty"`
}

type WSSettingsUpdate struct {
	PatientID string             `json:"patientId"`
	Settings  MonitoringSettings `json:"settings"`
	UpdatedBy string             `json:"updatedBy"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type WSConnectionStatus struct {
	ConnectionID string    `json:"connectionId"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

// WSRequest is an inbound client frame.
type WSRequest struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	RequestID string                 `json:"requestId,omitempty"`
}

type WSAuthResponse struct {
	Success          bool      `json:"success"`
	UserID           string    `json:"userId"`
	Role             string    `json:"role"`
	EntitledPatients []string  `json:"entitledPatients,omitempty"`
	EntitledToAll    bool      `json:"entitledToAll"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

type WSError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Inbound frame types
const (
	WSTypeAuth        = "auth"
	WSTypeSubscribe   = "subscribe-patient"
	WSTypeUnsubscribe = "unsubscribe-patient"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeError       = "error"
	WSTypeSuccess     = "success"
	WSTypeConnection  = "connection_status"
)

// WebSocket error codes
const (
	WSErrorInvalidMessage = "INVALID_MESSAGE"
	WSErrorUnauthorized   = "UNAUTHORIZED"
	WSErrorRateLimit      = "RATE_LIMIT"
	WSErrorSlowConsumer   = "SLOW_CONSUMER"
)

type WSHubStats struct {
	TotalConnections  int                       `json:"totalConnections"`
	ActiveConnections int                       `json:"activeConnections"`
	ActiveChannels    int                       `json:"activeChannels"`
	EventsPublished   int64                     `json:"eventsPublished"`
	EventsDelivered   int64                     `json:"eventsDelivered"`
	SlowConsumerDrops int64                     `json:"slowConsumerDrops"`
	ChannelStats      map[string]WSChannelStats `json:"channelStats,omitempty"`
	Uptime            time.Duration             `json:"uptime"`
	LastUpdate        time.Time                 `json:"lastUpdate"`
}

type WSChannelStats struct {
	PatientID       string    `json:"patientId"`
	ActiveObservers int       `json:"activeObservers"`
	LastActivity    time.Time `json:"lastActivity"`
	EventsDelivered int64     `json:"eventsDelivered"`
}
