package services

import "vitalwatch/models"

// EventPublisher is the broker surface the services publish through.
// Satisfied by *websocket.Hub. Publishing is fire-and-forget: implementations
// must never block the caller or surface delivery failures.
type EventPublisher interface {
	PublishReadingCreated(patientID string, reading models.VitalReading)
	PublishAlertCreated(patientID string, alert models.Alert)
	PublishAlertTransition(eventType string, transition models.WSAlertTransition)
	PublishSettingsUpdated(update models.WSSettingsUpdate)
}
