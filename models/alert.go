package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Alert types
const (
	AlertTypeVitalAbnormal   = "vital-abnormal"
	AlertTypeFallDetected    = "fall-detected"
	AlertTypeInactivity      = "inactivity"
	AlertTypeMedicationMissed = "medication-missed"
	AlertTypeDeviceOffline   = "device-offline"
	AlertTypeWandering       = "wandering"
	AlertTypeEmergencyButton = "emergency-button"
	AlertTypeCriticalVital   = "critical-vital"
)

// Alert severities, in escalating order.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert statuses. Resolved is terminal.
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusEscalated    = "escalated"
	AlertStatusResolved     = "resolved"
)

// Alert tracks detection, acknowledgement and resolution of one abnormal
// condition. Alerts are never deleted, only terminally resolved.
type Alert struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	PatientID primitive.ObjectID `json:"patient" bson:"patient"`
	AlertType string             `json:"alertType" bson:"alertType"`
	Severity  string             `json:"severity" bson:"severity"` // low, medium, high, critical
	Title     string             `json:"title" bson:"title"`
	Message   string             `json:"message" bson:"message"`

	VitalReadingID primitive.ObjectID `json:"vitalReading,omitempty" bson:"vitalReading,omitempty"`
	DeviceID       string             `json:"deviceId,omitempty" bson:"deviceId,omitempty"`

	Status string `json:"status" bson:"status"` // active, acknowledged, escalated, resolved

	AcknowledgedBy primitive.ObjectID `json:"acknowledgedBy,omitempty" bson:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time         `json:"acknowledgedAt,omitempty" bson:"acknowledgedAt,omitempty"`
	ResolvedBy     primitive.ObjectID `json:"resolvedBy,omitempty" bson:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time         `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
	Resolution     string             `json:"resolution,omitempty" bson:"resolution,omitempty"`
	EscalatedBy    primitive.ObjectID `json:"escalatedBy,omitempty" bson:"escalatedBy,omitempty"`
	EscalatedAt    *time.Time         `json:"escalatedAt,omitempty" bson:"escalatedAt,omitempty"`

	Notifications []AlertNotification `json:"notifications,omitempty" bson:"notifications,omitempty"`

	EmergencyServices EmergencyServicesRecord `json:"emergencyServicesContacted" bson:"emergencyServicesContacted"`

	CreatedBy primitive.ObjectID `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// AlertNotification is one entry of the alert's delivery log.
type AlertNotification struct {
	SentTo    primitive.ObjectID `json:"sentTo" bson:"sentTo"`
	Method    string             `json:"method" bson:"method"` // email, sms, push, call
	SentAt    time.Time          `json:"sentAt" bson:"sentAt"`
	Delivered bool               `json:"delivered" bson:"delivered"`
	Read      bool               `json:"read" bson:"read"`
	ReadAt    *time.Time         `json:"readAt,omitempty" bson:"readAt,omitempty"`
}

type EmergencyServicesRecord struct {
	Contacted      bool       `json:"contacted" bson:"contacted"`
	ContactedAt    *time.Time `json:"contactedAt,omitempty" bson:"contactedAt,omitempty"`
	ContactedBy    primitive.ObjectID `json:"contactedBy,omitempty" bson:"contactedBy,omitempty"`
	Service        string     `json:"service,omitempty" bson:"service,omitempty"`
	IncidentNumber string     `json:"incidentNumber,omitempty" bson:"incidentNumber,omitempty"`
}

// SeverityRank orders severities so that escalation checks can compare them.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

type CreateAlertRequest struct {
	Patient   string `json:"patient" validate:"required"`
	AlertType string `json:"alertType" validate:"required,oneof=vital-abnormal fall-detected inactivity medication-missed device-offline wandering emergency-button critical-vital"`
	Severity  string `json:"severity" validate:"required,oneof=low medium high critical"`
	Title     string `json:"title" validate:"required"`
	Message   string `json:"message" validate:"required"`
	DeviceID  string `json:"deviceId,omitempty"`
}

type ResolveAlertRequest struct {
	Resolution string `json:"resolution" validate:"required"`
}

type EmergencyContactRequest struct {
	Service string `json:"service,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type AlertQuery struct {
	Status   string `form:"status"`
	Severity string `form:"severity"`
	Patient  string `form:"patientId"`
	Limit    int    `form:"limit"`
}
