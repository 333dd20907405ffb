package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reading types
const (
	ReadingBloodPressure    = "blood-pressure"
	ReadingGlucose          = "glucose"
	ReadingHeartRate        = "heart-rate"
	ReadingTemperature      = "temperature"
	ReadingOxygenSaturation = "oxygen-saturation"
	ReadingRespiratoryRate  = "respiratory-rate"
	ReadingECG              = "ecg"
)

// Classification levels, in escalating order.
const (
	LevelNormal    = "normal"
	LevelWarning   = "warning"
	LevelCritical  = "critical"
	LevelEmergency = "emergency"
)

// VitalReading is one timestamped measurement of a single metric for one
// patient. Immutable once created; the stored classification is the one
// computed against the thresholds in effect at ingestion time.
type VitalReading struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	PatientID   primitive.ObjectID `json:"patient" bson:"patient"`
	DeviceID    string             `json:"deviceId" bson:"deviceId"`
	ReadingType string             `json:"readingType" bson:"readingType"`
	Values      VitalValues        `json:"values" bson:"values"`

	IsNormal       bool   `json:"isNormal" bson:"isNormal"`
	AlertTriggered bool   `json:"alertTriggered" bson:"alertTriggered"`
	AlertLevel     string `json:"alertLevel" bson:"alertLevel"` // normal, warning, critical, emergency
	AlertMessage   string `json:"alertMessage,omitempty" bson:"alertMessage,omitempty"`

	Timestamp  time.Time          `json:"timestamp" bson:"timestamp"`
	Notes      string             `json:"notes,omitempty" bson:"notes,omitempty"`
	ReviewedBy primitive.ObjectID `json:"reviewedBy,omitempty" bson:"reviewedBy,omitempty"`
	ReviewedAt *time.Time         `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
}

// VitalValues is the metric-specific payload. Only the fields for the
// reading's type are populated.
type VitalValues struct {
	// Blood pressure
	Systolic  *float64 `json:"systolic,omitempty" bson:"systolic,omitempty"`
	Diastolic *float64 `json:"diastolic,omitempty" bson:"diastolic,omitempty"`

	// Glucose
	Glucose     *float64 `json:"glucose,omitempty" bson:"glucose,omitempty"`
	GlucoseUnit string   `json:"glucoseUnit,omitempty" bson:"glucoseUnit,omitempty"` // mg/dL, mmol/L

	// Heart rate
	HeartRate            *float64 `json:"heartRate,omitempty" bson:"heartRate,omitempty"`
	HeartRateVariability *float64 `json:"heartRateVariability,omitempty" bson:"heartRateVariability,omitempty"`

	// Temperature
	Temperature     *float64 `json:"temperature,omitempty" bson:"temperature,omitempty"`
	TemperatureUnit string   `json:"temperatureUnit,omitempty" bson:"temperatureUnit,omitempty"` // F, C

	// Oxygen saturation
	OxygenSaturation *float64 `json:"oxygenSaturation,omitempty" bson:"oxygenSaturation,omitempty"`

	// Respiratory rate
	RespiratoryRate *float64 `json:"respiratoryRate,omitempty" bson:"respiratoryRate,omitempty"`

	// ECG
	ECGData        string `json:"ecgData,omitempty" bson:"ecgData,omitempty"` // base64 or file reference
	AbnormalRhythm *bool  `json:"abnormalRhythm,omitempty" bson:"abnormalRhythm,omitempty"`
}

// CreateVitalReadingRequest is the wire shape a device (or the simulator)
// submits.
type CreateVitalReadingRequest struct {
	Patient     string      `json:"patient" validate:"required"`
	DeviceID    string      `json:"deviceId" validate:"required"`
	ReadingType string      `json:"readingType" validate:"required"`
	Values      VitalValues `json:"values"`
	Notes       string      `json:"notes,omitempty"`
}

type BulkVitalReadingRequest struct {
	Readings []CreateVitalReadingRequest `json:"readings" validate:"required,min=1,dive"`
}

type VitalReadingQuery struct {
	Type      string     `form:"type"`
	StartDate *time.Time `form:"startDate" time_format:"2006-01-02T15:04:05Z07:00"`
	EndDate   *time.Time `form:"endDate" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit     int        `form:"limit"`
}
