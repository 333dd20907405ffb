package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Patient statuses
const (
	PatientStatusActive       = "active"
	PatientStatusInactive     = "inactive"
	PatientStatusHospitalized = "hospitalized"
	PatientStatusDeceased     = "deceased"
)

type Patient struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FirstName           string             `json:"firstName" bson:"firstName"`
	LastName            string             `json:"lastName" bson:"lastName"`
	DateOfBirth         time.Time          `json:"dateOfBirth" bson:"dateOfBirth"`
	Gender              string             `json:"gender" bson:"gender"` // male, female, other
	MedicalRecordNumber string             `json:"medicalRecordNumber" bson:"medicalRecordNumber"`

	PhoneNumber      string            `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	EmergencyContact EmergencyContact  `json:"emergencyContact" bson:"emergencyContact"`
	Conditions       []MedicalCondition `json:"medicalConditions,omitempty" bson:"medicalConditions,omitempty"`
	Allergies        []string          `json:"allergies,omitempty" bson:"allergies,omitempty"`

	AssignedDoctor primitive.ObjectID   `json:"assignedDoctor,omitempty" bson:"assignedDoctor,omitempty"`
	FamilyMembers  []primitive.ObjectID `json:"familyMembers,omitempty" bson:"familyMembers,omitempty"`
	Caregivers     []primitive.ObjectID `json:"caregivers,omitempty" bson:"caregivers,omitempty"`

	Devices []PatientDevice `json:"devices,omitempty" bson:"devices,omitempty"`

	MonitoringSettings MonitoringSettings `json:"monitoringSettings" bson:"monitoringSettings"`

	Status string `json:"status" bson:"status"` // active, inactive, hospitalized, deceased
	Notes  string `json:"notes,omitempty" bson:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

type EmergencyContact struct {
	Name         string `json:"name" bson:"name"`
	Relationship string `json:"relationship,omitempty" bson:"relationship,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
}

type MedicalCondition struct {
	Condition     string    `json:"condition" bson:"condition"`
	DiagnosedDate time.Time `json:"diagnosedDate,omitempty" bson:"diagnosedDate,omitempty"`
	Notes         string    `json:"notes,omitempty" bson:"notes,omitempty"`
}

type PatientDevice struct {
	DeviceID        string    `json:"deviceId" bson:"deviceId"`
	DeviceType      string    `json:"deviceType" bson:"deviceType"`
	InstallDate     time.Time `json:"installDate,omitempty" bson:"installDate,omitempty"`
	LastCalibration time.Time `json:"lastCalibration,omitempty" bson:"lastCalibration,omitempty"`
	Status          string    `json:"status" bson:"status"` // active, inactive, maintenance
}

// MonitoringSettings holds the per-metric threshold configuration. Changes
// take effect on the next reading; stored readings are never reclassified.
type MonitoringSettings struct {
	BloodPressure    BloodPressureSettings `json:"bloodPressure" bson:"bloodPressure"`
	Glucose          MetricSettings        `json:"glucose" bson:"glucose"`
	HeartRate        MetricSettings        `json:"heartRate" bson:"heartRate"`
	Temperature      MetricSettings        `json:"temperature" bson:"temperature"`
	OxygenSaturation CeilingSettings       `json:"oxygenSaturation" bson:"oxygenSaturation"`
	RespiratoryRate  MetricSettings        `json:"respiratoryRate" bson:"respiratoryRate"`
	ECG              ToggleSettings        `json:"ecg" bson:"ecg"`
}

type ThresholdBand struct {
	Min float64 `json:"min" bson:"min"`
	Max float64 `json:"max" bson:"max"`
}

// MetricSettings covers metrics with a single min/max band.
type MetricSettings struct {
	Enabled         bool          `json:"enabled" bson:"enabled"`
	IntervalMinutes int           `json:"frequency" bson:"frequency"` // sampling interval
	Thresholds      ThresholdBand `json:"alertThresholds" bson:"alertThresholds"`
}

// BloodPressureSettings carries separate systolic and diastolic bands.
type BloodPressureSettings struct {
	Enabled         bool          `json:"enabled" bson:"enabled"`
	IntervalMinutes int           `json:"frequency" bson:"frequency"`
	Systolic        ThresholdBand `json:"systolic" bson:"systolic"`
	Diastolic       ThresholdBand `json:"diastolic" bson:"diastolic"`
}

// CeilingSettings covers metrics bounded on one side only, such as oxygen
// saturation where only the lower bound matters.
type CeilingSettings struct {
	Enabled         bool    `json:"enabled" bson:"enabled"`
	IntervalMinutes int     `json:"frequency" bson:"frequency"`
	Min             float64 `json:"min" bson:"min"`
}

type ToggleSettings struct {
	Enabled         bool `json:"enabled" bson:"enabled"`
	IntervalMinutes int  `json:"frequency" bson:"frequency"`
}

// DefaultMonitoringSettings mirrors the defaults patients are created with.
func DefaultMonitoringSettings() MonitoringSettings {
	return MonitoringSettings{
		BloodPressure: BloodPressureSettings{
			Enabled:         true,
			IntervalMinutes: 30,
			Systolic:        ThresholdBand{Min: 90, Max: 140},
			Diastolic:       ThresholdBand{Min: 60, Max: 90},
		},
		Glucose: MetricSettings{
			Enabled:         false,
			IntervalMinutes: 60,
			Thresholds:      ThresholdBand{Min: 70, Max: 180},
		},
		HeartRate: MetricSettings{
			Enabled:         true,
			IntervalMinutes: 5,
			Thresholds:      ThresholdBand{Min: 50, Max: 100},
		},
		Temperature: MetricSettings{
			Enabled:         true,
			IntervalMinutes: 120,
			Thresholds:      ThresholdBand{Min: 97.0, Max: 99.5},
		},
		OxygenSaturation: CeilingSettings{
			Enabled:         true,
			IntervalMinutes: 15,
			Min:             95,
		},
		RespiratoryRate: MetricSettings{
			Enabled:         true,
			IntervalMinutes: 15,
			Thresholds:      ThresholdBand{Min: 12, Max: 20},
		},
		ECG: ToggleSettings{
			Enabled:         false,
			IntervalMinutes: 60,
		},
	}
}

type CreatePatientRequest struct {
	FirstName           string    `json:"firstName" validate:"required"`
	LastName            string    `json:"lastName" validate:"required"`
	DateOfBirth         time.Time `json:"dateOfBirth" validate:"required"`
	Gender              string    `json:"gender" validate:"required,oneof=male female other"`
	MedicalRecordNumber string    `json:"medicalRecordNumber" validate:"required"`
	PhoneNumber         string    `json:"phoneNumber,omitempty"`
	Notes               string    `json:"notes,omitempty"`
}

type UpdateMonitoringSettingsRequest struct {
	Settings MonitoringSettings `json:"settings" validate:"required"`
}
