package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles
const (
	RoleDoctor    = "doctor"
	RoleNurse     = "nurse"
	RoleFamily    = "family"
	RoleCaregiver = "caregiver"
	RoleAdmin     = "admin"
)

type User struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Email    string             `json:"email" bson:"email"`
	Password string             `json:"-" bson:"password"` // Never include in JSON responses

	// Basic Info
	FirstName   string `json:"firstName" bson:"firstName"`
	LastName    string `json:"lastName" bson:"lastName"`
	PhoneNumber string `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	DeviceToken string `json:"-" bson:"deviceToken,omitempty"`

	Role string `json:"role" bson:"role"` // doctor, nurse, family, caregiver, admin

	// Doctor/Nurse specific
	LicenseNumber  string `json:"licenseNumber,omitempty" bson:"licenseNumber,omitempty"`
	Specialization string `json:"specialization,omitempty" bson:"specialization,omitempty"`
	Department     string `json:"department,omitempty" bson:"department,omitempty"`

	// Family member specific
	RelationshipToPatient string `json:"relationshipToPatient,omitempty" bson:"relationshipToPatient,omitempty"`
	IsPrimaryContact      bool   `json:"isPrimaryContact" bson:"isPrimaryContact"`

	// Access control
	AssignedPatients []primitive.ObjectID `json:"assignedPatients" bson:"assignedPatients"`
	Permissions      Permissions          `json:"permissions" bson:"permissions"`

	NotificationPreferences NotificationPreferences `json:"notificationPreferences" bson:"notificationPreferences"`

	// Account Status
	IsActive  bool      `json:"isActive" bson:"isActive"`
	LastLogin time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Permissions is the capability set attached to an identity, independent of role.
type Permissions struct {
	ViewVitals            bool `json:"viewVitals" bson:"viewVitals"`
	ViewAlerts            bool `json:"viewAlerts" bson:"viewAlerts"`
	ViewCameraFeeds       bool `json:"viewCameraFeeds" bson:"viewCameraFeeds"`
	AcknowledgeAlerts     bool `json:"acknowledgeAlerts" bson:"acknowledgeAlerts"`
	ModifyPatientSettings bool `json:"modifyPatientSettings" bson:"modifyPatientSettings"`
	EmergencyOverride     bool `json:"emergencyOverride" bson:"emergencyOverride"`
}

// DefaultPermissions returns the capability set granted to a role on creation.
func DefaultPermissions(role string) Permissions {
	switch role {
	case RoleDoctor:
		return Permissions{ViewVitals: true, ViewAlerts: true, ViewCameraFeeds: true, AcknowledgeAlerts: true, ModifyPatientSettings: true, EmergencyOverride: true}
	case RoleNurse:
		return Permissions{ViewVitals: true, ViewAlerts: true, ViewCameraFeeds: true, AcknowledgeAlerts: true}
	case RoleFamily:
		return Permissions{ViewVitals: true, ViewAlerts: true, ViewCameraFeeds: true}
	case RoleCaregiver:
		return Permissions{ViewVitals: true, ViewAlerts: true, AcknowledgeAlerts: true}
	case RoleAdmin:
		return Permissions{ViewVitals: true, ViewAlerts: true, ViewCameraFeeds: true, AcknowledgeAlerts: true, ModifyPatientSettings: true, EmergencyOverride: true}
	default:
		return Permissions{ViewVitals: true, ViewAlerts: true}
	}
}

type NotificationPreferences struct {
	Email                  bool       `json:"email" bson:"email"`
	SMS                    bool       `json:"sms" bson:"sms"`
	Push                   bool       `json:"push" bson:"push"`
	AlertSeverityThreshold string     `json:"alertSeverityThreshold" bson:"alertSeverityThreshold"` // low, medium, high, critical
	QuietHours             QuietHours `json:"quietHours" bson:"quietHours"`
}

type QuietHours struct {
	Enabled bool   `json:"enabled" bson:"enabled"`
	Start   string `json:"start,omitempty" bson:"start,omitempty"` // HH:MM
	End     string `json:"end,omitempty" bson:"end,omitempty"`
}

// Identity is the already-authenticated fact the core operates on: a role, a
// capability set and the patients this identity may observe. It is resolved
// once per request/connection by the access-control boundary and treated as
// opaque everywhere else.
type Identity struct {
	UserID           string      `json:"userId"`
	Role             string      `json:"role"`
	Permissions      Permissions `json:"permissions"`
	AssignedPatients []string    `json:"assignedPatients"`
}

// Identity derives the request-scoped identity from a stored user.
func (u *User) Identity() Identity {
	patients := make([]string, 0, len(u.AssignedPatients))
	for _, id := range u.AssignedPatients {
		patients = append(patients, id.Hex())
	}
	return Identity{
		UserID:           u.ID.Hex(),
		Role:             u.Role,
		Permissions:      u.Permissions,
		AssignedPatients: patients,
	}
}

// EntitledToAll reports whether the identity may observe every patient.
// Admins, and doctors holding the emergency override capability, are.
func (id Identity) EntitledToAll() bool {
	return id.Role == RoleAdmin || (id.Role == RoleDoctor && id.Permissions.EmergencyOverride)
}

// CanObserve reports whether the identity may observe the given patient.
func (id Identity) CanObserve(patientID string) bool {
	if id.EntitledToAll() {
		return true
	}
	for _, p := range id.AssignedPatients {
		if p == patientID {
			return true
		}
	}
	return false
}
