package services

import (
	"context"
	"time"
	"vitalwatch/models"
	"vitalwatch/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PatientStore is the persistence surface for patients.
type PatientStore interface {
	Create(ctx context.Context, patient *models.Patient) error
	GetByID(ctx context.Context, id string) (*models.Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*models.Patient, error)
	GetAll(ctx context.Context, limit, offset int) ([]models.Patient, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Patient, error)
	Update(ctx context.Context, id string, update bson.M) error
	UpdateMonitoringSettings(ctx context.Context, id string, settings models.MonitoringSettings) error
}

// PatientService covers the patient CRUD subset the monitoring pipeline
// needs, plus threshold-settings management.
type PatientService struct {
	patientRepo PatientStore
	publisher   EventPublisher
	validator   *utils.ValidationService
}

func NewPatientService(patientRepo PatientStore, publisher EventPublisher) *PatientService {
	return &PatientService{
		patientRepo: patientRepo,
		publisher:   publisher,
		validator:   utils.NewValidationService(),
	}
}

// CreatePatient registers a patient with default monitoring thresholds.
// Admin and doctor only.
func (ps *PatientService) CreatePatient(ctx context.Context, actor models.Identity, req models.CreatePatientRequest) (*models.Patient, error) {
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleDoctor {
		return nil, utils.NewPermissionDeniedError("manage patients")
	}

	if validationErrors := ps.validator.ValidateStruct(req); len(validationErrors) > 0 {
		return nil, utils.NewBadRequestError("Invalid patient payload")
	}

	if existing, err := ps.patientRepo.GetByMRN(ctx, req.MedicalRecordNumber); err == nil && existing != nil {
		return nil, utils.NewConflictError("Medical record number already registered")
	}

	patient := &models.Patient{
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		DateOfBirth:         req.DateOfBirth,
		Gender:              req.Gender,
		MedicalRecordNumber: req.MedicalRecordNumber,
		PhoneNumber:         req.PhoneNumber,
		Notes:               req.Notes,
		Status:              models.PatientStatusActive,
		MonitoringSettings:  models.DefaultMonitoringSettings(),
	}

	if actor.Role == models.RoleDoctor {
		if doctorID, err := primitive.ObjectIDFromHex(actor.UserID); err == nil {
			patient.AssignedDoctor = doctorID
		}
	}

	if err := ps.patientRepo.Create(ctx, patient); err != nil {
		return nil, utils.NewDatabaseError("create patient", err)
	}

	return patient, nil
}

func (ps *PatientService) GetPatient(ctx context.Context, actor models.Identity, patientID string) (*models.Patient, error) {
	if !actor.CanObserve(patientID) {
		return nil, utils.NewPermissionDeniedError("observe patient")
	}

	patient, err := ps.patientRepo.GetByID(ctx, patientID)
	if err != nil {
		return nil, utils.NewPatientNotFoundError()
	}

	return patient, nil
}

// ListPatients returns the patients the actor may observe.
func (ps *PatientService) ListPatients(ctx context.Context, actor models.Identity, limit, offset int) ([]models.Patient, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	if actor.EntitledToAll() {
		return ps.patientRepo.GetAll(ctx, limit, offset)
	}

	if len(actor.AssignedPatients) == 0 {
		return []models.Patient{}, nil
	}

	return ps.patientRepo.GetByIDs(ctx, actor.AssignedPatients)
}

// GetMonitoringSettings returns the patient's threshold configuration.
func (ps *PatientService) GetMonitoringSettings(ctx context.Context, actor models.Identity, patientID string) (*models.MonitoringSettings, error) {
	patient, err := ps.GetPatient(ctx, actor, patientID)
	if err != nil {
		return nil, err
	}
	return &patient.MonitoringSettings, nil
}

// UpdateMonitoringSettings replaces the patient's threshold configuration and
// publishes settings-updated. New thresholds apply to the next reading only;
// stored readings are never reclassified.
func (ps *PatientService) UpdateMonitoringSettings(ctx context.Context, actor models.Identity, patientID string, req models.UpdateMonitoringSettingsRequest) (*models.MonitoringSettings, error) {
	if !actor.Permissions.ModifyPatientSettings {
		return nil, utils.NewPermissionDeniedError("modify patient settings")
	}
	if !actor.CanObserve(patientID) {
		return nil, utils.NewPermissionDeniedError("observe patient")
	}

	if _, err := ps.patientRepo.GetByID(ctx, patientID); err != nil {
		return nil, utils.NewPatientNotFoundError()
	}

	if err := ps.patientRepo.UpdateMonitoringSettings(ctx, patientID, req.Settings); err != nil {
		return nil, utils.NewDatabaseError("update monitoring settings", err)
	}

	ps.publisher.PublishSettingsUpdated(models.WSSettingsUpdate{
		PatientID: patientID,
		Settings:  req.Settings,
		UpdatedBy: actor.UserID,
		UpdatedAt: time.Now(),
	})

	return &req.Settings, nil
}

// UpdatePatient applies a partial update to demographic fields.
func (ps *PatientService) UpdatePatient(ctx context.Context, actor models.Identity, patientID string, update bson.M) (*models.Patient, error) {
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleDoctor {
		return nil, utils.NewPermissionDeniedError("manage patients")
	}
	if !actor.CanObserve(patientID) {
		return nil, utils.NewPermissionDeniedError("observe patient")
	}

	allowed := bson.M{}
	for _, field := range []string{"firstName", "lastName", "phoneNumber", "status", "notes", "emergencyContact"} {
		if value, ok := update[field]; ok {
			allowed[field] = value
		}
	}
	if len(allowed) == 0 {
		return nil, utils.NewBadRequestError("No updatable fields provided")
	}

	if err := ps.patientRepo.Update(ctx, patientID, allowed); err != nil {
		return nil, utils.NewPatientNotFoundError()
	}

	return ps.patientRepo.GetByID(ctx, patientID)
}
