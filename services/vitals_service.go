package services

import (
	"context"
	"errors"
	"time"
	"vitalwatch/evaluator"
	"vitalwatch/models"
	"vitalwatch/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VitalStore is the persistence surface for readings.
type VitalStore interface {
	Create(ctx context.Context, reading *models.VitalReading) error
	GetByID(ctx context.Context, id string) (*models.VitalReading, error)
	GetByPatient(ctx context.Context, patientID string, query models.VitalReadingQuery) ([]models.VitalReading, error)
	GetLatestPerType(ctx context.Context, patientID string) (map[string]models.VitalReading, error)
	GetAbnormal(ctx context.Context, patientID string, limit int) ([]models.VitalReading, error)
	MarkReviewed(ctx context.Context, id, reviewerID string) error
}

// PatientLoader provides the patient document ingestion classifies against.
type PatientLoader interface {
	GetByID(ctx context.Context, id string) (*models.Patient, error)
}

// AlertCreator is the lifecycle surface ingestion uses for abnormal readings.
type AlertCreator interface {
	CreateFromEvaluation(ctx context.Context, reading *models.VitalReading, eval evaluator.Evaluation) (*models.Alert, error)
}

// VitalsService is the ingestion entry point: validate patient, evaluate,
// persist, publish, conditionally create the alert.
type VitalsService struct {
	vitalRepo    VitalStore
	patientRepo  PatientLoader
	alertService AlertCreator
	publisher    EventPublisher
	validator    *utils.ValidationService
}

func NewVitalsService(vitalRepo VitalStore, patientRepo PatientLoader, alertService AlertCreator, publisher EventPublisher) *VitalsService {
	return &VitalsService{
		vitalRepo:    vitalRepo,
		patientRepo:  patientRepo,
		alertService: alertService,
		publisher:    publisher,
		validator:    utils.NewValidationService(),
	}
}

// IngestReading processes one incoming reading. The reading is returned to
// the caller synchronously; event delivery is not awaited. An unknown reading
// type stores the reading unclassified and suppresses alerting rather than
// failing the call. An unknown patient fails the call with nothing persisted
// or published.
func (vs *VitalsService) IngestReading(ctx context.Context, req models.CreateVitalReadingRequest) (*models.VitalReading, error) {
	if validationErrors := vs.validator.ValidateStruct(req); len(validationErrors) > 0 {
		return nil, utils.NewBadRequestError("Invalid reading payload")
	}

	patient, err := vs.patientRepo.GetByID(ctx, req.Patient)
	if err != nil {
		return nil, utils.NewPatientNotFoundError()
	}

	reading := &models.VitalReading{
		PatientID:   patient.ID,
		DeviceID:    req.DeviceID,
		ReadingType: req.ReadingType,
		Values:      req.Values,
		Notes:       req.Notes,
		Timestamp:   time.Now(),
	}

	eval, evalErr := evaluator.Classify(req.ReadingType, req.Values, patient.MonitoringSettings)

	var unsupported evaluator.UnsupportedMetricError
	switch {
	case evalErr == nil:
		reading.IsNormal = eval.IsNormal
		reading.AlertLevel = eval.Level
		reading.AlertMessage = eval.Message
		reading.AlertTriggered = !eval.IsNormal
	case errors.As(evalErr, &unsupported):
		// Stored as-is, with no classification derived from a failed
		// evaluation. Alerting is suppressed.
		logrus.Warnf("Unsupported reading type %q from device %s, storing unclassified", req.ReadingType, req.DeviceID)
	default:
		return nil, evalErr
	}

	if err := vs.vitalRepo.Create(ctx, reading); err != nil {
		return nil, utils.NewDatabaseError("create reading", err)
	}

	vs.publisher.PublishReadingCreated(patient.ID.Hex(), *reading)

	if reading.AlertTriggered {
		if _, err := vs.alertService.CreateFromEvaluation(ctx, reading, eval); err != nil {
			// The reading is already persisted and published; alert creation
			// failing must not fail the ingestion.
			logrus.Errorf("Failed to create alert for reading %s: %v", reading.ID.Hex(), err)
		}
	}

	return reading, nil
}

// BulkResult reports the outcome of one reading in a bulk submission.
type BulkResult struct {
	Index    int                  `json:"index"`
	Reading  *models.VitalReading `json:"reading,omitempty"`
	Error    string               `json:"error,omitempty"`
	Accepted bool                 `json:"accepted"`
}

// IngestBulk runs every reading through the full ingestion path. One bad
// reading does not abort the rest.
func (vs *VitalsService) IngestBulk(ctx context.Context, req models.BulkVitalReadingRequest) []BulkResult {
	results := make([]BulkResult, len(req.Readings))
	for i, readingReq := range req.Readings {
		reading, err := vs.IngestReading(ctx, readingReq)
		if err != nil {
			results[i] = BulkResult{Index: i, Error: err.Error()}
			continue
		}
		results[i] = BulkResult{Index: i, Reading: reading, Accepted: true}
	}
	return results
}

// =================== READS ===================

func (vs *VitalsService) GetReadings(ctx context.Context, actor models.Identity, patientID string, query models.VitalReadingQuery) ([]models.VitalReading, error) {
	if !actor.Permissions.ViewVitals {
		return nil, utils.NewPermissionDeniedError("view vitals")
	}
	if !actor.CanObserve(patientID) {
		return nil, utils.NewPermissionDeniedError("observe patient")
	}

	return vs.vitalRepo.GetByPatient(ctx, patientID, query)
}

// GetLatest returns the most recent reading of each metric for the patient.
func (vs *VitalsService) GetLatest(ctx context.Context, actor models.Identity, patientID string) (map[string]models.VitalReading, error) {
	if !actor.Permissions.ViewVitals {
		return nil, utils.NewPermissionDeniedError("view vitals")
	}
	if !actor.CanObserve(patientID) {
		return nil, utils.NewPermissionDeniedError("observe patient")
	}

	return vs.vitalRepo.GetLatestPerType(ctx, patientID)
}

func (vs *VitalsService) GetAbnormal(ctx context.Context, actor models.Identity, patientID string, limit int) ([]models.VitalReading, error) {
	if !actor.Permissions.ViewVitals {
		return nil, utils.NewPermissionDeniedError("view vitals")
	}
	if !actor.CanObserve(patientID) {
		return nil, utils.NewPermissionDeniedError("observe patient")
	}

	return vs.vitalRepo.GetAbnormal(ctx, patientID, limit)
}

func (vs *VitalsService) GetReading(ctx context.Context, actor models.Identity, readingID string) (*models.VitalReading, error) {
	reading, err := vs.vitalRepo.GetByID(ctx, readingID)
	if err != nil {
		return nil, utils.NewNotFoundError("Reading")
	}

	if !actor.Permissions.ViewVitals || !actor.CanObserve(reading.PatientID.Hex()) {
		return nil, utils.NewPermissionDeniedError("observe patient")
	}

	return reading, nil
}

// MarkReviewed records that a clinician looked at the reading.
func (vs *VitalsService) MarkReviewed(ctx context.Context, actor models.Identity, readingID string) error {
	if !actor.Permissions.AcknowledgeAlerts {
		return utils.NewPermissionDeniedError("acknowledge alerts")
	}

	reading, err := vs.vitalRepo.GetByID(ctx, readingID)
	if err != nil {
		return utils.NewNotFoundError("Reading")
	}
	if !actor.CanObserve(reading.PatientID.Hex()) {
		return utils.NewPermissionDeniedError("observe patient")
	}

	if _, err := primitive.ObjectIDFromHex(actor.UserID); err != nil {
		return utils.NewBadRequestError("Invalid reviewer ID")
	}

	return vs.vitalRepo.MarkReviewed(ctx, readingID, actor.UserID)
}
