package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"vitalwatch/evaluator"
	"vitalwatch/models"
	"vitalwatch/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeVitalStore struct {
	mu       sync.Mutex
	readings []*models.VitalReading
}

func (s *fakeVitalStore) Create(ctx context.Context, reading *models.VitalReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reading.ID = primitive.NewObjectID()
	copied := *reading
	s.readings = append(s.readings, &copied)
	return nil
}

func (s *fakeVitalStore) GetByID(ctx context.Context, id string) (*models.VitalReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reading := range s.readings {
		if reading.ID.Hex() == id {
			copied := *reading
			return &copied, nil
		}
	}
	return nil, errors.New("reading not found")
}

func (s *fakeVitalStore) GetByPatient(ctx context.Context, patientID string, query models.VitalReadingQuery) ([]models.VitalReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.VitalReading
	for _, reading := range s.readings {
		if reading.PatientID.Hex() == patientID {
			out = append(out, *reading)
		}
	}
	return out, nil
}

func (s *fakeVitalStore) GetLatestPerType(ctx context.Context, patientID string) (map[string]models.VitalReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := make(map[string]models.VitalReading)
	for _, reading := range s.readings {
		if reading.PatientID.Hex() == patientID {
			latest[reading.ReadingType] = *reading
		}
	}
	return latest, nil
}

func (s *fakeVitalStore) GetAbnormal(ctx context.Context, patientID string, limit int) ([]models.VitalReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.VitalReading
	for _, reading := range s.readings {
		if reading.PatientID.Hex() == patientID && reading.AlertTriggered {
			out = append(out, *reading)
		}
	}
	return out, nil
}

func (s *fakeVitalStore) MarkReviewed(ctx context.Context, id, reviewerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reading := range s.readings {
		if reading.ID.Hex() == id {
			reviewer, err := primitive.ObjectIDFromHex(reviewerID)
			if err != nil {
				return err
			}
			now := time.Now()
			reading.ReviewedBy = reviewer
			reading.ReviewedAt = &now
			return nil
		}
	}
	return errors.New("reading not found")
}

func (s *fakeVitalStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings)
}

type failingAlertCreator struct{}

func (failingAlertCreator) CreateFromEvaluation(ctx context.Context, reading *models.VitalReading, eval evaluator.Evaluation) (*models.Alert, error) {
	return nil, errors.New("alert store unavailable")
}

type vitalsFixture struct {
	service   *VitalsService
	vitals    *fakeVitalStore
	alerts    *fakeAlertStore
	publisher *fakePublisher
	patientID string
}

// newVitalsFixture wires the real alert lifecycle behind ingestion so the
// reading event and the alert event land on the same publisher in order.
func newVitalsFixture(t *testing.T) *vitalsFixture {
	t.Helper()
	patientID := primitive.NewObjectID()
	patients := &fakePatientChecker{patients: map[string]*models.Patient{
		patientID.Hex(): {
			ID:                 patientID,
			FirstName:          "Edna",
			LastName:           "Moran",
			MonitoringSettings: models.DefaultMonitoringSettings(),
		},
	}}

	vitals := &fakeVitalStore{}
	alerts := newFakeAlertStore()
	publisher := &fakePublisher{}
	alertService := NewAlertService(alerts, patients, publisher, nil)

	return &vitalsFixture{
		service:   NewVitalsService(vitals, patients, alertService, publisher),
		vitals:    vitals,
		alerts:    alerts,
		publisher: publisher,
		patientID: patientID.Hex(),
	}
}

func floatPtr(v float64) *float64 { return &v }

func heartRateRequest(patientID string, bpm float64) models.CreateVitalReadingRequest {
	return models.CreateVitalReadingRequest{
		Patient:     patientID,
		DeviceID:    "device-042",
		ReadingType: models.ReadingHeartRate,
		Values:      models.VitalValues{HeartRate: floatPtr(bpm)},
	}
}

func TestIngestNormalReading(t *testing.T) {
	f := newVitalsFixture(t)

	reading, err := f.service.IngestReading(context.Background(), heartRateRequest(f.patientID, 72))
	require.NoError(t, err)

	assert.True(t, reading.IsNormal)
	assert.False(t, reading.AlertTriggered)
	assert.Equal(t, models.LevelNormal, reading.AlertLevel)
	assert.False(t, reading.ID.IsZero())
	assert.Equal(t, 1, f.vitals.count())

	assert.Equal(t, []string{models.EventReadingCreated}, f.publisher.kinds())
	assert.Empty(t, f.alerts.alerts)
}

func TestIngestAbnormalReadingCreatesAlertAfterReadingEvent(t *testing.T) {
	f := newVitalsFixture(t)

	reading, err := f.service.IngestReading(context.Background(), heartRateRequest(f.patientID, 150))
	require.NoError(t, err)

	assert.False(t, reading.IsNormal)
	assert.True(t, reading.AlertTriggered)
	assert.Equal(t, models.LevelEmergency, reading.AlertLevel)

	require.Equal(t, []string{models.EventReadingCreated, models.EventAlertCreated}, f.publisher.kinds())

	require.Len(t, f.alerts.alerts, 1)
	for _, alert := range f.alerts.alerts {
		assert.Equal(t, models.SeverityCritical, alert.Severity)
		assert.Equal(t, models.AlertTypeCriticalVital, alert.AlertType)
		assert.Equal(t, reading.ID, alert.VitalReadingID)
	}
}

func TestIngestWarningReadingCreatesHighSeverityAlert(t *testing.T) {
	f := newVitalsFixture(t)

	reading, err := f.service.IngestReading(context.Background(), heartRateRequest(f.patientID, 120))
	require.NoError(t, err)
	assert.Equal(t, models.LevelWarning, reading.AlertLevel)

	require.Len(t, f.alerts.alerts, 1)
	for _, alert := range f.alerts.alerts {
		assert.Equal(t, models.SeverityHigh, alert.Severity)
		assert.Equal(t, models.AlertTypeVitalAbnormal, alert.AlertType)
	}
}

func TestIngestUnknownPatientPersistsNothing(t *testing.T) {
	f := newVitalsFixture(t)

	_, err := f.service.IngestReading(context.Background(), heartRateRequest(primitive.NewObjectID().Hex(), 150))
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodePatientNotFound))

	assert.Equal(t, 0, f.vitals.count())
	assert.Empty(t, f.publisher.kinds())
	assert.Empty(t, f.alerts.alerts)
}

func TestIngestUnsupportedMetricStoresUnclassified(t *testing.T) {
	f := newVitalsFixture(t)

	req := models.CreateVitalReadingRequest{
		Patient:     f.patientID,
		DeviceID:    "device-042",
		ReadingType: "posture",
	}

	reading, err := f.service.IngestReading(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, reading.IsNormal)
	assert.False(t, reading.AlertTriggered)
	assert.Empty(t, reading.AlertLevel)
	assert.Equal(t, 1, f.vitals.count())

	// The reading event goes out; no alert is ever raised for it.
	assert.Equal(t, []string{models.EventReadingCreated}, f.publisher.kinds())
	assert.Empty(t, f.alerts.alerts)
}

func TestIngestDisabledMetricClassifiesNormal(t *testing.T) {
	f := newVitalsFixture(t)

	// Glucose monitoring is disabled by default, so even an extreme value
	// classifies normal.
	req := models.CreateVitalReadingRequest{
		Patient:     f.patientID,
		DeviceID:    "device-042",
		ReadingType: models.ReadingGlucose,
		Values:      models.VitalValues{Glucose: floatPtr(300)},
	}

	reading, err := f.service.IngestReading(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, reading.IsNormal)
	assert.False(t, reading.AlertTriggered)
	assert.Empty(t, f.alerts.alerts)
}

func TestIngestRejectsInvalidPayload(t *testing.T) {
	f := newVitalsFixture(t)

	req := heartRateRequest(f.patientID, 72)
	req.DeviceID = ""

	_, err := f.service.IngestReading(context.Background(), req)
	assert.True(t, utils.IsErrorCode(err, "BAD_REQUEST"))
	assert.Equal(t, 0, f.vitals.count())
	assert.Empty(t, f.publisher.kinds())
}

func TestIngestSurvivesAlertCreationFailure(t *testing.T) {
	f := newVitalsFixture(t)
	f.service.alertService = failingAlertCreator{}

	reading, err := f.service.IngestReading(context.Background(), heartRateRequest(f.patientID, 150))
	require.NoError(t, err)
	assert.True(t, reading.AlertTriggered)
	assert.Equal(t, 1, f.vitals.count())
	assert.Equal(t, []string{models.EventReadingCreated}, f.publisher.kinds())
}

func TestIngestBulkMixedResults(t *testing.T) {
	f := newVitalsFixture(t)

	req := models.BulkVitalReadingRequest{Readings: []models.CreateVitalReadingRequest{
		heartRateRequest(f.patientID, 72),
		heartRateRequest(primitive.NewObjectID().Hex(), 72),
		heartRateRequest(f.patientID, 150),
	}}

	results := f.service.IngestBulk(context.Background(), req)
	require.Len(t, results, 3)

	assert.True(t, results[0].Accepted)
	assert.False(t, results[1].Accepted)
	assert.NotEmpty(t, results[1].Error)
	assert.True(t, results[2].Accepted)
	assert.True(t, results[2].Reading.AlertTriggered)

	assert.Equal(t, 2, f.vitals.count())
}

func TestGetReadingsRequiresObservation(t *testing.T) {
	f := newVitalsFixture(t)

	_, err := f.service.IngestReading(context.Background(), heartRateRequest(f.patientID, 72))
	require.NoError(t, err)

	stranger := identityWithRole(models.RoleNurse, primitive.NewObjectID().Hex())
	_, err = f.service.GetReadings(context.Background(), stranger, f.patientID, models.VitalReadingQuery{})
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodePermissionDenied))

	assigned := identityWithRole(models.RoleFamily, f.patientID)
	readings, err := f.service.GetReadings(context.Background(), assigned, f.patientID, models.VitalReadingQuery{})
	require.NoError(t, err)
	assert.Len(t, readings, 1)
}

func TestMarkReviewedRequiresAcknowledgeCapability(t *testing.T) {
	f := newVitalsFixture(t)

	reading, err := f.service.IngestReading(context.Background(), heartRateRequest(f.patientID, 72))
	require.NoError(t, err)

	family := identityWithRole(models.RoleFamily, f.patientID)
	err = f.service.MarkReviewed(context.Background(), family, reading.ID.Hex())
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodePermissionDenied))

	nurse := identityWithRole(models.RoleNurse, f.patientID)
	require.NoError(t, f.service.MarkReviewed(context.Background(), nurse, reading.ID.Hex()))

	stored, err := f.vitals.GetByID(context.Background(), reading.ID.Hex())
	require.NoError(t, err)
	assert.NotNil(t, stored.ReviewedAt)
}
