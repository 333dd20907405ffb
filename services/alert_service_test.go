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
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// =================== FAKES ===================

type fakeAlertStore struct {
	mu     sync.Mutex
	alerts map[string]*models.Alert
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: make(map[string]*models.Alert)}
}

func (s *fakeAlertStore) Create(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert.ID = primitive.NewObjectID()
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = time.Now()
	copied := *alert
	s.alerts[alert.ID.Hex()] = &copied
	return nil
}

func (s *fakeAlertStore) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return nil, errors.New("alert not found")
	}
	copied := *alert
	return &copied, nil
}

func (s *fakeAlertStore) Update(ctx context.Context, id string, update bson.M) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return errors.New("alert not found")
	}
	for key, value := range update {
		switch key {
		case "status":
			alert.Status = value.(string)
		case "severity":
			alert.Severity = value.(string)
		case "acknowledgedBy":
			alert.AcknowledgedBy = value.(primitive.ObjectID)
		case "acknowledgedAt":
			at := value.(time.Time)
			alert.AcknowledgedAt = &at
		case "resolvedBy":
			alert.ResolvedBy = value.(primitive.ObjectID)
		case "resolvedAt":
			at := value.(time.Time)
			alert.ResolvedAt = &at
		case "resolution":
			alert.Resolution = value.(string)
		case "escalatedBy":
			alert.EscalatedBy = value.(primitive.ObjectID)
		case "escalatedAt":
			at := value.(time.Time)
			alert.EscalatedAt = &at
		case "emergencyServicesContacted":
			alert.EmergencyServices = value.(models.EmergencyServicesRecord)
		}
	}
	alert.UpdatedAt = time.Now()
	return nil
}

func (s *fakeAlertStore) GetByPatient(ctx context.Context, patientID string, query models.AlertQuery) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, alert := range s.alerts {
		if alert.PatientID.Hex() == patientID {
			out = append(out, *alert)
		}
	}
	return out, nil
}

func (s *fakeAlertStore) GetOpen(ctx context.Context, patientIDs []string, query models.AlertQuery) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, alert := range s.alerts {
		if alert.Status == models.AlertStatusResolved {
			continue
		}
		if patientIDs != nil && !contains(patientIDs, alert.PatientID.Hex()) {
			continue
		}
		out = append(out, *alert)
	}
	return out, nil
}

func (s *fakeAlertStore) CountByStatus(ctx context.Context, patientIDs []string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, alert := range s.alerts {
		if patientIDs != nil && !contains(patientIDs, alert.PatientID.Hex()) {
			continue
		}
		counts[alert.Status]++
	}
	return counts, nil
}

func (s *fakeAlertStore) CountByType(ctx context.Context, patientIDs []string, since time.Time) ([]models.AlertTypeCount, error) {
	return nil, nil
}

func (s *fakeAlertStore) AppendNotification(ctx context.Context, id string, notification models.AlertNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return errors.New("alert not found")
	}
	alert.Notifications = append(alert.Notifications, notification)
	return nil
}

func (s *fakeAlertStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	return nil
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

type fakePatientChecker struct {
	patients map[string]*models.Patient
}

func (f *fakePatientChecker) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := f.patients[id]
	return ok, nil
}

func (f *fakePatientChecker) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	patient, ok := f.patients[id]
	if !ok {
		return nil, errors.New("patient not found")
	}
	return patient, nil
}

type publishedEvent struct {
	Kind      string
	PatientID string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) record(kind, patientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Kind: kind, PatientID: patientID})
}

func (p *fakePublisher) PublishReadingCreated(patientID string, reading models.VitalReading) {
	p.record(models.EventReadingCreated, patientID)
}

func (p *fakePublisher) PublishAlertCreated(patientID string, alert models.Alert) {
	p.record(models.EventAlertCreated, patientID)
}

func (p *fakePublisher) PublishAlertTransition(eventType string, transition models.WSAlertTransition) {
	p.record(eventType, transition.PatientID)
}

func (p *fakePublisher) PublishSettingsUpdated(update models.WSSettingsUpdate) {
	p.record(models.EventSettingsUpdated, update.PatientID)
}

func (p *fakePublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]string, len(p.events))
	for i, event := range p.events {
		kinds[i] = event.Kind
	}
	return kinds
}

type fakeNotifier struct {
	mu     sync.Mutex
	queued int
}

func (n *fakeNotifier) QueueAlertNotifications(ctx context.Context, alert *models.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queued++
}

// =================== HELPERS ===================

func identityWithRole(role string, patients ...string) models.Identity {
	return models.Identity{
		UserID:           primitive.NewObjectID().Hex(),
		Role:             role,
		Permissions:      models.DefaultPermissions(role),
		AssignedPatients: patients,
	}
}

type alertServiceFixture struct {
	service   *AlertService
	store     *fakeAlertStore
	publisher *fakePublisher
	notifier  *fakeNotifier
	patientID string
}

func newAlertServiceFixture(t *testing.T) *alertServiceFixture {
	t.Helper()
	patientID := primitive.NewObjectID()
	store := newFakeAlertStore()
	publisher := &fakePublisher{}
	notifier := &fakeNotifier{}
	patients := &fakePatientChecker{patients: map[string]*models.Patient{
		patientID.Hex(): {ID: patientID, FirstName: "Edna", LastName: "Moran"},
	}}

	return &alertServiceFixture{
		service:   NewAlertService(store, patients, publisher, notifier),
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		patientID: patientID.Hex(),
	}
}

func (f *alertServiceFixture) createActiveAlert(t *testing.T) *models.Alert {
	t.Helper()
	patientObjectID, err := primitive.ObjectIDFromHex(f.patientID)
	require.NoError(t, err)

	alert := &models.Alert{
		PatientID: patientObjectID,
		AlertType: models.AlertTypeVitalAbnormal,
		Severity:  models.SeverityHigh,
		Title:     "Abnormal vital sign: heart-rate",
		Message:   "Heart rate 120 bpm outside configured range",
		Status:    models.AlertStatusActive,
	}
	require.NoError(t, f.store.Create(context.Background(), alert))
	return alert
}

// =================== CREATION ===================

func TestCreateFromEvaluationSeverityMapping(t *testing.T) {
	tests := []struct {
		name         string
		level        string
		wantSeverity string
		wantType     string
	}{
		{"warning collapses to high", models.LevelWarning, models.SeverityHigh, models.AlertTypeVitalAbnormal},
		{"critical stays critical", models.LevelCritical, models.SeverityCritical, models.AlertTypeCriticalVital},
		{"emergency collapses to critical", models.LevelEmergency, models.SeverityCritical, models.AlertTypeCriticalVital},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAlertServiceFixture(t)
			patientObjectID, _ := primitive.ObjectIDFromHex(f.patientID)

			reading := &models.VitalReading{
				ID:          primitive.NewObjectID(),
				PatientID:   patientObjectID,
				ReadingType: models.ReadingHeartRate,
			}

			alert, err := f.service.CreateFromEvaluation(context.Background(), reading, evaluator.Evaluation{
				IsNormal: false,
				Level:    tt.level,
				Message:  "out of range",
			})

			require.NoError(t, err)
			assert.Equal(t, tt.wantSeverity, alert.Severity)
			assert.Equal(t, tt.wantType, alert.AlertType)
			assert.Equal(t, models.AlertStatusActive, alert.Status)
			assert.Equal(t, []string{models.EventAlertCreated}, f.publisher.kinds())
			assert.Equal(t, 1, f.notifier.queued)
		})
	}
}

func TestCreateAlertRequiresCapabilityAndPatient(t *testing.T) {
	f := newAlertServiceFixture(t)

	req := models.CreateAlertRequest{
		Patient:   f.patientID,
		AlertType: models.AlertTypeFallDetected,
		Severity:  models.SeverityHigh,
		Title:     "Fall detected",
		Message:   "Bedroom sensor reported a fall",
	}

	t.Run("family lacks acknowledge capability", func(t *testing.T) {
		family := identityWithRole(models.RoleFamily, f.patientID)
		_, err := f.service.CreateAlert(context.Background(), family, req)
		assert.True(t, utils.IsErrorCode(err, utils.ErrCodePermissionDenied))
	})

	t.Run("nurse creates for assigned patient", func(t *testing.T) {
		nurse := identityWithRole(models.RoleNurse, f.patientID)
		alert, err := f.service.CreateAlert(context.Background(), nurse, req)
		require.NoError(t, err)
		assert.Equal(t, models.AlertStatusActive, alert.Status)
	})

	t.Run("unknown patient rejected", func(t *testing.T) {
		nurse := identityWithRole(models.RoleNurse, f.patientID, "64f000000000000000000000")
		missing := req
		missing.Patient = "64f000000000000000000000"
		_, err := f.service.CreateAlert(context.Background(), nurse, missing)
		assert.True(t, utils.IsErrorCode(err, utils.ErrCodePatientNotFound))
	})
}

// =================== TRANSITIONS ===================

func TestAcknowledgeTransition(t *testing.T) {
	f := newAlertServiceFixture(t)
	alert := f.createActiveAlert(t)
	nurse := identityWithRole(models.RoleNurse, f.patientID)

	acknowledged, err := f.service.Acknowledge(context.Background(), nurse, alert.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAcknowledged, acknowledged.Status)
	assert.NotNil(t, acknowledged.AcknowledgedAt)
	assert.Contains(t, f.publisher.kinds(), models.EventAlertAcknowledged)

	// Second acknowledge is no longer permitted.
	_, err = f.service.Acknowledge(context.Background(), nurse, alert.ID.Hex())
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeInvalidTransition))
}

func TestAcknowledgeWithoutCapabilityLeavesStateUntouched(t *testing.T) {
	f := newAlertServiceFixture(t)
	alert := f.createActiveAlert(t)
	family := identityWithRole(models.RoleFamily, f.patientID)

	_, err := f.service.Acknowledge(context.Background(), family, alert.ID.Hex())
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodePermissionDenied))

	stored, err := f.store.GetByID(context.Background(), alert.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusActive, stored.Status)
	assert.Nil(t, stored.AcknowledgedAt)
}

func TestResolveFromEveryOpenState(t *testing.T) {
	for _, from := range []string{models.AlertStatusActive, models.AlertStatusAcknowledged, models.AlertStatusEscalated} {
		t.Run("from "+from, func(t *testing.T) {
			f := newAlertServiceFixture(t)
			alert := f.createActiveAlert(t)
			require.NoError(t, f.store.Update(context.Background(), alert.ID.Hex(), bson.M{"status": from}))

			nurse := identityWithRole(models.RoleNurse, f.patientID)
			resolved, err := f.service.Resolve(context.Background(), nurse, alert.ID.Hex(), models.ResolveAlertRequest{
				Resolution: "Vitals back in range after medication",
			})
			require.NoError(t, err)
			assert.Equal(t, models.AlertStatusResolved, resolved.Status)
			assert.Equal(t, "Vitals back in range after medication", resolved.Resolution)
		})
	}
}

func TestResolveTwiceFailsAndPreservesFirstResolution(t *testing.T) {
	f := newAlertServiceFixture(t)
	alert := f.createActiveAlert(t)
	nurse := identityWithRole(models.RoleNurse, f.patientID)

	first, err := f.service.Resolve(context.Background(), nurse, alert.ID.Hex(), models.ResolveAlertRequest{Resolution: "first"})
	require.NoError(t, err)
	require.NotNil(t, first.ResolvedAt)

	_, err = f.service.Resolve(context.Background(), nurse, alert.ID.Hex(), models.ResolveAlertRequest{Resolution: "second"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeInvalidTransition))

	stored, err := f.store.GetByID(context.Background(), alert.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Resolution)
	assert.Equal(t, first.ResolvedAt.Unix(), stored.ResolvedAt.Unix())
}

func TestEscalateForcesCriticalWithoutCapability(t *testing.T) {
	f := newAlertServiceFixture(t)
	alert := f.createActiveAlert(t)

	// Family members cannot acknowledge, but escalation is a safety valve
	// open to any authorized observer.
	family := identityWithRole(models.RoleFamily, f.patientID)

	escalated, err := f.service.Escalate(context.Background(), family, alert.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusEscalated, escalated.Status)
	assert.Equal(t, models.SeverityCritical, escalated.Severity)

	// Escalating an escalated alert is invalid.
	_, err = f.service.Escalate(context.Background(), family, alert.ID.Hex())
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeInvalidTransition))
}

func TestEscalateDeniedForUnassignedObserver(t *testing.T) {
	f := newAlertServiceFixture(t)
	alert := f.createActiveAlert(t)

	stranger := identityWithRole(models.RoleNurse, primitive.NewObjectID().Hex())
	_, err := f.service.Escalate(context.Background(), stranger, alert.ID.Hex())
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodePermissionDenied))
}

func TestResolvedIsTerminal(t *testing.T) {
	f := newAlertServiceFixture(t)
	alert := f.createActiveAlert(t)
	nurse := identityWithRole(models.RoleNurse, f.patientID)

	_, err := f.service.Resolve(context.Background(), nurse, alert.ID.Hex(), models.ResolveAlertRequest{Resolution: "done"})
	require.NoError(t, err)

	_, err = f.service.Acknowledge(context.Background(), nurse, alert.ID.Hex())
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeInvalidTransition))

	_, err = f.service.Escalate(context.Background(), nurse, alert.ID.Hex())
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeInvalidTransition))
}

func TestConcurrentAcknowledgeOnlyOneSucceeds(t *testing.T) {
	f := newAlertServiceFixture(t)
	alert := f.createActiveAlert(t)
	nurse := identityWithRole(models.RoleNurse, f.patientID)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Acknowledge(context.Background(), nurse, alert.ID.Hex())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, utils.IsErrorCode(err, utils.ErrCodeInvalidTransition))
		}
	}
	assert.Equal(t, 1, succeeded)
}

// =================== EMERGENCY SERVICES ===================

func TestContactEmergencyServicesIsIdempotent(t *testing.T) {
	f := newAlertServiceFixture(t)
	alert := f.createActiveAlert(t)
	doctor := identityWithRole(models.RoleDoctor)

	first, err := f.service.ContactEmergencyServices(context.Background(), doctor, alert.ID.Hex(), models.EmergencyContactRequest{Service: "ambulance"})
	require.NoError(t, err)
	require.True(t, first.EmergencyServices.Contacted)
	require.NotEmpty(t, first.EmergencyServices.IncidentNumber)

	second, err := f.service.ContactEmergencyServices(context.Background(), doctor, alert.ID.Hex(), models.EmergencyContactRequest{Service: "fire"})
	require.NoError(t, err)
	assert.Equal(t, first.EmergencyServices.IncidentNumber, second.EmergencyServices.IncidentNumber)
	assert.Equal(t, "ambulance", second.EmergencyServices.Service)

	// Only the first call publishes.
	published := 0
	for _, kind := range f.publisher.kinds() {
		if kind == models.EventEmergencyContacted {
			published++
		}
	}
	assert.Equal(t, 1, published)
}

func TestContactEmergencyServicesRequiresOverride(t *testing.T) {
	f := newAlertServiceFixture(t)
	alert := f.createActiveAlert(t)

	nurse := identityWithRole(models.RoleNurse, f.patientID)
	_, err := f.service.ContactEmergencyServices(context.Background(), nurse, alert.ID.Hex(), models.EmergencyContactRequest{})
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodePermissionDenied))

	stored, err := f.store.GetByID(context.Background(), alert.ID.Hex())
	require.NoError(t, err)
	assert.False(t, stored.EmergencyServices.Contacted)
}

// =================== READS ===================

func TestGetAlertsScopedToAssignments(t *testing.T) {
	f := newAlertServiceFixture(t)
	f.createActiveAlert(t)

	otherPatient := primitive.NewObjectID()
	other := &models.Alert{
		PatientID: otherPatient,
		AlertType: models.AlertTypeVitalAbnormal,
		Severity:  models.SeverityHigh,
		Status:    models.AlertStatusActive,
	}
	require.NoError(t, f.store.Create(context.Background(), other))

	nurse := identityWithRole(models.RoleNurse, f.patientID)
	alerts, err := f.service.GetAlerts(context.Background(), nurse, models.AlertQuery{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, f.patientID, alerts[0].PatientID.Hex())

	admin := identityWithRole(models.RoleAdmin)
	alerts, err = f.service.GetAlerts(context.Background(), admin, models.AlertQuery{})
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}
