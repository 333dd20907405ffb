package services

import (
	"context"
	"sync"
	"time"
	"vitalwatch/evaluator"
	"vitalwatch/models"
	"vitalwatch/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AlertStore is the persistence surface the lifecycle manager needs.
type AlertStore interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	Update(ctx context.Context, id string, update bson.M) error
	GetByPatient(ctx context.Context, patientID string, query models.AlertQuery) ([]models.Alert, error)
	GetOpen(ctx context.Context, patientIDs []string, query models.AlertQuery) ([]models.Alert, error)
	CountByStatus(ctx context.Context, patientIDs []string) (map[string]int64, error)
	CountByType(ctx context.Context, patientIDs []string, since time.Time) ([]models.AlertTypeCount, error)
	AppendNotification(ctx context.Context, id string, notification models.AlertNotification) error
	MarkNotificationRead(ctx context.Context, id, userID string) error
}

// PatientChecker validates patient references on manual alert creation.
type PatientChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// AlertNotifier queues an alert for out-of-band delivery (email/SMS/push).
// Nil-able: the lifecycle works without a notification pipeline.
type AlertNotifier interface {
	QueueAlertNotifications(ctx context.Context, alert *models.Alert)
}

type alertLock struct {
	mu   sync.Mutex
	refs int
}

// AlertService owns the alert entity and its state machine:
// active→acknowledged→resolved, active|acknowledged→escalated,
// active|acknowledged|escalated→resolved. Resolved is terminal. Transitions
// on one alert are serialized through a per-alert lock; different alerts
// proceed independently.
type AlertService struct {
	alertRepo   AlertStore
	patientRepo PatientChecker
	publisher   EventPublisher
	notifier    AlertNotifier

	locksMu sync.Mutex
	locks   map[string]*alertLock
}

func NewAlertService(alertRepo AlertStore, patientRepo PatientChecker, publisher EventPublisher, notifier AlertNotifier) *AlertService {
	return &AlertService{
		alertRepo:   alertRepo,
		patientRepo: patientRepo,
		publisher:   publisher,
		notifier:    notifier,
		locks:       make(map[string]*alertLock),
	}
}

// lockAlert serializes transitions per alert. The returned func releases the
// lock and frees the entry once no caller holds or waits on it.
func (as *AlertService) lockAlert(alertID string) func() {
	as.locksMu.Lock()
	lock, ok := as.locks[alertID]
	if !ok {
		lock = &alertLock{}
		as.locks[alertID] = lock
	}
	lock.refs++
	as.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		as.locksMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(as.locks, alertID)
		}
		as.locksMu.Unlock()
	}
}

// =================== CREATION ===================

// CreateFromEvaluation builds and persists the alert for an abnormal reading
// and publishes alert-created. Severity collapses the evaluation level:
// warning maps to high, critical and emergency both map to critical.
func (as *AlertService) CreateFromEvaluation(ctx context.Context, reading *models.VitalReading, eval evaluator.Evaluation) (*models.Alert, error) {
	severity := evaluator.AlertSeverity(eval.Level)

	alertType := models.AlertTypeVitalAbnormal
	if severity == models.SeverityCritical {
		alertType = models.AlertTypeCriticalVital
	}

	alert := &models.Alert{
		PatientID:      reading.PatientID,
		AlertType:      alertType,
		Severity:       severity,
		Title:          "Abnormal vital sign: " + reading.ReadingType,
		Message:        eval.Message,
		VitalReadingID: reading.ID,
		DeviceID:       reading.DeviceID,
		Status:         models.AlertStatusActive,
	}

	if err := as.alertRepo.Create(ctx, alert); err != nil {
		return nil, utils.NewDatabaseError("create alert", err)
	}

	as.publisher.PublishAlertCreated(alert.PatientID.Hex(), *alert)
	if as.notifier != nil {
		as.notifier.QueueAlertNotifications(ctx, alert)
	}

	return alert, nil
}

// CreateAlert handles manual creation by a privileged actor (fall detected,
// emergency button and similar non-vital alert types).
func (as *AlertService) CreateAlert(ctx context.Context, actor models.Identity, req models.CreateAlertRequest) (*models.Alert, error) {
	if !actor.Permissions.AcknowledgeAlerts {
		return nil, utils.NewPermissionDeniedError("acknowledge alerts")
	}
	if !actor.CanObserve(req.Patient) {
		return nil, utils.NewPermissionDeniedError("observe patient")
	}

	exists, err := as.patientRepo.Exists(ctx, req.Patient)
	if err != nil {
		return nil, utils.NewDatabaseError("check patient", err)
	}
	if !exists {
		return nil, utils.NewPatientNotFoundError()
	}

	patientID, err := primitive.ObjectIDFromHex(req.Patient)
	if err != nil {
		return nil, utils.NewPatientNotFoundError()
	}

	actorID, _ := primitive.ObjectIDFromHex(actor.UserID)

	alert := &models.Alert{
		PatientID: patientID,
		AlertType: req.AlertType,
		Severity:  req.Severity,
		Title:     req.Title,
		Message:   req.Message,
		DeviceID:  req.DeviceID,
		Status:    models.AlertStatusActive,
		CreatedBy: actorID,
	}

	if err := as.alertRepo.Create(ctx, alert); err != nil {
		return nil, utils.NewDatabaseError("create alert", err)
	}

	as.publisher.PublishAlertCreated(alert.PatientID.Hex(), *alert)
	if as.notifier != nil {
		as.notifier.QueueAlertNotifications(ctx, alert)
	}

	return alert, nil
}

// CreateSystemAlert persists and publishes an alert raised by a background
// worker (device watchdog). No actor is involved.
func (as *AlertService) CreateSystemAlert(ctx context.Context, alert *models.Alert) error {
	if alert.Status == "" {
		alert.Status = models.AlertStatusActive
	}

	if err := as.alertRepo.Create(ctx, alert); err != nil {
		return utils.NewDatabaseError("create alert", err)
	}

	as.publisher.PublishAlertCreated(alert.PatientID.Hex(), *alert)
	if as.notifier != nil {
		as.notifier.QueueAlertNotifications(ctx, alert)
	}

	return nil
}

// =================== TRANSITIONS ===================

// Acknowledge moves an active alert to acknowledged.
func (as *AlertService) Acknowledge(ctx context.Context, actor models.Identity, alertID string) (*models.Alert, error) {
	if !actor.Permissions.AcknowledgeAlerts {
		return nil, utils.NewPermissionDeniedError("acknowledge alerts")
	}

	unlock := as.lockAlert(alertID)
	defer unlock()

	alert, err := as.loadVisible(ctx, actor, alertID)
	if err != nil {
		return nil, err
	}

	if alert.Status != models.AlertStatusActive {
		return nil, utils.NewInvalidTransitionError(alert.Status, models.AlertStatusAcknowledged)
	}

	actorID, _ := primitive.ObjectIDFromHex(actor.UserID)
	now := time.Now()

	err = as.alertRepo.Update(ctx, alertID, bson.M{
		"status":         models.AlertStatusAcknowledged,
		"acknowledgedBy": actorID,
		"acknowledgedAt": now,
	})
	if err != nil {
		return nil, utils.NewDatabaseError("acknowledge alert", err)
	}

	alert.Status = models.AlertStatusAcknowledged
	alert.AcknowledgedBy = actorID
	alert.AcknowledgedAt = &now

	as.publisher.PublishAlertTransition(models.EventAlertAcknowledged, models.WSAlertTransition{
		AlertID:   alertID,
		PatientID: alert.PatientID.Hex(),
		Status:    alert.Status,
		Severity:  alert.Severity,
		Actor:     actor.UserID,
		At:        now,
	})

	return alert, nil
}

// Resolve terminally closes an alert from active, acknowledged or escalated.
func (as *AlertService) Resolve(ctx context.Context, actor models.Identity, alertID string, req models.ResolveAlertRequest) (*models.Alert, error) {
	if !actor.Permissions.AcknowledgeAlerts {
		return nil, utils.NewPermissionDeniedError("acknowledge alerts")
	}

	unlock := as.lockAlert(alertID)
	defer unlock()

	alert, err := as.loadVisible(ctx, actor, alertID)
	if err != nil {
		return nil, err
	}

	if alert.Status == models.AlertStatusResolved {
		return nil, utils.NewInvalidTransitionError(alert.Status, models.AlertStatusResolved)
	}

	actorID, _ := primitive.ObjectIDFromHex(actor.UserID)
	now := time.Now()

	err = as.alertRepo.Update(ctx, alertID, bson.M{
		"status":     models.AlertStatusResolved,
		"resolvedBy": actorID,
		"resolvedAt": now,
		"resolution": req.Resolution,
	})
	if err != nil {
		return nil, utils.NewDatabaseError("resolve alert", err)
	}

	alert.Status = models.AlertStatusResolved
	alert.ResolvedBy = actorID
	alert.ResolvedAt = &now
	alert.Resolution = req.Resolution

	as.publisher.PublishAlertTransition(models.EventAlertResolved, models.WSAlertTransition{
		AlertID:    alertID,
		PatientID:  alert.PatientID.Hex(),
		Status:     alert.Status,
		Severity:   alert.Severity,
		Actor:      actor.UserID,
		At:         now,
		Resolution: req.Resolution,
	})

	return alert, nil
}

// Escalate is a safety valve any authorized observer may trigger; it needs no
// capability beyond alert visibility. It forces severity to critical and does
// not itself resolve the alert.
func (as *AlertService) Escalate(ctx context.Context, actor models.Identity, alertID string) (*models.Alert, error) {
	unlock := as.lockAlert(alertID)
	defer unlock()

	alert, err := as.loadVisible(ctx, actor, alertID)
	if err != nil {
		return nil, err
	}

	if alert.Status != models.AlertStatusActive && alert.Status != models.AlertStatusAcknowledged {
		return nil, utils.NewInvalidTransitionError(alert.Status, models.AlertStatusEscalated)
	}

	actorID, _ := primitive.ObjectIDFromHex(actor.UserID)
	now := time.Now()

	err = as.alertRepo.Update(ctx, alertID, bson.M{
		"status":      models.AlertStatusEscalated,
		"severity":    models.SeverityCritical,
		"escalatedBy": actorID,
		"escalatedAt": now,
	})
	if err != nil {
		return nil, utils.NewDatabaseError("escalate alert", err)
	}

	alert.Status = models.AlertStatusEscalated
	alert.Severity = models.SeverityCritical
	alert.EscalatedBy = actorID
	alert.EscalatedAt = &now

	as.publisher.PublishAlertTransition(models.EventAlertEscalated, models.WSAlertTransition{
		AlertID:   alertID,
		PatientID: alert.PatientID.Hex(),
		Status:    alert.Status,
		Severity:  alert.Severity,
		Actor:     actor.UserID,
		At:        now,
	})

	if as.notifier != nil {
		as.notifier.QueueAlertNotifications(ctx, alert)
	}

	return alert, nil
}

// ContactEmergencyServices records that emergency services were dispatched
// for an alert. Idempotent per alert: a second call returns the existing
// incident number instead of creating another record.
func (as *AlertService) ContactEmergencyServices(ctx context.Context, actor models.Identity, alertID string, req models.EmergencyContactRequest) (*models.Alert, error) {
	if !actor.Permissions.EmergencyOverride {
		return nil, utils.NewPermissionDeniedError("emergency override")
	}

	unlock := as.lockAlert(alertID)
	defer unlock()

	alert, err := as.loadVisible(ctx, actor, alertID)
	if err != nil {
		return nil, err
	}

	if alert.EmergencyServices.Contacted {
		logrus.Infof("Emergency services already contacted for alert %s (incident %s)",
			alertID, alert.EmergencyServices.IncidentNumber)
		return alert, nil
	}

	service := req.Service
	if service == "" {
		service = "ems"
	}

	actorID, _ := primitive.ObjectIDFromHex(actor.UserID)
	now := time.Now()
	record := models.EmergencyServicesRecord{
		Contacted:      true,
		ContactedAt:    &now,
		ContactedBy:    actorID,
		Service:        service,
		IncidentNumber: utils.GenerateIncidentNumber(),
	}

	err = as.alertRepo.Update(ctx, alertID, bson.M{
		"emergencyServicesContacted": record,
	})
	if err != nil {
		return nil, utils.NewDatabaseError("contact emergency services", err)
	}

	alert.EmergencyServices = record

	as.publisher.PublishAlertTransition(models.EventEmergencyContacted, models.WSAlertTransition{
		AlertID:        alertID,
		PatientID:      alert.PatientID.Hex(),
		Status:         alert.Status,
		Severity:       alert.Severity,
		Actor:          actor.UserID,
		At:             now,
		IncidentNumber: record.IncidentNumber,
	})

	return alert, nil
}

// =================== READS ===================

func (as *AlertService) GetAlert(ctx context.Context, actor models.Identity, alertID string) (*models.Alert, error) {
	return as.loadVisible(ctx, actor, alertID)
}

// GetAlerts returns open alerts scoped to the actor's entitlements. An actor
// entitled to all patients sees everything; others only their assigned
// patients.
func (as *AlertService) GetAlerts(ctx context.Context, actor models.Identity, query models.AlertQuery) ([]models.Alert, error) {
	if !actor.Permissions.ViewAlerts {
		return nil, utils.NewPermissionDeniedError("view alerts")
	}

	if query.Patient != "" {
		if !actor.CanObserve(query.Patient) {
			return nil, utils.NewPermissionDeniedError("observe patient")
		}
		return as.alertRepo.GetByPatient(ctx, query.Patient, query)
	}

	var scope []string
	if !actor.EntitledToAll() {
		scope = actor.AssignedPatients
		if len(scope) == 0 {
			return []models.Alert{}, nil
		}
	}

	return as.alertRepo.GetOpen(ctx, scope, query)
}

func (as *AlertService) GetPatientAlerts(ctx context.Context, actor models.Identity, patientID string, query models.AlertQuery) ([]models.Alert, error) {
	if !actor.Permissions.ViewAlerts {
		return nil, utils.NewPermissionDeniedError("view alerts")
	}
	if !actor.CanObserve(patientID) {
		return nil, utils.NewPermissionDeniedError("observe patient")
	}

	return as.alertRepo.GetByPatient(ctx, patientID, query)
}

// GetStats aggregates alert counts over the trailing window.
func (as *AlertService) GetStats(ctx context.Context, actor models.Identity, window time.Duration) (*models.AlertStatsResponse, error) {
	if !actor.Permissions.ViewAlerts {
		return nil, utils.NewPermissionDeniedError("view alerts")
	}

	var scope []string
	if !actor.EntitledToAll() {
		scope = actor.AssignedPatients
	}

	byStatus, err := as.alertRepo.CountByStatus(ctx, scope)
	if err != nil {
		return nil, utils.NewDatabaseError("count alerts", err)
	}

	byType, err := as.alertRepo.CountByType(ctx, scope, time.Now().Add(-window))
	if err != nil {
		return nil, utils.NewDatabaseError("count alerts", err)
	}

	summary := models.AlertStatsSummary{
		ActiveAlerts:       byStatus[models.AlertStatusActive],
		AcknowledgedAlerts: byStatus[models.AlertStatusAcknowledged],
		EscalatedAlerts:    byStatus[models.AlertStatusEscalated],
		ResolvedAlerts:     byStatus[models.AlertStatusResolved],
	}
	for _, count := range byStatus {
		summary.TotalAlerts += count
	}

	return &models.AlertStatsResponse{
		Summary:       summary,
		TypeBreakdown: byType,
	}, nil
}

func (as *AlertService) MarkNotificationRead(ctx context.Context, actor models.Identity, alertID string) error {
	if _, err := as.loadVisible(ctx, actor, alertID); err != nil {
		return err
	}
	return as.alertRepo.MarkNotificationRead(ctx, alertID, actor.UserID)
}

// AppendNotification records one delivery-log entry. Called by the
// notification worker after dispatch.
func (as *AlertService) AppendNotification(ctx context.Context, alertID string, notification models.AlertNotification) error {
	return as.alertRepo.AppendNotification(ctx, alertID, notification)
}

// loadVisible loads an alert and enforces the actor's visibility over its
// patient.
func (as *AlertService) loadVisible(ctx context.Context, actor models.Identity, alertID string) (*models.Alert, error) {
	alert, err := as.alertRepo.GetByID(ctx, alertID)
	if err != nil {
		return nil, utils.NewAlertNotFoundError()
	}

	if !actor.CanObserve(alert.PatientID.Hex()) {
		return nil, utils.NewPermissionDeniedError("observe patient")
	}

	return alert, nil
}
