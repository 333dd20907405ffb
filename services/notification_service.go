package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"vitalwatch/models"
	"vitalwatch/utils"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// alertQueueKey is the Redis list the notification worker drains.
const alertQueueKey = "vitalwatch:notifications:alerts"

// AlertNotificationJob is the queued unit of notification work. Alerts are
// queued at creation/escalation time and dispatched asynchronously so the
// ingestion path never waits on Twilio/FCM/SMTP.
type AlertNotificationJob struct {
	AlertID   string    `json:"alertId"`
	PatientID string    `json:"patientId"`
	AlertType string    `json:"alertType"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	QueuedAt  time.Time `json:"queuedAt"`
}

// ObserverFinder returns the users entitled to a patient.
type ObserverFinder interface {
	GetObserversForPatient(ctx context.Context, patientID string) ([]models.User, error)
}

// NotificationLog appends delivery entries to an alert.
type NotificationLog interface {
	AppendNotification(ctx context.Context, alertID string, notification models.AlertNotification) error
}

// PatientNamer resolves a patient for message templating.
type PatientNamer interface {
	GetByID(ctx context.Context, id string) (*models.Patient, error)
}

// NotificationService queues alert notifications to Redis and dispatches them
// to every entitled observer over the channels their preferences allow.
type NotificationService struct {
	redis        *redis.Client
	userRepo     ObserverFinder
	patientRepo  PatientNamer
	alertLog     NotificationLog
	notifier     *utils.NotificationService
	emailService utils.EmailService
}

func NewNotificationService(
	redisClient *redis.Client,
	userRepo ObserverFinder,
	patientRepo PatientNamer,
	alertLog NotificationLog,
	notifier *utils.NotificationService,
	emailService utils.EmailService,
) *NotificationService {
	return &NotificationService{
		redis:        redisClient,
		userRepo:     userRepo,
		patientRepo:  patientRepo,
		alertLog:     alertLog,
		notifier:     notifier,
		emailService: emailService,
	}
}

// QueueAlertNotifications implements AlertNotifier. Queue failures are logged
// and swallowed; a lost notification must not fail the alert transition.
func (ns *NotificationService) QueueAlertNotifications(ctx context.Context, alert *models.Alert) {
	job := AlertNotificationJob{
		AlertID:   alert.ID.Hex(),
		PatientID: alert.PatientID.Hex(),
		AlertType: alert.AlertType,
		Severity:  alert.Severity,
		Title:     alert.Title,
		Message:   alert.Message,
		QueuedAt:  time.Now(),
	}

	payload, err := json.Marshal(job)
	if err != nil {
		logrus.Errorf("Failed to marshal notification job: %v", err)
		return
	}

	if err := ns.redis.LPush(ctx, alertQueueKey, payload).Err(); err != nil {
		logrus.Errorf("Failed to queue notifications for alert %s: %v", job.AlertID, err)
	}
}

// Dequeue blocks up to timeout waiting for the next job. Returns nil, nil on
// timeout.
func (ns *NotificationService) Dequeue(ctx context.Context, timeout time.Duration) (*AlertNotificationJob, error) {
	result, err := ns.redis.BRPop(ctx, timeout, alertQueueKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	// BRPOP returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length %d", len(result))
	}

	var job AlertNotificationJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("malformed notification job: %w", err)
	}

	return &job, nil
}

// QueueDepth reports pending jobs, for the detailed health endpoint.
func (ns *NotificationService) QueueDepth(ctx context.Context) (int64, error) {
	return ns.redis.LLen(ctx, alertQueueKey).Result()
}

// Dispatch fans one job out to every observer of the patient whose
// preferences admit the alert's severity. Each attempted delivery is appended
// to the alert's notification log.
func (ns *NotificationService) Dispatch(ctx context.Context, job *AlertNotificationJob) error {
	observers, err := ns.userRepo.GetObserversForPatient(ctx, job.PatientID)
	if err != nil {
		return fmt.Errorf("load observers for patient %s: %w", job.PatientID, err)
	}

	patientName := "patient " + job.PatientID
	if patient, err := ns.patientRepo.GetByID(ctx, job.PatientID); err == nil {
		patientName = patient.FirstName + " " + patient.LastName
	}

	for _, observer := range observers {
		if !ns.shouldNotify(observer, job) {
			continue
		}

		for _, method := range ns.channelsFor(observer) {
			delivered := ns.send(ctx, observer, method, patientName, job)
			ns.logDelivery(ctx, job.AlertID, observer.ID, method, delivered)
		}
	}

	return nil
}

func (ns *NotificationService) shouldNotify(observer models.User, job *AlertNotificationJob) bool {
	threshold := observer.NotificationPreferences.AlertSeverityThreshold
	if threshold != "" && models.SeverityRank(job.Severity) < models.SeverityRank(threshold) {
		return false
	}

	// Quiet hours suppress everything below critical.
	if job.Severity != models.SeverityCritical && ns.inQuietHours(observer.NotificationPreferences.QuietHours) {
		return false
	}

	return true
}

func (ns *NotificationService) inQuietHours(quiet models.QuietHours) bool {
	if !quiet.Enabled || quiet.Start == "" || quiet.End == "" {
		return false
	}

	now := time.Now().Format("15:04")
	if quiet.Start <= quiet.End {
		return now >= quiet.Start && now < quiet.End
	}
	// Overnight window, e.g. 22:00 to 07:00.
	return now >= quiet.Start || now < quiet.End
}

func (ns *NotificationService) channelsFor(observer models.User) []string {
	var channels []string
	prefs := observer.NotificationPreferences
	if prefs.Push && observer.DeviceToken != "" {
		channels = append(channels, "push")
	}
	if prefs.SMS && observer.PhoneNumber != "" {
		channels = append(channels, "sms")
	}
	if prefs.Email && observer.Email != "" {
		channels = append(channels, "email")
	}
	return channels
}

func (ns *NotificationService) send(ctx context.Context, observer models.User, method, patientName string, job *AlertNotificationJob) bool {
	switch method {
	case "push":
		if ns.notifier == nil {
			return false
		}
		push := ns.notifier.CreateAlertNotification(patientName, job.AlertType, job.Severity, job.Message)
		push.Data["alertId"] = job.AlertID
		_, err := ns.notifier.SendPushNotification(ctx, observer.DeviceToken, push)
		return err == nil

	case "sms":
		if ns.notifier == nil {
			return false
		}
		_, err := ns.notifier.SendSMS(ctx, utils.SMSMessage{
			To:      observer.PhoneNumber,
			Message: ns.notifier.CreateAlertSMS(patientName, job.Severity, job.Message),
		})
		return err == nil

	case "email":
		if ns.emailService == nil {
			return false
		}
		var email utils.EmailMessage
		if ns.notifier != nil {
			email = ns.notifier.CreateAlertEmail(patientName, job.AlertType, job.Severity, job.Message, job.QueuedAt)
		} else {
			email = utils.EmailMessage{
				Subject: job.Title,
				Body:    job.Message,
			}
		}
		email.To = observer.Email
		_, err := ns.emailService.SendEmail(ctx, email)
		return err == nil
	}

	return false
}

func (ns *NotificationService) logDelivery(ctx context.Context, alertID string, recipient primitive.ObjectID, method string, delivered bool) {
	entry := models.AlertNotification{
		SentTo:    recipient,
		Method:    method,
		SentAt:    time.Now(),
		Delivered: delivered,
	}

	if err := ns.alertLog.AppendNotification(ctx, alertID, entry); err != nil {
		logrus.Errorf("Failed to log %s notification on alert %s: %v", method, alertID, err)
	}
}
