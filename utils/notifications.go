package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"google.golang.org/api/option"
)

type NotificationService struct {
	fcmClient    *messaging.Client
	twilioClient *twilio.RestClient
	twilioNumber string
	emailService EmailService
}

type PushNotification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data"`
	ImageURL string            `json:"imageUrl,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Badge    int               `json:"badge,omitempty"`
}

type SMSMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	IsHTML  bool   `json:"isHtml"`
}

type NotificationResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

func NewNotificationService(firebaseCredentials, twilioSID, twilioToken, twilioNumber string, emailService EmailService) (*NotificationService, error) {
	// Initialize Firebase
	opt := option.WithCredentialsFile(firebaseCredentials)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %v", err)
	}

	fcmClient, err := app.Messaging(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize FCM client: %v", err)
	}

	// Initialize Twilio
	twilioClient := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: twilioSID,
		Password: twilioToken,
	})

	return &NotificationService{
		fcmClient:    fcmClient,
		twilioClient: twilioClient,
		twilioNumber: twilioNumber,
		emailService: emailService,
	}, nil
}

// Push Notifications
func (ns *NotificationService) SendPushNotification(ctx context.Context, deviceToken string, notification PushNotification) (*NotificationResult, error) {
	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: notification.Data,
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				Sound: notification.Sound,
				Icon:  "ic_notification",
				Color: "#D32F2F",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: notification.Title,
						Body:  notification.Body,
					},
					Badge: &notification.Badge,
					Sound: notification.Sound,
				},
			},
		},
	}

	response, err := ns.fcmClient.Send(ctx, message)
	if err != nil {
		return &NotificationResult{
			Success: false,
			Error:   err.Error(),
		}, err
	}

	return &NotificationResult{
		Success:   true,
		MessageID: response,
	}, nil
}

func (ns *NotificationService) SendPushToMultipleDevices(ctx context.Context, deviceTokens []string, notification PushNotification) ([]*NotificationResult, error) {
	message := &messaging.MulticastMessage{
		Tokens: deviceTokens,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: notification.Data,
	}

	response, err := ns.fcmClient.SendMulticast(ctx, message)
	if err != nil {
		return nil, err
	}

	results := make([]*NotificationResult, len(deviceTokens))
	for i, resp := range response.Responses {
		if resp.Success {
			results[i] = &NotificationResult{
				Success:   true,
				MessageID: resp.MessageID,
			}
		} else {
			results[i] = &NotificationResult{
				Success: false,
				Error:   resp.Error.Error(),
			}
		}
	}

	return results, nil
}

// SMS Notifications
func (ns *NotificationService) SendSMS(ctx context.Context, sms SMSMessage) (*NotificationResult, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(sms.To)
	params.SetFrom(ns.twilioNumber)
	params.SetBody(sms.Message)

	resp, err := ns.twilioClient.Api.CreateMessage(params)
	if err != nil {
		return &NotificationResult{
			Success: false,
			Error:   err.Error(),
		}, err
	}

	return &NotificationResult{
		Success:   true,
		MessageID: *resp.Sid,
	}, nil
}

// Email Notifications
func (ns *NotificationService) SendEmail(ctx context.Context, email EmailMessage) (*NotificationResult, error) {
	return ns.emailService.SendEmail(ctx, email)
}

// Notification Templates
func (ns *NotificationService) CreateAlertNotification(patientName, alertType, severity, message string) PushNotification {
	var title string

	switch severity {
	case "critical":
		title = fmt.Sprintf("CRITICAL ALERT: %s", patientName)
	case "high":
		title = fmt.Sprintf("Alert: %s", patientName)
	default:
		title = fmt.Sprintf("Notice: %s", patientName)
	}

	return PushNotification{
		Title: title,
		Body:  message,
		Data: map[string]string{
			"type":        "alert",
			"patientName": patientName,
			"alertType":   alertType,
			"severity":    severity,
		},
		Sound: alertSound(severity),
	}
}

func (ns *NotificationService) CreateEmergencyNotification(patientName, service, incidentNumber string) PushNotification {
	return PushNotification{
		Title: fmt.Sprintf("EMERGENCY SERVICES CONTACTED: %s", patientName),
		Body:  fmt.Sprintf("%s dispatched for %s (incident %s)", strings.ToUpper(service), patientName, incidentNumber),
		Data: map[string]string{
			"type":           "emergency_services",
			"patientName":    patientName,
			"service":        service,
			"incidentNumber": incidentNumber,
			"priority":       "high",
		},
		Sound: "emergency",
	}
}

func (ns *NotificationService) CreateDeviceOfflineNotification(patientName, readingType string, lastSeen time.Time) PushNotification {
	return PushNotification{
		Title: fmt.Sprintf("Device Offline: %s", patientName),
		Body:  fmt.Sprintf("No %s readings received since %s", readingType, lastSeen.Format(time.RFC1123)),
		Data: map[string]string{
			"type":        "device_offline",
			"patientName": patientName,
			"readingType": readingType,
			"lastSeen":    lastSeen.UTC().Format(time.RFC3339),
		},
		Sound: "default",
	}
}

func (ns *NotificationService) CreateAlertSMS(patientName, severity, message string) string {
	if severity == "critical" {
		return fmt.Sprintf("CRITICAL ALERT for %s: %s", patientName, message)
	}
	return fmt.Sprintf("Alert for %s: %s", patientName, message)
}

func (ns *NotificationService) CreateAlertEmail(patientName, alertType, severity, message string, triggeredAt time.Time) EmailMessage {
	subject := fmt.Sprintf("[%s] Alert for %s", strings.ToUpper(severity), patientName)
	body := fmt.Sprintf(
		"<h2>Patient Alert</h2>"+
			"<p><strong>Patient:</strong> %s</p>"+
			"<p><strong>Type:</strong> %s</p>"+
			"<p><strong>Severity:</strong> %s</p>"+
			"<p><strong>Message:</strong> %s</p>"+
			"<p><strong>Triggered:</strong> %s</p>",
		patientName, alertType, severity, message, triggeredAt.Format(time.RFC1123))

	return EmailMessage{
		Subject: subject,
		Body:    body,
		IsHTML:  true,
	}
}

func alertSound(severity string) string {
	if severity == "critical" {
		return "emergency"
	}
	return "default"
}

// Batch notifications
func (ns *NotificationService) SendBatchNotifications(ctx context.Context, notifications []BatchNotification) error {
	for _, notif := range notifications {
		switch notif.Type {
		case "push":
			go ns.SendPushNotification(ctx, notif.DeviceToken, notif.Push)
		case "sms":
			go ns.SendSMS(ctx, notif.SMS)
		case "email":
			go ns.SendEmail(ctx, notif.Email)
		}

		// Small delay to avoid rate limiting
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

type BatchNotification struct {
	Type        string           `json:"type"` // push, sms, email
	DeviceToken string           `json:"deviceToken,omitempty"`
	Push        PushNotification `json:"push,omitempty"`
	SMS         SMSMessage       `json:"sms,omitempty"`
	Email       EmailMessage     `json:"email,omitempty"`
}

// Email Service interface
type EmailService interface {
	SendEmail(ctx context.Context, email EmailMessage) (*NotificationResult, error)
}
