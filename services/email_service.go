package services

import (
	"context"
	"fmt"
	"net/smtp"
	"vitalwatch/utils"

	"github.com/sirupsen/logrus"
)

// SMTPEmailService implements utils.EmailService over plain SMTP.
type SMTPEmailService struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPEmailService(host, port, username, password, from string) utils.EmailService {
	return &SMTPEmailService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (es *SMTPEmailService) SendEmail(ctx context.Context, email utils.EmailMessage) (*utils.NotificationResult, error) {
	message := es.buildMessage(email)

	auth := smtp.PlainAuth("", es.username, es.password, es.host)
	addr := fmt.Sprintf("%s:%s", es.host, es.port)

	err := smtp.SendMail(addr, auth, es.from, []string{email.To}, []byte(message))
	if err != nil {
		logrus.Errorf("Failed to send email to %s: %v", email.To, err)
		return &utils.NotificationResult{
			Success: false,
			Error:   err.Error(),
		}, err
	}

	logrus.Infof("Email sent successfully to %s", email.To)
	return &utils.NotificationResult{Success: true}, nil
}

func (es *SMTPEmailService) buildMessage(email utils.EmailMessage) string {
	contentType := "text/plain"
	if email.IsHTML {
		contentType = "text/html"
	}

	return fmt.Sprintf(`From: %s
To: %s
Subject: %s
MIME-Version: 1.0
Content-Type: %s; charset=UTF-8

%s`, es.from, email.To, email.Subject, contentType, email.Body)
}

// MockEmailService logs instead of sending. Used in development and when no
// SMTP credentials are configured.
type MockEmailService struct{}

func NewMockEmailService() utils.EmailService {
	return &MockEmailService{}
}

func (es *MockEmailService) SendEmail(ctx context.Context, email utils.EmailMessage) (*utils.NotificationResult, error) {
	logrus.Infof("[MOCK EMAIL] To: %s, Subject: %s", email.To, email.Subject)
	return &utils.NotificationResult{Success: true, MessageID: "mock"}, nil
}
