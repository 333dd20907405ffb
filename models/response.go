package models

import "time"

// Standard API Response wrapper
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Meta      *MetaData   `json:"meta,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Field   string      `json:"field,omitempty"`
}

type MetaData struct {
	Count      int   `json:"count,omitempty"`
	Page       int   `json:"page,omitempty"`
	PageSize   int   `json:"pageSize,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"totalPages,omitempty"`
}

// ErrorResponse is the flat error shape used by middleware rejections.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Health Check Response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

// AlertStatsSummary aggregates alert counts over a trailing window.
type AlertStatsSummary struct {
	TotalAlerts        int64 `json:"totalAlerts"`
	ActiveAlerts       int64 `json:"activeAlerts"`
	AcknowledgedAlerts int64 `json:"acknowledgedAlerts"`
	EscalatedAlerts    int64 `json:"escalatedAlerts"`
	ResolvedAlerts     int64 `json:"resolvedAlerts"`
	CriticalAlerts     int64 `json:"criticalAlerts"`
}

type AlertTypeCount struct {
	AlertType string `json:"alertType" bson:"_id"`
	Count     int64  `json:"count" bson:"count"`
}

type AlertStatsResponse struct {
	Summary       AlertStatsSummary `json:"summary"`
	TypeBreakdown []AlertTypeCount  `json:"typeBreakdown"`
}

// Error Response Codes
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeAuthentication = "AUTHENTICATION_ERROR"
	ErrCodeAuthorization  = "AUTHORIZATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeExternal       = "EXTERNAL_SERVICE_ERROR"
)
