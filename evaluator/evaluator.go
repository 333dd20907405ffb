// Package evaluator classifies vital-sign readings against per-patient
// threshold configuration. Classification is a pure function of the value and
// the settings in effect at ingestion time: no I/O, no shared state, safe to
// call concurrently.
package evaluator

import (
	"fmt"

	"vitalwatch/models"
)

// Evaluation is the outcome of classifying one reading.
type Evaluation struct {
	IsNormal bool
	Level    string // normal, warning, critical, emergency
	Message  string
}

// UnsupportedMetricError is returned for reading types the evaluator does not
// recognize. Ingestion stores such readings as-is and suppresses alerting
// rather than failing the call.
type UnsupportedMetricError struct {
	ReadingType string
}

func (e UnsupportedMetricError) Error() string {
	return fmt.Sprintf("unsupported metric type: %s", e.ReadingType)
}

// Hard bands beyond the configured thresholds. Values past these escalate the
// classification regardless of how wide the patient's configured band is.
const (
	systolicCritical   = 160
	systolicEmergency  = 180
	diastolicCritical  = 100
	diastolicEmergency = 110

	glucoseEmergencyLow  = 55
	glucoseEmergencyHigh = 250

	heartRateEmergencyLow  = 40
	heartRateEmergencyHigh = 130

	temperatureEmergencyLow  = 95
	temperatureEmergencyHigh = 103

	oxygenCritical  = 90
	oxygenEmergency = 85

	respiratoryCriticalLow   = 8
	respiratoryCriticalHigh  = 30
	respiratoryEmergencyLow  = 5
	respiratoryEmergencyHigh = 40
)

func normal() Evaluation {
	return Evaluation{IsNormal: true, Level: models.LevelNormal}
}

func abnormal(level, message string) Evaluation {
	return Evaluation{IsNormal: false, Level: level, Message: message}
}

// Classify evaluates one reading against the patient's monitoring settings.
// A metric whose monitoring is disabled classifies normal by policy:
// monitoring-off is not itself an anomaly.
func Classify(readingType string, values models.VitalValues, settings models.MonitoringSettings) (Evaluation, error) {
	switch readingType {
	case models.ReadingBloodPressure:
		return classifyBloodPressure(values, settings.BloodPressure), nil
	case models.ReadingGlucose:
		return classifyGlucose(values, settings.Glucose), nil
	case models.ReadingHeartRate:
		return classifyHeartRate(values, settings.HeartRate), nil
	case models.ReadingTemperature:
		return classifyTemperature(values, settings.Temperature), nil
	case models.ReadingOxygenSaturation:
		return classifyOxygenSaturation(values, settings.OxygenSaturation), nil
	case models.ReadingRespiratoryRate:
		return classifyRespiratoryRate(values, settings.RespiratoryRate), nil
	case models.ReadingECG:
		return classifyECG(values, settings.ECG), nil
	default:
		return Evaluation{}, UnsupportedMetricError{ReadingType: readingType}
	}
}

func classifyBloodPressure(values models.VitalValues, cfg models.BloodPressureSettings) Evaluation {
	if !cfg.Enabled || values.Systolic == nil || values.Diastolic == nil {
		return normal()
	}

	systolic, diastolic := *values.Systolic, *values.Diastolic
	if systolic >= cfg.Systolic.Min && systolic <= cfg.Systolic.Max &&
		diastolic >= cfg.Diastolic.Min && diastolic <= cfg.Diastolic.Max {
		return normal()
	}

	level := models.LevelWarning
	switch {
	case systolic > systolicEmergency || diastolic > diastolicEmergency:
		level = models.LevelEmergency
	case systolic > systolicCritical || diastolic > diastolicCritical:
		level = models.LevelCritical
	}

	msg := fmt.Sprintf("Blood pressure %.0f/%.0f is outside normal range (%.0f-%.0f/%.0f-%.0f)",
		systolic, diastolic, cfg.Systolic.Min, cfg.Systolic.Max, cfg.Diastolic.Min, cfg.Diastolic.Max)
	return abnormal(level, msg)
}

func classifyGlucose(values models.VitalValues, cfg models.MetricSettings) Evaluation {
	if !cfg.Enabled || values.Glucose == nil {
		return normal()
	}

	glucose := *values.Glucose
	if glucose >= cfg.Thresholds.Min && glucose <= cfg.Thresholds.Max {
		return normal()
	}

	// Any out-of-band glucose is treated as critical; only the extremes
	// escalate further.
	level := models.LevelCritical
	if glucose < glucoseEmergencyLow || glucose > glucoseEmergencyHigh {
		level = models.LevelEmergency
	}

	msg := fmt.Sprintf("Blood glucose %.0f mg/dL is outside normal range (%.0f-%.0f)",
		glucose, cfg.Thresholds.Min, cfg.Thresholds.Max)
	return abnormal(level, msg)
}

func classifyHeartRate(values models.VitalValues, cfg models.MetricSettings) Evaluation {
	if !cfg.Enabled || values.HeartRate == nil {
		return normal()
	}

	heartRate := *values.HeartRate
	if heartRate >= cfg.Thresholds.Min && heartRate <= cfg.Thresholds.Max {
		return normal()
	}

	level := models.LevelWarning
	if heartRate < heartRateEmergencyLow || heartRate > heartRateEmergencyHigh {
		level = models.LevelEmergency
	}

	msg := fmt.Sprintf("Heart rate %.0f bpm is outside normal range (%.0f-%.0f)",
		heartRate, cfg.Thresholds.Min, cfg.Thresholds.Max)
	return abnormal(level, msg)
}

func classifyTemperature(values models.VitalValues, cfg models.MetricSettings) Evaluation {
	if !cfg.Enabled || values.Temperature == nil {
		return normal()
	}

	temperature := *values.Temperature
	if temperature >= cfg.Thresholds.Min && temperature <= cfg.Thresholds.Max {
		return normal()
	}

	level := models.LevelWarning
	if temperature < temperatureEmergencyLow || temperature > temperatureEmergencyHigh {
		level = models.LevelEmergency
	}

	msg := fmt.Sprintf("Temperature %.1f°F is outside normal range (%.1f-%.1f)",
		temperature, cfg.Thresholds.Min, cfg.Thresholds.Max)
	return abnormal(level, msg)
}

func classifyOxygenSaturation(values models.VitalValues, cfg models.CeilingSettings) Evaluation {
	if !cfg.Enabled || values.OxygenSaturation == nil {
		return normal()
	}

	saturation := *values.OxygenSaturation
	if saturation >= cfg.Min {
		return normal()
	}

	level := models.LevelWarning
	switch {
	case saturation < oxygenEmergency:
		level = models.LevelEmergency
	case saturation < oxygenCritical:
		level = models.LevelCritical
	}

	return abnormal(level, fmt.Sprintf("Oxygen saturation %.0f%% is critically low", saturation))
}

func classifyRespiratoryRate(values models.VitalValues, cfg models.MetricSettings) Evaluation {
	if !cfg.Enabled || values.RespiratoryRate == nil {
		return normal()
	}

	rate := *values.RespiratoryRate
	if rate >= cfg.Thresholds.Min && rate <= cfg.Thresholds.Max {
		return normal()
	}

	level := models.LevelWarning
	switch {
	case rate < respiratoryEmergencyLow || rate > respiratoryEmergencyHigh:
		level = models.LevelEmergency
	case rate < respiratoryCriticalLow || rate > respiratoryCriticalHigh:
		level = models.LevelCritical
	}

	msg := fmt.Sprintf("Respiratory rate %.0f breaths/min is outside normal range (%.0f-%.0f)",
		rate, cfg.Thresholds.Min, cfg.Thresholds.Max)
	return abnormal(level, msg)
}

func classifyECG(values models.VitalValues, cfg models.ToggleSettings) Evaluation {
	if !cfg.Enabled || values.AbnormalRhythm == nil || !*values.AbnormalRhythm {
		return normal()
	}
	return abnormal(models.LevelCritical, "Abnormal heart rhythm detected")
}

// AlertSeverity maps an evaluation level to an alert severity. Both top
// evaluation levels collapse to the alert system's highest tier; the extra
// granularity is preserved in the alert message text.
func AlertSeverity(level string) string {
	switch level {
	case models.LevelCritical, models.LevelEmergency:
		return models.SeverityCritical
	default:
		return models.SeverityHigh
	}
}
