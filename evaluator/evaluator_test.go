package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwatch/models"
)

func f(v float64) *float64 { return &v }

func defaultSettings() models.MonitoringSettings {
	s := models.DefaultMonitoringSettings()
	s.Glucose.Enabled = true
	s.ECG.Enabled = true
	return s
}

func TestClassifyOxygenSaturation(t *testing.T) {
	tests := []struct {
		name       string
		saturation float64
		wantLevel  string
		wantNormal bool
	}{
		{"emergency below 85", 84, models.LevelEmergency, false},
		{"critical below 90", 88, models.LevelCritical, false},
		{"warning below configured min", 92, models.LevelWarning, false},
		{"normal at 97", 97, models.LevelNormal, true},
		{"normal at configured min", 95, models.LevelNormal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := Classify(models.ReadingOxygenSaturation,
				models.VitalValues{OxygenSaturation: f(tt.saturation)}, defaultSettings())
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, eval.Level)
			assert.Equal(t, tt.wantNormal, eval.IsNormal)
		})
	}
}

func TestClassifyBloodPressure(t *testing.T) {
	tests := []struct {
		name               string
		systolic, diastolic float64
		wantLevel          string
	}{
		{"normal", 120, 80, models.LevelNormal},
		{"warning above systolic band", 150, 85, models.LevelWarning},
		{"critical above 160 systolic", 165, 95, models.LevelCritical},
		{"emergency above 180 systolic", 185, 95, models.LevelEmergency},
		{"critical above 100 diastolic", 150, 105, models.LevelCritical},
		{"emergency above 110 diastolic", 150, 115, models.LevelEmergency},
		{"warning below band", 85, 55, models.LevelWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := Classify(models.ReadingBloodPressure,
				models.VitalValues{Systolic: f(tt.systolic), Diastolic: f(tt.diastolic)}, defaultSettings())
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, eval.Level)
			if tt.wantLevel != models.LevelNormal {
				assert.False(t, eval.IsNormal)
				assert.Contains(t, eval.Message, "Blood pressure")
			}
		})
	}
}

func TestClassifyHeartRate(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		wantLevel string
	}{
		{"normal", 72, models.LevelNormal},
		{"warning above band", 110, models.LevelWarning},
		{"emergency above 130", 140, models.LevelEmergency},
		{"warning below band", 45, models.LevelWarning},
		{"emergency below 40", 35, models.LevelEmergency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := Classify(models.ReadingHeartRate,
				models.VitalValues{HeartRate: f(tt.rate)}, defaultSettings())
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, eval.Level)
		})
	}
}

func TestClassifyGlucose(t *testing.T) {
	tests := []struct {
		name      string
		glucose   float64
		wantLevel string
	}{
		{"normal", 110, models.LevelNormal},
		{"critical above band", 200, models.LevelCritical},
		{"critical below band", 65, models.LevelCritical},
		{"emergency above 250", 260, models.LevelEmergency},
		{"emergency below 55", 50, models.LevelEmergency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := Classify(models.ReadingGlucose,
				models.VitalValues{Glucose: f(tt.glucose)}, defaultSettings())
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, eval.Level)
		})
	}
}

func TestClassifyTemperature(t *testing.T) {
	eval, err := Classify(models.ReadingTemperature,
		models.VitalValues{Temperature: f(104.2)}, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, models.LevelEmergency, eval.Level)

	eval, err = Classify(models.ReadingTemperature,
		models.VitalValues{Temperature: f(100.5)}, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, models.LevelWarning, eval.Level)
}

func TestClassifyRespiratoryRate(t *testing.T) {
	eval, err := Classify(models.ReadingRespiratoryRate,
		models.VitalValues{RespiratoryRate: f(22)}, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, models.LevelWarning, eval.Level)

	eval, err = Classify(models.ReadingRespiratoryRate,
		models.VitalValues{RespiratoryRate: f(34)}, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, models.LevelCritical, eval.Level)

	eval, err = Classify(models.ReadingRespiratoryRate,
		models.VitalValues{RespiratoryRate: f(4)}, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, models.LevelEmergency, eval.Level)
}

func TestClassifyECG(t *testing.T) {
	abnormalRhythm := true
	eval, err := Classify(models.ReadingECG,
		models.VitalValues{AbnormalRhythm: &abnormalRhythm}, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, models.LevelCritical, eval.Level)
	assert.False(t, eval.IsNormal)

	normalRhythm := false
	eval, err = Classify(models.ReadingECG,
		models.VitalValues{AbnormalRhythm: &normalRhythm}, defaultSettings())
	require.NoError(t, err)
	assert.True(t, eval.IsNormal)
}

func TestClassifyDisabledMetricIsNormalByPolicy(t *testing.T) {
	settings := defaultSettings()
	settings.HeartRate.Enabled = false

	eval, err := Classify(models.ReadingHeartRate,
		models.VitalValues{HeartRate: f(180)}, settings)
	require.NoError(t, err)
	assert.True(t, eval.IsNormal)
	assert.Equal(t, models.LevelNormal, eval.Level)
}

func TestClassifyUnsupportedMetric(t *testing.T) {
	_, err := Classify("brainwave", models.VitalValues{}, defaultSettings())
	require.Error(t, err)

	var unsupported UnsupportedMetricError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "brainwave", unsupported.ReadingType)
}

func TestClassifyIsDeterministic(t *testing.T) {
	settings := defaultSettings()
	values := models.VitalValues{Systolic: f(165), Diastolic: f(95)}

	first, err := Classify(models.ReadingBloodPressure, values, settings)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		again, err := Classify(models.ReadingBloodPressure, values, settings)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAlertSeverityMapping(t *testing.T) {
	assert.Equal(t, models.SeverityHigh, AlertSeverity(models.LevelWarning))
	assert.Equal(t, models.SeverityCritical, AlertSeverity(models.LevelCritical))
	assert.Equal(t, models.SeverityCritical, AlertSeverity(models.LevelEmergency))
}
