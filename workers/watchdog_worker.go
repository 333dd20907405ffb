package workers

import (
	"context"
	"fmt"
	"sync"
	"time"
	"vitalwatch/models"
	"vitalwatch/repositories"
	"vitalwatch/services"

	"github.com/sirupsen/logrus"
)

// silenceFactor is how many sampling intervals a metric may miss before the
// device is considered offline.
const silenceFactor = 3

// WatchdogWorker raises device-offline alerts for monitored metrics that
// have gone silent. A metric that never reported is skipped; the watchdog
// only fires for devices that stopped after reporting at least once.
type WatchdogWorker struct {
	alertService *services.AlertService
	alertRepo    *repositories.AlertRepository
	patientRepo  *repositories.PatientRepository
	vitalRepo    *repositories.VitalRepository
	checkEvery   time.Duration

	isRunning bool
	mutex     sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWatchdogWorker(alertService *services.AlertService, alertRepo *repositories.AlertRepository, patientRepo *repositories.PatientRepository, vitalRepo *repositories.VitalRepository) *WatchdogWorker {
	ctx, cancel := context.WithCancel(context.Background())

	return &WatchdogWorker{
		alertService: alertService,
		alertRepo:    alertRepo,
		patientRepo:  patientRepo,
		vitalRepo:    vitalRepo,
		checkEvery:   time.Minute,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (ww *WatchdogWorker) Start() {
	ww.mutex.Lock()
	defer ww.mutex.Unlock()

	if ww.isRunning {
		return
	}
	ww.isRunning = true

	logrus.Info("Starting device watchdog")

	ww.wg.Add(1)
	go ww.run()
}

func (ww *WatchdogWorker) Stop() {
	ww.mutex.Lock()
	defer ww.mutex.Unlock()

	if !ww.isRunning {
		return
	}

	logrus.Info("Stopping device watchdog...")
	ww.cancel()
	ww.wg.Wait()
	ww.isRunning = false
	logrus.Info("Device watchdog stopped")
}

func (ww *WatchdogWorker) run() {
	defer ww.wg.Done()

	ticker := time.NewTicker(ww.checkEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ww.ctx.Done():
			return
		case <-ticker.C:
			ww.sweep()
		}
	}
}

func (ww *WatchdogWorker) sweep() {
	ctx, cancel := context.WithTimeout(ww.ctx, 30*time.Second)
	defer cancel()

	patients, err := ww.patientRepo.GetActivePatients(ctx)
	if err != nil {
		logrus.Errorf("Watchdog failed to load active patients: %v", err)
		return
	}

	for _, patient := range patients {
		ww.checkPatient(ctx, patient)
	}
}

type monitoredMetric struct {
	readingType     string
	intervalMinutes int
}

func monitoredMetrics(settings models.MonitoringSettings) []monitoredMetric {
	var metrics []monitoredMetric
	if settings.HeartRate.Enabled {
		metrics = append(metrics, monitoredMetric{models.ReadingHeartRate, settings.HeartRate.IntervalMinutes})
	}
	if settings.BloodPressure.Enabled {
		metrics = append(metrics, monitoredMetric{models.ReadingBloodPressure, settings.BloodPressure.IntervalMinutes})
	}
	if settings.Glucose.Enabled {
		metrics = append(metrics, monitoredMetric{models.ReadingGlucose, settings.Glucose.IntervalMinutes})
	}
	if settings.Temperature.Enabled {
		metrics = append(metrics, monitoredMetric{models.ReadingTemperature, settings.Temperature.IntervalMinutes})
	}
	if settings.OxygenSaturation.Enabled {
		metrics = append(metrics, monitoredMetric{models.ReadingOxygenSaturation, settings.OxygenSaturation.IntervalMinutes})
	}
	if settings.RespiratoryRate.Enabled {
		metrics = append(metrics, monitoredMetric{models.ReadingRespiratoryRate, settings.RespiratoryRate.IntervalMinutes})
	}
	return metrics
}

func (ww *WatchdogWorker) checkPatient(ctx context.Context, patient models.Patient) {
	patientID := patient.ID.Hex()

	for _, metric := range monitoredMetrics(patient.MonitoringSettings) {
		interval := metric.intervalMinutes
		if interval <= 0 {
			interval = 5
		}
		allowedSilence := time.Duration(interval*silenceFactor) * time.Minute

		lastSeen, err := ww.vitalRepo.LastReadingTime(ctx, patientID, metric.readingType)
		if err != nil {
			// Never reported. Nothing to watch yet.
			continue
		}

		if time.Since(lastSeen) < allowedSilence {
			continue
		}

		ww.raiseOffline(ctx, patient, metric.readingType, lastSeen, allowedSilence)
	}
}

func (ww *WatchdogWorker) raiseOffline(ctx context.Context, patient models.Patient, readingType string, lastSeen time.Time, allowedSilence time.Duration) {
	patientID := patient.ID.Hex()

	// One open device-offline alert per patient and metric. The dedupe
	// window is the silence threshold itself, so a resolved alert does not
	// immediately re-fire.
	if existing, err := ww.alertRepo.GetRecentByType(ctx, patientID, models.AlertTypeDeviceOffline, time.Now().Add(-allowedSilence*2)); err == nil && existing != nil {
		return
	}

	alert := &models.Alert{
		PatientID: patient.ID,
		AlertType: models.AlertTypeDeviceOffline,
		Severity:  models.SeverityHigh,
		Title:     fmt.Sprintf("Device offline: %s", readingType),
		Message: fmt.Sprintf("No %s reading for %s %s since %s",
			readingType, patient.FirstName, patient.LastName, lastSeen.Format(time.RFC3339)),
		Status:    models.AlertStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := ww.alertService.CreateSystemAlert(ctx, alert); err != nil {
		logrus.Errorf("Watchdog failed to raise offline alert for patient %s (%s): %v", patientID, readingType, err)
		return
	}

	logrus.Warnf("Device offline alert raised for patient %s, metric %s", patientID, readingType)
}
