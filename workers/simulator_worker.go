package workers

import (
	"context"
	"math/rand"
	"sync"
	"time"
	"vitalwatch/models"
	"vitalwatch/repositories"
	"vitalwatch/services"

	"github.com/sirupsen/logrus"
)

// SimulatorWorker feeds synthetic readings through the real ingestion path
// for demo and staging environments without physical devices. Readings go
// through VitalsService like any device submission, so classification,
// alerting and fan-out all behave exactly as in production.
type SimulatorWorker struct {
	vitalsService *services.VitalsService
	patientRepo   *repositories.PatientRepository
	interval      time.Duration

	// lastEmit tracks, per patient and metric, when a value was last
	// generated so each metric honors its own sampling interval.
	lastEmit map[string]time.Time

	isRunning bool
	mutex     sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSimulatorWorker(vitalsService *services.VitalsService, patientRepo *repositories.PatientRepository, interval time.Duration) *SimulatorWorker {
	ctx, cancel := context.WithCancel(context.Background())

	return &SimulatorWorker{
		vitalsService: vitalsService,
		patientRepo:   patientRepo,
		interval:      interval,
		lastEmit:      make(map[string]time.Time),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (sw *SimulatorWorker) Start() {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	if sw.isRunning {
		return
	}
	sw.isRunning = true

	logrus.Infof("Starting vital simulator, tick every %s", sw.interval)

	sw.wg.Add(1)
	go sw.run()
}

func (sw *SimulatorWorker) Stop() {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	if !sw.isRunning {
		return
	}

	logrus.Info("Stopping vital simulator...")
	sw.cancel()
	sw.wg.Wait()
	sw.isRunning = false
	logrus.Info("Vital simulator stopped")
}

func (sw *SimulatorWorker) run() {
	defer sw.wg.Done()

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sw.ctx.Done():
			return
		case <-ticker.C:
			sw.tick()
		}
	}
}

func (sw *SimulatorWorker) tick() {
	ctx, cancel := context.WithTimeout(sw.ctx, 30*time.Second)
	defer cancel()

	patients, err := sw.patientRepo.GetActivePatients(ctx)
	if err != nil {
		logrus.Errorf("Simulator failed to load active patients: %v", err)
		return
	}

	for _, patient := range patients {
		sw.emitDue(ctx, patient)
	}
}

// emitDue generates one reading for every enabled metric whose sampling
// interval has elapsed.
func (sw *SimulatorWorker) emitDue(ctx context.Context, patient models.Patient) {
	settings := patient.MonitoringSettings
	patientID := patient.ID.Hex()

	if settings.HeartRate.Enabled && sw.due(patientID, models.ReadingHeartRate, settings.HeartRate.IntervalMinutes) {
		sw.emit(ctx, patientID, models.ReadingHeartRate, models.VitalValues{
			HeartRate: jittered(settings.HeartRate.Thresholds.Min, settings.HeartRate.Thresholds.Max),
		})
	}

	if settings.BloodPressure.Enabled && sw.due(patientID, models.ReadingBloodPressure, settings.BloodPressure.IntervalMinutes) {
		sw.emit(ctx, patientID, models.ReadingBloodPressure, models.VitalValues{
			Systolic:  jittered(settings.BloodPressure.Systolic.Min, settings.BloodPressure.Systolic.Max),
			Diastolic: jittered(settings.BloodPressure.Diastolic.Min, settings.BloodPressure.Diastolic.Max),
		})
	}

	if settings.Glucose.Enabled && sw.due(patientID, models.ReadingGlucose, settings.Glucose.IntervalMinutes) {
		sw.emit(ctx, patientID, models.ReadingGlucose, models.VitalValues{
			Glucose:     jittered(settings.Glucose.Thresholds.Min, settings.Glucose.Thresholds.Max),
			GlucoseUnit: "mg/dL",
		})
	}

	if settings.Temperature.Enabled && sw.due(patientID, models.ReadingTemperature, settings.Temperature.IntervalMinutes) {
		sw.emit(ctx, patientID, models.ReadingTemperature, models.VitalValues{
			Temperature:     jittered(settings.Temperature.Thresholds.Min, settings.Temperature.Thresholds.Max),
			TemperatureUnit: "F",
		})
	}

	if settings.OxygenSaturation.Enabled && sw.due(patientID, models.ReadingOxygenSaturation, settings.OxygenSaturation.IntervalMinutes) {
		sw.emit(ctx, patientID, models.ReadingOxygenSaturation, models.VitalValues{
			OxygenSaturation: jittered(settings.OxygenSaturation.Min, 100),
		})
	}

	if settings.RespiratoryRate.Enabled && sw.due(patientID, models.ReadingRespiratoryRate, settings.RespiratoryRate.IntervalMinutes) {
		sw.emit(ctx, patientID, models.ReadingRespiratoryRate, models.VitalValues{
			RespiratoryRate: jittered(settings.RespiratoryRate.Thresholds.Min, settings.RespiratoryRate.Thresholds.Max),
		})
	}
}

func (sw *SimulatorWorker) due(patientID, readingType string, intervalMinutes int) bool {
	if intervalMinutes <= 0 {
		intervalMinutes = 5
	}
	key := patientID + ":" + readingType
	last, ok := sw.lastEmit[key]
	if ok && time.Since(last) < time.Duration(intervalMinutes)*time.Minute {
		return false
	}
	sw.lastEmit[key] = time.Now()
	return true
}

func (sw *SimulatorWorker) emit(ctx context.Context, patientID, readingType string, values models.VitalValues) {
	req := models.CreateVitalReadingRequest{
		Patient:     patientID,
		DeviceID:    "simulator-" + readingType,
		ReadingType: readingType,
		Values:      values,
	}

	if _, err := sw.vitalsService.IngestReading(ctx, req); err != nil {
		logrus.Warnf("Simulator ingestion failed for patient %s (%s): %v", patientID, readingType, err)
	}
}

// jittered draws a value centered in the band. Roughly one reading in
// twenty is pushed past a bound so alerting paths stay exercised.
func jittered(min, max float64) *float64 {
	mid := (min + max) / 2
	spread := (max - min) / 2

	v := mid + (rand.Float64()*2-1)*spread*0.8
	if rand.Intn(20) == 0 {
		if rand.Intn(2) == 0 {
			v = max + spread*rand.Float64()
		} else {
			v = min - spread*rand.Float64()
		}
	}

	return &v
}
