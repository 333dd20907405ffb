package workers

import (
	"context"
	"sync"
	"time"
	"vitalwatch/services"

	"github.com/sirupsen/logrus"
)

// NotificationWorker drains the Redis notification queue and dispatches each
// job to the patient's observers. Dispatch happens here, off the request
// path, so a slow Twilio or SMTP round trip never delays ingestion or an
// alert transition.
type NotificationWorker struct {
	notificationService *services.NotificationService
	config              NotificationWorkerConfig

	isRunning bool
	mutex     sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type NotificationWorkerConfig struct {
	WorkerCount       int
	DequeueTimeout    time.Duration
	ProcessingTimeout time.Duration
}

func NewNotificationWorker(notificationService *services.NotificationService) *NotificationWorker {
	ctx, cancel := context.WithCancel(context.Background())

	return &NotificationWorker{
		notificationService: notificationService,
		config: NotificationWorkerConfig{
			WorkerCount:       3,
			DequeueTimeout:    5 * time.Second,
			ProcessingTimeout: 30 * time.Second,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

func (nw *NotificationWorker) Start() {
	nw.mutex.Lock()
	defer nw.mutex.Unlock()

	if nw.isRunning {
		return
	}
	nw.isRunning = true

	logrus.Infof("Starting notification worker with %d dispatchers", nw.config.WorkerCount)

	for i := 0; i < nw.config.WorkerCount; i++ {
		nw.wg.Add(1)
		go nw.dispatcher(i)
	}
}

func (nw *NotificationWorker) Stop() {
	nw.mutex.Lock()
	defer nw.mutex.Unlock()

	if !nw.isRunning {
		return
	}

	logrus.Info("Stopping notification worker...")
	nw.cancel()
	nw.wg.Wait()
	nw.isRunning = false
	logrus.Info("Notification worker stopped")
}

func (nw *NotificationWorker) dispatcher(id int) {
	defer nw.wg.Done()

	for {
		select {
		case <-nw.ctx.Done():
			logrus.Infof("Notification dispatcher %d stopping", id)
			return
		default:
		}

		job, err := nw.notificationService.Dequeue(nw.ctx, nw.config.DequeueTimeout)
		if err != nil {
			if nw.ctx.Err() != nil {
				return
			}
			logrus.Errorf("Notification dispatcher %d dequeue failed: %v", id, err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), nw.config.ProcessingTimeout)
		if err := nw.notificationService.Dispatch(ctx, job); err != nil {
			logrus.Errorf("Failed to dispatch notifications for alert %s: %v", job.AlertID, err)
		}
		cancel()
	}
}
