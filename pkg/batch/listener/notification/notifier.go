// Package notification notifies external systems when a job execution ends.
package notification

import (
	"context"
	"fmt"
	"time"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// JobCompletion summarizes a finished job execution.
type JobCompletion struct {
	JobName     string
	ExecutionID string
	Status      model.BatchStatus
	ExitStatus  string
	Duration    time.Duration
}

func (c JobCompletion) String() string {
	return fmt.Sprintf("Job '%s' (ID: %s) finished with Status: %s, ExitStatus: %s. Duration: %s",
		c.JobName, c.ExecutionID, c.Status, c.ExitStatus, c.Duration)
}

// Notifier is an abstract interface for notifying external systems about job execution results.
type Notifier interface {
	NotifyJobCompletion(ctx context.Context, completion JobCompletion) error
}

// LogNotifier writes notifications to the application log.
type LogNotifier struct{}

// NewLogNotifier creates a new instance of LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// NotifyJobCompletion implements Notifier.
func (n *LogNotifier) NotifyJobCompletion(_ context.Context, c JobCompletion) error {
	if c.Status == model.BatchStatusCompleted {
		logger.Infof("Job Notification: %s", c)
	} else {
		logger.Warnf("Job Notification: %s", c)
	}
	return nil
}

var _ Notifier = (*LogNotifier)(nil)

// NotificationJobListener sends a JobCompletion to its Notifier after the job ends.
// A failing notifier is logged and does not fail the job.
type NotificationJobListener struct {
	notifier Notifier
	started  time.Time
}

// NewNotificationJobListener creates a listener that notifies through notifier.
func NewNotificationJobListener(notifier Notifier) *NotificationJobListener {
	return &NotificationJobListener{notifier: notifier}
}

func (l *NotificationJobListener) BeforeJob(context.Context) error {
	l.started = time.Now()
	return nil
}

func (l *NotificationJobListener) AfterJob(ctx context.Context) error {
	jc, ok := port.JobContextFrom(ctx)
	if !ok {
		return nil
	}
	c := JobCompletion{
		JobName:     jc.JobName(),
		ExecutionID: jc.ExecutionID(),
		Status:      jc.BatchStatus(),
		ExitStatus:  jc.ExitStatus(),
	}
	if !l.started.IsZero() {
		c.Duration = time.Since(l.started)
	}
	if err := l.notifier.NotifyJobCompletion(ctx, c); err != nil {
		logger.Errorf("NotificationJobListener: failed to notify completion of job '%s' (ID: %s): %v", c.JobName, c.ExecutionID, err)
	}
	return nil
}

var _ port.JobListener = (*NotificationJobListener)(nil)
