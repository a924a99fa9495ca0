package stream

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
)

// jobTask is a device's recurring gocron job
type jobTask struct {
	scheduler gocron.Scheduler
	job       gocron.Job
	gen       uint64
	deviceID  string
}

func (t *jobTask) Generation() uint64 {
	return t.gen
}

// Cancel removes the job; a tick already running finishes on its own
func (t *jobTask) Cancel() error {
	if err := t.scheduler.RemoveJob(t.job.ID()); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		return errors.Wrapf(err, "failed to remove schedule for device %s", t.deviceID)
	}
	return nil
}

// reschedule swaps the interval of the existing job in place
func (t *jobTask) reschedule(interval time.Duration, task gocron.Task, opts ...gocron.JobOption) error {
	job, err := t.scheduler.Update(t.job.ID(), gocron.DurationJob(interval), task, opts...)
	if err != nil {
		return errors.Wrapf(err, "failed to reschedule device %s", t.deviceID)
	}
	t.job = job
	return nil
}
