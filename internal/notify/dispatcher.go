package notify

import (
	"context"
	"sync"
	"time"

	"example.com/coastwatch/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrQueueFull is returned when an alert cannot be queued without blocking
var ErrQueueFull = errors.New("alert queue full")

// ErrDispatcherClosed is returned when an alert arrives after Close
var ErrDispatcherClosed = errors.New("alert dispatcher closed")

// AlertSink accepts alert events for the external notification dispatcher
type AlertSink interface {
	SendAlert(ctx context.Context, event models.AlertEvent) error
	Close() error
}

// Recorder receives dispatch outcomes; metrics implement it
type Recorder interface {
	AlertDropped()
	AlertSendFailed()
}

// Options configures a Dispatcher
type Options struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Dispatcher hands alert events to a sink from a bounded queue and worker pool
type Dispatcher struct {
	sink     AlertSink
	recorder Recorder
	queue    chan models.AlertEvent
	workers  int
	timeout  time.Duration
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once

	// mu orders Enqueue against Close so nothing lands after the drain
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher and starts its workers
func NewDispatcher(sink AlertSink, recorder Recorder, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sink:     sink,
		recorder: recorder,
		queue:    make(chan models.AlertEvent, opts.QueueSize),
		workers:  opts.Workers,
		timeout:  opts.Timeout,
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	log.Info().Int("workers", d.workers).Int("queue_size", opts.QueueSize).Msg("Started alert dispatcher")
	return d
}

// Enqueue queues an alert without blocking
func (d *Dispatcher) Enqueue(event models.AlertEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped()
		log.Warn().Str("device_id", event.DeviceID).Str("rule_id", event.Rule.ID).Msg("Alert dispatcher closed, dropping alert")
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- event:
		return nil
	default:
		d.dropped()
		log.Warn().Str("device_id", event.DeviceID).Str("rule_id", event.Rule.ID).Msg("Alert queue full, dropping alert")
		return ErrQueueFull
	}
}

func (d *Dispatcher) dropped() {
	if d.recorder != nil {
		d.recorder.AlertDropped()
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			d.drain()
			log.Debug().Int("worker", id).Msg("Alert worker shutting down")
			return
		case event := <-d.queue:
			d.send(event)
		}
	}
}

// drain flushes whatever is still queued at shutdown
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.send(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) send(event models.AlertEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.SendAlert(ctx, event); err != nil {
		if d.recorder != nil {
			d.recorder.AlertSendFailed()
		}
		log.Error().Err(err).
			Str("device_id", event.DeviceID).
			Str("alert_id", event.ID.String()).
			Msg("Failed to deliver alert to sink")
		return
	}
	log.Debug().Str("alert_id", event.ID.String()).Str("severity", string(event.Severity)).Msg("Alert delivered to sink")
}

// Pending returns the number of queued alerts
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops the workers after flushing the queue and closes the sink
func (d *Dispatcher) Close() error {
	var err error
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		d.cancel()
		d.wg.Wait()
		err = d.sink.Close()
	})
	return err
}
