package stream

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"example.com/coastwatch/internal/hub"
	"example.com/coastwatch/internal/models"
	"example.com/coastwatch/internal/registry"
	"example.com/coastwatch/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Synthesizer produces one reading per tick
type Synthesizer interface {
	Synthesize(cfg models.DeviceConfig, now time.Time) (models.Reading, error)
}

// Evaluator turns a reading into alert events
type Evaluator interface {
	Evaluate(reading models.Reading) []models.AlertEvent
}

// AlertQueue accepts alerts without blocking
type AlertQueue interface {
	Enqueue(event models.AlertEvent) error
}

// Recorder receives tick outcomes; metrics implement it
type Recorder interface {
	TickCompleted(deviceType string, d time.Duration)
	TickPanicked(deviceType string)
	EnvelopePublished(delivered int)
	AlertRaised(severity string)
	SetActiveDevices(n int)
}

// Options wires the manager's collaborators
type Options struct {
	Registry    *registry.Registry
	Synthesizer Synthesizer
	Evaluator   Evaluator
	Hub         *hub.Hub
	Alerts      AlertQueue
	Recorder    Recorder
	Tracer      tracing.Tracer
	StopTimeout time.Duration
	Clock       func() time.Time
}

// deviceState serialises a device's ticks and tracks its last timestamp
type deviceState struct {
	mu   sync.Mutex
	last time.Time
}

// Manager runs one recurring tick per active device and publishes envelopes to the hub
type Manager struct {
	mu        sync.Mutex
	registry  *registry.Registry
	synth     Synthesizer
	evaluator Evaluator
	hub       *hub.Hub
	alerts    AlertQueue
	recorder  Recorder
	tracer    tracing.Tracer
	clock     func() time.Time
	scheduler gocron.Scheduler
	nextGen   atomic.Uint64
	running   map[string]struct{}
	stopped   bool

	statesMu sync.Mutex
	states   map[string]*deviceState
}

// NewManager creates a manager; call Start to begin ticking
func NewManager(opts Options) (*Manager, error) {
	if opts.Registry == nil || opts.Synthesizer == nil || opts.Evaluator == nil || opts.Hub == nil {
		return nil, errors.New("stream manager requires a registry, synthesizer, evaluator and hub")
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 10 * time.Second
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Disabled()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	scheduler, err := gocron.NewScheduler(gocron.WithStopTimeout(opts.StopTimeout))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}

	return &Manager{
		registry:  opts.Registry,
		synth:     opts.Synthesizer,
		evaluator: opts.Evaluator,
		hub:       opts.Hub,
		alerts:    opts.Alerts,
		recorder:  opts.Recorder,
		tracer:    opts.Tracer,
		clock:     opts.Clock,
		scheduler: scheduler,
		running:   make(map[string]struct{}),
		states:    make(map[string]*deviceState),
	}, nil
}

// Start begins firing the scheduled ticks
func (m *Manager) Start() {
	m.scheduler.Start()
	log.Info().Int("devices", m.registry.Len()).Int("active", m.activeCount()).Msg("Stream scheduler started")
}

// Hub returns the broadcast hub envelopes are published to
func (m *Manager) Hub() *hub.Hub {
	return m.hub
}

// Register adds a device and starts its schedule when it is active
func (m *Manager) Register(cfg models.DeviceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return models.ErrSchedulerStopped
	}
	if err := m.registry.Add(cfg); err != nil {
		return err
	}

	log.Info().Str("device_id", cfg.ID).Str("device_type", string(cfg.Type)).Bool("active", cfg.Active).Msg("Device registered")

	if cfg.Active {
		if err := m.startLocked(cfg); err != nil {
			// roll back so a corrected retry is not a duplicate
			m.registry.Remove(cfg.ID)
			log.Warn().Err(err).Str("device_id", cfg.ID).Msg("Device schedule failed to start, registration rolled back")
			return err
		}
	}
	return nil
}

// SetActive starts or stops a device's schedule without touching the rest of its configuration
func (m *Manager) SetActive(id string, active bool) (models.DeviceConfig, error) {
	return m.Reconfigure(id, models.DevicePatch{Active: &active})
}

// Reconfigure applies a partial update; an interval change on an active device
// replaces its schedule in place
func (m *Manager) Reconfigure(id string, patch models.DevicePatch) (models.DeviceConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return models.DeviceConfig{}, models.ErrSchedulerStopped
	}

	prev, next, err := m.registry.Update(id, patch.Apply)
	if err != nil {
		return models.DeviceConfig{}, err
	}

	task := m.registry.Task(id)
	switch {
	case !next.Active:
		if task != nil {
			if err := m.stopLocked(id); err != nil {
				return next, err
			}
		}
	case task == nil:
		if err := m.startLocked(next); err != nil {
			m.markInactive(id)
			return next, err
		}
	case prev.Interval() != next.Interval() || prev.Type != next.Type:
		jt, ok := task.(*jobTask)
		if !ok {
			return next, errors.Errorf("device %s has a foreign schedule handle", id)
		}
		if err := jt.reschedule(next.Interval(), m.taskFor(id, jt.gen), jobOptions(next)...); err != nil {
			return next, err
		}
		log.Info().Str("device_id", id).Dur("interval", next.Interval()).Msg("Device schedule replaced")
	}

	log.Info().Str("device_id", id).Bool("active", next.Active).Float64("interval_seconds", next.IntervalSeconds).Msg("Device reconfigured")
	return next, nil
}

// RecordService stores a new last-service date for the device
func (m *Manager) RecordService(id string, at time.Time) (models.DeviceConfig, error) {
	_, next, err := m.registry.Update(id, func(c models.DeviceConfig) models.DeviceConfig {
		c.LastService = at
		return c
	})
	if err != nil {
		return models.DeviceConfig{}, err
	}
	log.Debug().Str("device_id", id).Time("last_service", at).Msg("Service record updated")
	return next, nil
}

// Device returns one device's configuration
func (m *Manager) Device(id string) (models.DeviceConfig, error) {
	cfg, ok := m.registry.Get(id)
	if !ok {
		return models.DeviceConfig{}, models.NewConfigurationError(id, models.ErrUnknownDevice)
	}
	return cfg, nil
}

// Devices returns every device's configuration
func (m *Manager) Devices() []models.DeviceConfig {
	return m.registry.List()
}

// Running reports whether the device currently has a schedule
func (m *Manager) Running(id string) bool {
	return m.registry.Task(id) != nil
}

// Shutdown cancels every schedule, waits for in-flight ticks and disconnects all subscribers
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true

	m.registry.DetachAll()
	m.running = make(map[string]struct{})
	m.setActiveGauge()

	err := m.scheduler.Shutdown()
	m.hub.Close()

	if err != nil {
		return errors.Wrap(err, "scheduler shutdown")
	}
	log.Info().Msg("Stream scheduler stopped")
	return nil
}

// startLocked must be called with m.mu held
func (m *Manager) startLocked(cfg models.DeviceConfig) error {
	gen := m.nextGen.Add(1)

	job, err := m.scheduler.NewJob(gocron.DurationJob(cfg.Interval()), m.taskFor(cfg.ID, gen), jobOptions(cfg)...)
	if err != nil {
		return errors.Wrapf(err, "failed to schedule device %s", cfg.ID)
	}

	task := &jobTask{scheduler: m.scheduler, job: job, gen: gen, deviceID: cfg.ID}
	prev, err := m.registry.Attach(cfg.ID, task)
	if err != nil {
		_ = task.Cancel()
		return err
	}
	if prev != nil {
		if err := prev.Cancel(); err != nil {
			log.Error().Err(err).Str("device_id", cfg.ID).Msg("Failed to cancel replaced schedule")
		}
	}

	m.running[cfg.ID] = struct{}{}
	m.setActiveGauge()
	log.Info().Str("device_id", cfg.ID).Dur("interval", cfg.Interval()).Msg("Device schedule started")
	return nil
}

// stopLocked must be called with m.mu held
func (m *Manager) stopLocked(id string) error {
	task := m.registry.Detach(id)
	delete(m.running, id)
	m.setActiveGauge()

	if task == nil {
		return nil
	}
	if err := task.Cancel(); err != nil {
		return err
	}
	log.Info().Str("device_id", id).Msg("Device schedule stopped")
	return nil
}

func (m *Manager) markInactive(id string) {
	_, _, _ = m.registry.Update(id, func(c models.DeviceConfig) models.DeviceConfig {
		c.Active = false
		return c
	})
}

func (m *Manager) taskFor(id string, gen uint64) gocron.Task {
	return gocron.NewTask(m.tick, id, gen)
}

func jobOptions(cfg models.DeviceConfig) []gocron.JobOption {
	return []gocron.JobOption{
		gocron.WithName(cfg.ID),
		gocron.WithTags(string(cfg.Type)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
}

func (m *Manager) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

func (m *Manager) setActiveGauge() {
	if m.recorder != nil {
		m.recorder.SetActiveDevices(len(m.running))
	}
}

func (m *Manager) state(id string) *deviceState {
	m.statesMu.Lock()
	defer m.statesMu.Unlock()

	st, ok := m.states[id]
	if !ok {
		st = &deviceState{}
		m.states[id] = st
	}
	return st
}

// tick runs one synthesize, evaluate, publish cycle for a device
func (m *Manager) tick(id string, gen uint64) {
	st := m.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	cfg, ok := m.registry.Current(id, gen)
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("device_id", id).Str("panic", fmt.Sprint(r)).Msg("Recovered from panic in device tick")
			if m.recorder != nil {
				m.recorder.TickPanicked(string(cfg.Type))
			}
		}
	}()

	start := time.Now()
	txn := m.tracer.StartTransaction("device-tick")
	defer m.tracer.EndTransaction(txn)
	m.tracer.AddAttribute(txn, "device_id", id)
	m.tracer.AddAttribute(txn, "device_type", string(cfg.Type))

	now := m.clock()
	if !now.After(st.last) {
		now = st.last.Add(time.Microsecond)
	}

	seg := m.tracer.StartSegment(txn, "synthesize")
	reading, err := m.synth.Synthesize(cfg, now)
	seg.End()
	if err != nil {
		m.tracer.RecordError(txn, err)
		log.Error().Err(err).Str("device_id", id).Msg("Failed to synthesize reading")
		return
	}
	st.last = reading.Timestamp

	seg = m.tracer.StartSegment(txn, "evaluate")
	alerts := m.evaluator.Evaluate(reading)
	seg.End()
	if alerts == nil {
		alerts = []models.AlertEvent{}
	}

	seg = m.tracer.StartSegment(txn, "publish")
	delivered := m.hub.Publish(hub.Message{
		Kind:    hub.KindReading,
		Payload: models.Envelope{Reading: reading, Alerts: alerts},
	})
	seg.End()

	for _, a := range alerts {
		if m.recorder != nil {
			m.recorder.AlertRaised(string(a.Severity))
		}
		if m.alerts != nil {
			// a full queue is logged by the dispatcher; telemetry keeps flowing
			_ = m.alerts.Enqueue(a)
		}
	}

	if m.recorder != nil {
		m.recorder.EnvelopePublished(delivered)
		m.recorder.TickCompleted(string(cfg.Type), time.Since(start))
	}

	log.Debug().
		Str("device_id", id).
		Int("alerts", len(alerts)).
		Int("delivered", delivered).
		Msg("Tick published")
}
