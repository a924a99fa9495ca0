package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"example.com/coastwatch/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAlertSink struct {
	mock.Mock
}

func (m *MockAlertSink) SendAlert(ctx context.Context, event models.AlertEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAlertSink) Close() error {
	args := m.Called()
	return args.Error(0)
}

type countingRecorder struct {
	dropped, failed atomic.Int32
}

func (r *countingRecorder) AlertDropped()    { r.dropped.Add(1) }
func (r *countingRecorder) AlertSendFailed() { r.failed.Add(1) }

// blockingSink holds every send until released
type blockingSink struct {
	release chan struct{}
	sent    atomic.Int32
}

func (b *blockingSink) SendAlert(ctx context.Context, _ models.AlertEvent) error {
	<-b.release
	b.sent.Add(1)
	return nil
}

func (b *blockingSink) Close() error { return nil }

// countingSink counts every delivered alert
type countingSink struct {
	sent atomic.Int32
}

func (c *countingSink) SendAlert(context.Context, models.AlertEvent) error {
	c.sent.Add(1)
	return nil
}

func (c *countingSink) Close() error { return nil }

func alert(device string) models.AlertEvent {
	return models.AlertEvent{ID: uuid.New(), DeviceID: device, Severity: models.SeverityHigh}
}

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := new(MockAlertSink)
	sink.On("SendAlert", mock.Anything, mock.AnythingOfType("models.AlertEvent")).Return(nil).Twice()
	sink.On("Close").Return(nil).Once()

	d := NewDispatcher(sink, nil, Options{QueueSize: 8, Workers: 2})
	require.NoError(t, d.Enqueue(alert("wave-01")))
	require.NoError(t, d.Enqueue(alert("wave-02")))

	require.NoError(t, d.Close())
	sink.AssertExpectations(t)
}

func TestDispatcherCountsSinkFailures(t *testing.T) {
	sink := new(MockAlertSink)
	sink.On("SendAlert", mock.Anything, mock.Anything).Return(errors.New("queue unavailable"))
	sink.On("Close").Return(nil)
	rec := &countingRecorder{}

	d := NewDispatcher(sink, rec, Options{QueueSize: 4, Workers: 1})
	require.NoError(t, d.Enqueue(alert("tide-01")))
	require.NoError(t, d.Close())

	require.EqualValues(t, 1, rec.failed.Load())
}

func TestEnqueueNeverBlocks(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	rec := &countingRecorder{}
	d := NewDispatcher(sink, rec, Options{QueueSize: 1, Workers: 1})

	// first alert occupies the worker, second fills the queue
	require.NoError(t, d.Enqueue(alert("a")))
	require.Eventually(t, func() bool { return d.Pending() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Enqueue(alert("b")))

	start := time.Now()
	err := d.Enqueue(alert("c"))
	require.ErrorIs(t, err, ErrQueueFull)
	require.Less(t, time.Since(start), 100*time.Millisecond)
	require.EqualValues(t, 1, rec.dropped.Load())

	close(sink.release)
	require.NoError(t, d.Close())
	require.EqualValues(t, 2, sink.sent.Load())
}

func TestEnqueueAfterCloseIsCountedDropped(t *testing.T) {
	sink := &countingSink{}
	rec := &countingRecorder{}
	d := NewDispatcher(sink, rec, Options{QueueSize: 4, Workers: 1})
	require.NoError(t, d.Close())

	err := d.Enqueue(alert("wave-01"))
	require.ErrorIs(t, err, ErrDispatcherClosed)
	require.EqualValues(t, 1, rec.dropped.Load())
	require.EqualValues(t, 0, sink.sent.Load())
	require.Equal(t, 0, d.Pending())
}

func TestEnqueueRacingCloseIsSentOrDropped(t *testing.T) {
	for round := 0; round < 20; round++ {
		sink := &countingSink{}
		rec := &countingRecorder{}
		d := NewDispatcher(sink, rec, Options{QueueSize: 64, Workers: 2})

		const producers, perProducer = 4, 50
		var accepted atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < perProducer; i++ {
					if d.Enqueue(alert("tide-01")) == nil {
						accepted.Add(1)
					}
				}
			}()
		}

		close(start)
		require.NoError(t, d.Close())
		wg.Wait()

		require.Equal(t, accepted.Load(), sink.sent.Load())
		require.EqualValues(t, producers*perProducer, sink.sent.Load()+rec.dropped.Load())
		require.Equal(t, 0, d.Pending())
	}
}
