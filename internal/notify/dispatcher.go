// Package notify fans reservation notifications out to topic subscribers.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/metrics"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

const (
	defaultQueueSize      = 1024
	defaultPublishTimeout = 2 * time.Second
	defaultEnqueueTimeout = 250 * time.Millisecond

	resultPublished = "published"
	resultFailed    = "failed"
	resultDropped   = "dropped"

	dropShutdown  = "shutdown"
	dropQueueFull = "queue full"
	dropCanceled  = "context done"
)

// Publisher delivers one payload to every subscriber of topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Dispatcher publishes notifications on a single background worker.
//
// Each Dispatch call is queued as one batch and batches are published in the
// order they were queued, so notifications produced by one operation reach
// every topic in the order they were produced. Delivery is best effort:
// failures and drops are logged and counted, never returned.
type Dispatcher struct {
	publisher      Publisher
	logger         *zap.Logger
	metrics        *metrics.Metrics
	timeout        time.Duration
	enqueueTimeout time.Duration

	queue     chan []model.Notification
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	// ctx bounds in-flight publishes; Close cancels it when its deadline
	// passes before the queue is drained.
	ctx    context.Context
	cancel context.CancelFunc
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets how many batches may wait for the worker.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan []model.Notification, n)
		}
	}
}

// WithPublishTimeout bounds a single publish call.
func WithPublishTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithEnqueueTimeout bounds how long Dispatch waits for room in a full queue
// before dropping the batch.
func WithEnqueueTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.enqueueTimeout = timeout
		}
	}
}

// WithDispatcherMetrics records delivery results in m.
func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher starts the worker. Call Close to drain and stop it.
func NewDispatcher(publisher Publisher, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		publisher:      publisher,
		logger:         logger,
		timeout:        defaultPublishTimeout,
		enqueueTimeout: defaultEnqueueTimeout,
		queue:          make(chan []model.Notification, defaultQueueSize),
		closing:        make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	go d.run()
	return d
}

// Dispatch queues notifications for publishing and never fails. When the
// queue is full it waits at most the enqueue timeout, and no longer than ctx
// allows, then drops the batch. Notifications dispatched after Close are
// dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, notifications ...model.Notification) {
	if len(notifications) == 0 {
		return
	}

	select {
	case <-d.closing:
		d.drop(notifications, dropShutdown)
		return
	default:
	}

	batch := make([]model.Notification, len(notifications))
	copy(batch, notifications)

	select {
	case d.queue <- batch:
		d.metrics.SetQueueDepth(len(d.queue))
		return
	default:
	}

	timer := time.NewTimer(d.enqueueTimeout)
	defer timer.Stop()

	select {
	case d.queue <- batch:
		d.metrics.SetQueueDepth(len(d.queue))
	case <-timer.C:
		d.drop(batch, dropQueueFull)
	case <-ctx.Done():
		d.drop(batch, dropCanceled)
	case <-d.closing:
		d.drop(batch, dropShutdown)
	}
}

// Close stops accepting notifications and waits until queued ones have been
// published or ctx expires. On expiry in-flight publishes are canceled and
// whatever is still queued is dropped.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() { close(d.closing) })

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	defer d.cancel()

	for {
		select {
		case <-d.closing:
			d.drain()
			return
		default:
		}

		select {
		case batch := <-d.queue:
			d.deliver(batch)
		case <-d.closing:
			d.drain()
			return
		}
	}
}

// drain publishes what was queued before Close. Batches still waiting once
// the dispatcher context is canceled are dropped.
func (d *Dispatcher) drain() {
	for {
		select {
		case batch := <-d.queue:
			if d.ctx.Err() != nil {
				d.drop(batch, dropShutdown)
				continue
			}
			d.deliver(batch)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(batch []model.Notification) {
	d.metrics.SetQueueDepth(len(d.queue))
	for _, n := range batch {
		d.publish(n)
	}
}

func (d *Dispatcher) drop(batch []model.Notification, reason string) {
	for _, n := range batch {
		d.metrics.ObserveNotification(n.Kind, resultDropped)
		d.logger.Warn("notification dropped",
			zap.String("topic", n.Topic),
			zap.String("kind", string(n.Kind)),
			zap.String("reason", reason),
		)
	}
}

func (d *Dispatcher) publish(n model.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		d.fail(n, err)
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, n.Topic, payload); err != nil {
		d.fail(n, err)
		return
	}

	d.metrics.ObserveNotification(n.Kind, resultPublished)
	d.logger.Debug("notification published",
		zap.String("topic", n.Topic),
		zap.String("kind", string(n.Kind)),
	)
}

func (d *Dispatcher) fail(n model.Notification, err error) {
	d.metrics.ObserveNotification(n.Kind, resultFailed)
	d.logger.Warn("notification publish failed",
		zap.String("topic", n.Topic),
		zap.String("kind", string(n.Kind)),
		zap.Error(err),
	)
}
