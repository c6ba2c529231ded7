// Package feedback ships finalized-diary feedback to the learning service
// in the background.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/logger"
)

const (
	// DefaultQueueSize bounds pending feedback when none is configured.
	DefaultQueueSize = 64

	// DefaultSendTimeout bounds one delivery attempt.
	DefaultSendTimeout = 10 * time.Second
)

// ErrQueueFull is reported when Enqueue drops a payload.
var ErrQueueFull = errors.New("feedback queue full")

// Sender delivers one feedback record.
type Sender interface {
	SendFeedback(ctx context.Context, fb domain.Feedback) error
}

// DeadLetters keeps payloads that could not be delivered.
type DeadLetters interface {
	PushFailedFeedback(ctx context.Context, fb domain.Feedback, reason string) error
}

// DispatchError is published on the error channel for every lost payload.
type DispatchError struct {
	DiaryID string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("feedback for diary %s not delivered: %v", e.DiaryID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Dispatcher sends feedback from a bounded queue, one at a time. Failures
// are logged, published on Errors and parked in DeadLetters. Nothing is
// retried.
type Dispatcher struct {
	sender  Sender
	dead    DeadLetters
	logger  logger.Logger
	timeout time.Duration

	queue  chan domain.Feedback
	errCh  chan error
	stopCh chan struct{}
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool

	mu        sync.Mutex
	sent      int64
	failed    int64
	dropped   int64
	lastError time.Time
}

// NewDispatcher creates a dispatcher. dead may be nil.
func NewDispatcher(sender Sender, dead DeadLetters, log logger.Logger, queueSize int, timeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{
		sender:  sender,
		dead:    dead,
		logger:  log,
		timeout: timeout,
		queue:   make(chan domain.Feedback, queueSize),
		errCh:   make(chan error, queueSize),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the worker.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.startOnce.Do(func() {
		d.started.Store(true)
		go d.run(ctx)
	})
	return nil
}

// Stop drains what is already queued and stops the worker.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
	if d.started.Load() {
		<-d.done
	}
}

// Enqueue implements session.FeedbackQueue. It never blocks.
func (d *Dispatcher) Enqueue(fb domain.Feedback) bool {
	select {
	case d.queue <- fb:
		return true
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		// Parking the payload may hit Redis; keep the caller unblocked.
		go d.fail(context.Background(), fb, ErrQueueFull)
		return false
	}
}

// Errors publishes delivery failures. Errors are dropped when nobody reads.
func (d *Dispatcher) Errors() <-chan error { return d.errCh }

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Pending   int       `json:"pending"`
	Sent      int64     `json:"sent"`
	Failed    int64     `json:"failed"`
	Dropped   int64     `json:"dropped"`
	LastError time.Time `json:"lastError,omitempty"`
}

// Stats returns the counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Pending:   len(d.queue),
		Sent:      d.sent,
		Failed:    d.failed,
		Dropped:   d.dropped,
		LastError: d.lastError,
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case fb := <-d.queue:
			d.send(ctx, fb)
		case <-d.stopCh:
			d.drain(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case fb := <-d.queue:
			d.send(ctx, fb)
		default:
			return
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, fb domain.Feedback) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if err := d.sender.SendFeedback(sendCtx, fb); err != nil {
		d.fail(sendCtx, fb, err)
		return
	}

	d.mu.Lock()
	d.sent++
	d.mu.Unlock()

	d.logger.Debug("feedback delivered",
		logger.String("diary_id", fb.DiaryID),
		logger.String("feedback_type", string(fb.FeedbackType)),
		logger.Float64("reward", fb.Details.LayoutReward))
}

func (d *Dispatcher) fail(ctx context.Context, fb domain.Feedback, err error) {
	d.mu.Lock()
	if !errors.Is(err, ErrQueueFull) {
		d.failed++
	}
	d.lastError = time.Now()
	d.mu.Unlock()

	d.logger.Warn("feedback dispatch failed",
		logger.String("diary_id", fb.DiaryID),
		logger.Error(err))

	if d.dead != nil {
		deadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		if derr := d.dead.PushFailedFeedback(deadCtx, fb, err.Error()); derr != nil {
			d.logger.Warn("failed to park undelivered feedback",
				logger.String("diary_id", fb.DiaryID),
				logger.Error(derr))
		}
		cancel()
	}

	select {
	case d.errCh <- &DispatchError{DiaryID: fb.DiaryID, Err: err}:
	default:
	}
}
