package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("mail queue full")
	ErrQueueClosed = errors.New("mail queue closed")
)

type mailJob struct {
	to      string
	subject string
	body    string
}

// MailQueue hands messages to a pool of workers so requests don't wait on
// SMTP. Delivery errors are logged, never returned to the caller.
type MailQueue struct {
	next    Notifier
	jobs    chan *mailJob
	running atomic.Int32
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewMailQueue initializes a new queue that holds at most size messages
// waiting for a worker
func NewMailQueue(next Notifier, workers, size int) *MailQueue {
	if workers <= 0 {
		workers = 1
	}

	if size <= 0 {
		size = 100
	}

	zap.L().Debug("Initializing mail queue", zap.Int("workers", workers), zap.Int("size", size))

	return &MailQueue{
		next:    next,
		jobs:    make(chan *mailJob, size),
		workers: workers,
	}
}

func (q *MailQueue) StartWorkerPool() {
	for range q.workers {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *MailQueue) worker() {
	defer q.wg.Done()

	for job := range q.jobs {
		err := q.next.Send(context.Background(), job.to, job.subject, job.body)

		q.running.Add(-1)

		if err != nil {
			zap.L().Error("Failed to send mail",
				zap.String("to", job.to),
				zap.String("subject", job.subject),
				zap.Error(err))
		} else {
			zap.L().Debug("Mail sent", zap.String("to", job.to), zap.String("subject", job.subject))
		}
	}
}

// Send enqueues a message without waiting for it to be delivered
func (q *MailQueue) Send(_ context.Context, to, subject, body string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	// Counted before the send so a fast worker can't decrement first
	q.running.Add(1)

	select {
	case q.jobs <- &mailJob{to: to, subject: subject, body: body}:
		return nil
	default:
		q.running.Add(-1)
		return ErrQueueFull
	}
}

// Pending returns how many messages are queued or being sent
func (q *MailQueue) Pending() int32 {
	return q.running.Load()
}

// Close stops accepting messages and waits for the queued ones to be sent
func (q *MailQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}
