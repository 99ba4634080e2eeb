package service

import (
	"context"
	"log"
	"time"

	"newsletter_delivery/internal/kafka"
	"newsletter_delivery/internal/mail"
	"newsletter_delivery/internal/metrics"
	"newsletter_delivery/internal/models"
	"newsletter_delivery/internal/repository"

	"github.com/google/uuid"
)

// TaskQueue is the part of the delivery queue the worker drives.
type TaskQueue interface {
	ClaimNext(ctx context.Context) (*repository.TaskClaim, error)
	ResolveSuccess(ctx context.Context, claim *repository.TaskClaim) error
	ResolvePermanentFailure(ctx context.Context, claim *repository.TaskClaim) error
	ResolveTransientFailure(ctx context.Context, claim *repository.TaskClaim) error
}

// Mailer sends one email; failures come back classified via mail.IsPermanent.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// ContentSource resolves a claimed task's issue id to renderable content.
type ContentSource interface {
	Content(ctx context.Context, issueID uuid.UUID) (*models.NewsletterIssue, error)
}

// FailureReporter publishes permanent-failure records for operator
// visibility.
type FailureReporter interface {
	SendFailureReport(report *kafka.FailureReport) error
}

// DeliveryWorker drains the delivery queue until its context is cancelled.
// Workers are stateless across tasks, so any number of instances may run
// concurrently; all coordination lives in the queue's claim protocol.
type DeliveryWorker struct {
	queue        TaskQueue
	mailer       Mailer
	content      ContentSource
	reporter     FailureReporter // optional
	idleInterval time.Duration
	logger       *log.Logger
}

func NewDeliveryWorker(
	queue TaskQueue,
	mailer Mailer,
	content ContentSource,
	reporter FailureReporter,
	idleInterval time.Duration,
	logger *log.Logger,
) *DeliveryWorker {
	if idleInterval <= 0 {
		idleInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}

	return &DeliveryWorker{
		queue:        queue,
		mailer:       mailer,
		content:      content,
		reporter:     reporter,
		idleInterval: idleInterval,
		logger:       logger,
	}
}

// Start launches the worker loop in a background goroutine. The returned
// channel closes once the loop has fully stopped; callers must wait on it
// during shutdown so a claimed task is never abandoned between send and
// resolution.
func (w *DeliveryWorker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		w.logger.Println("delivery worker started")
		defer w.logger.Println("delivery worker stopped")

		w.run(ctx)
	}()
	return done
}

// run checks for cancellation only between claims: a task that has been
// claimed is always driven to a resolution, never abandoned halfway.
func (w *DeliveryWorker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		claim, err := w.queue.ClaimNext(ctx)
		if err != nil {
			w.logger.Printf("claim next task failed: %v", err)
			if !w.idle(ctx) {
				return
			}
			continue
		}

		if claim == nil {
			if !w.idle(ctx) {
				return
			}
			continue
		}

		w.deliver(ctx, claim)
	}
}

func (w *DeliveryWorker) deliver(ctx context.Context, claim *repository.TaskClaim) {
	// Shutdown must not abort the resolution of an already-claimed task.
	ctx = context.WithoutCancel(ctx)

	task := claim.Task
	start := time.Now()

	issue, err := w.content.Content(ctx, task.IssueID)
	if err != nil {
		// Unexpected internal trouble: err on the side of retrying
		// rather than silently dropping a subscriber.
		w.logger.Printf("load issue %s content: %v", task.IssueID, err)
		w.resolveTransient(ctx, claim)
		return
	}

	metrics.ObserveDeliveryLagSeconds(time.Since(task.CreatedAt).Seconds())

	sendErr := w.mailer.Send(ctx, task.SubscriberEmail, issue.Title, issue.HTMLContent, issue.TextContent)
	metrics.ObserveDeliveryDuration(time.Since(start))

	switch {
	case sendErr == nil:
		if err := w.queue.ResolveSuccess(ctx, claim); err != nil {
			w.logger.Printf("resolve success failed: %v", err)
			return
		}
		metrics.IncDeliverySent()

	case mail.IsPermanent(sendErr):
		if err := w.queue.ResolvePermanentFailure(ctx, claim); err != nil {
			w.logger.Printf("resolve permanent failure failed: %v", err)
			return
		}
		metrics.IncDeliveryPermanentFailure()
		w.logger.Printf("delivery to %s for issue %s failed permanently: %v",
			task.SubscriberEmail, task.IssueID, sendErr)
		w.report(&task, sendErr.Error())

	default:
		w.logger.Printf("delivery to %s for issue %s failed, will retry: %v",
			task.SubscriberEmail, task.IssueID, sendErr)
		w.resolveTransient(ctx, claim)
	}
}

func (w *DeliveryWorker) resolveTransient(ctx context.Context, claim *repository.TaskClaim) {
	if err := w.queue.ResolveTransientFailure(ctx, claim); err != nil {
		w.logger.Printf("resolve transient failure failed: %v", err)
		return
	}
	metrics.IncDeliveryRetry()
}

func (w *DeliveryWorker) report(task *models.DeliveryTask, reason string) {
	if w.reporter == nil {
		return
	}
	if err := w.reporter.SendFailureReport(kafka.NewFailureReport(task, reason)); err != nil {
		metrics.IncKafkaError("producer", "send")
		w.logger.Printf("publish failure report: %v", err)
		return
	}
	metrics.IncFailureReportPublished()
}

// idle waits out one idle interval; false means the context was cancelled.
func (w *DeliveryWorker) idle(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(w.idleInterval):
		return true
	}
}
