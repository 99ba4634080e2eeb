package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"newsletter_delivery/internal/kafka"
	"newsletter_delivery/internal/mail"
	"newsletter_delivery/internal/models"
	"newsletter_delivery/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu sync.Mutex

	claims []*repository.TaskClaim

	successes  []models.DeliveryTask
	permanents []models.DeliveryTask
	transients []models.DeliveryTask
}

func (q *fakeQueue) ClaimNext(ctx context.Context) (*repository.TaskClaim, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.claims) == 0 {
		return nil, nil
	}
	c := q.claims[0]
	q.claims = q.claims[1:]
	return c, nil
}

func (q *fakeQueue) ResolveSuccess(ctx context.Context, claim *repository.TaskClaim) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.successes = append(q.successes, claim.Task)
	return nil
}

func (q *fakeQueue) ResolvePermanentFailure(ctx context.Context, claim *repository.TaskClaim) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.permanents = append(q.permanents, claim.Task)
	return nil
}

func (q *fakeQueue) ResolveTransientFailure(ctx context.Context, claim *repository.TaskClaim) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.transients = append(q.transients, claim.Task)
	return nil
}

func (q *fakeQueue) resolved() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.successes) + len(q.permanents) + len(q.transients)
}

type fakeMailer struct {
	mu    sync.Mutex
	errBy map[string]error
	sent  []string
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return m.errBy[to]
}

type fakeContentSource struct {
	issue *models.NewsletterIssue
	err   error
}

func (s *fakeContentSource) Content(ctx context.Context, issueID uuid.UUID) (*models.NewsletterIssue, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.issue, nil
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []*kafka.FailureReport
}

func (r *fakeReporter) SendFailureReport(report *kafka.FailureReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func newClaim(email string) *repository.TaskClaim {
	return &repository.TaskClaim{
		Task: models.DeliveryTask{
			IssueID:         uuid.New(),
			SubscriberEmail: email,
			CreatedAt:       time.Now(),
		},
	}
}

func testIssue() *models.NewsletterIssue {
	return &models.NewsletterIssue{
		ID:          uuid.New(),
		Title:       "Newsletter",
		HTMLContent: "<p>Newsletter body as html</p>",
		TextContent: "Newsletter body as plain text",
	}
}

func TestDeliverResolvesSuccess(t *testing.T) {
	queue := &fakeQueue{}
	mailer := &fakeMailer{}
	reporter := &fakeReporter{}
	w := NewDeliveryWorker(queue, mailer, &fakeContentSource{issue: testIssue()}, reporter, time.Millisecond, nil)

	w.deliver(context.Background(), newClaim("ursula@example.com"))

	require.Len(t, queue.successes, 1)
	assert.Equal(t, "ursula@example.com", queue.successes[0].SubscriberEmail)
	assert.Empty(t, queue.permanents)
	assert.Empty(t, queue.transients)
	assert.Empty(t, reporter.reports)
}

func TestDeliverResolvesPermanentFailureAndReports(t *testing.T) {
	queue := &fakeQueue{}
	mailer := &fakeMailer{errBy: map[string]error{
		"bad@example.com": &mail.PermanentError{Reason: "provider returned 400: invalid address"},
	}}
	reporter := &fakeReporter{}
	w := NewDeliveryWorker(queue, mailer, &fakeContentSource{issue: testIssue()}, reporter, time.Millisecond, nil)

	w.deliver(context.Background(), newClaim("bad@example.com"))

	require.Len(t, queue.permanents, 1)
	assert.Empty(t, queue.successes)
	assert.Empty(t, queue.transients)

	require.Len(t, reporter.reports, 1)
	assert.Equal(t, "bad@example.com", reporter.reports[0].SubscriberEmail)
	assert.Contains(t, reporter.reports[0].Reason, "invalid address")
}

func TestDeliverResolvesTransientFailure(t *testing.T) {
	queue := &fakeQueue{}
	mailer := &fakeMailer{errBy: map[string]error{
		"slow@example.com": &mail.TransientError{Reason: "timeout"},
	}}
	w := NewDeliveryWorker(queue, mailer, &fakeContentSource{issue: testIssue()}, nil, time.Millisecond, nil)

	w.deliver(context.Background(), newClaim("slow@example.com"))

	require.Len(t, queue.transients, 1)
	assert.Empty(t, queue.successes)
	assert.Empty(t, queue.permanents)
}

func TestDeliverTreatsContentErrorAsTransient(t *testing.T) {
	queue := &fakeQueue{}
	mailer := &fakeMailer{}
	w := NewDeliveryWorker(queue, mailer, &fakeContentSource{err: errors.New("connection reset")}, nil, time.Millisecond, nil)

	w.deliver(context.Background(), newClaim("ursula@example.com"))

	require.Len(t, queue.transients, 1)
	assert.Empty(t, mailer.sent, "mailer must not be called without issue content")
}

func TestDeliverTreatsUnclassifiedErrorAsTransient(t *testing.T) {
	queue := &fakeQueue{}
	mailer := &fakeMailer{errBy: map[string]error{
		"ursula@example.com": errors.New("something unexpected"),
	}}
	w := NewDeliveryWorker(queue, mailer, &fakeContentSource{issue: testIssue()}, nil, time.Millisecond, nil)

	w.deliver(context.Background(), newClaim("ursula@example.com"))

	require.Len(t, queue.transients, 1)
}

func TestRunDrainsQueue(t *testing.T) {
	queue := &fakeQueue{claims: []*repository.TaskClaim{
		newClaim("a@example.com"),
		newClaim("b@example.com"),
		newClaim("c@example.com"),
	}}
	mailer := &fakeMailer{errBy: map[string]error{
		"c@example.com": &mail.TransientError{Reason: "provider returned 503"},
	}}
	w := NewDeliveryWorker(queue, mailer, &fakeContentSource{issue: testIssue()}, nil, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return queue.resolved() == 3 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}

	assert.Len(t, queue.successes, 2)
	assert.Len(t, queue.transients, 1)
	assert.Equal(t, "c@example.com", queue.transients[0].SubscriberEmail)
}

type blockingMailer struct {
	sending chan struct{}
	release chan struct{}
}

func (m *blockingMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	close(m.sending)
	<-m.release
	return nil
}

func TestStartJoinWaitsForInFlightDelivery(t *testing.T) {
	queue := &fakeQueue{claims: []*repository.TaskClaim{newClaim("ursula@example.com")}}
	mailer := &blockingMailer{sending: make(chan struct{}), release: make(chan struct{})}
	w := NewDeliveryWorker(queue, mailer, &fakeContentSource{issue: testIssue()}, nil, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := w.Start(ctx)

	select {
	case <-mailer.sending:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never started sending")
	}

	// Cancellation during an in-flight send must not stop the worker until
	// the claimed task has been resolved.
	cancel()
	select {
	case <-done:
		t.Fatal("worker stopped with a delivery still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(mailer.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after the delivery resolved")
	}

	require.Len(t, queue.successes, 1)
	assert.Equal(t, "ursula@example.com", queue.successes[0].SubscriberEmail)
}

func TestRunStopsBetweenClaimsOnEmptyQueue(t *testing.T) {
	queue := &fakeQueue{}
	w := NewDeliveryWorker(queue, &fakeMailer{}, &fakeContentSource{issue: testIssue()}, nil, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
