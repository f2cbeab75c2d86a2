package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/redeemlocal/backend/internal/models"
	"github.com/redeemlocal/backend/pkg/queue"
)

// EmailLogStore records send attempts. Implemented by Repository; tests
// substitute a fake.
type EmailLogStore interface {
	Record(ctx context.Context, log *models.EmailLog) error
}

// EmailProcessor processes email jobs: render is done by the enqueuer, the
// worker just sends and records the attempt.
type EmailProcessor struct {
	repo   EmailLogStore
	sender Sender
	queue  *queue.Queue
	logger *zap.Logger
}

// NewEmailProcessor creates an email processor.
func NewEmailProcessor(repo EmailLogStore, sender Sender, q *queue.Queue, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{repo: repo, sender: sender, queue: q, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	sendErr := p.sender.Send(payload.RecipientEmail, payload.Subject, payload.BodyHTML)

	log := &models.EmailLog{
		Recipient: payload.RecipientEmail,
		EmailType: payload.EmailType,
		Subject:   payload.Subject,
		Status:    models.EmailStatusSent,
	}
	if payload.RedemptionID != uuid.Nil {
		id := payload.RedemptionID
		log.RedemptionID = &id
	}
	if sendErr != nil {
		log.Status = models.EmailStatusFailed
		log.ErrorDetail = sendErr.Error()
	}
	if err := p.repo.Record(ctx, log); err != nil {
		p.logger.Error("record email log failed", zap.Error(err), zap.String("recipient", payload.RecipientEmail))
	}
	if sendErr != nil {
		return fmt.Errorf("send: %w", sendErr)
	}

	p.logger.Info("email sent",
		zap.String("recipient", payload.RecipientEmail),
		zap.String("email_type", payload.EmailType))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
