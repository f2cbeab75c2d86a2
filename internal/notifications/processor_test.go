package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/redeemlocal/backend/internal/models"
	"github.com/redeemlocal/backend/pkg/queue"
)

type fakeLogStore struct {
	logs []*models.EmailLog
}

func (f *fakeLogStore) Record(_ context.Context, log *models.EmailLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakeSender struct {
	err  error
	sent []string
}

func (f *fakeSender) Send(to, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func emailJob(t *testing.T, payload queue.EmailPayload) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &queue.Job{ID: uuid.New().String(), Type: queue.JobTypeEmail, Payload: raw}
}

func TestProcessSendsAndRecords(t *testing.T) {
	store := &fakeLogStore{}
	sender := &fakeSender{}
	p := NewEmailProcessor(store, sender, nil, nil)

	redemptionID := uuid.New()
	job := emailJob(t, queue.EmailPayload{
		EmailType:      queue.EmailTypeRedemptionReceipt,
		RedemptionID:   redemptionID,
		RecipientEmail: "user@example.com",
		Subject:        "Your redemption receipt",
		BodyHTML:       "<p>Enjoy!</p>",
	})

	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "user@example.com" {
		t.Errorf("sent = %v", sender.sent)
	}
	if len(store.logs) != 1 {
		t.Fatalf("recorded %d logs, want 1", len(store.logs))
	}
	log := store.logs[0]
	if log.Status != models.EmailStatusSent {
		t.Errorf("status = %q, want sent", log.Status)
	}
	if log.RedemptionID == nil || *log.RedemptionID != redemptionID {
		t.Error("redemption id not carried onto the log")
	}
}

func TestProcessRecordsFailure(t *testing.T) {
	store := &fakeLogStore{}
	sender := &fakeSender{err: errors.New("connection refused")}
	p := NewEmailProcessor(store, sender, nil, nil)

	job := emailJob(t, queue.EmailPayload{
		EmailType:      queue.EmailTypeVendorNotice,
		RecipientEmail: "vendor@example.com",
		Subject:        "Redemption verified",
	})

	if err := p.Process(context.Background(), job); err == nil {
		t.Fatal("expected error so the job gets retried")
	}
	if len(store.logs) != 1 {
		t.Fatalf("recorded %d logs, want 1", len(store.logs))
	}
	log := store.logs[0]
	if log.Status != models.EmailStatusFailed {
		t.Errorf("status = %q, want failed", log.Status)
	}
	if log.ErrorDetail == "" {
		t.Error("error detail missing on the failed log")
	}
	if log.RedemptionID != nil {
		t.Error("expected no redemption id for a zero-id payload")
	}
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	p := NewEmailProcessor(&fakeLogStore{}, &fakeSender{}, nil, nil)
	job := &queue.Job{ID: uuid.New().String(), Type: "resize_image", Payload: []byte(`{}`)}
	if err := p.Process(context.Background(), job); err == nil {
		t.Fatal("expected error for unknown job type")
	}
}
