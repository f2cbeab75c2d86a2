package deals

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/redeemlocal/backend/internal/models"
)

func publishedDeal() *models.Deal {
	return &models.Deal{
		ID:       uuid.New(),
		VendorID: uuid.New(),
		Title:    "Half-price lunch",
		IsActive: true,
		Status:   models.DealStatusPublished,
	}
}

func TestCheckRedeemableOK(t *testing.T) {
	now := time.Now()
	if v := CheckRedeemable(publishedDeal(), now); v != nil {
		t.Fatalf("expected no violation, got %q", v.Reason)
	}

	// bounded window containing now
	d := publishedDeal()
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)
	d.StartsAt = &start
	d.EndsAt = &end
	if v := CheckRedeemable(d, now); v != nil {
		t.Fatalf("expected no violation inside window, got %q", v.Reason)
	}
}

func TestCheckRedeemableMissing(t *testing.T) {
	now := time.Now()
	if v := CheckRedeemable(nil, now); v == nil || v.Reason != ReasonNotFound {
		t.Fatalf("expected %q for nil deal, got %+v", ReasonNotFound, v)
	}

	d := publishedDeal()
	deleted := now.Add(-time.Minute)
	d.DeletedAt = &deleted
	if v := CheckRedeemable(d, now); v == nil || v.Reason != ReasonNotFound {
		t.Fatalf("expected %q for deleted deal, got %+v", ReasonNotFound, v)
	}
}

func TestCheckRedeemableInactive(t *testing.T) {
	now := time.Now()

	d := publishedDeal()
	d.IsActive = false
	if v := CheckRedeemable(d, now); v == nil || v.Reason != ReasonInactive {
		t.Fatalf("expected %q for inactive deal, got %+v", ReasonInactive, v)
	}

	d = publishedDeal()
	d.Status = models.DealStatusDraft
	if v := CheckRedeemable(d, now); v == nil || v.Reason != ReasonInactive {
		t.Fatalf("expected %q for draft deal, got %+v", ReasonInactive, v)
	}

	d = publishedDeal()
	d.Status = models.DealStatusArchived
	if v := CheckRedeemable(d, now); v == nil || v.Reason != ReasonInactive {
		t.Fatalf("expected %q for archived deal, got %+v", ReasonInactive, v)
	}
}

func TestCheckRedeemableWindow(t *testing.T) {
	now := time.Now()

	d := publishedDeal()
	start := now.Add(time.Hour)
	d.StartsAt = &start
	v := CheckRedeemable(d, now)
	if v == nil || v.Reason != ReasonNotStarted {
		t.Fatalf("expected %q before window, got %+v", ReasonNotStarted, v)
	}
	if v.Message != "This deal hasn't started yet." {
		t.Fatalf("unexpected message %q", v.Message)
	}

	d = publishedDeal()
	end := now.Add(-time.Hour)
	d.EndsAt = &end
	v = CheckRedeemable(d, now)
	if v == nil || v.Reason != ReasonDealExpired {
		t.Fatalf("expected %q after window, got %+v", ReasonDealExpired, v)
	}
	if v.Message != "This deal has expired." {
		t.Fatalf("unexpected message %q", v.Message)
	}
}

func TestCheckRedeemableUnboundedSides(t *testing.T) {
	now := time.Now()

	// only a lower bound, already passed
	d := publishedDeal()
	start := now.Add(-24 * time.Hour)
	d.StartsAt = &start
	if v := CheckRedeemable(d, now); v != nil {
		t.Fatalf("expected no violation with open end, got %q", v.Reason)
	}

	// only an upper bound, not yet reached
	d = publishedDeal()
	end := now.Add(24 * time.Hour)
	d.EndsAt = &end
	if v := CheckRedeemable(d, now); v != nil {
		t.Fatalf("expected no violation with open start, got %q", v.Reason)
	}
}
