package redemptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/redeemlocal/backend/config"
	"github.com/redeemlocal/backend/internal/deals"
	"github.com/redeemlocal/backend/internal/models"
)

type fakeDealStore struct {
	deals map[uuid.UUID]*models.Deal
}

func (f *fakeDealStore) GetByID(_ context.Context, id uuid.UUID) (*models.Deal, error) {
	return f.deals[id], nil
}

// fakeStore is an in-memory RedemptionStore that mirrors the database's
// uniqueness rules: one issued row per (user, deal) and one live row per code.
type fakeStore struct {
	rows  map[uuid.UUID]*models.Redemption
	clock func() time.Time

	createErr error              // one-shot injected Create error
	onCreate  func()             // runs before the injected error fires
	staleRead *models.Redemption // one-shot GetByCode override
}

func newFakeStore(clock func() time.Time) *fakeStore {
	return &fakeStore{rows: make(map[uuid.UUID]*models.Redemption), clock: clock}
}

func liveStatus(s string) bool {
	return s == models.RedemptionIssued || s == models.RedemptionVerified || s == models.RedemptionRedeemed
}

func (f *fakeStore) Create(_ context.Context, red *models.Redemption) error {
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		if f.onCreate != nil {
			f.onCreate()
			f.onCreate = nil
		}
		return err
	}
	for _, r := range f.rows {
		if red.Status == models.RedemptionIssued &&
			r.Status == models.RedemptionIssued && r.UserID == red.UserID && r.DealID == red.DealID {
			return &pgconn.PgError{Code: "23505", ConstraintName: constraintActiveIssue}
		}
		if red.Code != nil && r.Code != nil && *r.Code == *red.Code && liveStatus(r.Status) {
			return &pgconn.PgError{Code: "23505", ConstraintName: constraintLiveCode}
		}
	}
	red.ID = uuid.New()
	cp := *red
	f.rows[red.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Redemption, error) {
	if r, ok := f.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) GetByCode(_ context.Context, code string) (*models.Redemption, error) {
	if f.staleRead != nil {
		r := f.staleRead
		f.staleRead = nil
		return r, nil
	}
	var latest *models.Redemption
	for _, r := range f.rows {
		if r.Code != nil && *r.Code == code {
			if latest == nil || r.IssuedAt.After(latest.IssuedAt) {
				latest = r
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) GetActiveIssued(_ context.Context, userID, dealID uuid.UUID, now time.Time) (*models.Redemption, error) {
	for _, r := range f.rows {
		if r.UserID == userID && r.DealID == dealID && r.Status == models.RedemptionIssued &&
			r.ExpiresAt != nil && r.ExpiresAt.After(now) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CountVerified(_ context.Context, userID, dealID uuid.UUID) (int, error) {
	n := 0
	for _, r := range f.rows {
		if r.UserID == userID && r.DealID == dealID && r.Status == models.RedemptionVerified {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountVerifiedForDeal(_ context.Context, dealID uuid.UUID) (int, error) {
	n := 0
	for _, r := range f.rows {
		if r.DealID == dealID && r.Status == models.RedemptionVerified {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) LastVerified(_ context.Context, userID, dealID uuid.UUID) (*models.Redemption, error) {
	var latest *models.Redemption
	for _, r := range f.rows {
		if r.UserID == userID && r.DealID == dealID && r.Status == models.RedemptionVerified && r.VerifiedAt != nil {
			if latest == nil || r.VerifiedAt.After(*latest.VerifiedAt) {
				latest = r
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) LastRedeemed(_ context.Context, userID, dealID uuid.UUID) (*models.Redemption, error) {
	var latest *models.Redemption
	for _, r := range f.rows {
		if r.UserID == userID && r.DealID == dealID && r.Status == models.RedemptionRedeemed {
			if latest == nil || r.IssuedAt.After(latest.IssuedAt) {
				latest = r
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) CodeInUse(_ context.Context, code string) (bool, error) {
	for _, r := range f.rows {
		if r.Code != nil && *r.Code == code && liveStatus(r.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Verify(_ context.Context, id uuid.UUID) (*models.Redemption, error) {
	r, ok := f.rows[id]
	if !ok || r.Status != models.RedemptionIssued {
		return nil, nil
	}
	now := f.clock()
	r.Status = models.RedemptionVerified
	r.VerifiedAt = &now
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ExpireOverdueIssued(_ context.Context, userID, dealID uuid.UUID, now time.Time) error {
	for _, r := range f.rows {
		if r.UserID == userID && r.DealID == dealID && r.Status == models.RedemptionIssued &&
			r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			r.Status = models.RedemptionExpired
		}
	}
	return nil
}

func (f *fakeStore) MarkExpired(_ context.Context, id uuid.UUID) error {
	if r, ok := f.rows[id]; ok && r.Status == models.RedemptionIssued {
		r.Status = models.RedemptionExpired
	}
	return nil
}

func (f *fakeStore) Void(_ context.Context, id uuid.UUID, reason string) (*models.Redemption, error) {
	r, ok := f.rows[id]
	if !ok || (r.Status != models.RedemptionIssued && r.Status != models.RedemptionVerified) {
		return nil, nil
	}
	now := f.clock()
	r.Status = models.RedemptionVoided
	r.VoidedAt = &now
	if reason != "" {
		r.VoidReason = &reason
	}
	cp := *r
	return &cp, nil
}

// testEnv wires a service over fakes with a controllable clock.
type testEnv struct {
	svc    *Service
	store  *fakeStore
	deals  *fakeDealStore
	now    time.Time
	vendor uuid.UUID
	user   uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		deals:  &fakeDealStore{deals: make(map[uuid.UUID]*models.Deal)},
		now:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		vendor: uuid.New(),
		user:   uuid.New(),
	}
	env.store = newFakeStore(func() time.Time { return env.now })
	env.svc = NewService(env.deals, env.store, config.RedemptionConfig{ClaimWindowMinutes: 10, CodeMaxAttempts: 10}, nil)
	env.svc.now = func() time.Time { return env.now }
	return env
}

func (e *testEnv) addDeal(mutate func(*models.Deal)) *models.Deal {
	d := &models.Deal{
		ID:                    uuid.New(),
		VendorID:              e.vendor,
		Title:                 "Free coffee",
		Status:                models.DealStatusPublished,
		IsActive:              true,
		MaxRedemptionsPerUser: 1,
		RedemptionFrequency:   models.FrequencyUnlimited,
	}
	if mutate != nil {
		mutate(d)
	}
	e.deals.deals[d.ID] = d
	return d
}

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func TestIssueCodeSuccess(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)

	res, err := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got reason %q message %q", res.Reason, res.Message)
	}
	if res.Code == "" || res.Redemption == nil {
		t.Fatal("expected a code and redemption in the result")
	}
	if res.ExpiresAt == nil || !res.ExpiresAt.Equal(env.now.Add(10*time.Minute)) {
		t.Errorf("expires_at = %v, want issued_at + 10m", res.ExpiresAt)
	}
	if res.Redemption.VendorID != deal.VendorID {
		t.Error("redemption should carry the deal's vendor")
	}
}

func TestIssueCodeIdempotent(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)

	first, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	env.advance(3 * time.Minute)
	second, err := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}
	if !second.Success {
		t.Fatalf("expected success, got %q", second.Reason)
	}
	if second.Code != first.Code {
		t.Errorf("re-issue minted a new code: %q vs %q", second.Code, first.Code)
	}
	if len(env.store.rows) != 1 {
		t.Errorf("store has %d rows, want 1", len(env.store.rows))
	}
}

func TestIssueCodeAfterExpiry(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)

	first, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	env.advance(11 * time.Minute)
	second, err := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}
	if !second.Success {
		t.Fatalf("expected success after expiry, got %q", second.Reason)
	}
	if second.Code == first.Code {
		t.Error("expected a fresh code once the old one lapsed")
	}
	if env.store.rows[first.Redemption.ID].Status != models.RedemptionExpired {
		t.Error("lapsed code should be marked expired on re-issue")
	}
}

func TestIssueCodeWrongVendorClaim(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)

	res, err := env.svc.IssueCode(context.Background(), deal.ID, uuid.New(), env.user)
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}
	if res.Success || res.Reason != deals.ReasonNotFound {
		t.Errorf("got success=%v reason=%q, want not_found", res.Success, res.Reason)
	}
}

func TestIssueCodeInactiveDeal(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(func(d *models.Deal) { d.IsActive = false })

	res, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	if res.Success || res.Reason != deals.ReasonInactive {
		t.Errorf("got success=%v reason=%q, want inactive", res.Success, res.Reason)
	}
}

func TestIssueCodePerUserLimit(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil) // MaxRedemptionsPerUser: 1

	issue, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	verify, _ := env.svc.VerifyCode(context.Background(), issue.Code, env.vendor)
	if !verify.Success {
		t.Fatalf("verify failed: %q", verify.Reason)
	}

	res, err := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}
	if res.Success || res.Reason != ReasonLimitReached {
		t.Errorf("got success=%v reason=%q, want limit_reached", res.Success, res.Reason)
	}
}

func TestIssueCodeCooldown(t *testing.T) {
	env := newTestEnv(t)
	cooldown := 24
	deal := env.addDeal(func(d *models.Deal) {
		d.MaxRedemptionsPerUser = 5
		d.CooldownHours = &cooldown
	})

	issue, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	if _, err := env.svc.VerifyCode(context.Background(), issue.Code, env.vendor); err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}

	env.advance(1 * time.Hour)
	res, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	if res.Success || res.Reason != ReasonCooldown {
		t.Fatalf("1h in: got success=%v reason=%q, want cooldown", res.Success, res.Reason)
	}
	if res.Message != "You can redeem this deal again in 23 hours." {
		t.Errorf("cooldown message = %q", res.Message)
	}

	env.advance(24 * time.Hour)
	res, _ = env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	if !res.Success {
		t.Errorf("25h in: got reason %q, want success", res.Reason)
	}
}

func TestIssueCodeSoldOut(t *testing.T) {
	env := newTestEnv(t)
	total := 1
	deal := env.addDeal(func(d *models.Deal) { d.MaxRedemptionsTotal = &total })

	issue, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	if _, err := env.svc.VerifyCode(context.Background(), issue.Code, env.vendor); err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}

	other := uuid.New()
	res, err := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, other)
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}
	if res.Success || res.Reason != ReasonSoldOut {
		t.Errorf("got success=%v reason=%q, want sold_out", res.Success, res.Reason)
	}
}

func TestIssueCodeConcurrentConflict(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)

	// A concurrent request's row lands between our active check and insert:
	// the insert fails on the partial unique index and the winner's row is
	// there on the re-read.
	winner := "RL-ABCDEF"
	expires := env.now.Add(10 * time.Minute)
	env.store.createErr = &pgconn.PgError{Code: "23505", ConstraintName: constraintActiveIssue}
	env.store.onCreate = func() {
		id := uuid.New()
		env.store.rows[id] = &models.Redemption{
			ID: id, DealID: deal.ID, VendorID: env.vendor, UserID: env.user,
			Code: &winner, Status: models.RedemptionIssued, IssuedAt: env.now, ExpiresAt: &expires,
		}
	}

	res, err := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected idempotent success, got %q", res.Reason)
	}
	if res.Code != winner {
		t.Errorf("got code %q, want the winner's %q", res.Code, winner)
	}
}

func TestVerifyCodeHappyPath(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)
	issue, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)

	res, err := env.svc.VerifyCode(context.Background(), "  "+issue.Code+" ", env.vendor)
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if !res.Success {
		t.Fatalf("got reason %q, want success", res.Reason)
	}
	if res.Redemption.Status != models.RedemptionVerified || res.Redemption.VerifiedAt == nil {
		t.Error("redemption not marked verified")
	}
}

func TestVerifyCodeNotFound(t *testing.T) {
	env := newTestEnv(t)
	res, _ := env.svc.VerifyCode(context.Background(), "RL-ZZZZZZ", env.vendor)
	if res.Success || res.Reason != deals.ReasonNotFound {
		t.Errorf("got success=%v reason=%q, want not_found", res.Success, res.Reason)
	}
}

func TestVerifyCodeWrongVendor(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)
	issue, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)

	res, _ := env.svc.VerifyCode(context.Background(), issue.Code, uuid.New())
	if res.Success || res.Reason != ReasonWrongVendor {
		t.Errorf("got success=%v reason=%q, want wrong_vendor", res.Success, res.Reason)
	}

	// The right vendor can still verify afterwards.
	res, _ = env.svc.VerifyCode(context.Background(), issue.Code, env.vendor)
	if !res.Success {
		t.Errorf("owning vendor blocked: %q", res.Reason)
	}
}

func TestVerifyCodeAtMostOnce(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)
	issue, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)

	first, _ := env.svc.VerifyCode(context.Background(), issue.Code, env.vendor)
	second, _ := env.svc.VerifyCode(context.Background(), issue.Code, env.vendor)
	if !first.Success {
		t.Fatalf("first verify failed: %q", first.Reason)
	}
	if second.Success || second.Reason != ReasonAlreadyUsed {
		t.Errorf("second verify: success=%v reason=%q, want already_used", second.Success, second.Reason)
	}
}

func TestVerifyCodeLazyExpiry(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)
	issue, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)

	env.advance(11 * time.Minute)
	res, err := env.svc.VerifyCode(context.Background(), issue.Code, env.vendor)
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if res.Success || res.Reason != ReasonCodeExpired {
		t.Fatalf("got success=%v reason=%q, want code_expired", res.Success, res.Reason)
	}
	if stored := env.store.rows[issue.Redemption.ID]; stored.Status != models.RedemptionExpired {
		t.Errorf("row status = %q, want expired persisted on the read path", stored.Status)
	}
}

func TestVerifyCodeRacedUpdate(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)
	issue, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)

	// The read sees issued, but by the time the conditional update runs a
	// concurrent verification has already flipped the row.
	stale := *env.store.rows[issue.Redemption.ID]
	env.store.rows[issue.Redemption.ID].Status = models.RedemptionVerified
	env.store.staleRead = &stale

	res, _ := env.svc.VerifyCode(context.Background(), issue.Code, env.vendor)
	if res.Success || res.Reason != ReasonAlreadyUsed {
		t.Errorf("got success=%v reason=%q, want already_used from zero-row update", res.Success, res.Reason)
	}
}

func TestVoidBlocksVerification(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)
	issue, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)

	voided, err := env.svc.VoidRedemption(context.Background(), issue.Redemption.ID, "staff error")
	if err != nil || voided == nil {
		t.Fatalf("VoidRedemption: %v, %v", voided, err)
	}
	if voided.Status != models.RedemptionVoided || voided.VoidReason == nil {
		t.Error("void did not record status and reason")
	}

	res, _ := env.svc.VerifyCode(context.Background(), issue.Code, env.vendor)
	if res.Success || res.Reason != ReasonVoided {
		t.Errorf("got success=%v reason=%q, want voided", res.Success, res.Reason)
	}
}

func TestVoidTerminalRedemption(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)
	issue, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	env.store.rows[issue.Redemption.ID].Status = models.RedemptionExpired

	voided, err := env.svc.VoidRedemption(context.Background(), issue.Redemption.ID, "late")
	if err != nil {
		t.Fatalf("VoidRedemption: %v", err)
	}
	if voided != nil {
		t.Error("voiding an expired redemption should be a no-op")
	}
}

func TestRedeemDealOnce(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(func(d *models.Deal) { d.RedemptionFrequency = models.FrequencyOnce })

	first, err := env.svc.RedeemDeal(context.Background(), deal.ID, env.user)
	if err != nil {
		t.Fatalf("RedeemDeal: %v", err)
	}
	if !first.Success {
		t.Fatalf("first redeem failed: %q", first.Reason)
	}
	if first.Redemption.Status != models.RedemptionRedeemed {
		t.Errorf("status = %q, want redeemed", first.Redemption.Status)
	}

	second, _ := env.svc.RedeemDeal(context.Background(), deal.ID, env.user)
	if second.Success || second.Reason != ReasonFrequency {
		t.Errorf("second redeem: success=%v reason=%q, want frequency", second.Success, second.Reason)
	}
}

func TestRedeemDealWeekly(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(func(d *models.Deal) { d.RedemptionFrequency = models.FrequencyWeekly })

	if res, _ := env.svc.RedeemDeal(context.Background(), deal.ID, env.user); !res.Success {
		t.Fatalf("first redeem failed: %q", res.Reason)
	}

	env.advance(3 * 24 * time.Hour)
	res, _ := env.svc.RedeemDeal(context.Background(), deal.ID, env.user)
	if res.Success || res.Reason != ReasonFrequency {
		t.Fatalf("day 3: success=%v reason=%q, want frequency", res.Success, res.Reason)
	}
	if res.Message != "You can redeem this deal again in 4 days." {
		t.Errorf("message = %q", res.Message)
	}

	env.advance(5 * 24 * time.Hour)
	if res, _ := env.svc.RedeemDeal(context.Background(), deal.ID, env.user); !res.Success {
		t.Errorf("day 8: got reason %q, want success", res.Reason)
	}
}

func TestRedeemDealCustomWindow(t *testing.T) {
	env := newTestEnv(t)
	days := 2
	deal := env.addDeal(func(d *models.Deal) {
		d.RedemptionFrequency = models.FrequencyCustom
		d.CustomFrequencyDays = &days
	})

	if res, _ := env.svc.RedeemDeal(context.Background(), deal.ID, env.user); !res.Success {
		t.Fatalf("first redeem failed: %q", res.Reason)
	}
	env.advance(24 * time.Hour)
	if res, _ := env.svc.RedeemDeal(context.Background(), deal.ID, env.user); res.Success {
		t.Error("day 1 redeem should be inside the window")
	}
	env.advance(25 * time.Hour)
	if res, _ := env.svc.RedeemDeal(context.Background(), deal.ID, env.user); !res.Success {
		t.Errorf("day 2+: got reason %q, want success", res.Reason)
	}
}

func TestRedeemDealUnlimited(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)

	for i := 0; i < 3; i++ {
		res, err := env.svc.RedeemDeal(context.Background(), deal.ID, env.user)
		if err != nil {
			t.Fatalf("RedeemDeal: %v", err)
		}
		if !res.Success {
			t.Fatalf("redeem %d failed: %q", i, res.Reason)
		}
	}
}

func TestRedeemDealExpiredWindow(t *testing.T) {
	env := newTestEnv(t)
	ends := env.now.Add(-time.Hour)
	deal := env.addDeal(func(d *models.Deal) { d.EndsAt = &ends })

	res, _ := env.svc.RedeemDeal(context.Background(), deal.ID, env.user)
	if res.Success || res.Reason != deals.ReasonDealExpired {
		t.Errorf("got success=%v reason=%q, want deal_expired", res.Success, res.Reason)
	}
}

func TestActiveCode(t *testing.T) {
	env := newTestEnv(t)
	deal := env.addDeal(nil)

	if red, _ := env.svc.ActiveCode(context.Background(), env.user, deal.ID); red != nil {
		t.Fatal("expected no active code before issuance")
	}
	issue, _ := env.svc.IssueCode(context.Background(), deal.ID, uuid.Nil, env.user)
	red, err := env.svc.ActiveCode(context.Background(), env.user, deal.ID)
	if err != nil || red == nil {
		t.Fatalf("ActiveCode: %v, %v", red, err)
	}
	if *red.Code != issue.Code {
		t.Errorf("active code %q, want %q", *red.Code, issue.Code)
	}
	env.advance(11 * time.Minute)
	if red, _ := env.svc.ActiveCode(context.Background(), env.user, deal.ID); red != nil {
		t.Error("expired code still reported active")
	}
}
