package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ledger/internal/config"
	"github.com/spec-kit/ticket-ledger/internal/domain"
	"github.com/spec-kit/ticket-ledger/internal/observability"
	"github.com/spec-kit/ticket-ledger/internal/repository"
)

type fakeTransitionRepo struct {
	appended  []domain.Transition
	appendErr error

	latest      *domain.Transition
	latestErr   error
	latestCalls int
}

func (f *fakeTransitionRepo) Append(_ context.Context, transition *domain.Transition) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, *transition)
	return nil
}

func (f *fakeTransitionRepo) ListByTicket(context.Context, string) ([]domain.Transition, error) {
	return f.appended, nil
}

func (f *fakeTransitionRepo) LatestEntered(context.Context, string, domain.TicketStatus) (*domain.Transition, error) {
	f.latestCalls++
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

func (f *fakeTransitionRepo) WithTx(pgx.Tx) repository.TransitionRepository { return f }

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		SystemActorID:           "system",
		SkewCompensationSeconds: 10800,
		SkewWindowSeconds:       300,
		UnassignedLabel:         "Unassigned",
	}
}

func newTestLedger(t *testing.T, now time.Time) (*LedgerService, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics()
	svc := NewLedgerService(testLedgerConfig(), zap.NewNop(), metrics)
	svc.now = func() time.Time { return now }
	return svc, metrics
}

func TestRecordStatusFirstRecord(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, metrics := newTestLedger(t, now)
	repo := &fakeTransitionRepo{}

	outcome := svc.RecordStatus(context.Background(), repo, StatusChangeInput{
		TicketID:  "tk-1",
		New:       domain.TicketStatusOpen,
		ChangedBy: "agent-1",
	})

	if outcome.Suppressed() {
		t.Fatalf("unexpected suppressed error: %v", outcome.Err)
	}
	if repo.latestCalls != 0 {
		t.Fatalf("creation record must not look up a prior status, got %d lookups", repo.latestCalls)
	}
	if len(repo.appended) != 1 {
		t.Fatalf("expected 1 appended record, got %d", len(repo.appended))
	}
	got := repo.appended[0]
	if got.Kind != domain.TransitionKindStatus {
		t.Fatalf("kind = %q", got.Kind)
	}
	if got.Status == nil || got.Status.Previous != nil {
		t.Fatalf("creation record must carry nil previous status: %+v", got.Status)
	}
	if got.Status.TimeInStatus != nil {
		t.Fatalf("creation record must not carry time in status")
	}
	if got.ChangedBy != "agent-1" {
		t.Fatalf("changed_by = %q", got.ChangedBy)
	}
	if !got.ChangedAt.Equal(now) {
		t.Fatalf("changed_at = %v, want %v", got.ChangedAt, now)
	}
	if n := metrics.TransitionCount("status"); n != 1 {
		t.Fatalf("transition count = %d, want 1", n)
	}
}

func TestRecordStatusComputesDwellTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 10, 0, 0, time.UTC)
	svc, _ := newTestLedger(t, now)
	previous := domain.TicketStatusOpen
	repo := &fakeTransitionRepo{
		latest: &domain.Transition{
			ID:        "prior",
			TicketID:  "tk-1",
			Kind:      domain.TransitionKindStatus,
			ChangedAt: now.Add(-600 * time.Second),
			Status:    &domain.StatusChange{New: previous},
		},
	}

	outcome := svc.RecordStatus(context.Background(), repo, StatusChangeInput{
		TicketID: "tk-1",
		Previous: &previous,
		New:      domain.TicketStatusInProgress,
	})

	if outcome.Transition == nil || outcome.Transition.Status.TimeInStatus == nil {
		t.Fatalf("expected time in status, got %+v", outcome.Transition)
	}
	if got := *outcome.Transition.Status.TimeInStatus; got != 600 {
		t.Fatalf("time in status = %d, want 600", got)
	}
	if repo.latestCalls != 1 {
		t.Fatalf("expected 1 lookup, got %d", repo.latestCalls)
	}
}

func TestRecordStatusLookupMissLeavesDwellUnset(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestLedger(t, now)
	previous := domain.TicketStatusOpen
	repo := &fakeTransitionRepo{latestErr: pgx.ErrNoRows}

	outcome := svc.RecordStatus(context.Background(), repo, StatusChangeInput{
		TicketID: "tk-1",
		Previous: &previous,
		New:      domain.TicketStatusClosed,
	})

	if outcome.Suppressed() {
		t.Fatalf("lookup miss must not surface an error: %v", outcome.Err)
	}
	if outcome.Transition.Status.TimeInStatus != nil {
		t.Fatalf("time in status must stay unset on a lookup miss")
	}
	if len(repo.appended) != 1 {
		t.Fatalf("record must still be appended on a lookup miss")
	}
}

func TestRecordStatusLookupFailureIsSwallowed(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestLedger(t, now)
	previous := domain.TicketStatusOpen
	repo := &fakeTransitionRepo{latestErr: errors.New("connection reset")}

	outcome := svc.RecordStatus(context.Background(), repo, StatusChangeInput{
		TicketID: "tk-1",
		Previous: &previous,
		New:      domain.TicketStatusClosed,
	})

	if outcome.Suppressed() {
		t.Fatalf("lookup failure must not surface an error: %v", outcome.Err)
	}
	if outcome.Transition.Status.TimeInStatus != nil {
		t.Fatalf("time in status must stay unset on a lookup failure")
	}
	if len(repo.appended) != 1 {
		t.Fatalf("record must still be appended on a lookup failure")
	}
}

func TestRecordStatusNegativeDwellDiscarded(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestLedger(t, now)
	previous := domain.TicketStatusOpen
	repo := &fakeTransitionRepo{
		latest: &domain.Transition{
			ChangedAt: now.Add(90 * time.Second),
			Status:    &domain.StatusChange{New: previous},
		},
	}

	outcome := svc.RecordStatus(context.Background(), repo, StatusChangeInput{
		TicketID: "tk-1",
		Previous: &previous,
		New:      domain.TicketStatusClosed,
	})

	if outcome.Transition.Status.TimeInStatus != nil {
		t.Fatalf("negative dwell time must be discarded, got %d", *outcome.Transition.Status.TimeInStatus)
	}
}

func TestRecordStatusAppendFailureReported(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, metrics := newTestLedger(t, now)
	repo := &fakeTransitionRepo{appendErr: errors.New("insert failed")}

	outcome := svc.RecordStatus(context.Background(), repo, StatusChangeInput{
		TicketID: "tk-1",
		New:      domain.TicketStatusOpen,
	})

	if !outcome.Suppressed() {
		t.Fatalf("expected suppressed append error")
	}
	if outcome.Transition != nil {
		t.Fatalf("failed append must not report a transition")
	}
	if n := metrics.TransitionCount("status"); n != 0 {
		t.Fatalf("failed append must not count, got %d", n)
	}
}

func TestRecordStatusEmptyActorUsesSystemID(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestLedger(t, now)
	repo := &fakeTransitionRepo{}

	outcome := svc.RecordStatus(context.Background(), repo, StatusChangeInput{
		TicketID: "tk-1",
		New:      domain.TicketStatusOpen,
	})

	if outcome.Transition.ChangedBy != "system" {
		t.Fatalf("changed_by = %q, want system actor", outcome.Transition.ChangedBy)
	}
}

func TestRecordAssignment(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, metrics := newTestLedger(t, now)
	repo := &fakeTransitionRepo{}

	outcome := svc.RecordAssignment(context.Background(), repo, AssignmentChangeInput{
		TicketID:  "tk-1",
		Previous:  "",
		New:       "Deniz",
		ChangedBy: "agent-2",
	})

	if outcome.Suppressed() {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	got := outcome.Transition
	if got.Kind != domain.TransitionKindAssignment || got.Assignment == nil {
		t.Fatalf("expected assignment record, got %+v", got)
	}
	if got.Assignment.Previous != "" || got.Assignment.New != "Deniz" {
		t.Fatalf("assignment payload = %+v", got.Assignment)
	}
	if n := metrics.TransitionCount("assignment"); n != 1 {
		t.Fatalf("transition count = %d, want 1", n)
	}
}

func TestRecordCategory(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestLedger(t, now)
	repo := &fakeTransitionRepo{}
	newID := "cat-1"

	outcome := svc.RecordCategory(context.Background(), repo, CategoryChangeInput{
		TicketID: "tk-1",
		Change: domain.CategoryChange{
			Category: domain.CategoryAxis{NewID: &newID, NewName: "Billing"},
		},
		ChangedBy: "agent-2",
	})

	if outcome.Suppressed() {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	got := outcome.Transition
	if got.Kind != domain.TransitionKindCategory || got.Category == nil {
		t.Fatalf("expected category record, got %+v", got)
	}
	if !got.Category.Category.Changed() {
		t.Fatalf("category axis should report changed")
	}
}
