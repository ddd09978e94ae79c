package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ledger/internal/config"
	"github.com/spec-kit/ticket-ledger/internal/domain"
	"github.com/spec-kit/ticket-ledger/internal/observability"
	"github.com/spec-kit/ticket-ledger/internal/repository"
)

// RecordOutcome reports what the recorder did. The recorder never fails the
// enclosing ticket operation; a suppressed error travels here so the caller
// can log it and tests can assert on it.
type RecordOutcome struct {
	Transition *domain.Transition
	Err        error
}

// Suppressed reports whether an internal error was swallowed.
func (o RecordOutcome) Suppressed() bool {
	return o.Err != nil
}

// LedgerService is the Transition Recorder. It appends immutable records to
// the ticket transition ledger, computing time-in-status from the most recent
// record that entered the departing status.
type LedgerService struct {
	cfg     config.LedgerConfig
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewLedgerService constructs the recorder.
func NewLedgerService(cfg config.LedgerConfig, logger *zap.Logger, metrics *observability.Metrics) *LedgerService {
	return &LedgerService{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// StatusChangeInput describes a lifecycle transition to record. Previous is
// nil only for the record written at ticket creation.
type StatusChangeInput struct {
	TicketID  string
	Previous  *domain.TicketStatus
	New       domain.TicketStatus
	ChangedBy string
}

// AssignmentChangeInput describes a reassignment to record.
type AssignmentChangeInput struct {
	TicketID  string
	Previous  string
	New       string
	ChangedBy string
}

// CategoryChangeInput describes a reclassification to record.
type CategoryChangeInput struct {
	TicketID  string
	Change    domain.CategoryChange
	ChangedBy string
}

// RecordStatus appends one status transition. When Previous is set, the dwell
// time is the whole-second difference between now and the newest prior record
// that moved the ticket into Previous; a missing prior record leaves it unset
// and a failed lookup is logged and swallowed. The repository argument lets
// the caller run the append inside the same transaction as the ticket write.
func (s *LedgerService) RecordStatus(ctx context.Context, transitions repository.TransitionRepository, in StatusChangeInput) RecordOutcome {
	transition := &domain.Transition{
		ID:        uuid.NewString(),
		TicketID:  in.TicketID,
		Kind:      domain.TransitionKindStatus,
		ChangedBy: s.actor(in.ChangedBy),
		ChangedAt: s.now().UTC(),
		Status: &domain.StatusChange{
			Previous: in.Previous,
			New:      in.New,
		},
	}

	if in.Previous != nil {
		prior, err := transitions.LatestEntered(ctx, in.TicketID, *in.Previous)
		switch {
		case err == nil && prior != nil:
			seconds := int64(transition.ChangedAt.Sub(prior.ChangedAt.UTC()) / time.Second)
			if seconds >= 0 {
				transition.Status.TimeInStatus = &seconds
			}
		case err != nil && !errors.Is(err, pgx.ErrNoRows):
			s.logger.Warn("time-in-status lookup failed",
				zap.String("ticket_id", in.TicketID),
				zap.String("previous_status", string(*in.Previous)),
				zap.Error(err))
		}
	}

	return s.append(ctx, transitions, transition)
}

// RecordAssignment appends one assignment transition. Assignee display names
// are stored as given; an empty value means unassigned.
func (s *LedgerService) RecordAssignment(ctx context.Context, transitions repository.TransitionRepository, in AssignmentChangeInput) RecordOutcome {
	transition := &domain.Transition{
		ID:        uuid.NewString(),
		TicketID:  in.TicketID,
		Kind:      domain.TransitionKindAssignment,
		ChangedBy: s.actor(in.ChangedBy),
		ChangedAt: s.now().UTC(),
		Assignment: &domain.AssignmentChange{
			Previous: in.Previous,
			New:      in.New,
		},
	}
	return s.append(ctx, transitions, transition)
}

// RecordCategory appends one category transition carrying all three axes.
func (s *LedgerService) RecordCategory(ctx context.Context, transitions repository.TransitionRepository, in CategoryChangeInput) RecordOutcome {
	change := in.Change
	transition := &domain.Transition{
		ID:        uuid.NewString(),
		TicketID:  in.TicketID,
		Kind:      domain.TransitionKindCategory,
		ChangedBy: s.actor(in.ChangedBy),
		ChangedAt: s.now().UTC(),
		Category:  &change,
	}
	return s.append(ctx, transitions, transition)
}

func (s *LedgerService) append(ctx context.Context, transitions repository.TransitionRepository, transition *domain.Transition) RecordOutcome {
	if err := transitions.Append(ctx, transition); err != nil {
		s.logger.Error("transition append failed",
			zap.String("ticket_id", transition.TicketID),
			zap.String("kind", string(transition.Kind)),
			zap.Error(err))
		return RecordOutcome{Err: err}
	}
	s.metrics.RecordTransition(string(transition.Kind))
	return RecordOutcome{Transition: transition}
}

func (s *LedgerService) actor(changedBy string) string {
	if changedBy == "" {
		return s.cfg.SystemActorID
	}
	return changedBy
}
