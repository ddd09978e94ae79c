package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ledger/internal/domain"
	"github.com/spec-kit/ticket-ledger/internal/events"
	"github.com/spec-kit/ticket-ledger/internal/repository"
	apperrors "github.com/spec-kit/ticket-ledger/pkg/util"
)

// TxRunner executes a function inside one database transaction. The ticket
// row mutation and the ledger append always share a transaction so the
// ticket's current status mirrors the newest status record.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// TimelineInvalidator drops cached timelines after a ledger append.
type TimelineInvalidator interface {
	Invalidate(ctx context.Context, ticketID string)
}

// TicketService coordinates ticket workflows around the transition ledger.
type TicketService struct {
	tx          TxRunner
	tickets     repository.TicketRepository
	transitions repository.TransitionRepository
	categories  repository.CategoryRepository
	ledger      *LedgerService
	timelines   TimelineInvalidator
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	Tx             TxRunner
	TicketRepo     repository.TicketRepository
	TransitionRepo repository.TransitionRepository
	CategoryRepo   repository.CategoryRepository
	Ledger         *LedgerService
	Timelines      TimelineInvalidator
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tx:          deps.Tx,
		tickets:     deps.TicketRepo,
		transitions: deps.TransitionRepo,
		categories:  deps.CategoryRepo,
		ledger:      deps.Ledger,
		timelines:   deps.Timelines,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject       string
	Description   string
	RequesterName string
	Status        string
	CategoryID    *string
	SubcategoryID *string
	GroupID       *string
}

// ReclassifyInput carries the target classification; a nil axis is left
// unchanged.
type ReclassifyInput struct {
	CategoryID    *string
	SubcategoryID *string
	GroupID       *string
}

// TicketListInput describes listing filters.
type TicketListInput struct {
	Statuses    []domain.TicketStatus
	Assignee    *string
	CategoryID  *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// CreateTicket inserts the ticket and its creation record, with a nil
// previous status, in one transaction.
func (s *TicketService) CreateTicket(ctx context.Context, actorID string, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewValidationError("subject required", nil)
	}

	ticket := &domain.Ticket{
		ID:            uuid.NewString(),
		ExternalKey:   generateTicketKey(),
		Subject:       subject,
		Description:   strings.TrimSpace(input.Description),
		RequesterName: strings.TrimSpace(input.RequesterName),
		Status:        domain.NormalizeStatus(input.Status),
	}

	if err := s.resolveAxis(ctx, input.CategoryID, domain.CategoryKindCategory, &ticket.CategoryID, &ticket.CategoryName); err != nil {
		return nil, err
	}
	if err := s.resolveAxis(ctx, input.SubcategoryID, domain.CategoryKindSubcategory, &ticket.SubcategoryID, &ticket.SubcategoryName); err != nil {
		return nil, err
	}
	if err := s.resolveAxis(ctx, input.GroupID, domain.CategoryKindGroup, &ticket.GroupID, &ticket.GroupName); err != nil {
		return nil, err
	}

	err := s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := s.tickets.WithTx(tx).Create(ctx, ticket); err != nil {
			return err
		}
		outcome := s.ledger.RecordStatus(ctx, s.transitions.WithTx(tx), StatusChangeInput{
			TicketID:  ticket.ID,
			Previous:  nil,
			New:       ticket.Status,
			ChangedBy: actorID,
		})
		s.logOutcome("create", ticket.ID, outcome)
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.invalidateTimeline(ctx, ticket.ID)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    s.eventActor(actorID),
		Payload: events.TicketCreatedPayload{
			Subject:       ticket.Subject,
			InitialStatus: ticket.Status,
			CategoryID:    ticket.CategoryID,
		},
	})
	return ticket, nil
}

// ChangeStatus moves the ticket to a new lifecycle status. Unknown status
// strings are coerced rather than rejected so a bad value never blocks the
// write. The row update and the ledger append share one transaction.
func (s *TicketService) ChangeStatus(ctx context.Context, actorID, ticketID, rawStatus string) (*domain.Ticket, error) {
	ticket, err := s.loadMutable(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	newStatus := domain.NormalizeStatus(rawStatus)
	if newStatus == ticket.Status {
		return nil, apperrors.NewConflict("status unchanged", map[string]any{"status": string(newStatus)})
	}

	oldStatus := ticket.Status
	ticket.Status = newStatus
	if newStatus == domain.TicketStatusDeleted {
		now := time.Now().UTC()
		ticket.DeletedAt = &now
	}

	var outcome RecordOutcome
	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := s.tickets.WithTx(tx).Update(ctx, ticket); err != nil {
			return err
		}
		outcome = s.ledger.RecordStatus(ctx, s.transitions.WithTx(tx), StatusChangeInput{
			TicketID:  ticket.ID,
			Previous:  &oldStatus,
			New:       newStatus,
			ChangedBy: actorID,
		})
		s.logOutcome("status_change", ticket.ID, outcome)
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	payload := events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: newStatus}
	if outcome.Transition != nil && outcome.Transition.Status != nil {
		payload.TimeInStatus = outcome.Transition.Status.TimeInStatus
	}
	s.invalidateTimeline(ctx, ticket.ID)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    s.eventActor(actorID),
		Payload:  payload,
	})
	return ticket, nil
}

// Reassign changes the assignee and appends an assignment transition.
func (s *TicketService) Reassign(ctx context.Context, actorID, ticketID, newAssignee string) (*domain.Ticket, error) {
	ticket, err := s.loadMutable(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	newAssignee = strings.TrimSpace(newAssignee)
	if newAssignee == ticket.Assignee {
		return nil, apperrors.NewConflict("assignee unchanged", map[string]any{"assignee": newAssignee})
	}

	oldAssignee := ticket.Assignee
	ticket.Assignee = newAssignee

	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := s.tickets.WithTx(tx).Update(ctx, ticket); err != nil {
			return err
		}
		outcome := s.ledger.RecordAssignment(ctx, s.transitions.WithTx(tx), AssignmentChangeInput{
			TicketID:  ticket.ID,
			Previous:  oldAssignee,
			New:       newAssignee,
			ChangedBy: actorID,
		})
		s.logOutcome("reassign", ticket.ID, outcome)
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.invalidateTimeline(ctx, ticket.ID)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    s.eventActor(actorID),
		Payload: events.TicketAssignedPayload{
			OldAssignee: oldAssignee,
			NewAssignee: newAssignee,
		},
	})
	return ticket, nil
}

// Reclassify moves the ticket across the category/subcategory/group axes and
// appends one category transition carrying the changed axes.
func (s *TicketService) Reclassify(ctx context.Context, actorID, ticketID string, input ReclassifyInput) (*domain.Ticket, error) {
	ticket, err := s.loadMutable(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	change := domain.CategoryChange{
		Category: domain.CategoryAxis{
			PreviousID: ticket.CategoryID, NewID: ticket.CategoryID,
			PreviousName: ticket.CategoryName, NewName: ticket.CategoryName,
		},
		Subcategory: domain.CategoryAxis{
			PreviousID: ticket.SubcategoryID, NewID: ticket.SubcategoryID,
			PreviousName: ticket.SubcategoryName, NewName: ticket.SubcategoryName,
		},
		Group: domain.CategoryAxis{
			PreviousID: ticket.GroupID, NewID: ticket.GroupID,
			PreviousName: ticket.GroupName, NewName: ticket.GroupName,
		},
	}

	if err := s.applyAxis(ctx, input.CategoryID, domain.CategoryKindCategory, &change.Category); err != nil {
		return nil, err
	}
	if err := s.applyAxis(ctx, input.SubcategoryID, domain.CategoryKindSubcategory, &change.Subcategory); err != nil {
		return nil, err
	}
	if err := s.applyAxis(ctx, input.GroupID, domain.CategoryKindGroup, &change.Group); err != nil {
		return nil, err
	}

	if !change.Category.Changed() && !change.Subcategory.Changed() && !change.Group.Changed() {
		return nil, apperrors.NewConflict("classification unchanged", nil)
	}

	ticket.CategoryID, ticket.CategoryName = change.Category.NewID, change.Category.NewName
	ticket.SubcategoryID, ticket.SubcategoryName = change.Subcategory.NewID, change.Subcategory.NewName
	ticket.GroupID, ticket.GroupName = change.Group.NewID, change.Group.NewName

	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := s.tickets.WithTx(tx).Update(ctx, ticket); err != nil {
			return err
		}
		outcome := s.ledger.RecordCategory(ctx, s.transitions.WithTx(tx), CategoryChangeInput{
			TicketID:  ticket.ID,
			Change:    change,
			ChangedBy: actorID,
		})
		s.logOutcome("reclassify", ticket.ID, outcome)
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.invalidateTimeline(ctx, ticket.ID)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReclassified,
		TicketID: ticket.ID,
		Actor:    s.eventActor(actorID),
		Payload:  events.TicketReclassifiedPayload{Change: change},
	})
	return ticket, nil
}

// SoftDelete moves the ticket to the terminal deleted status.
func (s *TicketService) SoftDelete(ctx context.Context, actorID, ticketID string) (*domain.Ticket, error) {
	return s.ChangeStatus(ctx, actorID, ticketID, string(domain.TicketStatusDeleted))
}

// GetTicket fetches a single ticket.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets returns paginated tickets.
func (s *TicketService) ListTickets(ctx context.Context, input TicketListInput) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses:    input.Statuses,
		Assignee:    input.Assignee,
		CategoryID:  input.CategoryID,
		SearchTerm:  input.SearchTerm,
		CreatedFrom: input.CreatedFrom,
		CreatedTo:   input.CreatedTo,
		Limit:       input.Limit,
		Offset:      input.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListTransitions returns the raw ledger for a ticket, ascending.
func (s *TicketService) ListTransitions(ctx context.Context, ticketID string) ([]domain.Transition, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, apperrors.MapError(err)
	}
	transitions, err := s.transitions.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return transitions, nil
}

func (s *TicketService) loadMutable(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if ticket.Status == domain.TicketStatusDeleted {
		return nil, apperrors.NewConflict("ticket deleted", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// resolveAxis validates an axis id against the catalog and copies id+name
// onto the ticket.
func (s *TicketService) resolveAxis(ctx context.Context, id *string, kind domain.CategoryKind, targetID **string, targetName *string) error {
	if id == nil {
		return nil
	}
	category, err := s.lookupCategory(ctx, *id, kind)
	if err != nil {
		return err
	}
	*targetID = &category.ID
	*targetName = category.Name
	return nil
}

// applyAxis resolves the new side of one axis of a pending category change.
func (s *TicketService) applyAxis(ctx context.Context, id *string, kind domain.CategoryKind, axis *domain.CategoryAxis) error {
	if id == nil {
		return nil
	}
	category, err := s.lookupCategory(ctx, *id, kind)
	if err != nil {
		return err
	}
	axis.NewID = &category.ID
	axis.NewName = category.Name
	return nil
}

func (s *TicketService) lookupCategory(ctx context.Context, id string, kind domain.CategoryKind) (*domain.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound(string(kind), map[string]any{"id": id})
	}
	if category.Kind != kind {
		return nil, apperrors.NewValidationError("catalog entry kind mismatch", map[string]any{
			"id":       id,
			"expected": string(kind),
			"actual":   string(category.Kind),
		})
	}
	if !category.Active {
		return nil, apperrors.NewConflict("catalog entry inactive", map[string]any{"id": id})
	}
	return category, nil
}

func (s *TicketService) logOutcome(operation, ticketID string, outcome RecordOutcome) {
	if !outcome.Suppressed() {
		return
	}
	s.logger.Warn("transition record suppressed",
		zap.String("operation", operation),
		zap.String("ticket_id", ticketID),
		zap.Error(outcome.Err))
}

func (s *TicketService) invalidateTimeline(ctx context.Context, ticketID string) {
	if s.timelines == nil {
		return
	}
	s.timelines.Invalidate(ctx, ticketID)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *TicketService) eventActor(actorID string) events.Actor {
	if actorID == "" {
		return events.Actor{Type: domain.ActorTypeSystem, ActorID: s.ledger.cfg.SystemActorID}
	}
	return events.Actor{Type: domain.ActorTypeAgent, ActorID: actorID}
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
