package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ledger/internal/domain"
	"github.com/spec-kit/ticket-ledger/internal/events"
	"github.com/spec-kit/ticket-ledger/internal/repository"
	apperrors "github.com/spec-kit/ticket-ledger/pkg/util"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) RunInTx(_ context.Context, fn func(pgx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type fakeTicketRepo struct {
	byID      map[string]domain.Ticket
	createErr error
	updateErr error

	lastFilter repository.TicketFilter
	listed     []domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{byID: make(map[string]domain.Ticket)}
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	if f.createErr != nil {
		return f.createErr
	}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	f.byID[ticket.ID] = *ticket
	return nil
}

func (f *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byID[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.byID[ticket.ID] = *ticket
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (f *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.lastFilter = filter
	return f.listed, nil
}

func (f *fakeTicketRepo) WithTx(pgx.Tx) repository.TicketRepository { return f }

type fakeCategoryRepo struct {
	byID map[string]domain.Category
}

func (f *fakeCategoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	category, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &category, nil
}

func (f *fakeCategoryRepo) ListByKind(_ context.Context, kind domain.CategoryKind) ([]domain.Category, error) {
	var result []domain.Category
	for _, category := range f.byID {
		if category.Kind == kind && category.Active {
			result = append(result, category)
		}
	}
	return result, nil
}

type fakeDispatcher struct {
	published []events.Event
}

func (f *fakeDispatcher) Publish(_ context.Context, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}

func (f *fakeDispatcher) Subscribe(events.EventType, events.EventHandler) {}

type fakeInvalidator struct {
	invalidated []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, ticketID string) {
	f.invalidated = append(f.invalidated, ticketID)
}

type ticketFixture struct {
	svc         *TicketService
	tickets     *fakeTicketRepo
	transitions *fakeTransitionRepo
	categories  *fakeCategoryRepo
	dispatcher  *fakeDispatcher
	invalidator *fakeInvalidator
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ledger, _ := newTestLedger(t, now)

	f := &ticketFixture{
		tickets:     newFakeTicketRepo(),
		transitions: &fakeTransitionRepo{},
		categories:  &fakeCategoryRepo{byID: make(map[string]domain.Category)},
		dispatcher:  &fakeDispatcher{},
		invalidator: &fakeInvalidator{},
	}
	f.svc = NewTicketService(TicketDependencies{
		Tx:             fakeTxRunner{},
		TicketRepo:     f.tickets,
		TransitionRepo: f.transitions,
		CategoryRepo:   f.categories,
		Ledger:         ledger,
		Timelines:      f.invalidator,
		Dispatcher:     f.dispatcher,
		Logger:         zap.NewNop(),
	})
	return f
}

func assertDomainErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	if domainErr.Code != code {
		t.Fatalf("error code = %q, want %q", domainErr.Code, code)
	}
}

func TestCreateTicketRequiresSubject(t *testing.T) {
	f := newTicketFixture(t)

	_, err := f.svc.CreateTicket(context.Background(), "agent-1", TicketCreateInput{Subject: "   "})
	assertDomainErrorCode(t, err, "VALIDATION_FAILED")
	if len(f.transitions.appended) != 0 {
		t.Fatalf("no transition should be appended on validation failure")
	}
}

func TestCreateTicketWritesCreationRecord(t *testing.T) {
	f := newTicketFixture(t)

	ticket, err := f.svc.CreateTicket(context.Background(), "agent-1", TicketCreateInput{
		Subject: "Printer jam",
		Status:  "urgent",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("unknown status must coerce to open, got %q", ticket.Status)
	}
	if len(f.transitions.appended) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(f.transitions.appended))
	}
	record := f.transitions.appended[0]
	if record.Kind != domain.TransitionKindStatus || record.Status.Previous != nil {
		t.Fatalf("creation record = %+v", record)
	}
	if record.Status.New != domain.TicketStatusOpen {
		t.Fatalf("creation record status = %q", record.Status.New)
	}
	if record.ChangedBy != "agent-1" {
		t.Fatalf("changed_by = %q", record.ChangedBy)
	}
	if len(f.invalidator.invalidated) != 1 || f.invalidator.invalidated[0] != ticket.ID {
		t.Fatalf("timeline cache not invalidated: %v", f.invalidator.invalidated)
	}
	if len(f.dispatcher.published) != 1 || f.dispatcher.published[0].Type != events.EventTicketCreated {
		t.Fatalf("expected created event, got %v", f.dispatcher.published)
	}
}

func TestCreateTicketResolvesCatalog(t *testing.T) {
	f := newTicketFixture(t)
	f.categories.byID["cat-1"] = domain.Category{
		ID: "cat-1", Kind: domain.CategoryKindCategory, Name: "Billing", Active: true,
	}
	catID := "cat-1"

	ticket, err := f.svc.CreateTicket(context.Background(), "agent-1", TicketCreateInput{
		Subject:    "Double charge",
		CategoryID: &catID,
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.CategoryID == nil || *ticket.CategoryID != "cat-1" || ticket.CategoryName != "Billing" {
		t.Fatalf("category not resolved: %+v", ticket)
	}
}

func TestCreateTicketCatalogErrors(t *testing.T) {
	tests := []struct {
		name     string
		category *domain.Category
		wantCode string
	}{
		{name: "unknown id", category: nil, wantCode: "NOT_FOUND"},
		{
			name:     "kind mismatch",
			category: &domain.Category{ID: "cat-1", Kind: domain.CategoryKindGroup, Name: "Tier 2", Active: true},
			wantCode: "VALIDATION_FAILED",
		},
		{
			name:     "inactive entry",
			category: &domain.Category{ID: "cat-1", Kind: domain.CategoryKindCategory, Name: "Billing", Active: false},
			wantCode: "CONFLICT",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTicketFixture(t)
			if tt.category != nil {
				f.categories.byID[tt.category.ID] = *tt.category
			}
			catID := "cat-1"
			_, err := f.svc.CreateTicket(context.Background(), "agent-1", TicketCreateInput{
				Subject:    "Double charge",
				CategoryID: &catID,
			})
			assertDomainErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestCreateTicketSurvivesLedgerFailure(t *testing.T) {
	f := newTicketFixture(t)
	f.transitions.appendErr = errors.New("insert failed")

	ticket, err := f.svc.CreateTicket(context.Background(), "agent-1", TicketCreateInput{Subject: "Printer jam"})
	if err != nil {
		t.Fatalf("ledger failure must not fail the parent operation: %v", err)
	}
	if _, err := f.tickets.GetByID(context.Background(), ticket.ID); err != nil {
		t.Fatalf("ticket must still be created: %v", err)
	}
}

func seedTicket(f *ticketFixture, ticket domain.Ticket) {
	f.tickets.byID[ticket.ID] = ticket
}

func TestChangeStatusKeepsRowAndLedgerAligned(t *testing.T) {
	f := newTicketFixture(t)
	seedTicket(f, domain.Ticket{ID: "tk-1", Subject: "Printer jam", Status: domain.TicketStatusOpen})

	ticket, err := f.svc.ChangeStatus(context.Background(), "agent-1", "tk-1", "in_progress")
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if ticket.Status != domain.TicketStatusInProgress {
		t.Fatalf("ticket status = %q", ticket.Status)
	}

	if len(f.transitions.appended) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(f.transitions.appended))
	}
	record := f.transitions.appended[0]
	if record.Status.New != ticket.Status {
		t.Fatalf("ticket status %q must mirror the newest record %q", ticket.Status, record.Status.New)
	}
	if record.Status.Previous == nil || *record.Status.Previous != domain.TicketStatusOpen {
		t.Fatalf("previous status = %v", record.Status.Previous)
	}

	stored, _ := f.tickets.GetByID(context.Background(), "tk-1")
	if stored.Status != domain.TicketStatusInProgress {
		t.Fatalf("row not updated: %q", stored.Status)
	}
	if len(f.dispatcher.published) != 1 || f.dispatcher.published[0].Type != events.EventTicketStatusChanged {
		t.Fatalf("expected status changed event, got %v", f.dispatcher.published)
	}
}

func TestChangeStatusRejectsNoop(t *testing.T) {
	f := newTicketFixture(t)
	seedTicket(f, domain.Ticket{ID: "tk-1", Status: domain.TicketStatusOpen})

	_, err := f.svc.ChangeStatus(context.Background(), "agent-1", "tk-1", "open")
	assertDomainErrorCode(t, err, "CONFLICT")
	if len(f.transitions.appended) != 0 {
		t.Fatalf("no-op must not append a transition")
	}
}

func TestChangeStatusRejectsDeletedTicket(t *testing.T) {
	f := newTicketFixture(t)
	seedTicket(f, domain.Ticket{ID: "tk-1", Status: domain.TicketStatusDeleted})

	_, err := f.svc.ChangeStatus(context.Background(), "agent-1", "tk-1", "open")
	assertDomainErrorCode(t, err, "CONFLICT")
}

func TestChangeStatusUnknownTicket(t *testing.T) {
	f := newTicketFixture(t)

	_, err := f.svc.ChangeStatus(context.Background(), "agent-1", "missing", "open")
	assertDomainErrorCode(t, err, "NOT_FOUND")
}

func TestSoftDeleteMarksTerminal(t *testing.T) {
	f := newTicketFixture(t)
	seedTicket(f, domain.Ticket{ID: "tk-1", Status: domain.TicketStatusClosed})

	ticket, err := f.svc.SoftDelete(context.Background(), "agent-1", "tk-1")
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if ticket.Status != domain.TicketStatusDeleted || ticket.DeletedAt == nil {
		t.Fatalf("soft delete result = %+v", ticket)
	}

	_, err = f.svc.ChangeStatus(context.Background(), "agent-1", "tk-1", "open")
	assertDomainErrorCode(t, err, "CONFLICT")
}

func TestReassignAppendsAssignmentRecord(t *testing.T) {
	f := newTicketFixture(t)
	seedTicket(f, domain.Ticket{ID: "tk-1", Status: domain.TicketStatusOpen, Assignee: ""})

	ticket, err := f.svc.Reassign(context.Background(), "agent-1", "tk-1", "Deniz")
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if ticket.Assignee != "Deniz" {
		t.Fatalf("assignee = %q", ticket.Assignee)
	}
	if len(f.transitions.appended) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(f.transitions.appended))
	}
	record := f.transitions.appended[0]
	if record.Kind != domain.TransitionKindAssignment {
		t.Fatalf("kind = %q", record.Kind)
	}
	if record.Assignment.Previous != "" || record.Assignment.New != "Deniz" {
		t.Fatalf("assignment payload = %+v", record.Assignment)
	}
	if len(f.dispatcher.published) != 1 || f.dispatcher.published[0].Type != events.EventTicketAssigned {
		t.Fatalf("expected assigned event, got %v", f.dispatcher.published)
	}
}

func TestReassignRejectsNoop(t *testing.T) {
	f := newTicketFixture(t)
	seedTicket(f, domain.Ticket{ID: "tk-1", Status: domain.TicketStatusOpen, Assignee: "Deniz"})

	_, err := f.svc.Reassign(context.Background(), "agent-1", "tk-1", "  Deniz  ")
	assertDomainErrorCode(t, err, "CONFLICT")
}

func TestReclassifyAppendsCategoryRecord(t *testing.T) {
	f := newTicketFixture(t)
	oldID := "cat-old"
	seedTicket(f, domain.Ticket{
		ID:           "tk-1",
		Status:       domain.TicketStatusOpen,
		CategoryID:   &oldID,
		CategoryName: "Billing",
	})
	f.categories.byID["cat-new"] = domain.Category{
		ID: "cat-new", Kind: domain.CategoryKindCategory, Name: "Hardware", Active: true,
	}
	newID := "cat-new"

	ticket, err := f.svc.Reclassify(context.Background(), "agent-1", "tk-1", ReclassifyInput{CategoryID: &newID})
	if err != nil {
		t.Fatalf("Reclassify: %v", err)
	}
	if ticket.CategoryID == nil || *ticket.CategoryID != "cat-new" || ticket.CategoryName != "Hardware" {
		t.Fatalf("ticket classification = %+v", ticket)
	}

	if len(f.transitions.appended) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(f.transitions.appended))
	}
	record := f.transitions.appended[0]
	if record.Kind != domain.TransitionKindCategory {
		t.Fatalf("kind = %q", record.Kind)
	}
	axis := record.Category.Category
	if axis.PreviousID == nil || *axis.PreviousID != "cat-old" || axis.PreviousName != "Billing" {
		t.Fatalf("previous axis = %+v", axis)
	}
	if axis.NewID == nil || *axis.NewID != "cat-new" || axis.NewName != "Hardware" {
		t.Fatalf("new axis = %+v", axis)
	}
	if record.Category.Subcategory.Changed() || record.Category.Group.Changed() {
		t.Fatalf("untouched axes must not report changed")
	}
}

func TestReclassifyRejectsNoop(t *testing.T) {
	f := newTicketFixture(t)
	oldID := "cat-old"
	seedTicket(f, domain.Ticket{ID: "tk-1", Status: domain.TicketStatusOpen, CategoryID: &oldID, CategoryName: "Billing"})
	f.categories.byID["cat-old"] = domain.Category{
		ID: "cat-old", Kind: domain.CategoryKindCategory, Name: "Billing", Active: true,
	}

	_, err := f.svc.Reclassify(context.Background(), "agent-1", "tk-1", ReclassifyInput{CategoryID: &oldID})
	assertDomainErrorCode(t, err, "CONFLICT")
}

func TestListTicketsPassesFilter(t *testing.T) {
	f := newTicketFixture(t)
	f.tickets.listed = []domain.Ticket{{ID: "tk-1"}}
	assignee := "Deniz"

	got, err := f.svc.ListTickets(context.Background(), TicketListInput{
		Statuses: []domain.TicketStatus{domain.TicketStatusOpen},
		Assignee: &assignee,
		Limit:    5,
	})
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(got) != 1 || got[0].ID != "tk-1" {
		t.Fatalf("tickets = %v", got)
	}
	filter := f.tickets.lastFilter
	if len(filter.Statuses) != 1 || filter.Statuses[0] != domain.TicketStatusOpen {
		t.Fatalf("statuses filter = %v", filter.Statuses)
	}
	if filter.Assignee == nil || *filter.Assignee != "Deniz" || filter.Limit != 5 {
		t.Fatalf("filter = %+v", filter)
	}
}

func TestListTransitionsRequiresTicket(t *testing.T) {
	f := newTicketFixture(t)

	_, err := f.svc.ListTransitions(context.Background(), "missing")
	assertDomainErrorCode(t, err, "NOT_FOUND")

	seedTicket(f, domain.Ticket{ID: "tk-1", Status: domain.TicketStatusOpen})
	f.transitions.appended = []domain.Transition{{ID: "t1", TicketID: "tk-1"}}
	got, err := f.svc.ListTransitions(context.Background(), "tk-1")
	if err != nil {
		t.Fatalf("ListTransitions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("transitions = %v", got)
	}
}
