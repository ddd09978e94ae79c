package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-ledger/internal/domain"
)

// TransitionRepository stores the append-only transition ledger. There is
// deliberately no update or delete: rows are immutable once written.
type TransitionRepository interface {
	Append(ctx context.Context, transition *domain.Transition) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Transition, error)
	LatestEntered(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Transition, error)
	WithTx(tx pgx.Tx) TransitionRepository
}

type transitionRepository struct {
	db DBTX
}

// NewTransitionRepository builds the repository over a pool or transaction.
func NewTransitionRepository(db DBTX) TransitionRepository {
	return &transitionRepository{db: db}
}

func (r *transitionRepository) WithTx(tx pgx.Tx) TransitionRepository {
	return &transitionRepository{db: tx}
}

const transitionColumns = `
        id, ticket_id, kind, changed_by, changed_at,
        previous_status, new_status, time_in_status,
        previous_assignee, new_assignee,
        previous_category_id, new_category_id, previous_category_name, new_category_name,
        previous_subcategory_id, new_subcategory_id, previous_subcategory_name, new_subcategory_name,
        previous_group_id, new_group_id, previous_group_name, new_group_name`

func (r *transitionRepository) Append(ctx context.Context, transition *domain.Transition) error {
	const query = `
        INSERT INTO ticket_transitions (
            id, ticket_id, kind, changed_by, changed_at,
            previous_status, new_status, time_in_status,
            previous_assignee, new_assignee,
            previous_category_id, new_category_id, previous_category_name, new_category_name,
            previous_subcategory_id, new_subcategory_id, previous_subcategory_name, new_subcategory_name,
            previous_group_id, new_group_id, previous_group_name, new_group_name)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`

	var (
		previousStatus *string
		newStatus      *string
		timeInStatus   *int64

		previousAssignee *string
		newAssignee      *string

		prevCatID, newCatID, prevCatName, newCatName *string
		prevSubID, newSubID, prevSubName, newSubName *string
		prevGrpID, newGrpID, prevGrpName, newGrpName *string
	)

	if sc := transition.Status; sc != nil {
		if sc.Previous != nil {
			val := string(*sc.Previous)
			previousStatus = &val
		}
		val := string(sc.New)
		newStatus = &val
		timeInStatus = sc.TimeInStatus
	}
	if ac := transition.Assignment; ac != nil {
		previousAssignee = &ac.Previous
		newAssignee = &ac.New
	}
	if cc := transition.Category; cc != nil {
		prevCatID, newCatID = cc.Category.PreviousID, cc.Category.NewID
		prevCatName, newCatName = &cc.Category.PreviousName, &cc.Category.NewName
		prevSubID, newSubID = cc.Subcategory.PreviousID, cc.Subcategory.NewID
		prevSubName, newSubName = &cc.Subcategory.PreviousName, &cc.Subcategory.NewName
		prevGrpID, newGrpID = cc.Group.PreviousID, cc.Group.NewID
		prevGrpName, newGrpName = &cc.Group.PreviousName, &cc.Group.NewName
	}

	_, err := r.db.Exec(ctx, query,
		transition.ID,
		transition.TicketID,
		transition.Kind,
		transition.ChangedBy,
		transition.ChangedAt,
		previousStatus,
		newStatus,
		timeInStatus,
		previousAssignee,
		newAssignee,
		prevCatID, newCatID, prevCatName, newCatName,
		prevSubID, newSubID, prevSubName, newSubName,
		prevGrpID, newGrpID, prevGrpName, newGrpName,
	)
	return err
}

func (r *transitionRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Transition, error) {
	query := `SELECT` + transitionColumns + `
        FROM ticket_transitions WHERE ticket_id=$1 ORDER BY changed_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Transition
	for rows.Next() {
		transition, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *transition)
	}
	return result, rows.Err()
}

// LatestEntered returns the most recent transition that moved the ticket into
// the given status, used to compute time-in-status on the next move out of it.
func (r *transitionRepository) LatestEntered(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Transition, error) {
	query := `SELECT` + transitionColumns + `
        FROM ticket_transitions
        WHERE ticket_id=$1 AND kind=$2 AND new_status=$3
        ORDER BY changed_at DESC, id DESC LIMIT 1`
	row := r.db.QueryRow(ctx, query, ticketID, domain.TransitionKindStatus, string(status))
	return scanTransition(row)
}

func scanTransition(row pgx.Row) (*domain.Transition, error) {
	var (
		transition domain.Transition

		previousStatus *string
		newStatus      *string
		timeInStatus   *int64

		previousAssignee *string
		newAssignee      *string

		prevCatID, newCatID, prevCatName, newCatName *string
		prevSubID, newSubID, prevSubName, newSubName *string
		prevGrpID, newGrpID, prevGrpName, newGrpName *string
	)

	if err := row.Scan(
		&transition.ID,
		&transition.TicketID,
		&transition.Kind,
		&transition.ChangedBy,
		&transition.ChangedAt,
		&previousStatus,
		&newStatus,
		&timeInStatus,
		&previousAssignee,
		&newAssignee,
		&prevCatID, &newCatID, &prevCatName, &newCatName,
		&prevSubID, &newSubID, &prevSubName, &newSubName,
		&prevGrpID, &newGrpID, &prevGrpName, &newGrpName,
	); err != nil {
		return nil, err
	}

	switch transition.Kind {
	case domain.TransitionKindStatus:
		change := &domain.StatusChange{TimeInStatus: timeInStatus}
		if previousStatus != nil {
			prev := domain.TicketStatus(*previousStatus)
			change.Previous = &prev
		}
		if newStatus != nil {
			change.New = domain.TicketStatus(*newStatus)
		}
		transition.Status = change
	case domain.TransitionKindAssignment:
		change := &domain.AssignmentChange{}
		if previousAssignee != nil {
			change.Previous = *previousAssignee
		}
		if newAssignee != nil {
			change.New = *newAssignee
		}
		transition.Assignment = change
	case domain.TransitionKindCategory:
		change := &domain.CategoryChange{
			Category:    domain.CategoryAxis{PreviousID: prevCatID, NewID: newCatID},
			Subcategory: domain.CategoryAxis{PreviousID: prevSubID, NewID: newSubID},
			Group:       domain.CategoryAxis{PreviousID: prevGrpID, NewID: newGrpID},
		}
		if prevCatName != nil {
			change.Category.PreviousName = *prevCatName
		}
		if newCatName != nil {
			change.Category.NewName = *newCatName
		}
		if prevSubName != nil {
			change.Subcategory.PreviousName = *prevSubName
		}
		if newSubName != nil {
			change.Subcategory.NewName = *newSubName
		}
		if prevGrpName != nil {
			change.Group.PreviousName = *prevGrpName
		}
		if newGrpName != nil {
			change.Group.NewName = *newGrpName
		}
		transition.Category = change
	}

	return &transition, nil
}
