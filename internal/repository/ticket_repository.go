package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-ledger/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Statuses    []domain.TicketStatus
	Assignee    *string
	CategoryID  *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	WithTx(tx pgx.Tx) TicketRepository
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) WithTx(tx pgx.Tx) TicketRepository {
	return &ticketRepository{db: tx}
}

const ticketColumns = `
        id, external_key, subject, description, requester_name, assignee,
        category_id, category_name, subcategory_id, subcategory_name,
        group_id, group_name, status, created_at, updated_at, deleted_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, external_key, subject, description, requester_name, assignee,
            category_id, category_name, subcategory_id, subcategory_name, group_id, group_name, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.ID,
		ticket.ExternalKey,
		ticket.Subject,
		ticket.Description,
		ticket.RequesterName,
		ticket.Assignee,
		ticket.CategoryID,
		ticket.CategoryName,
		ticket.SubcategoryID,
		ticket.SubcategoryName,
		ticket.GroupID,
		ticket.GroupName,
		ticket.Status,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET subject=$1, description=$2, assignee=$3,
            category_id=$4, category_name=$5, subcategory_id=$6, subcategory_name=$7,
            group_id=$8, group_name=$9, status=$10, deleted_at=$11, updated_at=NOW()
        WHERE id=$12`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Assignee,
		ticket.CategoryID,
		ticket.CategoryName,
		ticket.SubcategoryID,
		ticket.SubcategoryName,
		ticket.GroupID,
		ticket.GroupName,
		ticket.Status,
		ticket.DeletedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicketRow(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT` + ticketColumns + ` FROM tickets`
	clauses := []string{"deleted_at IS NULL"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Assignee != nil {
		args = append(args, *filter.Assignee)
		clauses = append(clauses, fmt.Sprintf("assignee=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicketRow(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Subject,
		&ticket.Description,
		&ticket.RequesterName,
		&ticket.Assignee,
		&ticket.CategoryID,
		&ticket.CategoryName,
		&ticket.SubcategoryID,
		&ticket.SubcategoryName,
		&ticket.GroupID,
		&ticket.GroupName,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
