package repository

import (
	"context"

	"github.com/spec-kit/ticket-ledger/internal/domain"
)

// CategoryRepository reads the classification catalog.
type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	ListByKind(ctx context.Context, kind domain.CategoryKind) ([]domain.Category, error)
}

type categoryRepository struct {
	db DBTX
}

// NewCategoryRepository builds repository.
func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	const query = `
        SELECT id, kind, name, active, created_at
        FROM categories WHERE id=$1`
	var category domain.Category
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.Kind,
		&category.Name,
		&category.Active,
		&category.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) ListByKind(ctx context.Context, kind domain.CategoryKind) ([]domain.Category, error) {
	const query = `
        SELECT id, kind, name, active, created_at
        FROM categories WHERE kind=$1 AND active ORDER BY name ASC`
	rows, err := r.db.Query(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(
			&category.ID,
			&category.Kind,
			&category.Name,
			&category.Active,
			&category.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, category)
	}
	return result, rows.Err()
}
