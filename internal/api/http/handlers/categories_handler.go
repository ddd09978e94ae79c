package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ledger/internal/api/dto"
	"github.com/spec-kit/ticket-ledger/internal/domain"
	"github.com/spec-kit/ticket-ledger/internal/repository"
	apperrors "github.com/spec-kit/ticket-ledger/pkg/util"
)

// CategoriesHandler serves the classification catalog.
type CategoriesHandler struct {
	categories repository.CategoryRepository
}

// NewCategoriesHandler constructs handler.
func NewCategoriesHandler(categories repository.CategoryRepository) *CategoriesHandler {
	return &CategoriesHandler{categories: categories}
}

// ListCategories GET /categories?kind=category|subcategory|group.
func (h *CategoriesHandler) ListCategories(c *fiber.Ctx) error {
	kind := domain.CategoryKind(c.Query("kind", string(domain.CategoryKindCategory)))
	switch kind {
	case domain.CategoryKindCategory, domain.CategoryKindSubcategory, domain.CategoryKindGroup:
	default:
		return apperrors.NewValidationError("unknown catalog kind", map[string]any{"kind": string(kind)})
	}

	categories, err := h.categories.ListByKind(c.Context(), kind)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for _, category := range categories {
		items = append(items, dto.CategoryResponse{
			ID:   category.ID,
			Kind: category.Kind,
			Name: category.Name,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
