package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ledger/internal/api/dto"
	"github.com/spec-kit/ticket-ledger/internal/service"
	apperrors "github.com/spec-kit/ticket-ledger/pkg/util"
)

// AuthHandler serves agent login.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.AuthLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	result, err := h.service.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthLoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		AgentID:   result.Agent.ID,
		AgentName: result.Agent.Name,
	}})
}
