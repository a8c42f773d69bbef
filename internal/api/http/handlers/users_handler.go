package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/helpdesk-service/internal/api/dto"
	"github.com/opsdesk/helpdesk-service/internal/auth"
	"github.com/opsdesk/helpdesk-service/internal/domain"
	"github.com/opsdesk/helpdesk-service/internal/service"
	apperrors "github.com/opsdesk/helpdesk-service/pkg/util"
)

// UsersHandler exposes registration, login and directory endpoints.
type UsersHandler struct {
	auth      *service.AuthService
	directory *service.DirectoryService
	tickets   *service.TicketService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, directory *service.DirectoryService, tickets *service.TicketService) *UsersHandler {
	return &UsersHandler{auth: authService, directory: directory, tickets: tickets}
}

// Register handles POST /users/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" || req.Firstname == "" || req.Lastname == "" {
		return fiber.NewError(http.StatusBadRequest, "email, password, firstname, lastname required")
	}

	user, err := h.auth.Register(c.Context(), req.Email, req.Password, req.Firstname, req.Lastname)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Login handles POST /users/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password required")
	}

	user, token, exp, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Logout handles POST /users/logout. Revokes the presented token.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return apperrors.NewUnauthorized("invalid authorization header")
	}
	if err := h.auth.Logout(c.Context(), parts[1]); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// GetUser handles GET /users/:userId.
func (h *UsersHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.directory.GetByID(c.Context(), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// GetUserTickets handles GET /users/:userId/tickets. Only the account
// itself or an admin may read the list.
func (h *UsersHandler) GetUserTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	targetID := c.Params("userId")
	if principal.User.ID != targetID && principal.User.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("cannot read another user's tickets")
	}

	target, err := h.directory.GetByID(c.Context(), targetID)
	if err != nil {
		return err
	}

	tickets, err := h.tickets.ListForUser(c.Context(), target)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(tickets)})
}

// ListUsers handles GET /users (admin only), with optional ?role= filter.
func (h *UsersHandler) ListUsers(c *fiber.Ctx) error {
	var roleFilter *domain.Role
	if raw := c.Query("role"); raw != "" {
		role := domain.Role(raw)
		roleFilter = &role
	}

	users, err := h.directory.List(c.Context(), roleFilter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserListResponse(users)})
}

// UpdateRole handles PATCH /users/role (admin only).
func (h *UsersHandler) UpdateRole(c *fiber.Ctx) error {
	var req dto.UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.UserID == "" || req.NewRole == "" {
		return fiber.NewError(http.StatusBadRequest, "userId and newRole required")
	}

	principal, _ := auth.PrincipalFromContext(c)
	var actor *domain.User
	if principal != nil {
		actor = principal.User
	}

	user, err := h.directory.UpdateRole(c.Context(), actor, req.UserID, domain.Role(req.NewRole))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}
