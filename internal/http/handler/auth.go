package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"patientdocs/internal/http/middleware"
	"patientdocs/internal/service"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new portal account.
func Register(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		user, err := svc.Register(c.UserContext(), service.RegisterInput{
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrEmailTaken):
				return writeError(c, fiber.StatusConflict, "EMAIL_TAKEN", "email already registered")
			case errors.Is(err, service.ErrInvalidEmail):
				return writeError(c, fiber.StatusBadRequest, "INVALID_EMAIL", "invalid email address")
			case errors.Is(err, service.ErrWeakPassword):
				return writeError(c, fiber.StatusBadRequest, "WEAK_PASSWORD", "password must be at least 8 characters")
			case errors.Is(err, service.ErrNameRequired):
				return writeError(c, fiber.StatusBadRequest, "NAME_REQUIRED", "first and last name are required")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.Status(fiber.StatusCreated).JSON(user)
	}
}

// Login verifies credentials and returns an access token.
func Login(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		res, err := svc.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				return writeError(c, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// Me returns the authenticated user's account.
func Me(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := svc.CurrentUser(c.UserContext(), middleware.UserIDFromCtx(c))
		if err != nil {
			if errors.Is(err, service.ErrUserNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "user not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(user)
	}
}
