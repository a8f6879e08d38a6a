package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rafiq-567/eagle3d-dashboard/internal/application/auth"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/dto"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/config"
)

// AuthHandler maneja login, logout y chequeo de identidad.
type AuthHandler struct {
	uc  *auth.UseCase
	cfg config.SessionConfig
}

// NewAuthHandler construye el handler de auth.
func NewAuthHandler(uc *auth.UseCase, cfg config.SessionConfig) *AuthHandler {
	return &AuthHandler{uc: uc, cfg: cfg}
}

// Login godoc
// @Summary      Iniciar sesión con idToken del proveedor de identidad
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "idToken"
// @Success      200   {object}  dto.LoginResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in dto.LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, cookie, err := h.uc.Login(c.UserContext(), in)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrInvalidToken) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "credenciales inválidas o token expirado"})
		}
		if errors.Is(err, domain.ErrBackendUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "BACKEND_DOWN", Message: "no se pudo contactar el backend", Retryable: true})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	if cookie != "" {
		c.Cookie(&fiber.Cookie{
			Name:     h.cfg.CookieName,
			Value:    cookie,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Path:     "/",
		})
	}
	return c.JSON(out)
}

// Logout godoc
// @Summary      Cerrar sesión
// @Tags         auth
// @Produce      json
// @Success      200  {object}  dto.MessageResponse
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	// La cookie local se borra aunque el backend falle: el usuario pidió salir.
	err := h.uc.Logout(c.UserContext())
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Path:     "/",
	})
	if err != nil && errors.Is(err, domain.ErrBackendUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "BACKEND_DOWN", Message: "logout remoto falló", Retryable: true})
	}
	return c.JSON(dto.MessageResponse{Message: "sesión cerrada"})
}

// Me godoc
// @Summary      Identidad de la sesión actual
// @Tags         auth
// @Produce      json
// @Success      200  {object}  dto.MeResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	cookie := c.Cookies(h.cfg.CookieName)
	if cookie == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHENTICATED", Message: "sin sesión"})
	}
	user, err := h.uc.Hydrate(c.UserContext(), cookie)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrInvalidToken) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHENTICATED", Message: "sesión inválida o expirada"})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "BACKEND_DOWN", Message: "no se pudo verificar la sesión", Retryable: true})
	}
	return c.JSON(dto.MeResponse{User: dto.UserResponse{UID: user.UID, Email: user.Email, Role: user.Role}})
}
