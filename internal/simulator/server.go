package simulator

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/rafiq-567/eagle3d-dashboard/internal/application/dto"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/repository"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/config"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/jwt"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/logger"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/validator"
)

// Nombre de la cookie de sesión que emite el simulador (igual que el backend real).
const sessionCookie = "session"

// loginRequest entrada de login del simulador: idToken de desarrollo (JWT
// firmado con el mismo secreto) o email/password del admin configurado.
type loginRequest struct {
	IDToken  string `json:"idToken"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Server simulador local del backend de productos + identidad: CRUD en
// memoria, sesión por cookie JWT y broadcast SSE de la colección completa en
// cada mutación. Solo para desarrollo y tests; no persiste nada.
type Server struct {
	cfg          config.SimConfig
	store        *Store
	hub          *Hub
	passwordHash []byte
	log          *logger.Logger
}

// New construye el simulador y su aplicación Fiber.
func New(cfg config.SimConfig, log *logger.Logger) (*Server, *fiber.App, error) {
	if cfg.JWTSecret == "" {
		return nil, nil, fmt.Errorf("simulator: SIM_JWT_SECRET es requerido")
	}
	password := cfg.AdminPassword
	if password == "" {
		password = "admin123"
		log.Warn().Msg("SIM_ADMIN_PASSWORD vacío; usando credencial de desarrollo por defecto")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("simulator: hashear password: %w", err)
	}

	s := &Server{
		cfg:          cfg,
		store:        NewStore(),
		hub:          NewHub(),
		passwordHash: hash,
		log:          log,
	}

	app := fiber.New(fiber.Config{
		AppName:      "eagle3d-backend-sim",
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  60 * time.Second,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "eagle3d-backend-sim"})
	})

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", s.login)
	authGroup.Post("/logout", s.logout)
	authGroup.Get("/me", s.me)

	productsGroup := api.Group("/products", s.requireSession)
	productsGroup.Get("/", s.listProducts)
	productsGroup.Get("/stream", s.streamProducts)
	productsGroup.Post("/", s.createProduct)
	productsGroup.Put("/:id", s.updateProduct)
	productsGroup.Delete("/:id", s.deleteProduct)

	return s, app, nil
}

// Store acceso directo al store en memoria (para seed en dev/tests).
func (s *Server) Store() *Store {
	return s.store
}

// ──────────────────────────── Auth ────────────────────────────

func (s *Server) login(c *fiber.Ctx) error {
	var in loginRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}

	var user entity.User
	switch {
	case in.IDToken != "":
		// idToken de desarrollo: JWT firmado con el secreto del simulador.
		uid, email, role, err := jwt.Parse(s.cfg.JWTSecret, in.IDToken)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "idToken inválido o expirado"})
		}
		if role == "" {
			role = entity.RoleViewer
		}
		user = entity.User{UID: uid, Email: email, Role: role}
	case in.Email != "" && in.Password != "":
		if in.Email != s.cfg.AdminEmail || bcrypt.CompareHashAndPassword(s.passwordHash, []byte(in.Password)) != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "credenciales inválidas"})
		}
		user = entity.User{UID: "admin-sim", Email: s.cfg.AdminEmail, Role: entity.RoleAdmin}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "idToken o email y password son requeridos"})
	}

	token, err := jwt.Generate(s.cfg.JWTSecret, user.UID, user.Email, user.Role, s.cfg.Issuer, s.cfg.JWTExpMinutes)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
	return c.JSON(dto.LoginResponse{
		Message: "login exitoso",
		User:    dto.UserResponse{UID: user.UID, Email: user.Email, Role: user.Role},
	})
}

func (s *Server) logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Path:     "/",
	})
	return c.JSON(dto.MessageResponse{Message: "sesión cerrada"})
}

func (s *Server) me(c *fiber.Ctx) error {
	user, err := s.sessionUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHENTICATED", Message: "sesión inválida o expirada"})
	}
	return c.JSON(dto.MeResponse{User: dto.UserResponse{UID: user.UID, Email: user.Email, Role: user.Role}})
}

// requireSession exige cookie de sesión válida para la API de productos.
func (s *Server) requireSession(c *fiber.Ctx) error {
	if _, err := s.sessionUser(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHENTICATED", Message: "sesión requerida"})
	}
	return c.Next()
}

func (s *Server) sessionUser(c *fiber.Ctx) (*entity.User, error) {
	raw := c.Cookies(sessionCookie)
	if raw == "" {
		return nil, domain.ErrUnauthorized
	}
	uid, email, role, err := jwt.Parse(s.cfg.JWTSecret, raw)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	return &entity.User{UID: uid, Email: email, Role: role}, nil
}

// ──────────────────────────── Productos ────────────────────────────

func (s *Server) listProducts(c *fiber.Ctx) error {
	return c.JSON(s.store.List())
}

func (s *Server) createProduct(c *fiber.Ctx) error {
	var in dto.CreateProductRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := validator.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	if in.Price.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "price no puede ser negativo"})
	}
	created := s.store.Create(entity.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Status:      in.Status,
		ImageURL:    in.ImageURL,
	})
	s.hub.Broadcast(s.store.List())
	return c.Status(fiber.StatusCreated).JSON(dto.CreateProductResponse{
		ID:      created.ID,
		Message: "producto creado",
		Product: created,
	})
}

func (s *Server) updateProduct(c *fiber.Ctx) error {
	var in repository.ProductPatch
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Price != nil && in.Price.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "price no puede ser negativo"})
	}
	if err := s.store.Update(c.Params("id"), in); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "producto no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	s.hub.Broadcast(s.store.List())
	return c.JSON(dto.MessageResponse{Message: "producto actualizado"})
}

func (s *Server) deleteProduct(c *fiber.Ctx) error {
	if err := s.store.Delete(c.Params("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "producto no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	s.hub.Broadcast(s.store.List())
	return c.JSON(dto.MessageResponse{Message: "producto eliminado"})
}

// streamProducts canal SSE: colección completa al conectar y en cada mutación.
func (s *Server) streamProducts(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	store, hub := s.store, s.hub
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		id, ch := hub.Subscribe()
		defer hub.Unsubscribe(id)

		if err := writeEvent(w, store.List()); err != nil {
			return
		}
		ping := time.NewTicker(streamHeartbeat)
		defer ping.Stop()
		pumpStream(w, ch, ping.C)
	}))
	return nil
}

// Intervalo del latido del stream. Un cliente desconectado con el catálogo
// quieto solo se detecta cuando una escritura falla; el latido acota ese tiempo.
const streamHeartbeat = 15 * time.Second

// pumpStream entrega el catálogo y latidos hasta que el cliente se desconecta
// o el hub cierra el canal.
func pumpStream(w *bufio.Writer, ch <-chan []entity.Product, heartbeat <-chan time.Time) {
	for {
		select {
		case products, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, products); err != nil {
				return
			}
		case <-heartbeat:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w *bufio.Writer, products []entity.Product) error {
	payload, err := json.Marshal(products)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}
