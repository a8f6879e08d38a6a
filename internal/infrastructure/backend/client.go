package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/rafiq-567/eagle3d-dashboard/internal/domain"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/repository"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/config"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/logger"
)

// Verificación en compilación de los puertos implementados.
var (
	_ repository.ProductGateway  = (*Client)(nil)
	_ repository.IdentityGateway = (*Client)(nil)
)

// Client cliente REST del backend de productos e identidad. Las credenciales
// viajan como cookie de sesión en el jar (sin esquema bearer); el mismo jar lo
// comparte el cliente del canal push.
type Client struct {
	baseURL    string
	cookieName string
	http       *http.Client
	log        *logger.Logger
}

// NewClient construye el cliente REST con cookie jar propio. StreamHTTP
// expone un cliente sin timeout (mismo jar) para conexiones de larga vida.
func NewClient(cfg config.BackendConfig, cookieName string, log *logger.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("backend: cookie jar: %w", err)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cookieName: cookieName,
		http: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
		log: log,
	}, nil
}

// StreamHTTP cliente HTTP sin timeout global que comparte el jar de sesión.
// El timeout de conexión de la plataforma sigue aplicando.
func (c *Client) StreamHTTP() *http.Client {
	return &http.Client{Jar: c.http.Jar}
}

// ──────────────────────────── Productos ────────────────────────────

// List obtiene la colección completa.
func (c *Client) List(ctx context.Context) ([]entity.Product, error) {
	var products []entity.Product
	if _, err := c.do(ctx, http.MethodGet, "/products", nil, &products, ""); err != nil {
		return nil, err
	}
	return products, nil
}

// createEcho respuesta del backend al crear: {id, message, product}.
type createEcho struct {
	ID      string         `json:"id"`
	Message string         `json:"message"`
	Product entity.Product `json:"product"`
}

// Create envía el producto sin ID y devuelve el producto con el ID asignado
// por el backend. El cliente jamás inventa identificadores.
func (c *Client) Create(ctx context.Context, p entity.Product) (*entity.Product, error) {
	p.ID = ""
	var echo createEcho
	if _, err := c.do(ctx, http.MethodPost, "/products", p, &echo, ""); err != nil {
		return nil, err
	}
	created := echo.Product
	if created.ID == "" {
		// Backend viejo: solo devuelve el id.
		created = p
		created.ID = echo.ID
	}
	return &created, nil
}

// Update aplica un patch parcial.
func (c *Client) Update(ctx context.Context, id string, patch repository.ProductPatch) error {
	_, err := c.do(ctx, http.MethodPut, "/products/"+id, patch, nil, "")
	return err
}

// Delete elimina por ID. Un 404 se traduce a domain.ErrNotFound; el caller
// decide si lo trata como ya-satisfecho.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/products/"+id, nil, nil, "")
	return err
}

// ──────────────────────────── Identidad ────────────────────────────

// Login intercambia el idToken por la cookie de sesión del backend.
func (c *Client) Login(ctx context.Context, idToken string) (*entity.User, string, error) {
	body := map[string]string{"idToken": idToken}
	var out struct {
		Message string      `json:"message"`
		User    entity.User `json:"user"`
	}
	resp, err := c.do(ctx, http.MethodPost, "/auth/login", body, &out, "")
	if err != nil {
		return nil, "", err
	}
	var cookie string
	for _, ck := range resp.Cookies() {
		if ck.Name == c.cookieName {
			cookie = ck.Value
		}
	}
	return &out.User, cookie, nil
}

// Logout invalida la sesión del backend.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, "")
	return err
}

// Me verifica la identidad. Si sessionCookie no es vacío se envía ese valor
// (cookie del navegador); si no, va la del jar.
func (c *Client) Me(ctx context.Context, sessionCookie string) (*entity.User, error) {
	var out struct {
		User entity.User `json:"user"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out, sessionCookie); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ──────────────────────────── Plomería ────────────────────────────

// do ejecuta una petición JSON y decodifica la respuesta en out (si no es nil).
// Los fallos de red/backend se convierten en errores de dominio explícitos.
func (c *Client) do(ctx context.Context, method, path string, body, out any, sessionCookie string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("backend: serializar cuerpo: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("backend: construir petición: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionCookie != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: sessionCookie})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrBackendUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp, c.errorFrom(resp, method, path)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			// Respuesta malformada: error de programación del backend. Se
			// loggea para diagnóstico y se degrada a backend no disponible.
			c.log.Error().Err(err).Str("path", path).Msg("backend: respuesta malformada")
			return resp, fmt.Errorf("%w: respuesta malformada en %s", domain.ErrBackendUnavailable, path)
		}
	}
	return resp, nil
}

// errorFrom traduce códigos HTTP a errores de dominio, conservando el
// mensaje del backend cuando existe.
func (c *Client) errorFrom(resp *http.Response, method, path string) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg != "" {
			return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
		}
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if msg != "" {
			return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
		}
		return domain.ErrInvalidInput
	default:
		return fmt.Errorf("%w: %s %s: HTTP %d %s", domain.ErrBackendUnavailable, method, path, resp.StatusCode, msg)
	}
}
