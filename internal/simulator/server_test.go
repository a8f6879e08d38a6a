package simulator_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafiq-567/eagle3d-dashboard/internal/application/dto"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
	"github.com/rafiq-567/eagle3d-dashboard/internal/simulator"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/config"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/jwt"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testSecret   = "secreto-solo-para-tests"
	testIssuer   = "backend-sim-test"
	testEmail    = "admin@test.local"
	testPassword = "clave-de-prueba"
)

func buildSim(t *testing.T) (*simulator.Server, *fiber.App) {
	t.Helper()
	sim, app, err := simulator.New(config.SimConfig{
		JWTSecret:     testSecret,
		JWTExpMinutes: 60,
		Issuer:        testIssuer,
		AdminEmail:    testEmail,
		AdminPassword: testPassword,
	}, logger.Nop())
	require.NoError(t, err)
	return sim, app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, cookie string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: cookie})
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// loginAdmin hace login con email/password y devuelve la cookie de sesión.
func loginAdmin(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/auth/login",
		map[string]string{"email": testEmail, "password": testPassword}, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, ck := range resp.Cookies() {
		if ck.Name == "session" {
			return ck.Value
		}
	}
	t.Fatal("el login no emitió la cookie de sesión")
	return ""
}

// ──────────────────────────────────────────────────────────────────────────────
// Auth
// ──────────────────────────────────────────────────────────────────────────────

func TestSimLogin_EmailYPasswordValidos(t *testing.T) {
	_, app := buildSim(t)
	cookie := loginAdmin(t, app)
	assert.NotEmpty(t, cookie)

	// La cookie es un JWT verificable con el mismo secreto.
	uid, email, role, err := jwt.Parse(testSecret, cookie)
	require.NoError(t, err)
	assert.Equal(t, "admin-sim", uid)
	assert.Equal(t, testEmail, email)
	assert.Equal(t, entity.RoleAdmin, role)
}

func TestSimLogin_PasswordIncorrectaRetorna401(t *testing.T) {
	_, app := buildSim(t)
	resp := doJSON(t, app, http.MethodPost, "/api/auth/login",
		map[string]string{"email": testEmail, "password": "incorrecta"}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSimLogin_ConIDTokenFirmado(t *testing.T) {
	_, app := buildSim(t)
	idToken, err := jwt.Generate(testSecret, "uid-externo", "dev@test.local", entity.RoleViewer, testIssuer, 10)
	require.NoError(t, err)

	resp := doJSON(t, app, http.MethodPost, "/api/auth/login",
		map[string]string{"idToken": idToken}, "")
	out := decode[dto.LoginResponse](t, resp)

	assert.Equal(t, "uid-externo", out.User.UID)
	assert.Equal(t, entity.RoleViewer, out.User.Role)
}

func TestSimLogin_IDTokenInvalidoRetorna401(t *testing.T) {
	_, app := buildSim(t)
	resp := doJSON(t, app, http.MethodPost, "/api/auth/login",
		map[string]string{"idToken": "no.es.jwt"}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSimMe_ConSesionDevuelveElUsuario(t *testing.T) {
	_, app := buildSim(t)
	cookie := loginAdmin(t, app)

	resp := doJSON(t, app, http.MethodGet, "/api/auth/me", nil, cookie)
	out := decode[dto.MeResponse](t, resp)
	assert.Equal(t, testEmail, out.User.Email)
}

func TestSimMe_SinSesionRetorna401(t *testing.T) {
	_, app := buildSim(t)
	resp := doJSON(t, app, http.MethodGet, "/api/auth/me", nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSimProducts_SinSesionRetorna401(t *testing.T) {
	_, app := buildSim(t)
	resp := doJSON(t, app, http.MethodGet, "/api/products/", nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// CRUD de productos
// ──────────────────────────────────────────────────────────────────────────────

func TestSimCreate_AsignaIDYTimestamps(t *testing.T) {
	_, app := buildSim(t)
	cookie := loginAdmin(t, app)

	resp := doJSON(t, app, http.MethodPost, "/api/products/", dto.CreateProductRequest{
		Name:   "impresora",
		Price:  decimal.NewFromFloat(999.99),
		Stock:  3,
		Status: entity.StatusAvailable,
	}, cookie)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decode[dto.CreateProductResponse](t, resp)

	assert.NotEmpty(t, out.ID, "el backend asigna el ID")
	assert.Equal(t, out.ID, out.Product.ID)
	assert.NotNil(t, out.Product.CreatedAt)
	assert.NotNil(t, out.Product.UpdatedAt)
}

func TestSimUpdate_AplicaPatchParcial(t *testing.T) {
	sim, app := buildSim(t)
	cookie := loginAdmin(t, app)
	created := sim.Store().Create(entity.Product{Name: "antes", Price: decimal.NewFromInt(10), Stock: 1})

	resp := doJSON(t, app, http.MethodPut, "/api/products/"+created.ID,
		map[string]string{"name": "después"}, cookie)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := sim.Store().List()
	require.Len(t, list, 1)
	assert.Equal(t, "después", list[0].Name)
	assert.True(t, list[0].Price.Equal(decimal.NewFromInt(10)), "los campos no tocados se conservan")
}

func TestSimUpdate_IDInexistenteRetorna404(t *testing.T) {
	_, app := buildSim(t)
	cookie := loginAdmin(t, app)

	resp := doJSON(t, app, http.MethodPut, "/api/products/fantasma",
		map[string]string{"name": "x"}, cookie)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSimDelete_EliminaYLuego404(t *testing.T) {
	sim, app := buildSim(t)
	cookie := loginAdmin(t, app)
	created := sim.Store().Create(entity.Product{Name: "efímero"})

	resp := doJSON(t, app, http.MethodDelete, "/api/products/"+created.ID, nil, cookie)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, "/api/products/"+created.ID, nil, cookie)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode,
		"el segundo delete encuentra la fila ausente")
}

func TestSimList_DevuelveOrdenDeInsercion(t *testing.T) {
	sim, app := buildSim(t)
	cookie := loginAdmin(t, app)
	sim.Store().Create(entity.Product{Name: "primero"})
	sim.Store().Create(entity.Product{Name: "segundo"})

	resp := doJSON(t, app, http.MethodGet, "/api/products/", nil, cookie)
	list := decode[[]entity.Product](t, resp)

	require.Len(t, list, 2)
	assert.Equal(t, "primero", list[0].Name)
	assert.Equal(t, "segundo", list[1].Name)
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub de broadcast
// ──────────────────────────────────────────────────────────────────────────────

func TestSimHub_BroadcastConConflacion(t *testing.T) {
	hub := simulator.NewHub()
	id, ch := hub.Subscribe()
	defer hub.Unsubscribe(id)

	// Dos broadcasts sin consumir: el cliente lento solo ve el último.
	hub.Broadcast([]entity.Product{{ID: "v1"}})
	hub.Broadcast([]entity.Product{{ID: "v2"}})

	got := <-ch
	require.Len(t, got, 1)
	assert.Equal(t, "v2", got[0].ID)
}

func TestSimHub_UnsubscribeCierraElCanal(t *testing.T) {
	hub := simulator.NewHub()
	id, ch := hub.Subscribe()

	hub.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, hub.Len())
}
