package http

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/rafiq-567/eagle3d-dashboard/pkg/config"
)

// Prefijos que nunca pasan por el guard de sesión (API, docs, estáticos).
var skipPrefixes = []string{"/api", "/docs", "/health", "/public", "/favicon.ico"}

// SessionGuard protege los prefijos configurados: sin cookie de sesión
// presente, redirige a LoginPath con ?redirect=<ruta original>. Solo se mira
// la PRESENCIA de la cookie; la validez la re-chequea /auth/me al cargar la
// página, así que una cookie vencida pasa aquí y falla allá.
func SessionGuard(cfg config.SessionConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, p := range skipPrefixes {
			if strings.HasPrefix(path, p) {
				return c.Next()
			}
		}
		if !isProtected(path, cfg.ProtectedPaths) {
			return c.Next()
		}
		if c.Cookies(cfg.CookieName) != "" {
			return c.Next()
		}
		loginURL := cfg.LoginPath + "?redirect=" + url.QueryEscape(path)
		return c.Redirect(loginURL, fiber.StatusFound)
	}
}

// isProtected match exacto o por prefijo con separador ("/products" protege
// "/products" y "/products/x", pero no "/productsx").
func isProtected(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
