package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rafiq-567/eagle3d-dashboard/internal/application/auth"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/products"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/config"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC     *auth.UseCase
	ProductsUC *products.UseCase
	Session    config.SessionConfig
}

// Router registra el guard de sesión y las rutas del dashboard.
func Router(app *fiber.App, deps RouterDeps) {
	// Guard de rutas protegidas (páginas): solo presencia de cookie.
	app.Use(SessionGuard(deps.Session))

	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC, deps.Session)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/logout", authHandler.Logout)
	authGroup.Get("/me", authHandler.Me)

	// Productos: snapshot + mutaciones + relay SSE
	productsGroup := api.Group("/products")
	productHandler := NewProductHandler(deps.ProductsUC)
	productsGroup.Get("/", productHandler.List)
	productsGroup.Get("/stream", productHandler.Stream)
	productsGroup.Post("/", productHandler.Create)
	productsGroup.Put("/:id", productHandler.Update)
	productsGroup.Delete("/:id", productHandler.Delete)

	// Analytics derivado de la caché
	analyticsGroup := api.Group("/analytics")
	analyticsHandler := NewAnalyticsHandler(deps.ProductsUC)
	analyticsGroup.Get("/dashboard", analyticsHandler.Dashboard)
}
