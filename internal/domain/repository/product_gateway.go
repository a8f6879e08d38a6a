package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
)

// ProductPatch actualización parcial de un producto. Solo los campos no nil
// se envían al backend.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int64           `json:"stock,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Status      *string          `json:"status,omitempty"`
	ImageURL    *string          `json:"imageUrl,omitempty"`
}

// ProductGateway operaciones CRUD contra el backend de productos.
// Las mutaciones no tocan la caché local: la reconciliación llega por el
// canal push o por un re-fetch explícito.
type ProductGateway interface {
	// List obtiene la colección completa de productos.
	List(ctx context.Context) ([]entity.Product, error)
	// Create envía un producto sin ID; el backend asigna el ID y devuelve el producto creado.
	Create(ctx context.Context, p entity.Product) (*entity.Product, error)
	// Update aplica un patch parcial. Devuelve domain.ErrNotFound si el ID no existe.
	Update(ctx context.Context, id string, patch ProductPatch) error
	// Delete elimina por ID. Devuelve domain.ErrNotFound si el ID ya no existe.
	Delete(ctx context.Context, id string) error
}

// StreamHandle conexión push abierta. Cada mensaje del canal es la colección
// completa y autoritativa; no hay merges parciales.
type StreamHandle interface {
	// Snapshots entrega la colección completa por cada evento recibido.
	// El canal se cierra al fallar la conexión o al llamar Close.
	Snapshots() <-chan []entity.Product
	// Err devuelve la causa del cierre del canal; nil si fue un Close local.
	Err() error
	// Close corta la conexión y libera recursos. Idempotente.
	Close() error
}

// ProductStream fábrica del canal push. No reconecta: un handle cerrado se
// reemplaza abriendo otro en la siguiente suscripción.
type ProductStream interface {
	Open(ctx context.Context) (StreamHandle, error)
}
