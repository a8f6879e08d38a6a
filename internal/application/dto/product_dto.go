package dto

import (
	"github.com/shopspring/decimal"

	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
)

// CreateProductRequest entrada para crear un producto. El ID lo asigna el backend.
type CreateProductRequest struct {
	Name        string          `json:"name" validate:"required,min=1,max=200"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock" validate:"gte=0"`
	Category    string          `json:"category"`
	Status      string          `json:"status" validate:"omitempty,oneof=Available Discontinued"`
	ImageURL    string          `json:"imageUrl"`
}

// UpdateProductRequest actualización parcial (solo campos presentes).
type UpdateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int64           `json:"stock" validate:"omitempty,gte=0"`
	Category    *string          `json:"category"`
	Status      *string          `json:"status" validate:"omitempty,oneof=Available Discontinued"`
	ImageURL    *string          `json:"imageUrl"`
}

// CreateProductResponse eco del backend al crear: id asignado + producto.
type CreateProductResponse struct {
	ID      string         `json:"id"`
	Message string         `json:"message"`
	Product entity.Product `json:"product"`
}

// ProductListResponse snapshot de la colección con su estado de carga.
// State: idle | loading | live | error. Error solo viene con State=error.
type ProductListResponse struct {
	Items []entity.Product `json:"items"`
	State string           `json:"state"`
	Error string           `json:"error,omitempty"`
}
