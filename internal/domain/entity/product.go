package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de un producto. Cualquier valor distinto de Available se agrupa
// como Discontinued en los reportes de valor.
const (
	StatusAvailable    = "Available"
	StatusDiscontinued = "Discontinued"
)

// Timestamp par segundos + nanosegundos, como lo serializa el document store
// del backend. Se mantiene el formato de alambre para no perder precisión.
type Timestamp struct {
	Seconds     int64 `json:"_seconds"`
	Nanoseconds int64 `json:"_nanoseconds"`
}

// TimestampFromTime construye un Timestamp a partir de time.Time.
func TimestampFromTime(t time.Time) *Timestamp {
	return &Timestamp{Seconds: t.Unix(), Nanoseconds: int64(t.Nanosecond())}
}

// Time convierte el par a time.Time.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, ts.Nanoseconds)
}

// Product representa un ítem del inventario. El ID lo asigna el backend al
// crear y es inmutable; el cliente nunca inventa identificadores.
// Price y Stock nunca son negativos; si el backend los omite se leen como cero.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	Category    string          `json:"category,omitempty"`
	Status      string          `json:"status,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	CreatedAt   *Timestamp      `json:"createdAt,omitempty"`
	UpdatedAt   *Timestamp      `json:"updatedAt,omitempty"`
}

// Value devuelve price × stock (valor de inventario del producto).
func (p Product) Value() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(p.Stock))
}
