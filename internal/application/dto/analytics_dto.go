package dto

import "github.com/shopspring/decimal"

// StatusValueDTO valor de inventario agrupado por estado.
type StatusValueDTO struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// PriceBucketDTO cantidad de productos en un rango fijo de precio.
type PriceBucketDTO struct {
	PriceRange string `json:"priceRange"`
	Count      int    `json:"count"`
}

// MonthlyFlowDTO productos agregados por mes (según createdAt).
type MonthlyFlowDTO struct {
	Month string `json:"month"`
	Added int    `json:"added"`
}

// DashboardDTO métricas derivadas de la colección de productos en caché.
// Es un snapshot puro: se recalcula en cada consulta.
type DashboardDTO struct {
	TotalValue         decimal.Decimal  `json:"totalValue"`
	TotalStock         int64            `json:"totalStock"`
	TotalProducts      int              `json:"totalProducts"`
	AvailableCount     int              `json:"availableCount"`
	DiscontinuedCount  int              `json:"discontinuedCount"`
	StockValueByStatus []StatusValueDTO `json:"stockValueByStatus"`
	PriceDistribution  []PriceBucketDTO `json:"priceDistribution"`
	MonthlyProductFlow []MonthlyFlowDTO `json:"monthlyProductFlow"`
}
