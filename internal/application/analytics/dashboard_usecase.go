package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rafiq-567/eagle3d-dashboard/internal/application/dto"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
)

// Rangos fijos de precio del histograma, en orden ascendente. Los buckets con
// cero productos se omiten de la salida pero el orden relativo nunca cambia.
var priceBuckets = []struct {
	label string
	upper decimal.Decimal // límite superior exclusivo; el último no tiene tope
}{
	{"$0-100", decimal.NewFromInt(100)},
	{"$100-500", decimal.NewFromInt(500)},
	{"$500-1K", decimal.NewFromInt(1000)},
	{"$1K-5K", decimal.NewFromInt(5000)},
	{"$5K+", decimal.Decimal{}},
}

// BuildDashboard deriva las métricas del dashboard a partir de la colección
// en caché. Es una función pura: sin red, sin efectos, idempotente; se
// recalcula en cada consulta. Price/Stock ausentes cuentan como cero porque
// durante ediciones en vivo llegan registros parcialmente poblados.
func BuildDashboard(products []entity.Product) *dto.DashboardDTO {
	var (
		totalValue        = decimal.Zero
		totalStock        int64
		availableCount    int
		discontinuedCount int
	)
	valueByStatus := map[string]decimal.Decimal{
		entity.StatusAvailable:    decimal.Zero,
		entity.StatusDiscontinued: decimal.Zero,
	}
	bucketCounts := make(map[string]int, len(priceBuckets))
	monthly := make(map[string]int)

	for _, p := range products {
		value := p.Value()
		totalValue = totalValue.Add(value)
		totalStock += p.Stock

		switch p.Status {
		case entity.StatusAvailable:
			availableCount++
		case entity.StatusDiscontinued:
			discontinuedCount++
		}
		// El valor se agrupa de forma binaria: todo lo que no es Available
		// cuenta como Discontinued.
		statusKey := entity.StatusDiscontinued
		if p.Status == entity.StatusAvailable {
			statusKey = entity.StatusAvailable
		}
		valueByStatus[statusKey] = valueByStatus[statusKey].Add(value)

		bucketCounts[bucketFor(p.Price)]++

		if p.CreatedAt != nil {
			monthly[p.CreatedAt.Time().UTC().Format("2006-01")]++
		}
	}

	out := &dto.DashboardDTO{
		TotalValue:        totalValue,
		TotalStock:        totalStock,
		TotalProducts:     len(products),
		AvailableCount:    availableCount,
		DiscontinuedCount: discontinuedCount,
	}

	// Valor por estado: siempre los dos grupos, Available primero, aunque
	// valgan cero; el gráfico de pastel espera ambas porciones.
	for _, status := range []string{entity.StatusAvailable, entity.StatusDiscontinued} {
		out.StockValueByStatus = append(out.StockValueByStatus, dto.StatusValueDTO{Name: status, Value: valueByStatus[status]})
	}

	// Histograma en el orden fijo de los rangos, omitiendo los vacíos.
	for _, b := range priceBuckets {
		if n := bucketCounts[b.label]; n > 0 {
			out.PriceDistribution = append(out.PriceDistribution, dto.PriceBucketDTO{PriceRange: b.label, Count: n})
		}
	}

	out.MonthlyProductFlow = buildMonthlyFlow(monthly)
	return out
}

// bucketFor clasifica un precio en su rango fijo.
func bucketFor(price decimal.Decimal) string {
	for _, b := range priceBuckets[:len(priceBuckets)-1] {
		if price.LessThan(b.upper) {
			return b.label
		}
	}
	return priceBuckets[len(priceBuckets)-1].label
}

// buildMonthlyFlow ordena los meses cronológicamente y les da etiqueta legible.
func buildMonthlyFlow(monthly map[string]int) []dto.MonthlyFlowDTO {
	if len(monthly) == 0 {
		return nil
	}
	keys := make([]string, 0, len(monthly))
	for k := range monthly {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]dto.MonthlyFlowDTO, 0, len(keys))
	for _, k := range keys {
		label := k
		if t, err := time.Parse("2006-01", k); err == nil {
			label = t.Format("January 2006")
		}
		out = append(out, dto.MonthlyFlowDTO{Month: label, Added: monthly[k]})
	}
	return out
}
