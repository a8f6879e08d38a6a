package http

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/rafiq-567/eagle3d-dashboard/internal/application/dto"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/products"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/state"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain"
)

// ProductHandler expone la colección de productos: snapshot, mutaciones y el
// relay SSE hacia el navegador. Cada conexión del relay es un suscriptor de
// la capa de sincronización; todas comparten el único canal push upstream.
type ProductHandler struct {
	uc *products.UseCase
}

// NewProductHandler construye el handler.
func NewProductHandler(uc *products.UseCase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

// List godoc
// @Summary      Colección de productos (snapshot de caché)
// @Tags         products
// @Produce      json
// @Success      200  {object}  dto.ProductListResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/products [get]
func (h *ProductHandler) List(c *fiber.Ctx) error {
	snap := h.uc.List(c.UserContext())
	if snap.State == state.StateError && len(snap.Products) == 0 {
		// Sin datos previos que mostrar: error recuperable, la vista reintenta.
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Code: "FETCH_FAILED", Message: "no se pudo cargar la colección", Retryable: true,
		})
	}
	return c.JSON(toListResponse(snap))
}

// Create godoc
// @Summary      Crear producto
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateProductRequest  true  "Datos del producto (sin id)"
// @Success      201   {object}  dto.CreateProductResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/products [post]
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateProductRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.Create(c.UserContext(), in)
	if err != nil {
		return mutationError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Update godoc
// @Summary      Actualizar producto (parcial)
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del producto"
// @Param        body  body  dto.UpdateProductRequest  true  "Campos a cambiar"
// @Success      200   {object}  dto.MessageResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/products/{id} [put]
func (h *ProductHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateProductRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.uc.Update(c.UserContext(), c.Params("id"), in); err != nil {
		return mutationError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "producto actualizado"})
}

// Delete godoc
// @Summary      Eliminar producto
// @Tags         products
// @Produce      json
// @Param        id  path  string  true  "ID del producto"
// @Success      200  {object}  dto.MessageResponse
// @Router       /api/products/{id} [delete]
func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	// Idempotente: una fila borrada concurrentemente por otro actor no es un
	// error para el usuario.
	if err := h.uc.Delete(c.UserContext(), c.Params("id")); err != nil {
		return mutationError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "producto eliminado"})
}

// Stream godoc
// @Summary      Relay SSE de la colección (cada evento = colección completa)
// @Tags         products
// @Produce      text/event-stream
// @Router       /api/products/stream [get]
func (h *ProductHandler) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	uc := h.uc
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		sub, snap := uc.Subscribe()
		defer uc.Unsubscribe(sub)

		if err := writeSSE(w, snap); err != nil {
			return
		}
		ping := time.NewTicker(sseHeartbeat)
		defer ping.Stop()
		relaySSE(w, sub.Updates(), ping.C)
	}))
	return nil
}

// Intervalo del latido del relay. Sin él, un navegador que se desconecta con
// la colección quieta nunca provocaría una escritura fallida y su suscripción
// (y el canal upstream compartido) quedarían retenidos para siempre.
const sseHeartbeat = 15 * time.Second

// relaySSE bombea snapshots hacia el navegador y emite un comentario SSE como
// latido; cualquier escritura fallida significa que el cliente se fue y
// termina el bombeo en tiempo acotado.
func relaySSE(w *bufio.Writer, updates <-chan state.CollectionSnapshot, heartbeat <-chan time.Time) {
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := writeSSE(w, snap); err != nil {
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

func writeSSE(w *bufio.Writer, snap state.CollectionSnapshot) error {
	payload, err := json.Marshal(snap.Products)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func toListResponse(snap state.CollectionSnapshot) dto.ProductListResponse {
	out := dto.ProductListResponse{
		Items: snap.Products,
		State: string(snap.State),
	}
	if snap.Err != nil {
		out.Error = snap.Err.Error()
	}
	return out
}

// mutationError traduce errores de mutación a respuestas HTTP. La caché no
// cambió: el usuario puede reintentar o cancelar.
func mutationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "el producto ya no existe"})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "sesión inválida o expirada"})
	case errors.Is(err, domain.ErrBackendUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "BACKEND_DOWN", Message: "no se pudo contactar el backend", Retryable: true})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos de producto inválidos"})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
}
