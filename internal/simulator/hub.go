package simulator

import (
	"sync"

	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
)

// Hub fan-out de la colección hacia los clientes SSE conectados. Cada
// mutación publica la colección COMPLETA (reemplazo total, nunca diffs).
type Hub struct {
	mu      sync.Mutex
	clients map[uint64]chan []entity.Product
	next    uint64
}

// NewHub crea el hub sin clientes.
func NewHub() *Hub {
	return &Hub{clients: make(map[uint64]chan []entity.Product)}
}

// Subscribe registra un cliente y devuelve su id y canal de entregas.
func (h *Hub) Subscribe() (uint64, <-chan []entity.Product) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan []entity.Product, 1)
	h.clients[id] = ch
	return id, ch
}

// Unsubscribe retira un cliente y cierra su canal.
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(ch)
	}
}

// Broadcast entrega la colección a todos los clientes, con conflación: un
// cliente lento solo recibe el estado más reciente.
func (h *Hub) Broadcast(products []entity.Product) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- products:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- products
		}
	}
}

// Len cantidad de clientes conectados.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
