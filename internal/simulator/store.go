package simulator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rafiq-567/eagle3d-dashboard/internal/domain"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/repository"
)

// Store colección de productos en memoria del simulador. Mantiene orden de
// inserción para que la colección publicada sea estable.
type Store struct {
	mu    sync.RWMutex
	m     map[string]entity.Product
	order []string
}

// NewStore crea el store vacío.
func NewStore() *Store {
	return &Store{m: make(map[string]entity.Product)}
}

// List devuelve la colección completa en orden de inserción.
func (s *Store) List() []entity.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.m[id])
	}
	return out
}

// Create asigna ID y timestamps, como haría el backend real.
func (s *Store) Create(p entity.Product) entity.Product {
	now := time.Now()
	p.ID = uuid.New().String()
	p.CreatedAt = entity.TimestampFromTime(now)
	p.UpdatedAt = entity.TimestampFromTime(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[p.ID] = p
	s.order = append(s.order, p.ID)
	return p
}

// Update aplica un patch parcial. Devuelve domain.ErrNotFound si el ID no existe.
func (s *Store) Update(id string, patch repository.ProductPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[id]
	if !ok {
		return domain.ErrNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
	p.UpdatedAt = entity.TimestampFromTime(time.Now())
	s.m[id] = p
	return nil
}

// Delete elimina por ID. Devuelve domain.ErrNotFound si el ID no existe.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.m, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
