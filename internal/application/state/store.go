package state

import (
	"sync"

	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
)

// LoadState ciclo de vida de la colección: Idle → Loading → Live ⇄ Error.
type LoadState string

const (
	StateIdle    LoadState = "idle"
	StateLoading LoadState = "loading"
	StateLive    LoadState = "live"
	StateError   LoadState = "error"
)

// CollectionSnapshot copia de lectura de la colección y su estado.
// Version crece con cada reemplazo aplicado; permite descartar resultados
// de fetch que llegan después de un push más nuevo.
type CollectionSnapshot struct {
	Products []entity.Product
	State    LoadState
	Err      error
	Version  uint64
}

// Store estado compartido del dashboard: sesión actual y colección de
// productos. Se construye una vez en main y se inyecta; la capa de
// sincronización es el único escritor de la colección.
type Store struct {
	mu       sync.RWMutex
	user     *entity.User
	products []entity.Product
	state    LoadState
	err      error
	version  uint64
}

// NewStore crea el store vacío: sin sesión y colección sin cargar.
func NewStore() *Store {
	return &Store{state: StateIdle}
}

// ──────────────────────────── Sesión ────────────────────────────

// Session devuelve la identidad actual o nil.
func (s *Store) Session() *entity.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetSession fija la identidad tras login o chequeo exitoso.
func (s *Store) SetSession(u *entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.user = nil
		return
	}
	cp := *u
	s.user = &cp
}

// ClearSession borra la identidad (logout o chequeo fallido).
func (s *Store) ClearSession() {
	s.SetSession(nil)
}

// ─────────────────────────── Colección ──────────────────────────

// Snapshot devuelve una copia del estado actual de la colección.
func (s *Store) Snapshot() CollectionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() CollectionSnapshot {
	ps := make([]entity.Product, len(s.products))
	copy(ps, s.products)
	return CollectionSnapshot{Products: ps, State: s.state, Err: s.err, Version: s.version}
}

// BeginLoading marca Loading si aún no hay datos vivos y devuelve la versión
// vigente, que sirve de marca para CompleteFetch/FailFetch.
func (s *Store) BeginLoading() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle || s.state == StateError {
		s.state = StateLoading
		s.err = nil
	}
	return s.version
}

// ReplacePush reemplaza la colección completa desde el canal push.
// El push es autoritativo: siempre gana y sube la versión.
func (s *Store) ReplacePush(products []entity.Product) CollectionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(products)
	return s.snapshotLocked()
}

// CompleteFetch aplica el resultado del fetch solo si ningún reemplazo llegó
// en medio (misma versión que la marca). Devuelve el snapshot resultante y si
// el resultado fue aplicado.
func (s *Store) CompleteFetch(mark uint64, products []entity.Product) (CollectionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != mark {
		// Un push más nuevo ya reemplazó la colección; el fetch queda obsoleto.
		return s.snapshotLocked(), false
	}
	s.replaceLocked(products)
	return s.snapshotLocked(), true
}

// FailFetch marca Error recuperable si el fetch falló y nada más nuevo llegó.
// La colección previa (si había) se conserva como last-known-good.
func (s *Store) FailFetch(mark uint64, err error) (CollectionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != mark {
		return s.snapshotLocked(), false
	}
	s.state = StateError
	s.err = err
	return s.snapshotLocked(), true
}

// MarkStreamError registra la caída del canal push sin descartar datos.
func (s *Store) MarkStreamError(err error) CollectionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateError
	s.err = err
	return s.snapshotLocked()
}

func (s *Store) replaceLocked(products []entity.Product) {
	cp := make([]entity.Product, len(products))
	copy(cp, products)
	s.products = cp
	s.state = StateLive
	s.err = nil
	s.version++
}
