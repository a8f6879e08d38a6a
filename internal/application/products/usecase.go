package products

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/rafiq-567/eagle3d-dashboard/internal/application/dto"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/state"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/repository"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/logger"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/validator"
)

// Subscription handle vivo de un consumidor de la colección. Las entregas se
// conflacionan: si el consumidor va lento solo recibe el snapshot más reciente.
type Subscription struct {
	id string
	ch chan state.CollectionSnapshot
}

// Updates canal de snapshots. Se cierra al des-suscribirse o al cerrar el use case.
func (s *Subscription) Updates() <-chan state.CollectionSnapshot {
	return s.ch
}

// UseCase capa de caché y sincronización de la colección de productos.
// Mantiene una sola copia autoritativa en el Store, un único canal push
// compartido por todos los suscriptores (contado por referencias) y las
// mutaciones CRUD contra el backend.
type UseCase struct {
	gateway repository.ProductGateway
	stream  repository.ProductStream
	store   *state.Store
	log     *logger.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu        sync.Mutex
	subs      map[string]*Subscription
	handle    repository.StreamHandle
	cancelStr context.CancelFunc
	streamGen uint64 // generación del canal; cierres de canales viejos se ignoran
	opening   bool
	closed    bool
}

// NewUseCase construye la capa de sincronización. Close libera el canal push
// y despierta a todos los suscriptores.
func NewUseCase(gateway repository.ProductGateway, stream repository.ProductStream, store *state.Store, log *logger.Logger) *UseCase {
	ctx, cancel := context.WithCancel(context.Background())
	return &UseCase{
		gateway:    gateway,
		stream:     stream,
		store:      store,
		log:        log,
		baseCtx:    ctx,
		baseCancel: cancel,
		subs:       make(map[string]*Subscription),
	}
}

// ──────────────────────── Suscripciones ────────────────────────

// Subscribe registra interés en la colección. Devuelve el snapshot actual de
// inmediato (posiblemente vacío/cargando) y un handle vivo. El primer
// suscriptor dispara el fetch inicial y abre exactamente un canal push; los
// siguientes comparten la misma conexión.
func (uc *UseCase) Subscribe() (*Subscription, state.CollectionSnapshot) {
	uc.mu.Lock()
	sub := &Subscription{
		id: uuid.New().String(),
		ch: make(chan state.CollectionSnapshot, 1),
	}
	uc.subs[sub.id] = sub
	uc.ensureStreamLocked()
	snap := uc.store.Snapshot()
	needsFetch := snap.State == state.StateIdle || snap.State == state.StateError
	uc.mu.Unlock()

	if needsFetch {
		go uc.refetch(uc.baseCtx)
	}
	return sub, snap
}

// Unsubscribe retira un suscriptor. Cuando sale el último se corta el canal
// push (recurso compartido escaso); la colección queda como last-known-good.
// No cancela mutaciones en vuelo.
func (uc *UseCase) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	uc.mu.Lock()
	if _, ok := uc.subs[sub.id]; !ok {
		uc.mu.Unlock()
		return
	}
	delete(uc.subs, sub.id)
	close(sub.ch)
	var h repository.StreamHandle
	var cancel context.CancelFunc
	if len(uc.subs) == 0 {
		h, cancel = uc.handle, uc.cancelStr
		uc.handle, uc.cancelStr = nil, nil
		uc.streamGen++
	}
	uc.mu.Unlock()

	if h != nil {
		_ = h.Close()
		cancel()
	}
}

// Close apaga la capa: cancela el canal push y cierra todos los handles.
func (uc *UseCase) Close() {
	uc.baseCancel()
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.closed {
		return
	}
	uc.closed = true
	if uc.handle != nil {
		_ = uc.handle.Close()
		uc.handle = nil
	}
	if uc.cancelStr != nil {
		uc.cancelStr()
		uc.cancelStr = nil
	}
	uc.streamGen++
	for id, sub := range uc.subs {
		close(sub.ch)
		delete(uc.subs, id)
	}
}

// ensureStreamLocked abre el canal push si no hay uno vivo ni uno abriéndose.
// La apertura es asíncrona para no bloquear Subscribe con un dial de red.
func (uc *UseCase) ensureStreamLocked() {
	if uc.closed || uc.handle != nil || uc.opening {
		return
	}
	uc.opening = true
	gen := uc.streamGen
	go uc.openStream(gen)
}

func (uc *UseCase) openStream(gen uint64) {
	ctx, cancel := context.WithCancel(uc.baseCtx)
	h, err := uc.stream.Open(ctx)

	uc.mu.Lock()
	uc.opening = false
	// Si la generación cambió mientras abríamos (el último suscriptor se fue y
	// entró uno nuevo), este intento quedó obsoleto pero hay interés vigente:
	// se relanza la apertura para no dejar al suscriptor nuevo sin canal.
	stale := gen != uc.streamGen && !uc.closed && len(uc.subs) > 0
	if err != nil {
		if stale {
			uc.ensureStreamLocked()
		}
		uc.mu.Unlock()
		cancel()
		// Sin canal push las mutaciones reconcilian por re-fetch; no es fatal.
		uc.log.Warn().Err(err).Msg("no se pudo abrir el canal push de productos")
		return
	}
	if uc.closed || len(uc.subs) == 0 || gen != uc.streamGen {
		// El último suscriptor se fue (o hubo shutdown) mientras abríamos.
		if stale {
			uc.ensureStreamLocked()
		}
		uc.mu.Unlock()
		_ = h.Close()
		cancel()
		return
	}
	uc.handle = h
	uc.cancelStr = cancel
	uc.mu.Unlock()

	uc.log.Debug().Msg("canal push de productos abierto")
	go uc.consume(h, gen)
}

// consume bombea snapshots del canal push hacia la caché. Cada mensaje es la
// colección completa: reemplazo total, last-writer-wins a nivel de mensaje.
func (uc *UseCase) consume(h repository.StreamHandle, gen uint64) {
	for products := range h.Snapshots() {
		snap := uc.store.ReplacePush(products)
		uc.fanout(snap)
	}

	err := h.Err()
	uc.mu.Lock()
	current := gen == uc.streamGen
	if current {
		uc.handle = nil
		if uc.cancelStr != nil {
			uc.cancelStr()
			uc.cancelStr = nil
		}
	}
	uc.mu.Unlock()

	if !current || err == nil {
		// Cierre local (Unsubscribe/Close): nada que reportar.
		return
	}
	// Caída del canal: se registra, la caché conserva el último valor bueno y
	// no se reconecta aquí; la próxima suscripción abre un canal nuevo.
	uc.log.Error().Err(err).Msg("canal push de productos caído")
	snap := uc.store.MarkStreamError(domain.ErrStreamClosed)
	uc.fanout(snap)
}

// fanout entrega el snapshot a todos los suscriptores con conflación.
func (uc *UseCase) fanout(snap state.CollectionSnapshot) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	for _, sub := range uc.subs {
		select {
		case sub.ch <- snap:
		default:
			// Descartar la entrega pendiente y dejar la más reciente.
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snap
		}
	}
}

// ───────────────────────────── Lectura ─────────────────────────────

// List devuelve el snapshot actual; si la colección está sin cargar o en
// error, ejecuta el fetch en línea (esta es también la acción de reintento).
func (uc *UseCase) List(ctx context.Context) state.CollectionSnapshot {
	snap := uc.store.Snapshot()
	if snap.State == state.StateLive || snap.State == state.StateLoading {
		return snap
	}
	return uc.refetch(ctx)
}

// Peek devuelve el snapshot actual sin disparar cargas.
func (uc *UseCase) Peek() state.CollectionSnapshot {
	return uc.store.Snapshot()
}

// refetch trae la colección completa por REST. El resultado solo se aplica si
// ningún push la reemplazó en medio: el push es la fuente de verdad.
func (uc *UseCase) refetch(ctx context.Context) state.CollectionSnapshot {
	mark := uc.store.BeginLoading()
	products, err := uc.gateway.List(ctx)
	if err != nil {
		snap, applied := uc.store.FailFetch(mark, err)
		if applied {
			uc.log.Warn().Err(err).Msg("fetch de productos falló")
			uc.fanout(snap)
		}
		return snap
	}
	snap, applied := uc.store.CompleteFetch(mark, products)
	if applied {
		uc.fanout(snap)
	}
	return snap
}

// ──────────────────────────── Mutaciones ────────────────────────────

// Create crea un producto en el backend. La caché no se toca de forma
// optimista: la reconciliación llega por el push o, si no hay canal vivo, por
// el re-fetch inmediato.
func (uc *UseCase) Create(ctx context.Context, in dto.CreateProductRequest) (*dto.CreateProductResponse, error) {
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	created, err := uc.gateway.Create(ctx, entity.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Status:      in.Status,
		ImageURL:    in.ImageURL,
	})
	if err != nil {
		return nil, err
	}
	uc.reconcile(ctx)
	return &dto.CreateProductResponse{
		ID:      created.ID,
		Message: "producto creado",
		Product: *created,
	}, nil
}

// Update aplica un patch parcial. ErrNotFound se propaga al caller (la fila
// pudo desaparecer concurrentemente; el usuario decide reintentar o cancelar).
func (uc *UseCase) Update(ctx context.Context, id string, in dto.UpdateProductRequest) error {
	if id == "" {
		return domain.ErrInvalidInput
	}
	if err := validator.Struct(in); err != nil {
		return err
	}
	if in.Price != nil && in.Price.IsNegative() {
		return domain.ErrInvalidInput
	}
	err := uc.gateway.Update(ctx, id, repository.ProductPatch{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Status:      in.Status,
		ImageURL:    in.ImageURL,
	})
	if err != nil {
		return err
	}
	uc.reconcile(ctx)
	return nil
}

// Delete elimina por ID. Es idempotente desde el punto de vista del cliente:
// si el backend ya no tiene la fila (borrada por otro actor), se trata como
// satisfecho y no como error fatal.
func (uc *UseCase) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidInput
	}
	err := uc.gateway.Delete(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if errors.Is(err, domain.ErrNotFound) {
		uc.log.Debug().Str("id", id).Msg("delete sobre fila ya ausente; se trata como satisfecho")
	}
	uc.reconcile(ctx)
	return nil
}

// reconcile tras una mutación exitosa: con canal push vivo no hay nada que
// hacer (el push trae la colección corregida); sin canal, la caché queda
// obsoleta y se re-fetchea en línea.
func (uc *UseCase) reconcile(ctx context.Context) {
	uc.mu.Lock()
	live := uc.handle != nil
	uc.mu.Unlock()
	if live {
		return
	}
	uc.refetch(ctx)
}
