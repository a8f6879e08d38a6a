package products_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafiq-567/eagle3d-dashboard/internal/application/dto"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/products"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/state"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/repository"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes: gateway CRUD y canal push controlados por el test
// ──────────────────────────────────────────────────────────────────────────────

type fakeGateway struct {
	mu        sync.Mutex
	products  []entity.Product
	listCalls int
	listErr   error
	createErr error
	deleteErr error
	updateErr error
}

func (g *fakeGateway) List(ctx context.Context) ([]entity.Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]entity.Product, len(g.products))
	copy(out, g.products)
	return out, nil
}

func (g *fakeGateway) Create(ctx context.Context, p entity.Product) (*entity.Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	p.ID = "nuevo-id"
	g.products = append(g.products, p)
	return &p, nil
}

func (g *fakeGateway) Update(ctx context.Context, id string, patch repository.ProductPatch) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.updateErr
}

func (g *fakeGateway) Delete(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deleteErr
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listCalls
}

type fakeHandle struct {
	mu     sync.Mutex
	ch     chan []entity.Product
	closed bool
	err    error
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{ch: make(chan []entity.Product)}
}

func (h *fakeHandle) Snapshots() <-chan []entity.Product { return h.ch }

func (h *fakeHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	return h.err
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.ch)
	}
	return nil
}

// push entrega una colección como si viniera del backend.
func (h *fakeHandle) push(products []entity.Product) {
	h.ch <- products
}

// failRemote simula la caída de la conexión desde el lado remoto.
func (h *fakeHandle) failRemote(err error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.err = err
	h.mu.Unlock()
	close(h.ch)
}

type fakeStream struct {
	mu      sync.Mutex
	openErr error
	handles []*fakeHandle
}

func (s *fakeStream) Open(ctx context.Context) (repository.StreamHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	h := newFakeHandle()
	s.handles = append(s.handles, h)
	return h, nil
}

func (s *fakeStream) opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *fakeStream) last() *fakeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handles) == 0 {
		return nil
	}
	return s.handles[len(s.handles)-1]
}

func (s *fakeStream) openClosed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.handles {
		h.mu.Lock()
		if h.closed {
			n++
		}
		h.mu.Unlock()
	}
	return n
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func buildUseCase(g *fakeGateway, s repository.ProductStream) *products.UseCase {
	return products.NewUseCase(g, s, state.NewStore(), logger.Nop())
}

// recv espera la próxima entrega de la suscripción con timeout.
func recv(t *testing.T, sub *products.Subscription) state.CollectionSnapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "el canal de la suscripción no debe estar cerrado")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timeout esperando una entrega de la suscripción")
		return state.CollectionSnapshot{}
	}
}

// recvState espera entregas hasta ver el estado pedido (saltando intermedias).
func recvState(t *testing.T, sub *products.Subscription, want state.LoadState) state.CollectionSnapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Updates():
			require.True(t, ok, "el canal de la suscripción no debe estar cerrado")
			if snap.State == want {
				return snap
			}
		case <-deadline:
			t.Fatalf("timeout esperando estado %q", want)
			return state.CollectionSnapshot{}
		}
	}
}

func catalogo(ids ...string) []entity.Product {
	out := make([]entity.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, entity.Product{ID: id, Name: "p-" + id, Status: entity.StatusAvailable})
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Suscripciones y canal compartido
// ──────────────────────────────────────────────────────────────────────────────

func TestSubscribe_PrimerSuscriptorDisparaFetchYAbreUnSoloCanal(t *testing.T) {
	g := &fakeGateway{products: catalogo("a", "b")}
	s := &fakeStream{}
	uc := buildUseCase(g, s)
	defer uc.Close()

	sub, snap := uc.Subscribe()
	defer uc.Unsubscribe(sub)

	assert.Equal(t, state.StateIdle, snap.State, "el snapshot inmediato refleja el estado previo")

	live := recvState(t, sub, state.StateLive)
	assert.Len(t, live.Products, 2)

	require.Eventually(t, func() bool { return s.opened() == 1 },
		2*time.Second, 10*time.Millisecond, "debe abrirse exactamente un canal push")
	assert.Equal(t, 1, g.calls(), "el fetch inicial debe ejecutarse una sola vez")
}

func TestSubscribe_SegundoSuscriptorComparteElCanal(t *testing.T) {
	g := &fakeGateway{products: catalogo("a")}
	s := &fakeStream{}
	uc := buildUseCase(g, s)
	defer uc.Close()

	sub1, _ := uc.Subscribe()
	defer uc.Unsubscribe(sub1)
	recvState(t, sub1, state.StateLive)
	require.Eventually(t, func() bool { return s.opened() == 1 }, 2*time.Second, 10*time.Millisecond)

	sub2, snap2 := uc.Subscribe()
	defer uc.Unsubscribe(sub2)

	assert.Equal(t, state.StateLive, snap2.State, "el segundo suscriptor recibe la caché ya viva")
	assert.Equal(t, 1, s.opened(), "no debe abrirse un segundo canal")
}

func TestUnsubscribe_UltimoSuscriptorCierraElCanal(t *testing.T) {
	g := &fakeGateway{products: catalogo("a")}
	s := &fakeStream{}
	uc := buildUseCase(g, s)
	defer uc.Close()

	sub1, _ := uc.Subscribe()
	sub2, _ := uc.Subscribe()
	recvState(t, sub1, state.StateLive)
	require.Eventually(t, func() bool { return s.opened() == 1 }, 2*time.Second, 10*time.Millisecond)

	uc.Unsubscribe(sub1)
	assert.Equal(t, 0, s.openClosed(), "con un suscriptor restante el canal sigue vivo")

	uc.Unsubscribe(sub2)
	require.Eventually(t, func() bool { return s.openClosed() == 1 },
		2*time.Second, 10*time.Millisecond, "al salir el último suscriptor el canal debe cerrarse")

	// La caché conserva el último valor bueno tras cortar el canal.
	assert.Equal(t, state.StateLive, uc.Peek().State)
}

func TestSubscribe_TrasCerrarElCanalSeAbreUnoNuevo(t *testing.T) {
	g := &fakeGateway{products: catalogo("a")}
	s := &fakeStream{}
	uc := buildUseCase(g, s)
	defer uc.Close()

	sub1, _ := uc.Subscribe()
	recvState(t, sub1, state.StateLive)
	require.Eventually(t, func() bool { return s.opened() == 1 }, 2*time.Second, 10*time.Millisecond)
	uc.Unsubscribe(sub1)
	require.Eventually(t, func() bool { return s.openClosed() == 1 }, 2*time.Second, 10*time.Millisecond)

	sub2, _ := uc.Subscribe()
	defer uc.Unsubscribe(sub2)

	require.Eventually(t, func() bool { return s.opened() == 2 },
		2*time.Second, 10*time.Millisecond, "una nueva suscripción abre un canal nuevo")
}

// gatedStream bloquea la primera apertura hasta que el test la libere, para
// reproducir carreras entre Subscribe/Unsubscribe y un Open en vuelo.
type gatedStream struct {
	fakeStream
	gate chan struct{}
	mu2  sync.Mutex
	open int
}

func (s *gatedStream) Open(ctx context.Context) (repository.StreamHandle, error) {
	s.mu2.Lock()
	s.open++
	first := s.open == 1
	s.mu2.Unlock()
	if first {
		<-s.gate
	}
	return s.fakeStream.Open(ctx)
}

func TestSubscribe_ResuscripcionDuranteAperturaEnVueloReabreElCanal(t *testing.T) {
	g := &fakeGateway{products: catalogo("a")}
	s := &gatedStream{gate: make(chan struct{})}
	uc := buildUseCase(g, s)
	defer uc.Close()

	// sub1 dispara la primera apertura, que queda bloqueada en el dial.
	sub1, _ := uc.Subscribe()
	recvState(t, sub1, state.StateLive)

	// sub1 se va con el Open aún en vuelo; sub2 entra antes de que retorne.
	uc.Unsubscribe(sub1)
	sub2, _ := uc.Subscribe()
	defer uc.Unsubscribe(sub2)

	// El dial pendiente retorna: su handle quedó obsoleto, pero sub2 sigue
	// esperando un canal, así que debe abrirse uno nuevo.
	close(s.gate)

	require.Eventually(t, func() bool { return s.opened() == 2 },
		2*time.Second, 10*time.Millisecond,
		"el interés vigente debe reabrir el canal tras descartar el dial obsoleto")
	require.Eventually(t, func() bool { return s.openClosed() == 1 },
		2*time.Second, 10*time.Millisecond, "el handle obsoleto debe cerrarse")

	// El canal nuevo alimenta a sub2 con normalidad.
	s.last().push(catalogo("z"))
	snap := recvState(t, sub2, state.StateLive)
	require.Len(t, snap.Products, 1)
	assert.Equal(t, "z", snap.Products[0].ID)
}

func TestClose_DespiertaATodosLosSuscriptores(t *testing.T) {
	g := &fakeGateway{products: catalogo("a")}
	s := &fakeStream{}
	uc := buildUseCase(g, s)

	sub, _ := uc.Subscribe()
	recvState(t, sub, state.StateLive)

	uc.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Updates():
			if !ok {
				return // canal cerrado: el suscriptor despertó
			}
		case <-deadline:
			t.Fatal("Close no cerró el canal de la suscripción")
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Push: reemplazo total y caída del canal
// ──────────────────────────────────────────────────────────────────────────────

func TestPush_ReemplazaLaColeccionCompleta(t *testing.T) {
	g := &fakeGateway{products: catalogo("a", "b", "c")}
	s := &fakeStream{}
	uc := buildUseCase(g, s)
	defer uc.Close()

	sub, _ := uc.Subscribe()
	defer uc.Unsubscribe(sub)
	recvState(t, sub, state.StateLive)
	require.Eventually(t, func() bool { return s.opened() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.last().push(catalogo("z"))

	snap := recvState(t, sub, state.StateLive)
	require.Len(t, snap.Products, 1, "el push reemplaza la colección entera, sin merge")
	assert.Equal(t, "z", snap.Products[0].ID)
}

func TestPush_CaidaRemotaMarcaErrorConservandoDatos(t *testing.T) {
	g := &fakeGateway{products: catalogo("a")}
	s := &fakeStream{}
	uc := buildUseCase(g, s)
	defer uc.Close()

	sub, _ := uc.Subscribe()
	defer uc.Unsubscribe(sub)
	recvState(t, sub, state.StateLive)
	require.Eventually(t, func() bool { return s.opened() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.last().failRemote(errors.New("conexión perdida"))

	snap := recvState(t, sub, state.StateError)
	assert.ErrorIs(t, snap.Err, domain.ErrStreamClosed)
	assert.Len(t, snap.Products, 1, "la caída del canal no descarta el último valor bueno")
}

// ──────────────────────────────────────────────────────────────────────────────
// Lectura y reintento
// ──────────────────────────────────────────────────────────────────────────────

func TestList_EnErrorReintentaElFetch(t *testing.T) {
	g := &fakeGateway{listErr: errors.New("backend caído")}
	s := &fakeStream{openErr: errors.New("sin stream")}
	uc := buildUseCase(g, s)
	defer uc.Close()

	snap := uc.List(context.Background())
	assert.Equal(t, state.StateError, snap.State)

	// El backend se recupera; la siguiente lectura es también el reintento.
	g.mu.Lock()
	g.listErr = nil
	g.products = catalogo("a")
	g.mu.Unlock()

	snap = uc.List(context.Background())
	assert.Equal(t, state.StateLive, snap.State)
	assert.Len(t, snap.Products, 1)
}

func TestList_ConCacheVivaNoVuelveAlBackend(t *testing.T) {
	g := &fakeGateway{products: catalogo("a")}
	s := &fakeStream{openErr: errors.New("sin stream")}
	uc := buildUseCase(g, s)
	defer uc.Close()

	uc.List(context.Background())
	calls := g.calls()

	uc.List(context.Background())
	assert.Equal(t, calls, g.calls(), "con caché viva List no debe re-fetchear")
}

// ──────────────────────────────────────────────────────────────────────────────
// Mutaciones y reconciliación
// ──────────────────────────────────────────────────────────────────────────────

func TestCreate_ConCanalVivoNoRefetchea(t *testing.T) {
	g := &fakeGateway{products: catalogo("a")}
	s := &fakeStream{}
	uc := buildUseCase(g, s)
	defer uc.Close()

	sub, _ := uc.Subscribe()
	defer uc.Unsubscribe(sub)
	recvState(t, sub, state.StateLive)
	require.Eventually(t, func() bool { return s.opened() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Confirmar que el canal quedó instalado entregando un push a través de él.
	s.last().push(catalogo("a"))
	recvState(t, sub, state.StateLive)

	calls := g.calls()
	resp, err := uc.Create(context.Background(), dto.CreateProductRequest{
		Name:   "impresora",
		Price:  decimal.NewFromInt(100),
		Stock:  1,
		Status: entity.StatusAvailable,
	})
	require.NoError(t, err)
	assert.Equal(t, "nuevo-id", resp.ID)
	assert.Equal(t, calls, g.calls(),
		"con canal push vivo la mutación no debe disparar re-fetch; el push reconcilia")
}

func TestCreate_SinCanalVivoRefetcheaEnLinea(t *testing.T) {
	g := &fakeGateway{products: catalogo("a")}
	s := &fakeStream{openErr: errors.New("sin stream")}
	uc := buildUseCase(g, s)
	defer uc.Close()

	uc.List(context.Background())
	calls := g.calls()

	_, err := uc.Create(context.Background(), dto.CreateProductRequest{
		Name:   "impresora",
		Price:  decimal.NewFromInt(100),
		Stock:  1,
		Status: entity.StatusAvailable,
	})
	require.NoError(t, err)
	assert.Equal(t, calls+1, g.calls(), "sin canal push la mutación reconcilia por re-fetch")
}

func TestCreate_ValidacionRechazaEntradaInvalida(t *testing.T) {
	g := &fakeGateway{}
	uc := buildUseCase(g, &fakeStream{})
	defer uc.Close()

	_, err := uc.Create(context.Background(), dto.CreateProductRequest{Name: ""})
	assert.Error(t, err, "nombre vacío debe rechazarse antes de llegar al backend")

	_, err = uc.Create(context.Background(), dto.CreateProductRequest{
		Name:  "x",
		Price: decimal.NewFromInt(-5),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "precio negativo debe rechazarse")
}

func TestUpdate_PropagaNotFound(t *testing.T) {
	g := &fakeGateway{updateErr: domain.ErrNotFound}
	uc := buildUseCase(g, &fakeStream{openErr: errors.New("sin stream")})
	defer uc.Close()

	nombre := "nuevo nombre"
	err := uc.Update(context.Background(), "no-existe", dto.UpdateProductRequest{Name: &nombre})
	assert.ErrorIs(t, err, domain.ErrNotFound,
		"el caller decide qué hacer cuando la fila desapareció")
}

func TestDelete_NotFoundSeTrataComoSatisfecho(t *testing.T) {
	g := &fakeGateway{deleteErr: domain.ErrNotFound}
	uc := buildUseCase(g, &fakeStream{openErr: errors.New("sin stream")})
	defer uc.Close()

	err := uc.Delete(context.Background(), "ya-borrado")
	assert.NoError(t, err, "borrar una fila ya ausente es idempotente")
}

func TestDelete_OtrosErroresSePropagan(t *testing.T) {
	g := &fakeGateway{deleteErr: domain.ErrBackendUnavailable}
	uc := buildUseCase(g, &fakeStream{openErr: errors.New("sin stream")})
	defer uc.Close()

	err := uc.Delete(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestDelete_SinIDEsInvalido(t *testing.T) {
	uc := buildUseCase(&fakeGateway{}, &fakeStream{})
	defer uc.Close()

	err := uc.Delete(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
