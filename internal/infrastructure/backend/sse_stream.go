package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/repository"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/config"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/logger"
)

var _ repository.ProductStream = (*SSEStream)(nil)

// SSEStream canal push sobre Server-Sent Events: GET <BaseURL><StreamPath>
// con Accept: text/event-stream. Cada evento trae la colección completa de
// productos; no hay merges parciales ni reconexión automática.
type SSEStream struct {
	url  string
	http *http.Client // sin timeout global: la conexión es de larga vida
	log  *logger.Logger
}

// NewSSEStream construye la fábrica del canal. httpClient debe compartir el
// cookie jar del cliente REST para que viaje la sesión.
func NewSSEStream(cfg config.BackendConfig, httpClient *http.Client, log *logger.Logger) *SSEStream {
	return &SSEStream{
		url:  strings.TrimRight(cfg.BaseURL, "/") + cfg.StreamPath,
		http: httpClient,
		log:  log,
	}
}

// Open abre la conexión SSE. El handle se cierra al fallar la lectura, al
// cancelar ctx o al llamar Close; reconectar es decisión del caller.
func (s *SSEStream) Open(ctx context.Context) (repository.StreamHandle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("sse: construir petición: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sse: abrir stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("sse: abrir stream: HTTP %d", resp.StatusCode)
	}

	h := &sseHandle{
		ch:   make(chan []entity.Product),
		body: resp.Body,
		log:  s.log,
	}
	go h.loop()
	return h, nil
}

// sseHandle conexión SSE viva. Err() distingue la caída remota (causa) del
// cierre local (nil).
type sseHandle struct {
	ch   chan []entity.Product
	body io.ReadCloser
	log  *logger.Logger

	mu     sync.Mutex
	closed bool
	err    error
}

func (h *sseHandle) Snapshots() <-chan []entity.Product {
	return h.ch
}

func (h *sseHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close corta la conexión. Idempotente; tras Close, Err() devuelve nil.
func (h *sseHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()
	return h.body.Close()
}

// loop parsea el framing text/event-stream: acumula líneas "data:" hasta la
// línea en blanco que delimita cada evento.
func (h *sseHandle) loop() {
	defer close(h.ch)

	sc := bufio.NewScanner(h.body)
	// Colecciones grandes llegan en un solo evento.
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var data []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(data) > 0 {
				h.dispatch(strings.Join(data, "\n"))
				data = data[:0]
			}
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(rest, " "))
		}
		// event:, id:, retry: y comentarios se ignoran.
	}

	err := sc.Err()
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		if err == nil {
			err = io.EOF // el servidor cerró limpiamente
		}
		h.err = err
	}
	h.mu.Unlock()
	_ = h.body.Close()
}

// dispatch decodifica un evento y lo entrega. Un payload malformado es un
// error del emisor: se loggea y se ignora para no tumbar la vista.
func (h *sseHandle) dispatch(payload string) {
	var products []entity.Product
	if err := json.Unmarshal([]byte(payload), &products); err != nil {
		h.log.Error().Err(err).Msg("sse: payload inválido, evento descartado")
		return
	}
	h.ch <- products
}
