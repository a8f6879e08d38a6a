package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrInvalidToken       = errors.New("token inválido o expirado")
	ErrBackendUnavailable = errors.New("backend no disponible")
	ErrStreamClosed       = errors.New("canal de actualizaciones cerrado")
)
