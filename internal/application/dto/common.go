package dto

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Retryable indica que la operación puede reintentarse tal cual
	// (fallos de red/backend, no de validación).
	Retryable bool `json:"retryable,omitempty"`
}

// MessageResponse respuesta mínima de confirmación.
type MessageResponse struct {
	Message string `json:"message"`
}
