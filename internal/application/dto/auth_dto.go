package dto

// LoginRequest entrada de login: el idToken lo emite el proveedor de
// identidad externo y aquí es opaco.
type LoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// UserResponse identidad de la sesión actual.
type UserResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResponse salida de login.
type LoginResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// MeResponse salida del chequeo de identidad.
type MeResponse struct {
	User UserResponse `json:"user"`
}
