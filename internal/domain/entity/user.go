package entity

// Roles de usuario del dashboard.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// User identidad autenticada por el proveedor externo (vía cookie de sesión).
type User struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
