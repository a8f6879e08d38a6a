package repository

import (
	"context"

	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
)

// IdentityGateway proveedor externo de identidad (login/logout/me).
// El backend emite una cookie de sesión opaca; este cliente no la interpreta.
type IdentityGateway interface {
	// Login intercambia el idToken por una sesión. Devuelve el usuario y el
	// valor de la cookie de sesión emitida por el backend.
	Login(ctx context.Context, idToken string) (*entity.User, string, error)
	// Logout invalida la sesión en el backend.
	Logout(ctx context.Context) error
	// Me verifica la cookie contra el backend y devuelve la identidad.
	// Devuelve domain.ErrUnauthorized si la sesión no es válida.
	Me(ctx context.Context, sessionCookie string) (*entity.User, error)
}
