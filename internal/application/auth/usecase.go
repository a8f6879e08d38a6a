package auth

import (
	"context"
	"errors"

	"github.com/rafiq-567/eagle3d-dashboard/internal/application/dto"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/state"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/repository"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/logger"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/validator"
)

// UseCase casos de uso de sesión: login, logout y rehidratación de identidad.
// El login/logout real lo hace el proveedor externo; aquí solo se mantiene la
// sesión del proceso y el valor de la cookie que se reenvía al navegador.
type UseCase struct {
	identity repository.IdentityGateway
	store    *state.Store
	log      *logger.Logger
}

// NewUseCase construye el caso de uso de sesión.
func NewUseCase(identity repository.IdentityGateway, store *state.Store, log *logger.Logger) *UseCase {
	return &UseCase{identity: identity, store: store, log: log}
}

// Login intercambia el idToken por una sesión del backend. Devuelve la
// respuesta y el valor de la cookie de sesión para reenviar al navegador.
// Un fallo de autenticación no toca ningún otro estado en caché.
func (uc *UseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, string, error) {
	if err := validator.Struct(in); err != nil {
		return nil, "", err
	}
	user, cookie, err := uc.identity.Login(ctx, in.IDToken)
	if err != nil {
		return nil, "", err
	}
	uc.store.SetSession(user)
	uc.log.Info().Str("email", user.Email).Msg("sesión iniciada")
	return &dto.LoginResponse{
		Message: "login exitoso",
		User:    toUserResponse(user),
	}, cookie, nil
}

// Logout invalida la sesión en el backend y limpia la local. La sesión local
// se limpia aunque el backend falle: el usuario pidió salir.
func (uc *UseCase) Logout(ctx context.Context) error {
	err := uc.identity.Logout(ctx)
	uc.store.ClearSession()
	if err != nil {
		uc.log.Warn().Err(err).Msg("logout remoto falló; sesión local limpiada")
		return err
	}
	uc.log.Info().Msg("sesión cerrada")
	return nil
}

// Hydrate chequeo de identidad, una sola vez por arranque (sin polling).
// Con cookie inválida limpia la sesión; un fallo de red deja todo como está.
func (uc *UseCase) Hydrate(ctx context.Context, sessionCookie string) (*entity.User, error) {
	user, err := uc.identity.Me(ctx, sessionCookie)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrInvalidToken) {
			uc.store.ClearSession()
		}
		return nil, err
	}
	uc.store.SetSession(user)
	return user, nil
}

// Session devuelve la identidad actual del proceso o nil.
func (uc *UseCase) Session() *entity.User {
	return uc.store.Session()
}

func toUserResponse(u *entity.User) dto.UserResponse {
	if u == nil {
		return dto.UserResponse{}
	}
	return dto.UserResponse{UID: u.UID, Email: u.Email, Role: u.Role}
}
