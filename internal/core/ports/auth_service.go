package ports

import (
	"context"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// RegisterInput carries the fields accepted by the registration endpoint.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}
