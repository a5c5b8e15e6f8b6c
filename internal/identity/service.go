package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/platform/sentinel"
	"vettinghub/pkg/requestcontext"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id domain.UserID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, u *User) error
}

// Service authenticates users and manages accounts.
type Service struct {
	store  Store
	issuer *TokenIssuer
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService constructs the identity service.
func NewService(store Store, issuer *TokenIssuer, opts ...Option) *Service {
	s := &Service{store: store, issuer: issuer, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account. Only a platform operator may create users;
// organisation membership is granted separately.
func (s *Service) Register(ctx context.Context, actor tenancy.Principal, username, email, password string, superuser bool) (*User, error) {
	if !actor.Superuser {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "user registration requires a platform operator")
	}
	u, err := NewUser(domain.UserID(uuid.New()), username, email, password, superuser, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "username %q is taken", u.Username)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	s.logger.Info("user registered", "user_id", u.ID.String(), "superuser", superuser)
	return u, nil
}

// Login verifies the credential and mints a bearer token. Unknown usernames
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*User, string, error) {
	denied := dErrors.New(dErrors.CodeAccessDenied, "invalid credentials")

	u, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "", denied
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !u.Active || !u.CheckPassword(password) {
		return nil, "", denied
	}
	token, err := s.issuer.Mint(u, requestcontext.Now(ctx))
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user logged in", "user_id", u.ID.String())
	return u, token, nil
}

// PrincipalFromToken verifies a bearer token and loads the principal it
// names. The superuser flag comes from the stored user, not the claim, so a
// demotion takes effect on the next request rather than at token expiry.
func (s *Service) PrincipalFromToken(ctx context.Context, raw string) (tenancy.Principal, error) {
	userID, _, err := s.issuer.Verify(raw)
	if err != nil {
		return tenancy.Principal{}, err
	}
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return tenancy.Principal{}, dErrors.New(dErrors.CodeAccessDenied, "invalid token")
		}
		return tenancy.Principal{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !u.Active {
		return tenancy.Principal{}, dErrors.New(dErrors.CodeAccessDenied, "invalid token")
	}
	return tenancy.Principal{UserID: u.ID, Superuser: u.Superuser}, nil
}

// Deactivate disables an account. Platform operator only.
func (s *Service) Deactivate(ctx context.Context, actor tenancy.Principal, userID domain.UserID) error {
	if !actor.Superuser {
		return dErrors.New(dErrors.CodeAccessDenied, "user deactivation requires a platform operator")
	}
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !u.Active {
		return dErrors.New(dErrors.CodeConflict, "user is already inactive")
	}
	u.Active = false
	if err := s.store.Update(ctx, u); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate user")
	}
	s.logger.Info("user deactivated", "user_id", userID.String())
	return nil
}
