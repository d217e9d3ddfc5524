package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/LovationAdmin/expense-api/models"
	"github.com/LovationAdmin/expense-api/utils"
)

// IdentityProvider is the external collaborator that owns users and
// sessions. Implementations return *Error values.
type IdentityProvider interface {
	// CreateUser registers a new account. When autoConfirm is false the
	// provider starts its own out-of-band confirmation.
	CreateUser(ctx context.Context, email, password string, autoConfirm bool) (*models.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	// GetUser resolves a bearer access token.
	GetUser(ctx context.Context, accessToken string) (*models.User, error)
}

// EmailConfirmer is implemented by providers that handle the confirmation
// link themselves.
type EmailConfirmer interface {
	ConfirmEmail(ctx context.Context, token string) (*models.User, error)
}

// ConfirmationPolicy decides whether a fresh account may sign in.
type ConfirmationPolicy string

const (
	// ConfirmAuto creates accounts already confirmed.
	ConfirmAuto ConfirmationPolicy = "auto"
	// ConfirmEmail requires the emailed link before signin succeeds.
	ConfirmEmail ConfirmationPolicy = "email"
)

// ParseConfirmationPolicy accepts "auto" or "email" in any case.
func ParseConfirmationPolicy(s string) (ConfirmationPolicy, error) {
	switch ConfirmationPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ConfirmAuto:
		return ConfirmAuto, nil
	case ConfirmEmail:
		return ConfirmEmail, nil
	default:
		return "", fmt.Errorf("unknown confirmation policy %q (want auto or email)", s)
	}
}

// RequiresConfirmation reports whether u must not be served under p.
func (p ConfirmationPolicy) RequiresConfirmation(u *models.User) bool {
	return p == ConfirmEmail && !u.EmailConfirmed
}

// Gateway is the identity surface: signup and signin delegated to the
// provider, with the confirmation policy enforced here.
type Gateway struct {
	provider IdentityProvider
	policy   ConfirmationPolicy
	logger   *zap.Logger
}

func NewGateway(provider IdentityProvider, policy ConfirmationPolicy, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{provider: provider, policy: policy, logger: logger}
}

// Signup creates an account. The provider assigns the identifier.
func (g *Gateway) Signup(ctx context.Context, email, password string) (*models.SignupResult, error) {
	const op = "gateway.Signup"

	email = NormalizeEmail(email)
	if err := validateCredentials(op, models.Credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}

	user, err := g.provider.CreateUser(ctx, email, password, g.policy == ConfirmAuto)
	if err != nil {
		g.logger.Warn("signup failed",
			zap.String("email", utils.MaskEmail(email)),
			zap.Stringer("kind", KindOf(err)),
			zap.Error(err))
		return nil, wrapProvider(op, err)
	}

	g.logger.Info("signup succeeded",
		zap.String("user_id", utils.MaskID(user.ID)),
		zap.Bool("email_confirmed", user.EmailConfirmed))

	return &models.SignupResult{
		User:              user.Ref(),
		NeedsConfirmation: !user.EmailConfirmed,
	}, nil
}

// Signin exchanges credentials for a session. Under ConfirmEmail an
// unconfirmed account is rejected even when the password matches.
func (g *Gateway) Signin(ctx context.Context, email, password string) (*models.Session, error) {
	const op = "gateway.Signin"

	email = NormalizeEmail(email)
	if err := validateCredentials(op, models.Credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}

	session, err := g.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		g.logger.Warn("signin failed",
			zap.String("email", utils.MaskEmail(email)),
			zap.Stringer("kind", KindOf(err)),
			zap.Error(err))
		return nil, wrapProvider(op, err)
	}

	if g.policy.RequiresConfirmation(&session.User) {
		g.logger.Info("signin blocked, email not confirmed",
			zap.String("user_id", utils.MaskID(session.User.ID)))
		return nil, credentialsError(op, "Email not confirmed", nil)
	}

	g.logger.Info("signin succeeded", zap.String("user_id", utils.MaskID(session.User.ID)))
	return session, nil
}

// ConfirmEmail completes out-of-band confirmation when the provider
// supports it.
func (g *Gateway) ConfirmEmail(ctx context.Context, token string) (*models.User, error) {
	const op = "gateway.ConfirmEmail"

	confirmer, ok := g.provider.(EmailConfirmer)
	if !ok {
		return nil, validationError(op, "email confirmation is handled by the identity provider")
	}
	if strings.TrimSpace(token) == "" {
		return nil, validationError(op, "confirmation token required")
	}

	user, err := confirmer.ConfirmEmail(ctx, token)
	if err != nil {
		return nil, wrapProvider(op, err)
	}
	g.logger.Info("email confirmed", zap.String("user_id", utils.MaskID(user.ID)))
	return user, nil
}

// wrapProvider passes classified errors through and classifies the rest
// as provider failures.
func wrapProvider(op string, err error) error {
	if KindOf(err) != 0 {
		return err
	}
	return providerError(op, err)
}
