package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LovationAdmin/expense-api/models"
	"github.com/LovationAdmin/expense-api/utils"
)

const confirmTokenTTL = 24 * time.Hour

// ConfirmationSender delivers the confirmation link for new accounts.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, to, link string) error
}

// LocalIdentity is a self-hosted identity provider: users live in the same
// database as the ledger and access tokens are HS256 JWTs.
type LocalIdentity struct {
	db        *sql.DB
	dialect   Dialect
	tokens    *utils.TokenIssuer
	accessTTL time.Duration
	publicURL string
	sender    ConfirmationSender
	logger    *zap.Logger
	now       func() time.Time
}

type LocalIdentityConfig struct {
	AccessTTL time.Duration
	// PublicURL is the externally reachable base used in confirmation links.
	PublicURL string
	Sender    ConfirmationSender
	Logger    *zap.Logger
}

func NewLocalIdentity(db *sql.DB, dialect Dialect, tokens *utils.TokenIssuer, cfg LocalIdentityConfig) *LocalIdentity {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &LocalIdentity{
		db:        db,
		dialect:   dialect,
		tokens:    tokens,
		accessTTL: cfg.AccessTTL,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		sender:    cfg.Sender,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (p *LocalIdentity) WithClock(now func() time.Time) *LocalIdentity {
	p.now = now
	return p
}

func (p *LocalIdentity) CreateUser(ctx context.Context, email, password string, autoConfirm bool) (*models.User, error) {
	const op = "local.CreateUser"

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, providerError(op, fmt.Errorf("hash password: %w", err))
	}

	now := p.now().UTC()
	user := &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: now,
	}
	var confirmedAt sql.NullTime
	if autoConfirm {
		confirmedAt = sql.NullTime{Time: now, Valid: true}
		user.EmailConfirmed = true
		user.EmailConfirmedAt = &now
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, providerError(op, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, p.dialect.Rebind(`
		INSERT INTO users (id, email, password_hash, email_confirmed_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), user.ID, user.Email, hash, confirmedAt, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictError(op, "User already registered", err)
		}
		return nil, providerError(op, fmt.Errorf("insert user: %w", err))
	}

	if !autoConfirm {
		if err := p.sendConfirmation(ctx, user); err != nil {
			return nil, providerError(op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, providerError(op, fmt.Errorf("commit: %w", err))
	}
	return user, nil
}

func (p *LocalIdentity) sendConfirmation(ctx context.Context, user *models.User) error {
	if p.sender == nil {
		return errors.New("no confirmation sender configured")
	}
	token, _, err := p.tokens.Issue(user.ID, user.Email, utils.PurposeConfirm, confirmTokenTTL)
	if err != nil {
		return err
	}
	link := p.publicURL + "/auth/confirm?token=" + url.QueryEscape(token)
	if err := p.sender.SendConfirmation(ctx, user.Email, link); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}
	return nil
}

func (p *LocalIdentity) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	const op = "local.SignInWithPassword"

	user, err := p.userBy(ctx, "email", email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, providerError(op, err)
	}

	var hash string
	if user != nil {
		hash = user.PasswordHash
	}
	if !utils.CheckPasswordTiming(password, hash) {
		return nil, credentialsError(op, "Invalid login credentials", nil)
	}
	user.PasswordHash = ""

	token, expiresAt, err := p.tokens.Issue(user.ID, user.Email, utils.PurposeAccess, p.accessTTL)
	if err != nil {
		return nil, providerError(op, err)
	}

	return &models.Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(p.accessTTL / time.Second),
		ExpiresAt:   expiresAt.Unix(),
		User:        *user,
	}, nil
}

func (p *LocalIdentity) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "local.GetUser"

	claims, err := p.tokens.Parse(accessToken, utils.PurposeAccess)
	if err != nil {
		return nil, authError(op, "Invalid or expired token", err)
	}

	user, err := p.userBy(ctx, "id", claims.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authError(op, "Invalid or expired token", err)
	}
	if err != nil {
		return nil, providerError(op, err)
	}
	return user, nil
}

func (p *LocalIdentity) ConfirmEmail(ctx context.Context, token string) (*models.User, error) {
	const op = "local.ConfirmEmail"

	claims, err := p.tokens.Parse(token, utils.PurposeConfirm)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: op, Message: "confirmation link is invalid or expired", Err: err}
	}

	_, err = p.db.ExecContext(ctx, p.dialect.Rebind(`
		UPDATE users
		SET email_confirmed_at = COALESCE(email_confirmed_at, ?)
		WHERE id = ?
	`), p.now().UTC(), claims.Subject)
	if err != nil {
		return nil, providerError(op, fmt.Errorf("confirm user: %w", err))
	}

	user, err := p.userBy(ctx, "id", claims.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Kind: KindValidation, Op: op, Message: "confirmation link is invalid or expired", Err: err}
	}
	if err != nil {
		return nil, providerError(op, err)
	}
	return user, nil
}

// userBy loads a user by "id" or "email".
func (p *LocalIdentity) userBy(ctx context.Context, column, value string) (*models.User, error) {
	if column != "id" && column != "email" {
		return nil, fmt.Errorf("unsupported lookup column %q", column)
	}

	var (
		user        models.User
		confirmedAt sql.NullTime
	)
	err := p.db.QueryRowContext(ctx, p.dialect.Rebind(`
		SELECT id, email, password_hash, email_confirmed_at, created_at
		FROM users
		WHERE `+column+` = ?
	`), value).Scan(&user.ID, &user.Email, &user.PasswordHash, &confirmedAt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	user.CreatedAt = user.CreatedAt.UTC()
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		user.EmailConfirmed = true
		user.EmailConfirmedAt = &t
	}
	return &user, nil
}
