package services

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/LovationAdmin/expense-api/models"
	"github.com/LovationAdmin/expense-api/utils"
)

const (
	ChangeCreated = "created"
	ChangeDeleted = "deleted"
)

// ChangeNotifier is told about writes so connected clients can refresh.
type ChangeNotifier interface {
	TransactionsChanged(userID, action string)
}

// Ledger performs owner-scoped CRUD. It never trusts a client-supplied
// user id: every call takes the user resolved by Authenticate.
type Ledger struct {
	identity IdentityProvider
	store    TransactionStore
	policy   ConfirmationPolicy
	notifier ChangeNotifier
	logger   *zap.Logger
}

func NewLedger(identity IdentityProvider, store TransactionStore, policy ConfirmationPolicy, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{identity: identity, store: store, policy: policy, logger: logger}
}

// SetNotifier registers the change listener. Nil disables notifications.
func (l *Ledger) SetNotifier(n ChangeNotifier) { l.notifier = n }

// BearerToken extracts the token from an Authorization header value.
// The scheme is matched case-insensitively.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Authenticate resolves a bearer token to its user.
func (l *Ledger) Authenticate(ctx context.Context, token string) (*models.User, error) {
	const op = "ledger.Authenticate"

	if token == "" {
		return nil, authError(op, "No authentication token provided", nil)
	}

	user, err := l.identity.GetUser(ctx, token)
	if err != nil {
		if KindOf(err) == KindProvider {
			return nil, err
		}
		return nil, authError(op, "Invalid or expired token", err)
	}
	if user == nil || user.ID == "" {
		return nil, authError(op, "Invalid or expired token", nil)
	}
	if l.policy.RequiresConfirmation(user) {
		return nil, authError(op, "Invalid or expired token", errors.New("email not confirmed"))
	}
	return user, nil
}

// List returns the user's transactions, newest first.
func (l *Ledger) List(ctx context.Context, user *models.User) ([]models.Transaction, error) {
	txs, err := l.store.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, wrapProvider("ledger.List", err)
	}
	l.logger.Debug("transactions listed",
		zap.String("user_id", utils.MaskID(user.ID)),
		zap.Int("count", len(txs)))
	return txs, nil
}

// Create validates req and stores it with the owner forced to user.
func (l *Ledger) Create(ctx context.Context, user *models.User, req models.CreateTransactionRequest) (*models.Transaction, error) {
	const op = "ledger.Create"

	tx, err := buildTransaction(op, req)
	if err != nil {
		return nil, err
	}
	tx.UserID = user.ID

	created, err := l.store.Insert(ctx, tx)
	if err != nil {
		return nil, wrapProvider(op, err)
	}

	l.logger.Info("transaction created",
		zap.String("user_id", utils.MaskID(user.ID)),
		zap.Int64("id", created.ID),
		zap.String("type", created.Type),
		zap.String("amount", utils.MaskAmount(created.Amount)))
	l.notify(user.ID, ChangeCreated)
	return created, nil
}

func buildTransaction(op string, req models.CreateTransactionRequest) (models.Transaction, error) {
	description := strings.TrimSpace(req.Description)
	txType := strings.ToLower(strings.TrimSpace(req.Type))

	if description == "" || req.Amount == nil || txType == "" {
		return models.Transaction{}, validationError(op, "Missing required fields: description, amount, type")
	}

	amount := float64(*req.Amount)
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return models.Transaction{}, validationError(op, "Amount must be a positive number")
	}

	if txType != models.TypeIncome && txType != models.TypeExpense {
		return models.Transaction{}, validationError(op, "Type must be 'income' or 'expense'")
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = models.DefaultCategory
	}

	return models.Transaction{
		Description: description,
		Amount:      amount,
		Type:        txType,
		Category:    category,
	}, nil
}

// Delete removes the transaction only if user owns it. A miss is not an
// error: the call is idempotent and the outcome is only logged.
func (l *Ledger) Delete(ctx context.Context, user *models.User, id int64) error {
	const op = "ledger.Delete"

	if id <= 0 {
		return validationError(op, "Transaction ID required")
	}

	n, err := l.store.DeleteOwned(ctx, id, user.ID)
	if err != nil {
		return wrapProvider(op, err)
	}

	if n == 0 {
		l.logger.Warn("delete matched no rows",
			zap.String("user_id", utils.MaskID(user.ID)),
			zap.Int64("id", id))
		return nil
	}

	l.logger.Info("transaction deleted",
		zap.String("user_id", utils.MaskID(user.ID)),
		zap.Int64("id", id))
	l.notify(user.ID, ChangeDeleted)
	return nil
}

// Summary totals the user's transactions.
func (l *Ledger) Summary(ctx context.Context, user *models.User) (*models.Summary, error) {
	txs, err := l.List(ctx, user)
	if err != nil {
		return nil, err
	}
	summary := models.Summarize(txs)
	return &summary, nil
}

func (l *Ledger) notify(userID, action string) {
	if l.notifier != nil {
		l.notifier.TransactionsChanged(userID, action)
	}
}
