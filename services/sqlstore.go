package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/LovationAdmin/expense-api/models"
)

// Dialect selects placeholder syntax and error decoding for a driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Rebind rewrites ? placeholders to $1..$n for Postgres.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// TransactionStore is the data collaborator: one collection keyed by owner.
// Every method filters by owner itself; callers cannot bypass it.
type TransactionStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]models.Transaction, error)
	Insert(ctx context.Context, tx models.Transaction) (*models.Transaction, error)
	// DeleteOwned removes the row matching both id and owner and returns
	// the number of rows removed.
	DeleteOwned(ctx context.Context, id int64, ownerID string) (int64, error)
}

// SQLStore keeps transactions in a relational table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

// WithClock replaces the timestamp source, for tests.
func (s *SQLStore) WithClock(now func() time.Time) *SQLStore {
	s.now = now
	return s
}

func (s *SQLStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT id, user_id, description, amount, type, category, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := []models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Description, &tx.Amount, &tx.Type, &tx.Category, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.CreatedAt = tx.CreatedAt.UTC()
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func (s *SQLStore) Insert(ctx context.Context, tx models.Transaction) (*models.Transaction, error) {
	tx.CreatedAt = s.now().UTC()

	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		INSERT INTO transactions (user_id, description, amount, type, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), tx.UserID, tx.Description, tx.Amount, tx.Type, tx.Category, tx.CreatedAt).Scan(&tx.ID)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return &tx, nil
}

func (s *SQLStore) DeleteOwned(ctx context.Context, id int64, ownerID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		DELETE FROM transactions
		WHERE id = ? AND user_id = ?
	`), id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete transaction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete transaction: rows affected: %w", err)
	}
	return n, nil
}
