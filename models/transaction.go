package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeIncome  = "income"
	TypeExpense = "expense"

	DefaultCategory = "other"
)

// Transaction is one ledger entry owned by exactly one user.
type Transaction struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// Amount accepts a JSON number or a numeric string. A string that does not
// parse becomes NaN so that validation rejects it instead of the decoder.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			f = math.NaN()
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// CreateTransactionRequest is the body of POST /transactions. Any owner,
// id or timestamp sent by the client is not part of it and is dropped.
type CreateTransactionRequest struct {
	Description string  `json:"description"`
	Amount      *Amount `json:"amount"`
	Type        string  `json:"type"`
	Category    string  `json:"category,omitempty"`
}

// DeleteTransactionRequest is the body of DELETE /transactions.
type DeleteTransactionRequest struct {
	ID json.RawMessage `json:"id"`
}

var (
	ErrMissingID = errors.New("transaction id missing")
	ErrInvalidID = errors.New("transaction id must be a positive integer")
)

// ParseTransactionID reads an id sent either as a JSON number or a string.
func ParseTransactionID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return 0, ErrMissingID
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, ErrInvalidID
		}
		text = strings.TrimSpace(text)
	}

	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// DeleteResponse is returned whether or not a row matched.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ============================================================================
// SUMMARY
// ============================================================================

// Summary is the running balance of a set of transactions.
type Summary struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
	Count   int     `json:"count"`
}

// Summarize totals income and expense in decimal arithmetic so that long
// ledgers do not drift. Unknown types are counted but not summed.
func Summarize(txs []Transaction) Summary {
	income := decimal.Zero
	expense := decimal.Zero

	for _, tx := range txs {
		amount := decimal.NewFromFloat(tx.Amount)
		switch tx.Type {
		case TypeIncome:
			income = income.Add(amount)
		case TypeExpense:
			expense = expense.Add(amount)
		}
	}

	return Summary{
		Income:  income.InexactFloat64(),
		Expense: expense.InexactFloat64(),
		Balance: income.Sub(expense).InexactFloat64(),
		Count:   len(txs),
	}
}
