package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction kinds
const (
	TypeDeposit  = "deposit"
	TypeWithdraw = "withdraw"
)

// Transaction represents a single ledger movement
type Transaction struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}
