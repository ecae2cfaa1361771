package service

import (
	"github.com/shopspring/decimal"

	"github.com/akarpov/ledger-service/internal/models"
)

// BalanceOf folds a transaction history into the current balance: deposits
// add, withdrawals subtract, starting at zero. The fold is order-independent.
func BalanceOf(txs []models.Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, tx := range txs {
		if tx.Type == models.TypeDeposit {
			balance = balance.Add(tx.Amount)
		} else {
			balance = balance.Sub(tx.Amount)
		}
	}
	return balance
}
