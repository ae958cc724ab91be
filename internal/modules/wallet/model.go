// README: Wallet aggregate and append-only ledger transaction model.
package wallet

import (
	"time"

	"dot/internal/types"
)

type Wallet struct {
	ID        types.ID
	UserID    types.ID
	Balance   types.Money
	UpdatedAt time.Time
}

type TransactionType string

const (
	TxTopUp     TransactionType = "top_up"
	TxDeduction TransactionType = "deduction"
	TxRefund    TransactionType = "refund"
)

// Transaction is one immutable ledger entry. Amount is always a positive
// magnitude; the sign is implied by Type.
type Transaction struct {
	ID          types.ID
	WalletID    types.ID
	Type        TransactionType
	Amount      types.Money
	Description string
	OrderID     *types.ID
	AdminID     *types.ID
	CreatedAt   time.Time
}
