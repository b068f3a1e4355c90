package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WalletKind string

const (
	WalletKindUser        WalletKind = "user"
	WalletKindDistributor WalletKind = "distributor"
)

// Wallet holds the balance of exactly one account. Version is bumped on every
// balance change and checked on update.
type Wallet struct {
	ID               int64           `json:"id" db:"id"`
	OwnerID          int64           `json:"owner_id" db:"owner_id"`
	Kind             WalletKind      `json:"kind" db:"kind"`
	Balance          decimal.Decimal `json:"balance" db:"balance"`
	TotalCredited    decimal.Decimal `json:"total_credited" db:"total_credited"`
	TotalDistributed decimal.Decimal `json:"total_distributed" db:"total_distributed"`
	Version          int             `json:"-" db:"version"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

type TransactionKind string

const (
	TxDeposit          TransactionKind = "deposit"
	TxWithdrawal       TransactionKind = "withdrawal"
	TxBetPlaced        TransactionKind = "bet_placed"
	TxBetWon           TransactionKind = "bet_won"
	TxBetLost          TransactionKind = "bet_lost"
	TxInsurancePremium TransactionKind = "insurance_premium"
	TxInsuranceRefund  TransactionKind = "insurance_refund"
	TxCredit           TransactionKind = "credit"
	TxDebit            TransactionKind = "debit"
	TxRefund           TransactionKind = "refund"
)

// Transaction is an immutable ledger entry. BalanceAfter is the wallet balance
// right after the entry was applied.
type Transaction struct {
	ID            int64           `json:"id" db:"id"`
	WalletID      int64           `json:"wallet_id" db:"wallet_id"`
	OwnerID       int64           `json:"owner_id" db:"owner_id"`
	Kind          TransactionKind `json:"kind" db:"kind"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after" db:"balance_after"`
	Description   string          `json:"description" db:"description"`
	RelatedUserID *int64          `json:"related_user_id,omitempty" db:"related_user_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

type DepositRequestStatus string

const (
	DepositPending   DepositRequestStatus = "pending"
	DepositApproved  DepositRequestStatus = "approved"
	DepositRejected  DepositRequestStatus = "rejected"
	DepositCancelled DepositRequestStatus = "cancelled"
)

type DepositRequest struct {
	ID            int64                `json:"id" db:"id"`
	EndUserID     int64                `json:"end_user_id" db:"end_user_id"`
	DistributorID int64                `json:"distributor_id" db:"distributor_id"`
	Amount        decimal.Decimal      `json:"amount" db:"amount"`
	Status        DepositRequestStatus `json:"status" db:"status"`
	Remarks       string               `json:"remarks,omitempty" db:"remarks"`
	RequestedAt   time.Time            `json:"requested_at" db:"requested_at"`
	ProcessedAt   *time.Time           `json:"processed_at,omitempty" db:"processed_at"`
	ProcessedBy   *int64               `json:"processed_by,omitempty" db:"processed_by"`
}
