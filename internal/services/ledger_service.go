package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/audit"
	"github.com/cricketduel/backend/internal/metrics"
	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

var ErrLedgerMismatch = errors.New("ledger mismatch")

// WalletRef addresses a wallet by owner and kind.
type WalletRef struct {
	OwnerID int64
	Kind    models.WalletKind
}

func UserWallet(userID int64) WalletRef {
	return WalletRef{OwnerID: userID, Kind: models.WalletKindUser}
}

func DistributorWallet(userID int64) WalletRef {
	return WalletRef{OwnerID: userID, Kind: models.WalletKindDistributor}
}

func (r WalletRef) less(o WalletRef) bool {
	if r.OwnerID != o.OwnerID {
		return r.OwnerID < o.OwnerID
	}
	return r.Kind < o.Kind
}

// Entry is one balance movement on a locked wallet.
type Entry struct {
	Kind          models.TransactionKind
	Amount        decimal.Decimal
	Description   string
	RelatedUserID *int64
}

// LedgerService is the only code path that changes a wallet balance. Every
// change is written together with its Transaction row in the caller's unit of
// work.
type LedgerService struct {
	store   store.Store
	audit   *audit.Logger
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewLedgerService(st store.Store, auditLog *audit.Logger, m *metrics.Metrics, log *zap.Logger) *LedgerService {
	return &LedgerService{
		store:   st,
		audit:   auditLog,
		metrics: m,
		log:     log.Named("ledger"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LockWalletTx locks the wallet for the rest of the unit of work, creating it
// on first use.
func (s *LedgerService) LockWalletTx(tx store.Tx, ref WalletRef) (*models.Wallet, error) {
	w, err := tx.LockWallet(ref.OwnerID, ref.Kind)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}

	now := s.now()
	fresh := &models.Wallet{
		OwnerID:   ref.OwnerID,
		Kind:      ref.Kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.CreateWallet(fresh); err != nil && !errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	w, err = tx.LockWallet(ref.OwnerID, ref.Kind)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return w, nil
}

// LockPairTx locks two wallets in a fixed order so that concurrent transfers
// in opposite directions cannot deadlock.
func (s *LedgerService) LockPairTx(tx store.Tx, a, b WalletRef) (*models.Wallet, *models.Wallet, error) {
	first, second := a, b
	swapped := false
	if b.less(a) {
		first, second = b, a
		swapped = true
	}

	w1, err := s.LockWalletTx(tx, first)
	if err != nil {
		return nil, nil, err
	}
	w2, err := s.LockWalletTx(tx, second)
	if err != nil {
		return nil, nil, err
	}

	if swapped {
		return w2, w1, nil
	}
	return w1, w2, nil
}

func (s *LedgerService) DepositTx(tx store.Tx, w *models.Wallet, e Entry) (*models.Transaction, error) {
	if !e.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	w.Balance = w.Balance.Add(e.Amount)
	return s.apply(tx, w, e)
}

// WithdrawTx fails without touching the wallet when the balance cannot cover
// the amount.
func (s *LedgerService) WithdrawTx(tx store.Tx, w *models.Wallet, e Entry) (*models.Transaction, error) {
	if !e.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if w.Balance.LessThan(e.Amount) {
		return nil, newError(ErrInsufficientFunds, "Insufficient balance. Available: %s, required: %s",
			w.Balance.StringFixed(2), e.Amount.StringFixed(2))
	}

	w.Balance = w.Balance.Sub(e.Amount)
	return s.apply(tx, w, e)
}

func (s *LedgerService) apply(tx store.Tx, w *models.Wallet, e Entry) (*models.Transaction, error) {
	now := s.now()
	w.UpdatedAt = now
	if err := tx.UpdateWallet(w); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, newError(ErrStateConflict, "Wallet was modified concurrently, please retry")
		}
		return nil, fmt.Errorf("update wallet: %w", err)
	}

	entry := &models.Transaction{
		WalletID:      w.ID,
		OwnerID:       w.OwnerID,
		Kind:          e.Kind,
		Amount:        e.Amount,
		BalanceAfter:  w.Balance,
		Description:   e.Description,
		RelatedUserID: e.RelatedUserID,
		CreatedAt:     now,
	}
	if err := tx.InsertTransaction(entry); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return entry, nil
}

// TransferTx debits from and credits to inside the caller's unit of work.
func (s *LedgerService) TransferTx(tx store.Tx, from, to WalletRef, amount decimal.Decimal, debit, credit Entry) ([]*models.Transaction, error) {
	fromW, toW, err := s.LockPairTx(tx, from, to)
	if err != nil {
		return nil, err
	}

	debit.Amount, credit.Amount = amount, amount
	out, err := s.WithdrawTx(tx, fromW, debit)
	if err != nil {
		return nil, err
	}
	in, err := s.DepositTx(tx, toW, credit)
	if err != nil {
		return nil, err
	}
	return []*models.Transaction{out, in}, nil
}

// Committed records entries that are now durable.
func (s *LedgerService) Committed(entries ...*models.Transaction) {
	for _, e := range entries {
		s.audit.LogEntry(e)
		s.metrics.LedgerEntry(string(e.Kind))
	}
}

// Deposit tops up a user wallet.
func (s *LedgerService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal, description string) (*models.Transaction, error) {
	if description == "" {
		description = "Wallet deposit"
	}

	var entry *models.Transaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		w, err := s.LockWalletTx(tx, UserWallet(userID))
		if err != nil {
			return err
		}
		entry, err = s.DepositTx(tx, w, Entry{Kind: models.TxDeposit, Amount: amount, Description: description})
		return err
	})
	if err != nil {
		s.audit.LogError("deposit", userID, err)
		return nil, err
	}

	s.Committed(entry)
	return entry, nil
}

// Withdraw debits a user wallet for a payout. The payout itself is handed to
// the payment team offline; only the ledger side is recorded here.
func (s *LedgerService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (*models.Transaction, error) {
	var entry *models.Transaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		w, err := s.LockWalletTx(tx, UserWallet(userID))
		if err != nil {
			return err
		}
		entry, err = s.WithdrawTx(tx, w, Entry{
			Kind:        models.TxWithdrawal,
			Amount:      amount,
			Description: "Withdrawal requested",
		})
		return err
	})
	if err != nil {
		s.audit.LogError("withdraw", userID, err)
		return nil, err
	}

	s.Committed(entry)
	s.log.Info("withdrawal recorded, payout pending",
		zap.Int64("user_id", userID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return entry, nil
}

// EnsureWallet returns the wallet, creating an empty one if it does not exist.
func (s *LedgerService) EnsureWallet(ctx context.Context, ref WalletRef) (*models.Wallet, error) {
	var w *models.Wallet
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		w, err = s.LockWalletTx(tx, ref)
		return err
	})
	return w, err
}

func (s *LedgerService) Balance(ctx context.Context, ref WalletRef) (decimal.Decimal, error) {
	w, err := s.EnsureWallet(ctx, ref)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

func (s *LedgerService) History(ctx context.Context, ref WalletRef, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		w, err := tx.GetWallet(ref.OwnerID, ref.Kind)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out, err = tx.ListTransactions(w.ID, limit)
		return err
	})
	return out, err
}

// Reconcile checks that the wallet balance equals the balance_after of its
// latest ledger entry, or zero when it has none.
func (s *LedgerService) Reconcile(ctx context.Context, ref WalletRef) error {
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		w, err := tx.GetWallet(ref.OwnerID, ref.Kind)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		expected := decimal.Zero
		last, err := tx.LatestTransaction(w.ID)
		switch {
		case err == nil:
			expected = last.BalanceAfter
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		if w.Balance.IsNegative() || !w.Balance.Equal(expected) {
			return fmt.Errorf("%w: wallet %d balance %s, last entry %s",
				ErrLedgerMismatch, w.ID, w.Balance.StringFixed(2), expected.StringFixed(2))
		}
		return nil
	})
}
