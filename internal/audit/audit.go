// Package audit writes one structured record per ledger movement and per
// failed money operation.
package audit

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/models"
)

type Logger struct {
	log *zap.Logger
}

func NewLogger(log *zap.Logger) *Logger {
	return &Logger{log: log.Named("audit")}
}

func (a *Logger) LogEntry(tr *models.Transaction) {
	fields := []zap.Field{
		zap.String("event_type", "LEDGER_ENTRY"),
		zap.Int64("transaction_id", tr.ID),
		zap.Int64("wallet_id", tr.WalletID),
		zap.Int64("owner_id", tr.OwnerID),
		zap.String("kind", string(tr.Kind)),
		zap.String("amount", tr.Amount.StringFixed(2)),
		zap.String("balance_after", tr.BalanceAfter.StringFixed(2)),
		zap.String("status", "SUCCESS"),
	}
	if tr.RelatedUserID != nil {
		fields = append(fields, zap.Int64("related_user_id", *tr.RelatedUserID))
	}
	a.log.Info(tr.Description, fields...)
}

func (a *Logger) LogTransfer(fromOwner, toOwner int64, amount decimal.Decimal, status string) {
	a.log.Info("transfer",
		zap.String("event_type", "TRANSFER"),
		zap.Int64("from_owner", fromOwner),
		zap.Int64("to_owner", toOwner),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("status", status),
	)
}

func (a *Logger) LogError(operation string, ownerID int64, err error) {
	a.log.Warn(operation,
		zap.String("event_type", "ERROR"),
		zap.Int64("owner_id", ownerID),
		zap.String("status", "FAILED"),
		zap.Error(err),
	)
}

func (a *Logger) LogOperation(operation string, sessionID int64, details string) {
	a.log.Info(operation,
		zap.String("event_type", operation),
		zap.Int64("session_id", sessionID),
		zap.String("status", "SUCCESS"),
		zap.String("details", details),
	)
}
