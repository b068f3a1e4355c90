package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/services"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type WalletHandler struct {
	ledger    *services.LedgerService
	validator *services.ValidationHelper
	log       *zap.Logger
}

func NewWalletHandler(ledger *services.LedgerService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{
		ledger:    ledger,
		validator: services.NewValidationHelper(),
		log:       log.Named("http.wallet"),
	}
}

type depositRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0" swaggertype:"string" example:"1000.00"`
	Description string          `json:"description" validate:"max=255" example:"Top up"`
}

// Get returns the caller's wallet
// @Summary Get wallet
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Wallet
// @Router /wallet [get]
func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	wallet, err := h.ledger.EnsureWallet(r.Context(), services.UserWallet(userID))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// Transactions lists the caller's ledger entries, newest first
// @Summary Wallet history
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max entries (default 50)"
// @Success 200 {array} models.Transaction
// @Router /wallet/transactions [get]
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultHistoryLimit, maxHistoryLimit)
	history, err := h.ledger.History(r.Context(), services.UserWallet(userID), limit)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if history == nil {
		history = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, history)
}

// Deposit tops up the caller's wallet
// @Summary Deposit
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body depositRequest true "Deposit"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Router /wallet/deposit [post]
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	entry, err := h.ledger.Deposit(r.Context(), userID, req.Amount, req.Description)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// Withdraw records a payout from the caller's wallet
// @Summary Withdraw
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.AmountInput true "Withdrawal"
// @Success 201 {object} models.Transaction
// @Failure 422 {object} services.ErrorResponse
// @Router /wallet/withdraw [post]
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req services.AmountInput
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	entry, err := h.ledger.Withdraw(r.Context(), userID, req.Amount)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
