package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/services"
)

type DistributorHandler struct {
	distributors *services.DistributorService
	validator    *services.ValidationHelper
	log          *zap.Logger
}

func NewDistributorHandler(distributors *services.DistributorService, log *zap.Logger) *DistributorHandler {
	return &DistributorHandler{
		distributors: distributors,
		validator:    services.NewValidationHelper(),
		log:          log.Named("http.distributors"),
	}
}

type assignRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0" example:"42"`
}

// AssignDistributor makes a user a distributor under the caller
// @Summary Create distributor
// @Tags distributors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body assignRequest true "User to promote"
// @Success 201 {object} models.Profile
// @Failure 403 {object} services.ErrorResponse
// @Router /distributors [post]
func (h *DistributorHandler) AssignDistributor(w http.ResponseWriter, r *http.Request) {
	masterID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	profile, err := h.distributors.AssignDistributor(r.Context(), masterID, req.UserID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// CreditDistributor credits a distributor wallet
// @Summary Credit distributor
// @Tags distributors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Distributor user ID"
// @Param request body services.AmountInput true "Amount"
// @Success 201 {object} models.Transaction
// @Router /distributors/{id}/credit [post]
func (h *DistributorHandler) CreditDistributor(w http.ResponseWriter, r *http.Request) {
	masterID, distributorID, req, ok := h.amountFor(w, r)
	if !ok {
		return
	}

	entry, err := h.distributors.CreditDistributor(r.Context(), masterID, distributorID, req.Amount)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// WithdrawFromDistributor debits a distributor wallet
// @Summary Withdraw from distributor
// @Tags distributors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Distributor user ID"
// @Param request body services.AmountInput true "Amount"
// @Success 201 {object} models.Transaction
// @Failure 422 {object} services.ErrorResponse
// @Router /distributors/{id}/withdraw [post]
func (h *DistributorHandler) WithdrawFromDistributor(w http.ResponseWriter, r *http.Request) {
	masterID, distributorID, req, ok := h.amountFor(w, r)
	if !ok {
		return
	}

	entry, err := h.distributors.WithdrawFromDistributor(r.Context(), masterID, distributorID, req.Amount)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// AssignEndUser attaches an end user to the calling distributor
// @Summary Add end user
// @Tags distributors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body assignRequest true "End user"
// @Success 201 {object} models.Profile
// @Router /distributor/users [post]
func (h *DistributorHandler) AssignEndUser(w http.ResponseWriter, r *http.Request) {
	distributorID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	profile, err := h.distributors.AssignEndUser(r.Context(), distributorID, req.UserID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// CreditEndUser moves credit from the caller's distributor wallet to an end user
// @Summary Credit end user
// @Tags distributors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "End user ID"
// @Param request body services.AmountInput true "Amount"
// @Success 201 {array} models.Transaction
// @Failure 422 {object} services.ErrorResponse
// @Router /distributor/users/{id}/credit [post]
func (h *DistributorHandler) CreditEndUser(w http.ResponseWriter, r *http.Request) {
	distributorID, endUserID, req, ok := h.amountFor(w, r)
	if !ok {
		return
	}

	entries, err := h.distributors.DistributeToUser(r.Context(), distributorID, endUserID, req.Amount)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entries)
}

// Wallet returns the caller's distributor wallet
// @Summary Distributor wallet
// @Tags distributors
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Wallet
// @Router /distributor/wallet [get]
func (h *DistributorHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	distributorID, ok := currentUser(w, r)
	if !ok {
		return
	}

	wallet, err := h.distributors.DistributorWallet(r.Context(), distributorID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// RaiseDepositRequest asks the caller's distributor for credit
// @Summary Raise deposit request
// @Tags deposit-requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.DepositRequestInput true "Request"
// @Success 201 {object} models.DepositRequest
// @Router /deposit-requests [post]
func (h *DistributorHandler) RaiseDepositRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req services.DepositRequestInput
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	dr, err := h.distributors.RaiseDepositRequest(r.Context(), userID, req)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dr)
}

// ListDepositRequests lists requests raised or received by the caller
// @Summary List deposit requests
// @Tags deposit-requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved, rejected or cancelled"
// @Success 200 {array} models.DepositRequest
// @Router /deposit-requests [get]
func (h *DistributorHandler) ListDepositRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	status := models.DepositRequestStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.DepositPending, models.DepositApproved, models.DepositRejected, models.DepositCancelled:
	default:
		services.SendErrorResponse(w, "Invalid status", http.StatusBadRequest, nil)
		return
	}

	list, err := h.distributors.ListDepositRequests(r.Context(), userID, status)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if list == nil {
		list = []models.DepositRequest{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ApproveDepositRequest pays out a pending request
// @Summary Approve deposit request
// @Tags deposit-requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.DepositRequest
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /deposit-requests/{id}/approve [post]
func (h *DistributorHandler) ApproveDepositRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	dr, err := h.distributors.ApproveDepositRequest(r.Context(), userID, requestID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dr)
}

// RejectDepositRequest closes a pending request without payment
// @Summary Reject deposit request
// @Tags deposit-requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Param request body services.RemarksInput false "Reason"
// @Success 200 {object} models.DepositRequest
// @Router /deposit-requests/{id}/reject [post]
func (h *DistributorHandler) RejectDepositRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req services.RemarksInput
	if r.ContentLength != 0 && !decodeJSON(w, r, h.validator, &req) {
		return
	}

	dr, err := h.distributors.RejectDepositRequest(r.Context(), userID, requestID, req.Remarks)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dr)
}

// CancelDepositRequest withdraws the caller's own pending request
// @Summary Cancel deposit request
// @Tags deposit-requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.DepositRequest
// @Router /deposit-requests/{id}/cancel [post]
func (h *DistributorHandler) CancelDepositRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	dr, err := h.distributors.CancelDepositRequest(r.Context(), userID, requestID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dr)
}

func (h *DistributorHandler) amountFor(w http.ResponseWriter, r *http.Request) (int64, int64, services.AmountInput, bool) {
	var req services.AmountInput
	callerID, ok := currentUser(w, r)
	if !ok {
		return 0, 0, req, false
	}
	targetID, ok := pathID(w, r, "id")
	if !ok {
		return 0, 0, req, false
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return 0, 0, req, false
	}
	return callerID, targetID, req, true
}
