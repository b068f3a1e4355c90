package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/services"
)

type InviteHandler struct {
	invites   *services.InviteService
	validator *services.ValidationHelper
	log       *zap.Logger
}

func NewInviteHandler(invites *services.InviteService, log *zap.Logger) *InviteHandler {
	return &InviteHandler{
		invites:   invites,
		validator: services.NewValidationHelper(),
		log:       log.Named("http.invites"),
	}
}

// Send invites someone to the caller's pending session
// @Summary Send invite
// @Tags invites
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param request body services.SendInviteInput true "Invitee"
// @Success 201 {object} models.SessionInvite
// @Failure 403 {object} services.ErrorResponse
// @Router /sessions/{id}/invites [post]
func (h *InviteHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req services.SendInviteInput
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	invite, err := h.invites.SendInvite(r.Context(), userID, sessionID, req)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

// List returns invites sent or received by the caller
// @Summary List invites
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.SessionInvite
// @Router /invites [get]
func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	invites, err := h.invites.ListInvites(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invites)
}

// Accept joins the session behind the invite code
// @Summary Accept invite
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Param invite path string true "Invite code"
// @Success 200 {object} models.BettingSession
// @Failure 409 {object} services.ErrorResponse
// @Router /invites/{invite}/accept [post]
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	sess, err := h.invites.AcceptInvite(r.Context(), userID, chi.URLParam(r, "invite"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Decline declines an invite
// @Summary Decline invite
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Param invite path int true "Invite ID"
// @Success 200 {object} models.SessionInvite
// @Router /invites/{invite}/decline [post]
func (h *InviteHandler) Decline(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	inviteID, ok := pathID(w, r, "invite")
	if !ok {
		return
	}

	invite, err := h.invites.DeclineInvite(r.Context(), userID, inviteID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invite)
}

// QR renders the invite link as a QR code
// @Summary Invite QR code
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Param invite path string true "Invite code"
// @Success 200 {object} services.InviteQR
// @Router /invites/{invite}/qr [get]
func (h *InviteHandler) QR(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	qr, err := h.invites.InviteQR(r.Context(), chi.URLParam(r, "invite"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qr)
}
