package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/services"
)

type MatchHandler struct {
	sync      *services.MatchSyncService
	validator *services.ValidationHelper
	log       *zap.Logger
}

func NewMatchHandler(sync *services.MatchSyncService, log *zap.Logger) *MatchHandler {
	return &MatchHandler{
		sync:      sync,
		validator: services.NewValidationHelper(),
		log:       log.Named("http.matches"),
	}
}

// Sync pulls fixtures, squads and statuses from the score feed
// @Summary Sync matches from feed
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.SyncReport
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /matches/sync [post]
func (h *MatchHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	report, err := h.sync.SyncAs(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SetStatus moves a match to a later status
// @Summary Set match status
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param matchID path int true "Match ID"
// @Param request body services.MatchStatusInput true "New status"
// @Success 200 {object} models.Match
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /matches/{matchID}/status [post]
func (h *MatchHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	matchID, ok := pathID(w, r, "matchID")
	if !ok {
		return
	}
	var req services.MatchStatusInput
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	match, err := h.sync.SetMatchStatus(r.Context(), userID, matchID, req.Status)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}
