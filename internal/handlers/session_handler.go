package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/services"
)

type SessionHandler struct {
	sessions   *services.SessionService
	settlement *services.SettlementService
	validator  *services.ValidationHelper
	log        *zap.Logger
}

func NewSessionHandler(sessions *services.SessionService, settlement *services.SettlementService, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		settlement: settlement,
		validator:  services.NewValidationHelper(),
		log:        log.Named("http.sessions"),
	}
}

type createSessionRequest struct {
	PlayersPerSide int             `json:"players_per_side" validate:"required,min=1,max=11" example:"2"`
	FixedBetAmount decimal.Decimal `json:"fixed_bet_amount" validate:"required,gt=0" swaggertype:"string" example:"100.00"`
}

type pickRequest struct {
	PlayerID int64 `json:"player_id" validate:"required,gt=0" example:"17"`
}

// ListMatches lists matches open for new sessions
// @Summary List bettable matches
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Match
// @Router /matches [get]
func (h *SessionHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.sessions.ListMatches(r.Context())
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// ListOpenSessions lists sessions on a match waiting for an opponent
// @Summary List open sessions
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param matchID path int true "Match ID"
// @Success 200 {array} models.BettingSession
// @Router /matches/{matchID}/sessions [get]
func (h *SessionHandler) ListOpenSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	matchID, ok := pathID(w, r, "matchID")
	if !ok {
		return
	}

	sessions, err := h.sessions.ListOpenSessions(r.Context(), userID, matchID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// CreateSession opens a session on a match
// @Summary Create session
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param matchID path int true "Match ID"
// @Param request body createSessionRequest true "Session terms"
// @Success 201 {object} models.BettingSession
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /matches/{matchID}/sessions [post]
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	matchID, ok := pathID(w, r, "matchID")
	if !ok {
		return
	}
	var req createSessionRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	sess, err := h.sessions.CreateSession(r.Context(), userID, services.CreateSessionInput{
		MatchID:        matchID,
		PlayersPerSide: req.PlayersPerSide,
		FixedBetAmount: req.FixedBetAmount,
	})
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// ListSessions lists the caller's sessions
// @Summary List my sessions
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only non-terminal sessions"
// @Success 200 {array} models.BettingSession
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	list := h.sessions.ListUserSessions
	if active, _ := strconv.ParseBool(r.URL.Query().Get("active")); active {
		list = h.sessions.ListActiveSessions
	}
	sessions, err := list(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// GetSession returns the full session view
// @Summary Session snapshot
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Success 200 {object} services.SessionSnapshot
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.snapshot(w, r, nil)
}

// Updates is the polling endpoint
// @Summary Session updates since last poll
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param last_update query string false "RFC3339 timestamp of the last seen update"
// @Success 200 {object} services.SessionSnapshot
// @Router /sessions/{id}/updates [get]
func (h *SessionHandler) Updates(w http.ResponseWriter, r *http.Request) {
	var since *time.Time
	if raw := r.URL.Query().Get("last_update"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			services.SendErrorResponse(w, "last_update must be an RFC3339 timestamp", http.StatusBadRequest, nil)
			return
		}
		since = &t
	}
	h.snapshot(w, r, since)
}

func (h *SessionHandler) snapshot(w http.ResponseWriter, r *http.Request, since *time.Time) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	snap, err := h.sessions.Snapshot(r.Context(), userID, sessionID, since)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Join joins a pending session as side B
// @Summary Join session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Success 200 {object} models.BettingSession
// @Failure 409 {object} services.ErrorResponse
// @Router /sessions/{id}/join [post]
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.participant(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.JoinSession(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Toss decides who picks first
// @Summary Perform toss
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Success 200 {object} models.BettingSession
// @Failure 409 {object} services.ErrorResponse
// @Router /sessions/{id}/toss [post]
func (h *SessionHandler) Toss(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.participant(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.PerformToss(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// CanPick checks a pick without making it
// @Summary Check pick
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param player_id query int true "Player ID"
// @Success 200 {object} services.PickVerdict
// @Router /sessions/{id}/picks/check [get]
func (h *SessionHandler) CanPick(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.participant(w, r)
	if !ok {
		return
	}
	playerID, err := strconv.ParseInt(r.URL.Query().Get("player_id"), 10, 64)
	if err != nil || playerID <= 0 {
		services.SendErrorResponse(w, "Invalid player_id", http.StatusBadRequest, nil)
		return
	}

	verdict, err := h.sessions.CanPick(r.Context(), userID, sessionID, playerID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

// Pick claims a player for the caller's side
// @Summary Pick player
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param request body pickRequest true "Player to pick"
// @Success 201 {object} services.PickResult
// @Failure 409 {object} services.ErrorResponse
// @Router /sessions/{id}/picks [post]
func (h *SessionHandler) Pick(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.participant(w, r)
	if !ok {
		return
	}
	var req pickRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	res, err := h.sessions.Pick(r.Context(), userID, sessionID, req.PlayerID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Stake places the caller's fixed stake
// @Summary Place stake
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param request body services.StakeInput true "Insurance choice"
// @Success 201 {object} services.StakeResult
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /sessions/{id}/stake [post]
func (h *SessionHandler) Stake(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.participant(w, r)
	if !ok {
		return
	}
	var req services.StakeInput
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	res, err := h.sessions.PlaceStake(r.Context(), userID, sessionID, req)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Settle settles a session whose match is over
// @Summary Settle session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Success 200 {object} services.SettlementResult
// @Failure 409 {object} services.ErrorResponse
// @Router /sessions/{id}/settle [post]
func (h *SessionHandler) Settle(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.participant(w, r)
	if !ok {
		return
	}

	res, err := h.settlement.SettleSessionAs(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Cancel cancels an unsettled session
// @Summary Cancel session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Success 200 {object} models.BettingSession
// @Failure 409 {object} services.ErrorResponse
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.participant(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.CancelSession(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) participant(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, ok := currentUser(w, r)
	if !ok {
		return 0, 0, false
	}
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return 0, 0, false
	}
	return userID, sessionID, true
}
