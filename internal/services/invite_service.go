package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/config"
	"github.com/cricketduel/backend/internal/events"
	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

const inviteQRSize = 256

var ErrInviteExpired = &Error{ErrStateConflict, "This invite has expired"}

// InviteService lets the creator of a pending session invite a specific
// opponent, or anyone holding the code.
type InviteService struct {
	store    store.Store
	sessions *SessionService
	cfg      *config.BettingConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewInviteService(st store.Store, sessions *SessionService, cfg *config.BettingConfig, log *zap.Logger) *InviteService {
	return &InviteService{
		store:    st,
		sessions: sessions,
		cfg:      cfg,
		log:      log.Named("invites"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SendInviteInput struct {
	InviteeUsername string `json:"invitee_username" validate:"omitempty,max=150" example:"rohit45"`
	InviteeEmail    string `json:"invitee_email" validate:"omitempty,email" example:"rohit@example.com"`
	Message         string `json:"message" validate:"max=500" example:"Fancy a duel?"`
}

type InviteQR struct {
	Code  string `json:"code"`
	Link  string `json:"link"`
	Image string `json:"image"` // base64 PNG
}

// SendInvite creates an invite for the caller's pending session. An email that
// matches no account is kept as is and checked again on accept.
func (s *InviteService) SendInvite(ctx context.Context, inviterID, sessionID int64, in SendInviteInput) (*models.SessionInvite, error) {
	if strings.TrimSpace(in.InviteeUsername) == "" && strings.TrimSpace(in.InviteeEmail) == "" {
		return nil, newError(ErrValidation, "Either invitee_username or invitee_email is required")
	}

	var invite *models.SessionInvite
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		sess, err := getSession(tx, sessionID)
		if err != nil {
			return err
		}
		if sess.SideAUserID != inviterID {
			return newError(ErrForbidden, "Only the session creator can send invites")
		}
		if sess.Status != models.SessionPending || sess.HasOpponent() {
			return ErrSessionNotPending
		}

		now := s.now()
		invite = &models.SessionInvite{
			SessionID: sess.ID,
			InviterID: inviterID,
			Status:    models.InvitePending,
			Message:   in.Message,
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.InviteTTL),
		}

		invitee, err := resolveInvitee(tx, in)
		if err != nil {
			return err
		}
		if invitee != nil {
			if invitee.ID == inviterID {
				return newError(ErrValidation, "You cannot invite yourself")
			}
			id := invitee.ID
			invite.InviteeID = &id
			invite.InviteeUsername = invitee.Username
			invite.InviteeEmail = invitee.Email
		} else {
			invite.InviteeEmail = strings.ToLower(strings.TrimSpace(in.InviteeEmail))
		}

		invite.Code = newInviteCode(s.cfg.InviteCodeLength)
		return tx.CreateInvite(invite)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invite sent",
		zap.Int64("invite_id", invite.ID),
		zap.Int64("session_id", sessionID),
		zap.Int64("inviter_id", inviterID),
	)
	return invite, nil
}

func resolveInvitee(tx store.Tx, in SendInviteInput) (*models.User, error) {
	if name := strings.TrimSpace(in.InviteeUsername); name != "" {
		u, err := tx.GetUserByUsername(name)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("User")
		}
		return u, err
	}

	u, err := tx.GetUserByEmail(strings.TrimSpace(in.InviteeEmail))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// AcceptInvite joins the caller to the invite's session.
func (s *InviteService) AcceptInvite(ctx context.Context, userID int64, code string) (*models.BettingSession, error) {
	var (
		sess    *models.BettingSession
		expired bool
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		invite, err := tx.GetInviteByCode(code)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Invite")
		}
		if err != nil {
			return err
		}
		if invite.Status != models.InvitePending {
			return ErrInviteUnavailable
		}

		now := s.now()
		if invite.Expired(now) {
			// Commit the status change, then report the expiry.
			expired = true
			invite.Status = models.InviteExpired
			return tx.UpdateInvite(invite)
		}

		user, err := tx.GetUser(userID)
		if err != nil {
			return err
		}
		if !invite.AddressedTo(user) {
			return newError(ErrForbidden, "This invite was sent to someone else")
		}

		sess, err = s.sessions.joinTx(tx, userID, invite.SessionID)
		if err != nil {
			return err
		}

		invitee := userID
		invite.InviteeID = &invitee
		invite.Status = models.InviteAccepted
		invite.AcceptedAt = &now
		return tx.UpdateInvite(invite)
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrInviteExpired
	}

	s.sessions.publish(ctx, events.SessionJoined, sess.ID, userID, map[string]any{"via": "invite"})
	return sess, nil
}

// DeclineInvite is only open to the named invitee.
func (s *InviteService) DeclineInvite(ctx context.Context, userID, inviteID int64) (*models.SessionInvite, error) {
	var invite *models.SessionInvite
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		invite, err = tx.GetInvite(inviteID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Invite")
		}
		if err != nil {
			return err
		}
		if invite.InviteeID == nil || *invite.InviteeID != userID {
			return newError(ErrForbidden, "Only the invited user can decline this invite")
		}
		if invite.Status != models.InvitePending {
			return ErrInviteUnavailable
		}

		invite.Status = models.InviteDeclined
		if invite.Expired(s.now()) {
			invite.Status = models.InviteExpired
		}
		return tx.UpdateInvite(invite)
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

// ListInvites returns invites the user sent or received. Pending invites past
// their expiry are reported as expired.
func (s *InviteService) ListInvites(ctx context.Context, userID int64) ([]models.SessionInvite, error) {
	var out []models.SessionInvite
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListInvitesForUser(userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range out {
		if out[i].Status == models.InvitePending && out[i].Expired(now) {
			out[i].Status = models.InviteExpired
		}
	}
	return out, nil
}

// InviteQR renders the invite link as a PNG QR code.
func (s *InviteService) InviteQR(ctx context.Context, code string) (*InviteQR, error) {
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetInviteByCode(code)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Invite")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	link := s.cfg.InviteBaseURL + code
	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(inviteQRSize)); err != nil {
		return nil, err
	}

	return &InviteQR{
		Code:  code,
		Link:  link,
		Image: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

func newInviteCode(n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return b.String()[:n]
}
