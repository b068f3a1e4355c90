package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/providers"
	"github.com/cricketduel/backend/internal/store"
)

// MatchFeed lists the fixtures the score feed tracks and their squads.
type MatchFeed interface {
	CurrentMatches(ctx context.Context) ([]providers.FeedMatch, error)
	MatchSquad(ctx context.Context, matchAPIID string) ([]providers.FeedSquad, error)
}

type SyncReport struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Completed int `json:"completed"`
	Players   int `json:"players"`
}

// MatchSyncService keeps the local match catalogue in step with the feed:
// teams, squads and the status that gates betting and settlement.
type MatchSyncService struct {
	store store.Store
	feed  MatchFeed
	log   *zap.Logger
}

func NewMatchSyncService(st store.Store, feed MatchFeed, log *zap.Logger) *MatchSyncService {
	return &MatchSyncService{
		store: st,
		feed:  feed,
		log:   log.Named("match_sync"),
	}
}

var statusRank = map[models.MatchStatus]int{
	models.MatchUpcoming:  0,
	models.MatchLive:      1,
	models.MatchCompleted: 2,
	models.MatchAbandoned: 2,
}

// advances reports whether moving from cur to next is forward progress.
// Completed and abandoned matches never change again.
func advances(cur, next models.MatchStatus) bool {
	return statusRank[next] > statusRank[cur]
}

// Enabled reports whether a feed is configured. Without one only
// SetMatchStatus moves matches along.
func (s *MatchSyncService) Enabled() bool { return s.feed != nil }

// Sync pulls the feed's current fixtures into the store. A failure on one
// match is logged and the rest still sync.
func (s *MatchSyncService) Sync(ctx context.Context) (*SyncReport, error) {
	if !s.Enabled() {
		return nil, providers.ErrNotConfigured
	}
	feed, err := s.feed.CurrentMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch current matches: %w", err)
	}

	report := &SyncReport{}
	for _, fm := range feed {
		if err := s.syncMatch(ctx, fm, report); err != nil {
			s.log.Warn("match sync failed", zap.String("api_id", fm.APIID), zap.Error(err))
		}
	}
	if report.Created+report.Updated > 0 {
		s.log.Info("matches synced",
			zap.Int("created", report.Created),
			zap.Int("updated", report.Updated),
			zap.Int("completed", report.Completed),
			zap.Int("players", report.Players))
	}
	return report, nil
}

// SyncAs runs a sync on behalf of the master distributor.
func (s *MatchSyncService) SyncAs(ctx context.Context, actorID int64) (*SyncReport, error) {
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		_, err := requireRole(tx, actorID, models.UserTypeMasterDistributor)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !s.Enabled() {
		return nil, newError(ErrStateConflict, "Match feed is not configured")
	}
	return s.Sync(ctx)
}

func (s *MatchSyncService) syncMatch(ctx context.Context, fm providers.FeedMatch, report *SyncReport) error {
	var existing *models.Match
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		m, err := tx.GetMatchByAPIID(fm.APIID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		existing = m
		return err
	})
	if err != nil {
		return err
	}
	if existing != nil && (existing.Status == models.MatchCompleted || existing.Status == models.MatchAbandoned) {
		return nil
	}

	// Squads are fetched outside the write so a slow feed never holds locks.
	var squads []providers.FeedSquad
	if existing == nil || fm.Status != models.MatchCompleted {
		squads, err = s.feed.MatchSquad(ctx, fm.APIID)
		if err != nil {
			s.log.Warn("squad unavailable", zap.String("api_id", fm.APIID), zap.Error(err))
		}
	}

	return s.store.WithTx(ctx, func(tx store.Tx) error {
		teamA, teamB, err := s.matchTeams(tx, fm, existing)
		if err != nil {
			return err
		}

		match := &models.Match{
			APIID:     fm.APIID,
			TeamAID:   teamA.ID,
			TeamBID:   teamB.ID,
			Title:     fm.Title,
			Venue:     fm.Venue,
			MatchDate: fm.MatchDate,
			Status:    fm.Status,
		}
		if existing != nil && !advances(existing.Status, fm.Status) {
			match.Status = existing.Status
		}
		if err := tx.UpsertMatch(match); err != nil {
			return fmt.Errorf("match: %w", err)
		}

		switch {
		case existing == nil:
			report.Created++
		case match.Status != existing.Status:
			report.Updated++
		}
		if match.Status == models.MatchCompleted {
			report.Completed++
		}

		for _, squad := range squads {
			var teamID int64
			switch {
			case sameTeam(teamA, squad.Team):
				teamID = teamA.ID
			case sameTeam(teamB, squad.Team):
				teamID = teamB.ID
			default:
				s.log.Warn("squad team not in match", zap.String("api_id", fm.APIID), zap.String("team", squad.Team.Name))
				continue
			}
			for _, fp := range squad.Players {
				p := &models.Player{APIID: fp.APIID, Name: fp.Name, TeamID: teamID, Role: fp.Role}
				if err := tx.UpsertPlayer(p); err != nil {
					return fmt.Errorf("player %s: %w", fp.APIID, err)
				}
				report.Players++
			}
		}
		return nil
	})
}

// matchTeams returns the two sides of the match. A known match keeps the teams
// it was created with, since picks already reference them.
func (s *MatchSyncService) matchTeams(tx store.Tx, fm providers.FeedMatch, existing *models.Match) (*models.Team, *models.Team, error) {
	if existing != nil {
		a, err := tx.GetTeam(existing.TeamAID)
		if err != nil {
			return nil, nil, fmt.Errorf("team %d: %w", existing.TeamAID, err)
		}
		b, err := tx.GetTeam(existing.TeamBID)
		if err != nil {
			return nil, nil, fmt.Errorf("team %d: %w", existing.TeamBID, err)
		}
		return a, b, nil
	}

	out := make([]*models.Team, 0, 2)
	for _, ft := range []providers.FeedTeam{fm.TeamA, fm.TeamB} {
		team := &models.Team{APIID: ft.APIID, Name: ft.Name, ShortName: ft.ShortName}
		if err := tx.UpsertTeam(team); err != nil {
			return nil, nil, fmt.Errorf("team %s: %w", ft.APIID, err)
		}
		out = append(out, team)
	}
	return out[0], out[1], nil
}

func sameTeam(team *models.Team, ft providers.FeedTeam) bool {
	return team.APIID == ft.APIID || strings.EqualFold(team.Name, ft.Name)
}

type MatchStatusInput struct {
	Status models.MatchStatus `json:"status" validate:"required,oneof=upcoming live completed abandoned" example:"completed"`
}

// SetMatchStatus lets the master distributor move a match forward by hand when
// the feed is unavailable. Statuses only advance.
func (s *MatchSyncService) SetMatchStatus(ctx context.Context, actorID, matchID int64, status models.MatchStatus) (*models.Match, error) {
	if _, ok := statusRank[status]; !ok {
		return nil, newError(ErrValidation, "Unknown match status %q", status)
	}

	var match *models.Match
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := requireRole(tx, actorID, models.UserTypeMasterDistributor); err != nil {
			return err
		}
		m, err := tx.GetMatch(matchID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Match")
		}
		if err != nil {
			return err
		}
		if !advances(m.Status, status) {
			return newError(ErrStateConflict, "Match is already %s", m.Status)
		}
		if err := tx.UpdateMatchStatus(m.ID, status); err != nil {
			return err
		}
		m.Status = status
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("match status set",
		zap.Int64("match_id", match.ID),
		zap.String("status", string(status)),
		zap.Int64("actor_id", actorID))
	return match, nil
}
