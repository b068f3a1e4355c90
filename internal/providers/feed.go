package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cricketduel/backend/internal/models"
)

// feedTimeLayout is the feed's dateTimeGMT format, always UTC.
const feedTimeLayout = "2006-01-02T15:04:05"

type FeedTeam struct {
	APIID     string
	Name      string
	ShortName string
}

type FeedMatch struct {
	APIID     string
	Title     string
	Venue     string
	MatchDate time.Time
	Status    models.MatchStatus
	TeamA     FeedTeam
	TeamB     FeedTeam
}

type FeedPlayer struct {
	APIID string
	Name  string
	Role  string
}

// FeedSquad is one side's announced players, keyed to the team the same way
// FeedMatch keys it.
type FeedSquad struct {
	Team    FeedTeam
	Players []FeedPlayer
}

// teamAPIID derives a stable team key. The feed has no team ids, only names.
func teamAPIID(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}

func feedTeam(name, shortName string) FeedTeam {
	if shortName == "" {
		shortName = strings.ToUpper(name)
		if len(shortName) > 3 {
			shortName = shortName[:3]
		}
	}
	return FeedTeam{APIID: teamAPIID(name), Name: name, ShortName: shortName}
}

func feedStatus(started, ended bool) models.MatchStatus {
	switch {
	case ended:
		return models.MatchCompleted
	case started:
		return models.MatchLive
	default:
		return models.MatchUpcoming
	}
}

type currentMatchesResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Data   []struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Venue       string   `json:"venue"`
		DateTimeGMT string   `json:"dateTimeGMT"`
		Teams       []string `json:"teams"`
		TeamInfo    []struct {
			Name      string `json:"name"`
			ShortName string `json:"shortname"`
		} `json:"teamInfo"`
		MatchStarted bool `json:"matchStarted"`
		MatchEnded   bool `json:"matchEnded"`
	} `json:"data"`
}

// CurrentMatches lists the fixtures the feed currently tracks. Entries without
// two named teams or a parseable start time are skipped.
func (c *CricAPIClient) CurrentMatches(ctx context.Context) ([]FeedMatch, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("offset", "0")
	endpoint := fmt.Sprintf("%s/currentMatches?%s", c.baseURL, q.Encode())

	var resp currentMatchesResponse
	if err := c.fetch(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("current matches: feed status %q: %s", resp.Status, resp.Reason)
	}

	out := make([]FeedMatch, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.ID == "" || len(d.Teams) < 2 {
			continue
		}
		start, err := time.ParseInLocation(feedTimeLayout, d.DateTimeGMT, time.UTC)
		if err != nil {
			continue
		}
		short := make(map[string]string, len(d.TeamInfo))
		for _, ti := range d.TeamInfo {
			short[ti.Name] = ti.ShortName
		}
		out = append(out, FeedMatch{
			APIID:     d.ID,
			Title:     d.Name,
			Venue:     d.Venue,
			MatchDate: start,
			Status:    feedStatus(d.MatchStarted, d.MatchEnded),
			TeamA:     feedTeam(d.Teams[0], short[d.Teams[0]]),
			TeamB:     feedTeam(d.Teams[1], short[d.Teams[1]]),
		})
	}
	return out, nil
}

type squadResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Data   []struct {
		TeamName  string `json:"teamName"`
		ShortName string `json:"shortname"`
		Players   []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"players"`
	} `json:"data"`
}

// MatchSquad returns each side's squad for the match.
func (c *CricAPIClient) MatchSquad(ctx context.Context, matchAPIID string) ([]FeedSquad, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("id", matchAPIID)
	endpoint := fmt.Sprintf("%s/match_squad?%s", c.baseURL, q.Encode())

	var resp squadResponse
	if err := c.fetch(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("squad %s: feed status %q: %s", matchAPIID, resp.Status, resp.Reason)
	}

	out := make([]FeedSquad, 0, len(resp.Data))
	for _, d := range resp.Data {
		squad := FeedSquad{Team: feedTeam(d.TeamName, d.ShortName)}
		for _, p := range d.Players {
			if p.ID == "" {
				continue
			}
			squad.Players = append(squad.Players, FeedPlayer{APIID: p.ID, Name: p.Name, Role: p.Role})
		}
		out = append(out, squad)
	}
	return out, nil
}
